package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/deltran/settlement-core/internal/core"
)

func TestDLQEnqueueRespectsMaxSize(t *testing.T) {
	q := NewDLQ("sg-my", 2)
	if err := q.Enqueue("r1", errors.New("fail")); err != nil {
		t.Fatalf("Enqueue 1 error = %v", err)
	}
	if err := q.Enqueue("r2", errors.New("fail")); err != nil {
		t.Fatalf("Enqueue 2 error = %v", err)
	}
	if err := q.Enqueue("r3", errors.New("fail")); !errors.Is(err, core.ErrDLQFull) {
		t.Fatalf("Enqueue 3 error = %v, want ErrDLQFull", err)
	}
	if q.Len() != 2 {
		t.Errorf("Len() = %d, want 2", q.Len())
	}
}

func TestDLQRetrySuccessRemovesEntry(t *testing.T) {
	q := NewDLQ("sg-my", 10)
	q.Enqueue("r1", errors.New("fail"))
	entries := q.Inspect(0, 10)
	if len(entries) != 1 {
		t.Fatalf("Inspect = %d entries, want 1", len(entries))
	}

	err := q.Retry(context.Background(), entries[0], func(ctx context.Context, req any) error { return nil })
	if err != nil {
		t.Fatalf("Retry error = %v", err)
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after successful retry", q.Len())
	}
}

func TestDLQRetryFailureIncrementsAttempts(t *testing.T) {
	q := NewDLQ("sg-my", 10)
	q.Enqueue("r1", errors.New("fail"))
	entries := q.Inspect(0, 10)
	entry := entries[0]

	err := q.Retry(context.Background(), entry, func(ctx context.Context, req any) error { return errors.New("still down") })
	if err == nil {
		t.Fatal("expected retry to fail")
	}
	if entry.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", entry.Attempts)
	}
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (failed retries stay queued)", q.Len())
	}
}

func TestDLQDrainNowProcessesAll(t *testing.T) {
	q := NewDLQ("sg-my", 10)
	q.Enqueue("r1", errors.New("fail"))
	q.Enqueue("r2", errors.New("fail"))

	succeeded, failed := q.DrainNow(context.Background(), func(ctx context.Context, req any) error {
		if req == "r1" {
			return nil
		}
		return errors.New("still failing")
	})
	if succeeded != 1 || failed != 1 {
		t.Errorf("DrainNow = (%d, %d), want (1, 1)", succeeded, failed)
	}
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (only r2 remains)", q.Len())
	}
}

func TestDLQInspectPagination(t *testing.T) {
	q := NewDLQ("sg-my", 10)
	for i := 0; i < 5; i++ {
		q.Enqueue(i, errors.New("fail"))
	}
	page := q.Inspect(2, 2)
	if len(page) != 2 {
		t.Fatalf("Inspect(2,2) = %d entries, want 2", len(page))
	}
	if q.Inspect(10, 2) != nil {
		t.Errorf("Inspect past end should return nil")
	}
}
