package resilience

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/deltran/settlement-core/internal/core"
)

// DLQEntry mirrors core's data model: (request, attempts, next_retry_at,
// last_error).
type DLQEntry struct {
	Request     any
	Attempts    int
	NextRetryAt time.Time
	LastError   string
}

// DLQ is one corridor's bounded dead-letter queue with exponential
// backoff: next_retry_at = now + 2^attempts seconds, per §4.8.
type DLQ struct {
	corridor    string
	maxSize     int
	maxRetries  int
	mu          sync.Mutex
	entries     []*DLQEntry
}

// NewDLQ constructs a bounded DLQ for one corridor.
func NewDLQ(corridor string, maxSize int) *DLQ {
	return &DLQ{corridor: corridor, maxSize: maxSize, maxRetries: 3}
}

// Enqueue adds a failed request to the queue. Returns core.ErrDLQFull if
// the corridor's queue is already at capacity.
func (q *DLQ) Enqueue(request any, lastErr error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) >= q.maxSize {
		return core.ErrDLQFull
	}
	e := &DLQEntry{
		Request:     request,
		Attempts:    1,
		NextRetryAt: time.Now().Add(backoff(1)),
	}
	if lastErr != nil {
		e.LastError = lastErr.Error()
	}
	q.entries = append(q.entries, e)
	return nil
}

// backoff computes 2^attempts seconds, per §4.8's DLQ_BACKOFF constant.
func backoff(attempts int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempts))) * time.Second
}

// Due returns entries whose next_retry_at has elapsed. Nothing in this
// module calls it on a schedule; a caller drives retries through Retry or
// DrainNow.
func (q *DLQ) Due(now time.Time) []*DLQEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	var due []*DLQEntry
	for _, e := range q.entries {
		if !now.Before(e.NextRetryAt) {
			due = append(due, e)
		}
	}
	return due
}

// Retry re-attempts one entry via fn. On success the entry is removed from
// the queue. On failure, attempts increments and next_retry_at advances by
// 2^attempts seconds; once attempts reaches max_retries the entry is
// parked: left in the queue with next_retry_at pushed 24 hours out.
func (q *DLQ) Retry(ctx context.Context, e *DLQEntry, fn func(context.Context, any) error) error {
	err := fn(ctx, e.Request)

	q.mu.Lock()
	defer q.mu.Unlock()
	if err == nil {
		q.remove(e)
		return nil
	}
	e.LastError = err.Error()
	if e.Attempts >= q.maxRetries {
		// parked: leave in queue but push next_retry_at 24 hours out, so
		// Due() does not surface it again before then; DrainNow still
		// retries it immediately.
		e.NextRetryAt = time.Now().Add(24 * time.Hour)
		return fmt.Errorf("resilience: dlq entry parked after %d attempts: %w", e.Attempts, err)
	}
	e.Attempts++
	e.NextRetryAt = time.Now().Add(backoff(e.Attempts))
	return err
}

func (q *DLQ) remove(target *DLQEntry) {
	for i, e := range q.entries {
		if e == target {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}

// Inspect returns a paged snapshot of the queue for the ops Control
// interface's dlq_inspect.
func (q *DLQ) Inspect(cursor, limit int) []*DLQEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	if cursor >= len(q.entries) {
		return nil
	}
	end := cursor + limit
	if end > len(q.entries) {
		end = len(q.entries)
	}
	out := make([]*DLQEntry, end-cursor)
	copy(out, q.entries[cursor:end])
	return out
}

// Len reports the current queue depth.
func (q *DLQ) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// DrainNow forces every entry eligible for retry regardless of
// next_retry_at, for the ops Control interface's dlq_drain.
func (q *DLQ) DrainNow(ctx context.Context, fn func(context.Context, any) error) (succeeded, failed int) {
	q.mu.Lock()
	snapshot := append([]*DLQEntry(nil), q.entries...)
	q.mu.Unlock()

	for _, e := range snapshot {
		if err := q.Retry(ctx, e, fn); err != nil {
			failed++
		} else {
			succeeded++
		}
	}
	return succeeded, failed
}
