package events

import (
	"testing"
	"time"
)

// newUndrainedChannel builds a Channel whose notification queue is never
// drained, so tests can observe the bounded drop-newest behavior directly
// without a live Kafka broker.
func newUndrainedChannel(capacity int) *Channel {
	return &Channel{notifyQueue: make(chan Envelope, capacity), done: make(chan struct{})}
}

func TestPublishNotificationNeverBlocksWhenQueueFull(t *testing.T) {
	c := newUndrainedChannel(2)

	c.PublishNotification(Envelope{Key: "p1", Type: "transition"})
	c.PublishNotification(Envelope{Key: "p2", Type: "transition"})

	done := make(chan struct{})
	go func() {
		c.PublishNotification(Envelope{Key: "p3", Type: "transition"}) // queue is full, must drop, not block
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PublishNotification blocked on a full queue instead of dropping")
	}
}

func TestPublishNotificationStampsNotificationClass(t *testing.T) {
	c := newUndrainedChannel(1)
	c.PublishNotification(Envelope{Key: "p1", Type: "transition"})

	select {
	case env := <-c.notifyQueue:
		if env.Class != "notification" {
			t.Errorf("Class = %q, want %q", env.Class, "notification")
		}
		if env.EmittedAt.IsZero() {
			t.Error("EmittedAt should be stamped by PublishNotification")
		}
	default:
		t.Fatal("expected one queued envelope")
	}
}

func TestPublishNotificationPreservesInsertionOrderUnderCapacity(t *testing.T) {
	c := newUndrainedChannel(4)
	c.PublishNotification(Envelope{Key: "p1"})
	c.PublishNotification(Envelope{Key: "p2"})
	c.PublishNotification(Envelope{Key: "p3"})

	want := []string{"p1", "p2", "p3"}
	for _, w := range want {
		env := <-c.notifyQueue
		if env.Key != w {
			t.Errorf("Key = %q, want %q", env.Key, w)
		}
	}
}
