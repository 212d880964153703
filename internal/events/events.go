// Package events implements the typed event channel described in §9: two
// kafka-go writers sharing the teacher's batching/compression setup, one
// for notification-class events (drop-newest on backpressure, the
// teacher's own "broadcast channel full, message dropped" idiom from
// consumer/websocket.go's BroadcastMessage), one for audit-class events
// (blocks, RequiredAcks: kafka.RequireAll).
package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// Envelope wraps any protocol event (see internal/protocol.Event) with a
// class and a stable key for Kafka partitioning.
type Envelope struct {
	Class     string    `json:"class"` // "notification" or "audit"
	Key       string    `json:"key"`   // partitioning key, typically payment_id or window_id
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	EmittedAt time.Time `json:"emitted_at"`
}

// Channel is the core's single outbound event surface. Writes never block
// the caller for notification-class events; audit-class writes block,
// matching §9's "drop-newest for notifications, block for audit".
type Channel struct {
	notify *kafka.Writer
	audit  *kafka.Writer
	notifyQueue chan Envelope
	done   chan struct{}
}

// NewChannel constructs writers against brokers using the teacher's
// batching/compression configuration (producer/main.go): LeastBytes
// balancer, Snappy compression, small batch timeout for low latency.
func NewChannel(brokers []string, notifyTopic, auditTopic string) *Channel {
	mkWriter := func(topic string, requireAll bool) *kafka.Writer {
		acks := kafka.RequireOne
		if requireAll {
			acks = kafka.RequireAll
		}
		return &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			Compression:  kafka.Snappy,
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: acks,
		}
	}

	c := &Channel{
		notify:      mkWriter(notifyTopic, false),
		audit:       mkWriter(auditTopic, true),
		notifyQueue: make(chan Envelope, 1024),
		done:        make(chan struct{}),
	}
	go c.drainNotify()
	return c
}

// drainNotify is the background writer loop for notification-class
// events. PublishNotification never blocks on Kafka I/O itself; it only
// enqueues without blocking, and drops when the queue is full.
func (c *Channel) drainNotify() {
	for {
		select {
		case env := <-c.notifyQueue:
			data, err := json.Marshal(env)
			if err != nil {
				log.Printf("[events] marshal notification event: %v", err)
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			err = c.notify.WriteMessages(ctx, kafka.Message{Key: []byte(env.Key), Value: data})
			cancel()
			if err != nil {
				log.Printf("[events] notification write failed: %v", err)
			}
		case <-c.done:
			return
		}
	}
}

// PublishNotification enqueues a notification-class event. If the queue is
// full the event is dropped and logged, never blocking the caller -- this
// is the non-blocking, bounded-backpressure, drop-newest path from §9.
func (c *Channel) PublishNotification(env Envelope) {
	env.Class = "notification"
	env.EmittedAt = time.Now()
	select {
	case c.notifyQueue <- env:
	default:
		log.Printf("[events] notification queue full, dropping event %s/%s", env.Type, env.Key)
	}
}

// PublishAudit synchronously writes an audit-class event with
// RequiredAcks=All, blocking the caller until Kafka has durably accepted
// it -- audit events must never be silently dropped, per §9.
func (c *Channel) PublishAudit(ctx context.Context, env Envelope) error {
	env.Class = "audit"
	env.EmittedAt = time.Now()
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return c.audit.WriteMessages(ctx, kafka.Message{Key: []byte(env.Key), Value: data})
}

// Close stops the background notification writer and closes both Kafka
// writers, matching the teacher's graceful-shutdown discipline.
func (c *Channel) Close() error {
	close(c.done)
	if err := c.notify.Close(); err != nil {
		return err
	}
	return c.audit.Close()
}
