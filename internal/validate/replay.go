// Package validate implements acceptance checks on an InstructPayment:
// schema well-formedness, BIC/IBAN shape, replay protection, TTL, and
// eligibility-token checks, per §4.4. The replay cache follows the
// teacher's sync.RWMutex-guarded map idiom (consumer/liquidity_client.go's
// bicMapMutex), generalized from a static BIC lookup to a TTL-expiring
// replay set.
package validate

import (
	"sync"
	"time"
)

// replayKey identifies a payment uniquely for replay purposes.
type replayKey struct {
	senderBIC string
	nonce     uint64
}

// ReplayCache is a single process-wide structure guarded by a
// reader-writer lock: writers on accept, readers on validation, per §5.
// It must survive the longest legitimate TTL with margin, so entries
// expire TTL+60s after insertion rather than exactly at TTL.
type ReplayCache struct {
	mu      sync.RWMutex
	entries map[replayKey]time.Time // key -> expires_at
}

// NewReplayCache returns an empty cache.
func NewReplayCache() *ReplayCache {
	return &ReplayCache{entries: make(map[replayKey]time.Time)}
}

// Seen reports whether (senderBIC, nonce) has already been accepted and is
// still within its replay window.
func (c *ReplayCache) Seen(senderBIC string, nonce uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	exp, ok := c.entries[replayKey{senderBIC, nonce}]
	if !ok {
		return false
	}
	return time.Now().Before(exp)
}

// Record inserts (senderBIC, nonce) with an expiry of ttl+60s from now,
// matching §4.4's "replay cache... not in the replay cache within TTL+60s".
func (c *ReplayCache) Record(senderBIC string, nonce uint64, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[replayKey{senderBIC, nonce}] = time.Now().Add(ttl + 60*time.Second)
}

// Sweep removes expired entries. Intended to run periodically from a
// background goroutine so the cache does not grow unbounded; it does not
// run automatically so callers can control its cadence relative to their
// own resource limits (§5's "replay cache size... configured at startup").
func (c *ReplayCache) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, exp := range c.entries {
		if now.After(exp) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len reports the current cache size, for metrics and resource-limit
// enforcement.
func (c *ReplayCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
