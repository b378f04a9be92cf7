// Package enrich builds the serving token list: on-chain curve state from
// the minter contract merged with off-chain metadata resolved over IPFS.
package enrich

import (
	"sync"
	"time"
)

// Quarantine tracks tokens excluded from enrichment after an upstream rate
// limit. Entries expire after the TTL; an expired token is retried on its
// next enrichment cycle.
type Quarantine struct {
	mu      sync.Mutex
	entries map[string]time.Time
	ttl     time.Duration

	// now is replaceable in tests
	now func() time.Time
}

// NewQuarantine creates a quarantine set with the given exclusion window
func NewQuarantine(ttl time.Duration) *Quarantine {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Quarantine{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Add quarantines a token until the TTL elapses
func (q *Quarantine) Add(tokenID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries[tokenID] = q.now().Add(q.ttl)
}

// Contains reports whether a token is currently quarantined. Expired
// entries are purged on lookup.
func (q *Quarantine) Contains(tokenID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	deadline, ok := q.entries[tokenID]
	if !ok {
		return false
	}
	if q.now().After(deadline) {
		delete(q.entries, tokenID)
		return false
	}
	return true
}

// Clear drops every entry, expired or not
func (q *Quarantine) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = make(map[string]time.Time)
}

// Len returns the number of live quarantine entries
func (q *Quarantine) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	for id, deadline := range q.entries {
		if now.After(deadline) {
			delete(q.entries, id)
		}
	}
	return len(q.entries)
}
