package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// dispatchLedger remembers which (user, provider event) pairs have been
// called, so an occurrence that stays inside the sliding lookahead window
// across consecutive cycles is dispatched once, not once per cycle.
// Entries expire after the TTL and the ledger is process-local: a restart
// may re-dispatch, which is accepted.
type dispatchLedger struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]time.Time
}

func newDispatchLedger(ttl time.Duration) *dispatchLedger {
	return &dispatchLedger{ttl: ttl, entries: make(map[string]time.Time)}
}

func ledgerKey(userID uuid.UUID, eventID string) string {
	return userID.String() + "|" + eventID
}

// Seen reports whether the pair was already dispatched within the TTL.
func (l *dispatchLedger) Seen(userID uuid.UUID, eventID string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	at, ok := l.entries[ledgerKey(userID, eventID)]
	return ok && now.Sub(at) < l.ttl
}

// Mark records a successful dispatch. Failed dispatches are not marked,
// so the next cycle naturally retries while the occurrence is in-window.
func (l *dispatchLedger) Mark(userID uuid.UUID, eventID string, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[ledgerKey(userID, eventID)] = now
}

// Prune drops expired entries; called once per cycle.
func (l *dispatchLedger) Prune(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, at := range l.entries {
		if now.Sub(at) >= l.ttl {
			delete(l.entries, key)
		}
	}
}
