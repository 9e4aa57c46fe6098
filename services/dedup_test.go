package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestDispatchLedgerSeenAndExpiry(t *testing.T) {
	ledger := newDispatchLedger(10 * time.Minute)
	userID := uuid.New()
	now := time.Now()

	require.False(t, ledger.Seen(userID, "g1", now))

	ledger.Mark(userID, "g1", now)
	require.True(t, ledger.Seen(userID, "g1", now))
	require.True(t, ledger.Seen(userID, "g1", now.Add(9*time.Minute)))
	require.False(t, ledger.Seen(userID, "g1", now.Add(10*time.Minute)))

	// Same event id for another user is a distinct entry.
	require.False(t, ledger.Seen(uuid.New(), "g1", now))
}

func TestDispatchLedgerPrune(t *testing.T) {
	ledger := newDispatchLedger(10 * time.Minute)
	userID := uuid.New()
	now := time.Now()

	ledger.Mark(userID, "old", now.Add(-11*time.Minute))
	ledger.Mark(userID, "fresh", now.Add(-time.Minute))

	ledger.Prune(now)

	ledger.mu.Lock()
	defer ledger.mu.Unlock()
	require.Len(t, ledger.entries, 1)
	require.Contains(t, ledger.entries, ledgerKey(userID, "fresh"))
}
