package testsupport

import (
	"context"
	"testing"
	"time"

	"synthgear/internal/config"
	"synthgear/internal/ledger"
)

// MustOpenLedger opens the config's ledger for tests and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// BeginRun records a running run with the given id and start time.
func BeginRun(t testing.TB, store *ledger.Store, id, subject string, started time.Time) {
	t.Helper()

	if err := store.Begin(context.Background(), ledger.Run{ID: id, Subject: subject, Session: "V1", StartedAt: started}); err != nil {
		t.Fatalf("store.Begin: %v", err)
	}
}
