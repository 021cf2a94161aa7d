package testsupport

import (
	"testing"

	"revoice/internal/config"
	"revoice/internal/runstore"
)

// MustOpenStore opens the run store for the supplied config and registers
// cleanup with the test lifecycle.
func MustOpenStore(t testing.TB, cfg *config.Config) *runstore.Store {
	t.Helper()

	store, err := runstore.Open(cfg)
	if err != nil {
		t.Fatalf("open run store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
