package testsupport

import (
	"testing"

	"obsdemux/internal/config"
	"obsdemux/internal/queue"
)

// MustOpenStore opens the job store under cfg's state directory and closes
// it when the test ends.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open job store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
