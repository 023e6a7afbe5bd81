package testsupport

import (
	"context"
	"testing"

	"callscribe/internal/config"
	"callscribe/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// Enqueue inserts a task for tests using the provided store.
func Enqueue(t testing.TB, store *queue.Store, kind queue.Kind, locator, name string) *queue.Task {
	t.Helper()

	task, err := store.Enqueue(context.Background(), 1, kind, locator, name)
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return task
}
