package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/snapetech/bili-sync/internal/db"
)

func newTestManager(t *testing.T) (*Manager, *db.ConfigStore, string) {
	t.Helper()
	pool, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	store := db.NewConfigStore(pool)
	path := filepath.Join(t.TempDir(), "bundle.yaml")
	m, err := NewManager(store, path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m, store, path
}

func TestNewManagerPublishesDefaultsWhenNoFileOrRow(t *testing.T) {
	m, _, _ := newTestManager(t)
	if m.Current().ConcurrentVideo != DefaultBundle().ConcurrentVideo {
		t.Fatal("expected default bundle when nothing is persisted")
	}
}

func TestApplyUpdateMergesAndChangeLogs(t *testing.T) {
	m, store, _ := newTestManager(t)

	if err := m.ApplyUpdate(`{"concurrent_video": 9}`); err != nil {
		t.Fatalf("ApplyUpdate: %v", err)
	}
	got := m.Current()
	if got.ConcurrentVideo != 9 {
		t.Fatalf("ConcurrentVideo = %d, want 9", got.ConcurrentVideo)
	}
	if got.ConcurrentPage != DefaultBundle().ConcurrentPage {
		t.Fatalf("ConcurrentPage should be untouched by a partial update, got %d", got.ConcurrentPage)
	}

	history, err := store.History(configChangeKey)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history entries = %d, want 1", len(history))
	}
}

func TestReloadRereadsYAMLFile(t *testing.T) {
	m, _, path := newTestManager(t)

	if err := m.ApplyUpdate(`{"interval": 120000000000}`); err != nil {
		t.Fatalf("ApplyUpdate: %v", err)
	}

	// A second manager over the same file picks up what the first wrote.
	m2, err := NewManager(nil, path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m2.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if m2.Current().Interval != 2*time.Minute {
		t.Fatalf("Interval after reload = %v, want 2m", m2.Current().Interval)
	}
}

func TestNewManagerPrefersStoredOverrideOverFile(t *testing.T) {
	pool, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	store := db.NewConfigStore(pool)
	path := filepath.Join(t.TempDir(), "bundle.yaml")

	first, err := NewManager(store, path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := first.ApplyUpdate(`{"concurrent_video": 7}`); err != nil {
		t.Fatalf("ApplyUpdate: %v", err)
	}

	second, err := NewManager(store, path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if second.Current().ConcurrentVideo != 7 {
		t.Fatalf("ConcurrentVideo = %d, want 7 (from durable store)", second.Current().ConcurrentVideo)
	}
}
