package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v2"

	"github.com/snapetech/bili-sync/internal/db"
)

// configChangeKey is the single config_items row the whole Bundle is stored
// under. §4.11 asks for "a change-log row ... for every modification", not
// per-field rows, so the durable record is the entire YAML-serialized
// snapshot; internal/db.ConfigStore's History(key) then gives a full
// bundle-level audit trail for free.
const configChangeKey = "bundle"

// Manager owns the published Bundle snapshot, the backing YAML file, and
// the config_items/config_changes change-log (§4.11). It implements
// internal/scheduler's ConfigApplier interface.
type Manager struct {
	store    *db.ConfigStore
	path     string
	snapshot *AtomicSnapshot[Bundle]
}

// NewManager loads the initial Bundle (YAML file, falling back to
// DefaultBundle; then any durable config_items override takes precedence,
// since it reflects the last successfully applied snapshot) and publishes
// it.
func NewManager(store *db.ConfigStore, path string) (*Manager, error) {
	m := &Manager{store: store, path: path, snapshot: NewAtomicSnapshot(DefaultBundle())}
	if err := m.loadFromDisk(); err != nil {
		return nil, err
	}
	if err := m.loadFromStore(); err != nil {
		return nil, err
	}
	return m, nil
}

// Current returns the currently published Bundle.
func (m *Manager) Current() Bundle {
	return m.snapshot.Load()
}

// ApplyUpdate implements scheduler.ConfigApplier: it merges a JSON partial
// update onto a copy of the current Bundle (unset fields keep their current
// value, §4.11 "UpdateConfig replaces only the supplied fields"), persists
// and change-logs the full resulting Bundle, writes it back to the YAML
// file, then republishes.
func (m *Manager) ApplyUpdate(payload string) error {
	next := m.snapshot.Load()
	if err := yaml.Unmarshal([]byte(payload), &next); err != nil {
		return fmt.Errorf("config: decode UpdateConfig payload: %w", err)
	}
	return m.publish(next)
}

// Reload implements scheduler.ConfigApplier: it re-reads the YAML file from
// disk and republishes (§4.11's ReloadConfig task).
func (m *Manager) Reload() error {
	blob, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("config: reload %s: %w", m.path, err)
	}
	next := DefaultBundle()
	if err := yaml.Unmarshal(blob, &next); err != nil {
		return fmt.Errorf("config: parse %s: %w", m.path, err)
	}
	return m.publish(next)
}

// publish change-logs next, writes it to the YAML file, and swaps the
// snapshot. A change-log failure (via ConfigStore.Set) aborts the publish.
// A file-write failure is returned only after the snapshot is swapped, so
// the in-memory snapshot and the durable change-log stay consistent with
// each other, since the file is just a cache of the last-applied snapshot.
func (m *Manager) publish(next Bundle) error {
	blob, err := yaml.Marshal(next)
	if err != nil {
		return fmt.Errorf("config: marshal bundle: %w", err)
	}
	if m.store != nil {
		if err := m.store.Set(configChangeKey, string(blob)); err != nil {
			return fmt.Errorf("config: change-log bundle: %w", err)
		}
	}
	var fileErr error
	if m.path != "" {
		if err := os.WriteFile(m.path, blob, 0o644); err != nil {
			fileErr = fmt.Errorf("config: write %s: %w", m.path, err)
		}
	}
	m.snapshot.Store(next)
	return fileErr
}

func (m *Manager) loadFromDisk() error {
	if m.path == "" {
		return nil
	}
	blob, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: read %s: %w", m.path, err)
	}
	next := DefaultBundle()
	if err := yaml.Unmarshal(blob, &next); err != nil {
		return fmt.Errorf("config: parse %s: %w", m.path, err)
	}
	m.snapshot.Store(next)
	return nil
}

func (m *Manager) loadFromStore() error {
	if m.store == nil {
		return nil
	}
	blob, ok, err := m.store.Get(configChangeKey)
	if err != nil {
		return fmt.Errorf("config: read stored bundle: %w", err)
	}
	if !ok {
		return nil
	}
	next := m.snapshot.Load()
	if err := yaml.Unmarshal([]byte(blob), &next); err != nil {
		return fmt.Errorf("config: parse stored bundle: %w", err)
	}
	m.snapshot.Store(next)
	return nil
}
