package db

import (
	"database/sql"
	"time"
)

// ConfigStore persists the hot-swappable configuration bundle's current
// values plus a change history (C11 §4.11 "every UpdateConfig is recorded
// with old and new value"). The in-memory AtomicSnapshot published to
// readers lives in internal/config; this store is only the durable record.
type ConfigStore struct {
	pool *Pool
}

func NewConfigStore(pool *Pool) *ConfigStore { return &ConfigStore{pool: pool} }

// ConfigChange is one row of config_changes.
type ConfigChange struct {
	ID        int64
	Key       string
	OldValue  *string
	NewValue  string
	ChangedAt time.Time
}

// Get returns the current value for key, or "" with ok=false if unset.
func (s *ConfigStore) Get(key string) (value string, ok bool, err error) {
	err = s.pool.db.QueryRow(`SELECT value FROM config_items WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	return value, err == nil, err
}

// GetAll returns every stored key/value pair in config_items. UpdateConfig
// does not read it: the config Manager merges supplied fields onto its
// in-memory snapshot.
func (s *ConfigStore) GetAll() (map[string]string, error) {
	rows, err := s.pool.db.Query(`SELECT key, value FROM config_items`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// Set writes key=value and appends a config_changes row recording the
// transition, in one transaction so the change log can never drift from the
// current-value table.
func (s *ConfigStore) Set(key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	return s.pool.WithTx(func(tx *sql.Tx) error {
		var old sql.NullString
		err := tx.QueryRow(`SELECT value FROM config_items WHERE key = ?`, key).Scan(&old)
		if err != nil && err != sql.ErrNoRows {
			return err
		}
		if _, err := tx.Exec(`INSERT INTO config_items (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, value, now); err != nil {
			return err
		}
		var oldValue any
		if old.Valid {
			oldValue = old.String
		}
		_, err = tx.Exec(`INSERT INTO config_changes (key, old_value, new_value, changed_at) VALUES (?, ?, ?, ?)`,
			key, oldValue, value, now)
		return err
	})
}

// SetMany applies a batch of key/value writes as a single UpdateConfig
// transaction (§4.11), so a partially-applied config bundle is never
// observable by a reader.
func (s *ConfigStore) SetMany(values map[string]string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	return s.pool.WithTx(func(tx *sql.Tx) error {
		for key, value := range values {
			var old sql.NullString
			err := tx.QueryRow(`SELECT value FROM config_items WHERE key = ?`, key).Scan(&old)
			if err != nil && err != sql.ErrNoRows {
				return err
			}
			if _, err := tx.Exec(`INSERT INTO config_items (key, value, updated_at) VALUES (?, ?, ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
				key, value, now); err != nil {
				return err
			}
			var oldValue any
			if old.Valid {
				oldValue = old.String
			}
			if _, err := tx.Exec(`INSERT INTO config_changes (key, old_value, new_value, changed_at) VALUES (?, ?, ?, ?)`,
				key, oldValue, value, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// History returns the change log for key, most recent first.
func (s *ConfigStore) History(key string) ([]ConfigChange, error) {
	rows, err := s.pool.db.Query(`SELECT id, key, old_value, new_value, changed_at
		FROM config_changes WHERE key = ? ORDER BY id DESC`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ConfigChange
	for rows.Next() {
		var c ConfigChange
		var old sql.NullString
		var changedAt string
		if err := rows.Scan(&c.ID, &c.Key, &old, &c.NewValue, &changedAt); err != nil {
			return nil, err
		}
		if old.Valid {
			v := old.String
			c.OldValue = &v
		}
		if t, err := time.Parse(time.RFC3339, changedAt); err == nil {
			c.ChangedAt = t
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
