package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned by single-row lookups when no row matches.
var ErrNotFound = errors.New("db: not found")

// SourceStore is the Source Registry's persistence layer (C5).
type SourceStore struct {
	pool *Pool
}

func NewSourceStore(pool *Pool) *SourceStore { return &SourceStore{pool: pool} }

// sourceColumns is the explicit, single source of truth for which columns a
// Source read/write touches. Adding a field to Source must never silently
// extend the write set of an existing call site (§9 REDESIGN FLAG) — every
// writer below names its columns explicitly instead of relying on struct
// reflection.
const sourceColumns = `id, kind, upstream_key, name, path, enabled, latest_seen_at,
	download_all_seasons, selected_seasons, last_scan_at, created_at`

func scanSource(row interface{ Scan(...any) error }) (Source, error) {
	var s Source
	var enabled, downloadAll int
	var latestSeenAt, lastScanAt sql.NullString
	var selectedSeasons string
	var createdAt string
	if err := row.Scan(&s.ID, &s.Kind, &s.UpstreamKey, &s.Name, &s.Path, &enabled,
		&latestSeenAt, &downloadAll, &selectedSeasons, &lastScanAt, &createdAt); err != nil {
		return Source{}, err
	}
	s.Enabled = enabled != 0
	s.DownloadAllSeasons = downloadAll != 0
	if latestSeenAt.Valid {
		t, err := time.Parse(time.RFC3339, latestSeenAt.String)
		if err == nil {
			s.LatestSeenAt = &t
		}
	}
	if lastScanAt.Valid {
		t, err := time.Parse(time.RFC3339, lastScanAt.String)
		if err == nil {
			s.LastScanAt = &t
		}
	}
	if err := json.Unmarshal([]byte(selectedSeasons), &s.SelectedSeasons); err != nil {
		s.SelectedSeasons = nil
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		s.CreatedAt = t
	}
	return s, nil
}

// Upsert inserts source if (kind, upstream_key) is new, or returns the
// existing row id unchanged if it already exists (AddSource replay after a
// crash must not duplicate a source — P2-style dedup applies to sources
// too, even though P2 itself is stated for items).
func (s *SourceStore) Upsert(src Source) (int64, error) {
	seasons, err := json.Marshal(src.SelectedSeasons)
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.pool.WithTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`INSERT INTO sources
			(kind, upstream_key, name, path, enabled, download_all_seasons, selected_seasons)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(kind, upstream_key) DO NOTHING`,
			src.Kind, src.UpstreamKey, src.Name, src.Path, boolInt(src.Enabled),
			boolInt(src.DownloadAllSeasons), string(seasons))
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return tx.QueryRow(`SELECT id FROM sources WHERE kind = ? AND upstream_key = ?`,
				src.Kind, src.UpstreamKey).Scan(&id)
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// MergeBangumi implements the bangumi union-merge rule (§4.5): the target
// source's name/path win, selected_seasons is unioned, and the cursor
// advances to the later of the two. Existing items are never touched.
func (s *SourceStore) MergeBangumi(targetID int64, newUpstreamKey string, newSeasons []string, cursor *time.Time) error {
	return s.pool.WithTx(func(tx *sql.Tx) error {
		var existingKey, existingSeasonsJSON string
		var existingCursor sql.NullString
		if err := tx.QueryRow(`SELECT upstream_key, selected_seasons, latest_seen_at FROM sources WHERE id = ?`, targetID).
			Scan(&existingKey, &existingSeasonsJSON, &existingCursor); err != nil {
			return err
		}
		var existingSeasons []string
		_ = json.Unmarshal([]byte(existingSeasonsJSON), &existingSeasons)
		union := unionStrings(existingSeasons, newSeasons)
		unionJSON, err := json.Marshal(union)
		if err != nil {
			return err
		}
		mergedKey := unionUpstreamKey(existingKey, newUpstreamKey)

		latest := existingCursor.String
		if cursor != nil {
			candidate := cursor.UTC().Format(time.RFC3339)
			if candidate > latest {
				latest = candidate
			}
		}
		_, err = tx.Exec(`UPDATE sources SET upstream_key = ?, selected_seasons = ?, latest_seen_at = ? WHERE id = ?`,
			mergedKey, string(unionJSON), nullableString(latest), targetID)
		return err
	})
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func unionUpstreamKey(existing, incoming string) string {
	if incoming == "" || incoming == existing {
		return existing
	}
	return existing + "," + incoming
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Toggle sets enabled for id. Visible to the next scheduler tick, never
// mid-tick (§4.5) — enforced by the scheduler snapshotting the enabled set
// once per cycle, not by this store.
func (s *SourceStore) Toggle(id int64, enabled bool) error {
	return s.pool.WithTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE sources SET enabled = ? WHERE id = ?`, boolInt(enabled), id)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// AdvanceCursor updates latest_seen_at for id (§4.6, end of enumeration).
func (s *SourceStore) AdvanceCursor(id int64, cursor time.Time) error {
	return s.pool.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE sources SET latest_seen_at = ?, last_scan_at = ? WHERE id = ?`,
			cursor.UTC().Format(time.RFC3339), time.Now().UTC().Format(time.RFC3339), id)
		return err
	})
}

// TouchScanned records that id was scanned this cycle without advancing the
// cursor (used when the Open Question toggle `advance_cursor_on_abort` is
// false and the cycle aborted before downloads completed).
func (s *SourceStore) TouchScanned(id int64) error {
	return s.pool.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE sources SET last_scan_at = ? WHERE id = ?`,
			time.Now().UTC().Format(time.RFC3339), id)
		return err
	})
}

// Delete removes a source row together with its items and their pages, in
// one transaction. Local files are not touched here.
func (s *SourceStore) Delete(id int64) error {
	return s.pool.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM pages WHERE video_id IN (SELECT id FROM videos WHERE source_id = ?)`, id)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM videos WHERE source_id = ?`, id); err != nil {
			return err
		}
		_, err = tx.Exec(`DELETE FROM sources WHERE id = ?`, id)
		return err
	})
}

// Get returns a single source by id.
func (s *SourceStore) Get(id int64) (Source, error) {
	row := s.pool.db.QueryRow(`SELECT `+sourceColumns+` FROM sources WHERE id = ?`, id)
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Source{}, ErrNotFound
	}
	return src, err
}

// ListEnabled returns all enabled sources, ordered by last_scan_at ascending
// (NULLs — never scanned — first), satisfying C9 step 3's ordering rule.
func (s *SourceStore) ListEnabled() ([]Source, error) {
	rows, err := s.pool.db.Query(`SELECT ` + sourceColumns + ` FROM sources
		WHERE enabled = 1
		ORDER BY last_scan_at IS NOT NULL, last_scan_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// List returns every source regardless of enabled state.
func (s *SourceStore) List() ([]Source, error) {
	rows, err := s.pool.db.Query(`SELECT ` + sourceColumns + ` FROM sources ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
