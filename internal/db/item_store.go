package db

import (
	"database/sql"
	"errors"
	"time"

	"github.com/snapetech/bili-sync/internal/status"
)

// ItemStore is the Item Store's persistence layer (C7).
type ItemStore struct {
	pool *Pool
}

func NewItemStore(pool *Pool) *ItemStore { return &ItemStore{pool: pool} }

const itemColumns = `id, source_id, upstream_id, name, cover, uploader_id, uploader_name,
	pubtime, favtime, season_number, episode_number, valid, download_status, path, created_at`

func scanItem(row interface{ Scan(...any) error }) (Item, error) {
	var it Item
	var pubtime, favtime sql.NullString
	var valid int
	var createdAt string
	if err := row.Scan(&it.ID, &it.SourceID, &it.UpstreamID, &it.Name, &it.Cover,
		&it.UploaderID, &it.UploaderName, &pubtime, &favtime, &it.SeasonNumber,
		&it.EpisodeNumber, &valid, &it.DownloadStatus, &it.Path, &createdAt); err != nil {
		return Item{}, err
	}
	it.Valid = valid != 0
	if pubtime.Valid {
		if t, err := time.Parse(time.RFC3339, pubtime.String); err == nil {
			it.PubTime = &t
		}
	}
	if favtime.Valid {
		if t, err := time.Parse(time.RFC3339, favtime.String); err == nil {
			it.FavTime = &t
		}
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		it.CreatedAt = t
	}
	return it, nil
}

// UpsertResult reports whether Upsert actually inserted a new row, which is
// what lets C9 know an item is "newly discovered" for C12's summary, and
// satisfies P8 (re-running enumeration never modifies download_status).
type UpsertResult struct {
	ID       int64
	Inserted bool
}

// Upsert is the idempotent insert described in §4.7: inserting an
// already-present (source_id, upstream_id) pair is a no-op that never
// resets status (P2, P8).
func (s *ItemStore) Upsert(it Item) (UpsertResult, error) {
	var out UpsertResult
	err := s.pool.WithTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`INSERT INTO videos
			(source_id, upstream_id, name, cover, uploader_id, uploader_name, pubtime, favtime,
			 season_number, episode_number, valid, download_status, path)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, 0, '')
			ON CONFLICT(source_id, upstream_id) DO NOTHING`,
			it.SourceID, it.UpstreamID, it.Name, it.Cover, it.UploaderID, it.UploaderName,
			formatNullableTime(it.PubTime), formatNullableTime(it.FavTime),
			it.SeasonNumber, it.EpisodeNumber)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			out.Inserted = false
			return tx.QueryRow(`SELECT id FROM videos WHERE source_id = ? AND upstream_id = ?`,
				it.SourceID, it.UpstreamID).Scan(&out.ID)
		}
		out.Inserted = true
		out.ID, err = res.LastInsertId()
		return err
	})
	return out, err
}

// Reinsert implements the explicit "re-add a soft-deleted item" operation
// (§4.7): it zeroes status and clears the stored path, unlike Upsert which
// is a pure no-op on an existing row.
func (s *ItemStore) Reinsert(id int64) error {
	return s.pool.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE videos SET download_status = 0, path = '', valid = 1 WHERE id = ?`, id)
		return err
	})
}

// MarkInvalid sets valid=false (upstream removed the item; §3 lifecycle).
func (s *ItemStore) MarkInvalid(id int64) error {
	return s.pool.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE videos SET valid = 0 WHERE id = ?`, id)
		return err
	})
}

// UpdateStatus writes only download_status — the explicit column-list write
// pattern (§9 REDESIGN FLAG) so adding a field to Item later can never
// silently widen this call site's write set.
func (s *ItemStore) UpdateStatus(id int64, status uint32) error {
	return s.pool.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE videos SET download_status = ? WHERE id = ?`, status, id)
		return err
	})
}

// UpdatePath writes only path.
func (s *ItemStore) UpdatePath(id int64, path string) error {
	return s.pool.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE videos SET path = ? WHERE id = ?`, path, id)
		return err
	})
}

// Delete removes the item row and its pages (explicit DeleteItem, §3).
func (s *ItemStore) Delete(id int64) error {
	return s.pool.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM pages WHERE video_id = ?`, id); err != nil {
			return err
		}
		_, err := tx.Exec(`DELETE FROM videos WHERE id = ?`, id)
		return err
	})
}

// Get returns a single item by id.
func (s *ItemStore) Get(id int64) (Item, error) {
	row := s.pool.db.QueryRow(`SELECT `+itemColumns+` FROM videos WHERE id = ?`, id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	return it, err
}

// ListBySource returns every item for a source, ordered by pubtime ascending
// then id ascending — the deterministic order P9's episode numbering and
// the "unified mode" filename derivation (§4.8) both rely on.
func (s *ItemStore) ListBySource(sourceID int64) ([]Item, error) {
	rows, err := s.pool.db.Query(`SELECT `+itemColumns+` FROM videos
		WHERE source_id = ? ORDER BY pubtime ASC, id ASC`, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// ListRunnable returns items in sourceID whose status word is not yet
// ItemComplete (status.ItemComplete), i.e. have at least one runnable or
// failed-but-retriable-via-reset subtask. Callers filter further by
// status.ShouldRun per subtask.
func (s *ItemStore) ListRunnable(sourceID int64) ([]Item, error) {
	items, err := s.ListBySource(sourceID)
	if err != nil {
		return nil, err
	}
	var out []Item
	for _, it := range items {
		if !it.Valid || status.ItemComplete(it.DownloadStatus) {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

// ListFailed returns items where any subtask is Failed — the admin
// "failed tasks" filter (§7), implemented here as a pure query since the
// HTTP surface itself is out of scope.
func (s *ItemStore) ListFailed() ([]Item, error) {
	rows, err := s.pool.db.Query(`SELECT ` + itemColumns + ` FROM videos ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		if status.SummarizeItem(it.DownloadStatus).Failed == 0 {
			continue
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func formatNullableTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// PageStore is the Page side of the Item Store (§3 Page; §4.7 "pages are
// created on item materialization").
type PageStore struct {
	pool *Pool
}

func NewPageStore(pool *Pool) *PageStore { return &PageStore{pool: pool} }

const pageColumns = `id, video_id, pid, name, cid, duration_ms, width, height, download_status, path`

func scanPage(row interface{ Scan(...any) error }) (Page, error) {
	var p Page
	var durationMs int64
	if err := row.Scan(&p.ID, &p.VideoID, &p.PID, &p.Name, &p.CID, &durationMs,
		&p.Width, &p.Height, &p.DownloadStatus, &p.Path); err != nil {
		return Page{}, err
	}
	p.Duration = time.Duration(durationMs) * time.Millisecond
	return p, nil
}

// Create inserts pages for a freshly materialized item with
// download_status=0 (§4.7). pid is dense from 1 (§3 Page invariant),
// enforced by the caller (enumerate/episode numbering assigns pid in order).
func (s *PageStore) Create(videoID int64, pid int, name, cid string, duration time.Duration, width, height int) (int64, error) {
	var id int64
	err := s.pool.WithTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`INSERT INTO pages (video_id, pid, name, cid, duration_ms, width, height, download_status, path)
			VALUES (?, ?, ?, ?, ?, ?, ?, 0, '')
			ON CONFLICT(video_id, pid) DO NOTHING`,
			videoID, pid, name, cid, duration.Milliseconds(), width, height)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return tx.QueryRow(`SELECT id FROM pages WHERE video_id = ? AND pid = ?`, videoID, pid).Scan(&id)
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// UpdateStatus writes only download_status.
func (s *PageStore) UpdateStatus(id int64, status uint32) error {
	return s.pool.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE pages SET download_status = ? WHERE id = ?`, status, id)
		return err
	})
}

// UpdatePath writes only path.
func (s *PageStore) UpdatePath(id int64, path string) error {
	return s.pool.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE pages SET path = ? WHERE id = ?`, path, id)
		return err
	})
}

// ListByVideo returns all pages of an item, ordered by pid ascending.
func (s *PageStore) ListByVideo(videoID int64) ([]Page, error) {
	rows, err := s.pool.db.Query(`SELECT `+pageColumns+` FROM pages WHERE video_id = ? ORDER BY pid ASC`, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
