// Package store is the Item Store (C7): idempotent item/page persistence
// on top of internal/db's ItemStore/PageStore, plus the explicit
// "re-add a soft-deleted item" operation (§4.7) that the plain Upsert
// intentionally does not perform.
package store

import (
	"time"

	"github.com/snapetech/bili-sync/internal/db"
)

// Store is the Item Store.
type Store struct {
	items *db.ItemStore
	pages *db.PageStore
}

func New(items *db.ItemStore, pages *db.PageStore) *Store {
	return &Store{items: items, pages: pages}
}

// NewItem is the input to Upsert: everything known about a candidate item
// before it is persisted.
type NewItem struct {
	SourceID      int64
	UpstreamID    string
	Name          string
	Cover         string
	UploaderID    string
	UploaderName  string
	PubTime       *time.Time
	FavTime       *time.Time
	SeasonNumber  int
	EpisodeNumber int
}

// Upsert inserts ni if (source_id, upstream_id) is new; an existing row is
// left untouched — in particular download_status and path are never reset
// by a replayed enumeration (§4.7, P2/P8).
func (s *Store) Upsert(ni NewItem) (db.UpsertResult, error) {
	return s.items.Upsert(db.Item{
		SourceID:      ni.SourceID,
		UpstreamID:    ni.UpstreamID,
		Name:          ni.Name,
		Cover:         ni.Cover,
		UploaderID:    ni.UploaderID,
		UploaderName:  ni.UploaderName,
		PubTime:       ni.PubTime,
		FavTime:       ni.FavTime,
		SeasonNumber:  ni.SeasonNumber,
		EpisodeNumber: ni.EpisodeNumber,
	})
}

// Reinsert is the explicit "re-add a previously soft-deleted item"
// operation (§4.7): unlike Upsert, it zeroes status and clears the stored
// path on an existing row.
func (s *Store) Reinsert(itemID int64) error {
	return s.items.Reinsert(itemID)
}

// MarkInvalid flags an item as no longer present upstream (§3 lifecycle,
// §7 ContentGone verdict handling).
func (s *Store) MarkInvalid(itemID int64) error {
	return s.items.MarkInvalid(itemID)
}

// Delete removes an item and its pages (DeleteItem task handler, §3, §4.8
// 87007 auto-delete).
func (s *Store) Delete(itemID int64) error {
	return s.items.Delete(itemID)
}

// Get returns a single item.
func (s *Store) Get(itemID int64) (db.Item, error) {
	return s.items.Get(itemID)
}

// ListBySource returns every item for a source in deterministic
// (pubtime, id) order (P9).
func (s *Store) ListBySource(sourceID int64) ([]db.Item, error) {
	return s.items.ListBySource(sourceID)
}

// ListRunnable returns valid items in sourceID eligible for the download
// pipeline.
func (s *Store) ListRunnable(sourceID int64) ([]db.Item, error) {
	return s.items.ListRunnable(sourceID)
}

// UpdateItemStatus writes only an item's download_status word.
func (s *Store) UpdateItemStatus(itemID int64, status uint32) error {
	return s.items.UpdateStatus(itemID, status)
}

// UpdateItemPath writes only an item's path.
func (s *Store) UpdateItemPath(itemID int64, path string) error {
	return s.items.UpdatePath(itemID, path)
}

// NewPage is the input to CreatePage.
type NewPage struct {
	VideoID  int64
	PID      int
	Name     string
	CID      string
	Duration time.Duration
	Width    int
	Height   int
}

// CreatePage materializes a page row with download_status=0 (§4.7). Calling
// it twice with the same (video_id, pid) is a no-op that returns the
// existing row's id.
func (s *Store) CreatePage(np NewPage) (int64, error) {
	return s.pages.Create(np.VideoID, np.PID, np.Name, np.CID, np.Duration, np.Width, np.Height)
}

// PagesOf returns every page of an item, ordered by pid.
func (s *Store) PagesOf(videoID int64) ([]db.Page, error) {
	return s.pages.ListByVideo(videoID)
}

// UpdatePageStatus writes only a page's download_status word.
func (s *Store) UpdatePageStatus(pageID int64, status uint32) error {
	return s.pages.UpdateStatus(pageID, status)
}

// UpdatePagePath writes only a page's path.
func (s *Store) UpdatePagePath(pageID int64, path string) error {
	return s.pages.UpdatePath(pageID, path)
}
