package store

import (
	"path/filepath"
	"testing"

	"github.com/snapetech/bili-sync/internal/db"
)

func newTestStore(t *testing.T) (*Store, int64) {
	t.Helper()
	pool, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	sources := db.NewSourceStore(pool)
	sourceID, err := sources.Upsert(db.Source{Kind: db.KindFavorite, UpstreamKey: "fid:1", Name: "F", Path: "/data/f"})
	if err != nil {
		t.Fatalf("source Upsert: %v", err)
	}
	s := New(db.NewItemStore(pool), db.NewPageStore(pool))
	return s, sourceID
}

func TestUpsertNeverResetsExistingStatus(t *testing.T) {
	s, sourceID := newTestStore(t)
	res, err := s.Upsert(NewItem{SourceID: sourceID, UpstreamID: "bv1", Name: "Video One"})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if !res.Inserted {
		t.Fatal("first Upsert should have inserted")
	}

	if err := s.UpdateItemStatus(res.ID, 0xFF); err != nil {
		t.Fatalf("UpdateItemStatus: %v", err)
	}

	res2, err := s.Upsert(NewItem{SourceID: sourceID, UpstreamID: "bv1", Name: "Video One Retitled"})
	if err != nil {
		t.Fatalf("Upsert (replay): %v", err)
	}
	if res2.Inserted {
		t.Fatal("replayed Upsert should be a no-op, not a fresh insert")
	}
	if res2.ID != res.ID {
		t.Fatalf("replayed Upsert id = %d, want %d", res2.ID, res.ID)
	}

	item, err := s.Get(res.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if item.DownloadStatus != 0xFF {
		t.Fatalf("DownloadStatus = %#x after replayed Upsert, want unchanged 0xff", item.DownloadStatus)
	}
	if item.Name != "Video One" {
		t.Fatalf("Name = %q after replayed Upsert, want original %q preserved", item.Name, "Video One")
	}
}

func TestReinsertZeroesStatusAndPath(t *testing.T) {
	s, sourceID := newTestStore(t)
	res, err := s.Upsert(NewItem{SourceID: sourceID, UpstreamID: "bv2", Name: "Video Two"})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.UpdateItemStatus(res.ID, 0xFF); err != nil {
		t.Fatalf("UpdateItemStatus: %v", err)
	}
	if err := s.UpdateItemPath(res.ID, "/data/f/Video Two.mp4"); err != nil {
		t.Fatalf("UpdateItemPath: %v", err)
	}
	if err := s.MarkInvalid(res.ID); err != nil {
		t.Fatalf("MarkInvalid: %v", err)
	}

	if err := s.Reinsert(res.ID); err != nil {
		t.Fatalf("Reinsert: %v", err)
	}
	item, err := s.Get(res.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if item.DownloadStatus != 0 {
		t.Fatalf("DownloadStatus after Reinsert = %#x, want 0", item.DownloadStatus)
	}
	if item.Path != "" {
		t.Fatalf("Path after Reinsert = %q, want empty", item.Path)
	}
	if !item.Valid {
		t.Fatal("Valid after Reinsert = false, want true")
	}
}

func TestCreatePageIsIdempotent(t *testing.T) {
	s, sourceID := newTestStore(t)
	res, err := s.Upsert(NewItem{SourceID: sourceID, UpstreamID: "bv3", Name: "Video Three"})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	id1, err := s.CreatePage(NewPage{VideoID: res.ID, PID: 1, Name: "P1", CID: "cid1"})
	if err != nil {
		t.Fatalf("CreatePage: %v", err)
	}
	id2, err := s.CreatePage(NewPage{VideoID: res.ID, PID: 1, Name: "P1 again", CID: "cid1-changed"})
	if err != nil {
		t.Fatalf("CreatePage (replay): %v", err)
	}
	if id1 != id2 {
		t.Fatalf("replayed CreatePage created a new row: %d != %d", id1, id2)
	}

	pages, err := s.PagesOf(res.ID)
	if err != nil {
		t.Fatalf("PagesOf: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("PagesOf returned %d pages, want 1", len(pages))
	}
	if pages[0].DownloadStatus != 0 {
		t.Fatalf("new page DownloadStatus = %#x, want 0", pages[0].DownloadStatus)
	}
}
