package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/snapetech/bili-sync/internal/db"
	"github.com/snapetech/bili-sync/internal/download"
	"github.com/snapetech/bili-sync/internal/layout"
	"github.com/snapetech/bili-sync/internal/queue"
	"github.com/snapetech/bili-sync/internal/ratelimit"
	"github.com/snapetech/bili-sync/internal/source"
	"github.com/snapetech/bili-sync/internal/status"
	"github.com/snapetech/bili-sync/internal/store"
	"github.com/snapetech/bili-sync/internal/upstream"
)

// fakeClient drives both enumeration (ListFavorite) and the download
// pipeline (FetchItemDetail/FetchStreamManifest) from one scripted set of
// fixtures, plus an optional error that every listing call returns — used
// to exercise the RiskControl abort/reset path.
type fakeClient struct {
	favorites []upstream.CandidateItem
	listErr   error
	pages     []upstream.CandidatePage
	variants  []upstream.StreamVariant
}

func (c *fakeClient) ListFavorite(ctx context.Context, favoriteID string, page int) (*upstream.ListPage, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	if page > 1 {
		return &upstream.ListPage{}, nil
	}
	return &upstream.ListPage{Items: c.favorites}, nil
}
func (c *fakeClient) ListCollection(context.Context, string, string, string, int) (*upstream.ListPage, error) {
	return &upstream.ListPage{}, nil
}
func (c *fakeClient) ListSubmissions(context.Context, string, int) (*upstream.ListPage, error) {
	return &upstream.ListPage{}, nil
}
func (c *fakeClient) ListWatchLater(context.Context) (*upstream.ListPage, error) {
	return &upstream.ListPage{}, nil
}
func (c *fakeClient) ListSeasonEpisodes(context.Context, string) (*upstream.ListPage, error) {
	return &upstream.ListPage{}, nil
}
func (c *fakeClient) FetchItemDetail(context.Context, string) (*upstream.ItemDetail, error) {
	return &upstream.ItemDetail{Pages: c.pages}, nil
}
func (c *fakeClient) FetchStreamManifest(context.Context, string, int) (*upstream.StreamManifest, error) {
	return &upstream.StreamManifest{Variants: c.variants}, nil
}
func (c *fakeClient) FetchBytes(context.Context, string, int64, int64) ([]byte, error) { return nil, nil }

type noopDownloader struct{}

func (noopDownloader) Download(context.Context, string, string, int) error { return nil }

type noopMuxer struct{}

func (noopMuxer) Mux(context.Context, string, string, string) error { return nil }

type noopMetadata struct{}

func (noopMetadata) RenderItemInfo(context.Context, download.ItemMetadata, string) error { return nil }
func (noopMetadata) RenderUploaderInfo(context.Context, string, string, string) error    { return nil }

type noopDanmaku struct{}

func (noopDanmaku) RenderDanmaku(context.Context, string, string) error { return nil }

type noopSubtitle struct{}

func (noopSubtitle) FetchSubtitle(context.Context, string, string) error { return nil }

type fakeRenderer struct{}

func (fakeRenderer) Render(template string, ctx layout.Context) (string, error) {
	return template + "-" + ctx.Title, nil
}

func newTestScheduler(t *testing.T, client *fakeClient) (*Scheduler, int64) {
	t.Helper()
	pool, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	sourceStore := db.NewSourceStore(pool)
	sourceID, err := sourceStore.Upsert(db.Source{Kind: db.KindFavorite, UpstreamKey: "fid:1", Name: "Favorites", Path: t.TempDir(), Enabled: true})
	if err != nil {
		t.Fatalf("source Upsert: %v", err)
	}

	st := store.New(db.NewItemStore(pool), db.NewPageStore(pool))
	q := queue.New(db.NewQueueStore(pool))
	if err := q.RecoverOnStart(); err != nil {
		t.Fatalf("RecoverOnStart: %v", err)
	}
	gov := ratelimit.New(ratelimit.Config{})

	pipeline := &download.Pipeline{
		Store:      st,
		Client:     client,
		Governor:   gov,
		Queue:      q,
		Renderer:   fakeRenderer{},
		Downloader: noopDownloader{},
		Muxer:      noopMuxer{},
		Metadata:   noopMetadata{},
		Danmaku:    noopDanmaku{},
		Subtitle:   noopSubtitle{},
		Options: download.Options{
			MaxRetries:      3,
			ConcurrentVideo: 2,
			ConcurrentPage:  2,
			Layout: layout.Options{
				VideoName:         "video",
				PageName:          "page",
				MultiPageName:     "multipage",
				BangumiName:       "bangumi",
				MaxComponentBytes: 200,
			},
		},
	}

	s := &Scheduler{
		Sources:  source.New(sourceStore),
		Store:    st,
		Queue:    q,
		Governor: gov,
		Client:   client,
		Pipeline: pipeline,
		Options:  Options{Interval: time.Hour},
	}
	return s, sourceID
}

func TestTickEnumeratesPersistsAndDownloads(t *testing.T) {
	client := &fakeClient{
		favorites: []upstream.CandidateItem{
			{UpstreamID: "bv1", Title: "Video One", PublishTime: time.Now(), FavoriteTime: time.Now()},
		},
		pages: []upstream.CandidatePage{{PID: 1, Title: "Part 1", UpstreamCID: "cid1"}},
		variants: []upstream.StreamVariant{
			{Kind: "video", Codec: "avc", Quality: 1080},
			{Kind: "audio", Codec: "aac", Quality: 320},
		},
	}
	s, sourceID := newTestScheduler(t, client)

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if got := s.Inspect(); got != Idle {
		t.Fatalf("state after Tick = %v, want Idle", got)
	}

	items, err := s.Store.ListBySource(sourceID)
	if err != nil {
		t.Fatalf("ListBySource: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if !status.ItemComplete(items[0].DownloadStatus) {
		t.Fatalf("item status = %#x, want fully complete", items[0].DownloadStatus)
	}
}

func TestTickIsIdempotentOnSecondRun(t *testing.T) {
	client := &fakeClient{
		favorites: []upstream.CandidateItem{
			{UpstreamID: "bv1", Title: "Video One", PublishTime: time.Now(), FavoriteTime: time.Now()},
		},
	}
	s, sourceID := newTestScheduler(t, client)

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("first Tick: %v", err)
	}
	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("second Tick: %v", err)
	}
	items, err := s.Store.ListBySource(sourceID)
	if err != nil {
		t.Fatalf("ListBySource: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d after two ticks, want 1 (idempotent upsert, P2/P8)", len(items))
	}
}

func TestTickRiskControlDuringEnumerationResetsAndContinues(t *testing.T) {
	client := &fakeClient{listErr: upstream.NewClassifiedError(upstream.RiskControl, 0, errRiskControl)}
	s, _ := newTestScheduler(t, client)

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if got := s.Inspect(); got != Idle {
		t.Fatalf("state after aborted Tick = %v, want Idle (cycle must still complete)", got)
	}
}

func TestResetSourcePreservesSucceededSubtasks(t *testing.T) {
	client := &fakeClient{}
	s, sourceID := newTestScheduler(t, client)

	res, err := s.Store.Upsert(store.NewItem{SourceID: sourceID, UpstreamID: "bv9", Name: "Item"})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	word := status.ItemSet(0, status.ItemCover, status.Succeeded)
	word = status.ItemSet(word, status.ItemInfoXML, status.Retrying)
	if err := s.Store.UpdateItemStatus(res.ID, word); err != nil {
		t.Fatalf("UpdateItemStatus: %v", err)
	}

	if err := s.Reset(ResetScope{SourceID: sourceID}, false); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	final, err := s.Store.Get(res.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if status.ItemGet(final.DownloadStatus, status.ItemCover) != status.Succeeded {
		t.Fatal("expected cover to remain Succeeded after a non-forced reset")
	}
	if status.ItemGet(final.DownloadStatus, status.ItemInfoXML) != status.NotStarted {
		t.Fatal("expected info-xml to be reset to NotStarted")
	}
}

type riskControlError string

func (e riskControlError) Error() string { return string(e) }

const errRiskControl = riskControlError("captcha required")
