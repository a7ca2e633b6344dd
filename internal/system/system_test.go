package system

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/snapetech/bili-sync/internal/config"
	"github.com/snapetech/bili-sync/internal/download"
	"github.com/snapetech/bili-sync/internal/layout"
	"github.com/snapetech/bili-sync/internal/upstream"
)

type fakeClient struct{}

func (fakeClient) ListFavorite(context.Context, string, int) (*upstream.ListPage, error) {
	return &upstream.ListPage{}, nil
}
func (fakeClient) ListCollection(context.Context, string, string, string, int) (*upstream.ListPage, error) {
	return &upstream.ListPage{}, nil
}
func (fakeClient) ListSubmissions(context.Context, string, int) (*upstream.ListPage, error) {
	return &upstream.ListPage{}, nil
}
func (fakeClient) ListWatchLater(context.Context) (*upstream.ListPage, error) {
	return &upstream.ListPage{}, nil
}
func (fakeClient) ListSeasonEpisodes(context.Context, string) (*upstream.ListPage, error) {
	return &upstream.ListPage{}, nil
}
func (fakeClient) FetchItemDetail(context.Context, string) (*upstream.ItemDetail, error) {
	return &upstream.ItemDetail{}, nil
}
func (fakeClient) FetchStreamManifest(context.Context, string, int) (*upstream.StreamManifest, error) {
	return &upstream.StreamManifest{}, nil
}
func (fakeClient) FetchBytes(context.Context, string, int64, int64) ([]byte, error) { return nil, nil }

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

func TestNewWiresEveryComponent(t *testing.T) {
	dir := t.TempDir()
	env := config.EnvConfig{
		DatabasePath: filepath.Join(dir, "test.db"),
		BundlePath:   filepath.Join(dir, "bundle.yaml"),
	}
	collab := download.Collaborators{
		Downloader: noopDownloader{},
		Muxer:      noopMuxer{},
		Metadata:   noopMetadata{},
		Danmaku:    noopDanmaku{},
		Subtitle:   noopSubtitle{},
	}

	ctx, err := New(env, fakeClient{}, collab, layout.TemplateRenderer{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ctx.Close()

	if ctx.Scheduler == nil {
		t.Fatal("Scheduler not wired")
	}
	if ctx.Scheduler.Pipeline == nil {
		t.Fatal("Scheduler.Pipeline not wired")
	}
	if ctx.Metrics == nil {
		t.Fatal("Metrics not wired")
	}
	if ctx.Notifier != nil {
		t.Fatal("Notifier should be nil when no webhook URL is configured")
	}
}

func TestNewWiresWebhookNotifierWhenURLConfigured(t *testing.T) {
	dir := t.TempDir()
	env := config.EnvConfig{
		DatabasePath: filepath.Join(dir, "test.db"),
		BundlePath:   filepath.Join(dir, "bundle.yaml"),
		WebhookURL:   "http://example.invalid/hook",
	}
	collab := download.Collaborators{
		Downloader: noopDownloader{},
		Muxer:      noopMuxer{},
		Metadata:   noopMetadata{},
		Danmaku:    noopDanmaku{},
		Subtitle:   noopSubtitle{},
	}

	ctx, err := New(env, fakeClient{}, collab, layout.TemplateRenderer{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ctx.Close()

	if ctx.Notifier == nil {
		t.Fatal("Notifier should be wired when a webhook URL is configured")
	}
}
