// Package download is the Download Pipeline (C8): a per-item worker pool
// running each item's 5-subtask DAG, with a nested per-page worker pool
// running each page's 5-subtask DAG, against the external Downloader/
// Muxer/MetadataRenderer/DanmakuRenderer/SubtitleFetcher collaborators
// (§1, §6 — the core decides what/where/how-parallel, never issues raw
// bytes-on-the-wire itself).
//
// Grounded on the teacher's internal/materializer (segmented HTTP fetch
// shape, adapted into httpdownload.go's concrete Downloader) and
// internal/supervisor's bounded-concurrency worker-pool pattern, generalized
// from "N child processes" to "N concurrent item/page downloads".
package download

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/snapetech/bili-sync/internal/db"
	"github.com/snapetech/bili-sync/internal/layout"
	"github.com/snapetech/bili-sync/internal/metrics"
	"github.com/snapetech/bili-sync/internal/queue"
	"github.com/snapetech/bili-sync/internal/ratelimit"
	"github.com/snapetech/bili-sync/internal/status"
	"github.com/snapetech/bili-sync/internal/store"
	"github.com/snapetech/bili-sync/internal/upstream"
)

// Options is the subset of the configuration bundle the pipeline consumes
// directly (§6); layout/selection options are nested since C2/C8 already
// define their own shapes.
type Options struct {
	MaxRetries      int
	ConcurrentVideo int
	ConcurrentPage  int
	UpperPath       string

	ParallelDownloadEnabled bool
	ParallelDownloadThreads int

	NFOTimeType string
	TimeFormat  string

	Select SelectOptions
	Layout layout.Options
}

func (o Options) segments() int {
	if o.ParallelDownloadEnabled && o.ParallelDownloadThreads > 0 {
		return o.ParallelDownloadThreads
	}
	return 1
}

// Pipeline wires the Download Pipeline's collaborators together. The zero
// value is not usable; every field except Governor and Metrics, which may
// be nil, must be set by the caller (normally internal/system's
// construction in main).
type Pipeline struct {
	Store    *store.Store
	Client   upstream.Client
	Governor *ratelimit.Governor
	Queue    *queue.Queue
	Renderer layout.PathRenderer

	Downloader Downloader
	Muxer      Muxer
	Metadata   MetadataRenderer
	Danmaku    DanmakuRenderer
	Subtitle   SubtitleFetcher

	// Metrics is optional; when set, every terminal subtask outcome is
	// published for operator visibility.
	Metrics *metrics.Registry

	Options Options
}

// RunSource runs the download half of one scheduler tick's per-source step
// (§4.9 step 3b): every runnable item of src, bounded by concurrent_video.
// A RiskControl abort from any item stops admitting new items and returns
// upstream.ErrAbortPipeline once every already-admitted item has finished
// its current subtask attempt.
func (p *Pipeline) RunSource(ctx context.Context, src db.Source, isBangumi, isCollection bool) error {
	items, err := p.Store.ListRunnable(src.ID)
	if err != nil {
		return fmt.Errorf("download: list runnable items for source %d: %w", src.ID, err)
	}
	allItems, err := p.Store.ListBySource(src.ID)
	if err != nil {
		return fmt.Errorf("download: list items for source %d: %w", src.ID, err)
	}

	limit := p.Options.ConcurrentVideo
	if limit <= 0 {
		limit = 1
	}
	sem := make(chan struct{}, limit)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		aborted error
	)
	for _, it := range items {
		if runCtx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(it db.Item) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := p.RunItem(runCtx, src, it, allItems, isBangumi, isCollection); err != nil {
				if errors.Is(err, upstream.ErrAbortPipeline) {
					mu.Lock()
					if aborted == nil {
						aborted = err
					}
					mu.Unlock()
					cancel()
					return
				}
				// Non-abort per-item errors are already persisted as Failed
				// subtask state; nothing further to propagate (§7: "the
				// cycle continues with other items").
			}
		}(it)
	}
	wg.Wait()
	return aborted
}

// itemRoot derives the item's root directory and persists it, so repeated
// runs (and the page subtasks below) don't re-render the template.
func (p *Pipeline) itemRoot(src db.Source, it db.Item, isBangumi bool) (string, error) {
	if it.Path != "" {
		return it.Path, nil
	}
	ctx := p.itemContext(it)
	root, err := layout.BuildItemRoot(p.Renderer, p.Options.Layout, src.Path, ctx, isBangumi)
	if err != nil {
		return "", err
	}
	if err := p.Store.UpdateItemPath(it.ID, root); err != nil {
		return "", err
	}
	return root, nil
}

func (p *Pipeline) itemContext(it db.Item) layout.Context {
	c := layout.Context{
		Title:         it.Name,
		UploaderName:  it.UploaderName,
		UploaderID:    it.UploaderID,
		SeasonNumber:  it.SeasonNumber,
		EpisodeNumber: it.EpisodeNumber,
		NFOTimeType:   p.Options.NFOTimeType,
		TimeFormat:    p.Options.TimeFormat,
	}
	if it.PubTime != nil {
		c.PubTime = *it.PubTime
	}
	if it.FavTime != nil {
		c.FavTime = *it.FavTime
	}
	return c
}

// beforeRequest gates an outgoing HTTP call through the rate governor
// (§2, §4.3: every subtask's request is throttled by C3, not just
// enumeration's). A nil Governor is a no-op, matching internal/enumerate's
// own convention.
func (p *Pipeline) beforeRequest(ctx context.Context, sourceID int64, isLarge bool) error {
	if p.Governor == nil {
		return nil
	}
	return p.Governor.BeforeRequest(ctx, sourceID, isLarge)
}

func coverDestination(root, coverURL string) string {
	ext := filepath.Ext(coverURL)
	if ext == "" {
		ext = ".jpg"
	}
	return filepath.Join(root, "cover"+ext)
}
