package download

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/snapetech/bili-sync/internal/db"
	"github.com/snapetech/bili-sync/internal/layout"
	"github.com/snapetech/bili-sync/internal/status"
	"github.com/snapetech/bili-sync/internal/store"
	"github.com/snapetech/bili-sync/internal/upstream"
)

// runPagesAggregate is the item's 5th subtask (§4.8 step 5): it materializes
// the item's pages on first run, then runs each page's 5-subtask DAG through
// a pool bounded by concurrent_page. It returns upstream.ErrAbortPipeline if
// any page hit RiskControl; any other page failure is absorbed into a
// non-nil error so the caller marks pages-aggregate Failed, without
// stopping sibling pages.
func (p *Pipeline) runPagesAggregate(ctx context.Context, src db.Source, it db.Item, itemRoot string, allItems []db.Item, isCollection bool) error {
	pages, err := p.Store.PagesOf(it.ID)
	if err != nil {
		return fmt.Errorf("download: list pages for item %d: %w", it.ID, err)
	}
	if len(pages) == 0 {
		pages, err = p.materializePages(ctx, src, it)
		if err != nil {
			return fmt.Errorf("download: materialize pages for item %d: %w", it.ID, err)
		}
	}
	if len(pages) == 0 {
		return nil
	}

	limit := p.Options.ConcurrentPage
	if limit <= 0 {
		limit = 1
	}
	sem := make(chan struct{}, limit)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failed   bool
		aborted  error
	)
	isMultiPage := len(pages) > 1
	for _, pg := range pages {
		if runCtx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(pg db.Page) {
			defer wg.Done()
			defer func() { <-sem }()
			err := p.RunPage(runCtx, src, it, pg, itemRoot, allItems, isMultiPage, isCollection)
			if err == nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, upstream.ErrAbortPipeline) {
				if aborted == nil {
					aborted = err
				}
				cancel()
				return
			}
			failed = true
		}(pg)
	}
	wg.Wait()

	if aborted != nil {
		return aborted
	}
	if failed {
		return fmt.Errorf("download: item %d: one or more pages failed", it.ID)
	}
	return nil
}

func (p *Pipeline) materializePages(ctx context.Context, src db.Source, it db.Item) ([]db.Page, error) {
	if err := p.beforeRequest(ctx, src.ID, false); err != nil {
		return nil, err
	}
	detail, err := p.Client.FetchItemDetail(ctx, it.UpstreamID)
	if err != nil {
		return nil, err
	}
	for _, cp := range detail.Pages {
		if _, err := p.Store.CreatePage(storeNewPage(it.ID, cp)); err != nil {
			return nil, err
		}
	}
	return p.Store.PagesOf(it.ID)
}

// RunPage runs one page's 5-subtask DAG: video-stream, audio-stream,
// danmaku-overlay, subtitle, mux. mux is ordered after the two stream
// subtasks succeed (§5: "pages-aggregate is ordered after per-page mux
// completion" — here, mux itself is ordered after its own inputs).
func (p *Pipeline) RunPage(ctx context.Context, src db.Source, it db.Item, pg db.Page, itemRoot string, allItems []db.Item, isMultiPage, isCollection bool) error {
	word := pg.DownloadStatus

	pagePath, err := p.pagePath(src, it, pg, itemRoot, allItems, isMultiPage, isCollection)
	if err != nil {
		return fmt.Errorf("download: page %d path: %w", pg.ID, err)
	}

	videoPath := pagePath + ".video.m4s"
	audioPath := pagePath + ".audio.m4s"

	var abort error
	run := func(t status.PageSubtask, fn SubtaskFunc) bool {
		current := status.PageGet(word, t)
		if current == status.Succeeded {
			log.Printf("download: page %d subtask %s already succeeded, skipping", pg.ID, t)
			return true
		}
		outcome := RunSubtask(ctx, fn, p.Options.MaxRetries, func() {
			if p.Governor != nil {
				p.Governor.RecordOutcome(src.ID, upstream.RateLimit)
			}
		})
		word = status.PageSet(word, t, outcome.State)
		p.Metrics.ObserveSubtaskResult(t.String(), outcome.State.String())
		if err := p.Store.UpdatePageStatus(pg.ID, word); err != nil {
			log.Printf("download: persist page %d subtask %s: %v", pg.ID, t, err)
		}
		if outcome.ChargeOnly {
			if err := p.emitDeleteItem(it.ID); err != nil {
				log.Printf("download: item %d emit DeleteItem from page %d: %v", it.ID, pg.ID, err)
			}
		}
		if outcome.Abort {
			abort = upstream.ErrAbortPipeline
			return false
		}
		return outcome.State == status.Succeeded
	}

	videoOK := run(status.PageVideoStream, func(ctx context.Context) error {
		return p.fetchStream(ctx, src, it, pg, "video", videoPath)
	})
	if abort != nil {
		return abort
	}
	audioOK := run(status.PageAudioStream, func(ctx context.Context) error {
		return p.fetchStream(ctx, src, it, pg, "audio", audioPath)
	})
	if abort != nil {
		return abort
	}
	run(status.PageDanmakuOverlay, func(ctx context.Context) error {
		return classifyCollaboratorErr(p.Danmaku.RenderDanmaku(ctx, pg.CID, pagePath+".xml"))
	})
	if abort != nil {
		return abort
	}
	run(status.PageSubtitle, func(ctx context.Context) error {
		return classifyCollaboratorErr(p.Subtitle.FetchSubtitle(ctx, pg.CID, pagePath+".srt"))
	})
	if abort != nil {
		return abort
	}

	muxOK := run(status.PageMux, func(ctx context.Context) error {
		if !videoOK || !audioOK {
			return upstream.NewClassifiedError(upstream.Other, 0, fmt.Errorf("mux: missing video or audio stream"))
		}
		return classifyCollaboratorErr(p.Muxer.Mux(ctx, videoPath, audioPath, pagePath))
	})
	if abort != nil {
		return abort
	}
	if !muxOK {
		return fmt.Errorf("download: page %d: mux did not succeed", pg.ID)
	}
	return nil
}

func (p *Pipeline) fetchStream(ctx context.Context, src db.Source, it db.Item, pg db.Page, kind, dest string) error {
	if err := p.beforeRequest(ctx, src.ID, false); err != nil {
		return classifyCollaboratorErr(err)
	}
	manifest, err := p.Client.FetchStreamManifest(ctx, it.UpstreamID, pg.PID)
	if err != nil {
		return err
	}
	var variant upstream.StreamVariant
	var ok bool
	if kind == "video" {
		variant, ok = SelectVideo(manifest.Variants, p.Options.Select)
	} else {
		variant, ok = SelectAudio(manifest.Variants, p.Options.Select)
	}
	if !ok {
		return upstream.NewClassifiedError(upstream.Other, 0, fmt.Errorf("no acceptable %s variant", kind))
	}
	if err := p.beforeRequest(ctx, src.ID, false); err != nil {
		return classifyCollaboratorErr(err)
	}
	return classifyCollaboratorErr(p.Downloader.Download(ctx, variant.URL, dest, p.Options.segments()))
}

// pagePath derives where this page's final muxed file belongs, applying the
// unified-collection forced filename when it's assignable (§4.8).
func (p *Pipeline) pagePath(src db.Source, it db.Item, pg db.Page, itemRoot string, allItems []db.Item, isMultiPage, isCollection bool) (string, error) {
	if pg.Path != "" {
		return pg.Path, nil
	}
	ctx := p.itemContext(it)
	ctx.Title = pg.Name

	forceUnified := isCollection && p.Options.Layout.CollectionFolderMode == layout.ModeUnified
	if forceUnified {
		if number, ok := AssignEpisodeNumber(allItems, it.ID); ok {
			ctx.EpisodeNumber = number
		} else {
			forceUnified = false
		}
	}

	path, err := layout.BuildPagePath(p.Renderer, p.Options.Layout, itemRoot, ctx, isMultiPage, forceUnified)
	if err != nil {
		return "", err
	}
	if err := p.Store.UpdatePagePath(pg.ID, path); err != nil {
		return "", err
	}
	return path, nil
}

func storeNewPage(itemID int64, cp upstream.CandidatePage) store.NewPage {
	return store.NewPage{
		VideoID:  itemID,
		PID:      cp.PID,
		Name:     cp.Title,
		CID:      cp.UpstreamCID,
		Duration: cp.Duration,
		Width:    cp.Width,
		Height:   cp.Height,
	}
}
