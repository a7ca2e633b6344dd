package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/snapetech/bili-sync/internal/db"
	"github.com/snapetech/bili-sync/internal/download"
	"github.com/snapetech/bili-sync/internal/enumerate"
	"github.com/snapetech/bili-sync/internal/metrics"
	"github.com/snapetech/bili-sync/internal/notify"
	"github.com/snapetech/bili-sync/internal/queue"
	"github.com/snapetech/bili-sync/internal/ratelimit"
	"github.com/snapetech/bili-sync/internal/source"
	"github.com/snapetech/bili-sync/internal/store"
	"github.com/snapetech/bili-sync/internal/upstream"
)

// Options is the subset of the configuration bundle the scheduler consumes
// directly (§6, §9 Open Question decisions).
type Options struct {
	Interval time.Duration

	// AdvanceCursorOnAbort decides whether latest_seen_at advances on a
	// cycle that enumerated successfully but was risk-control-aborted
	// during download. Default false: don't advance, re-enumerate next
	// tick (see DESIGN.md Open Question decision).
	AdvanceCursorOnAbort bool
}

// Scheduler is the Scan Scheduler (C9) plus Risk-Control Recovery (C10).
// The zero value is not usable; every field is normally set once by
// internal/system's construction in main.
type Scheduler struct {
	Sources  *source.Registry
	Store    *store.Store
	Queue    *queue.Queue
	Governor *ratelimit.Governor
	Client   upstream.Client
	Pipeline *download.Pipeline

	EnumerateOptions enumerate.Options
	Notifier         notify.Notifier
	ConfigApplier    ConfigApplier
	Metrics          *metrics.Registry

	Options Options

	state stateBox
}

// Inspect returns the scheduler's current lifecycle state (§9 REDESIGN
// FLAG: an explicit state machine instead of ad-hoc boolean flags).
func (s *Scheduler) Inspect() State { return s.state.Inspect() }

// Run drives the tick loop until ctx is cancelled (§4.9): the interval
// timer and the cycle body never overlap — the next sleep starts only
// after the current cycle (including queue drain and notification)
// finishes.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Tick(ctx); err != nil {
			log.Printf("scheduler: tick failed: %v", err)
		}
		if err := sleepCtx(ctx, s.interval()); err != nil {
			return nil
		}
	}
}

func (s *Scheduler) interval() time.Duration {
	if s.Options.Interval <= 0 {
		return time.Minute
	}
	return s.Options.Interval
}

// Tick runs exactly one scheduler cycle (§4.9 steps 1-6): scan every
// enabled source, drain the durable queue, then fire the notification
// hook. It never blocks past ctx cancellation except to let in-flight
// per-item work observe the cancel signal cooperatively.
func (s *Scheduler) Tick(ctx context.Context) error {
	start := time.Now()
	s.state.set(Scanning)
	s.Queue.SetScanning(true)

	summary := notify.Summary{NewItemsBySource: map[string]int{}}
	aborted := s.scanSources(ctx, summary)

	s.Queue.SetScanning(false)
	s.state.set(DrainingQueue)
	if err := s.Queue.DrainAll(ctx, s.taskRunners()); err != nil {
		log.Printf("scheduler: drain queue: %v", err)
	}

	summary.Duration = time.Since(start)
	summary.Aborted = aborted
	notify.Notify(ctx, s.Notifier, summary)
	s.Metrics.ObserveCycleSeconds(summary.Duration.Seconds(), aborted)

	s.state.set(Idle)
	return nil
}

// scanSources runs §4.9 step 3 across every enabled source, ordered by
// last-scan-ascending, and reports whether a risk-control abort cut the
// loop short.
func (s *Scheduler) scanSources(ctx context.Context, summary notify.Summary) bool {
	sources, err := s.Sources.ListEnabled()
	if err != nil {
		log.Printf("scheduler: list enabled sources: %v", err)
		return false
	}
	sortByLastScanAscending(sources)

	for _, src := range sources {
		if ctx.Err() != nil {
			return false
		}
		if s.runSourceCycle(ctx, src, summary) {
			return true
		}
		if err := s.Sources.TouchScanned(src.ID); err != nil {
			log.Printf("scheduler: touch scanned source %d: %v", src.ID, err)
		}
		delay := s.Governor.InterSourceDelay(src.Kind == db.KindUserSubmission)
		if err := sleepCtx(ctx, delay); err != nil {
			return false
		}
	}
	return false
}

// runSourceCycle runs enumerate→persist→download for one source (§4.9 step
// 3a-3b). It returns true if a RiskControl verdict aborted the cycle.
func (s *Scheduler) runSourceCycle(ctx context.Context, src db.Source, summary notify.Summary) bool {
	enumerator, err := enumerate.For(src.Kind, s.Client, s.Governor, s.EnumerateOptions)
	if err != nil {
		log.Printf("scheduler: build enumerator for source %d (%s): %v", src.ID, src.Kind, err)
		return false
	}

	result, err := enumerator.Enumerate(ctx, src)
	if err != nil {
		if upstream.VerdictOf(err) == upstream.RiskControl {
			s.handleRiskControlAbort(src)
			return true
		}
		log.Printf("scheduler: enumerate source %d (%s): %v", src.ID, src.Name, err)
		return false
	}

	newCount := s.persistCandidates(src, result.Items)
	summary.NewItemsBySource[src.Name] += newCount

	isBangumi := src.Kind == db.KindBangumi
	isCollection := src.Kind == db.KindUserCollection
	aborted := false
	if err := s.Pipeline.RunSource(ctx, src, isBangumi, isCollection); err != nil {
		if errors.Is(err, upstream.ErrAbortPipeline) {
			s.handleRiskControlAbort(src)
			aborted = true
		} else {
			log.Printf("scheduler: download pipeline for source %d: %v", src.ID, err)
		}
	}

	// Only commit the enumeration cursor once the download phase has run to
	// completion without a risk-control abort, unless AdvanceCursorOnAbort
	// opts into the optimistic behavior — otherwise a cycle that enumerated
	// fine but got cut short mid-download would silently skip the items it
	// never finished downloading (§9 Open Question).
	if !result.NewCursor.IsZero() && (!aborted || s.Options.AdvanceCursorOnAbort) {
		if err := s.Sources.AdvanceCursor(src.ID, result.NewCursor); err != nil {
			log.Printf("scheduler: advance cursor for source %d: %v", src.ID, err)
		}
	}

	return aborted
}

// persistCandidates upserts every enumerated candidate item (idempotent;
// §4.7, P2/P8) and reports how many were newly inserted.
func (s *Scheduler) persistCandidates(src db.Source, items []upstream.CandidateItem) int {
	newCount := 0
	for _, cand := range items {
		ni := store.NewItem{
			SourceID:     src.ID,
			UpstreamID:   candidateUpstreamID(cand),
			Name:         cand.Title,
			Cover:        cand.CoverURL,
			UploaderID:   cand.UploaderID,
			UploaderName: cand.UploaderName,
			SeasonNumber: cand.SeasonNumber,
		}
		if !cand.PublishTime.IsZero() {
			t := cand.PublishTime
			ni.PubTime = &t
		}
		if !cand.FavoriteTime.IsZero() {
			t := cand.FavoriteTime
			ni.FavTime = &t
		}
		res, err := s.Store.Upsert(ni)
		if err != nil {
			log.Printf("scheduler: persist item %q for source %d: %v", ni.UpstreamID, src.ID, err)
			continue
		}
		if res.Inserted {
			newCount++
		}
	}
	return newCount
}

// candidateUpstreamID picks the stable identifier (§3: bvid for general
// sources, ep_id+season_id for bangumi).
func candidateUpstreamID(cand upstream.CandidateItem) string {
	if cand.EpisodeID != "" {
		return fmt.Sprintf("%s:%s", cand.SeasonID, cand.EpisodeID)
	}
	return cand.UpstreamID
}

func sortByLastScanAscending(sources []db.Source) {
	sort.SliceStable(sources, func(i, j int) bool {
		a, b := sources[i].LastScanAt, sources[j].LastScanAt
		switch {
		case a == nil && b == nil:
			return false
		case a == nil:
			return true
		case b == nil:
			return false
		default:
			return a.Before(*b)
		}
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
