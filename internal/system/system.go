// Package system builds the injected dependency bag the rest of the module
// is constructed from (§9 REDESIGN FLAG: "an injected SystemContext ...
// instead of ad-hoc package-level singletons"). The teacher has no global
// singletons to replace — each of its packages already takes its own
// dependencies as constructor args (e.g. fetch.New(cfg Config)) — so this
// package generalizes that same idiom up to the whole-process level: one
// place builds every component, nothing reaches for a package-level
// variable.
package system

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/snapetech/bili-sync/internal/config"
	"github.com/snapetech/bili-sync/internal/db"
	"github.com/snapetech/bili-sync/internal/download"
	"github.com/snapetech/bili-sync/internal/httpclient"
	"github.com/snapetech/bili-sync/internal/layout"
	"github.com/snapetech/bili-sync/internal/metrics"
	"github.com/snapetech/bili-sync/internal/notify"
	"github.com/snapetech/bili-sync/internal/queue"
	"github.com/snapetech/bili-sync/internal/ratelimit"
	"github.com/snapetech/bili-sync/internal/scheduler"
	"github.com/snapetech/bili-sync/internal/source"
	"github.com/snapetech/bili-sync/internal/store"
	"github.com/snapetech/bili-sync/internal/upstream"
)

// Context is the full set of dependencies every component is built from.
// Nothing in this module reaches past Context for shared state; main wires
// it once and passes it down by pointer.
type Context struct {
	Env     config.EnvConfig
	Config  *config.Manager
	DB      *db.Pool
	Queue   *queue.Queue
	Rate    *ratelimit.Governor
	Notifier notify.Notifier
	Metrics *metrics.Registry

	Sources   *source.Registry
	Store     *store.Store
	Scheduler *scheduler.Scheduler
}

// New opens the database, builds every store/registry, and wires the
// scheduler together from the current Bundle snapshot. client is the
// caller-supplied UpstreamClient implementation (opaque to the core, §1);
// renderer/downloader/muxer/metadata/danmaku/subtitle are the other
// external collaborators named in §6.
func New(env config.EnvConfig, client upstream.Client, collab download.Collaborators, renderer layout.PathRenderer) (*Context, error) {
	pool, err := db.Open(env.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("system: open database: %w", err)
	}

	configStore := db.NewConfigStore(pool)
	cfg, err := config.NewManager(configStore, env.BundlePath)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("system: load config bundle: %w", err)
	}
	bundle := cfg.Current()

	reg := metrics.New(prometheus.NewRegistry())

	gov := ratelimit.New(ratelimit.Config{
		RateLimit:                      bundle.RateLimit,
		RateDuration:                   bundle.RateDuration,
		BaseRequestDelay:               bundle.BaseRequestDelay,
		EnableProgressiveDelay:         bundle.EnableProgressiveDelay,
		MaxDelayMultiplier:             bundle.MaxDelayMultiplier,
		LargeSubmissionThreshold:       bundle.LargeSubmissionThreshold,
		LargeSubmissionDelayMultiplier: bundle.LargeSubmissionDelayMultiplier,
		SourceDelay:                    bundle.SourceDelay,
		SubmissionSourceDelay:          bundle.SubmissionSourceDelay,
		EnableBatchProcessing:          bundle.EnableBatchProcessing,
		BatchSize:                      bundle.BatchSize,
		BatchDelay:                     bundle.BatchDelay,
		EnableAutoBackoff:              bundle.EnableAutoBackoff,
		AutoBackoffBase:                bundle.AutoBackoffBase,
		AutoBackoffMaxMultiplier:       bundle.AutoBackoffMaxMultiplier,
	})
	gov.Metrics = reg

	q := queue.New(db.NewQueueStore(pool))
	if err := q.RecoverOnStart(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("system: recover queue: %w", err)
	}

	st := store.New(db.NewItemStore(pool), db.NewPageStore(pool))
	sources := source.New(db.NewSourceStore(pool))

	var notifier notify.Notifier
	if env.WebhookURL != "" {
		notifier = &notify.WebhookNotifier{Client: httpclient.Default(), URL: env.WebhookURL}
	}

	pipeline := &download.Pipeline{
		Store:      st,
		Client:     client,
		Governor:   gov,
		Queue:      q,
		Renderer:   renderer,
		Downloader: collab.Downloader,
		Muxer:      collab.Muxer,
		Metadata:   collab.Metadata,
		Danmaku:    collab.Danmaku,
		Subtitle:   collab.Subtitle,
		Metrics:    reg,
		Options: download.Options{
			MaxRetries:              bundle.MaxRetries,
			ConcurrentVideo:         bundle.ConcurrentVideo,
			ConcurrentPage:          bundle.ConcurrentPage,
			UpperPath:               bundle.UpperPath,
			ParallelDownloadEnabled: bundle.ParallelDownloadEnabled,
			ParallelDownloadThreads: bundle.ParallelDownloadThreads,
			NFOTimeType:             bundle.NFOTimeType,
			TimeFormat:              bundle.TimeFormat,
			Select: download.SelectOptions{
				VideoMaxQuality: bundle.VideoMaxQuality,
				VideoMinQuality: bundle.VideoMinQuality,
				AudioMaxQuality: bundle.AudioMaxQuality,
				AudioMinQuality: bundle.AudioMinQuality,
				Codecs:          bundle.Codecs,
				NoDolbyVideo:    bundle.NoDolbyVideo,
				NoDolbyAudio:    bundle.NoDolbyAudio,
				NoHDR:           bundle.NoHDR,
				NoHiRes:         bundle.NoHiRes,
				CDNSorting:      bundle.CDNSorting,
			},
			Layout: layout.Options{
				VideoName:                    bundle.VideoName,
				PageName:                     bundle.PageName,
				MultiPageName:                bundle.MultiPageName,
				BangumiName:                  bundle.BangumiName,
				FolderStructure:              bundle.FolderStructure,
				BangumiFolderName:            bundle.BangumiFolderName,
				CollectionFolderMode:         bundle.CollectionFolderMode,
				MultiPageUseSeasonStructure:  bundle.MultiPageUseSeasonStructure,
				CollectionUseSeasonStructure: bundle.CollectionUseSeasonStructure,
				BangumiUseSeasonStructure:    bundle.BangumiUseSeasonStructure,
				MaxComponentBytes:            255,
			},
		},
	}

	sched := &scheduler.Scheduler{
		Sources:       sources,
		Store:         st,
		Queue:         q,
		Governor:      gov,
		Client:        client,
		Pipeline:      pipeline,
		Notifier:      notifier,
		ConfigApplier: cfg,
		Metrics:       reg,
		Options: scheduler.Options{
			Interval:             bundle.Interval,
			AdvanceCursorOnAbort: bundle.AdvanceCursorOnAbort,
		},
	}

	return &Context{
		Env:       env,
		Config:    cfg,
		DB:        pool,
		Queue:     q,
		Rate:      gov,
		Notifier:  notifier,
		Metrics:   reg,
		Sources:   sources,
		Store:     st,
		Scheduler: sched,
	}, nil
}

// Close releases the database connection pool.
func (c *Context) Close() error {
	return c.DB.Close()
}
