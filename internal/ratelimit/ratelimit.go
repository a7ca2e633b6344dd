// Package ratelimit is the process-wide Rate Governor (C3): a global
// request-rate limiter plus per-source progressive delay and auto-backoff,
// shaping upstream call emission without retrying on the caller's behalf
// (§4.3). Grounded on the teacher's internal/httpclient.HostSemaphore
// per-host map, generalized from "host" to "source", and its
// DoWithRetry/RetryPolicy backoff-growth pattern, generalized from a single
// retry loop to a standing per-source multiplier.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/snapetech/bili-sync/internal/metrics"
	"github.com/snapetech/bili-sync/internal/upstream"
)

// Config is the subset of the configuration bundle the Governor consumes
// (§6).
type Config struct {
	RateLimit    int           // requests
	RateDuration time.Duration // per this duration

	BaseRequestDelay               time.Duration
	EnableProgressiveDelay         bool
	MaxDelayMultiplier             float64
	LargeSubmissionThreshold       int
	LargeSubmissionDelayMultiplier float64

	SourceDelay           time.Duration
	SubmissionSourceDelay time.Duration

	EnableBatchProcessing bool
	BatchSize             int
	BatchDelay            time.Duration

	EnableAutoBackoff        bool
	AutoBackoffBase          time.Duration
	AutoBackoffMaxMultiplier float64
}

// sourceState is the mutable per-source progress the progressive-delay and
// auto-backoff rules need: how many requests this source has made in the
// current run, and how far its backoff multiplier has climbed.
type sourceState struct {
	requestCount      int
	backoffMultiplier float64
}

// Governor coordinates upstream traffic process-wide. The zero value is not
// usable; construct with New.
type Governor struct {
	cfg    Config
	global *rate.Limiter

	// Metrics is optional; when set, RecordOutcome publishes the
	// resulting per-source backoff multiplier for operator visibility.
	Metrics *metrics.Registry

	mu      sync.Mutex
	sources map[int64]*sourceState
}

// New builds a Governor from cfg. A RateLimit/RateDuration of zero disables
// the global limiter (unbounded), matching an operator who hasn't set one.
func New(cfg Config) *Governor {
	g := &Governor{cfg: cfg, sources: make(map[int64]*sourceState)}
	if cfg.RateLimit > 0 && cfg.RateDuration > 0 {
		perSecond := float64(cfg.RateLimit) / cfg.RateDuration.Seconds()
		g.global = rate.NewLimiter(rate.Limit(perSecond), cfg.RateLimit)
	}
	return g
}

func (g *Governor) state(sourceID int64) *sourceState {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.sources[sourceID]
	if !ok {
		st = &sourceState{backoffMultiplier: 1}
		g.sources[sourceID] = st
	}
	return st
}

// BeforeRequest blocks until the global limiter admits one request and the
// per-source progressive delay (including any standing backoff) has
// elapsed, then records the request against sourceID's counters. Callers
// invoke this immediately before every enumeration/fetch call on a source.
func (g *Governor) BeforeRequest(ctx context.Context, sourceID int64, isLarge bool) error {
	if g.global != nil {
		if err := g.global.Wait(ctx); err != nil {
			return err
		}
	}
	st := g.state(sourceID)
	delay := g.sourceDelay(st, isLarge)
	st.requestCount++
	if delay <= 0 {
		return nil
	}
	return sleepCtx(ctx, delay)
}

// sourceDelay computes the delay before this source's next request, per
// §4.3: base delay, scaled linearly by in-run request count when progressive
// delay is enabled (capped at max_delay_multiplier), multiplied again for a
// "large" source, and finally multiplied by the standing auto-backoff
// factor.
func (g *Governor) sourceDelay(st *sourceState, isLarge bool) time.Duration {
	delay := g.cfg.BaseRequestDelay
	if delay <= 0 {
		return scaleDuration(0, st.backoffMultiplier)
	}
	multiplier := 1.0
	if g.cfg.EnableProgressiveDelay {
		step := 1.0 + float64(st.requestCount)
		if g.cfg.MaxDelayMultiplier > 0 && step > g.cfg.MaxDelayMultiplier {
			step = g.cfg.MaxDelayMultiplier
		}
		multiplier = step
	}
	if isLarge && g.cfg.LargeSubmissionDelayMultiplier > 0 {
		multiplier *= g.cfg.LargeSubmissionDelayMultiplier
	}
	multiplier *= st.backoffMultiplier
	return scaleDuration(delay, multiplier)
}

func scaleDuration(d time.Duration, factor float64) time.Duration {
	if factor <= 1 {
		return d
	}
	return time.Duration(float64(d) * factor)
}

// RecordOutcome updates sourceID's auto-backoff multiplier from a
// classified verdict (§4.3): RateLimit/RiskControl double it (to at least
// 2), capped at auto_backoff_max_multiplier; any other verdict resets it to
// 1 (no standing backoff). The multiplier scales the per-source delay built
// from BaseRequestDelay; AutoBackoffBase is not read, so with a zero
// BaseRequestDelay the backoff adds no wait.
func (g *Governor) RecordOutcome(sourceID int64, verdict upstream.Verdict) {
	if !g.cfg.EnableAutoBackoff {
		return
	}
	st := g.state(sourceID)
	g.mu.Lock()
	switch verdict {
	case upstream.RateLimit, upstream.RiskControl:
		next := st.backoffMultiplier * 2
		if g.cfg.AutoBackoffMaxMultiplier > 0 && next > g.cfg.AutoBackoffMaxMultiplier {
			next = g.cfg.AutoBackoffMaxMultiplier
		}
		if next < 2 {
			next = 2
		}
		st.backoffMultiplier = next
	default:
		st.backoffMultiplier = 1
	}
	multiplier := st.backoffMultiplier
	g.mu.Unlock()
	g.Metrics.SetBackoffMultiplier(sourceID, multiplier)
}

// InterSourceDelay returns how long to wait after finishing one source
// before starting the next (§4.3), using the submission-specific delay for
// creator-submission sources.
func (g *Governor) InterSourceDelay(isSubmission bool) time.Duration {
	if isSubmission && g.cfg.SubmissionSourceDelay > 0 {
		return g.cfg.SubmissionSourceDelay
	}
	return g.cfg.SourceDelay
}

// Reset drops a source's in-run request count, called once per scheduler
// tick before re-enumerating a source so progressive delay restarts from
// the base on every cycle rather than climbing forever.
func (g *Governor) Reset(sourceID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.sources, sourceID)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
