package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/snapetech/bili-sync/internal/upstream"
)

func TestSourceDelayProgressiveScalesUp(t *testing.T) {
	g := New(Config{
		BaseRequestDelay:       10 * time.Millisecond,
		EnableProgressiveDelay: true,
		MaxDelayMultiplier:     3,
	})
	st := g.state(1)

	first := g.sourceDelay(st, false)
	st.requestCount = 5 // beyond the cap
	capped := g.sourceDelay(st, false)

	if first != 10*time.Millisecond {
		t.Fatalf("first delay = %v, want 10ms", first)
	}
	if capped != 30*time.Millisecond {
		t.Fatalf("capped delay = %v, want 30ms (3x base)", capped)
	}
}

func TestSourceDelayLargeSubmissionMultiplier(t *testing.T) {
	g := New(Config{
		BaseRequestDelay:               10 * time.Millisecond,
		LargeSubmissionDelayMultiplier: 4,
	})
	st := g.state(1)
	got := g.sourceDelay(st, true)
	if got != 40*time.Millisecond {
		t.Fatalf("large-submission delay = %v, want 40ms", got)
	}
}

func TestRecordOutcomeGrowsAndResetsBackoff(t *testing.T) {
	g := New(Config{
		EnableAutoBackoff:        true,
		AutoBackoffBase:          time.Second,
		AutoBackoffMaxMultiplier: 8,
	})
	g.RecordOutcome(1, upstream.RateLimit)
	st := g.state(1)
	if st.backoffMultiplier != 2 {
		t.Fatalf("after one RateLimit verdict, multiplier = %v, want 2", st.backoffMultiplier)
	}
	g.RecordOutcome(1, upstream.RiskControl)
	if st.backoffMultiplier != 4 {
		t.Fatalf("after two backoff verdicts, multiplier = %v, want 4", st.backoffMultiplier)
	}
	g.RecordOutcome(1, upstream.Ok)
	if st.backoffMultiplier != 1 {
		t.Fatalf("after Ok verdict, multiplier = %v, want reset to 1", st.backoffMultiplier)
	}
}

func TestRecordOutcomeCapsAtMaxMultiplier(t *testing.T) {
	g := New(Config{EnableAutoBackoff: true, AutoBackoffMaxMultiplier: 3})
	for i := 0; i < 10; i++ {
		g.RecordOutcome(1, upstream.RateLimit)
	}
	st := g.state(1)
	if st.backoffMultiplier != 3 {
		t.Fatalf("multiplier = %v, want capped at 3", st.backoffMultiplier)
	}
}

func TestInterSourceDelayUsesSubmissionVariant(t *testing.T) {
	g := New(Config{SourceDelay: 5 * time.Second, SubmissionSourceDelay: 30 * time.Second})
	if got := g.InterSourceDelay(false); got != 5*time.Second {
		t.Errorf("InterSourceDelay(false) = %v, want 5s", got)
	}
	if got := g.InterSourceDelay(true); got != 30*time.Second {
		t.Errorf("InterSourceDelay(true) = %v, want 30s", got)
	}
}

func TestBatchPlanDisabledReturnsSingleBatch(t *testing.T) {
	g := New(Config{})
	plan := g.BatchPlan(17)
	if len(plan) != 1 || plan[0] != [2]int{0, 17} {
		t.Fatalf("BatchPlan = %v, want single [0,17] batch", plan)
	}
}

func TestBatchPlanChunksBySize(t *testing.T) {
	g := New(Config{EnableBatchProcessing: true, BatchSize: 5})
	plan := g.BatchPlan(12)
	want := [][2]int{{0, 5}, {5, 10}, {10, 12}}
	if len(plan) != len(want) {
		t.Fatalf("BatchPlan returned %d batches, want %d", len(plan), len(want))
	}
	for i := range want {
		if plan[i] != want[i] {
			t.Errorf("batch[%d] = %v, want %v", i, plan[i], want[i])
		}
	}
}

func TestBeforeRequestRespectsContextCancellation(t *testing.T) {
	g := New(Config{BaseRequestDelay: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := g.BeforeRequest(ctx, 1, false); err == nil {
		t.Fatal("expected context deadline error, got nil")
	}
}

func TestResetClearsRequestCount(t *testing.T) {
	g := New(Config{})
	st := g.state(1)
	st.requestCount = 9
	g.Reset(1)
	if got := g.state(1).requestCount; got != 0 {
		t.Fatalf("after Reset, requestCount = %d, want 0", got)
	}
}
