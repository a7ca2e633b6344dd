package download

import (
	"context"
	"errors"
	"testing"

	"github.com/snapetech/bili-sync/internal/status"
	"github.com/snapetech/bili-sync/internal/upstream"
)

func TestRunSubtaskOkSucceeds(t *testing.T) {
	outcome := RunSubtask(context.Background(), func(context.Context) error { return nil }, 3, nil)
	if outcome.State != status.Succeeded {
		t.Fatalf("state = %v, want Succeeded", outcome.State)
	}
}

func TestRunSubtaskTransientRetriesThenFails(t *testing.T) {
	attempts := 0
	fn := func(context.Context) error {
		attempts++
		return upstream.NewClassifiedError(upstream.TransientNetwork, 0, errors.New("timeout"))
	}
	outcome := RunSubtask(context.Background(), fn, 3, nil)
	if outcome.State != status.Failed {
		t.Fatalf("state = %v, want Failed", outcome.State)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3 (max_retries)", attempts)
	}
}

func TestRunSubtaskTransientSucceedsWithinBudget(t *testing.T) {
	attempts := 0
	fn := func(context.Context) error {
		attempts++
		if attempts < 2 {
			return upstream.NewClassifiedError(upstream.TransientNetwork, 0, errors.New("timeout"))
		}
		return nil
	}
	outcome := RunSubtask(context.Background(), fn, 3, nil)
	if outcome.State != status.Succeeded {
		t.Fatalf("state = %v, want Succeeded", outcome.State)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
}

func TestRunSubtaskRiskControlAborts(t *testing.T) {
	fn := func(context.Context) error {
		return upstream.NewClassifiedError(upstream.RiskControl, 0, errors.New("captcha"))
	}
	outcome := RunSubtask(context.Background(), fn, 3, nil)
	if !outcome.Abort {
		t.Fatal("expected Abort=true on RiskControl")
	}
}

func TestRunSubtaskChargeOnlyFails(t *testing.T) {
	fn := func(context.Context) error {
		return upstream.NewClassifiedError(upstream.ChargeOnly, 0, errors.New("87007"))
	}
	outcome := RunSubtask(context.Background(), fn, 3, nil)
	if !outcome.ChargeOnly {
		t.Fatal("expected ChargeOnly=true")
	}
	if outcome.State != status.Failed {
		t.Fatalf("state = %v, want Failed", outcome.State)
	}
}

func TestRunSubtaskContentGoneMarksInvalidButSucceeds(t *testing.T) {
	fn := func(context.Context) error {
		return upstream.NewClassifiedError(upstream.NotFound, 404, errors.New("gone"))
	}
	outcome := RunSubtask(context.Background(), fn, 3, nil)
	if outcome.State != status.Succeeded {
		t.Fatalf("state = %v, want Succeeded (nothing to do)", outcome.State)
	}
	if !outcome.Invalid {
		t.Fatal("expected Invalid=true")
	}
}

func TestRunSubtaskRateLimitDoesNotConsumeRetryBudget(t *testing.T) {
	attempts := 0
	backoffCalls := 0
	ctx, cancel := context.WithCancel(context.Background())
	fn := func(context.Context) error {
		attempts++
		if attempts >= 3 {
			cancel()
		}
		return upstream.NewClassifiedError(upstream.RateLimit, 429, errors.New("rate limited"))
	}
	outcome := RunSubtask(ctx, fn, 1, func() { backoffCalls++ })
	if outcome.State != status.Retrying {
		t.Fatalf("state = %v, want Retrying (cancelled mid-backoff)", outcome.State)
	}
	if backoffCalls != attempts {
		t.Fatalf("backoffCalls = %d, want %d (every RateLimit attempt)", backoffCalls, attempts)
	}
	if attempts < 3 {
		t.Fatalf("attempts = %d, want >= 3: max_retries=1 should not have stopped this", attempts)
	}
}

func TestRunSubtaskPermissionDeniedFailsWithoutRetry(t *testing.T) {
	attempts := 0
	fn := func(context.Context) error {
		attempts++
		return upstream.NewClassifiedError(upstream.PermissionDenied, 403, errors.New("expired creds"))
	}
	outcome := RunSubtask(context.Background(), fn, 5, nil)
	if outcome.State != status.Failed {
		t.Fatalf("state = %v, want Failed", outcome.State)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (PermissionDenied is not retried)", attempts)
	}
}
