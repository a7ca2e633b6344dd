package download

import (
	"context"

	"github.com/snapetech/bili-sync/internal/status"
	"github.com/snapetech/bili-sync/internal/upstream"
)

// SubtaskFunc performs one attempt of a subtask body. A nil return is Ok; any
// other error is classified with upstream.VerdictOf, so subtask bodies
// always return a *upstream.ClassifiedError (or wrap one) rather than a bare
// error the runner would have to inspect itself.
type SubtaskFunc func(ctx context.Context) error

// Outcome is the terminal result of RunSubtask: the state to persist plus
// whatever the caller (item.go/page.go) must additionally do.
type Outcome struct {
	State      status.State
	Verdict    upstream.Verdict
	Abort      bool // RiskControl: caller must abort the whole pipeline scope (§4.10)
	ChargeOnly bool // 87007: caller must emit a DeleteItem task and fail pages-aggregate
	Invalid    bool // ContentGone (404/deleted): caller must mark the item invalid
}

// RunSubtask implements §4.8.1's per-subtask state machine. It attempts fn
// up to maxRetries times, retrying only on TransientNetwork; a RateLimit
// verdict does not consume the retry budget and loops again once onBackoff
// has let the governor's delay apply (§4.3, §7: "not counted against
// max_retries"). attempts is always in-memory and starts at 0 on every
// call — this is what gives "on restart, Retrying is treated as NotStarted"
// for free, since no attempt count is ever persisted.
func RunSubtask(ctx context.Context, fn SubtaskFunc, maxRetries int, onBackoff func()) Outcome {
	attempts := 0
	for {
		err := fn(ctx)
		verdict := upstream.VerdictOf(err)
		switch verdict {
		case upstream.Ok:
			return Outcome{State: status.Succeeded, Verdict: verdict}
		case upstream.NotFound, upstream.DeletedContent:
			return Outcome{State: status.Succeeded, Verdict: verdict, Invalid: true}
		case upstream.RiskControl:
			return Outcome{State: status.Retrying, Verdict: verdict, Abort: true}
		case upstream.ChargeOnly:
			return Outcome{State: status.Failed, Verdict: verdict, ChargeOnly: true}
		case upstream.RateLimit:
			if onBackoff != nil {
				onBackoff()
			}
			if ctx.Err() != nil {
				return Outcome{State: status.Retrying, Verdict: verdict}
			}
			continue
		case upstream.TransientNetwork:
			attempts++
			if attempts >= maxRetries {
				return Outcome{State: status.Failed, Verdict: verdict}
			}
			continue
		default: // PermissionDenied, Other: Failed and surfaced, scan proceeds (§7)
			return Outcome{State: status.Failed, Verdict: verdict}
		}
	}
}
