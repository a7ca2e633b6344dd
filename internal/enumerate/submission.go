package enumerate

import (
	"context"

	"github.com/snapetech/bili-sync/internal/db"
	"github.com/snapetech/bili-sync/internal/ratelimit"
	"github.com/snapetech/bili-sync/internal/upstream"
)

// SubmissionEnumerator implements §4.6's UserSubmission rule: paged listing
// of a creator's uploads, respecting C3's batch mode; when
// enable_incremental_fetch is set only items newer than latest_seen_at are
// accepted, and any enumeration failure falls back to a full re-scan from
// page 1 when incremental_fallback_to_full is set.
type SubmissionEnumerator struct {
	Client                    upstream.Client
	Governor                  *ratelimit.Governor
	EnableIncrementalFetch    bool
	IncrementalFallbackToFull bool
	Threshold                 int
}

func (e *SubmissionEnumerator) Enumerate(ctx context.Context, src db.Source) (Result, error) {
	incremental := e.EnableIncrementalFetch && src.LatestSeenAt != nil

	items, err := e.fetchAll(ctx, src, incremental)
	if err != nil {
		if incremental && e.IncrementalFallbackToFull {
			items, err = e.fetchAll(ctx, src, false)
		}
		if err != nil {
			return Result{}, err
		}
	}

	sortByPublishTime(items)
	return Result{Items: items, NewCursor: maxTimestamp(items, false)}, nil
}

func (e *SubmissionEnumerator) fetchAll(ctx context.Context, src db.Source, incremental bool) ([]upstream.CandidateItem, error) {
	var accepted []upstream.CandidateItem
	for page := 1; ; page++ {
		if e.Governor != nil {
			if err := e.Governor.BeforeRequest(ctx, src.ID, isLarge(len(accepted), e.Threshold)); err != nil {
				return nil, err
			}
		}
		listPage, err := e.Client.ListSubmissions(ctx, src.UpstreamKey, page)
		if err != nil {
			return nil, err
		}

		stop := false
		for _, it := range listPage.Items {
			if incremental && !it.PublishTime.After(*src.LatestSeenAt) {
				stop = true
				break
			}
			accepted = append(accepted, it)
		}
		if stop || !listPage.HasMore {
			break
		}
		if e.Governor != nil {
			if err := e.Governor.WaitBetweenBatches(ctx); err != nil {
				return nil, err
			}
		}
	}
	return accepted, nil
}
