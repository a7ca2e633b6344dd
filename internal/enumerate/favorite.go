package enumerate

import (
	"context"

	"github.com/snapetech/bili-sync/internal/db"
	"github.com/snapetech/bili-sync/internal/ratelimit"
	"github.com/snapetech/bili-sync/internal/upstream"
)

// FavoriteEnumerator implements §4.6's Favorite rule: paged listing by
// favorite-id, accepted if fav_time > latest_seen_at (incremental) or all
// (full); pagination stops early at the first item with fav_time <=
// latest_seen_at, assuming upstream returns favorites in monotone order.
type FavoriteEnumerator struct {
	Client    upstream.Client
	Governor  *ratelimit.Governor
	Threshold int // large_submission_threshold, for the governor's delay multiplier
}

func (e *FavoriteEnumerator) Enumerate(ctx context.Context, src db.Source) (Result, error) {
	incremental := src.LatestSeenAt != nil
	var accepted []upstream.CandidateItem

	for page := 1; ; page++ {
		if e.Governor != nil {
			if err := e.Governor.BeforeRequest(ctx, src.ID, isLarge(len(accepted), e.Threshold)); err != nil {
				return Result{}, err
			}
		}
		listPage, err := e.Client.ListFavorite(ctx, src.UpstreamKey, page)
		if err != nil {
			return Result{}, err
		}

		stop := false
		for _, it := range listPage.Items {
			if incremental && !it.FavoriteTime.After(*src.LatestSeenAt) {
				stop = true
				break
			}
			accepted = append(accepted, it)
		}
		if stop || !listPage.HasMore {
			break
		}
	}

	sortByPublishTime(accepted)
	return Result{Items: accepted, NewCursor: maxTimestamp(accepted, true)}, nil
}
