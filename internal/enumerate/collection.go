package enumerate

import (
	"context"

	"github.com/snapetech/bili-sync/internal/db"
	"github.com/snapetech/bili-sync/internal/ratelimit"
	"github.com/snapetech/bili-sync/internal/upstream"
)

// CollectionEnumerator implements §4.6's UserCollection rule: paged listing
// of a creator's season/series, with the same monotone early-stop-by-
// publish-time behavior as Favorite.
type CollectionEnumerator struct {
	Client    upstream.Client
	Governor  *ratelimit.Governor
	Threshold int
}

func (e *CollectionEnumerator) Enumerate(ctx context.Context, src db.Source) (Result, error) {
	mid, seasonID, collectionType := parseCollectionKey(src.UpstreamKey)
	incremental := src.LatestSeenAt != nil
	var accepted []upstream.CandidateItem

	for page := 1; ; page++ {
		if e.Governor != nil {
			if err := e.Governor.BeforeRequest(ctx, src.ID, isLarge(len(accepted), e.Threshold)); err != nil {
				return Result{}, err
			}
		}
		listPage, err := e.Client.ListCollection(ctx, mid, seasonID, collectionType, page)
		if err != nil {
			return Result{}, err
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
	}

	sortByPublishTime(accepted)
	return Result{Items: accepted, NewCursor: maxTimestamp(accepted, false)}, nil
}
