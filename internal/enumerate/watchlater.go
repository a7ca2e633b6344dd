package enumerate

import (
	"context"

	"github.com/snapetech/bili-sync/internal/db"
	"github.com/snapetech/bili-sync/internal/ratelimit"
	"github.com/snapetech/bili-sync/internal/upstream"
)

// WatchLaterEnumerator implements §4.6's WatchLater rule: a single endpoint
// returning the current list in full; the list is small, mutable, and
// unordered, so every call accepts everything rather than applying an
// incremental cutoff.
type WatchLaterEnumerator struct {
	Client   upstream.Client
	Governor *ratelimit.Governor
}

func (e *WatchLaterEnumerator) Enumerate(ctx context.Context, src db.Source) (Result, error) {
	if e.Governor != nil {
		if err := e.Governor.BeforeRequest(ctx, src.ID, false); err != nil {
			return Result{}, err
		}
	}
	listPage, err := e.Client.ListWatchLater(ctx)
	if err != nil {
		return Result{}, err
	}
	items := append([]upstream.CandidateItem(nil), listPage.Items...)
	sortByPublishTime(items)
	return Result{Items: items, NewCursor: maxTimestamp(items, false)}, nil
}
