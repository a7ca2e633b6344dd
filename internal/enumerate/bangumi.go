package enumerate

import (
	"context"

	"github.com/snapetech/bili-sync/internal/db"
	"github.com/snapetech/bili-sync/internal/ratelimit"
	"github.com/snapetech/bili-sync/internal/upstream"
)

// BangumiEnumerator implements §4.6's Bangumi rule: listing of episodes of
// one or more seasons, filtered by selected_seasons unless
// download_all_seasons is set.
type BangumiEnumerator struct {
	Client   upstream.Client
	Governor *ratelimit.Governor
}

func (e *BangumiEnumerator) Enumerate(ctx context.Context, src db.Source) (Result, error) {
	seasons := parseBangumiSeasons(src.UpstreamKey)
	allowed := make(map[string]bool, len(src.SelectedSeasons))
	for _, s := range src.SelectedSeasons {
		allowed[s] = true
	}

	var accepted []upstream.CandidateItem
	for _, seasonID := range seasons {
		if !src.DownloadAllSeasons && !allowed[seasonID] {
			continue
		}
		if e.Governor != nil {
			if err := e.Governor.BeforeRequest(ctx, src.ID, false); err != nil {
				return Result{}, err
			}
		}
		listPage, err := e.Client.ListSeasonEpisodes(ctx, seasonID)
		if err != nil {
			return Result{}, err
		}
		accepted = append(accepted, listPage.Items...)
	}

	sortByPublishTime(accepted)
	return Result{Items: accepted, NewCursor: maxTimestamp(accepted, false)}, nil
}
