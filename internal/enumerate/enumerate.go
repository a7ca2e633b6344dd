// Package enumerate is the Enumerator (C6): one implementation per
// db.SourceKind, each yielding a finite, restartable sequence of candidate
// items and advancing the source's cursor to the maximum timestamp
// observed among accepted items (§4.6).
//
// Grounded on the teacher's internal/indexer/fetch/fetcher.go paging and
// incremental-fetch-with-fallback-to-full logic (FetchConfig.ForceFullRefresh,
// per-category checkpointing), generalized from "Xtream categories" to the
// five source kinds here.
package enumerate

import (
	"context"
	"time"

	"golang.org/x/exp/slices"

	"github.com/snapetech/bili-sync/internal/db"
	"github.com/snapetech/bili-sync/internal/upstream"
)

// Result is what one enumeration pass over a source produces.
type Result struct {
	Items     []upstream.CandidateItem
	NewCursor time.Time // max timestamp observed among Items; zero if none
}

// Enumerator is satisfied by every per-kind implementation, so C9 can treat
// every source kind uniformly.
type Enumerator interface {
	Enumerate(ctx context.Context, src db.Source) (Result, error)
}

// Options carries the incremental/batch config flags §4.6 and §4.3
// reference (§6 table).
type Options struct {
	EnableIncrementalFetch       bool
	IncrementalFallbackToFull    bool
	LargeSubmissionThreshold     int
}

// sortByPublishTime orders items by publish time ascending, ties broken by
// upstream id — the deterministic ordering P9's episode numbering and the
// monotone early-stop rules rely on.
func sortByPublishTime(items []upstream.CandidateItem) {
	slices.SortFunc(items, func(a, b upstream.CandidateItem) int {
		if a.PublishTime.Before(b.PublishTime) {
			return -1
		}
		if a.PublishTime.After(b.PublishTime) {
			return 1
		}
		if a.UpstreamID < b.UpstreamID {
			return -1
		}
		if a.UpstreamID > b.UpstreamID {
			return 1
		}
		return 0
	})
}

// maxTimestamp returns the latest PublishTime (or FavoriteTime, for Favorite
// sources) among items.
func maxTimestamp(items []upstream.CandidateItem, useFavTime bool) time.Time {
	var max time.Time
	for _, it := range items {
		t := it.PublishTime
		if useFavTime {
			t = it.FavoriteTime
		}
		if t.After(max) {
			max = t
		}
	}
	return max
}

// isLarge reports whether a source should be treated as "large" for C3's
// delay multiplier, based on an observed item count (§4.3).
func isLarge(count int, threshold int) bool {
	return threshold > 0 && count >= threshold
}
