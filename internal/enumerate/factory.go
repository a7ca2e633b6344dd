package enumerate

import (
	"fmt"

	"github.com/snapetech/bili-sync/internal/db"
	"github.com/snapetech/bili-sync/internal/ratelimit"
	"github.com/snapetech/bili-sync/internal/upstream"
)

// For builds the Enumerator matching kind, so C9 can dispatch uniformly
// over every registered source without a type switch at the call site.
func For(kind db.SourceKind, client upstream.Client, gov *ratelimit.Governor, opts Options) (Enumerator, error) {
	switch kind {
	case db.KindFavorite:
		return &FavoriteEnumerator{Client: client, Governor: gov, Threshold: opts.LargeSubmissionThreshold}, nil
	case db.KindUserCollection:
		return &CollectionEnumerator{Client: client, Governor: gov, Threshold: opts.LargeSubmissionThreshold}, nil
	case db.KindUserSubmission:
		return &SubmissionEnumerator{
			Client:                    client,
			Governor:                  gov,
			EnableIncrementalFetch:    opts.EnableIncrementalFetch,
			IncrementalFallbackToFull: opts.IncrementalFallbackToFull,
			Threshold:                 opts.LargeSubmissionThreshold,
		}, nil
	case db.KindWatchLater:
		return &WatchLaterEnumerator{Client: client, Governor: gov}, nil
	case db.KindBangumi:
		return &BangumiEnumerator{Client: client, Governor: gov}, nil
	default:
		return nil, fmt.Errorf("enumerate: unknown source kind %q", kind)
	}
}
