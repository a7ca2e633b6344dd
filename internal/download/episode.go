package download

import "github.com/snapetech/bili-sync/internal/db"

// AssignEpisodeNumber implements §4.8's collection_folder_mode=unified
// episode-number rule: among every item of the same source ordered by
// publish time ascending (ties broken by ascending surrogate id — the same
// order store.ListBySource already returns), the episode number is the
// 1-based position of itemID. If itemID is absent from items (a race with a
// concurrent delete), ok is false and the caller falls back to the standard
// per-page template instead of the forced unified filename.
func AssignEpisodeNumber(items []db.Item, itemID int64) (number int, ok bool) {
	for i, it := range items {
		if it.ID == itemID {
			return i + 1, true
		}
	}
	return 0, false
}
