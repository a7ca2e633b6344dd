package enumerate

import "strings"

// Upstream keys are opaque to internal/db (§3: "upstream_key" is just a
// string column); each enumerator owns its own encoding of the identifiers
// it needs out of that string.

// parseCollectionKey splits a collection source's upstream_key, encoded as
// "mid|seasonID|collectionType" by the AddSource request that created it.
func parseCollectionKey(key string) (mid, seasonID, collectionType string) {
	parts := strings.SplitN(key, "|", 3)
	if len(parts) > 0 {
		mid = parts[0]
	}
	if len(parts) > 1 {
		seasonID = parts[1]
	}
	if len(parts) > 2 {
		collectionType = parts[2]
	}
	return
}

// BuildCollectionKey is the inverse of parseCollectionKey, used by the
// AddSource handler when registering a new collection source.
func BuildCollectionKey(mid, seasonID, collectionType string) string {
	return strings.Join([]string{mid, seasonID, collectionType}, "|")
}

// parseBangumiSeasons splits a bangumi source's upstream_key into its
// (possibly merged, comma-joined by db.SourceStore.MergeBangumi) season ids.
func parseBangumiSeasons(key string) []string {
	if key == "" {
		return nil
	}
	return strings.Split(key, ",")
}
