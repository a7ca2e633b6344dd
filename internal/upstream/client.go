package upstream

import (
	"context"
	"time"
)

// Client is the collaborator interface the core consumes (§6). The wire
// protocol — cookies, request signing, endpoint layout, credential
// issuance/refresh — is out of scope (§1) and lives entirely behind this
// interface; every method returns a *ClassifiedError on failure so callers
// never need to inspect a status code themselves.
type Client interface {
	ListFavorite(ctx context.Context, favoriteID string, page int) (*ListPage, error)
	ListCollection(ctx context.Context, mid, seasonID, collectionType string, page int) (*ListPage, error)
	ListSubmissions(ctx context.Context, mid string, page int) (*ListPage, error)
	ListWatchLater(ctx context.Context) (*ListPage, error)
	ListSeasonEpisodes(ctx context.Context, seasonID string) (*ListPage, error)

	FetchItemDetail(ctx context.Context, upstreamID string) (*ItemDetail, error)
	FetchStreamManifest(ctx context.Context, upstreamID string, pid int) (*StreamManifest, error)
	FetchBytes(ctx context.Context, url string, rangeStart, rangeEnd int64) ([]byte, error)
}

// ListPage is one page of candidate items from any enumeration endpoint.
// HasMore signals whether the caller should request the next page; the
// per-kind early-stop rules in §4.6 are applied by the enumerator, not here.
type ListPage struct {
	Items   []CandidateItem
	HasMore bool
}

// CandidateItem is one row an Enumerator yields before it becomes a durable
// Item (§3, §4.6).
type CandidateItem struct {
	UpstreamID   string // bvid for general sources
	SeasonID     string // bangumi only
	EpisodeID    string // bangumi only (ep_id)
	Title        string
	UploaderID   string
	UploaderName string
	CoverURL     string
	PublishTime  time.Time
	FavoriteTime time.Time // only meaningful for Favorite sources
	SeasonNumber int       // bangumi only
}

// ItemDetail is the per-item detail payload (pages/parts list etc.) fetched
// lazily once an item is persisted.
type ItemDetail struct {
	Pages []CandidatePage
}

// CandidatePage is one segment of an item (§3 Page).
type CandidatePage struct {
	PID         int
	Title       string
	UpstreamCID string
	Duration    time.Duration
	Width       int
	Height      int
}

// StreamManifest describes the available video/audio variants for a page,
// sufficient for §4.8's stream-selection rules. Muxing/remuxing mechanics
// are out of scope (§1); this is the selection input only.
type StreamManifest struct {
	Variants []StreamVariant
}

// StreamVariant is one selectable (codec, quality, CDN) combination.
type StreamVariant struct {
	Kind        string // "video" or "audio"
	Codec       string
	Quality     int
	IsDolby     bool
	IsHDR       bool
	IsHiRes     bool
	CDNLatency  time.Duration
	URL         string
}
