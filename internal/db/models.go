package db

import "time"

// SourceKind enumerates the five video source kinds (§3).
type SourceKind string

const (
	KindFavorite       SourceKind = "favorite"
	KindUserCollection SourceKind = "collection"
	KindUserSubmission SourceKind = "submission"
	KindWatchLater     SourceKind = "watch_later"
	KindBangumi        SourceKind = "bangumi"
)

// Source is a registered subscription (§3).
type Source struct {
	ID                 int64
	Kind               SourceKind
	UpstreamKey        string // kind-specific upstream id(s), joined into one opaque key
	Name               string
	Path               string
	Enabled            bool
	LatestSeenAt       *time.Time
	DownloadAllSeasons bool
	SelectedSeasons    []string
	LastScanAt         *time.Time
	CreatedAt          time.Time
}

// Item is one downloadable video unit (§3).
type Item struct {
	ID             int64
	SourceID       int64
	UpstreamID     string
	Name           string
	Cover          string
	UploaderID     string
	UploaderName   string
	PubTime        *time.Time
	FavTime        *time.Time
	SeasonNumber   int
	EpisodeNumber  int
	Valid          bool
	DownloadStatus uint32
	Path           string
	CreatedAt      time.Time
}

// Page is one segment of an Item (§3).
type Page struct {
	ID             int64
	VideoID        int64
	PID            int
	Name           string
	CID            string
	Duration       time.Duration
	Width          int
	Height         int
	DownloadStatus uint32
	Path           string
}

// TaskKind enumerates the durable queue's mutation kinds (§3).
type TaskKind string

const (
	TaskDeleteSource TaskKind = "DeleteSource"
	TaskAddSource    TaskKind = "AddSource"
	TaskDeleteItem   TaskKind = "DeleteItem"
	TaskUpdateConfig TaskKind = "UpdateConfig"
	TaskReloadConfig TaskKind = "ReloadConfig"
)

// TaskStatus enumerates a TaskRecord's lifecycle state (§3).
type TaskStatus string

const (
	TaskPending   TaskStatus = "Pending"
	TaskCompleted TaskStatus = "Completed"
	TaskFailed    TaskStatus = "Failed"
)

// TaskRecord is one durable queue element (§3).
type TaskRecord struct {
	ID         string
	Kind       TaskKind
	Payload    string // JSON-serialized, opaque to the queue itself
	Status     TaskStatus
	RetryCount int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DrainOrder is the fixed ordering C4 drains queue kinds in (§4.4): config
// changes must land before new sources are registered against a stale
// bundle; deletions run before additions to avoid wasted work on
// soon-to-be-removed sources.
var DrainOrder = []TaskKind{
	TaskUpdateConfig,
	TaskReloadConfig,
	TaskDeleteSource,
	TaskDeleteItem,
	TaskAddSource,
}
