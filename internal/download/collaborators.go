package download

import "context"

// Downloader is the external bytes-on-the-wire fetcher (§1, §6:
// "Downloader — download(url, dest, segments) -> Result<()>"). The core
// never issues raw HTTP itself; it only decides what to fetch, where, and
// with how much parallelism.
type Downloader interface {
	Download(ctx context.Context, url, dest string, segments int) error
}

// Muxer is the external remux/concat tool (§1, §6: "Muxer — mux(video_path,
// audio_path, dest) -> Result<()>").
type Muxer interface {
	Mux(ctx context.Context, videoPath, audioPath, dest string) error
}

// MetadataRenderer is the external NFO/creator-metadata emitter (§1:
// "NFO/XML emission" is out of scope at the core). It is the collaborator
// the info-xml and uploader-info subtasks call.
type MetadataRenderer interface {
	RenderItemInfo(ctx context.Context, item ItemMetadata, dest string) error
	RenderUploaderInfo(ctx context.Context, uploaderID, uploaderName, dest string) error
}

// ItemMetadata is the subset of an item an NFO render needs.
type ItemMetadata struct {
	Title        string
	UploaderName string
	PubTime      string // already formatted per time_format (§4.2 layout.Context.FormattedTime)
	SeasonNumber int
	EpisodeNumber int
}

// DanmakuRenderer is the external overlay/comment-file emitter consulted by
// the danmaku-overlay page subtask (§6 danmaku_* options, out of scope at
// the core beyond threading the flag through).
type DanmakuRenderer interface {
	RenderDanmaku(ctx context.Context, upstreamCID, dest string) error
}

// SubtitleFetcher is the external subtitle downloader consulted by the
// subtitle page subtask.
type SubtitleFetcher interface {
	FetchSubtitle(ctx context.Context, upstreamCID, dest string) error
}

// Collaborators bundles every external collaborator Pipeline needs, so a
// caller wiring the pipeline (internal/system) can pass them as one value.
type Collaborators struct {
	Downloader Downloader
	Muxer      Muxer
	Metadata   MetadataRenderer
	Danmaku    DanmakuRenderer
	Subtitle   SubtitleFetcher
}
