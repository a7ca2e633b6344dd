package config

import "time"

// Bundle is the hot-swappable configuration (§4.11, §6's full recognized
// option set minus the env-only/external-collaborator fields already
// covered by EnvConfig). It is YAML-tagged for the on-disk snapshot file
// and read/written as a single change-logged unit.
type Bundle struct {
	Interval time.Duration `yaml:"interval"`

	VideoName         string `yaml:"video_name"`
	PageName          string `yaml:"page_name"`
	MultiPageName     string `yaml:"multi_page_name"`
	BangumiName       string `yaml:"bangumi_name"`
	FolderStructure   string `yaml:"folder_structure"`
	BangumiFolderName string `yaml:"bangumi_folder_name"`

	CollectionFolderMode         string `yaml:"collection_folder_mode"`
	MultiPageUseSeasonStructure  bool   `yaml:"multi_page_use_season_structure"`
	CollectionUseSeasonStructure bool   `yaml:"collection_use_season_structure"`
	BangumiUseSeasonStructure    bool   `yaml:"bangumi_use_season_structure"`

	NFOTimeType string `yaml:"nfo_time_type"`
	TimeFormat  string `yaml:"time_format"`

	ConcurrentVideo int `yaml:"concurrent_video"`
	ConcurrentPage  int `yaml:"concurrent_page"`
	MaxRetries      int `yaml:"max_retries"`

	RateLimit    int           `yaml:"rate_limit"`
	RateDuration time.Duration `yaml:"rate_duration"`

	ParallelDownloadEnabled bool `yaml:"parallel_download_enabled"`
	ParallelDownloadThreads int  `yaml:"parallel_download_threads"`

	VideoMaxQuality int      `yaml:"video_max_quality"`
	VideoMinQuality int      `yaml:"video_min_quality"`
	AudioMaxQuality int      `yaml:"audio_max_quality"`
	AudioMinQuality int      `yaml:"audio_min_quality"`
	Codecs          []string `yaml:"codecs"`
	NoDolbyVideo    bool     `yaml:"no_dolby_video"`
	NoDolbyAudio    bool     `yaml:"no_dolby_audio"`
	NoHDR           bool     `yaml:"no_hdr"`
	NoHiRes         bool     `yaml:"no_hires"`
	CDNSorting      bool     `yaml:"cdn_sorting"`

	LargeSubmissionThreshold       int           `yaml:"large_submission_threshold"`
	BaseRequestDelay               time.Duration `yaml:"base_request_delay"`
	LargeSubmissionDelayMultiplier float64       `yaml:"large_submission_delay_multiplier"`
	EnableProgressiveDelay         bool          `yaml:"enable_progressive_delay"`
	MaxDelayMultiplier             float64       `yaml:"max_delay_multiplier"`
	EnableIncrementalFetch         bool          `yaml:"enable_incremental_fetch"`
	IncrementalFallbackToFull      bool          `yaml:"incremental_fallback_to_full"`
	EnableBatchProcessing          bool          `yaml:"enable_batch_processing"`
	BatchSize                      int           `yaml:"batch_size"`
	BatchDelay                     time.Duration `yaml:"batch_delay_seconds"`
	EnableAutoBackoff              bool          `yaml:"enable_auto_backoff"`
	AutoBackoffBase                time.Duration `yaml:"auto_backoff_base_seconds"`
	AutoBackoffMaxMultiplier       float64       `yaml:"auto_backoff_max_multiplier"`
	SourceDelay                    time.Duration `yaml:"source_delay_seconds"`
	SubmissionSourceDelay          time.Duration `yaml:"submission_source_delay_seconds"`

	UpperPath string `yaml:"upper_path"`

	// AdvanceCursorOnAbort is this module's own Open Question decision
	// (DESIGN.md): whether a risk-control-aborted cycle still advances
	// latest_seen_at. Default false.
	AdvanceCursorOnAbort bool `yaml:"advance_cursor_on_abort"`
}

// DefaultBundle returns the tunables a fresh install starts with, chosen to
// match the conservative defaults spec.md names elsewhere (HTTP timeouts
// aside, which belong to internal/httpclient, not here).
func DefaultBundle() Bundle {
	return Bundle{
		Interval: time.Minute,

		VideoName:         "{{title}}",
		PageName:          "{{title}}",
		MultiPageName:     "{{title}}",
		BangumiName:       "{{title}} S{{season}}E{{episode}}",
		FolderStructure:   "{{uploader}}/{{title}}",
		BangumiFolderName: "{{title}}",

		CollectionFolderMode: "separate",

		NFOTimeType: "pubtime",
		TimeFormat:  "%Y-%m-%d",

		ConcurrentVideo: 3,
		ConcurrentPage:  2,
		MaxRetries:      3,

		RateLimit:    4,
		RateDuration: time.Second,

		ParallelDownloadThreads: 1,

		VideoMaxQuality: 120,
		AudioMaxQuality: 30280,
		CDNSorting:      true,

		LargeSubmissionThreshold:       50,
		BaseRequestDelay:               500 * time.Millisecond,
		LargeSubmissionDelayMultiplier: 2,
		EnableProgressiveDelay:         true,
		MaxDelayMultiplier:             4,
		EnableIncrementalFetch:         true,
		IncrementalFallbackToFull:      true,
		EnableAutoBackoff:              true,
		AutoBackoffBase:                30 * time.Second,
		AutoBackoffMaxMultiplier:       8,
		SourceDelay:                    2 * time.Second,
		SubmissionSourceDelay:          5 * time.Second,

		UpperPath: "upper",
	}
}
