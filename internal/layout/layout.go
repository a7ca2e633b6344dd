package layout

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/ncruces/go-strftime"
)

// PathRenderer is the external collaborator that expands a user-supplied
// filename template against a Context (spec.md §6: "PathRenderer —
// render(template, context) -> string with sanitization applied by C2").
// The core never interprets template syntax itself; it only supplies the
// context and sanitizes the result.
type PathRenderer interface {
	Render(template string, ctx Context) (string, error)
}

// Context carries every value a filename/path template may reference.
type Context struct {
	Title        string
	SeriesTitle  string
	UploaderName string
	UploaderID   string
	SeasonNumber int
	EpisodeNumber int
	PubTime      time.Time
	FavTime      time.Time
	NFOTimeType  string // "favtime" or "pubtime"
	TimeFormat   string // strftime pattern, e.g. "%Y-%m-%d"
}

// NFOTime resolves which timestamp an NFO render should use, per
// nfo_time_type.
func (c Context) NFOTime() time.Time {
	if c.NFOTimeType == "favtime" && !c.FavTime.IsZero() {
		return c.FavTime
	}
	return c.PubTime
}

// FormattedTime renders NFOTime() through c.TimeFormat using strftime
// semantics (§6 time_format), falling back to RFC3339 if TimeFormat is
// empty.
func (c Context) FormattedTime() (string, error) {
	t := c.NFOTime()
	if c.TimeFormat == "" {
		return t.Format(time.RFC3339), nil
	}
	return strftime.Format(c.TimeFormat, t)
}

// Options is the subset of the config bundle (§6) C2 needs.
type Options struct {
	VideoName                   string
	PageName                    string
	MultiPageName               string
	BangumiName                 string
	FolderStructure              string
	BangumiFolderName           string
	CollectionFolderMode         string // "separate" | "unified"
	MultiPageUseSeasonStructure  bool
	CollectionUseSeasonStructure bool
	BangumiUseSeasonStructure    bool
	MaxComponentBytes            int
}

const (
	ModeSeparate = "separate"
	ModeUnified  = "unified"
)

// sanitizeComponents applies Sanitize to every path segment of p, so a
// template that itself emits a path separator never escapes sanitization
// (§4.2: "all rendered components must pass a sanitizer").
func sanitizeComponents(p string, maxBytes int) string {
	slash := filepath.ToSlash(p)
	var parts []string
	start := 0
	for i := 0; i < len(slash); i++ {
		if slash[i] == '/' {
			if seg := slash[start:i]; seg != "" {
				parts = append(parts, Sanitize(seg, maxBytes))
			}
			start = i + 1
		}
	}
	if seg := slash[start:]; seg != "" {
		parts = append(parts, Sanitize(seg, maxBytes))
	}
	return filepath.Join(parts...)
}

// BuildItemRoot derives the item root directory: <source-path>/[season
// folder]/<rendered item name>, where the season folder is added only for
// bangumi items with bangumi season structuring enabled (§4.2). Multi-page
// and collection season folders are added by BuildPagePath instead.
func BuildItemRoot(r PathRenderer, opts Options, sourcePath string, ctx Context, isBangumi bool) (string, error) {
	template := opts.VideoName
	seasonFolder := ""
	if isBangumi {
		template = opts.BangumiName
		if opts.BangumiUseSeasonStructure {
			seasonFolder = SeasonFolder(ctx.SeasonNumber, true)
		}
	}
	name, err := r.Render(template, ctx)
	if err != nil {
		return "", fmt.Errorf("layout: render item name: %w", err)
	}
	name = sanitizeComponents(name, opts.MaxComponentBytes)

	root := sourcePath
	if seasonFolder != "" {
		root = filepath.Join(root, Sanitize(seasonFolder, opts.MaxComponentBytes))
	}
	return filepath.Join(root, name), nil
}

// BuildPagePath derives the path of a single page within an already-derived
// itemRoot. For a collection in unified mode, the filename is forced to
// "S01E<pad> - <title>" regardless of page_name/multi_page_name (§4.2,
// §4.8); episodeNumber must already have been assigned by the caller
// (internal/download, per §4.8's unified-collection rule).
func BuildPagePath(r PathRenderer, opts Options, itemRoot string, ctx Context, isMultiPage, isCollection bool) (string, error) {
	if isCollection && opts.CollectionFolderMode == ModeUnified {
		title := Sanitize(ctx.Title, opts.MaxComponentBytes)
		filename := fmt.Sprintf("S%02dE%s - %s", maxInt(ctx.SeasonNumber, 1), EpisodePad(ctx.EpisodeNumber), title)
		return filepath.Join(itemRoot, Sanitize(filename, opts.MaxComponentBytes)), nil
	}

	template := opts.PageName
	if isMultiPage {
		template = opts.MultiPageName
	}
	name, err := r.Render(template, ctx)
	if err != nil {
		return "", fmt.Errorf("layout: render page name: %w", err)
	}
	name = sanitizeComponents(name, opts.MaxComponentBytes)

	dir := itemRoot
	if isMultiPage && opts.MultiPageUseSeasonStructure {
		dir = filepath.Join(dir, Sanitize(SeasonFolder(1, true), opts.MaxComponentBytes))
	} else if isCollection && opts.CollectionUseSeasonStructure {
		dir = filepath.Join(dir, Sanitize(SeasonFolder(ctx.SeasonNumber, true), opts.MaxComponentBytes))
	}
	return filepath.Join(dir, name), nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
