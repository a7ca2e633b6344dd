package download

import (
	"context"
	"fmt"
	"os"
)

// NFOWriter is a minimal MetadataRenderer: it writes a flat NFO-style XML
// file with the fields RunItem already resolved. NFO/XML emission
// internals are out of scope (non-goal); this is a faithful stand-in
// sufficient to exercise the info-xml and uploader-info subtasks.
type NFOWriter struct{}

func (NFOWriter) RenderItemInfo(ctx context.Context, item ItemMetadata, dest string) error {
	body := fmt.Sprintf("<episodedetails>\n  <title>%s</title>\n  <uploader>%s</uploader>\n  <aired>%s</aired>\n  <season>%d</season>\n  <episode>%d</episode>\n</episodedetails>\n",
		item.Title, item.UploaderName, item.PubTime, item.SeasonNumber, item.EpisodeNumber)
	return os.WriteFile(dest+".nfo", []byte(body), 0o644)
}

func (NFOWriter) RenderUploaderInfo(ctx context.Context, uploaderID, uploaderName, dest string) error {
	body := fmt.Sprintf("<person>\n  <id>%s</id>\n  <name>%s</name>\n</person>\n", uploaderID, uploaderName)
	return os.WriteFile(fmt.Sprintf("%s/%s.nfo", dest, uploaderID), []byte(body), 0o644)
}
