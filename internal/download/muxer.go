package download

import (
	"context"
	"os/exec"
)

// FFmpegMuxer shells out to ffmpeg to remux a separate video and audio
// stream into one file without re-encoding. Media muxing internals are out
// of scope for this module (non-goal); this is a faithful stand-in
// sufficient to exercise C8's mux subtask, not a production transcoding
// pipeline. No pack dependency wraps ffmpeg invocation, so this uses
// stdlib os/exec directly.
type FFmpegMuxer struct {
	// Binary is the ffmpeg executable name or path; defaults to "ffmpeg".
	Binary string
}

func (m FFmpegMuxer) Mux(ctx context.Context, videoPath, audioPath, dest string) error {
	bin := m.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, bin,
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-c", "copy",
		dest,
	)
	return cmd.Run()
}
