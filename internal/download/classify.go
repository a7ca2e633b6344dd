package download

import (
	"context"
	"errors"
	"net"

	"github.com/snapetech/bili-sync/internal/upstream"
)

// classifyCollaboratorErr wraps an error returned by Downloader/Muxer/
// MetadataRenderer/DanmakuRenderer/SubtitleFetcher into a
// *upstream.ClassifiedError so RunSubtask's switch can dispatch on it like
// any upstream.Client error. Network timeouts and context cancellation are
// classified TransientNetwork; every other error is classified Other and is
// not retried. Filesystem errors are not told apart: a full disk (ENOSPC)
// and a permission error (EACCES) both become Other.
func classifyCollaboratorErr(err error) error {
	if err == nil {
		return nil
	}
	var ce *upstream.ClassifiedError
	if errors.As(err, &ce) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return upstream.NewClassifiedError(upstream.TransientNetwork, 0, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return upstream.NewClassifiedError(upstream.TransientNetwork, 0, err)
	}
	return upstream.NewClassifiedError(upstream.Other, 0, err)
}
