package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/andybalholm/brotli"

	"github.com/snapetech/bili-sync/internal/httpclient"
	"github.com/snapetech/bili-sync/internal/safeurl"
	"github.com/snapetech/bili-sync/internal/upstream"
)

const chunkSize = 4 * 1024 * 1024 // 4 MiB minimum segment: a body whose per-segment share is smaller is fetched in one request

// HTTPDownloader is the concrete Downloader (§6) used outside tests: a
// segmented, range-request fetcher over plain net/http. Grounded on the
// teacher's internal/materializer.DownloadToFile, generalized from "one
// client, serial ranges" to "segments concurrent goroutines, caller-chosen
// parallelism" per §4.8's parallel_download_threads.
type HTTPDownloader struct {
	Client *http.Client
}

// NewHTTPDownloader builds an HTTPDownloader over a no-timeout clone of
// httpclient.ForStreaming, matching the teacher's cloneClientNoTimeout
// pattern for long-lived transfers.
func NewHTTPDownloader() *HTTPDownloader {
	c := httpclient.ForStreaming()
	c.Timeout = 0
	return &HTTPDownloader{Client: c}
}

func (d *HTTPDownloader) client() *http.Client {
	if d.Client != nil {
		return d.Client
	}
	return httpclient.ForStreaming()
}

// Download fetches url into dest, splitting the transfer across segments
// concurrent range requests when the upstream advertises Accept-Ranges and a
// known content length; otherwise it falls back to one sequential GET.
func (d *HTTPDownloader) Download(ctx context.Context, url, dest string, segments int) error {
	if !safeurl.IsHTTPOrHTTPS(url) {
		return upstream.NewClassifiedError(upstream.Other, 0, fmt.Errorf("download: invalid URL scheme (only http/https allowed)"))
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	client := d.client()
	size, acceptRanges, err := probe(ctx, client, url)
	if err != nil {
		return classifyHTTPErr(err)
	}

	if segments <= 1 || !acceptRanges || size <= 0 {
		return classifyHTTPErr(downloadFull(ctx, client, url, dest))
	}
	return classifyHTTPErr(downloadSegmented(ctx, client, url, dest, size, segments))
}

func probe(ctx context.Context, client *http.Client, url string) (int64, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, false, err
	}
	resp, err := httpclient.DoWithRetry(ctx, client, req, httpclient.DefaultRetryPolicy)
	if err != nil {
		return 0, false, err
	}
	resp.Body.Close()
	return resp.ContentLength, resp.Header.Get("Accept-Ranges") == "bytes", nil
}

// downloadSegmented splits [0,size) into `segments` contiguous ranges and
// fetches each with its own request, writing directly into its slice of
// dest via a shared *os.File and WriteAt (no reordering/merge step needed).
func downloadSegmented(ctx context.Context, client *http.Client, url, dest string, size int64, segments int) error {
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Truncate(size); err != nil {
		return err
	}

	segSize := size / int64(segments)
	if segSize < chunkSize {
		segSize = size
		segments = 1
	}

	type result struct{ err error }
	results := make(chan result, segments)
	for i := 0; i < segments; i++ {
		start := int64(i) * segSize
		end := start + segSize - 1
		if i == segments-1 || end >= size {
			end = size - 1
		}
		go func(start, end int64) {
			results <- result{err: fetchRange(ctx, client, url, f, start, end)}
		}(start, end)
	}
	for i := 0; i < segments; i++ {
		if r := <-results; r.err != nil {
			return r.err
		}
	}
	return nil
}

func fetchRange(ctx context.Context, client *http.Client, url string, f *os.File, start, end int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Range", "bytes="+strconv.FormatInt(start, 10)+"-"+strconv.FormatInt(end, 10))
	req.Header.Set("Accept-Encoding", "br")
	resp, err := httpclient.DoWithRetry(ctx, client, req, httpclient.DefaultRetryPolicy)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return httpStatusError{code: resp.StatusCode}
	}
	body := decodeBody(resp)
	_, err = io.Copy(io.NewOffsetWriter(f, start), body)
	return err
}

func downloadFull(ctx context.Context, client *http.Client, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept-Encoding", "br")
	resp, err := httpclient.DoWithRetry(ctx, client, req, httpclient.DefaultRetryPolicy)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return httpStatusError{code: resp.StatusCode}
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, decodeBody(resp))
	return err
}

// decodeBody transparently unwraps a brotli-encoded response body. Most CDN
// media segments are already-compressed containers and never set this
// header, but some upstreams brotli-compress small manifest/subtitle
// payloads fetched through the same Downloader, so this applies uniformly.
func decodeBody(resp *http.Response) io.Reader {
	if resp.Header.Get("Content-Encoding") == "br" {
		return brotli.NewReader(resp.Body)
	}
	return resp.Body
}

type httpStatusError struct{ code int }

func (e httpStatusError) Error() string { return "download: HTTP " + strconv.Itoa(e.code) }

func classifyHTTPErr(err error) error {
	if err == nil {
		return nil
	}
	if se, ok := err.(httpStatusError); ok {
		switch se.code {
		case http.StatusTooManyRequests:
			return upstream.NewClassifiedError(upstream.RateLimit, se.code, err)
		case http.StatusNotFound, http.StatusGone:
			return upstream.NewClassifiedError(upstream.NotFound, se.code, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return upstream.NewClassifiedError(upstream.PermissionDenied, se.code, err)
		default:
			if se.code >= 500 {
				return upstream.NewClassifiedError(upstream.TransientNetwork, se.code, err)
			}
			return upstream.NewClassifiedError(upstream.Other, se.code, err)
		}
	}
	return classifyCollaboratorErr(err)
}
