package infrastructure

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/yourusername/ytfetch-go/internal/domain"
)

// HTTPChunkFetcher transfers stream bytes with plain ranged HTTP GETs.
// One instance is shared by all chunk workers.
type HTTPChunkFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPChunkFetcher creates a fetcher for the batch settings. Request
// deadlines come from the caller's context, not a client-wide timeout, so
// a slow 10MB chunk is not killed mid-transfer.
func NewHTTPChunkFetcher(config *domain.DownloadConfig) *HTTPChunkFetcher {
	return &HTTPChunkFetcher{
		client:    &http.Client{},
		userAgent: config.UserAgent,
	}
}

// Probe returns the stream size and whether the server honors Range
// requests. A HEAD with both Content-Length and Accept-Ranges settles it;
// otherwise a one-byte Range request is authoritative, since servers may
// honor ranges without ever advertising Accept-Ranges.
func (f *HTTPChunkFetcher) Probe(ctx context.Context, url string) (int64, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, false, err
	}
	f.setHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, false, domain.Transient(fmt.Errorf("probe: %w", err))
	}
	resp.Body.Close()

	if err := classifyStatus(resp.StatusCode, "probe"); err != nil {
		return 0, false, err
	}

	size := resp.ContentLength
	if size > 0 && strings.Contains(resp.Header.Get("Accept-Ranges"), "bytes") {
		return size, true, nil
	}

	// Ask for the first byte: a 206 proves range support, and its
	// Content-Range carries the total when HEAD had none.
	req, err = http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, false, err
	}
	f.setHeaders(req)
	req.Header.Set("Range", "bytes=0-0")

	resp, err = f.client.Do(req)
	if err != nil {
		return 0, false, domain.Transient(fmt.Errorf("probe range: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusPartialContent {
		io.Copy(io.Discard, resp.Body)
		if total, ok := parseContentRangeTotal(resp.Header.Get("Content-Range")); ok {
			return total, true, nil
		}
		return size, true, nil
	}
	if err := classifyStatus(resp.StatusCode, "probe range"); err != nil {
		return 0, false, err
	}

	// Plain 200: no range support. The body is the whole file, so take
	// its length if HEAD had none and drop the connection unread.
	if size <= 0 {
		size = resp.ContentLength
	}
	if size < 0 {
		size = 0
	}
	return size, false, nil
}

// FetchChunk downloads the inclusive byte range [start,end] to dest.
func (f *HTTPChunkFetcher) FetchChunk(ctx context.Context, url string, start, end int64, dest string, progress domain.ProgressFunc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	f.setHeaders(req)
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.Transient(fmt.Errorf("fetch range %d-%d: %w", start, end, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		if err := classifyStatus(resp.StatusCode, "fetch range"); err != nil {
			return err
		}
		// A 200 here means the server ignored the Range header; writing
		// the whole file per chunk would corrupt the merge.
		return fmt.Errorf("server ignored range request (status %d)", resp.StatusCode)
	}

	written, err := f.writeTo(dest, resp.Body, progress)
	if err != nil {
		return domain.Transient(fmt.Errorf("write range %d-%d: %w", start, end, err))
	}

	if expected := end - start + 1; written != expected {
		return domain.Transient(fmt.Errorf("short chunk: expected %d bytes, got %d", expected, written))
	}
	return nil
}

// FetchAll downloads the whole stream to dest in one request.
func (f *HTTPChunkFetcher) FetchAll(ctx context.Context, url, dest string, progress domain.ProgressFunc) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	f.setHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, domain.Transient(fmt.Errorf("fetch: %w", err))
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode, "fetch"); err != nil {
		return 0, err
	}

	written, err := f.writeTo(dest, resp.Body, progress)
	if err != nil {
		return written, domain.Transient(fmt.Errorf("write: %w", err))
	}
	return written, nil
}

func (f *HTTPChunkFetcher) setHeaders(req *http.Request) {
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
}

// writeTo streams body to dest, reporting progress per buffer.
func (f *HTTPChunkFetcher) writeTo(dest string, body io.Reader, progress domain.ProgressFunc) (int64, error) {
	out, err := os.Create(dest)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	var written int64
	buf := make([]byte, 32*1024)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				return written, writeErr
			}
			written += int64(n)
			if progress != nil {
				progress(int64(n))
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

// classifyStatus converts a non-2xx status into the error taxonomy:
// 5xx and 429 are transient, other 4xx are permanent.
func classifyStatus(status int, op string) error {
	switch {
	case status < 400:
		return nil
	case status >= 500 || status == http.StatusTooManyRequests:
		return domain.Transient(fmt.Errorf("%s: HTTP %d", op, status))
	default:
		return fmt.Errorf("%s: HTTP %d", op, status)
	}
}

// parseContentRangeTotal extracts the total from "bytes 0-0/12345".
func parseContentRangeTotal(header string) (int64, bool) {
	idx := strings.LastIndex(header, "/")
	if idx < 0 {
		return 0, false
	}
	total, err := strconv.ParseInt(header[idx+1:], 10, 64)
	if err != nil || total <= 0 {
		return 0, false
	}
	return total, true
}
