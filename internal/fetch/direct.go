// internal/fetch/direct.go
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// partialSuffix marks in-flight direct downloads. The file is renamed into
// place only after the body has been fully written, so a present file at the
// destination is always complete.
const partialSuffix = ".partial"

// DirectFetcher streams a source to the destination via ordinary chunked
// HTTP GET. Any non-2xx or transport error is terminal for the attempt;
// retries, if any, are the caller's responsibility.
type DirectFetcher struct {
	client *http.Client
	fs     afero.Fs
	log    *slog.Logger
}

// NewDirectFetcher creates a direct strategy. timeout bounds the dial and
// the wait for response headers; the body read is unbounded so a slow
// multi-gigabyte transfer is never cut off mid-stream. Cancellation of an
// in-flight body comes from the request context.
func NewDirectFetcher(timeout time.Duration, log *slog.Logger) *DirectFetcher {
	if log == nil {
		log = slog.Default()
	}
	return &DirectFetcher{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: 30 * time.Second}).DialContext,
				ResponseHeaderTimeout: timeout,
			},
		},
		fs:  afero.NewOsFs(),
		log: log,
	}
}

// Fetch implements Strategy.
func (f *DirectFetcher) Fetch(ctx context.Context, req Request) (string, error) {
	if err := f.fs.MkdirAll(filepath.Dir(req.Dest), 0o755); err != nil {
		return "", fmt.Errorf("create destination dir: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrTransport, err)
	}
	if req.Referer != "" {
		httpReq.Header.Set("Referer", req.Referer)
	}
	for _, c := range req.Cookies {
		httpReq.AddCookie(c)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: get %s: %v", ErrTransport, req.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: %s returned %s", ErrTransport, req.URL, resp.Status)
	}

	tmp := req.Dest + partialSuffix
	out, err := f.fs.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", tmp, err)
	}

	n, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = f.fs.Remove(tmp)
		return "", fmt.Errorf("%w: stream %s: %v", ErrTransport, req.URL, err)
	}

	if err := f.fs.Rename(tmp, req.Dest); err != nil {
		_ = f.fs.Remove(tmp)
		return "", fmt.Errorf("finalize %s: %w", req.Dest, err)
	}

	f.log.Debug("direct download complete", "url", req.URL, "dest", req.Dest, "bytes", n)
	return req.Dest, nil
}
