// Package fetch implements the download strategies: a direct HTTP streamer,
// an adaptive-stream fetcher driven by an external segmented downloader, and
// a multi-connection fetcher. All strategies share one contract; selection
// between them is a dispatch-table decision made by the caller.
package fetch

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// Request describes one transfer: a source locator and the destination path
// the asset must end up at, plus request headers for sources that need them.
type Request struct {
	URL     string
	Dest    string
	Referer string
	Cookies []*http.Cookie
}

// Strategy transfers a source to a destination path and returns the final
// path on disk. Implementations do not select themselves; see Classify.
type Strategy interface {
	Fetch(ctx context.Context, req Request) (string, error)
}

// Kind names a download strategy for dispatch.
type Kind string

const (
	// KindDirect covers plain HTTP sources. Whether they stream in-process
	// or through an external multi-connection downloader is a configuration
	// choice, not a classification.
	KindDirect Kind = "direct"
	// KindAdaptive delegates segmented/adaptive streams to an external
	// downloader, wrapped by the stall/retry Supervisor.
	KindAdaptive Kind = "adaptive"
)

// Classify picks the strategy kind for a source locator. Adaptive-stream
// manifests go to the segmented downloader; everything else is a plain URL.
func Classify(rawURL string) Kind {
	u, err := url.Parse(rawURL)
	if err != nil {
		return KindDirect
	}
	if strings.EqualFold(path.Ext(u.Path), ".m3u8") {
		return KindAdaptive
	}
	return KindDirect
}
