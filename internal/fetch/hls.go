// internal/fetch/hls.go
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// HLSConfig configures the external segmented downloader.
type HLSConfig struct {
	Binary              string        // downloader executable, default "yt-dlp"
	Retries             int           // tool-internal per-fragment retries
	ConcurrentFragments int           // parallel segment transfers
	SocketTimeout       time.Duration // per-socket read timeout
	ThrottledRate       string        // re-extract below this rate, e.g. "100K"
}

func (c *HLSConfig) applyDefaults() {
	if c.Binary == "" {
		c.Binary = "yt-dlp"
	}
	if c.Retries <= 0 {
		c.Retries = 10
	}
	if c.ConcurrentFragments <= 0 {
		c.ConcurrentFragments = 4
	}
	if c.SocketTimeout <= 0 {
		c.SocketTimeout = 30 * time.Second
	}
}

// Attempt is a handle on one in-flight external transfer. Progress carries
// parsed events and closes when the output stream ends; Done receives the
// attempt's outcome exactly once.
type Attempt struct {
	Progress  <-chan Progress
	Done      <-chan error
	terminate func(grace time.Duration)
}

// Terminate stops the underlying process, graceful first, forced after the
// grace period.
func (a *Attempt) Terminate(grace time.Duration) {
	a.terminate(grace)
}

// Monitorable is a strategy whose attempts expose live progress, making them
// supervisable for stalls. See Supervisor.
type Monitorable interface {
	Start(ctx context.Context, req Request) (*Attempt, error)
}

// HLSFetcher downloads adaptive/segmented streams by delegating to an
// external downloader and consuming its output line-by-line. It is always
// wrapped by a Supervisor; it performs no retries of its own.
type HLSFetcher struct {
	cfg    HLSConfig
	parser ProgressParser
	run    runner
	log    *slog.Logger
}

// NewHLSFetcher creates the adaptive-stream strategy.
func NewHLSFetcher(cfg HLSConfig, log *slog.Logger) *HLSFetcher {
	cfg.applyDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &HLSFetcher{
		cfg:    cfg,
		parser: YTDLPParser{},
		run:    execRunner{},
		log:    log,
	}
}

func (f *HLSFetcher) args(req Request) []string {
	a := []string{
		"--newline",
		"--no-part",
		"--retries", strconv.Itoa(f.cfg.Retries),
		"--concurrent-fragments", strconv.Itoa(f.cfg.ConcurrentFragments),
		"--socket-timeout", strconv.Itoa(int(f.cfg.SocketTimeout.Seconds())),
	}
	if f.cfg.ThrottledRate != "" {
		a = append(a, "--throttled-rate", f.cfg.ThrottledRate)
	}
	if req.Referer != "" {
		a = append(a, "--referer", req.Referer)
	}
	return append(a, "-o", req.Dest, req.URL)
}

// Start implements Monitorable. The returned attempt's Done error is already
// classified: permanent source failures and missing tools surface as their
// sentinel errors.
func (f *HLSFetcher) Start(ctx context.Context, req Request) (*Attempt, error) {
	if err := os.MkdirAll(filepath.Dir(req.Dest), 0o755); err != nil {
		return nil, fmt.Errorf("create destination dir: %w", err)
	}

	proc, err := f.run.Start(ctx, f.cfg.Binary, f.args(req)...)
	if err != nil {
		return nil, err
	}

	progress := make(chan Progress, 64)
	done := make(chan error, 1)

	go func() {
		defer close(progress)

		permanent := false
		out := newTail(8)
		for line := range proc.Lines() {
			out.Add(line)
			if f.parser.Permanent(line) {
				permanent = true
			}
			if p, ok := f.parser.ParseLine(line); ok {
				select {
				case progress <- p:
				default: // supervisor is behind; a newer event will follow
				}
			}
		}

		err := proc.Wait()
		switch {
		case permanent:
			done <- fmt.Errorf("%w: %s: %s", ErrPermanentSource, req.URL, out)
		case err != nil:
			done <- fmt.Errorf("%s exited: %w (output: %s)", f.cfg.Binary, err, out)
		default:
			done <- nil
		}
	}()

	return &Attempt{Progress: progress, Done: done, terminate: proc.Terminate}, nil
}
