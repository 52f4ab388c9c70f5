// internal/fetch/aria2.go
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Aria2Config configures the external multi-connection downloader.
type Aria2Config struct {
	Binary         string // downloader executable, default "aria2c"
	MaxConnections int    // connections per server
	Splits         int    // number of file splits
	MinSplitSize   string // e.g. "1M"
	Retries        int    // tool-internal retry count
}

func (c *Aria2Config) applyDefaults() {
	if c.Binary == "" {
		c.Binary = "aria2c"
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = 4
	}
	if c.Splits <= 0 {
		c.Splits = 4
	}
	if c.MinSplitSize == "" {
		c.MinSplitSize = "1M"
	}
	if c.Retries <= 0 {
		c.Retries = 3
	}
}

// Aria2Fetcher downloads plain HTTP/HTTPS assets through an external
// multi-connection downloader. The tool owns its own retry policy; this
// strategy never retries and is not supervisor-wrapped.
type Aria2Fetcher struct {
	cfg    Aria2Config
	parser ProgressParser
	run    runner
	log    *slog.Logger
}

// NewAria2Fetcher creates the multi-connection strategy.
func NewAria2Fetcher(cfg Aria2Config, log *slog.Logger) *Aria2Fetcher {
	cfg.applyDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &Aria2Fetcher{
		cfg:    cfg,
		parser: Aria2Parser{},
		run:    execRunner{},
		log:    log,
	}
}

func (f *Aria2Fetcher) args(req Request) []string {
	a := []string{
		"--max-connection-per-server=" + strconv.Itoa(f.cfg.MaxConnections),
		"--split=" + strconv.Itoa(f.cfg.Splits),
		"--min-split-size=" + f.cfg.MinSplitSize,
		"--max-tries=" + strconv.Itoa(f.cfg.Retries),
		"--continue=true",
		"--auto-file-renaming=false",
		"--dir=" + filepath.Dir(req.Dest),
		"--out=" + filepath.Base(req.Dest),
	}
	if len(req.Cookies) > 0 {
		pairs := make([]string, 0, len(req.Cookies))
		for _, c := range req.Cookies {
			pairs = append(pairs, c.Name+"="+c.Value)
		}
		a = append(a, "--header=Cookie: "+strings.Join(pairs, "; "))
	}
	if req.Referer != "" {
		a = append(a, "--referer="+req.Referer)
	}
	return append(a, req.URL)
}

// Fetch implements Strategy. The child's combined output is streamed to the
// log for operator visibility.
func (f *Aria2Fetcher) Fetch(ctx context.Context, req Request) (string, error) {
	if err := os.MkdirAll(filepath.Dir(req.Dest), 0o755); err != nil {
		return "", fmt.Errorf("create destination dir: %w", err)
	}

	proc, err := f.run.Start(ctx, f.cfg.Binary, f.args(req)...)
	if err != nil {
		return "", err
	}

	permanent := false
	out := newTail(8)
	for line := range proc.Lines() {
		out.Add(line)
		if f.parser.Permanent(line) {
			permanent = true
		}
		if p, ok := f.parser.ParseLine(line); ok {
			f.log.Debug("multi-connection progress", "url", req.URL,
				"percent", p.Percent, "bytes", p.Bytes, "total", p.TotalBytes)
		} else {
			f.log.Debug(f.cfg.Binary, "line", line)
		}
	}

	if err := proc.Wait(); err != nil {
		if permanent {
			return "", fmt.Errorf("%w: %s: %s", ErrPermanentSource, req.URL, out)
		}
		return "", fmt.Errorf("%s exited: %w (output: %s)", f.cfg.Binary, err, out)
	}

	if _, err := os.Stat(req.Dest); err != nil {
		return "", fmt.Errorf("%s reported success but %s is missing", f.cfg.Binary, req.Dest)
	}
	return req.Dest, nil
}
