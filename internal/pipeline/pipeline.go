// Package pipeline wires the ingestion flow for one asset: resolve the
// storage path, short-circuit if the asset is already present, check storage
// admission, run the selected download strategy, extract technical metadata,
// and append the download record to the catalog.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/grabarr/grabarr/internal/catalog"
	"github.com/grabarr/grabarr/internal/fetch"
	"github.com/grabarr/grabarr/internal/pathing"
	"github.com/grabarr/grabarr/internal/storage"
	"github.com/spf13/afero"
)

// SpaceCheck reports whether the volume under dir has at least minFreeGiB
// available. Matches storage.CheckSpace.
type SpaceCheck func(dir string, minFreeGiB float64) (bool, float64, error)

// Extractor computes technical metadata for a saved file.
type Extractor interface {
	Extract(ctx context.Context, path string, ft catalog.FileType) catalog.TechnicalMetadata
}

// Config tunes per-pipeline behavior.
type Config struct {
	MinFreeGiB float64 // admission floor, default storage.DefaultMinFreeGiB
}

// Item is one unit of work: a release, one of its files, and the session
// cookies the source requires, if any.
type Item struct {
	ReleaseUUID string
	File        catalog.FileDescriptor
	Cookies     []*http.Cookie
}

// Pipeline processes one (release, file) pair per call. All per-item state is
// local to the call; a pipeline instance may be shared across workers as long
// as the catalog client is.
type Pipeline struct {
	catalog    catalog.Catalog
	resolver   *pathing.Resolver
	strategies map[fetch.Kind]fetch.Strategy
	extractor  Extractor
	minFreeGiB float64
	log        *slog.Logger

	// seams for tests
	checkSpace SpaceCheck
	fs         afero.Fs
	now        func() time.Time
	newUUID    func() string
}

// New creates a pipeline. The strategies map is the dispatch table keyed by
// fetch.Classify results; adaptive entries are expected to be
// supervisor-wrapped.
func New(cat catalog.Catalog, resolver *pathing.Resolver, strategies map[fetch.Kind]fetch.Strategy,
	extractor Extractor, cfg Config, log *slog.Logger) *Pipeline {

	if cfg.MinFreeGiB <= 0 {
		cfg.MinFreeGiB = storage.DefaultMinFreeGiB
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		catalog:    cat,
		resolver:   resolver,
		strategies: strategies,
		extractor:  extractor,
		minFreeGiB: cfg.MinFreeGiB,
		log:        log,
		checkSpace: storage.CheckSpace,
		fs:         afero.NewOsFs(),
		now:        time.Now,
		newUUID:    uuid.NewString,
	}
}

// Process runs the full flow for one item. Path resolution and admission
// failures abort before any network or process activity; metadata extraction
// failures never abort a download that produced a file on disk.
func (p *Pipeline) Process(ctx context.Context, item Item) (*catalog.DownloadRecord, error) {
	file := item.File

	dest, err := p.resolver.Resolve(ctx, item.ReleaseUUID, file)
	if err != nil {
		return nil, err
	}

	final := dest
	if p.assetPresent(dest) {
		p.log.Info("asset already present, skipping download", "dest", dest, "url", file.URL)
	} else {
		ok, available, err := p.checkSpace(filepath.Dir(dest), p.minFreeGiB)
		if err != nil {
			return nil, fmt.Errorf("admission check: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %.1f GiB available, %.1f GiB required",
				storage.ErrInsufficientStorage, available, p.minFreeGiB)
		}

		kind := fetch.Classify(file.URL)
		strategy, registered := p.strategies[kind]
		if !registered {
			return nil, fmt.Errorf("no strategy registered for %s sources", kind)
		}

		req := fetch.Request{
			URL:     file.URL,
			Dest:    dest,
			Referer: refererFor(file.URL),
			Cookies: item.Cookies,
		}
		final, err = strategy.Fetch(ctx, req)
		if err != nil {
			p.log.Error("download failed", "url", file.URL, "dest", dest,
				"strategy", string(kind), "error", err)
			return nil, err
		}
	}

	meta := p.extractor.Extract(ctx, final, file.FileType)

	rec := &catalog.DownloadRecord{
		UUID:             p.newUUID(),
		ReleaseUUID:      item.ReleaseUUID,
		DownloadedAt:     p.now(),
		FileType:         file.FileType,
		ContentType:      file.ContentType,
		Variant:          file.Variant,
		File:             file,
		OriginalFilename: originalFilename(file.URL),
		SavedFilename:    filepath.Base(final),
		Metadata:         meta,
	}
	if err := p.catalog.RecordDownload(ctx, rec); err != nil {
		return nil, fmt.Errorf("record download: %w", err)
	}

	p.log.Info("download recorded", "release", item.ReleaseUUID,
		"saved", rec.SavedFilename, "type", string(rec.FileType))
	return rec, nil
}

// assetPresent reports whether a complete asset already exists at dest: a
// regular file of nonzero size. Direct downloads are written through a
// temp-file-then-rename, so a present file is trusted as complete.
func (p *Pipeline) assetPresent(dest string) bool {
	info, err := p.fs.Stat(dest)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// originalFilename extracts the filename from a source locator.
func originalFilename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return path.Base(rawURL)
	}
	return path.Base(u.Path)
}

// refererFor computes the Referer header for a source: its origin.
func refererFor(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/"
}
