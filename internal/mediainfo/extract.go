// Package mediainfo computes content fingerprints and technical probes for
// downloaded assets. Extraction failures are captured per-field into the
// resulting metadata, never returned: a record with partially-missing
// metadata is a valid, persistable outcome.
package mediainfo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"os/exec"

	"github.com/grabarr/grabarr/internal/catalog"
	"github.com/spf13/afero"
)

// Extractor dispatches metadata extraction by file type.
type Extractor struct {
	hasherBin string
	probeBin  string
	fs        afero.Fs
	log       *slog.Logger

	// output runs an external tool and captures stdout. Seam for tests.
	output func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewExtractor creates an extractor using the given hashing and probing
// binaries (defaults: "videohashes", "ffprobe").
func NewExtractor(hasherBin, probeBin string, log *slog.Logger) *Extractor {
	if hasherBin == "" {
		hasherBin = "videohashes"
	}
	if probeBin == "" {
		probeBin = "ffprobe"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{
		hasherBin: hasherBin,
		probeBin:  probeBin,
		fs:        afero.NewOsFs(),
		log:       log,
		output:    runTool,
	}
}

func runTool(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Extract computes technical metadata for a saved file.
func (e *Extractor) Extract(ctx context.Context, path string, ft catalog.FileType) catalog.TechnicalMetadata {
	switch ft {
	case catalog.FileTypeVideo:
		return e.extractVideo(ctx, path)
	case catalog.FileTypeAudio:
		meta := e.extractGeneric(path)
		meta.Kind = catalog.MetadataAudio
		return meta
	default:
		return e.extractGeneric(path)
	}
}

func (e *Extractor) extractVideo(ctx context.Context, path string) catalog.TechnicalMetadata {
	meta := catalog.TechnicalMetadata{Kind: catalog.MetadataVideo}

	hashes, err := e.hashVideo(ctx, path)
	if err != nil {
		meta.HashError = err.Error()
		e.log.Warn("video hashing failed", "path", path, "error", err)
	} else {
		meta.Duration = &hashes.Duration
		meta.PHash = &hashes.PHash
		meta.OSHash = &hashes.OSHash
		meta.MD5 = &hashes.MD5
	}

	probe, err := e.probe(ctx, path)
	if err != nil {
		meta.ProbeError = err.Error()
		e.log.Warn("stream probe failed", "path", path, "error", err)
	} else {
		meta.Probe = probe
	}

	return meta
}

func (e *Extractor) extractGeneric(path string) catalog.TechnicalMetadata {
	meta := catalog.TechnicalMetadata{Kind: catalog.MetadataGeneric}

	info, err := e.fs.Stat(path)
	if err != nil {
		meta.Error = err.Error()
		return meta
	}
	size := info.Size()
	meta.FileSize = &size

	sum, err := e.sha256File(path)
	if err != nil {
		meta.Error = err.Error()
		return meta
	}
	meta.SHA256 = &sum

	return meta
}

func (e *Extractor) sha256File(path string) (string, error) {
	f, err := e.fs.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
