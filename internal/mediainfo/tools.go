// internal/mediainfo/tools.go
package mediainfo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// videoHashes is the JSON document produced by the external hashing tool.
type videoHashes struct {
	Duration float64 `json:"duration"`
	PHash    string  `json:"phash"`
	OSHash   string  `json:"oshash"`
	MD5      string  `json:"md5"`
}

// hashVideo invokes the perceptual/exact hashing tool with its JSON output
// flag and decodes the result.
func (e *Extractor) hashVideo(ctx context.Context, path string) (*videoHashes, error) {
	out, err := e.output(ctx, e.hasherBin, "-json", path)
	if err != nil {
		return nil, toolError(e.hasherBin, err)
	}

	var hashes videoHashes
	if err := json.Unmarshal(out, &hashes); err != nil {
		return nil, fmt.Errorf("%s: decode output: %w", e.hasherBin, err)
	}
	return &hashes, nil
}

// probe invokes the stream-probing tool and returns its structured
// container/stream description verbatim.
func (e *Extractor) probe(ctx context.Context, path string) (json.RawMessage, error) {
	out, err := e.output(ctx, e.probeBin,
		"-v", "quiet", "-print_format", "json", "-show_format", "-show_streams", path)
	if err != nil {
		return nil, toolError(e.probeBin, err)
	}
	if !json.Valid(out) {
		return nil, fmt.Errorf("%s: output is not valid JSON", e.probeBin)
	}
	return json.RawMessage(out), nil
}

// toolError folds a non-zero exit or missing executable into a structured
// error carrying the tool's stderr.
func toolError(name string, err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		stderr := strings.TrimSpace(string(exitErr.Stderr))
		if stderr != "" {
			return fmt.Errorf("%s: %w: %s", name, err, stderr)
		}
	}
	return fmt.Errorf("%s: %w", name, err)
}
