// internal/mediainfo/extract_test.go
package mediainfo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grabarr/grabarr/internal/catalog"
)

const hashesJSON = `{"duration":300.5,"phash":"f85c3c1c1c1c1c1c","oshash":"a1b2c3d4e5f60718","md5":"9e107d9d372bb6826bd81d3542a419d6"}`

const probeJSON = `{"format":{"format_name":"mov,mp4","duration":"300.500000"},"streams":[{"codec_name":"h264","width":1920,"height":1080}]}`

// fakeTools routes extractor tool invocations to canned outputs keyed by
// binary name.
func fakeTools(t *testing.T, outputs map[string][]byte, errs map[string]error) func(context.Context, string, ...string) ([]byte, error) {
	t.Helper()
	return func(_ context.Context, name string, args ...string) ([]byte, error) {
		if err, ok := errs[name]; ok {
			return nil, err
		}
		out, ok := outputs[name]
		if !ok {
			t.Fatalf("unexpected tool invocation: %s %v", name, args)
		}
		return out, nil
	}
}

func newTestExtractor(t *testing.T) *Extractor {
	e := NewExtractor("", "", nil)
	e.fs = afero.NewMemMapFs()
	e.output = fakeTools(t,
		map[string][]byte{"videohashes": []byte(hashesJSON), "ffprobe": []byte(probeJSON)},
		nil)
	return e
}

func TestExtract_Video(t *testing.T) {
	e := newTestExtractor(t)

	meta := e.Extract(context.Background(), "/media/clip.mp4", catalog.FileTypeVideo)

	assert.Equal(t, catalog.MetadataVideo, meta.Kind)
	require.NotNil(t, meta.Duration)
	assert.Equal(t, 300.5, *meta.Duration)
	require.NotNil(t, meta.PHash)
	assert.Equal(t, "f85c3c1c1c1c1c1c", *meta.PHash)
	require.NotNil(t, meta.OSHash)
	assert.Equal(t, "a1b2c3d4e5f60718", *meta.OSHash)
	require.NotNil(t, meta.MD5)
	assert.Equal(t, "9e107d9d372bb6826bd81d3542a419d6", *meta.MD5)
	assert.JSONEq(t, probeJSON, string(meta.Probe))
	assert.Empty(t, meta.HashError)
	assert.Empty(t, meta.ProbeError)
}

func TestExtract_VideoHashFailureKeepsProbe(t *testing.T) {
	e := newTestExtractor(t)
	e.output = fakeTools(t,
		map[string][]byte{"ffprobe": []byte(probeJSON)},
		map[string]error{"videohashes": errors.New("exit status 1")})

	meta := e.Extract(context.Background(), "/media/clip.mp4", catalog.FileTypeVideo)

	assert.Nil(t, meta.PHash)
	assert.Nil(t, meta.Duration)
	assert.Contains(t, meta.HashError, "videohashes")
	assert.Empty(t, meta.ProbeError)
	assert.JSONEq(t, probeJSON, string(meta.Probe))
}

func TestExtract_VideoProbeFailureKeepsHashes(t *testing.T) {
	e := newTestExtractor(t)
	e.output = fakeTools(t,
		map[string][]byte{"videohashes": []byte(hashesJSON)},
		map[string]error{"ffprobe": errors.New("exit status 1")})

	meta := e.Extract(context.Background(), "/media/clip.mp4", catalog.FileTypeVideo)

	require.NotNil(t, meta.PHash)
	assert.Equal(t, "f85c3c1c1c1c1c1c", *meta.PHash)
	assert.Contains(t, meta.ProbeError, "ffprobe")
	assert.Nil(t, meta.Probe)
}

func TestExtract_VideoRejectsMalformedProbeOutput(t *testing.T) {
	e := newTestExtractor(t)
	e.output = fakeTools(t,
		map[string][]byte{
			"videohashes": []byte(hashesJSON),
			"ffprobe":     []byte("ffprobe version 6.1 Copyright"),
		},
		nil)

	meta := e.Extract(context.Background(), "/media/clip.mp4", catalog.FileTypeVideo)

	assert.Contains(t, meta.ProbeError, "not valid JSON")
	assert.Nil(t, meta.Probe)
}

func TestExtract_Generic(t *testing.T) {
	e := newTestExtractor(t)
	content := []byte("cover image bytes")
	require.NoError(t, afero.WriteFile(e.fs, "/media/cover.jpg", content, 0o644))

	meta := e.Extract(context.Background(), "/media/cover.jpg", catalog.FileTypeImage)

	assert.Equal(t, catalog.MetadataGeneric, meta.Kind)
	require.NotNil(t, meta.FileSize)
	assert.Equal(t, int64(len(content)), *meta.FileSize)

	sum := sha256.Sum256(content)
	require.NotNil(t, meta.SHA256)
	assert.Equal(t, hex.EncodeToString(sum[:]), *meta.SHA256)
	assert.Empty(t, meta.Error)
}

func TestExtract_AudioUsesGenericWithAudioKind(t *testing.T) {
	e := newTestExtractor(t)
	require.NoError(t, afero.WriteFile(e.fs, "/media/track.mp3", []byte("audio"), 0o644))

	meta := e.Extract(context.Background(), "/media/track.mp3", catalog.FileTypeAudio)

	assert.Equal(t, catalog.MetadataAudio, meta.Kind)
	require.NotNil(t, meta.SHA256)
}

func TestExtract_GenericMissingFile(t *testing.T) {
	e := newTestExtractor(t)

	meta := e.Extract(context.Background(), "/media/nope.jpg", catalog.FileTypeImage)

	assert.NotEmpty(t, meta.Error)
	assert.Nil(t, meta.FileSize)
	assert.Nil(t, meta.SHA256)
}

func TestToolError_CarriesStderr(t *testing.T) {
	err := toolError("videohashes", fakeExitError{stderr: "cannot open input"})
	if err == nil || !strings.Contains(err.Error(), "videohashes") {
		t.Fatalf("err = %v, want tool name", err)
	}
}

// fakeExitError only checks the non-ExitError path of toolError; real exit
// errors cannot be constructed outside os/exec.
type fakeExitError struct{ stderr string }

func (e fakeExitError) Error() string { return "exit status 1: " + e.stderr }
