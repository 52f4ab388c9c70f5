// internal/match/match_test.go
package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dur(seconds float64) *float64 { return &seconds }

func candidate(id, hash string, fpDur, recDur *float64) Candidate {
	return Candidate{
		ID:       id,
		Duration: recDur,
		Fingerprints: []Fingerprint{
			{Algorithm: "phash", Hash: hash, Duration: fpDur},
		},
	}
}

func TestHammingDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"0000000000000000", "0000000000000000", 0},
		{"0000000000000000", "0000000000000001", 1},
		{"0000000000000000", "000000000000ffff", 16},
		{"0000000000000000", "000000000001ffff", 17},
		{"f85c3c1c1c1c1c1c", "f85c3c1c1c1c1c1d", 1},
		{"0000000000000000", "ffffffffffffffff", 64},
	}

	for _, tt := range tests {
		got, err := HammingDistance(tt.a, tt.b)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "HammingDistance(%s, %s)", tt.a, tt.b)
	}
}

func TestHammingDistance_RejectsNonHex(t *testing.T) {
	_, err := HammingDistance("not-hex", "0000000000000000")
	assert.Error(t, err)
}

func TestMatch_ExactHash(t *testing.T) {
	locals := []Local{{Filename: "clip.mp4", Hash: "f85c3c1c1c1c1c1c", Duration: dur(300)}}
	cands := []Candidate{candidate("scene-1", "f85c3c1c1c1c1c1c", dur(300), dur(300))}

	res := Match(locals, cands, Options{})["f85c3c1c1c1c1c1c"]
	require.True(t, res.Matched)
	assert.Equal(t, "scene-1", res.CandidateID)
	assert.Equal(t, 0, res.Distance)
	assert.Equal(t, 0.0, res.DurationDelta)
}

func TestMatch_NearHashWithinPolicy(t *testing.T) {
	locals := []Local{{Filename: "clip.mp4", Hash: "f85c3c1c1c1c1c1c", Duration: dur(300)}}
	cands := []Candidate{candidate("scene-1", "f85c3c1c1c1c1c1d", dur(301), dur(301))}

	res := Match(locals, cands, Options{})["f85c3c1c1c1c1c1c"]
	require.True(t, res.Matched)
	assert.Equal(t, "scene-1", res.CandidateID)
	assert.Equal(t, 1, res.Distance)
	assert.Equal(t, 1.0, res.DurationDelta)
}

func TestMatch_DistanceBoundary(t *testing.T) {
	local := Local{Filename: "clip.mp4", Hash: "0000000000000000"}

	atLimit := Match([]Local{local},
		[]Candidate{candidate("ok", "000000000000ffff", nil, nil)},
		Options{})[local.Hash]
	require.True(t, atLimit.Matched, "distance 16 must match")
	assert.Equal(t, 16, atLimit.Distance)

	overLimit := Match([]Local{local},
		[]Candidate{candidate("far", "000000000001ffff", nil, nil)},
		Options{})[local.Hash]
	assert.False(t, overLimit.Matched, "distance 17 must not match")
}

func TestMatch_DurationBoundary(t *testing.T) {
	local := Local{Filename: "clip.mp4", Hash: "0000000000000000", Duration: dur(300)}

	atLimit := Match([]Local{local},
		[]Candidate{candidate("ok", "0000000000000000", dur(360), dur(360))},
		Options{})[local.Hash]
	require.True(t, atLimit.Matched, "delta of exactly 60s must match")
	assert.Equal(t, 60.0, atLimit.DurationDelta)

	overLimit := Match([]Local{local},
		[]Candidate{candidate("off", "0000000000000000", dur(361), dur(361))},
		Options{})[local.Hash]
	assert.False(t, overLimit.Matched, "delta of 61s must not match")
}

func TestMatch_UnknownDurationSkipsFilter(t *testing.T) {
	// With either duration unknown the duration filter cannot apply and the
	// reported delta is -1.
	locals := []Local{{Filename: "clip.mp4", Hash: "0000000000000000"}}
	cands := []Candidate{candidate("scene-1", "0000000000000001", dur(5000), nil)}

	res := Match(locals, cands, Options{})["0000000000000000"]
	require.True(t, res.Matched)
	assert.Equal(t, -1.0, res.DurationDelta)
}

func TestMatch_TieBreaksOnRecordDuration(t *testing.T) {
	// Two candidates at equal distance; the one whose record-level duration
	// is closest to the local duration wins.
	locals := []Local{{Filename: "clip.mp4", Hash: "0000000000000000", Duration: dur(300)}}
	cands := []Candidate{
		candidate("far-duration", "0000000000000001", dur(300), dur(345)),
		candidate("near-duration", "0000000000000010", dur(300), dur(302)),
	}

	res := Match(locals, cands, Options{})["0000000000000000"]
	require.True(t, res.Matched)
	assert.Equal(t, "near-duration", res.CandidateID)
	assert.Equal(t, 1, res.Distance)
	assert.Equal(t, 2.0, res.DurationDelta)
}

func TestMatch_SmallerDistanceBeatsCloserDuration(t *testing.T) {
	locals := []Local{{Filename: "clip.mp4", Hash: "0000000000000000", Duration: dur(300)}}
	cands := []Candidate{
		candidate("close-hash", "0000000000000001", dur(300), dur(350)),
		candidate("close-duration", "0000000000000011", dur(300), dur(300)),
	}

	res := Match(locals, cands, Options{})["0000000000000000"]
	require.True(t, res.Matched)
	assert.Equal(t, "close-hash", res.CandidateID)
}

func TestMatch_IgnoresOtherAlgorithms(t *testing.T) {
	locals := []Local{{Filename: "clip.mp4", Hash: "0000000000000000"}}
	cands := []Candidate{{
		ID: "scene-1",
		Fingerprints: []Fingerprint{
			{Algorithm: "oshash", Hash: "0000000000000000"},
		},
	}}

	res := Match(locals, cands, Options{})["0000000000000000"]
	assert.False(t, res.Matched)
}

func TestMatch_NoCandidates(t *testing.T) {
	locals := []Local{{Filename: "clip.mp4", Hash: "0000000000000000"}}

	res := Match(locals, nil, Options{})["0000000000000000"]
	assert.False(t, res.Matched)
	assert.Equal(t, -1, res.Distance)
	assert.Equal(t, -1.0, res.DurationDelta)
}

func TestMatch_SkipsMalformedCandidateHashes(t *testing.T) {
	locals := []Local{{Filename: "clip.mp4", Hash: "0000000000000000"}}
	cands := []Candidate{
		candidate("broken", "zz-not-a-hash", nil, nil),
		candidate("good", "0000000000000001", nil, nil),
	}

	res := Match(locals, cands, Options{})["0000000000000000"]
	require.True(t, res.Matched)
	assert.Equal(t, "good", res.CandidateID)
}

func TestMatch_MultipleLocals(t *testing.T) {
	locals := []Local{
		{Filename: "a.mp4", Hash: "0000000000000000"},
		{Filename: "b.mp4", Hash: "ffffffffffffffff"},
	}
	cands := []Candidate{candidate("scene-1", "0000000000000001", nil, nil)}

	results := Match(locals, cands, Options{})
	require.Len(t, results, 2)
	assert.True(t, results["0000000000000000"].Matched)
	assert.False(t, results["ffffffffffffffff"].Matched)
}
