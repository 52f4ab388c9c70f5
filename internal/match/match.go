// Package match reconciles local perceptual fingerprints against candidate
// records from the external catalog, selecting the best candidate per local
// fingerprint under a distance/duration policy.
package match

import (
	"fmt"
	"math"
	"strconv"

	"github.com/hbollon/go-edlib"
)

// Defaults for the filtering policy.
const (
	DefaultMaxDistance      = 16 // bits
	DefaultMaxDurationDelta = 60 // seconds
)

// Fingerprint is one (algorithm, hash, optional duration) entry carried by a
// candidate record. Fingerprints are only compared within the same algorithm.
type Fingerprint struct {
	Algorithm string   `json:"algorithm"`
	Hash      string   `json:"hash"`
	Duration  *float64 `json:"duration,omitempty"`
}

// Local is one locally-computed fingerprint to find a home for.
type Local struct {
	Filename string   `json:"filename"`
	Hash     string   `json:"hash"`
	Duration *float64 `json:"duration,omitempty"`
}

// Candidate is one external record carrying zero or more fingerprints plus a
// record-level duration used for tie-breaks.
type Candidate struct {
	ID           string        `json:"id"`
	Duration     *float64      `json:"duration,omitempty"`
	Fingerprints []Fingerprint `json:"fingerprints"`
}

// Result records the outcome for one local fingerprint. DurationDelta is -1
// when either duration was unknown.
type Result struct {
	Matched       bool    `json:"matched"`
	CandidateID   string  `json:"candidate_id,omitempty"`
	Distance      int     `json:"distance"`
	DurationDelta float64 `json:"duration_delta"`
}

// Options tunes the filtering policy. Zero values take the defaults above.
type Options struct {
	Algorithm        string  // fingerprint algorithm to compare, default "phash"
	MaxDistance      int     // candidates farther than this never match
	MaxDurationDelta float64 // seconds, fingerprint-level duration filter
}

func (o *Options) applyDefaults() {
	if o.Algorithm == "" {
		o.Algorithm = "phash"
	}
	if o.MaxDistance <= 0 {
		o.MaxDistance = DefaultMaxDistance
	}
	if o.MaxDurationDelta <= 0 {
		o.MaxDurationDelta = DefaultMaxDurationDelta
	}
}

// Match selects the best candidate per local fingerprint, keyed by the local
// hash. A local entry with no surviving candidate maps to an unmatched
// Result, not an error.
//
// Filtering discards candidate fingerprints whose Hamming distance exceeds
// MaxDistance or whose fingerprint-level duration differs from the local
// duration by more than MaxDurationDelta (when both are known). Among
// survivors the smallest distance wins; ties break on the smallest delta to
// the candidate's record-level duration.
func Match(locals []Local, candidates []Candidate, opts Options) map[string]Result {
	opts.applyDefaults()

	results := make(map[string]Result, len(locals))
	for _, local := range locals {
		results[local.Hash] = bestCandidate(local, candidates, opts)
	}
	return results
}

func bestCandidate(local Local, candidates []Candidate, opts Options) Result {
	best := Result{Distance: -1, DurationDelta: -1}
	bestTieDelta := math.Inf(1)

	for _, cand := range candidates {
		for _, fp := range cand.Fingerprints {
			if fp.Algorithm != opts.Algorithm {
				continue
			}

			dist, err := HammingDistance(local.Hash, fp.Hash)
			if err != nil || dist > opts.MaxDistance {
				continue
			}
			if local.Duration != nil && fp.Duration != nil &&
				math.Abs(*local.Duration-*fp.Duration) > opts.MaxDurationDelta {
				continue
			}

			tieDelta := math.Inf(1)
			if local.Duration != nil && cand.Duration != nil {
				tieDelta = math.Abs(*local.Duration - *cand.Duration)
			}

			if !best.Matched || dist < best.Distance ||
				(dist == best.Distance && tieDelta < bestTieDelta) {
				best = Result{
					Matched:       true,
					CandidateID:   cand.ID,
					Distance:      dist,
					DurationDelta: -1,
				}
				if !math.IsInf(tieDelta, 1) {
					best.DurationDelta = tieDelta
				}
				bestTieDelta = tieDelta
			}
		}
	}

	return best
}

// HammingDistance counts differing bits between two 64-bit hex hashes.
func HammingDistance(a, b string) (int, error) {
	av, err := strconv.ParseUint(a, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse hash %q: %w", a, err)
	}
	bv, err := strconv.ParseUint(b, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse hash %q: %w", b, err)
	}
	return edlib.HammingDistance(fmt.Sprintf("%064b", av), fmt.Sprintf("%064b", bv))
}
