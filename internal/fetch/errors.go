package fetch

import "errors"

// Sentinel errors for the fetch package.
var (
	// ErrTransport is a network or HTTP failure from the direct strategy.
	// Terminal for the attempt; the strategy never retries internally.
	ErrTransport = errors.New("transport failure")

	// ErrStallTimeout means a transfer made no forward progress for longer
	// than the stall threshold. Retried up to the supervisor's bound.
	ErrStallTimeout = errors.New("download stalled")

	// ErrPermanentSource means the source can never be fetched (e.g. a
	// fragment is gone). Never retried.
	ErrPermanentSource = errors.New("source permanently unavailable")

	// ErrToolNotFound means an external downloader binary is missing. This
	// is an operator configuration error and short-circuits all retries.
	ErrToolNotFound = errors.New("downloader tool not found")
)
