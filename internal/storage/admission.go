// Package storage gates downloads on available disk capacity.
package storage

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// DefaultMinFreeGiB is the free-space floor below which downloads are refused.
const DefaultMinFreeGiB = 50.0

const bytesPerGiB = 1024 * 1024 * 1024

// ErrInsufficientStorage is returned when the target volume is below the
// configured free-space floor. It is terminal: the item is dropped without
// consuming a retry budget.
var ErrInsufficientStorage = errors.New("insufficient storage")

// CheckSpace reports whether the volume holding dir has at least minFreeGiB
// available, creating dir first if it does not exist. The returned figure is
// the available space in GiB.
//
// This is a check, not a reservation: two concurrent callers can both observe
// sufficient space and overshoot the floor.
func CheckSpace(dir string, minFreeGiB float64) (bool, float64, error) {
	if minFreeGiB <= 0 {
		minFreeGiB = DefaultMinFreeGiB
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, 0, fmt.Errorf("create storage dir: %w", err)
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(dir, &stat); err != nil {
		return false, 0, fmt.Errorf("statfs %s: %w", dir, err)
	}

	available := float64(stat.Bavail*uint64(stat.Bsize)) / bytesPerGiB
	return available >= minFreeGiB, available, nil
}
