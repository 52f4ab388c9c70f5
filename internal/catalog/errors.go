package catalog

import "errors"

// Sentinel errors for the catalog package.
var (
	// ErrReleaseNotFound is returned when a release UUID cannot be resolved.
	ErrReleaseNotFound = errors.New("release not found")

	// ErrSiteNotFound is returned when a site UUID cannot be resolved.
	ErrSiteNotFound = errors.New("site not found")
)
