// Package pathing derives deterministic, filesystem-safe storage paths from
// release and file metadata.
package pathing

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/grabarr/grabarr/internal/catalog"
)

// extension defaults per file type, applied when the source URL carries none.
var defaultExt = map[catalog.FileType]string{
	catalog.FileTypeVideo: ".mp4",
	catalog.FileTypeImage: ".jpg",
}

// Resolver computes storage paths relative to a base directory, resolving
// release and site metadata against the catalog.
type Resolver struct {
	catalog catalog.Catalog
	root    string
}

// NewResolver creates a resolver rooted at the given base directory.
func NewResolver(cat catalog.Catalog, root string) *Resolver {
	return &Resolver{catalog: cat, root: root}
}

// Resolve computes the storage path for one file of a release:
//
//	{site}[: {subsite}]/Metadata/{release_uuid}/
//	  {site} - {date} - {short} - {name}[ - {WxH}][ [{variant}]] - {release_uuid}{ext}
//
// Metadata fields are sanitized individually before composition so the
// directory-separator structure of the layout is fixed. Two files of the same
// release that differ in variant or resolution never resolve to the same path.
func (r *Resolver) Resolve(ctx context.Context, releaseUUID string, file catalog.FileDescriptor) (string, error) {
	release, err := r.catalog.GetRelease(ctx, releaseUUID)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	site, err := r.catalog.GetSite(ctx, release.SiteUUID)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}

	siteName := SanitizeComponent(site.Name)
	siteDir := siteName
	if site.Subsite != "" {
		siteDir = siteName + ": " + SanitizeComponent(site.Subsite)
	}

	var b strings.Builder
	b.WriteString(siteName)
	b.WriteString(" - ")
	b.WriteString(release.Date.Format("2006-01-02"))
	b.WriteString(" - ")
	b.WriteString(SanitizeComponent(release.ShortName))
	b.WriteString(" - ")
	b.WriteString(SanitizeComponent(release.Name))
	if file.Width > 0 && file.Height > 0 {
		fmt.Fprintf(&b, " - %dx%d", file.Width, file.Height)
	}
	if file.Variant != "" {
		fmt.Fprintf(&b, " [%s]", SanitizeComponent(file.Variant))
	}
	b.WriteString(" - ")
	b.WriteString(release.UUID)
	b.WriteString(Extension(file))

	return filepath.Join(r.root, siteDir, "Metadata", release.UUID, b.String()), nil
}

// Extension returns the filename extension for a file descriptor. It is taken
// from the source URL path, with adaptive-stream manifests remapped to their
// muxed container and type-based defaults when the URL carries none.
func Extension(file catalog.FileDescriptor) string {
	ext := ""
	if u, err := url.Parse(file.URL); err == nil {
		ext = path.Ext(u.Path)
	}
	if strings.EqualFold(ext, ".m3u8") {
		return ".mp4"
	}
	if ext == "" {
		return defaultExt[file.FileType]
	}
	return ext
}
