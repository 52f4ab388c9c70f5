// internal/pathing/resolver_test.go
package pathing

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/grabarr/grabarr/internal/catalog"
)

// fakeCatalog serves a fixed release/site pair.
type fakeCatalog struct {
	release *catalog.ReleaseDescriptor
	site    *catalog.SiteInfo
}

func (f *fakeCatalog) GetRelease(_ context.Context, uuid string) (*catalog.ReleaseDescriptor, error) {
	if f.release == nil || f.release.UUID != uuid {
		return nil, catalog.ErrReleaseNotFound
	}
	return f.release, nil
}

func (f *fakeCatalog) GetSite(_ context.Context, uuid string) (*catalog.SiteInfo, error) {
	if f.site == nil || f.site.UUID != uuid {
		return nil, catalog.ErrSiteNotFound
	}
	return f.site, nil
}

func (f *fakeCatalog) RecordDownload(context.Context, *catalog.DownloadRecord) error {
	return nil
}

func testCatalog() *fakeCatalog {
	return &fakeCatalog{
		release: &catalog.ReleaseDescriptor{
			UUID:      "rel-1",
			SiteUUID:  "site-1",
			Name:      "A Longer Release Name",
			ShortName: "short",
			Date:      time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		},
		site: &catalog.SiteInfo{UUID: "site-1", Name: "Example Site"},
	}
}

func TestResolver_Layout(t *testing.T) {
	r := NewResolver(testCatalog(), "/media")

	got, err := r.Resolve(context.Background(), "rel-1", catalog.FileDescriptor{
		URL:      "https://cdn.example.com/videos/full.mp4",
		FileType: catalog.FileTypeVideo,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	want := "/media/Example Site/Metadata/rel-1/Example Site - 2024-03-15 - short - A Longer Release Name - rel-1.mp4"
	if got != want {
		t.Errorf("Resolve = %q, want %q", got, want)
	}
}

func TestResolver_SubsiteDirectory(t *testing.T) {
	cat := testCatalog()
	cat.site.Subsite = "Sub Network"
	r := NewResolver(cat, "/media")

	got, err := r.Resolve(context.Background(), "rel-1", catalog.FileDescriptor{
		URL:      "https://cdn.example.com/cover.jpg",
		FileType: catalog.FileTypeImage,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !strings.HasPrefix(got, "/media/Example Site: Sub Network/Metadata/rel-1/") {
		t.Errorf("Resolve = %q, want subsite directory prefix", got)
	}
}

func TestResolver_ManifestExtensionRemap(t *testing.T) {
	r := NewResolver(testCatalog(), "/media")

	got, err := r.Resolve(context.Background(), "rel-1", catalog.FileDescriptor{
		URL:      "https://cdn.example.com/stream/master.m3u8?token=abc",
		FileType: catalog.FileTypeVideo,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if filepath.Ext(got) != ".mp4" {
		t.Errorf("Resolve = %q, want .mp4 extension for m3u8 source", got)
	}
}

func TestResolver_DefaultExtensions(t *testing.T) {
	r := NewResolver(testCatalog(), "/media")

	tests := []struct {
		fileType catalog.FileType
		wantExt  string
	}{
		{catalog.FileTypeVideo, ".mp4"},
		{catalog.FileTypeImage, ".jpg"},
		{catalog.FileTypeArchive, ""},
	}

	for _, tt := range tests {
		got, err := r.Resolve(context.Background(), "rel-1", catalog.FileDescriptor{
			URL:      "https://cdn.example.com/asset", // no extension
			FileType: tt.fileType,
		})
		if err != nil {
			t.Fatalf("Resolve(%s): %v", tt.fileType, err)
		}
		if filepath.Ext(got) != tt.wantExt {
			t.Errorf("Resolve(%s) = %q, want ext %q", tt.fileType, got, tt.wantExt)
		}
	}
}

// Files of one release that differ in variant or resolution must never
// collide on the same path.
func TestResolver_NoCollisions(t *testing.T) {
	r := NewResolver(testCatalog(), "/media")

	files := []catalog.FileDescriptor{
		{URL: "https://cdn.example.com/v.mp4", FileType: catalog.FileTypeVideo, Variant: "1080p"},
		{URL: "https://cdn.example.com/v.mp4", FileType: catalog.FileTypeVideo, Variant: "720p"},
		{URL: "https://cdn.example.com/v.mp4", FileType: catalog.FileTypeVideo},
		{URL: "https://cdn.example.com/v.mp4", FileType: catalog.FileTypeVideo, Width: 1920, Height: 1080},
		{URL: "https://cdn.example.com/v.mp4", FileType: catalog.FileTypeVideo, Width: 1280, Height: 720},
		{URL: "https://cdn.example.com/v.mp4", FileType: catalog.FileTypeVideo, Width: 1920, Height: 1080, Variant: "hq"},
	}

	seen := make(map[string]int)
	for i, f := range files {
		got, err := r.Resolve(context.Background(), "rel-1", f)
		if err != nil {
			t.Fatalf("Resolve(%d): %v", i, err)
		}
		if prev, dup := seen[got]; dup {
			t.Errorf("files %d and %d collide on %q", prev, i, got)
		}
		seen[got] = i
	}
}

func TestResolver_NotFound(t *testing.T) {
	r := NewResolver(testCatalog(), "/media")
	file := catalog.FileDescriptor{URL: "https://x/y.mp4", FileType: catalog.FileTypeVideo}

	if _, err := r.Resolve(context.Background(), "missing", file); !errors.Is(err, catalog.ErrReleaseNotFound) {
		t.Errorf("unknown release: err = %v, want ErrReleaseNotFound", err)
	}

	cat := testCatalog()
	cat.site = nil
	r = NewResolver(cat, "/media")
	if _, err := r.Resolve(context.Background(), "rel-1", file); !errors.Is(err, catalog.ErrSiteNotFound) {
		t.Errorf("unknown site: err = %v, want ErrSiteNotFound", err)
	}
}

func TestResolver_SanitizesMetadataFields(t *testing.T) {
	cat := testCatalog()
	cat.release.Name = `Name: With "Illegal" Chars?`
	r := NewResolver(cat, "/media")

	got, err := r.Resolve(context.Background(), "rel-1", catalog.FileDescriptor{
		URL:      "https://cdn.example.com/v.mp4",
		FileType: catalog.FileTypeVideo,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	base := filepath.Base(got)
	for _, c := range `"?` {
		if strings.ContainsRune(base, c) {
			t.Errorf("filename %q still contains %q", base, c)
		}
	}
}
