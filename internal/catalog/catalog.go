// Package catalog defines the release/file data model and the narrow
// read/append interface this pipeline uses to talk to the external catalog.
package catalog

import (
	"context"
	"encoding/json"
	"time"
)

// FileType classifies the binary payload of a FileDescriptor.
type FileType string

const (
	FileTypeVideo    FileType = "video"
	FileTypeImage    FileType = "image"
	FileTypeAudio    FileType = "audio"
	FileTypeArchive  FileType = "archive"
	FileTypeSubtitle FileType = "subtitle"
)

// ReleaseDescriptor is the scraped release a file belongs to. It is owned by
// the catalog and read-only from this subsystem's perspective.
type ReleaseDescriptor struct {
	UUID        string
	SiteUUID    string
	Name        string
	ShortName   string
	Date        time.Time
	Description string
	Duration    float64 // seconds, 0 when unknown
}

// SiteInfo identifies the site (and optional sub-site) a release was scraped from.
type SiteInfo struct {
	UUID    string
	Name    string
	Subsite string // empty when the site has no sub-sites
}

// FileDescriptor points at one downloadable asset of a release.
type FileDescriptor struct {
	URL         string   `json:"url"`
	FileType    FileType `json:"file_type"`
	ContentType string   `json:"content_type"` // semantic role: cover, scene, preview, gallery...
	Variant     string   `json:"variant,omitempty"`
	Width       int      `json:"width,omitempty"`
	Height      int      `json:"height,omitempty"`
}

// MetadataKind tags which shape of TechnicalMetadata was extracted.
type MetadataKind string

const (
	MetadataVideo   MetadataKind = "video"
	MetadataAudio   MetadataKind = "audio"
	MetadataGeneric MetadataKind = "generic"
)

// TechnicalMetadata holds post-download probes and fingerprints. Fields are
// pointers because absence (extraction failed or not attempted) is distinct
// from a zero value.
type TechnicalMetadata struct {
	Kind MetadataKind `json:"kind"`

	// Video
	Duration   *float64        `json:"duration,omitempty"`
	PHash      *string         `json:"phash,omitempty"`
	OSHash     *string         `json:"oshash,omitempty"`
	MD5        *string         `json:"md5,omitempty"`
	Probe      json.RawMessage `json:"probe,omitempty"`
	HashError  string          `json:"hash_error,omitempty"`
	ProbeError string          `json:"probe_error,omitempty"`

	// Audio / generic
	FileSize *int64  `json:"file_size,omitempty"`
	SHA256   *string `json:"sha256,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// DownloadRecord is created exactly once per successful (or already-present)
// download and never mutated afterwards.
type DownloadRecord struct {
	UUID             string
	ReleaseUUID      string
	DownloadedAt     time.Time
	FileType         FileType
	ContentType      string
	Variant          string
	File             FileDescriptor // originating descriptor, verbatim
	OriginalFilename string         // basename of the source URL
	SavedFilename    string         // basename of the resolved path
	Metadata         TechnicalMetadata
}

// Catalog is the collaborator boundary. Schema and transaction semantics are
// the catalog's concern; this subsystem only reads releases/sites and appends
// download records.
type Catalog interface {
	// GetRelease returns the release descriptor, or ErrReleaseNotFound.
	GetRelease(ctx context.Context, uuid string) (*ReleaseDescriptor, error)
	// GetSite returns the site info, or ErrSiteNotFound.
	GetSite(ctx context.Context, uuid string) (*SiteInfo, error)
	// RecordDownload persists a download record. Recording the same
	// (release, saved filename) pair twice is a no-op.
	RecordDownload(ctx context.Context, rec *DownloadRecord) error
}
