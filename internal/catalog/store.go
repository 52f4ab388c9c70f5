package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

const (
	dateLayout = "2006-01-02"
	timeLayout = time.RFC3339
)

// Store is a sqlite-backed Catalog.
type Store struct {
	db *sql.DB
}

// NewStore creates a catalog store over an existing database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens (creating if needed) the catalog database at path and applies
// the schema.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}

// GetRelease retrieves a release by UUID.
// Returns ErrReleaseNotFound if the release does not exist.
func (s *Store) GetRelease(ctx context.Context, uuid string) (*ReleaseDescriptor, error) {
	r := &ReleaseDescriptor{}
	var date string
	err := s.db.QueryRowContext(ctx, `
		SELECT uuid, site_uuid, name, short_name, date, description, duration
		FROM releases WHERE uuid = ?`, uuid,
	).Scan(&r.UUID, &r.SiteUUID, &r.Name, &r.ShortName, &date, &r.Description, &r.Duration)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("get release %s: %w", uuid, ErrReleaseNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get release %s: %w", uuid, err)
	}

	r.Date, err = time.Parse(dateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("get release %s: parse date %q: %w", uuid, date, err)
	}
	return r, nil
}

// GetSite retrieves a site by UUID.
// Returns ErrSiteNotFound if the site does not exist.
func (s *Store) GetSite(ctx context.Context, uuid string) (*SiteInfo, error) {
	si := &SiteInfo{}
	err := s.db.QueryRowContext(ctx, `
		SELECT uuid, name, subsite FROM sites WHERE uuid = ?`, uuid,
	).Scan(&si.UUID, &si.Name, &si.Subsite)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("get site %s: %w", uuid, ErrSiteNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get site %s: %w", uuid, err)
	}
	return si, nil
}

// RecordDownload persists a download record.
// This method is idempotent: if a record with the same release_uuid and
// saved_filename already exists, the existing record's UUID is copied back
// instead of inserting a duplicate.
func (s *Store) RecordDownload(ctx context.Context, rec *DownloadRecord) error {
	var existingUUID string
	err := s.db.QueryRowContext(ctx, `
		SELECT uuid FROM downloads
		WHERE release_uuid = ? AND saved_filename = ?`,
		rec.ReleaseUUID, rec.SavedFilename,
	).Scan(&existingUUID)

	if err == nil {
		rec.UUID = existingUUID
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("check existing download: %w", err)
	}

	fileJSON, err := json.Marshal(rec.File)
	if err != nil {
		return fmt.Errorf("encode file descriptor: %w", err)
	}
	metaJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO downloads (uuid, release_uuid, downloaded_at, file_type, content_type, variant,
			available_file, original_filename, saved_filename, file_metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.UUID, rec.ReleaseUUID, rec.DownloadedAt.UTC().Format(timeLayout),
		rec.FileType, rec.ContentType, rec.Variant,
		string(fileJSON), rec.OriginalFilename, rec.SavedFilename, string(metaJSON),
	)
	if err != nil {
		return fmt.Errorf("insert download: %w", err)
	}
	return nil
}

// ListDownloads returns all download records for a release, newest first.
func (s *Store) ListDownloads(ctx context.Context, releaseUUID string) ([]*DownloadRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uuid, release_uuid, downloaded_at, file_type, content_type, variant,
			available_file, original_filename, saved_filename, file_metadata
		FROM downloads WHERE release_uuid = ?
		ORDER BY downloaded_at DESC`, releaseUUID)
	if err != nil {
		return nil, fmt.Errorf("list downloads: %w", err)
	}
	defer rows.Close()

	var records []*DownloadRecord
	for rows.Next() {
		rec := &DownloadRecord{}
		var downloadedAt, fileJSON, metaJSON string
		if err := rows.Scan(&rec.UUID, &rec.ReleaseUUID, &downloadedAt, &rec.FileType,
			&rec.ContentType, &rec.Variant, &fileJSON, &rec.OriginalFilename,
			&rec.SavedFilename, &metaJSON); err != nil {
			return nil, fmt.Errorf("scan download: %w", err)
		}
		rec.DownloadedAt, err = time.Parse(timeLayout, downloadedAt)
		if err != nil {
			return nil, fmt.Errorf("parse downloaded_at %q: %w", downloadedAt, err)
		}
		if err := json.Unmarshal([]byte(fileJSON), &rec.File); err != nil {
			return nil, fmt.Errorf("decode file descriptor: %w", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
