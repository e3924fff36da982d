package duckdb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

func (fp FileFingerprint) modTime() string {
	return fp.ModTime.UTC().Format(time.RFC3339Nano)
}

// SourceLoaded reports whether the file identified by fp was loaded and has
// not changed since.
func (s *Store) SourceLoaded(fp FileFingerprint) (bool, error) {
	var (
		size    int64
		modTime string
	)
	err := s.db.QueryRow(`SELECT size, mod_time FROM sources WHERE path=?`, fp.Path).Scan(&size, &modTime)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query source: %w", err)
	}
	return size == fp.Size && modTime == fp.modTime(), nil
}

// RecordSource stores the fingerprint of a loaded file, replacing any
// earlier entry for the same path.
func (s *Store) RecordSource(fp FileFingerprint, records int64) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO sources (path, size, mod_time, records, loaded_at)
		VALUES (?, ?, ?, ?, ?)`,
		fp.Path, fp.Size, fp.modTime(), records, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record source: %w", err)
	}
	return nil
}

// Source is one loaded file.
type Source struct {
	Path     string
	Size     int64
	Records  int64
	LoadedAt time.Time
}

// Sources lists loaded files ordered by path.
func (s *Store) Sources() ([]Source, error) {
	rows, err := s.db.Query(`SELECT path, size, records, loaded_at FROM sources ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var out []Source
	for rows.Next() {
		var src Source
		if err := rows.Scan(&src.Path, &src.Size, &src.Records, &src.LoadedAt); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return out, nil
}
