// Package duckdb stores extracted BCF rows in DuckDB (queryable,
// append-only) and keeps fingerprints of the files they came from.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection holding loaded variants.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database path, empty for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

// ensureSchema creates tables if they don't exist. Rows are keyed by the
// source path and the record's 0-based sequence number in that file.
func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS variants (
			source VARCHAR,
			seq BIGINT,
			contig VARCHAR,
			pos BIGINT,
			id VARCHAR,
			ref VARCHAR,
			alt VARCHAR,
			qual FLOAT,
			filter VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS info_values (
			source VARCHAR,
			seq BIGINT,
			field VARCHAR,
			value VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS sample_values (
			source VARCHAR,
			seq BIGINT,
			sample VARCHAR,
			field VARCHAR,
			value VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS sources (
			path VARCHAR PRIMARY KEY,
			size BIGINT,
			mod_time VARCHAR,
			records BIGINT,
			loaded_at TIMESTAMP
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
