package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/bcfscan/internal/extract"
)

// Batch is a run of consecutive rows from one source file. Row i has
// sequence number FirstSeq+i.
type Batch struct {
	Source    string
	FirstSeq  int64
	Selection extract.Selection
	Samples   []string
	Rows      []*extract.Row
}

// WriteRows batch-inserts rows using the Appender API. Missing INFO and
// FORMAT values are not stored.
func (s *Store) WriteRows(b Batch) error {
	if len(b.Rows) == 0 {
		return nil
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var variants, info, samples *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		dc := driverConn.(driver.Conn)
		var err error
		if variants, err = goduckdb.NewAppenderFromConn(dc, "", "variants"); err != nil {
			return err
		}
		if info, err = goduckdb.NewAppenderFromConn(dc, "", "info_values"); err != nil {
			variants.Close()
			return err
		}
		if samples, err = goduckdb.NewAppenderFromConn(dc, "", "sample_values"); err != nil {
			variants.Close()
			info.Close()
			return err
		}
		return nil
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer variants.Close()
	defer info.Close()
	defer samples.Close()

	for i, r := range b.Rows {
		seq := b.FirstSeq + int64(i)

		var qual any
		if !r.QualMissing {
			qual = r.Qual
		}
		if err := variants.AppendRow(
			b.Source, seq, r.Contig, r.Pos, r.ID, r.Ref,
			strings.Join(r.Alt, ","), qual, strings.Join(r.Filters, ";"),
		); err != nil {
			return fmt.Errorf("append variant: %w", err)
		}

		for j, field := range b.Selection.Info {
			if j >= len(r.Info) || r.Info[j] == extract.Missing {
				continue
			}
			if err := info.AppendRow(b.Source, seq, field, r.Info[j]); err != nil {
				return fmt.Errorf("append info value: %w", err)
			}
		}

		for k, values := range r.Samples {
			if k >= len(b.Samples) {
				break
			}
			for j, field := range b.Selection.Format {
				if j >= len(values) || values[j] == extract.Missing {
					continue
				}
				if err := samples.AppendRow(b.Source, seq, b.Samples[k], field, values[j]); err != nil {
					return fmt.Errorf("append sample value: %w", err)
				}
			}
		}
	}

	if err := variants.Flush(); err != nil {
		return fmt.Errorf("flush variants: %w", err)
	}
	if err := info.Flush(); err != nil {
		return fmt.Errorf("flush info values: %w", err)
	}
	return samples.Flush()
}

// DeleteSource removes every row loaded from source.
func (s *Store) DeleteSource(source string) error {
	for _, table := range []string{"variants", "info_values", "sample_values", "sources"} {
		col := "source"
		if table == "sources" {
			col = "path"
		}
		if _, err := s.db.Exec("DELETE FROM "+table+" WHERE "+col+"=?", source); err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
	}
	return nil
}

// ReplaceSource moves the rows loaded under staging to source, dropping
// whatever source held before, in one transaction. The sources entry of
// source is removed; record the new fingerprint afterwards.
func (s *Store) ReplaceSource(staging, source string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"variants", "info_values", "sample_values"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE source=?", source); err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
		if _, err := tx.Exec("UPDATE "+table+" SET source=? WHERE source=?", source, staging); err != nil {
			return fmt.Errorf("move rows in %s: %w", table, err)
		}
	}
	if _, err := tx.Exec("DELETE FROM sources WHERE path=?", source); err != nil {
		return fmt.Errorf("delete from sources: %w", err)
	}
	return tx.Commit()
}

// Variant is a stored site.
type Variant struct {
	Source string
	Seq    int64
	Contig string
	Pos    int64 // 1-based
	ID     string
	Ref    string
	Alt    string
	Qual   sql.NullFloat64
	Filter string
}

// LookupPosition returns the stored sites at contig:pos (1-based) across
// all sources.
func (s *Store) LookupPosition(contig string, pos int64) ([]Variant, error) {
	rows, err := s.db.Query(`SELECT
		source, seq, contig, pos, id, ref, alt, qual, filter
		FROM variants
		WHERE contig=? AND pos=?
		ORDER BY source, seq`, contig, pos)
	if err != nil {
		return nil, fmt.Errorf("query position: %w", err)
	}
	defer rows.Close()

	var out []Variant
	for rows.Next() {
		var v Variant
		if err := rows.Scan(&v.Source, &v.Seq, &v.Contig, &v.Pos, &v.ID, &v.Ref, &v.Alt, &v.Qual, &v.Filter); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variants: %w", err)
	}
	return out, nil
}

// CountVariants returns the number of stored sites.
func (s *Store) CountVariants() (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT count(*) FROM variants`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count variants: %w", err)
	}
	return n, nil
}

// InfoValues returns the stored INFO values of one site keyed by field.
func (s *Store) InfoValues(source string, seq int64) (map[string]string, error) {
	rows, err := s.db.Query(`SELECT field, value FROM info_values WHERE source=? AND seq=?`, source, seq)
	if err != nil {
		return nil, fmt.Errorf("query info values: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, fmt.Errorf("scan info value: %w", err)
		}
		out[field] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate info values: %w", err)
	}
	return out, nil
}

// SampleValue is one stored FORMAT value.
type SampleValue struct {
	Sample string
	Field  string
	Value  string
}

// SampleValues returns the stored FORMAT values of one site.
func (s *Store) SampleValues(source string, seq int64) ([]SampleValue, error) {
	rows, err := s.db.Query(`SELECT sample, field, value FROM sample_values
		WHERE source=? AND seq=?
		ORDER BY sample, field`, source, seq)
	if err != nil {
		return nil, fmt.Errorf("query sample values: %w", err)
	}
	defer rows.Close()

	var out []SampleValue
	for rows.Next() {
		var v SampleValue
		if err := rows.Scan(&v.Sample, &v.Field, &v.Value); err != nil {
			return nil, fmt.Errorf("scan sample value: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sample values: %w", err)
	}
	return out, nil
}

// Loader buffers rows of one source and writes them in batches.
type Loader struct {
	store     *Store
	batch     Batch
	batchSize int
	written   int64
}

// NewLoader starts loading rows of source. A batchSize of 0 uses 10000.
func (s *Store) NewLoader(source string, sel extract.Selection, samples []string, batchSize int) *Loader {
	if batchSize <= 0 {
		batchSize = 10000
	}
	return &Loader{
		store:     s,
		batchSize: batchSize,
		batch: Batch{
			Source:    source,
			Selection: sel,
			Samples:   samples,
		},
	}
}

// Add buffers one row, writing the batch when it is full.
func (l *Loader) Add(row *extract.Row) error {
	l.batch.Rows = append(l.batch.Rows, row)
	if len(l.batch.Rows) >= l.batchSize {
		return l.Flush()
	}
	return nil
}

// Flush writes buffered rows.
func (l *Loader) Flush() error {
	if err := l.store.WriteRows(l.batch); err != nil {
		return err
	}
	n := int64(len(l.batch.Rows))
	l.written += n
	l.batch.FirstSeq += n
	l.batch.Rows = l.batch.Rows[:0]
	return nil
}

// Written returns the number of rows written so far.
func (l *Loader) Written() int64 { return l.written }
