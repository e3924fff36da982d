// Package region filters streamed records by genomic intervals.
package region

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Interval is a 0-based half-open span on one contig.
type Interval struct {
	Contig string
	Start  int64
	End    int64
}

// Set is an immutable collection of intervals grouped by contig. It is
// safe for concurrent use.
type Set struct {
	trees map[string]*tree
	n     int
}

// NewSet builds a Set from intervals.
func NewSet(intervals []Interval) *Set {
	byContig := make(map[string][]Interval)
	for _, iv := range intervals {
		byContig[iv.Contig] = append(byContig[iv.Contig], iv)
	}
	s := &Set{trees: make(map[string]*tree, len(byContig)), n: len(intervals)}
	for contig, ivs := range byContig {
		s.trees[contig] = buildTree(ivs)
	}
	return s
}

// Len returns the number of intervals.
func (s *Set) Len() int { return s.n }

// Overlaps reports whether [start, end) on contig intersects any interval.
func (s *Set) Overlaps(contig string, start, end int64) bool {
	t, ok := s.trees[contig]
	if !ok {
		return false
	}
	if end <= start {
		end = start + 1
	}
	return t.overlaps(start, end)
}

// Parse parses a comma-separated list of regions: "chr", "chr:pos" or
// "chr:start-end", with 1-based inclusive coordinates as on the command
// line.
func Parse(list string) ([]Interval, error) {
	var out []Interval
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		iv, err := parseOne(item)
		if err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, nil
}

func parseOne(s string) (Interval, error) {
	contig, span, ok := strings.Cut(s, ":")
	if !ok {
		return Interval{Contig: s, Start: 0, End: 1<<62 - 1}, nil
	}
	from, to, hasEnd := strings.Cut(span, "-")
	start, err := strconv.ParseInt(from, 10, 64)
	if err != nil || start < 1 {
		return Interval{}, fmt.Errorf("invalid region %q: bad start", s)
	}
	end := start
	if hasEnd {
		end, err = strconv.ParseInt(to, 10, 64)
		if err != nil || end < start {
			return Interval{}, fmt.Errorf("invalid region %q: bad end", s)
		}
	}
	return Interval{Contig: contig, Start: start - 1, End: end}, nil
}

// ReadBED reads 0-based half-open intervals from BED text. Header, track
// and comment lines are skipped.
func ReadBED(r io.Reader) ([]Interval, error) {
	var out []Interval
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "#") ||
			strings.HasPrefix(line, "track") || strings.HasPrefix(line, "browser") {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 3 {
			return nil, fmt.Errorf("bed line %d: expected at least 3 columns", lineNo)
		}
		start, err := strconv.ParseInt(cols[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bed line %d: invalid start: %w", lineNo, err)
		}
		end, err := strconv.ParseInt(cols[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bed line %d: invalid end: %w", lineNo, err)
		}
		if end < start {
			return nil, fmt.Errorf("bed line %d: end before start", lineNo)
		}
		out = append(out, Interval{Contig: cols[0], Start: start, End: end})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read bed: %w", err)
	}
	return out, nil
}

// ReadBEDFile reads a BED file, gunzipping it when the name ends in .gz.
func ReadBEDFile(path string) ([]Interval, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip bed: %w", err)
		}
		defer gz.Close()
		r = gz
	}
	return ReadBED(r)
}
