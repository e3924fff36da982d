package extract

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/inodb/bcfscan/internal/bcf"
	"github.com/inodb/bcfscan/internal/region"
)

// ErrTooManyInvalid is returned by ExtractAll when the invalid-record limit
// is exceeded.
var ErrTooManyInvalid = errors.New("too many invalid records")

// WorkItem holds a record ready for extraction.
type WorkItem struct {
	Seq    int
	Record *bcf.Record
}

// WorkResult holds the extracted row for a single record.
type WorkResult struct {
	Seq    int
	Record *bcf.Record
	Row    *Row
	Err    error
}

// ParallelExtract extracts work items using a pool of workers.
// Results are sent to the returned channel in arrival order (not sequence order).
// Use OrderedCollect to consume results in sequence-number order.
// If workers is 0, runtime.NumCPU() is used.
func (e *Extractor) ParallelExtract(items <-chan WorkItem, workers int) <-chan WorkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan WorkResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for item := range items {
				row, err := e.Extract(item.Record)
				results <- WorkResult{
					Seq:    item.Seq,
					Record: item.Record,
					Row:    row,
					Err:    err,
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// OrderedCollect calls fn for each result in sequence-number order.
// Out-of-order results wait in a pending map until the next expected
// sequence number arrives. Blocks until the results channel is closed.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	pending := make(map[int]WorkResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}

// Options controls ExtractAll.
type Options struct {
	// Workers is the extraction pool size; 0 means runtime.NumCPU().
	Workers int
	// Limit stops after this many records; 0 means no limit.
	Limit int
	// MaxInvalid is the number of invalid records tolerated before giving
	// up; negative means unlimited.
	MaxInvalid int
	// Regions, when set, skips records whose reference span overlaps none
	// of its intervals.
	Regions *region.Set
}

// Summary counts what ExtractAll saw.
type Summary struct {
	Records int64 // records read and passed to extraction
	Invalid int64 // reads that failed
	Failed  int64 // records read but not extractable
	Emitted int64 // rows passed to fn
	Skipped int64 // records outside Regions
}

// ExtractAll reads every record from r on one goroutine, extracts on a
// worker pool and calls fn with rows in file order.
func (e *Extractor) ExtractAll(r *bcf.Reader, opts Options, fn func(*Row) error) (Summary, error) {
	var (
		sum     Summary
		readErr error
	)
	items := make(chan WorkItem, 2*max(opts.Workers, 1))
	done := make(chan struct{})

	go func() {
		defer close(items)
		seq := 0
		for rec, err := range r.Records() {
			if err != nil {
				if !bcf.IsRecoverable(err) {
					readErr = err
					return
				}
				sum.Invalid++
				if opts.MaxInvalid >= 0 && sum.Invalid > int64(opts.MaxInvalid) {
					readErr = fmt.Errorf("%w: %d (limit %d): %w", ErrTooManyInvalid, sum.Invalid, opts.MaxInvalid, err)
					return
				}
				continue
			}
			if opts.Regions != nil && !inRegions(opts.Regions, rec) {
				sum.Skipped++
				continue
			}
			select {
			case items <- WorkItem{Seq: seq, Record: rec}:
			case <-done:
				return
			}
			seq++
			sum.Records++
			if opts.Limit > 0 && seq >= opts.Limit {
				return
			}
		}
	}()

	results := e.ParallelExtract(items, opts.Workers)
	var failed, emitted int64
	err := OrderedCollect(results, func(res WorkResult) error {
		if res.Err != nil {
			failed++
			e.logger.Warn("skipping record",
				zap.Int("seq", res.Seq),
				zap.Uint32("pos", res.Record.Pos()),
				zap.Error(res.Err))
			return nil
		}
		if err := fn(res.Row); err != nil {
			close(done)
			return err
		}
		emitted++
		return nil
	})
	sum.Failed = failed
	sum.Emitted = emitted
	if err != nil {
		return sum, err
	}
	return sum, readErr
}

// inRegions reports whether rec overlaps regions. Records whose contig
// cannot be resolved are kept so extraction reports them.
func inRegions(regions *region.Set, rec *bcf.Record) bool {
	contig, err := rec.Contig()
	if err != nil {
		return true
	}
	return regions.Overlaps(contig, int64(rec.Pos()), int64(rec.End()))
}
