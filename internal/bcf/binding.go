package bcf

import (
	"errors"
	"fmt"

	"github.com/inodb/bcfscan/internal/hts"
)

// readOutcome is the result of one engine read.
type readOutcome int

const (
	outcomeSuccess readOutcome = iota
	outcomeEndOfStream
	outcomeInvalid
)

func (o readOutcome) String() string {
	switch o {
	case outcomeSuccess:
		return "success"
	case outcomeEndOfStream:
		return "end of stream"
	default:
		return "invalid"
	}
}

// outcomeFromStatus is the only place engine status codes are interpreted.
// Codes other than the two documented ones are invalid.
func outcomeFromStatus(code int) readOutcome {
	switch code {
	case hts.StatusOK:
		return outcomeSuccess
	case hts.StatusEOF:
		return outcomeEndOfStream
	default:
		return outcomeInvalid
	}
}

// containerHandle exclusively owns an engine file handle.
type containerHandle struct {
	file   *hts.File
	closed bool
}

// openContainer opens path in the given mode.
func openContainer(path, mode string) (*containerHandle, error) {
	f, err := hts.Open(path, mode)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	return &containerHandle{file: f}, nil
}

// close releases the file handle. Only the first call reaches the engine.
func (c *containerHandle) close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if err := hts.Close(c.file); err != nil {
		return fmt.Errorf("close container: %w", err)
	}
	return nil
}

// headerHandle exclusively owns an engine header handle.
type headerHandle struct {
	hdr       *hts.Header
	destroyed bool
}

// readHeader reads the header of a freshly opened container.
func readHeader(c *containerHandle) (*headerHandle, error) {
	if c.closed {
		return nil, &HeaderError{Path: c.file.Path(), Err: ErrClosed}
	}
	h, err := hts.ReadHeader(c.file)
	if err != nil {
		return nil, &HeaderError{Path: c.file.Path(), Err: err}
	}
	return &headerHandle{hdr: h}, nil
}

// destroy releases the header. Only the first call reaches the engine.
func (h *headerHandle) destroy() {
	if h.destroyed {
		return
	}
	h.destroyed = true
	hts.DestroyHeader(h.hdr)
}

// readNextRecord advances the container by one record into rec. The
// returned error carries the engine's cause for outcomeInvalid.
func readNextRecord(c *containerHandle, h *headerHandle, rec *hts.Record) (readOutcome, error) {
	if c.closed || h.destroyed {
		return outcomeInvalid, ErrClosed
	}
	outcome := outcomeFromStatus(hts.ReadRecord(c.file, h.hdr, rec))
	if outcome != outcomeInvalid {
		return outcome, nil
	}
	cause := c.file.Err()
	if cause == nil {
		cause = errors.New("engine reported an unspecified read failure")
	}
	return outcome, cause
}
