package stats

import (
	"encoding/gob"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Cache manages a gob-serialized FileStats sidecar next to a BCF file:
//
//	sample.bcf.stats       (serialized statistics)
//	sample.bcf.stats.meta  (source file fingerprint)
type Cache struct {
	source string
}

// NewCache creates a stats cache for the BCF file at source.
func NewCache(source string) *Cache {
	return &Cache{source: source}
}

func (c *Cache) gobPath() string {
	return c.source + ".stats"
}

func (c *Cache) metaPath() string {
	return c.source + ".stats.meta"
}

// Valid checks whether the cached stats match the current source file.
func (c *Cache) Valid() bool {
	info, err := os.Stat(c.source)
	if err != nil {
		return false
	}
	meta, err := c.readMeta()
	if err != nil {
		return false
	}

	if meta["size"] != strconv.FormatInt(info.Size(), 10) ||
		meta["modtime"] != info.ModTime().UTC().Format(time.RFC3339Nano) {
		return false
	}

	// Verify gob file exists
	if _, err := os.Stat(c.gobPath()); err != nil {
		return false
	}
	return true
}

// Load reads the cached stats.
func (c *Cache) Load() (*FileStats, error) {
	f, err := os.Open(c.gobPath())
	if err != nil {
		return nil, fmt.Errorf("open stats cache: %w", err)
	}
	defer f.Close()

	var st FileStats
	if err := gob.NewDecoder(f).Decode(&st); err != nil {
		return nil, fmt.Errorf("decode stats cache: %w", err)
	}
	return &st, nil
}

// Write serializes st and fingerprints the source file.
func (c *Cache) Write(st *FileStats) error {
	info, err := os.Stat(c.source)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	f, err := os.Create(c.gobPath())
	if err != nil {
		return fmt.Errorf("create stats cache: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(st); err != nil {
		f.Close()
		os.Remove(c.gobPath())
		return fmt.Errorf("encode stats cache: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close stats cache: %w", err)
	}

	lines := []string{
		"size=" + strconv.FormatInt(info.Size(), 10),
		"modtime=" + info.ModTime().UTC().Format(time.RFC3339Nano),
		"created_at=" + time.Now().UTC().Format(time.RFC3339),
		"",
	}
	return os.WriteFile(c.metaPath(), []byte(strings.Join(lines, "\n")), 0644)
}

// Clear removes the cache files.
func (c *Cache) Clear() {
	os.Remove(c.gobPath())
	os.Remove(c.metaPath())
}

func (c *Cache) readMeta() (map[string]string, error) {
	data, err := os.ReadFile(c.metaPath())
	if err != nil {
		return nil, err
	}

	meta := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		if k, v, ok := strings.Cut(line, "="); ok {
			meta[k] = v
		}
	}
	return meta, nil
}
