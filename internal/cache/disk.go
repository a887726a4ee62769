package cache

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"
)

const indexFile = "narration.index"

// Disk stores zstd-compressed entries as files under one directory. The
// index is written on Close, Clear and Prune.
type Disk struct {
	dir      string
	capacity int64
	enc      *zstd.Encoder
	dec      *zstd.Decoder

	mu    sync.Mutex
	size  int64
	index map[string]*diskEntry
	stats Stats
}

type diskEntry struct {
	Key        string
	File       string
	Size       int64 // compressed
	RawSize    int64
	Stored     time.Time
	LastAccess time.Time
}

// NewDisk opens (or creates) a disk tier in dir holding at most capacity
// compressed bytes.
func NewDisk(dir string, capacity int64, level int) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if level <= 0 {
		level = 3
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	d := &Disk{
		dir:      dir,
		capacity: capacity,
		enc:      enc,
		dec:      dec,
		index:    make(map[string]*diskEntry),
	}
	if err := d.loadIndex(); err != nil {
		log.Warn("Discarding unreadable cache index", "dir", dir, "err", err)
		d.index = make(map[string]*diskEntry)
	}
	for _, e := range d.index {
		d.size += e.Size
	}
	return d, nil
}

// Dir returns the cache directory.
func (d *Disk) Dir() string { return d.dir }

// Get implements Tier.
func (d *Disk) Get(key string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.index[key]
	if !ok {
		d.stats.Misses++
		return nil, false
	}
	raw, err := os.ReadFile(filepath.Join(d.dir, e.File))
	if err == nil {
		raw, err = d.dec.DecodeAll(raw, nil)
	}
	if err != nil {
		log.Debug("Dropping unreadable cache entry", "key", key, "err", fmt.Errorf("%w: %v", ErrCorrupted, err))
		d.removeLocked(key)
		d.stats.Misses++
		return nil, false
	}
	e.LastAccess = time.Now()
	d.stats.Hits++
	return raw, true
}

// Put implements Tier.
func (d *Disk) Put(key string, value []byte) error {
	data := d.enc.EncodeAll(value, nil)
	n := int64(len(data))
	if n > d.capacity {
		return ErrItemTooLarge
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.removeLocked(key)
	for d.size+n > d.capacity && len(d.index) > 0 {
		d.evictOldestLocked()
	}

	name := key + ".zst"
	if err := writeAtomic(filepath.Join(d.dir, name), data); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	now := time.Now()
	d.index[key] = &diskEntry{Key: key, File: name, Size: n, RawSize: int64(len(value)), Stored: now, LastAccess: now}
	d.size += n
	return nil
}

// Delete implements Tier.
func (d *Disk) Delete(key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removeLocked(key)
	return nil
}

// Clear implements Tier.
func (d *Disk) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key := range d.index {
		d.removeLocked(key)
	}
	return d.saveIndexLocked()
}

// Prune drops entries stored more than maxAge ago.
func (d *Disk) Prune(maxAge time.Duration) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	pruned := 0
	for key, e := range d.index {
		if e.Stored.Before(cutoff) {
			d.removeLocked(key)
			pruned++
		}
	}
	if pruned > 0 {
		if err := d.saveIndexLocked(); err != nil {
			log.Warn("Could not save cache index", "err", err)
		}
	}
	return pruned
}

// Stats implements Tier.
func (d *Disk) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.stats
	s.Level = LevelDisk
	s.Capacity = d.capacity
	s.Size = d.size
	s.Items = len(d.index)
	return s
}

// Close writes the index.
func (d *Disk) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.saveIndexLocked()
}

func (d *Disk) removeLocked(key string) {
	e, ok := d.index[key]
	if !ok {
		return
	}
	if err := os.Remove(filepath.Join(d.dir, e.File)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Debug("Removing cache file", "file", e.File, "err", err)
	}
	delete(d.index, key)
	d.size -= e.Size
}

func (d *Disk) evictOldestLocked() {
	entries := make([]*diskEntry, 0, len(d.index))
	for _, e := range d.index {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastAccess.Before(entries[j].LastAccess)
	})
	d.removeLocked(entries[0].Key)
	d.stats.Evictions++
}

func (d *Disk) loadIndex() error {
	f, err := os.Open(filepath.Join(d.dir, indexFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck
	return gob.NewDecoder(f).Decode(&d.index)
}

func (d *Disk) saveIndexLocked() error {
	path := filepath.Join(d.dir, indexFile)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	err = gob.NewEncoder(f).Encode(d.index)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// writeAtomic writes data to a temp file and renames it into place.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
