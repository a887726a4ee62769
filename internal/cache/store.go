package cache

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Config configures a Store.
type Config struct {
	Dir              string
	MemoryCapacity   int64 // bytes
	DiskCapacity     int64 // compressed bytes
	CompressionLevel int   // zstd level
	TTL              time.Duration
}

// DefaultConfig returns limits suited to a few hours of narration.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:              dir,
		MemoryCapacity:   64 * 1024 * 1024,
		DiskCapacity:     512 * 1024 * 1024,
		CompressionLevel: 3,
		TTL:              7 * 24 * time.Hour,
	}
}

// Store checks memory before disk and copies disk hits into memory.
type Store struct {
	mem  *Memory
	disk *Disk
	ttl  time.Duration

	mu         sync.Mutex
	promotions int64
}

// Open creates a Store and drops disk entries older than the TTL.
func Open(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("cache directory required")
	}
	def := DefaultConfig(cfg.Dir)
	if cfg.MemoryCapacity <= 0 {
		cfg.MemoryCapacity = def.MemoryCapacity
	}
	if cfg.DiskCapacity <= 0 {
		cfg.DiskCapacity = def.DiskCapacity
	}

	disk, err := NewDisk(cfg.Dir, cfg.DiskCapacity, cfg.CompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to open disk cache: %w", err)
	}
	s := &Store{mem: NewMemory(cfg.MemoryCapacity), disk: disk, ttl: cfg.TTL}
	if s.ttl > 0 {
		if n := disk.Prune(s.ttl); n > 0 {
			log.Debug("Pruned expired narration", "count", n)
		}
	}
	return s, nil
}

// Get returns a cached value.
func (s *Store) Get(key string) ([]byte, bool) {
	if v, ok := s.mem.Get(key); ok {
		return v, true
	}
	v, ok := s.disk.Get(key)
	if !ok {
		return nil, false
	}
	if err := s.mem.Put(key, v); err == nil {
		s.mu.Lock()
		s.promotions++
		s.mu.Unlock()
	}
	return v, true
}

// Put stores value in both tiers. A value too large for memory still goes
// to disk.
func (s *Store) Put(key string, value []byte) error {
	if err := s.mem.Put(key, value); err != nil && !errors.Is(err, ErrItemTooLarge) {
		return fmt.Errorf("memory cache: %w", err)
	}
	if err := s.disk.Put(key, value); err != nil {
		return fmt.Errorf("disk cache: %w", err)
	}
	return nil
}

// Delete removes key from both tiers.
func (s *Store) Delete(key string) error {
	return errors.Join(s.mem.Delete(key), s.disk.Delete(key))
}

// Clear empties both tiers.
func (s *Store) Clear() error {
	return errors.Join(s.mem.Clear(), s.disk.Clear())
}

// Prune drops entries older than maxAge from both tiers.
func (s *Store) Prune(maxAge time.Duration) int {
	return s.mem.Prune(maxAge) + s.disk.Prune(maxAge)
}

// Stats returns per-tier statistics.
func (s *Store) Stats() []Stats {
	return []Stats{s.mem.Stats(), s.disk.Stats()}
}

// Promotions counts disk hits copied into memory.
func (s *Store) Promotions() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promotions
}

// Dir returns the disk tier's directory.
func (s *Store) Dir() string { return s.disk.Dir() }

// Close persists the disk index.
func (s *Store) Close() error {
	return s.disk.Close()
}
