package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrItemTooLarge is returned when an item exceeds a tier's capacity.
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCorrupted is returned when a stored item can't be read back.
	ErrCorrupted = errors.New("cache data corrupted")
)

// Level names a cache tier.
type Level int

const (
	LevelMemory Level = iota
	LevelDisk
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelMemory:
		return "memory"
	case LevelDisk:
		return "disk"
	default:
		return "unknown"
	}
}

// Stats describes one tier.
type Stats struct {
	Level     Level
	Capacity  int64
	Size      int64
	Items     int
	Hits      int64
	Misses    int64
	Evictions int64
}

// HitRate returns hits / (hits + misses).
func (s Stats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

// Tier is one level of the cache.
type Tier interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
	Delete(key string) error
	Clear() error
	Prune(maxAge time.Duration) int
	Stats() Stats
}

// Key identifies narration of text by voice at speed.
func Key(text, voice string, speed float64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%.2f", text, voice, speed)))
	return hex.EncodeToString(sum[:16])
}
