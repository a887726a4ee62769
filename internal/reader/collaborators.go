package reader

import (
	"context"
	"time"

	"github.com/dgnsrekt/lingo/internal/audio"
	"github.com/dgnsrekt/lingo/internal/highlight"
	"github.com/dgnsrekt/lingo/internal/settings"
)

// Segmenter splits text into ordered titled segments.
type Segmenter interface {
	Segment(ctx context.Context, text string) ([]Draft, error)
}

// Synthesizer narrates text as mono 16-bit little-endian PCM at
// audio.SampleRate.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, s settings.Settings) ([]byte, error)
}

// Dictionary explains a word as used in a surrounding passage.
type Dictionary interface {
	Lookup(ctx context.Context, word, context string) (*WordInfo, error)
}

// Prefetcher narrates text ahead of time so a later Synthesize call is
// fast. *queue.Queue implements it.
type Prefetcher interface {
	Prefetch(text string, s settings.Settings, priority int) error
	Clear()
}

// Example is a sentence and its translation.
type Example struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// WordInfo is a dictionary entry for one word in context.
type WordInfo struct {
	Word     string  `json:"word"`
	Phonetic string  `json:"phonetic"`
	Meaning  string  `json:"meaning"`
	Example  Example `json:"example"`
}

// Player plays one buffer at a time. *audio.Controller implements it.
type Player interface {
	Start(buf *audio.Buffer, offset time.Duration, onEnded func()) (time.Time, error)
	Stop() bool
	Elapsed() time.Duration
}

// Highlighter steps a word cursor. *highlight.Scheduler implements it.
type Highlighter interface {
	Start(highlight.Schedule) bool
	Cancel()
}
