package cache

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/lingo/internal/settings"
)

// Synthesizer produces narration audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, s settings.Settings) ([]byte, error)
}

// Narration serves narration from a Store, asking next on a miss.
type Narration struct {
	next  Synthesizer
	store *Store
}

// NewNarration wraps next with store.
func NewNarration(next Synthesizer, store *Store) *Narration {
	return &Narration{next: next, store: store}
}

// Synthesize returns cached narration for text at s, or fetches and
// caches it.
func (n *Narration) Synthesize(ctx context.Context, text string, s settings.Settings) ([]byte, error) {
	key := Key(text, string(s.Voice), s.Speed)
	if data, ok := n.store.Get(key); ok {
		log.Debug("Narration cache hit", "key", key)
		return data, nil
	}

	data, err := n.next.Synthesize(ctx, text, s)
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		if err := n.store.Put(key, data); err != nil {
			log.Warn("Could not cache narration", "key", key, "err", err)
		}
	}
	return data, nil
}
