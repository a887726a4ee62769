package ui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dgnsrekt/lingo/internal/reader"
)

// Bridge carries session snapshots into the program. Publish never blocks;
// only the newest snapshot is kept.
type Bridge struct {
	mu     sync.Mutex
	latest reader.State
	has    bool
	notify chan struct{}
}

// NewBridge returns an empty bridge.
func NewBridge() *Bridge {
	return &Bridge{notify: make(chan struct{}, 1)}
}

// Publish records st if it is newer than what is already held. It is
// meant to be a reader.Config OnChange hook.
func (b *Bridge) Publish(st reader.State) {
	b.mu.Lock()
	if !b.has || st.Version > b.latest.Version {
		b.latest = st
		b.has = true
	}
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Next blocks until a snapshot is published or ctx is done.
func (b *Bridge) Next(ctx context.Context) (reader.State, bool) {
	select {
	case <-ctx.Done():
		return reader.State{}, false
	case <-b.notify:
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest, b.has
}

type stateMsg reader.State

func waitForState(ctx context.Context, b *Bridge) tea.Cmd {
	return func() tea.Msg {
		st, ok := b.Next(ctx)
		if !ok {
			return nil
		}
		return stateMsg(st)
	}
}
