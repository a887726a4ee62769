package reader

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
)

// LookupWord explains token as used in segment segIndex. Everything but
// ASCII letters is stripped from token first; if nothing is left the call
// does nothing. Playback is paused, the previous result is cleared, and a
// newer lookup supersedes an older one still in flight.
func (s *Session) LookupWord(ctx context.Context, token string, segIndex int) error {
	word := CleanWord(token)
	if word == "" {
		return nil
	}

	s.mu.Lock()
	if segIndex < 0 || segIndex >= len(s.segments) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrSegmentOutOfRange, segIndex)
	}
	passage := s.segments[segIndex].Content
	s.pauseLocked()
	s.lookupGen++
	gen := s.lookupGen
	s.lookingUp = true
	s.lookup = nil
	s.changedLocked()
	s.mu.Unlock()
	s.emit()

	log.Debug("Looking up word", "session", s.id, "word", word)
	info, err := s.dict.Lookup(ctx, word, passage)
	if err == nil && info == nil {
		err = errors.New("empty lookup result")
	}

	s.mu.Lock()
	if gen != s.lookupGen {
		s.mu.Unlock()
		return nil
	}
	s.lookingUp = false
	if err == nil {
		s.lookup = info
	}
	s.changedLocked()
	s.mu.Unlock()
	s.emit()

	if err != nil {
		log.Error("Lookup failed", "session", s.id, "word", word, "err", err)
		return &Error{Kind: LookupFailure, Op: "lookup word", Err: err}
	}
	return nil
}

// ClearLookup drops the current result and abandons any lookup in flight.
func (s *Session) ClearLookup() {
	s.mu.Lock()
	s.lookupGen++
	s.lookingUp = false
	s.lookup = nil
	s.changedLocked()
	s.mu.Unlock()
	s.emit()
}
