package reader

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/lingo/internal/audio"
	"github.com/dgnsrekt/lingo/internal/highlight"
	"github.com/dgnsrekt/lingo/internal/settings"
	"github.com/google/uuid"
)

// Config wires a Session to its collaborators.
type Config struct {
	Segmenter   Segmenter
	Synthesizer Synthesizer
	Dictionary  Dictionary
	Player      Player
	Highlighter Highlighter
	Settings    settings.Settings

	// Prefetcher, when set, is asked for the narration of the Lookahead
	// segments after the one being played.
	Prefetcher Prefetcher
	Lookahead  int

	// OnChange receives a snapshot after every change. It is called
	// without the session lock held and may be called from any goroutine.
	OnChange func(State)
}

// resumePoint is where toggling playback back on continues from.
type resumePoint struct {
	epoch   uint64
	segment int
	word    int
}

// Session is the state of one reader. It is safe for concurrent use.
type Session struct {
	id       string
	seg      Segmenter
	syn      Synthesizer
	dict     Dictionary
	player   Player
	hl       Highlighter
	prefetch Prefetcher
	ahead    int
	onChange func(State)

	mu         sync.Mutex
	version    uint64
	segments   []*Segment
	epoch      uint64 // bumped whenever segments is replaced
	active     int
	word       int
	playing    bool
	loading    bool
	processing bool
	lookingUp  bool
	lookup     *WordInfo
	input      string
	settings   settings.Settings
	playGen    uint64
	lookupGen  uint64
	resume     *resumePoint
}

// NewSession creates an empty session.
func NewSession(cfg Config) *Session {
	st := cfg.Settings
	if st == (settings.Settings{}) {
		st = settings.Default()
	}
	return &Session{
		id:       uuid.NewString(),
		seg:      cfg.Segmenter,
		syn:      cfg.Synthesizer,
		dict:     cfg.Dictionary,
		player:   cfg.Player,
		hl:       cfg.Highlighter,
		prefetch: cfg.Prefetcher,
		ahead:    cfg.Lookahead,
		onChange: cfg.OnChange,
		active:   None,
		word:     None,
		settings: st,
	}
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// State returns a snapshot.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() State {
	segs := make([]Segment, len(s.segments))
	for i, seg := range s.segments {
		segs[i] = *seg
	}
	return State{
		Version:    s.version,
		Segments:   segs,
		Active:     s.active,
		Word:       s.word,
		Playing:    s.playing,
		Loading:    s.loading,
		Processing: s.processing,
		LookingUp:  s.lookingUp,
		Lookup:     s.lookup,
		Input:      s.input,
		Settings:   s.settings,
	}
}

// changedLocked records a mutation. Must hold s.mu.
func (s *Session) changedLocked() {
	s.version++
}

// emit delivers a fresh snapshot to OnChange.
func (s *Session) emit() {
	if s.onChange == nil {
		return
	}
	s.onChange(s.State())
}

// SetInput replaces the input buffer.
func (s *Session) SetInput(text string) {
	s.mu.Lock()
	s.input = text
	s.changedLocked()
	s.mu.Unlock()
	s.emit()
}

// Settings returns the playback settings.
func (s *Session) Settings() settings.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// SetSettings changes the settings used for narration requested from now
// on. Narration already fetched is kept.
func (s *Session) SetSettings(st settings.Settings) error {
	if err := st.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.settings = st
	s.changedLocked()
	s.mu.Unlock()
	s.emit()
	return nil
}

// ProcessText segments raw and replaces the segment list. Blank input is
// ignored. A call made while another is in flight returns ErrBusy. On
// failure the session is left as it was.
func (s *Session) ProcessText(ctx context.Context, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	s.mu.Lock()
	if s.processing {
		s.mu.Unlock()
		return ErrBusy
	}
	s.processing = true
	s.changedLocked()
	s.mu.Unlock()
	s.emit()

	log.Debug("Segmenting text", "session", s.id, "chars", len(raw))
	drafts, err := s.seg.Segment(ctx, raw)
	if err == nil && len(drafts) == 0 {
		err = ErrNoSegments
	}

	s.mu.Lock()
	s.processing = false
	if err != nil {
		s.changedLocked()
		s.mu.Unlock()
		s.emit()
		log.Error("Segmentation failed", "session", s.id, "err", err)
		return &Error{Kind: SegmentationFailure, Op: "process text", Err: err}
	}
	s.stopLocked()
	s.segments = NewSegments(drafts)
	s.epoch++
	s.active = 0
	s.resume = nil
	s.changedLocked()
	s.mu.Unlock()
	s.emit()
	s.clearPrefetch()

	log.Info("Text segmented", "session", s.id, "segments", len(drafts))
	return nil
}

// PlaySegment narrates segment index, highlighting from startWord. Any
// current playback is torn down first. Narration is fetched on first play
// and kept on the segment.
func (s *Session) PlaySegment(ctx context.Context, index, startWord int) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.segments) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrSegmentOutOfRange, index)
	}
	seg := s.segments[index]
	if startWord < 0 || (startWord > 0 && startWord >= len(seg.Words)) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrWordOutOfRange, startWord)
	}

	s.stopLocked()
	s.resume = nil
	s.playGen++
	gen := s.playGen
	epoch := s.epoch
	st := s.settings
	s.active = index
	s.playing = true
	buf := seg.audio
	s.loading = buf == nil
	s.changedLocked()
	s.mu.Unlock()
	s.emit()

	if buf == nil {
		var err error
		buf, err = s.fetch(ctx, seg, st)
		if err != nil {
			s.failPlayback(gen, err)
			return err
		}

		s.mu.Lock()
		stored := false
		if s.epoch == epoch && seg.audio == nil {
			seg.audio = buf
			stored = true
		}
		if gen != s.playGen {
			if stored {
				s.changedLocked()
			}
			s.mu.Unlock()
			if stored {
				s.emit()
			}
			log.Debug("Discarding superseded narration", "session", s.id, "segment", seg.ID, "kept", stored)
			return nil
		}
		s.loading = false
		s.mu.Unlock()
	}

	s.mu.Lock()
	if gen != s.playGen {
		s.mu.Unlock()
		return nil
	}
	err := s.startLocked(gen, seg, buf, startWord)
	var ahead []string
	if err == nil {
		ahead = s.upcomingLocked(index)
	}
	s.changedLocked()
	s.mu.Unlock()
	s.emit()

	s.prefetchAll(ahead, st)
	return err
}

// upcomingLocked returns the text of the segments after index whose
// narration has not been fetched yet. Must hold s.mu.
func (s *Session) upcomingLocked(index int) []string {
	if s.prefetch == nil {
		return nil
	}
	var texts []string
	for i := index + 1; i <= index+s.ahead && i < len(s.segments); i++ {
		if s.segments[i].audio == nil {
			texts = append(texts, s.segments[i].Content)
		}
	}
	return texts
}

// prefetchAll queues texts, nearest first.
func (s *Session) prefetchAll(texts []string, st settings.Settings) {
	for i, text := range texts {
		if err := s.prefetch.Prefetch(text, st, len(texts)-i); err != nil {
			log.Debug("Prefetch skipped", "session", s.id, "err", err)
			return
		}
	}
}

// clearPrefetch drops narration queued for segments that are gone.
func (s *Session) clearPrefetch() {
	if s.prefetch != nil {
		s.prefetch.Clear()
	}
}

// fetch requests and decodes narration for seg.
func (s *Session) fetch(ctx context.Context, seg *Segment, st settings.Settings) (*audio.Buffer, error) {
	log.Debug("Requesting narration", "session", s.id, "segment", seg.ID, "voice", st.Voice, "speed", st.Speed)
	data, err := s.syn.Synthesize(ctx, seg.Content, st)
	if err == nil && len(data) == 0 {
		err = ErrEmptyAudio
	}
	if err != nil {
		log.Error("Narration failed", "session", s.id, "segment", seg.ID, "err", err)
		return nil, &Error{Kind: SynthesisFailure, Op: "play segment", Err: err}
	}

	buf, err := audio.Decode(data, audio.SampleRate, audio.Channels)
	if err != nil {
		log.Error("Narration decode failed", "session", s.id, "segment", seg.ID, "err", err)
		return nil, &Error{Kind: DecodeFailure, Op: "play segment", Err: err}
	}
	return buf, nil
}

// failPlayback returns to the stopped state if gen is still current.
func (s *Session) failPlayback(gen uint64, err error) {
	s.mu.Lock()
	if gen != s.playGen {
		s.mu.Unlock()
		return
	}
	s.stopLocked()
	s.changedLocked()
	s.mu.Unlock()
	s.emit()
}

// startLocked begins audio and highlighting for seg. Must hold s.mu.
func (s *Session) startLocked(gen uint64, seg *Segment, buf *audio.Buffer, startWord int) error {
	n := len(seg.Words)
	d := buf.Duration()
	offset := highlight.Interval(d, n) * time.Duration(startWord)

	if _, err := s.player.Start(buf, offset, func() { s.finish(gen) }); err != nil {
		log.Error("Playback failed", "session", s.id, "segment", seg.ID, "err", err)
		s.stopLocked()
		return &Error{Kind: DecodeFailure, Op: "play segment", Err: err}
	}

	if n > 0 {
		s.word = startWord
		s.hl.Start(highlight.Schedule{
			Duration: d,
			Words:    n,
			Start:    startWord,
			OnWord:   func(i int) { s.setWord(gen, i) },
			OnDone:   func() { s.finish(gen) },
		})
	}
	log.Debug("Narrating", "session", s.id, "segment", seg.ID, "words", n, "duration", d, "offset", offset)
	return nil
}

func (s *Session) setWord(gen uint64, i int) {
	s.mu.Lock()
	if gen != s.playGen || !s.playing || s.word == i {
		s.mu.Unlock()
		return
	}
	s.word = i
	s.changedLocked()
	s.mu.Unlock()
	s.emit()
}

// finish handles both the highlight running out and the audio draining.
// Whichever arrives first stops playback; the other is ignored.
func (s *Session) finish(gen uint64) {
	s.mu.Lock()
	if gen != s.playGen || !s.playing {
		s.mu.Unlock()
		return
	}
	s.stopLocked()
	s.changedLocked()
	s.mu.Unlock()
	s.emit()
}

// stopLocked tears down audio and highlighting. Must hold s.mu.
func (s *Session) stopLocked() {
	if s.hl != nil {
		s.hl.Cancel()
	}
	if s.player != nil {
		s.player.Stop()
	}
	s.playGen++
	s.playing = false
	s.loading = false
	s.word = None
}

// pauseLocked stops playback and remembers the word being spoken so that
// TogglePlayback can continue from it. Must hold s.mu.
func (s *Session) pauseLocked() {
	if !s.playing {
		return
	}
	if !s.loading && s.active >= 0 && s.active < len(s.segments) {
		seg := s.segments[s.active]
		word := s.word
		if seg.audio != nil && len(seg.Words) > 0 {
			word = highlight.WordAt(s.player.Elapsed(), seg.audio.Duration(), len(seg.Words))
		}
		if word >= 0 {
			s.resume = &resumePoint{epoch: s.epoch, segment: s.active, word: word}
		}
	}
	s.stopLocked()
}

// Stop halts playback. It is safe to call at any time.
func (s *Session) Stop() {
	s.mu.Lock()
	s.stopLocked()
	s.resume = nil
	s.changedLocked()
	s.mu.Unlock()
	s.emit()
}

// TogglePlayback pauses the active segment if it is playing, otherwise
// plays it, continuing from the word where it was last paused.
func (s *Session) TogglePlayback(ctx context.Context) error {
	s.mu.Lock()
	if s.playing {
		s.pauseLocked()
		s.changedLocked()
		s.mu.Unlock()
		s.emit()
		return nil
	}
	if s.active < 0 || s.active >= len(s.segments) {
		s.mu.Unlock()
		return ErrNoActiveSegment
	}
	index, start := s.active, 0
	if r := s.resume; r != nil && r.epoch == s.epoch && r.segment == index {
		start = r.word
	}
	s.mu.Unlock()

	return s.PlaySegment(ctx, index, start)
}

// Reset clears the segments and the input buffer and stops playback. The
// current lookup is kept.
func (s *Session) Reset() {
	s.mu.Lock()
	s.stopLocked()
	s.segments = nil
	s.epoch++
	s.active = None
	s.input = ""
	s.resume = nil
	s.changedLocked()
	s.mu.Unlock()
	s.emit()
	s.clearPrefetch()
	log.Debug("Session reset", "session", s.id)
}
