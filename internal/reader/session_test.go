package reader

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dgnsrekt/lingo/internal/audio"
	"github.com/dgnsrekt/lingo/internal/highlight"
	"github.com/dgnsrekt/lingo/internal/settings"
)

// silence returns PCM for d of mono narration.
func silence(d time.Duration) []byte {
	frames := int(d * audio.SampleRate / time.Second)
	return make([]byte, frames*2)
}

type fakeSegmenter struct {
	mu     sync.Mutex
	calls  int
	drafts []Draft
	err    error
	gate   chan struct{}
}

func (f *fakeSegmenter) Segment(ctx context.Context, text string) ([]Draft, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return f.drafts, f.err
}

func (f *fakeSegmenter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSynth struct {
	mu      sync.Mutex
	calls   map[string]int
	lengths map[string]time.Duration
	raw     map[string][]byte
	err     error
	gates   map[string]chan struct{}
	last    settings.Settings
}

func newFakeSynth() *fakeSynth {
	return &fakeSynth{
		calls:   map[string]int{},
		lengths: map[string]time.Duration{},
		raw:     map[string][]byte{},
		gates:   map[string]chan struct{}{},
	}
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string, s settings.Settings) ([]byte, error) {
	f.mu.Lock()
	f.calls[text]++
	f.last = s
	gate := f.gates[text]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if b, ok := f.raw[text]; ok {
		return b, nil
	}
	d, ok := f.lengths[text]
	if !ok {
		d = time.Second
	}
	return silence(d), nil
}

func (f *fakeSynth) Calls(text string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[text]
}

type fakeDictionary struct {
	mu      sync.Mutex
	words   []string
	context string
	info    *WordInfo
	err     error
}

func (f *fakeDictionary) Lookup(ctx context.Context, word, passage string) (*WordInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.words = append(f.words, word)
	f.context = passage
	if f.err != nil {
		return nil, f.err
	}
	return f.info, nil
}

type harness struct {
	session *Session
	seg     *fakeSegmenter
	syn     *fakeSynth
	dict    *fakeDictionary
	out     *audio.NullOutput
	clock   *clock.Mock
}

func newHarness(t *testing.T, drafts ...Draft) *harness {
	t.Helper()
	mock := clock.NewMock()
	out := audio.NewNullOutput(mock, audio.SampleRate, audio.Channels)
	h := &harness{
		seg:   &fakeSegmenter{drafts: drafts},
		syn:   newFakeSynth(),
		dict:  &fakeDictionary{},
		out:   out,
		clock: mock,
	}
	h.session = NewSession(Config{
		Segmenter:   h.seg,
		Synthesizer: h.syn,
		Dictionary:  h.dict,
		Player:      audio.NewController(out, audio.WithClock(mock), audio.WithPollInterval(100*time.Millisecond)),
		Highlighter: highlight.New(mock),
	})
	return h
}

func (h *harness) process(t *testing.T) {
	t.Helper()
	if err := h.session.ProcessText(context.Background(), "some text"); err != nil {
		t.Fatalf("ProcessText failed: %v", err)
	}
}

func waitFor(t *testing.T, s *Session, what string, cond func(State) bool) State {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		st := s.State()
		if cond(st) {
			return st
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s; state %+v", what, st)
		}
		time.Sleep(time.Millisecond)
	}
}

var introBody = []Draft{
	{Title: "Intro", Content: "Hello world."},
	{Title: "Body", Content: "Bye now."},
}

func TestIntroBodyScenario(t *testing.T) {
	h := newHarness(t, introBody...)
	h.syn.lengths["Hello world."] = 2 * time.Second
	h.process(t)

	st := h.session.State()
	if len(st.Segments) != 2 || st.Active != 0 {
		t.Fatalf("segments = %d active = %d", len(st.Segments), st.Active)
	}
	if st.Segments[0].ID != "seg-0" || st.Segments[1].Title != "Body" {
		t.Errorf("unexpected segments %+v", st.Segments)
	}

	if err := h.session.PlaySegment(context.Background(), 0, 0); err != nil {
		t.Fatalf("PlaySegment failed: %v", err)
	}
	st = h.session.State()
	if !st.Playing || st.Word != 0 || st.Loading {
		t.Fatalf("after play: playing=%v word=%d loading=%v", st.Playing, st.Word, st.Loading)
	}

	h.clock.Add(time.Second)
	waitFor(t, h.session, "word 1", func(s State) bool { return s.Word == 1 })

	h.clock.Add(time.Second)
	st = waitFor(t, h.session, "stop", func(s State) bool { return !s.Playing })
	if st.Word != None {
		t.Errorf("word = %d after completion, want None", st.Word)
	}
	if h.out.Live() != 0 {
		t.Errorf("live sources = %d after completion", h.out.Live())
	}
	if !st.Segments[0].HasAudio() {
		t.Error("narration not memoized")
	}
}

func TestProcessTextBlankIsNoop(t *testing.T) {
	h := newHarness(t, introBody...)
	before := h.session.State()

	for _, in := range []string{"", "   ", "\n\t "} {
		if err := h.session.ProcessText(context.Background(), in); err != nil {
			t.Errorf("ProcessText(%q) = %v", in, err)
		}
	}
	if h.seg.Calls() != 0 {
		t.Errorf("segmenter called %d times", h.seg.Calls())
	}
	if after := h.session.State(); after.Version != before.Version {
		t.Error("blank input changed the session")
	}
}

func TestProcessTextBusy(t *testing.T) {
	h := newHarness(t, introBody...)
	h.seg.gate = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- h.session.ProcessText(context.Background(), "first") }()
	waitFor(t, h.session, "processing", func(s State) bool { return s.Processing })

	if err := h.session.ProcessText(context.Background(), "second"); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}

	close(h.seg.gate)
	if err := <-done; err != nil {
		t.Fatalf("first ProcessText failed: %v", err)
	}
	if h.seg.Calls() != 1 {
		t.Errorf("segmenter called %d times, want 1", h.seg.Calls())
	}
	if st := h.session.State(); st.Processing {
		t.Error("still processing")
	}
}

func TestProcessTextFailure(t *testing.T) {
	tests := []struct {
		name   string
		drafts []Draft
		err    error
	}{
		{"service error", nil, errors.New("boom")},
		{"no segments", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, introBody...)
			h.process(t)

			h.seg.drafts, h.seg.err = tt.drafts, tt.err
			err := h.session.ProcessText(context.Background(), "again")
			if !IsKind(err, SegmentationFailure) {
				t.Fatalf("expected SegmentationFailure, got %v", err)
			}

			st := h.session.State()
			if len(st.Segments) != 2 || st.Active != 0 || st.Processing {
				t.Errorf("state changed on failure: %+v", st)
			}
		})
	}
}

func TestProcessTextStopsPlayback(t *testing.T) {
	h := newHarness(t, introBody...)
	h.process(t)
	if err := h.session.PlaySegment(context.Background(), 1, 0); err != nil {
		t.Fatal(err)
	}

	h.dict.info = &WordInfo{Word: "kept"}
	if err := h.session.LookupWord(context.Background(), "now", 1); err != nil {
		t.Fatal(err)
	}
	h.process(t)

	st := h.session.State()
	if st.Playing || st.Active != 0 || st.Word != None {
		t.Errorf("playing=%v active=%d word=%d", st.Playing, st.Active, st.Word)
	}
	if st.Lookup == nil || st.Lookup.Word != "kept" {
		t.Error("lookup not kept across processing")
	}
	if st.Segments[1].HasAudio() {
		t.Error("new segment list carries old narration")
	}
}

func TestPlaySegmentBounds(t *testing.T) {
	h := newHarness(t, introBody...)
	h.process(t)

	tests := []struct {
		name      string
		index     int
		startWord int
		want      error
	}{
		{"negative segment", -1, 0, ErrSegmentOutOfRange},
		{"segment past end", 2, 0, ErrSegmentOutOfRange},
		{"word past end", 0, 2, ErrWordOutOfRange},
		{"negative word", 0, -1, ErrWordOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.session.PlaySegment(context.Background(), tt.index, tt.startWord)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if h.out.Opened() != 0 {
		t.Error("invalid play opened a source")
	}
}

func TestPlaySegmentStartWord(t *testing.T) {
	h := newHarness(t, Draft{Title: "T", Content: "one two three four"})
	h.syn.lengths["one two three four"] = 4 * time.Second
	h.process(t)

	if err := h.session.PlaySegment(context.Background(), 0, 2); err != nil {
		t.Fatal(err)
	}
	if st := h.session.State(); st.Word != 2 {
		t.Errorf("word = %d, want 2", st.Word)
	}
	if got := h.out.Last().Length(); got != 2*time.Second {
		t.Errorf("audio played from offset leaves %v, want 2s", got)
	}

	h.clock.Add(time.Second)
	waitFor(t, h.session, "word 3", func(s State) bool { return s.Word == 3 })
	h.clock.Add(time.Second)
	waitFor(t, h.session, "stop", func(s State) bool { return !s.Playing })
}

func TestPlaySegmentMemoizes(t *testing.T) {
	h := newHarness(t, introBody...)
	h.process(t)
	ctx := context.Background()

	if err := h.session.PlaySegment(ctx, 0, 0); err != nil {
		t.Fatal(err)
	}
	if err := h.session.SetSettings(settings.Settings{Voice: settings.Puck, Speed: 1.5}); err != nil {
		t.Fatal(err)
	}
	if err := h.session.PlaySegment(ctx, 0, 0); err != nil {
		t.Fatal(err)
	}

	if n := h.syn.Calls("Hello world."); n != 1 {
		t.Errorf("synthesized %d times, want 1", n)
	}

	if err := h.session.PlaySegment(ctx, 1, 0); err != nil {
		t.Fatal(err)
	}
	if h.syn.last.Voice != settings.Puck || h.syn.last.Speed != 1.5 {
		t.Errorf("new narration used %+v", h.syn.last)
	}
}

func TestPlaySegmentSwitchKeepsOneSource(t *testing.T) {
	h := newHarness(t, introBody...)
	h.process(t)
	ctx := context.Background()

	if err := h.session.PlaySegment(ctx, 0, 0); err != nil {
		t.Fatal(err)
	}
	if err := h.session.PlaySegment(ctx, 1, 0); err != nil {
		t.Fatal(err)
	}

	if h.out.Live() != 1 {
		t.Errorf("live sources = %d, want 1", h.out.Live())
	}
	st := h.session.State()
	if st.Active != 1 || st.Word != 0 || !st.Playing {
		t.Errorf("active=%d word=%d playing=%v", st.Active, st.Word, st.Playing)
	}
}

func TestPlaySegmentFailures(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		err  error
		kind Kind
		is   error
	}{
		{"service error", nil, errors.New("quota"), SynthesisFailure, nil},
		{"empty payload", []byte{}, nil, SynthesisFailure, ErrEmptyAudio},
		{"odd payload", []byte{1, 2, 3}, nil, DecodeFailure, audio.ErrDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, introBody...)
			h.process(t)
			h.syn.err = tt.err
			if tt.raw != nil {
				h.syn.raw["Hello world."] = tt.raw
			}

			err := h.session.PlaySegment(context.Background(), 0, 0)
			if !IsKind(err, tt.kind) {
				t.Fatalf("expected %v, got %v", tt.kind, err)
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("expected %v in chain, got %v", tt.is, err)
			}

			st := h.session.State()
			if st.Playing || st.Loading || st.Word != None {
				t.Errorf("playing=%v loading=%v word=%d", st.Playing, st.Loading, st.Word)
			}
			if st.Segments[0].HasAudio() {
				t.Error("failed narration memoized")
			}
			if h.out.Opened() != 0 {
				t.Error("source opened for failed narration")
			}
		})
	}
}

func TestStaleNarrationDiscarded(t *testing.T) {
	h := newHarness(t, introBody...)
	h.process(t)
	gate := make(chan struct{})
	h.syn.gates["Hello world."] = gate
	ctx := context.Background()

	var mu sync.Mutex
	var last State
	h.session.onChange = func(st State) {
		mu.Lock()
		defer mu.Unlock()
		if st.Version >= last.Version {
			last = st
		}
	}

	done := make(chan error, 1)
	go func() { done <- h.session.PlaySegment(ctx, 0, 0) }()
	waitFor(t, h.session, "loading", func(s State) bool { return s.Loading })

	if err := h.session.PlaySegment(ctx, 1, 0); err != nil {
		t.Fatal(err)
	}
	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("superseded play returned %v", err)
	}

	st := h.session.State()
	if st.Active != 1 || !st.Playing {
		t.Errorf("active=%d playing=%v", st.Active, st.Playing)
	}
	if h.out.Opened() != 1 {
		t.Errorf("opened %d sources, want 1", h.out.Opened())
	}
	if !st.Segments[0].HasAudio() {
		t.Error("late narration for a live segment not memoized")
	}

	mu.Lock()
	defer mu.Unlock()
	if last.Version != st.Version {
		t.Errorf("last published version %d, state is at %d", last.Version, st.Version)
	}
	if !last.Segments[0].HasAudio() {
		t.Error("memoized narration not published to observers")
	}
}

func TestZeroWordSegment(t *testing.T) {
	h := newHarness(t, Draft{Title: "Empty", Content: " \n "})
	h.syn.lengths[" \n "] = 500 * time.Millisecond
	h.process(t)

	if err := h.session.PlaySegment(context.Background(), 0, 0); err != nil {
		t.Fatal(err)
	}
	st := h.session.State()
	if !st.Playing || st.Word != None {
		t.Errorf("playing=%v word=%d", st.Playing, st.Word)
	}

	h.clock.Add(time.Second)
	waitFor(t, h.session, "audio end", func(s State) bool { return !s.Playing })
}

func TestStopIdempotent(t *testing.T) {
	h := newHarness(t, introBody...)
	h.process(t)

	h.session.Stop()
	h.session.Stop()

	if err := h.session.PlaySegment(context.Background(), 0, 0); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		h.session.Stop()
	}

	st := h.session.State()
	if st.Playing || st.Word != None {
		t.Errorf("playing=%v word=%d", st.Playing, st.Word)
	}
	if h.out.Live() != 0 {
		t.Errorf("live sources = %d", h.out.Live())
	}
}

func TestCompletionRunsOnce(t *testing.T) {
	var (
		mu    sync.Mutex
		armed bool
		stops = map[uint64]bool{}
	)
	h := newHarness(t, introBody...)
	h.session.onChange = func(s State) {
		mu.Lock()
		defer mu.Unlock()
		if armed && !s.Playing && s.Word == None {
			stops[s.Version] = true
		}
	}
	h.syn.lengths["Hello world."] = 2 * time.Second
	h.process(t)

	if err := h.session.PlaySegment(context.Background(), 0, 0); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	armed = true
	mu.Unlock()

	h.clock.Add(3 * time.Second)
	waitFor(t, h.session, "stop", func(s State) bool { return !s.Playing })
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(stops) != 1 {
		t.Errorf("observed %d distinct stops, want 1", len(stops))
	}
}

func TestTogglePlayback(t *testing.T) {
	h := newHarness(t, Draft{Title: "T", Content: "one two three four"})
	h.syn.lengths["one two three four"] = 4 * time.Second
	ctx := context.Background()

	if err := h.session.TogglePlayback(ctx); !errors.Is(err, ErrNoActiveSegment) {
		t.Errorf("toggle with no segments = %v", err)
	}

	h.process(t)
	if err := h.session.TogglePlayback(ctx); err != nil {
		t.Fatal(err)
	}
	h.clock.Add(2500 * time.Millisecond)
	waitFor(t, h.session, "word 2", func(s State) bool { return s.Word == 2 })

	if err := h.session.TogglePlayback(ctx); err != nil {
		t.Fatal(err)
	}
	st := h.session.State()
	if st.Playing || st.Word != None {
		t.Fatalf("after pause: playing=%v word=%d", st.Playing, st.Word)
	}

	if err := h.session.TogglePlayback(ctx); err != nil {
		t.Fatal(err)
	}
	st = h.session.State()
	if !st.Playing || st.Word != 2 {
		t.Errorf("after resume: playing=%v word=%d, want word 2", st.Playing, st.Word)
	}
	if got := h.out.Last().Length(); got != 2*time.Second {
		t.Errorf("resumed audio length = %v, want 2s", got)
	}

	h.session.Stop()
	if err := h.session.TogglePlayback(ctx); err != nil {
		t.Fatal(err)
	}
	if st := h.session.State(); st.Word != 0 {
		t.Errorf("after explicit stop toggle restarts at %d, want 0", st.Word)
	}
}

func TestReset(t *testing.T) {
	h := newHarness(t, introBody...)
	h.process(t)
	h.session.SetInput("Hello world. Bye now.")
	h.dict.info = &WordInfo{Word: "world"}
	if err := h.session.LookupWord(context.Background(), "world.", 0); err != nil {
		t.Fatal(err)
	}
	if err := h.session.PlaySegment(context.Background(), 0, 0); err != nil {
		t.Fatal(err)
	}

	h.session.Reset()

	st := h.session.State()
	if len(st.Segments) != 0 || st.Active != None || st.Input != "" {
		t.Errorf("segments=%d active=%d input=%q", len(st.Segments), st.Active, st.Input)
	}
	if st.Playing || h.out.Live() != 0 {
		t.Error("playback survived reset")
	}
	if st.Lookup == nil {
		t.Error("reset dropped the lookup result")
	}
}

func TestSetSettingsValidates(t *testing.T) {
	h := newHarness(t)
	if err := h.session.SetSettings(settings.Settings{Voice: settings.Kore, Speed: 3}); !errors.Is(err, settings.ErrSpeedOutOfRange) {
		t.Errorf("expected ErrSpeedOutOfRange, got %v", err)
	}
	if got := h.session.Settings(); got != settings.Default() {
		t.Errorf("settings = %+v", got)
	}
}

type fakePrefetcher struct {
	mu       sync.Mutex
	texts    []string
	priority []int
	cleared  int
}

func (f *fakePrefetcher) Prefetch(text string, _ settings.Settings, priority int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	f.priority = append(f.priority, priority)
	return nil
}

func (f *fakePrefetcher) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
}

func TestPlayPrefetchesFollowingSegments(t *testing.T) {
	drafts := []Draft{
		{Title: "One", Content: "Uno."},
		{Title: "Two", Content: "Dos."},
		{Title: "Three", Content: "Tres."},
		{Title: "Four", Content: "Cuatro."},
	}
	h := newHarness(t, drafts...)
	pf := &fakePrefetcher{}
	h.session.prefetch = pf
	h.session.ahead = 2
	h.process(t)
	if pf.cleared != 1 {
		t.Errorf("cleared = %d after processing, want 1", pf.cleared)
	}

	if err := h.session.PlaySegment(context.Background(), 0, 0); err != nil {
		t.Fatal(err)
	}
	if want := []string{"Dos.", "Tres."}; !reflect.DeepEqual(pf.texts, want) {
		t.Fatalf("prefetched %q, want %q", pf.texts, want)
	}
	if want := []int{2, 1}; !reflect.DeepEqual(pf.priority, want) {
		t.Errorf("priorities %v, want %v", pf.priority, want)
	}

	// The last segment has nothing after it.
	pf.texts, pf.priority = nil, nil
	if err := h.session.PlaySegment(context.Background(), 3, 0); err != nil {
		t.Fatal(err)
	}
	if len(pf.texts) != 0 {
		t.Errorf("prefetched %q after the last segment", pf.texts)
	}

	h.session.Reset()
	if pf.cleared != 2 {
		t.Errorf("cleared = %d after reset, want 2", pf.cleared)
	}
}
