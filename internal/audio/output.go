package audio

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ebitengine/oto/v3"
)

// Source is one playing stream on an Output.
type Source interface {
	Play()
	Pause()
	IsPlaying() bool
	Close() error
}

// Output is an audio device that accepts interleaved float32 LE streams.
type Output interface {
	NewSource(r io.Reader) Source
	SampleRate() int
	Channels() int
}

// OtoOutput plays audio through the system device via oto.
type OtoOutput struct {
	ctx        *oto.Context
	sampleRate int
	channels   int
}

var (
	otoOnce sync.Once
	otoOut  *OtoOutput
	otoErr  error
)

// NewOtoOutput opens the audio device. oto allows a single context per
// process, so later calls return the first output and fail if the format
// differs.
func NewOtoOutput(sampleRate, channels int) (*OtoOutput, error) {
	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: channels,
			Format:       oto.FormatFloat32LE,
			BufferSize:   100 * time.Millisecond,
		})
		if err != nil {
			otoErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		<-ready
		otoOut = &OtoOutput{ctx: ctx, sampleRate: sampleRate, channels: channels}
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if otoOut.sampleRate != sampleRate || otoOut.channels != channels {
		return nil, fmt.Errorf("audio device already open at %d Hz, %d channels", otoOut.sampleRate, otoOut.channels)
	}
	return otoOut, nil
}

// NewSource wraps r in an oto player. The player is not started.
func (o *OtoOutput) NewSource(r io.Reader) Source {
	return o.ctx.NewPlayer(r)
}

// SampleRate implements Output.
func (o *OtoOutput) SampleRate() int { return o.sampleRate }

// Channels implements Output.
func (o *OtoOutput) Channels() int { return o.channels }

// NullOutput is a silent Output. Each source drains its reader when played
// and then reports playing until the audio's duration has elapsed on the
// output's clock. It is used for muted runs and in tests.
type NullOutput struct {
	clock      clock.Clock
	sampleRate int
	channels   int

	mu      sync.Mutex
	opened  int
	sources []*NullSource
}

// NewNullOutput returns a silent output using clk for timing. A nil clock
// means wall time.
func NewNullOutput(clk clock.Clock, sampleRate, channels int) *NullOutput {
	if clk == nil {
		clk = clock.New()
	}
	return &NullOutput{clock: clk, sampleRate: sampleRate, channels: channels}
}

// NewSource implements Output.
func (o *NullOutput) NewSource(r io.Reader) Source {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := &NullSource{out: o, r: r}
	o.opened++
	o.sources = append(o.sources, s)
	return s
}

// SampleRate implements Output.
func (o *NullOutput) SampleRate() int { return o.sampleRate }

// Channels implements Output.
func (o *NullOutput) Channels() int { return o.channels }

// Opened returns how many sources have been created.
func (o *NullOutput) Opened() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opened
}

// Live returns the number of sources that are neither closed nor drained.
func (o *NullOutput) Live() int {
	o.mu.Lock()
	sources := append([]*NullSource(nil), o.sources...)
	o.mu.Unlock()

	n := 0
	for _, s := range sources {
		if s.IsPlaying() {
			n++
		}
	}
	return n
}

// Last returns the most recently created source, or nil.
func (o *NullOutput) Last() *NullSource {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.sources) == 0 {
		return nil
	}
	return o.sources[len(o.sources)-1]
}

// NullSource is a Source created by NullOutput.
type NullSource struct {
	out *NullOutput
	r   io.Reader

	mu        sync.Mutex
	length    time.Duration
	drained   bool
	remaining time.Duration
	deadline  time.Time
	playing   bool
	closed    bool
}

// Play implements Source.
func (s *NullSource) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.playing {
		return
	}
	if !s.drained {
		n, _ := io.Copy(io.Discard, s.r)
		frameBytes := int64(floatSize * s.out.channels)
		s.length = time.Duration(n/frameBytes) * time.Second / time.Duration(s.out.sampleRate)
		s.remaining = s.length
		s.drained = true
	}
	s.deadline = s.out.clock.Now().Add(s.remaining)
	s.playing = true
}

// Pause implements Source.
func (s *NullSource) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing {
		return
	}
	s.remaining = s.deadline.Sub(s.out.clock.Now())
	if s.remaining < 0 {
		s.remaining = 0
	}
	s.playing = false
}

// IsPlaying implements Source.
func (s *NullSource) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing && !s.closed && s.out.clock.Now().Before(s.deadline)
}

// Close implements Source.
func (s *NullSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.playing = false
	return nil
}

// Closed reports whether Close was called.
func (s *NullSource) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Length returns the duration of audio read from the source's stream.
func (s *NullSource) Length() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.length
}
