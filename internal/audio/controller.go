package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/charmbracelet/log"
)

// State is the playback controller state.
type State int

const (
	StateIdle State = iota
	StatePlaying
	StateStopped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StatePlaying:
		return "Playing"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Playback errors.
var (
	ErrNoBuffer       = errors.New("no audio buffer")
	ErrFormatMismatch = errors.New("buffer format does not match output")
)

const defaultPollInterval = 20 * time.Millisecond

// Controller starts and stops the single live source on an Output.
type Controller struct {
	out   Output
	clock clock.Clock
	poll  time.Duration

	mu      sync.Mutex
	state   State
	source  Source
	buffer  *Buffer
	offset  time.Duration
	started time.Time
	gen     uint64
	done    chan struct{}
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock used for start times and end detection.
func WithClock(clk clock.Clock) Option {
	return func(c *Controller) { c.clock = clk }
}

// WithPollInterval sets how often the live source is checked for
// completion.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.poll = d
		}
	}
}

// NewController creates an idle controller on out.
func NewController(out Output, opts ...Option) *Controller {
	c := &Controller{
		out:   out,
		clock: clock.New(),
		poll:  defaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start tears down any live source and begins playing buf from offset. It
// returns the clock time playback began. onEnded runs once if the source
// drains before Stop or another Start.
func (c *Controller) Start(buf *Buffer, offset time.Duration, onEnded func()) (time.Time, error) {
	if buf == nil {
		return time.Time{}, ErrNoBuffer
	}
	if buf.SampleRate() != c.out.SampleRate() || buf.NumberOfChannels() != c.out.Channels() {
		return time.Time{}, fmt.Errorf("%w: buffer %d Hz/%d ch, output %d Hz/%d ch",
			ErrFormatMismatch, buf.SampleRate(), buf.NumberOfChannels(), c.out.SampleRate(), c.out.Channels())
	}
	if offset < 0 {
		offset = 0
	}
	if d := buf.Duration(); offset > d {
		offset = d
	}

	c.mu.Lock()
	c.releaseLocked()

	src := c.out.NewSource(buf.Reader(offset))
	src.Play()

	c.gen++
	gen := c.gen
	done := make(chan struct{})
	ticker := c.clock.Ticker(c.poll)

	c.source = src
	c.buffer = buf
	c.offset = offset
	c.started = c.clock.Now()
	c.done = done
	c.state = StatePlaying
	started := c.started
	c.mu.Unlock()

	log.Debug("Playback started", "offset", offset, "duration", buf.Duration())
	go c.watch(gen, src, ticker, done, onEnded)
	return started, nil
}

// watch reports natural completion of src.
func (c *Controller) watch(gen uint64, src Source, ticker *clock.Ticker, done <-chan struct{}, onEnded func()) {
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if src.IsPlaying() {
				continue
			}
			c.mu.Lock()
			if c.gen != gen || c.state != StatePlaying {
				c.mu.Unlock()
				return
			}
			c.releaseLocked()
			c.state = StateStopped
			c.mu.Unlock()

			log.Debug("Playback ended")
			if onEnded != nil {
				onEnded()
			}
			return
		}
	}
}

// Stop halts and releases the live source. It is safe to call any number
// of times and reports whether a source was live.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	live := c.source != nil
	c.releaseLocked()
	if c.state != StateIdle || live {
		c.state = StateStopped
	}
	return live
}

// releaseLocked stops the live source and its watcher. Must hold c.mu.
func (c *Controller) releaseLocked() {
	if c.source == nil {
		return
	}
	c.source.Pause()
	if err := c.source.Close(); err != nil {
		log.Debug("Closing audio source", "err", err)
	}
	close(c.done)
	c.source = nil
	c.buffer = nil
	c.done = nil
	c.gen++
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Playing reports whether a source is live.
func (c *Controller) Playing() bool {
	return c.State() == StatePlaying
}

// Elapsed returns the playback position within the buffer, or zero when
// nothing is playing.
func (c *Controller) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePlaying || c.buffer == nil {
		return 0
	}
	pos := c.offset + c.clock.Since(c.started)
	if d := c.buffer.Duration(); pos > d {
		pos = d
	}
	return pos
}

// Close stops playback.
func (c *Controller) Close() error {
	c.Stop()
	return nil
}
