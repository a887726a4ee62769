// Package highlight advances a word cursor across narrated text at a fixed
// rate derived from the narration length.
package highlight

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Interval returns the time each of n words is highlighted when d is
// spread evenly across them. It is zero when n is not positive.
func Interval(d time.Duration, n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return d / time.Duration(n)
}

// WordAt returns the index of the word being spoken elapsed into a
// narration of length d over n words, clamped to [0, n-1]. It returns -1
// when n is not positive.
func WordAt(elapsed, d time.Duration, n int) int {
	iv := Interval(d, n)
	if iv <= 0 {
		return -1
	}
	i := int(elapsed / iv)
	switch {
	case i < 0:
		return 0
	case i >= n:
		return n - 1
	}
	return i
}

// Schedule describes one highlight run.
type Schedule struct {
	Duration time.Duration // narration length
	Words    int           // word count of the narrated text
	Start    int           // first index to publish

	OnWord func(index int)
	OnDone func()
}

// Scheduler runs at most one Schedule at a time. Callbacks run on the
// scheduler's goroutine; a callback already in flight when Cancel is
// called may still complete.
type Scheduler struct {
	clock clock.Clock

	mu   sync.Mutex
	gen  uint64
	stop chan struct{}
}

// New returns a Scheduler using clk. A nil clock means wall time.
func New(clk clock.Clock) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	return &Scheduler{clock: clk}
}

// Start cancels any running schedule and begins sch. The start index is
// published immediately, then the index advances by one every interval.
// Once it reaches the word count OnDone runs exactly once. Start returns
// false and schedules nothing when there are no words or the start index
// is out of range.
func (s *Scheduler) Start(sch Schedule) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked()
	iv := Interval(sch.Duration, sch.Words)
	if sch.Words <= 0 || sch.Start < 0 || sch.Start >= sch.Words {
		return false
	}
	if iv <= 0 {
		// Zero-length narration: still step through every word.
		iv = time.Nanosecond
	}

	s.gen++
	stop := make(chan struct{})
	s.stop = stop
	ticker := s.clock.Ticker(iv)

	go s.run(s.gen, sch, ticker, stop)
	return true
}

func (s *Scheduler) run(gen uint64, sch Schedule, ticker *clock.Ticker, stop <-chan struct{}) {
	defer ticker.Stop()

	idx := sch.Start
	if !s.publish(gen, sch.OnWord, idx) {
		return
	}
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			idx++
			if idx < sch.Words {
				if !s.publish(gen, sch.OnWord, idx) {
					return
				}
				continue
			}
			if s.finish(gen) && sch.OnDone != nil {
				sch.OnDone()
			}
			return
		}
	}
}

func (s *Scheduler) publish(gen uint64, fn func(int), idx int) bool {
	s.mu.Lock()
	live := s.gen == gen && s.stop != nil
	s.mu.Unlock()
	if live && fn != nil {
		fn(idx)
	}
	return live
}

// finish retires run gen, reporting whether it was still current.
func (s *Scheduler) finish(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.stop == nil {
		return false
	}
	close(s.stop)
	s.stop = nil
	return true
}

// Cancel stops the running schedule without calling OnDone. It is safe to
// call at any time and any number of times.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

func (s *Scheduler) cancelLocked() {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	s.gen++
}

// Running reports whether a schedule is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}
