// Package queue narrates upcoming segments in the background so that
// playing them later does not wait on the network.
package queue

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/lingo/internal/cache"
	"github.com/dgnsrekt/lingo/internal/settings"
)

var (
	// ErrQueueFull is returned when no more prefetch jobs are accepted.
	ErrQueueFull = errors.New("prefetch queue is full")
	// ErrQueueClosed is returned after Close.
	ErrQueueClosed = errors.New("prefetch queue is closed")
)

// Synthesizer produces narration audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, s settings.Settings) ([]byte, error)
}

// Config sizes a Queue.
type Config struct {
	MaxSize int // pending jobs accepted at once
	Workers int // concurrent background requests
}

// DefaultConfig returns a small queue with one worker.
func DefaultConfig() Config {
	return Config{MaxSize: 8, Workers: 1}
}

// Stats summarizes queue activity.
type Stats struct {
	Enqueued    int64
	Completed   int64
	Failed      int64
	Dropped     int64
	Joined      int64 // foreground requests that reused a prefetch
	CurrentSize int
	PeakSize    int
	LastEnqueue time.Time
}

// job is one narration request, pending or running.
type job struct {
	key      string
	text     string
	settings settings.Settings
	priority int
	seq      uint64
	index    int // position in the heap, -1 once taken
	running  bool

	done chan struct{}
	data []byte
	err  error
}

// Queue prefetches narration through next. It is also a Synthesizer:
// foreground requests for text that is already queued or running share
// the background result instead of asking twice.
type Queue struct {
	next Synthesizer
	cfg  Config

	mu       sync.Mutex
	notEmpty *sync.Cond
	pending  jobHeap
	jobs     map[string]*job
	seq      uint64
	closed   bool
	stats    Stats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New starts a queue in front of next.
func New(next Synthesizer, cfg Config) *Queue {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultConfig().MaxSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		next:   next,
		cfg:    cfg,
		jobs:   make(map[string]*job),
		ctx:    ctx,
		cancel: cancel,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	heap.Init(&q.pending)

	for i := 0; i < cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Prefetch queues narration of text at s. Higher priority runs first and
// equal priorities run in the order queued. Text already queued or
// running is not queued again, though a higher priority is kept.
func (q *Queue) Prefetch(text string, s settings.Settings, priority int) error {
	key := cache.Key(text, string(s.Voice), s.Speed)

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if j, ok := q.jobs[key]; ok {
		if !j.running && priority > j.priority {
			j.priority = priority
			heap.Fix(&q.pending, j.index)
		}
		return nil
	}
	if q.pending.Len() >= q.cfg.MaxSize {
		q.stats.Dropped++
		return ErrQueueFull
	}

	q.seq++
	j := &job{
		key:      key,
		text:     text,
		settings: s,
		priority: priority,
		seq:      q.seq,
		done:     make(chan struct{}),
	}
	heap.Push(&q.pending, j)
	q.jobs[key] = j

	q.stats.Enqueued++
	q.stats.LastEnqueue = time.Now()
	if n := q.pending.Len(); n > q.stats.PeakSize {
		q.stats.PeakSize = n
	}
	q.notEmpty.Signal()
	return nil
}

// Synthesize returns narration for text at s. A queued job for the same
// text is taken over and run now; a running one is waited for.
func (q *Queue) Synthesize(ctx context.Context, text string, s settings.Settings) ([]byte, error) {
	key := cache.Key(text, string(s.Voice), s.Speed)

	q.mu.Lock()
	j, ok := q.jobs[key]
	if !ok {
		q.mu.Unlock()
		return q.next.Synthesize(ctx, text, s)
	}
	q.stats.Joined++
	if !j.running {
		heap.Remove(&q.pending, j.index)
		j.running = true
		q.mu.Unlock()
		q.run(ctx, j)
		return j.data, j.err
	}
	q.mu.Unlock()

	log.Debug("Waiting for prefetched narration", "key", key)
	select {
	case <-j.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if j.err != nil && errors.Is(j.err, context.Canceled) {
		return q.next.Synthesize(ctx, text, s)
	}
	return j.data, j.err
}

// Clear drops every job that has not started.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, j := range q.pending {
		j.err = context.Canceled
		j.index = -1
		delete(q.jobs, j.key)
		close(j.done)
	}
	q.stats.Dropped += int64(q.pending.Len())
	q.pending = q.pending[:0]
}

// Stats returns a copy of the counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	st := q.stats
	st.CurrentSize = q.pending.Len()
	return st
}

// Close cancels running requests, drops pending ones and waits for the
// workers to exit.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	q.Clear()
	q.cancel()

	q.mu.Lock()
	q.notEmpty.Broadcast()
	q.mu.Unlock()

	q.wg.Wait()
	return nil
}

func (q *Queue) worker() {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		for q.pending.Len() == 0 && !q.closed {
			q.notEmpty.Wait()
		}
		if q.closed {
			q.mu.Unlock()
			return
		}
		j := heap.Pop(&q.pending).(*job)
		j.running = true
		q.mu.Unlock()

		q.run(q.ctx, j)
	}
}

// run performs j and publishes its result.
func (q *Queue) run(ctx context.Context, j *job) {
	start := time.Now()
	data, err := q.next.Synthesize(ctx, j.text, j.settings)
	if err == nil && len(data) == 0 {
		err = errors.New("empty narration")
	}

	q.mu.Lock()
	j.data, j.err = data, err
	delete(q.jobs, j.key)
	if err != nil {
		q.stats.Failed++
	} else {
		q.stats.Completed++
	}
	q.mu.Unlock()
	close(j.done)

	if err != nil {
		log.Debug("Prefetch failed", "key", j.key, "err", err)
		return
	}
	log.Debug("Prefetched narration", "key", j.key, "bytes", len(data), "took", time.Since(start).Round(time.Millisecond))
}

// jobHeap orders jobs by priority, then by arrival.
type jobHeap []*job

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *jobHeap) Push(x any) {
	j := x.(*job)
	j.index = len(*h)
	*h = append(*h, j)
}

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	j.index = -1
	*h = old[:n-1]
	return j
}
