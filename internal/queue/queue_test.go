package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/lingo/internal/settings"
)

// gatedSynth records calls and blocks each until released.
type gatedSynth struct {
	mu      sync.Mutex
	calls   []string
	started chan string
	release chan struct{}
	fail    map[string]error
}

func newGatedSynth() *gatedSynth {
	return &gatedSynth{
		started: make(chan string, 16),
		release: make(chan struct{}),
		fail:    map[string]error{},
	}
}

func (g *gatedSynth) Synthesize(ctx context.Context, text string, _ settings.Settings) ([]byte, error) {
	g.mu.Lock()
	g.calls = append(g.calls, text)
	err := g.fail[text]
	g.mu.Unlock()

	g.started <- text
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}

func (g *gatedSynth) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func waitStarted(t *testing.T, g *gatedSynth) string {
	t.Helper()
	select {
	case text := <-g.started:
		return text
	case <-time.After(2 * time.Second):
		t.Fatal("synthesis did not start")
		return ""
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPriorityOrder(t *testing.T) {
	g := newGatedSynth()
	q := New(g, Config{MaxSize: 8, Workers: 1})
	defer q.Close()

	st := settings.Default()
	if err := q.Prefetch("first", st, 0); err != nil {
		t.Fatal(err)
	}
	if got := waitStarted(t, g); got != "first" {
		t.Fatalf("started %q", got)
	}

	// The worker is busy, so these wait in the heap.
	for _, tc := range []struct {
		text     string
		priority int
	}{
		{"low", 1},
		{"high", 3},
		{"mid", 2},
		{"mid-later", 2},
	} {
		if err := q.Prefetch(tc.text, st, tc.priority); err != nil {
			t.Fatal(err)
		}
	}

	want := []string{"high", "mid", "mid-later", "low"}
	for _, w := range want {
		g.release <- struct{}{}
		if got := waitStarted(t, g); got != w {
			t.Fatalf("expected %q next, got %q", w, got)
		}
	}
	g.release <- struct{}{}

	waitFor(t, func() bool { return q.Stats().Completed == 5 })
}

func TestPrefetchDeduplicates(t *testing.T) {
	g := newGatedSynth()
	q := New(g, Config{MaxSize: 8, Workers: 1})
	defer q.Close()

	st := settings.Default()
	_ = q.Prefetch("busy", st, 0)
	waitStarted(t, g)

	for i := 0; i < 3; i++ {
		if err := q.Prefetch("again", st, 0); err != nil {
			t.Fatal(err)
		}
	}
	if n := q.Stats().CurrentSize; n != 1 {
		t.Fatalf("expected 1 pending job, got %d", n)
	}

	if err := q.Prefetch("again", st.Slower(), 0); err != nil {
		t.Fatal(err)
	}
	if n := q.Stats().CurrentSize; n != 2 {
		t.Fatalf("different speed should queue separately, got %d pending", n)
	}
}

func TestPrefetchFull(t *testing.T) {
	g := newGatedSynth()
	q := New(g, Config{MaxSize: 2, Workers: 1})
	defer q.Close()

	st := settings.Default()
	_ = q.Prefetch("busy", st, 0)
	waitStarted(t, g)

	_ = q.Prefetch("a", st, 0)
	_ = q.Prefetch("b", st, 0)
	if err := q.Prefetch("c", st, 0); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if d := q.Stats().Dropped; d != 1 {
		t.Fatalf("expected 1 dropped, got %d", d)
	}
}

func TestSynthesizeTakesOverPendingJob(t *testing.T) {
	g := newGatedSynth()
	q := New(g, Config{MaxSize: 8, Workers: 1})
	defer q.Close()

	st := settings.Default()
	_ = q.Prefetch("busy", st, 0)
	waitStarted(t, g)
	_ = q.Prefetch("next", st, 0)

	done := make(chan []byte, 1)
	go func() {
		data, err := q.Synthesize(context.Background(), "next", st)
		if err != nil {
			t.Error(err)
		}
		done <- data
	}()

	if got := waitStarted(t, g); got != "next" {
		t.Fatalf("expected the foreground request to run %q, got %q", "next", got)
	}
	g.release <- struct{}{}
	g.release <- struct{}{}

	if data := <-done; string(data) != "next" {
		t.Fatalf("unexpected narration %q", data)
	}
	if n := q.Stats().CurrentSize; n != 0 {
		t.Fatalf("taken job should leave the queue, %d pending", n)
	}
	if j := q.Stats().Joined; j != 1 {
		t.Fatalf("expected 1 joined request, got %d", j)
	}
	if c := g.callCount(); c != 2 {
		t.Fatalf("expected 2 calls, got %d", c)
	}
}

func TestSynthesizeWaitsForRunningJob(t *testing.T) {
	g := newGatedSynth()
	q := New(g, Config{MaxSize: 8, Workers: 1})
	defer q.Close()

	st := settings.Default()
	_ = q.Prefetch("shared", st, 0)
	waitStarted(t, g)

	done := make(chan []byte, 1)
	go func() {
		data, _ := q.Synthesize(context.Background(), "shared", st)
		done <- data
	}()

	waitFor(t, func() bool { return q.Stats().Joined == 1 })
	g.release <- struct{}{}

	if data := <-done; string(data) != "shared" {
		t.Fatalf("unexpected narration %q", data)
	}
	if c := g.callCount(); c != 1 {
		t.Fatalf("expected a single request, got %d", c)
	}
}

func TestSynthesizeSharesFailure(t *testing.T) {
	g := newGatedSynth()
	g.fail["bad"] = errors.New("quota")
	q := New(g, Config{MaxSize: 8, Workers: 1})
	defer q.Close()

	st := settings.Default()
	_ = q.Prefetch("bad", st, 0)
	waitStarted(t, g)

	errc := make(chan error, 1)
	go func() {
		_, err := q.Synthesize(context.Background(), "bad", st)
		errc <- err
	}()
	waitFor(t, func() bool { return q.Stats().Joined == 1 })
	g.release <- struct{}{}

	if err := <-errc; err == nil || err.Error() != "quota" {
		t.Fatalf("expected quota error, got %v", err)
	}
	if f := q.Stats().Failed; f != 1 {
		t.Fatalf("expected 1 failure, got %d", f)
	}
}

func TestSynthesizeUnknownTextGoesStraightThrough(t *testing.T) {
	g := newGatedSynth()
	q := New(g, DefaultConfig())
	defer q.Close()

	go func() {
		<-g.started
		g.release <- struct{}{}
	}()
	data, err := q.Synthesize(context.Background(), "direct", settings.Default())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "direct" {
		t.Fatalf("unexpected narration %q", data)
	}
	if j := q.Stats().Joined; j != 0 {
		t.Fatalf("expected no joined requests, got %d", j)
	}
}

func TestClear(t *testing.T) {
	g := newGatedSynth()
	q := New(g, Config{MaxSize: 8, Workers: 1})
	defer q.Close()

	st := settings.Default()
	_ = q.Prefetch("busy", st, 0)
	waitStarted(t, g)
	_ = q.Prefetch("a", st, 0)
	_ = q.Prefetch("b", st, 0)

	q.Clear()
	if n := q.Stats().CurrentSize; n != 0 {
		t.Fatalf("expected empty queue, got %d", n)
	}

	// Cleared text can be queued again.
	if err := q.Prefetch("a", st, 0); err != nil {
		t.Fatal(err)
	}
	if n := q.Stats().CurrentSize; n != 1 {
		t.Fatalf("expected 1 pending job, got %d", n)
	}
}

func TestClose(t *testing.T) {
	g := newGatedSynth()
	q := New(g, Config{MaxSize: 8, Workers: 2})

	st := settings.Default()
	_ = q.Prefetch("running", st, 0)
	waitStarted(t, g)
	_ = q.Prefetch("pending", st, 0)
	waitStarted(t, g)

	closed := make(chan struct{})
	go func() {
		_ = q.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not cancel running requests")
	}

	if err := q.Prefetch("late", st, 0); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
