package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/dgnsrekt/lingo/internal/settings"
)

func TestStorePromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(Config{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put("k", []byte("pcm")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(Config{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := s.Get("k"); !ok || string(got) != "pcm" {
		t.Fatalf("Get = %q, %v", got, ok)
	}
	if s.Promotions() != 1 {
		t.Errorf("promotions = %d, want 1", s.Promotions())
	}
	if st := s.Stats()[0]; st.Level != LevelMemory || st.Items != 1 {
		t.Errorf("memory stats = %+v", st)
	}
}

func TestOpenRequiresDir(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Error("Open without a directory succeeded")
	}
}

func TestKey(t *testing.T) {
	a := Key("hello", "Kore", 1.0)
	if a != Key("hello", "Kore", 1.0) {
		t.Error("key not stable")
	}
	for _, other := range []string{Key("hello", "Puck", 1.0), Key("hello", "Kore", 1.5), Key("hello!", "Kore", 1.0)} {
		if other == a {
			t.Error("distinct narration shares a key")
		}
	}
}

type countingSynth struct {
	calls int
	data  []byte
	err   error
}

func (c *countingSynth) Synthesize(ctx context.Context, text string, s settings.Settings) ([]byte, error) {
	c.calls++
	return c.data, c.err
}

func TestNarration(t *testing.T) {
	store, err := Open(Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	next := &countingSynth{data: []byte{1, 2, 3, 4}}
	n := NewNarration(next, store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := n.Synthesize(ctx, "Hello world.", settings.Default())
		if err != nil || len(got) != 4 {
			t.Fatalf("Synthesize = %v, %v", got, err)
		}
	}
	if next.calls != 1 {
		t.Errorf("upstream called %d times, want 1", next.calls)
	}

	if _, err := n.Synthesize(ctx, "Hello world.", settings.Settings{Voice: settings.Charon, Speed: 1}); err != nil {
		t.Fatal(err)
	}
	if next.calls != 2 {
		t.Errorf("different voice served from cache")
	}
}

func TestNarrationDoesNotCacheFailures(t *testing.T) {
	store, err := Open(Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	next := &countingSynth{err: errors.New("quota")}
	n := NewNarration(next, store)

	for i := 0; i < 2; i++ {
		if _, err := n.Synthesize(context.Background(), "x", settings.Default()); err == nil {
			t.Fatal("expected error")
		}
	}
	next.err, next.data = nil, []byte{}
	if _, err := n.Synthesize(context.Background(), "x", settings.Default()); err != nil {
		t.Fatal(err)
	}
	if _, err := n.Synthesize(context.Background(), "x", settings.Default()); err != nil {
		t.Fatal(err)
	}
	if next.calls != 4 {
		t.Errorf("upstream called %d times, want 4", next.calls)
	}
}
