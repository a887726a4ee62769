package cache

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDiskRoundTrip(t *testing.T) {
	d, err := NewDisk(t.TempDir(), 1<<20, 3)
	if err != nil {
		t.Fatal(err)
	}
	value := bytes.Repeat([]byte{0, 0, 1, 0}, 4096)

	if err := d.Put("k", value); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, ok := d.Get("k")
	if !ok || !bytes.Equal(got, value) {
		t.Fatal("round trip mismatch")
	}
	if st := d.Stats(); st.Size >= int64(len(value)) {
		t.Errorf("stored %d bytes for %d raw, want compression", st.Size, len(value))
	}
}

func TestDiskPersistsIndex(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(dir, 1<<20, 3)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Put("k", []byte("narration")); err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewDisk(dir, 1<<20, 3)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := reopened.Get("k")
	if !ok || string(got) != "narration" {
		t.Errorf("after reopen Get = %q, %v", got, ok)
	}
}

func TestDiskCorruptedEntry(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(dir, 1<<20, 3)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Put("k", []byte("narration")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "k.zst"), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok := d.Get("k"); ok {
		t.Error("corrupted entry returned")
	}
	if st := d.Stats(); st.Items != 0 || st.Size != 0 {
		t.Errorf("corrupted entry kept: %+v", st)
	}
}

func TestDiskEvictsAndRejects(t *testing.T) {
	d, err := NewDisk(t.TempDir(), 64, 3)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Put("big", randomBytes(256)); !errors.Is(err, ErrItemTooLarge) {
		t.Errorf("expected ErrItemTooLarge, got %v", err)
	}

	_ = d.Put("a", randomBytes(30))
	_ = d.Put("b", randomBytes(30))
	if d.Stats().Evictions == 0 {
		t.Error("no eviction when over capacity")
	}
	if _, ok := d.Get("b"); !ok {
		t.Error("newest entry evicted")
	}
}

func TestDiskClear(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(dir, 1<<20, 3)
	if err != nil {
		t.Fatal(err)
	}
	_ = d.Put("a", []byte("1"))
	_ = d.Put("b", []byte("2"))
	if err := d.Clear(); err != nil {
		t.Fatal(err)
	}
	if d.Stats().Items != 0 {
		t.Error("items left after clear")
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*.zst"))
	if len(matches) != 0 {
		t.Errorf("files left after clear: %v", matches)
	}
}

// randomBytes returns incompressible data.
func randomBytes(n int) []byte {
	b := make([]byte, n)
	x := uint32(2463534242)
	for i := range b {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		b[i] = byte(x)
	}
	return b
}
