package audio

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"
	"time"
)

func pcm(samples ...int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	return b
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		channels int
		want     [][]float32
	}{
		{
			name:     "mono values",
			data:     []byte{0x00, 0x00, 0xFF, 0x7F, 0x00, 0x80},
			channels: 1,
			want:     [][]float32{{0, 32767.0 / 32768.0, -1}},
		},
		{
			name:     "empty",
			data:     nil,
			channels: 1,
			want:     [][]float32{{}},
		},
		{
			name:     "stereo de-interleave",
			data:     pcm(16384, -16384, 8192, -8192),
			channels: 2,
			want:     [][]float32{{0.5, 0.25}, {-0.5, -0.25}},
		},
		{
			name:     "trailing partial frame dropped",
			data:     pcm(16384, -16384, 8192),
			channels: 2,
			want:     [][]float32{{0.5}, {-0.5}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := Decode(tt.data, SampleRate, tt.channels)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if buf.NumberOfChannels() != tt.channels {
				t.Fatalf("channels = %d, want %d", buf.NumberOfChannels(), tt.channels)
			}
			if buf.SampleRate() != SampleRate {
				t.Errorf("sample rate = %d, want %d", buf.SampleRate(), SampleRate)
			}
			for ch, want := range tt.want {
				if buf.Len() != len(want) {
					t.Fatalf("len = %d, want %d", buf.Len(), len(want))
				}
				got := buf.Channel(ch)
				for i := range want {
					if got[i] != want[i] {
						t.Errorf("channel %d sample %d = %v, want %v", ch, i, got[i], want[i])
					}
				}
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name       string
		data       []byte
		sampleRate int
		channels   int
	}{
		{"odd length", []byte{0x00, 0x00, 0x01}, SampleRate, 1},
		{"zero rate", pcm(1), 0, 1},
		{"zero channels", pcm(1), SampleRate, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data, tt.sampleRate, tt.channels)
			if !errors.Is(err, ErrDecode) {
				t.Errorf("expected ErrDecode, got %v", err)
			}
		})
	}
}

func TestBufferDuration(t *testing.T) {
	buf, err := Decode(make([]byte, SampleRate*2*3), SampleRate, 1)
	if err != nil {
		t.Fatal(err)
	}
	if buf.Duration() != 3*time.Second {
		t.Errorf("duration = %v, want 3s", buf.Duration())
	}
}

func TestBufferChannelIsCopy(t *testing.T) {
	buf, err := Decode(pcm(16384), SampleRate, 1)
	if err != nil {
		t.Fatal(err)
	}
	c := buf.Channel(0)
	c[0] = 0
	if buf.Sample(0, 0) != 0.5 {
		t.Error("mutating a channel copy changed the buffer")
	}
}

func TestBufferReader(t *testing.T) {
	buf, err := Decode(pcm(16384, -16384, 8192, -8192), SampleRate, 2)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("from start", func(t *testing.T) {
		data, err := io.ReadAll(buf.Reader(0))
		if err != nil {
			t.Fatal(err)
		}
		want := []float32{0.5, -0.5, 0.25, -0.25}
		if len(data) != len(want)*4 {
			t.Fatalf("read %d bytes, want %d", len(data), len(want)*4)
		}
		for i, w := range want {
			got := math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
			if got != w {
				t.Errorf("sample %d = %v, want %v", i, got, w)
			}
		}
	})

	t.Run("from offset", func(t *testing.T) {
		offset := time.Second / SampleRate
		data, err := io.ReadAll(buf.Reader(offset))
		if err != nil {
			t.Fatal(err)
		}
		if len(data) != 8 {
			t.Fatalf("read %d bytes, want 8", len(data))
		}
	})

	t.Run("past end", func(t *testing.T) {
		data, _ := io.ReadAll(buf.Reader(time.Hour))
		if len(data) != 0 {
			t.Errorf("read %d bytes past end", len(data))
		}
	})

	t.Run("short buffer", func(t *testing.T) {
		_, err := buf.Reader(0).Read(make([]byte, 3))
		if !errors.Is(err, io.ErrShortBuffer) {
			t.Errorf("expected ErrShortBuffer, got %v", err)
		}
	})
}

func TestBufferFrameAt(t *testing.T) {
	buf, err := Decode(make([]byte, 2*SampleRate), SampleRate, 1)
	if err != nil {
		t.Fatal(err)
	}
	frame := time.Second / SampleRate

	for _, tc := range []struct {
		name   string
		offset time.Duration
		want   int
	}{
		{"zero", 0, 0},
		{"negative", -time.Second, 0},
		{"one frame", frame, 1},
		{"just under one frame", frame - 100, 1},
		{"less than half a frame", frame / 3, 0},
		{"word boundary", 250 * time.Millisecond, SampleRate / 4},
		{"half a second", time.Second / 2, SampleRate / 2},
		{"past end", time.Hour, SampleRate},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := buf.frameAt(tc.offset); got != tc.want {
				t.Errorf("frameAt(%v) = %d, want %d", tc.offset, got, tc.want)
			}
		})
	}
}

func TestBufferPCM16(t *testing.T) {
	in := pcm(0, 1000, -1000, 32767, -32768)
	buf, err := Decode(in, SampleRate, 1)
	if err != nil {
		t.Fatal(err)
	}
	out := buf.PCM16()
	if string(out) != string(in) {
		t.Errorf("PCM16 = %v, want %v", out, in)
	}
}
