package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
)

// Narration format delivered by the speech service.
const (
	SampleRate = 24000
	Channels   = 1

	bytesPerSample = 2
	floatSize      = 4
)

// ErrDecode is returned when raw audio can't be turned into a Buffer.
var ErrDecode = errors.New("audio decode failed")

// Buffer is decoded audio, one float slice per channel. A Buffer is never
// modified after Decode returns it.
type Buffer struct {
	sampleRate int
	channels   [][]float32
	frames     int
}

// Decode converts 16-bit little-endian signed PCM into a Buffer. Samples are
// scaled into [-1, 1) by dividing by 32768 and de-interleaved by channel. A
// trailing partial frame is dropped.
func Decode(data []byte, sampleRate, channels int) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: invalid sample rate %d", ErrDecode, sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("%w: invalid channel count %d", ErrDecode, channels)
	}
	if len(data)%bytesPerSample != 0 {
		return nil, fmt.Errorf("%w: odd byte length %d", ErrDecode, len(data))
	}

	frames := len(data) / bytesPerSample / channels
	buf := &Buffer{
		sampleRate: sampleRate,
		channels:   make([][]float32, channels),
		frames:     frames,
	}
	for ch := range buf.channels {
		buf.channels[ch] = make([]float32, frames)
	}

	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			off := (i*channels + ch) * bytesPerSample
			s := int16(binary.LittleEndian.Uint16(data[off:]))
			buf.channels[ch][i] = float32(s) / 32768
		}
	}
	return buf, nil
}

// SampleRate returns the sample rate in Hz.
func (b *Buffer) SampleRate() int { return b.sampleRate }

// NumberOfChannels returns the channel count.
func (b *Buffer) NumberOfChannels() int { return len(b.channels) }

// Len returns the number of frames per channel.
func (b *Buffer) Len() int { return b.frames }

// Sample returns one sample of one channel.
func (b *Buffer) Sample(ch, i int) float32 { return b.channels[ch][i] }

// Channel returns a copy of a channel's samples.
func (b *Buffer) Channel(ch int) []float32 {
	out := make([]float32, b.frames)
	copy(out, b.channels[ch])
	return out
}

// Duration is frames divided by the sample rate.
func (b *Buffer) Duration() time.Duration {
	return time.Duration(b.frames) * time.Second / time.Duration(b.sampleRate)
}

// frameAt converts a time offset into the nearest frame index within the
// buffer.
func (b *Buffer) frameAt(offset time.Duration) int {
	if offset <= 0 {
		return 0
	}
	f := int((offset*time.Duration(b.sampleRate) + time.Second/2) / time.Second)
	if f > b.frames {
		return b.frames
	}
	return f
}

// Reader streams the buffer as interleaved 32-bit float little-endian
// samples, starting at offset.
func (b *Buffer) Reader(offset time.Duration) io.Reader {
	return &floatReader{buf: b, frame: b.frameAt(offset)}
}

// PCM16 re-encodes the buffer as interleaved 16-bit little-endian PCM.
func (b *Buffer) PCM16() []byte {
	out := make([]byte, b.frames*len(b.channels)*bytesPerSample)
	for i := 0; i < b.frames; i++ {
		for ch := range b.channels {
			v := math.Round(float64(b.channels[ch][i]) * 32768)
			v = math.Max(math.MinInt16, math.Min(math.MaxInt16, v))
			off := (i*len(b.channels) + ch) * bytesPerSample
			binary.LittleEndian.PutUint16(out[off:], uint16(int16(v)))
		}
	}
	return out
}

type floatReader struct {
	buf   *Buffer
	frame int
	ch    int
}

func (r *floatReader) Read(p []byte) (int, error) {
	if r.frame >= r.buf.frames {
		return 0, io.EOF
	}
	if len(p) < floatSize {
		return 0, io.ErrShortBuffer
	}
	n := 0
	for len(p)-n >= floatSize && r.frame < r.buf.frames {
		bits := math.Float32bits(r.buf.channels[r.ch][r.frame])
		binary.LittleEndian.PutUint32(p[n:], bits)
		n += floatSize
		r.ch++
		if r.ch == len(r.buf.channels) {
			r.ch = 0
			r.frame++
		}
	}
	return n, nil
}
