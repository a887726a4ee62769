// Package wav writes narration audio as WAV files.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	// HeaderSize is the size of a canonical PCM WAV header.
	HeaderSize = 44

	formatPCM     = 1
	bitsPerSample = 16
)

// ErrInvalidHeader is returned when a file does not start with a PCM WAV
// header.
var ErrInvalidHeader = errors.New("invalid wav header")

// Format describes 16-bit PCM audio.
type Format struct {
	SampleRate int
	Channels   int
}

func (f Format) blockAlign() int { return f.Channels * bitsPerSample / 8 }

// Header returns the 44 byte header for dataSize bytes of PCM.
func Header(f Format, dataSize int) []byte {
	h := make([]byte, HeaderSize)
	le := binary.LittleEndian

	copy(h[0:4], "RIFF")
	le.PutUint32(h[4:8], uint32(36+dataSize))
	copy(h[8:12], "WAVE")

	copy(h[12:16], "fmt ")
	le.PutUint32(h[16:20], 16)
	le.PutUint16(h[20:22], formatPCM)
	le.PutUint16(h[22:24], uint16(f.Channels))
	le.PutUint32(h[24:28], uint32(f.SampleRate))
	le.PutUint32(h[28:32], uint32(f.SampleRate*f.blockAlign()))
	le.PutUint16(h[32:34], uint16(f.blockAlign()))
	le.PutUint16(h[34:36], bitsPerSample)

	copy(h[36:40], "data")
	le.PutUint32(h[40:44], uint32(dataSize))
	return h
}

// Encode writes pcm, interleaved 16-bit little-endian samples, to w as a
// WAV stream.
func Encode(w io.Writer, f Format, pcm []byte) error {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return fmt.Errorf("invalid format %d Hz, %d channels", f.SampleRate, f.Channels)
	}
	if _, err := w.Write(Header(f, len(pcm))); err != nil {
		return err
	}
	_, err := w.Write(pcm)
	return err
}

// WriteFile encodes pcm to a new file at path.
func WriteFile(path string, f Format, pcm []byte) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create %s: %w", path, err)
	}
	if err := Encode(out, f, pcm); err != nil {
		_ = out.Close()
		return fmt.Errorf("unable to write %s: %w", path, err)
	}
	return out.Close()
}

// ReadHeader parses a canonical header, returning the format and the
// size of the data chunk.
func ReadHeader(r io.Reader) (Format, int, error) {
	h := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, h); err != nil {
		return Format{}, 0, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}
	le := binary.LittleEndian
	if string(h[0:4]) != "RIFF" || string(h[8:12]) != "WAVE" || string(h[36:40]) != "data" {
		return Format{}, 0, ErrInvalidHeader
	}
	if le.Uint16(h[20:22]) != formatPCM || le.Uint16(h[34:36]) != bitsPerSample {
		return Format{}, 0, fmt.Errorf("%w: not 16-bit pcm", ErrInvalidHeader)
	}
	f := Format{
		SampleRate: int(le.Uint32(h[24:28])),
		Channels:   int(le.Uint16(h[22:24])),
	}
	return f, int(le.Uint32(h[40:44])), nil
}
