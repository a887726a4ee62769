package reader

import (
	"errors"
	"fmt"
)

// Kind classifies a collaborator failure.
type Kind int

const (
	SegmentationFailure Kind = iota + 1
	SynthesisFailure
	DecodeFailure
	LookupFailure
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case SegmentationFailure:
		return "segmentation failure"
	case SynthesisFailure:
		return "synthesis failure"
	case DecodeFailure:
		return "decode failure"
	case LookupFailure:
		return "lookup failure"
	default:
		return "unknown failure"
	}
}

// Error is a failure of one session operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// Session errors.
var (
	ErrBusy              = errors.New("text is already being processed")
	ErrSegmentOutOfRange = errors.New("segment index out of range")
	ErrWordOutOfRange    = errors.New("word index out of range")
	ErrNoActiveSegment   = errors.New("no active segment")
	ErrNoSegments        = errors.New("no segments returned")
	ErrEmptyAudio        = errors.New("no audio data received")
)
