package reader

import "github.com/dgnsrekt/lingo/internal/settings"

// State is a point-in-time copy of a session. Version increases with
// every change, so a consumer can drop snapshots older than one it has
// already seen.
type State struct {
	Version uint64

	Segments []Segment
	Active   int // index into Segments, or None
	Word     int // highlighted word of the active segment, or None

	Playing    bool
	Loading    bool // narration request in flight
	Processing bool // segmentation request in flight
	LookingUp  bool

	Lookup   *WordInfo
	Input    string
	Settings settings.Settings
}

// ActiveSegment returns the active segment, if any.
func (s State) ActiveSegment() (Segment, bool) {
	if s.Active < 0 || s.Active >= len(s.Segments) {
		return Segment{}, false
	}
	return s.Segments[s.Active], true
}

// Progress returns how far the highlight is through the active segment,
// in [0, 1].
func (s State) Progress() float64 {
	seg, ok := s.ActiveSegment()
	if !ok || s.Word < 0 || len(seg.Words) == 0 {
		return 0
	}
	return float64(s.Word+1) / float64(len(seg.Words))
}
