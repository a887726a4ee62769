package reader

import (
	"fmt"
	"strings"
	"time"

	"github.com/dgnsrekt/lingo/internal/audio"
)

// None marks an unset index.
const None = -1

// Draft is a segment as returned by a Segmenter.
type Draft struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Segment is one titled chunk of the user's text.
type Segment struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Words   []string `json:"words"`

	audio *audio.Buffer
}

// Audio returns the memoized narration, or nil.
func (s Segment) Audio() *audio.Buffer { return s.audio }

// HasAudio reports whether narration has been fetched.
func (s Segment) HasAudio() bool { return s.audio != nil }

// Duration returns the narration length, or zero before it is fetched.
func (s Segment) Duration() time.Duration {
	if s.audio == nil {
		return 0
	}
	return s.audio.Duration()
}

// NewSegments numbers drafts and splits their content into words.
func NewSegments(drafts []Draft) []*Segment {
	segs := make([]*Segment, len(drafts))
	for i, d := range drafts {
		segs[i] = &Segment{
			ID:      fmt.Sprintf("seg-%d", i),
			Title:   d.Title,
			Content: d.Content,
			Words:   Tokenize(d.Content),
		}
	}
	return segs
}

// Tokenize splits text on runs of whitespace. Punctuation stays attached
// to its word.
func Tokenize(text string) []string {
	return strings.Fields(text)
}

// CleanWord keeps only the ASCII letters of a token.
func CleanWord(token string) string {
	var b strings.Builder
	for _, r := range token {
		if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
