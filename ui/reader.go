package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/lingo/internal/reader"
	"github.com/muesli/reflow/wordwrap"
)

// cursor is the word the reader is pointing at.
type cursor struct {
	seg  int
	word int
}

// clamp keeps c inside segs.
func (c cursor) clamp(segs []reader.Segment) cursor {
	if len(segs) == 0 {
		return cursor{}
	}
	c.seg = max(0, min(c.seg, len(segs)-1))
	n := len(segs[c.seg].Words)
	c.word = max(0, min(c.word, n-1))
	return c
}

func (c cursor) move(segs []reader.Segment, delta int) cursor {
	c = c.clamp(segs)
	if len(segs) == 0 {
		return c
	}
	c.word += delta
	return c.clamp(segs)
}

func (c cursor) segment(segs []reader.Segment, delta int) cursor {
	if len(segs) == 0 {
		return cursor{}
	}
	c.seg = (c.seg + delta + len(segs)) % len(segs)
	c.word = 0
	return c
}

// token returns the word under the cursor.
func (c cursor) token(segs []reader.Segment) (string, bool) {
	if c.seg < 0 || c.seg >= len(segs) {
		return "", false
	}
	words := segs[c.seg].Words
	if c.word < 0 || c.word >= len(words) {
		return "", false
	}
	return words[c.word], true
}

type wordStyles struct {
	highlight lipgloss.Style
	cursor    lipgloss.Style
}

// renderSegments lays out every segment wrapped to width. It also returns
// the line each segment starts on.
func renderSegments(st reader.State, cur cursor, width int, styles wordStyles) (string, []int) {
	var (
		b      strings.Builder
		starts = make([]int, len(st.Segments))
		line   int
	)

	for i, seg := range st.Segments {
		if i > 0 {
			b.WriteString("\n\n")
			line += 2
		}
		starts[i] = line

		title := fmt.Sprintf("%d. %s", i+1, seg.Title)
		if i == st.Active {
			b.WriteString(activeSegmentTitleStyle.Render(title))
		} else {
			b.WriteString(segmentTitleStyle.Render(title))
		}
		b.WriteString("\n")
		line++

		words := make([]string, len(seg.Words))
		for j, w := range seg.Words {
			here := i == cur.seg && j == cur.word
			spoken := i == st.Active && j == st.Word
			switch {
			case spoken && here:
				w = styles.highlight.Inherit(styles.cursor).Render(w)
			case spoken:
				w = styles.highlight.Render(w)
			case here:
				w = styles.cursor.Render(w)
			}
			words[j] = w
		}
		body := wordwrap.String(strings.Join(words, " "), max(1, width))
		b.WriteString(body)
		line += strings.Count(body, "\n")
	}
	return b.String(), starts
}
