package ui

import (
	"fmt"
	"strings"

	"github.com/dgnsrekt/lingo/internal/reader"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
)

const ellipsis = "…"

// playbackNote describes what the session is doing.
func playbackNote(st reader.State) string {
	seg, ok := st.ActiveSegment()
	switch {
	case st.Processing:
		return "Segmenting…"
	case len(st.Segments) == 0:
		return "No text loaded"
	case st.Loading:
		return fmt.Sprintf("Loading narration for %q…", seg.Title)
	case st.Playing && ok:
		return fmt.Sprintf("▶ %s  word %d/%d", seg.Title, st.Word+1, len(seg.Words))
	case ok:
		return "■ " + seg.Title
	default:
		return fmt.Sprintf("%d segments", len(st.Segments))
	}
}

func (m model) statusBarView(b *strings.Builder) {
	logo := logoView()

	st := m.state
	percent := statusBarProgressStyle(fmt.Sprintf(" %3.f%% ", st.Progress()*100))
	voice := statusBarProgressStyle(fmt.Sprintf(" %s ", st.Settings))

	note := playbackNote(st)
	style := statusBarNoteStyle
	if m.statusMessage != "" {
		note = m.statusMessage
		style = statusBarMessageStyle
		if m.statusIsError {
			style = statusBarErrorStyle
		}
	}
	note = truncate.StringWithTail(" "+note+" ", uint(max(0, //nolint:gosec
		m.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(voice)-
			ansi.PrintableRuneWidth(percent),
	)), ellipsis)
	note = style(note)

	padding := max(0,
		m.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(note)-
			ansi.PrintableRuneWidth(voice)-
			ansi.PrintableRuneWidth(percent),
	)
	emptySpace := style(strings.Repeat(" ", padding))

	fmt.Fprintf(b, "%s%s%s%s%s", logo, note, emptySpace, voice, percent)
}
