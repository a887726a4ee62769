package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/dgnsrekt/lingo/internal/reader"
	te "github.com/muesli/termenv"
)

// lookupMarkdown formats a dictionary entry as a small markdown card.
func lookupMarkdown(info *reader.WordInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", info.Word)
	if info.Phonetic != "" {
		fmt.Fprintf(&b, "*%s*\n\n", info.Phonetic)
	}
	if info.Meaning != "" {
		fmt.Fprintf(&b, "%s\n\n", info.Meaning)
	}
	if info.Example.Source != "" {
		fmt.Fprintf(&b, "> %s\n>\n> %s\n", info.Example.Source, info.Example.Target)
	}
	return b.String()
}

// lookupText is the entry as plain text for the clipboard.
func lookupText(info *reader.WordInfo) string {
	lines := []string{info.Word}
	for _, s := range []string{info.Phonetic, info.Meaning, info.Example.Source, info.Example.Target} {
		if s != "" {
			lines = append(lines, s)
		}
	}
	return strings.Join(lines, "\n")
}

// glamourStyle resolves "auto" against the terminal background.
func glamourStyle(style string) string {
	if style == "" || style == styles.AutoStyle {
		if te.HasDarkBackground() {
			return styles.DarkStyle
		}
		return styles.LightStyle
	}
	return style
}

// RenderLookup renders a dictionary entry as a card with the given glamour
// style.
func RenderLookup(info *reader.WordInfo, style string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithWordWrap(max(10, width)),
	)
	if err != nil {
		return "", fmt.Errorf("error creating glamour renderer: %w", err)
	}
	out, err := r.Render(lookupMarkdown(info))
	if err != nil {
		return "", fmt.Errorf("error rendering lookup: %w", err)
	}
	return strings.Trim(out, "\n"), nil
}
