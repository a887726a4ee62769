package ui

import (
	"github.com/charmbracelet/lipgloss"
	te "github.com/muesli/termenv"
)

var (
	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}
	fuchsia   = lipgloss.Color("#EE6FF8")
	cream     = lipgloss.AdaptiveColor{Light: "#FFFDF5", Dark: "#FFFDF5"}
	gray      = lipgloss.AdaptiveColor{Light: "#909090", Dark: "#626262"}
	red       = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}

	statusBarNoteFg = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}
	statusBarBg     = lipgloss.AdaptiveColor{Light: "#E6E6E6", Dark: "#242424"}

	logoStyle = lipgloss.NewStyle().
			Foreground(cream).
			Background(fuchsia).
			Bold(true).
			Render

	statusBarNoteStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(statusBarBg).
				Render

	statusBarProgressStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "#949494", Dark: "#5A5A5A"}).
				Background(statusBarBg).
				Render

	statusBarMessageStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen).
				Render

	statusBarErrorStyle = lipgloss.NewStyle().
				Foreground(cream).
				Background(red).
				Render

	helpViewStyle = lipgloss.NewStyle().
			Foreground(statusBarNoteFg).
			Background(lipgloss.AdaptiveColor{Light: "#f2f2f2", Dark: "#1B1B1B"}).
			Render

	errorTitleStyle = lipgloss.NewStyle().
			Foreground(cream).
			Background(red).
			Padding(0, 1)

	subtleStyle = lipgloss.NewStyle().Foreground(gray)

	segmentTitleStyle = lipgloss.NewStyle().Foreground(gray).Bold(true)

	activeSegmentTitleStyle = lipgloss.NewStyle().Foreground(fuchsia).Bold(true)

	cursorStyle = lipgloss.NewStyle().Underline(true)

	sidebarStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(gray).
			Padding(0, 1)
)

// highlightStyle returns the style of the word being narrated. An empty
// color picks one for the terminal background.
func highlightStyle(color string) lipgloss.Style {
	s := lipgloss.NewStyle().Bold(true)
	if color != "" {
		return s.Background(lipgloss.Color(color)).Foreground(lipgloss.Color("0"))
	}
	if te.HasDarkBackground() {
		return s.Background(lipgloss.Color("226")).Foreground(lipgloss.Color("0"))
	}
	return s.Background(lipgloss.Color("25")).Foreground(lipgloss.Color("15"))
}

func logoView() string {
	return logoStyle(" Lingo ")
}
