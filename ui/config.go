package ui

// Config contains TUI-specific configuration.
type Config struct {
	ShowAllFiles bool
	EnableMouse  bool
	HomeDir      string `env:"HOME"`
	GlamourStyle string `env:"GLAMOUR_STYLE" envDefault:"auto"`

	// HighlightColor is the background of the word being narrated. Empty
	// picks one that suits the terminal background.
	HighlightColor string `env:"LINGO_HIGHLIGHT_COLOR"`

	// Path is a file to import at start, or a directory to offer in the
	// import picker.
	Path string

	// ExportDir receives narration exported as WAV.
	ExportDir string `env:"LINGO_EXPORT_DIR"`

	// Watch reloads an imported file into the input when it changes on
	// disk.
	Watch bool `env:"LINGO_WATCH" envDefault:"true"`
}
