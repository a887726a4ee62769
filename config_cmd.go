package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# narration voice: Kore, Puck, Charon, Fenrir or Zephyr
voice: "Kore"
# narration speed, 0.5 to 2.0
speed: 1.0
# language word meanings are given in
target_language: "Chinese (Simplified)"
# lookup card style name or JSON path (default "auto")
style: "auto"
# background of the word being spoken; empty picks one for the terminal
highlight_color: ""
# mouse wheel support
mouse: false
# highlight without playing audio
mute: false
# show all files, including hidden and ignored, in the import picker
all: false
# debug, info, warn or error
log_level: "info"

api:
  # or set GEMINI_API_KEY, in the environment or a .env file
  key: ""
  base_url: "https://generativelanguage.googleapis.com/v1beta"
  text_model: "gemini-3-flash-preview"
  speech_model: "gemini-2.5-flash-preview-tts"
  requests_per_minute: 60
  timeout: "60s"

# narration is kept on disk so a text is only synthesized once
cache:
  # default is the user cache directory
  dir: ""
  # megabytes
  max_size: 512
  ttl_days: 7

# narration of the segments after the one playing is fetched in the background
prefetch:
  # segments to fetch ahead; 0 turns prefetching off
  lookahead: 1
  queue_size: 8
  workers: 1
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the lingo config file",
	Long:    paragraph(fmt.Sprintf("\n%s the lingo config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("lingo config\nlingo config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Lingo", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
