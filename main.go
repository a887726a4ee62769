// Package main provides the entry point for the lingo CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/lingo/internal/document"
	"github.com/dgnsrekt/lingo/internal/settings"
	"github.com/dgnsrekt/lingo/ui"
	"github.com/joho/godotenv"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile   string
	showAllFiles bool
	mouse        bool
	mute         bool
	style        string
	prefs        settings.Settings

	rootCmd = &cobra.Command{
		Use:   "lingo [SOURCE|DIR]",
		Short: "Read a foreign language text aloud, word by word",
		Long: paragraph(
			fmt.Sprintf("\nRead a foreign language text %s, with every word highlighted as it is spoken and a dictionary one key away.", keyword("aloud")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveDefault
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

// source provides readable text.
type source struct {
	reader io.ReadCloser
	URL    string
}

// sourceFromArg parses an argument and creates a readable source for it.
func sourceFromArg(ctx context.Context, arg string) (*source, error) {
	// from stdin
	if arg == "-" {
		return &source{reader: os.Stdin}, nil
	}

	// HTTP(S) URLs:
	if u, err := url.ParseRequestURI(arg); err == nil && strings.Contains(arg, "://") {
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("%s is not a supported protocol", u.Scheme)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("unable to get url: %w", err)
		}
		// consumer of the source is responsible for closing the ReadCloser.
		resp, err := http.DefaultClient.Do(req) //nolint:bodyclose
		if err != nil {
			return nil, fmt.Errorf("unable to get url: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("HTTP status %d", resp.StatusCode)
		}
		return &source{resp.Body, u.String()}, nil
	}

	r, err := os.Open(arg)
	if err != nil {
		return nil, fmt.Errorf("unable to open file: %w", err)
	}
	u, err := filepath.Abs(arg)
	if err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("unable to get absolute path: %w", err)
	}
	return &source{r, u}, nil
}

// text reads the whole source, reducing markdown to prose.
func (s *source) text() (string, error) {
	defer s.reader.Close() //nolint:errcheck
	return document.Read(s.reader, document.IsMarkdown(s.URL))
}

func readSource(ctx context.Context, arg string) (string, error) {
	src, err := sourceFromArg(ctx, arg)
	if err != nil {
		return "", err
	}
	return src.text()
}

func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	// grab config values from Viper
	mouse = viper.GetBool("mouse")
	mute = viper.GetBool("mute")
	showAllFiles = viper.GetBool("all")

	if lvl, err := log.ParseLevel(viper.GetString("log_level")); err == nil {
		log.SetLevel(lvl)
	}

	v, err := settings.ParseVoice(viper.GetString("voice"))
	if err != nil {
		return fmt.Errorf("invalid voice %q: %w", viper.GetString("voice"), err)
	}
	prefs = settings.Settings{Voice: v, Speed: viper.GetFloat64("speed")}
	if err := prefs.Validate(); err != nil {
		return err
	}

	style = viper.GetString("style")
	if style != styles.AutoStyle && styles.DefaultStyles[style] == nil {
		if _, err := os.Stat(expandPath(style)); err != nil {
			return fmt.Errorf("specified style does not exist: %s", style)
		}
		style = expandPath(style)
	}

	// We want to use a special no-TTY style, when stdout is not a terminal
	// and there was no specific style passed by arg
	if !term.IsTerminal(int(os.Stdout.Fd())) && !cmd.Flags().Changed("style") {
		style = "notty"
	}
	return nil
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

func execute(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("lingo needs a terminal; use `lingo segment` for plain output")
	}

	// if stdin is a pipe then use stdin for input. note that you can also
	// explicitly use a - to read from stdin.
	if yes, err := stdinIsPipe(); err != nil {
		return err
	} else if yes && len(args) == 0 {
		args = []string{"-"}
	}

	if len(args) == 0 {
		return runTUI(cmd.Context(), "", "")
	}

	arg := args[0]
	if _, err := os.Stat(arg); err == nil {
		p, err := filepath.Abs(arg)
		if err != nil {
			return fmt.Errorf("unable to get absolute path: %w", err)
		}
		// a directory opens the import picker, a file is imported
		return runTUI(cmd.Context(), p, "")
	}

	content, err := readSource(cmd.Context(), arg)
	if err != nil {
		return err
	}
	return runTUI(cmd.Context(), "", content)
}

func runTUI(ctx context.Context, path string, content string) error {
	// Read environment to get debugging stuff
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}

	cfg.Path = path
	cfg.ShowAllFiles = showAllFiles
	cfg.EnableMouse = mouse
	if cfg.HighlightColor == "" {
		cfg.HighlightColor = viper.GetString("highlight_color")
	}
	if cfg.GlamourStyle == styles.AutoStyle {
		cfg.GlamourStyle = style
	}

	a, err := newApp(ctx, !mute)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	bridge := ui.NewBridge()
	sess := a.session(bridge.Publish)
	log.Info("Session started", "session", sess.ID(), "settings", prefs)

	// Run Bubble Tea program
	if _, err := ui.NewProgram(cfg, sess, bridge, content).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		_ = closer()
		os.Exit(1)
	}
	stop()
	_ = closer()
}

func init() {
	// .env in the working directory may carry the API key.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("Could not load .env", "err", err)
	}

	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().String("voice", string(settings.Kore), "narration voice (Kore, Puck, Charon, Fenrir, Zephyr)")
	rootCmd.PersistentFlags().Float64("speed", settings.DefaultSpeed, "narration speed (0.5 to 2.0)")
	rootCmd.PersistentFlags().StringP("style", "s", styles.AutoStyle, "style name or JSON path for the lookup card")
	rootCmd.PersistentFlags().String("log-level", "debug", "log level written to the log file")
	rootCmd.Flags().BoolVarP(&showAllFiles, "all", "a", false, "show system files and directories in the import picker")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse wheel")
	rootCmd.Flags().BoolVar(&mute, "mute", false, "highlight without playing audio")
	_ = rootCmd.Flags().MarkHidden("mouse")

	// Config bindings
	_ = viper.BindPFlag("voice", rootCmd.PersistentFlags().Lookup("voice"))
	_ = viper.BindPFlag("speed", rootCmd.PersistentFlags().Lookup("speed"))
	_ = viper.BindPFlag("style", rootCmd.PersistentFlags().Lookup("style"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("all", rootCmd.Flags().Lookup("all"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))
	_ = viper.BindPFlag("mute", rootCmd.Flags().Lookup("mute"))

	viper.SetDefault("style", styles.AutoStyle)
	viper.SetDefault("voice", string(settings.Kore))
	viper.SetDefault("speed", settings.DefaultSpeed)
	viper.SetDefault("all", false)
	viper.SetDefault("log_level", "debug")
	viper.SetDefault("api.requests_per_minute", 60)
	viper.SetDefault("api.timeout", "60s")
	viper.SetDefault("cache.max_size", 512)
	viper.SetDefault("cache.ttl_days", 7)
	viper.SetDefault("prefetch.lookahead", 1)
	viper.SetDefault("prefetch.queue_size", 8)
	viper.SetDefault("prefetch.workers", 1)

	rootCmd.AddCommand(configCmd, manCmd, segmentCmd, lookupCmd, speakCmd, cacheCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "lingo")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "lingo")}, dirs...)
	}

	if c := os.Getenv("LINGO_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("lingo")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("lingo")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "lingo.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
