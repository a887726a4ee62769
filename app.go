package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/lingo/internal/audio"
	"github.com/dgnsrekt/lingo/internal/cache"
	"github.com/dgnsrekt/lingo/internal/gemini"
	"github.com/dgnsrekt/lingo/internal/highlight"
	"github.com/dgnsrekt/lingo/internal/queue"
	"github.com/dgnsrekt/lingo/internal/reader"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
)

// app holds the collaborators a reading session is built from.
type app struct {
	client    *gemini.Client
	store     *cache.Store
	narration *cache.Narration
	prefetch  *queue.Queue
	player    *audio.Controller
}

// newApp connects to the model API and opens the narration cache. Audio
// goes to the sound card when audible is set, and nowhere otherwise.
func newApp(_ context.Context, audible bool) (*app, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	store, err := openCache()
	if err != nil {
		return nil, err
	}
	player, err := newPlayer(audible)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	narration := cache.NewNarration(client, store)
	return &app{
		client:    client,
		store:     store,
		narration: narration,
		prefetch: queue.New(narration, queue.Config{
			MaxSize: viper.GetInt("prefetch.queue_size"),
			Workers: viper.GetInt("prefetch.workers"),
		}),
		player: player,
	}, nil
}

func (a *app) session(onChange func(reader.State)) *reader.Session {
	return reader.NewSession(reader.Config{
		Segmenter:   a.client,
		Synthesizer: a.prefetch,
		Dictionary:  a.client,
		Player:      a.player,
		Highlighter: highlight.New(clock.New()),
		Settings:    prefs,
		Prefetcher:  a.prefetch,
		Lookahead:   viper.GetInt("prefetch.lookahead"),
		OnChange:    onChange,
	})
}

// Close stops playback, abandons prefetching and flushes the cache index.
func (a *app) Close() error {
	return errors.Join(a.player.Close(), a.prefetch.Close(), a.store.Close())
}

func apiKey() string {
	if k := viper.GetString("api.key"); k != "" {
		return k
	}
	if k := os.Getenv("GEMINI_API_KEY"); k != "" {
		return k
	}
	return os.Getenv("API_KEY")
}

func newClient() (*gemini.Client, error) {
	c, err := gemini.NewClient(gemini.Config{
		APIKey:            apiKey(),
		BaseURL:           viper.GetString("api.base_url"),
		TextModel:         viper.GetString("api.text_model"),
		SpeechModel:       viper.GetString("api.speech_model"),
		TargetLanguage:    viper.GetString("target_language"),
		RequestsPerMinute: viper.GetInt("api.requests_per_minute"),
		Timeout:           viper.GetDuration("api.timeout"),
	})
	if errors.Is(err, gemini.ErrNoAPIKey) {
		return nil, fmt.Errorf("%w: set GEMINI_API_KEY or api.key in %s", err, configFile)
	}
	return c, err
}

func cacheDir() (string, error) {
	if dir := viper.GetString("cache.dir"); dir != "" {
		return expandPath(dir), nil
	}
	dir, err := gap.NewScope(gap.User, "lingo").CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "narration"), nil
}

func openCache() (*cache.Store, error) {
	dir, err := cacheDir()
	if err != nil {
		return nil, fmt.Errorf("unable to find cache directory: %w", err)
	}
	cfg := cache.DefaultConfig(dir)
	if mb := viper.GetInt64("cache.max_size"); mb > 0 {
		cfg.DiskCapacity = mb * 1024 * 1024
	}
	if days := viper.GetInt("cache.ttl_days"); days > 0 {
		cfg.TTL = time.Duration(days) * 24 * time.Hour
	}
	log.Debug("Opening narration cache", "dir", dir, "capacity", cfg.DiskCapacity)
	return cache.Open(cfg)
}

func newPlayer(audible bool) (*audio.Controller, error) {
	if !audible {
		return audio.NewController(audio.NewNullOutput(clock.New(), audio.SampleRate, audio.Channels)), nil
	}
	out, err := audio.NewOtoOutput(audio.SampleRate, audio.Channels)
	if err != nil {
		return nil, fmt.Errorf("unable to open audio output: %w", err)
	}
	return audio.NewController(out), nil
}

// expandPath replaces a leading ~ and environment variables.
func expandPath(path string) string {
	home, err := homedir.Expand(path)
	if err == nil {
		return os.ExpandEnv(home)
	}
	return os.ExpandEnv(path)
}
