package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/lingo/internal/audio"
	"github.com/dgnsrekt/lingo/internal/reader"
	"github.com/dgnsrekt/lingo/internal/wav"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var speakOut string

var speakCmd = &cobra.Command{
	Use:     "speak [TEXT|SOURCE]",
	Short:   "Narrate a text, or save the narration as WAV",
	Long:    paragraph(fmt.Sprintf("\n%s a short text with the configured voice and speed. Narration is cached, so speaking the same text again is free.", keyword("Narrate"))),
	Example: paragraph("lingo speak \"Hello world\"\nlingo speak story.txt --out story.wav --voice Puck"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := speakText(cmd, args)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), speakAudible(speakOut, mute))
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck

		data, err := a.narration.Synthesize(cmd.Context(), text, prefs)
		if err != nil {
			return &reader.Error{Kind: reader.SynthesisFailure, Op: "speak", Err: err}
		}
		buf, err := audio.Decode(data, audio.SampleRate, audio.Channels)
		if err != nil {
			return &reader.Error{Kind: reader.DecodeFailure, Op: "speak", Err: err}
		}

		if speakOut != "" {
			pcm := buf.PCM16()
			if err := wav.WriteFile(speakOut, wav.Format{SampleRate: buf.SampleRate(), Channels: buf.NumberOfChannels()}, pcm); err != nil {
				return err
			}
			fmt.Printf("Wrote %s (%s, %s)\n", speakOut, buf.Duration().Round(time.Millisecond), humanize.Bytes(uint64(wav.HeaderSize+len(pcm)))) //nolint:gosec
			return nil
		}

		done := make(chan struct{})
		if _, err := a.player.Start(buf, 0, func() { close(done) }); err != nil {
			return err
		}
		log.Debug("Speaking", "duration", buf.Duration(), "settings", prefs)
		select {
		case <-done:
		case <-cmd.Context().Done():
			a.player.Stop()
		}
		return nil
	},
}

// speakAudible reports whether speak needs the sound card: not when
// writing a file, and not when muted.
func speakAudible(out string, muted bool) bool {
	return out == "" && !muted
}

// speakText takes the text from an argument that is not a readable
// source, from a source, or from piped stdin.
func speakText(cmd *cobra.Command, args []string) (string, error) {
	var text string
	switch {
	case len(args) == 1:
		if _, err := os.Stat(args[0]); err == nil || args[0] == "-" || strings.Contains(args[0], "://") {
			t, err := readSource(cmd.Context(), args[0])
			if err != nil {
				return "", err
			}
			text = t
		} else {
			text = args[0]
		}
	default:
		if yes, err := stdinIsPipe(); err != nil || !yes {
			return "", errors.New("nothing to speak: pass text, a file, a URL or pipe text to stdin")
		}
		t, err := readSource(cmd.Context(), "-")
		if err != nil {
			return "", err
		}
		text = t
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("nothing to speak")
	}
	return text, nil
}

func init() {
	speakCmd.Flags().StringVarP(&speakOut, "out", "o", "", "write a WAV file instead of playing")
}
