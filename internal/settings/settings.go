// Package settings holds the narration voice and speed.
package settings

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/sahilm/fuzzy"
)

// Voice is a prebuilt speech voice.
type Voice string

const (
	Kore   Voice = "Kore"
	Puck   Voice = "Puck"
	Charon Voice = "Charon"
	Fenrir Voice = "Fenrir"
	Zephyr Voice = "Zephyr"
)

// Voices lists the available voices in display order.
var Voices = []Voice{Kore, Puck, Charon, Fenrir, Zephyr}

var voiceLabels = map[Voice]string{
	Kore:   "Cheerful & Clear",
	Puck:   "Soft & Gentle",
	Charon: "Deep & Authoritative",
	Fenrir: "Expressive & Bold",
	Zephyr: "Fast & Informative",
}

// Label returns the voice's description.
func (v Voice) Label() string {
	return voiceLabels[v]
}

// Valid reports whether v is one of Voices.
func (v Voice) Valid() bool {
	_, ok := voiceLabels[v]
	return ok
}

// Next returns the voice after v, wrapping around.
func (v Voice) Next() Voice {
	for i, c := range Voices {
		if c == v {
			return Voices[(i+1)%len(Voices)]
		}
	}
	return Voices[0]
}

// Speed limits.
const (
	MinSpeed     = 0.5
	MaxSpeed     = 2.0
	SpeedStep    = 0.1
	DefaultSpeed = 1.0
)

var (
	// ErrSpeedOutOfRange is returned when speed is outside [MinSpeed, MaxSpeed].
	ErrSpeedOutOfRange = fmt.Errorf("speed must be between %.1f and %.1f", MinSpeed, MaxSpeed)

	// ErrUnknownVoice is returned when a voice name matches nothing.
	ErrUnknownVoice = errors.New("unknown voice")
)

// Settings are read when narration is requested.
type Settings struct {
	Voice Voice
	Speed float64
}

// Default returns Kore at normal speed.
func Default() Settings {
	return Settings{Voice: Kore, Speed: DefaultSpeed}
}

// Validate checks the voice and speed.
func (s Settings) Validate() error {
	if !s.Voice.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownVoice, s.Voice)
	}
	if s.Speed < MinSpeed || s.Speed > MaxSpeed {
		return ErrSpeedOutOfRange
	}
	return nil
}

// Faster returns s with the speed raised one step, capped at MaxSpeed.
func (s Settings) Faster() Settings {
	s.Speed = roundSpeed(math.Min(MaxSpeed, s.Speed+SpeedStep))
	return s
}

// Slower returns s with the speed lowered one step, floored at MinSpeed.
func (s Settings) Slower() Settings {
	s.Speed = roundSpeed(math.Max(MinSpeed, s.Speed-SpeedStep))
	return s
}

// String renders the settings for status lines.
func (s Settings) String() string {
	return fmt.Sprintf("%s %.1fx", s.Voice, s.Speed)
}

func roundSpeed(v float64) float64 {
	return math.Round(v*10) / 10
}

// ParseVoice resolves a voice name. Exact (case-insensitive) names win;
// otherwise the best fuzzy match against names and labels is used.
func ParseVoice(name string) (Voice, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrUnknownVoice
	}
	for _, v := range Voices {
		if strings.EqualFold(string(v), name) {
			return v, nil
		}
	}

	targets := make([]string, 0, len(Voices))
	for _, v := range Voices {
		targets = append(targets, string(v)+" "+v.Label())
	}
	matches := fuzzy.Find(name, targets)
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownVoice, name)
	}
	return Voices[matches[0].Index], nil
}
