package gemini

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/dgnsrekt/lingo/internal/settings"
)

// Synthesize narrates text. The result is raw 24 kHz mono 16-bit
// little-endian PCM.
func (c *Client) Synthesize(ctx context.Context, text string, s settings.Settings) ([]byte, error) {
	resp, err := c.generate(ctx, c.speechModel, &generateRequest{
		Contents: userText(speechPrompt(text, s.Speed)),
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &speechConfig{
				VoiceConfig: voiceConfig{
					PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: string(s.Voice)},
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	p := resp.firstPart()
	if p == nil || p.InlineData == nil || p.InlineData.Data == "" {
		return nil, ErrNoAudio
	}
	pcm, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid audio payload: %w", err)
	}
	return pcm, nil
}
