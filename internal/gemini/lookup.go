package gemini

import (
	"context"

	"github.com/dgnsrekt/lingo/internal/reader"
)

var lookupSchema = &schema{
	Type: "OBJECT",
	Properties: map[string]*schema{
		"word":          str(),
		"pronunciation": str(),
		"meaning":       str(),
		"exampleSentence": {
			Type: "OBJECT",
			Properties: map[string]*schema{
				"source": str(),
				"target": str(),
			},
			Required: []string{"source", "target"},
		},
	},
	Required: []string{"word", "pronunciation", "meaning", "exampleSentence"},
}

type lookupResult struct {
	Word          string `json:"word"`
	Pronunciation string `json:"pronunciation"`
	Meaning       string `json:"meaning"`
	Example       struct {
		Source string `json:"source"`
		Target string `json:"target"`
	} `json:"exampleSentence"`
}

// Lookup explains word as used in passage.
func (c *Client) Lookup(ctx context.Context, word, passage string) (*reader.WordInfo, error) {
	var res lookupResult
	err := c.generateJSON(ctx, &generateRequest{
		Contents: userText(lookupPrompt(word, passage, c.language)),
		GenerationConfig: &generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   lookupSchema,
		},
	}, &res)
	if err != nil {
		return nil, err
	}
	if res.Word == "" {
		res.Word = word
	}
	return &reader.WordInfo{
		Word:     res.Word,
		Phonetic: res.Pronunciation,
		Meaning:  res.Meaning,
		Example:  reader.Example{Source: res.Example.Source, Target: res.Example.Target},
	}, nil
}
