package gemini

import (
	"context"

	"github.com/dgnsrekt/lingo/internal/reader"
)

var segmentsSchema = &schema{
	Type: "ARRAY",
	Items: &schema{
		Type: "OBJECT",
		Properties: map[string]*schema{
			"title":   str(),
			"content": str(),
		},
		Required: []string{"title", "content"},
	},
}

// Segment splits text into titled segments.
func (c *Client) Segment(ctx context.Context, text string) ([]reader.Draft, error) {
	var drafts []reader.Draft
	err := c.generateJSON(ctx, &generateRequest{
		Contents:          userText(text),
		SystemInstruction: &content{Parts: []part{{Text: segmentationInstruction}}},
		GenerationConfig: &generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   segmentsSchema,
		},
	}, &drafts)
	if err != nil {
		return nil, err
	}
	return drafts, nil
}
