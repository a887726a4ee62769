package gemini

import (
	"fmt"
	"strings"
)

const segmentationInstruction = `You are an expert editor. Split the provided text into logical, coherent segments (chapters or paragraphs). Each segment should focus on one main idea. Provide the output as a JSON array of objects, where each object has a 'title' (short summary) and 'content' (the actual text).`

const lookupTemplate = `You are a professional linguist and translator. Provide the following for the English word "{word}" in the context of the sentence "{context}":
1. Phonetic transcription (IPA).
2. The most appropriate {language} meaning for this specific context.
3. A classic English example sentence and its {language} translation.
Return as JSON.`

func lookupPrompt(word, passage, language string) string {
	return strings.NewReplacer(
		"{word}", word,
		"{context}", passage,
		"{language}", language,
	).Replace(lookupTemplate)
}

func speechPrompt(text string, speed float64) string {
	return fmt.Sprintf("Say this at speed %g: %s", speed, text)
}

// stripFences removes a markdown code fence wrapped around JSON output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
