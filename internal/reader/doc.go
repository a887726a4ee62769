// Package reader owns a reading session: the segmented text, which segment
// is narrating, which word is highlighted, and the current word lookup.
// Remote work is delegated to a Segmenter, a Synthesizer and a Dictionary.
package reader
