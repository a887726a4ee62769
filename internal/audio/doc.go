// Package audio decodes raw narration audio and plays it through an
// output device. It owns the single live playback source and reports
// when that source drains on its own.
package audio
