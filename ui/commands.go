package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/lingo/internal/document"
	"github.com/dgnsrekt/lingo/internal/reader"
	"github.com/dgnsrekt/lingo/internal/settings"
	"github.com/dgnsrekt/lingo/internal/wav"
	"github.com/dustin/go-humanize"
)

// Session is the part of reader.Session the interface drives.
type Session interface {
	State() reader.State
	SetInput(text string)
	ProcessText(ctx context.Context, raw string) error
	PlaySegment(ctx context.Context, index, startWord int) error
	TogglePlayback(ctx context.Context) error
	Stop()
	LookupWord(ctx context.Context, token string, segIndex int) error
	ClearLookup()
	Reset()
	Settings() settings.Settings
	SetSettings(st settings.Settings) error
}

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

type (
	processedMsg struct{ err error }
	playbackMsg  struct{ err error }
	lookedUpMsg  struct{ err error }

	documentLoadedMsg struct {
		doc    *document.Document
		err    error
		reload bool // the watched file changed on disk
	}
	fileChangedMsg struct{ path string }

	foundFileMsg          document.File
	fileSearchFinishedMsg struct{}
	initFileSearchMsg     struct{ ch <-chan File }

	exportedMsg struct {
		path string
		size int64
		err  error
	}
	statusMessageTimeoutMsg struct{}
)

// File is an import candidate.
type File = document.File

func processTextCmd(ctx context.Context, s Session, text string) tea.Cmd {
	return func() tea.Msg {
		return processedMsg{s.ProcessText(ctx, text)}
	}
}

func playSegmentCmd(ctx context.Context, s Session, index, startWord int) tea.Cmd {
	return func() tea.Msg {
		return playbackMsg{s.PlaySegment(ctx, index, startWord)}
	}
}

func togglePlaybackCmd(ctx context.Context, s Session) tea.Cmd {
	return func() tea.Msg {
		return playbackMsg{s.TogglePlayback(ctx)}
	}
}

func lookupWordCmd(ctx context.Context, s Session, token string, segIndex int) tea.Cmd {
	return func() tea.Msg {
		return lookedUpMsg{s.LookupWord(ctx, token, segIndex)}
	}
}

func loadDocumentCmd(path string) tea.Cmd {
	return readDocumentCmd(path, false)
}

func reloadDocumentCmd(path string) tea.Cmd {
	return readDocumentCmd(path, true)
}

func readDocumentCmd(path string, reload bool) tea.Cmd {
	return func() tea.Msg {
		doc, err := document.Load(path)
		if err != nil {
			log.Error("unable to load document", "path", path, "error", err)
		}
		return documentLoadedMsg{doc: doc, err: err, reload: reload}
	}
}

func watchDocumentCmd(ctx context.Context, w *document.Watcher) tea.Cmd {
	return func() tea.Msg {
		if !w.Wait(ctx) {
			return nil
		}
		return fileChangedMsg{path: w.Path()}
	}
}

func findFilesCmd(dir string, all bool) tea.Cmd {
	return func() tea.Msg {
		if dir == "" {
			var err error
			if dir, err = os.Getwd(); err != nil {
				return errMsg{err}
			}
		}
		log.Debug("finding importable files", "dir", dir)
		ch, err := document.Find(dir, all)
		if err != nil {
			log.Error("error finding local files", "error", err)
			return errMsg{err}
		}
		return initFileSearchMsg{ch: ch}
	}
}

func findNextFileCmd(ch <-chan File) tea.Cmd {
	return func() tea.Msg {
		f, ok := <-ch
		if !ok {
			log.Debug("file search finished")
			return fileSearchFinishedMsg{}
		}
		return foundFileMsg(f)
	}
}

var errNoNarration = errors.New("segment has not been narrated yet")

func exportCmd(dir string, seg reader.Segment) tea.Cmd {
	return func() tea.Msg {
		buf := seg.Audio()
		if buf == nil {
			return exportedMsg{err: errNoNarration}
		}
		path := filepath.Join(dir, seg.ID+".wav")
		f := wav.Format{SampleRate: buf.SampleRate(), Channels: buf.NumberOfChannels()}
		pcm := buf.PCM16()
		if err := wav.WriteFile(path, f, pcm); err != nil {
			log.Error("export failed", "path", path, "error", err)
			return exportedMsg{path: path, err: err}
		}
		log.Info("exported narration", "path", path, "size", humanize.Bytes(uint64(len(pcm)))) //nolint:gosec
		return exportedMsg{path: path, size: int64(wav.HeaderSize + len(pcm))}
	}
}

func waitForStatusMessageTimeout(t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusMessageTimeoutMsg{}
	}
}

func describeError(err error) string {
	var rerr *reader.Error
	if errors.As(err, &rerr) {
		return fmt.Sprintf("%s: %v", rerr.Kind, rerr.Err)
	}
	return err.Error()
}
