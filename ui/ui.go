// Package ui provides the terminal interface of lingo.
package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/lingo/internal/document"
	"github.com/dgnsrekt/lingo/internal/reader"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/termenv"
)

const (
	statusMessageTimeout = time.Second * 3
	statusBarHeight      = 1
	minSidebarWidth      = 28
)

// NewProgram returns a new Tea program driving s. Snapshots published to
// b are rendered as they arrive. content, if set, prefills the input.
func NewProgram(cfg Config, s Session, b *Bridge, content string) *tea.Program {
	log.Debug("Starting lingo", "path", cfg.Path, "mouse", cfg.EnableMouse)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, s, b, content), opts...)
}

// view is the screen being shown.
type view int

const (
	viewInput view = iota
	viewPicker
	viewReader
)

func (v view) String() string {
	return map[view]string{
		viewInput:  "editing input",
		viewPicker: "picking a file",
		viewReader: "reading",
	}[v]
}

type model struct {
	cfg     Config
	ctx     context.Context
	cancel  context.CancelFunc
	session Session
	bridge  *Bridge

	view          view
	width, height int
	fatalErr      error
	alert         error
	showHelp      bool

	state reader.State
	cur   cursor

	input    textarea.Model
	picker   pickerModel
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model

	words        wordStyles
	glamourStyle string
	lookupFor    *reader.WordInfo
	lookupView   string

	statusMessage string
	statusIsError bool
	statusTimer   *time.Timer

	openPath   string
	loadedText string // text of the last import, as put in the input
	watcher    *document.Watcher
	fileSearch <-chan File
}

func newModel(cfg Config, s Session, b *Bridge, content string) model {
	ctx, cancel := context.WithCancel(context.Background())

	ta := textarea.New()
	ta.Placeholder = "Paste the text you want to study, or press ctrl+o to import a file."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetValue(content)
	ta.Focus()

	m := model{
		cfg:          cfg,
		ctx:          ctx,
		cancel:       cancel,
		session:      s,
		bridge:       b,
		view:         viewInput,
		state:        s.State(),
		input:        ta,
		picker:       newPickerModel(),
		viewport:     viewport.New(0, 0),
		spinner:      spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:         help.New(),
		words:        wordStyles{highlight: highlightStyle(cfg.HighlightColor), cursor: cursorStyle},
		glamourStyle: glamourStyle(cfg.GlamourStyle),
	}
	if content != "" {
		s.SetInput(content)
	}

	if cfg.Path == "" {
		return m
	}
	info, err := os.Stat(cfg.Path)
	if err != nil {
		log.Error("unable to stat file", "file", cfg.Path, "error", err)
		m.fatalErr = err
		return m
	}
	if info.IsDir() {
		m.view = viewPicker
		m.picker.reset()
	} else {
		m.openPath = cfg.Path
	}
	return m
}

func (m model) Init() tea.Cmd {
	log.Debug("Init() called", "view", m.view)
	cmds := []tea.Cmd{m.spinner.Tick, textarea.Blink}
	if m.bridge != nil {
		cmds = append(cmds, waitForState(m.ctx, m.bridge))
	}

	switch {
	case m.view == viewPicker:
		cmds = append(cmds, findFilesCmd(m.cfg.Path, m.cfg.ShowAllFiles))
	case m.openPath != "":
		cmds = append(cmds, loadDocumentCmd(m.openPath))
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// If there's been an error, any key exits
	if m.fatalErr != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			return m.quit()
		}
	}

	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
		if m.alert != nil {
			m.alert = nil
			return m, nil
		}
		switch m.view {
		case viewInput:
			return m.updateInput(msg)
		case viewPicker:
			return m.updatePicker(msg)
		case viewReader:
			return m.updateReader(msg)
		}

	case tea.MouseMsg:
		if m.view == viewReader {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	// Window size is received when starting up and on every resize
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.lookupFor = nil
		m.refresh()

	case stateMsg:
		if st := reader.State(msg); st.Version >= m.state.Version {
			m.state = st
			m.refresh()
		}
		return m, waitForState(m.ctx, m.bridge)

	case processedMsg:
		m.sync()
		switch {
		case errors.Is(msg.err, reader.ErrBusy):
			cmds = append(cmds, m.showStatusMessage("Still segmenting the previous text", true))
		case msg.err != nil:
			m.alert = msg.err
		case len(m.state.Segments) > 0:
			m.view = viewReader
			m.cur = cursor{}
			m.input.Blur()
			m.refresh()
		}

	case playbackMsg:
		m.sync()
		if msg.err != nil {
			cmds = append(cmds, m.showStatusMessage(describeError(msg.err), true))
		}

	case lookedUpMsg:
		m.sync()
		if msg.err != nil {
			cmds = append(cmds, m.showStatusMessage(describeError(msg.err), true))
		}

	case documentLoadedMsg:
		if msg.err != nil {
			cmds = append(cmds, m.showStatusMessage(msg.err.Error(), true))
			break
		}
		if msg.reload {
			cmds = append(cmds, m.reloadDocument(msg.doc))
			break
		}
		cmds = append(cmds, m.openDocument(msg.doc))

	case fileChangedMsg:
		log.Info("reloading changed file", "path", msg.path)
		cmds = append(cmds, reloadDocumentCmd(msg.path), watchDocumentCmd(m.ctx, m.watcher))

	case initFileSearchMsg:
		m.fileSearch = msg.ch
		cmds = append(cmds, findNextFileCmd(m.fileSearch))

	case foundFileMsg:
		m.picker.add(File(msg))
		cmds = append(cmds, findNextFileCmd(m.fileSearch))

	case fileSearchFinishedMsg:
		m.picker.loading = false

	case exportedMsg:
		if msg.err != nil {
			cmds = append(cmds, m.showStatusMessage("Export failed: "+msg.err.Error(), true))
		} else {
			note := fmt.Sprintf("Exported %s (%s)", filepath.Base(msg.path), humanize.Bytes(uint64(msg.size))) //nolint:gosec
			cmds = append(cmds, m.showStatusMessage(note, false))
		}

	case errMsg:
		cmds = append(cmds, m.showStatusMessage(msg.Error(), true))

	case statusMessageTimeoutMsg:
		m.statusMessage = ""
		m.statusIsError = false

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	if m.view == viewInput {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, inputKeys.Process):
		text := m.input.Value()
		if strings.TrimSpace(text) == "" {
			cmd := m.showStatusMessage("Nothing to process", true)
			return m, cmd
		}
		m.session.SetInput(text)
		m.sync()
		return m, processTextCmd(m.ctx, m.session, text)

	case key.Matches(msg, inputKeys.Import):
		m.view = viewPicker
		m.picker.reset()
		return m, findFilesCmd(m.pickerDir(), m.cfg.ShowAllFiles)

	case key.Matches(msg, inputKeys.Reader):
		if len(m.state.Segments) > 0 {
			m.view = viewReader
			m.input.Blur()
			m.refresh()
		}
		return m, nil
	}

	var cmd tea.Cmd
	before := m.input.Value()
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		m.session.SetInput(after)
	}
	return m, cmd
}

func (m model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.view = viewInput
		m.picker.filter.Blur()
		cmd := m.input.Focus()
		return m, cmd
	case "enter":
		f, ok := m.picker.current()
		if !ok {
			return m, nil
		}
		m.picker.filter.Blur()
		return m, loadDocumentCmd(f.Path)
	}

	var cmd tea.Cmd
	m.picker, cmd = m.picker.update(msg)
	return m, cmd
}

func (m model) updateReader(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	segs := m.state.Segments
	if key.Matches(msg, readerKeys.Quit) {
		return m.quit()
	}
	if len(segs) == 0 {
		m.view = viewInput
		cmd := m.input.Focus()
		return m, cmd
	}
	m.cur = m.cur.clamp(segs)

	switch {
	case key.Matches(msg, readerKeys.Prev):
		m.cur = m.cur.move(segs, -1)
	case key.Matches(msg, readerKeys.Next):
		m.cur = m.cur.move(segs, 1)
	case key.Matches(msg, readerKeys.First):
		m.cur = m.cur.move(segs, -len(segs[m.cur.seg].Words))
	case key.Matches(msg, readerKeys.Last):
		m.cur = m.cur.move(segs, len(segs[m.cur.seg].Words))
	case key.Matches(msg, readerKeys.NextSegment):
		m.cur = m.cur.segment(segs, 1)
	case key.Matches(msg, readerKeys.PrevSegment):
		m.cur = m.cur.segment(segs, -1)

	case key.Matches(msg, readerKeys.Up, readerKeys.Down):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case key.Matches(msg, readerKeys.Toggle):
		if m.cur.seg != m.state.Active {
			return m, playSegmentCmd(m.ctx, m.session, m.cur.seg, 0)
		}
		return m, togglePlaybackCmd(m.ctx, m.session)

	case key.Matches(msg, readerKeys.PlayFrom):
		return m, playSegmentCmd(m.ctx, m.session, m.cur.seg, m.cur.word)

	case key.Matches(msg, readerKeys.Stop):
		m.session.Stop()
		m.sync()

	case key.Matches(msg, readerKeys.Lookup):
		token, ok := m.cur.token(segs)
		if !ok || reader.CleanWord(token) == "" {
			return m, nil
		}
		return m, lookupWordCmd(m.ctx, m.session, token, m.cur.seg)

	case key.Matches(msg, readerKeys.ClearLookup):
		m.session.ClearLookup()
		m.sync()

	case key.Matches(msg, readerKeys.Copy):
		if m.state.Lookup == nil {
			return m, nil
		}
		text := lookupText(m.state.Lookup)
		// Copy using OSC 52
		termenv.Copy(text)
		// Copy using native system clipboard
		_ = clipboard.WriteAll(text)
		cmd := m.showStatusMessage("Copied "+m.state.Lookup.Word, false)
		return m, cmd

	case key.Matches(msg, readerKeys.Export):
		return m, exportCmd(m.exportDir(), segs[m.cur.seg])

	case key.Matches(msg, readerKeys.Voice, readerKeys.Faster, readerKeys.Slower):
		st := m.session.Settings()
		switch {
		case key.Matches(msg, readerKeys.Voice):
			st.Voice = st.Voice.Next()
		case key.Matches(msg, readerKeys.Faster):
			st = st.Faster()
		default:
			st = st.Slower()
		}
		if err := m.session.SetSettings(st); err != nil {
			cmd := m.showStatusMessage(err.Error(), true)
			return m, cmd
		}
		m.sync()
		cmd := m.showStatusMessage(fmt.Sprintf("%s (%s) at %.1fx", st.Voice, st.Voice.Label(), st.Speed), false)
		return m, cmd

	case key.Matches(msg, readerKeys.Edit):
		m.view = viewInput
		cmd := m.input.Focus()
		return m, cmd

	case key.Matches(msg, readerKeys.Reset):
		m.session.Reset()
		m.sync()
		m.cur = cursor{}
		m.input.SetValue("")
		m.view = viewInput
		cmd := m.input.Focus()
		return m, cmd

	case key.Matches(msg, readerKeys.Help):
		m.showHelp = !m.showHelp
		m.layout()
	}

	m.refresh()
	return m, nil
}

func (m model) quit() (tea.Model, tea.Cmd) {
	m.session.Stop()
	m.cancel()
	if m.watcher != nil {
		_ = m.watcher.Close()
	}
	return m, tea.Quit
}

// sync pulls a fresh snapshot so the view does not wait on the bridge
// after a synchronous call.
func (m *model) sync() {
	if st := m.session.State(); st.Version >= m.state.Version {
		m.state = st
		m.refresh()
	}
}

// reloadDocument replaces the input with a changed file unless the input
// was edited since the file was imported.
func (m *model) reloadDocument(doc *document.Document) tea.Cmd {
	name := filepath.Base(doc.Path)
	if m.input.Value() != m.loadedText {
		log.Info("keeping edited input over changed file", "path", doc.Path)
		return m.showStatusMessage(name+" changed on disk; keeping your edits", true)
	}
	if doc.Text == m.loadedText {
		return nil
	}
	m.loadedText = doc.Text
	m.input.SetValue(doc.Text)
	m.session.SetInput(doc.Text)
	return m.showStatusMessage("Reloaded "+name, false)
}

func (m *model) openDocument(doc *document.Document) tea.Cmd {
	m.loadedText = doc.Text
	m.input.SetValue(doc.Text)
	m.session.SetInput(doc.Text)
	m.view = viewInput
	cmds := []tea.Cmd{
		m.input.Focus(),
		m.showStatusMessage("Imported "+filepath.Base(doc.Path), false),
	}

	if !m.cfg.Watch || (m.watcher != nil && m.watcher.Path() == doc.Path) {
		return tea.Batch(cmds...)
	}
	if m.watcher != nil {
		_ = m.watcher.Close()
		m.watcher = nil
	}
	w, err := document.Watch(doc.Path)
	if err != nil {
		log.Error("unable to watch file", "path", doc.Path, "error", err)
		return tea.Batch(cmds...)
	}
	m.watcher = w
	return tea.Batch(append(cmds, watchDocumentCmd(m.ctx, w))...)
}

func (m model) pickerDir() string {
	if m.cfg.Path != "" {
		if info, err := os.Stat(m.cfg.Path); err == nil && info.IsDir() {
			return m.cfg.Path
		}
		return filepath.Dir(m.cfg.Path)
	}
	return ""
}

func (m model) exportDir() string {
	if m.cfg.ExportDir != "" {
		return m.cfg.ExportDir
	}
	return "."
}

func (m model) sidebarWidth() int {
	if m.width < minSidebarWidth*2 {
		return 0
	}
	return max(minSidebarWidth, m.width/3)
}

func (m *model) layout() {
	helpHeight := 1
	if m.showHelp {
		m.help.ShowAll = true
		helpHeight = strings.Count(m.help.View(readerKeys), "\n") + 1
	} else {
		m.help.ShowAll = false
	}
	m.help.Width = m.width

	m.viewport.Width = max(1, m.width-m.sidebarWidth())
	m.viewport.Height = max(1, m.height-statusBarHeight-helpHeight)

	m.input.SetWidth(max(1, m.width))
	m.input.SetHeight(max(1, m.height-4))
}

// refresh re-renders the reader from the current snapshot.
func (m *model) refresh() {
	m.cur = m.cur.clamp(m.state.Segments)

	if m.state.Lookup != m.lookupFor {
		m.lookupFor = m.state.Lookup
		m.lookupView = ""
		if m.state.Lookup != nil {
			card, err := RenderLookup(m.state.Lookup, m.glamourStyle, m.sidebarWidth()-4)
			if err != nil {
				log.Error("unable to render lookup", "error", err)
				card = lookupText(m.state.Lookup)
			}
			m.lookupView = card
		}
	}

	if len(m.state.Segments) == 0 {
		m.viewport.SetContent("")
		return
	}
	content, starts := renderSegments(m.state, m.cur, m.viewport.Width, m.words)
	m.viewport.SetContent(content)

	line := starts[m.cur.seg]
	if line < m.viewport.YOffset || line >= m.viewport.YOffset+m.viewport.Height {
		m.viewport.SetYOffset(line)
	}
}

func (m *model) showStatusMessage(text string, isError bool) tea.Cmd {
	m.statusMessage = text
	m.statusIsError = isError
	if m.statusTimer != nil {
		m.statusTimer.Stop()
	}
	m.statusTimer = time.NewTimer(statusMessageTimeout)
	return waitForStatusMessageTimeout(m.statusTimer)
}

func (m model) View() string {
	if m.fatalErr != nil {
		return errorView(m.fatalErr, true)
	}
	if m.alert != nil {
		return errorView(m.alert, false)
	}

	switch m.view {
	case viewPicker:
		return "\n" + indent(m.picker.view(m.width-2, m.height-1), 1)
	case viewReader:
		return m.readerView()
	default:
		return m.inputView()
	}
}

func (m model) inputView() string {
	var b strings.Builder
	title := logoView() + " " + subtleStyle.Render("Paste or import text")
	if m.state.Processing {
		title += "  " + m.spinner.View() + " Segmenting…"
	}
	b.WriteString(title + "\n\n")
	b.WriteString(m.input.View() + "\n")
	if m.statusMessage != "" {
		style := statusBarMessageStyle
		if m.statusIsError {
			style = statusBarErrorStyle
		}
		b.WriteString(style(" "+m.statusMessage+" ") + "\n")
	} else {
		b.WriteString(m.help.ShortHelpView(inputKeys.ShortHelp()) + "\n")
	}
	return b.String()
}

func (m model) readerView() string {
	body := m.viewport.View()
	if w := m.sidebarWidth(); w > 0 {
		side := sidebarStyle.
			Width(w - 2).
			Height(max(1, m.viewport.Height-2)).
			Render(m.sidebarView())
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, side)
	}

	var b strings.Builder
	fmt.Fprint(&b, body+"\n")
	m.statusBarView(&b)
	fmt.Fprint(&b, "\n"+m.helpView())
	return b.String()
}

func (m model) sidebarView() string {
	switch {
	case m.state.LookingUp:
		return m.spinner.View() + " Looking up…"
	case m.lookupView != "":
		return m.lookupView
	default:
		return subtleStyle.Render("Press l to look up the word under the cursor.")
	}
}

func (m model) helpView() string {
	s := m.help.View(readerKeys)

	// Fill up empty cells with spaces for background coloring
	if m.width > 0 {
		lines := strings.Split(s, "\n")
		for i := range lines {
			n := max(m.width-ansi.PrintableRuneWidth(lines[i]), 0)
			lines[i] += strings.Repeat(" ", n)
		}
		s = strings.Join(lines, "\n")
	}
	return helpViewStyle(s)
}

func errorView(err error, fatal bool) string {
	exitMsg := "press any key to "
	if fatal {
		exitMsg += "exit"
	} else {
		exitMsg += "return"
	}
	s := fmt.Sprintf("%s\n\n%s\n\n%s",
		errorTitleStyle.Render("ERROR"),
		describeError(err),
		subtleStyle.Render(exitMsg),
	)
	return "\n" + indent(s, 3)
}

// Lightweight version of reflow's indent function.
func indent(s string, n int) string {
	if n <= 0 || s == "" {
		return s
	}
	l := strings.Split(s, "\n")
	b := strings.Builder{}
	i := strings.Repeat(" ", n)
	for _, v := range l {
		fmt.Fprintf(&b, "%s%s\n", i, v)
	}
	return b.String()
}
