package ui

import "github.com/charmbracelet/bubbles/key"

type inputKeyMap struct {
	Process key.Binding
	Import  key.Binding
	Reader  key.Binding
	Quit    key.Binding
}

func (k inputKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Process, k.Import, k.Reader, k.Quit}
}

func (k inputKeyMap) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

type readerKeyMap struct {
	Prev        key.Binding
	Next        key.Binding
	First       key.Binding
	Last        key.Binding
	Up          key.Binding
	Down        key.Binding
	NextSegment key.Binding
	PrevSegment key.Binding
	Toggle      key.Binding
	PlayFrom    key.Binding
	Stop        key.Binding
	Lookup      key.Binding
	ClearLookup key.Binding
	Copy        key.Binding
	Export      key.Binding
	Voice       key.Binding
	Faster      key.Binding
	Slower      key.Binding
	Edit        key.Binding
	Reset       key.Binding
	Help        key.Binding
	Quit        key.Binding
}

func (k readerKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.PlayFrom, k.Lookup, k.NextSegment, k.Voice, k.Help, k.Quit}
}

func (k readerKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Prev, k.Next, k.First, k.Last, k.Up, k.Down},
		{k.NextSegment, k.PrevSegment, k.Toggle, k.PlayFrom, k.Stop},
		{k.Lookup, k.ClearLookup, k.Copy, k.Export},
		{k.Voice, k.Faster, k.Slower, k.Edit, k.Reset, k.Quit},
	}
}

var inputKeys = inputKeyMap{
	Process: key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "process")),
	Import:  key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("ctrl+o", "import file")),
	Reader:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back to reader")),
	Quit:    key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
}

var readerKeys = readerKeyMap{
	Prev:        key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "previous word")),
	Next:        key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "next word")),
	First:       key.NewBinding(key.WithKeys("home"), key.WithHelp("home", "first word")),
	Last:        key.NewBinding(key.WithKeys("end"), key.WithHelp("end", "last word")),
	Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "scroll up")),
	Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "scroll down")),
	NextSegment: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next segment")),
	PrevSegment: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous segment")),
	Toggle:      key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
	PlayFrom:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play from word")),
	Stop:        key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop")),
	Lookup:      key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "look up word")),
	ClearLookup: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear lookup")),
	Copy:        key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy lookup")),
	Export:      key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "export wav")),
	Voice:       key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "voice")),
	Faster:      key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "faster")),
	Slower:      key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "slower")),
	Edit:        key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "edit text")),
	Reset:       key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "start over")),
	Help:        key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}
