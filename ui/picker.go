package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"
)

// pickerModel lists importable files and narrows them with a fuzzy filter.
type pickerModel struct {
	files    []File
	filter   textinput.Model
	visible  []int // indexes into files
	selected int
	loading  bool
}

func newPickerModel() pickerModel {
	ti := textinput.New()
	ti.Prompt = "Find: "
	ti.Placeholder = "type to filter"
	return pickerModel{filter: ti}
}

type fileNames []File

func (f fileNames) String(i int) string { return f[i].Name }
func (f fileNames) Len() int            { return len(f) }

func (m *pickerModel) reset() {
	m.files = nil
	m.visible = nil
	m.selected = 0
	m.loading = true
	m.filter.SetValue("")
	m.filter.Focus()
}

func (m *pickerModel) add(f File) {
	m.files = append(m.files, f)
	m.refilter()
}

func (m *pickerModel) refilter() {
	m.visible = m.visible[:0]
	if q := m.filter.Value(); q != "" {
		for _, match := range fuzzy.FindFrom(q, fileNames(m.files)) {
			m.visible = append(m.visible, match.Index)
		}
	} else {
		for i := range m.files {
			m.visible = append(m.visible, i)
		}
		sort.SliceStable(m.visible, func(a, b int) bool {
			return m.files[m.visible[a]].ModTime.After(m.files[m.visible[b]].ModTime)
		})
	}
	m.selected = max(0, min(m.selected, len(m.visible)-1))
}

// current returns the highlighted file.
func (m pickerModel) current() (File, bool) {
	if len(m.visible) == 0 {
		return File{}, false
	}
	return m.files[m.visible[m.selected]], true
}

func (m pickerModel) update(msg tea.Msg) (pickerModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "ctrl+p":
			if m.selected > 0 {
				m.selected--
			}
			return m, nil
		case "down", "ctrl+n":
			if m.selected < len(m.visible)-1 {
				m.selected++
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	before := m.filter.Value()
	m.filter, cmd = m.filter.Update(msg)
	if m.filter.Value() != before {
		m.refilter()
	}
	return m, cmd
}

func (m pickerModel) view(width, height int) string {
	var b strings.Builder
	b.WriteString(m.filter.View() + "\n\n")

	rows := max(1, height-4)
	first := max(0, m.selected-rows+1)
	for i := first; i < len(m.visible) && i < first+rows; i++ {
		f := m.files[m.visible[i]]
		age := humanize.Time(f.ModTime)
		name := runewidth.Truncate(f.Name, max(0, width-runewidth.StringWidth(age)-6), "…")
		line := fmt.Sprintf("%s %s", name, subtleStyle.Render(age))
		if i == m.selected {
			b.WriteString(activeSegmentTitleStyle.Render("> ") + line + "\n")
		} else {
			b.WriteString("  " + line + "\n")
		}
	}

	switch {
	case m.loading && len(m.files) == 0:
		b.WriteString(subtleStyle.Render("  Looking for files…") + "\n")
	case len(m.visible) == 0:
		b.WriteString(subtleStyle.Render("  No matching files") + "\n")
	}
	return b.String()
}
