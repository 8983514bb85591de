// Package tui renders the client store in the terminal. Keys dispatch store
// actions; every new store snapshot is pushed into the program as a message.
package tui

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"filecat/internal/filecat"
	"filecat/internal/store"
)

// Dispatcher accepts store actions.
type Dispatcher interface {
	Dispatch(store.Action)
}

// stateMsg carries a new store snapshot into the program. Messages may
// arrive out of order; seq orders them.
type stateMsg struct {
	seq   uint64
	state store.State
}

const consoleLines = 5

var filterCycle = []filecat.FileFilter{filecat.FilterToCategorize, filecat.FilterCategorized, filecat.FilterAll}

// Model is the top-level Bubble Tea model.
type Model struct {
	dispatch Dispatcher
	state    store.State
	seq      uint64
	cursor   int
	selected map[int64]bool
	editing  bool
	input    textinput.Model
	spinner  spinner.Model
	width    int
	height   int
}

// New creates a model showing initial.
func New(d Dispatcher, initial store.State) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = selectedStyle

	in := textinput.New()
	in.Placeholder = "category"
	in.CharLimit = 64

	return Model{
		dispatch: d,
		state:    initial,
		selected: map[int64]bool{},
		input:    in,
		spinner:  sp,
	}
}

func (m Model) Init() tea.Cmd {
	m.dispatch.Dispatch(store.LoadFiles{Filter: m.state.Filter})
	m.dispatch.Dispatch(store.LoadLatest{})
	m.dispatch.Dispatch(store.LoadCategories{})
	return m.spinner.Tick
}

func (m Model) current() (*filecat.FileRecord, bool) {
	if m.cursor < 0 || m.cursor >= len(m.state.Files) {
		return nil, false
	}
	return m.state.Files[m.cursor], true
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case stateMsg:
		if msg.seq <= m.seq {
			return m, nil
		}
		m.seq = msg.seq
		m.state = msg.state
		if m.cursor >= len(m.state.Files) {
			m.cursor = max(0, len(m.state.Files)-1)
		}
		for id := range m.selected {
			if _, ok := m.state.File(id); !ok {
				delete(m.selected, id)
			}
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.editing {
			return m.updateEditing(msg)
		}
		return m.updateBrowsing(msg)
	}
	return m, nil
}

func (m Model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.editing = false
		m.input.Blur()
		return m, nil
	case "enter":
		m.editing = false
		m.input.Blur()
		category := strings.TrimSpace(m.input.Value())
		if rec, ok := m.current(); ok && category != "" {
			m.dispatch.Dispatch(store.UpdateCategory{FileID: rec.ID, Category: category})
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateBrowsing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.state.Files)-1 {
			m.cursor++
		}
	case "tab":
		next := filterCycle[0]
		for i, f := range filterCycle {
			if f == m.state.Filter {
				next = filterCycle[(i+1)%len(filterCycle)]
			}
		}
		m.cursor = 0
		m.dispatch.Dispatch(store.LoadFiles{Filter: next})
	case "r":
		m.dispatch.Dispatch(store.RefreshFiles{})
	case "c":
		m.dispatch.Dispatch(store.ForceCategorize{Force: false})
	case "C":
		m.dispatch.Dispatch(store.ForceCategorize{Force: true})
	case "t":
		m.dispatch.Dispatch(store.TrainModel{})
	case "e":
		if rec, ok := m.current(); ok {
			m.editing = true
			m.input.SetValue(rec.Category)
			m.input.CursorEnd()
			return m, m.input.Focus()
		}
	case "x":
		if rec, ok := m.current(); ok {
			m.dispatch.Dispatch(store.NotShowAgain{FileID: rec.ID})
		}
	case "a":
		if rec, ok := m.current(); ok {
			m.dispatch.Dispatch(store.AcknowledgeFile{FileID: rec.ID})
		}
	case " ":
		if rec, ok := m.current(); ok {
			if m.selected[rec.ID] {
				delete(m.selected, rec.ID)
			} else {
				m.selected[rec.ID] = true
			}
		}
	case "m":
		if req, ok := m.moveRequest(); ok {
			m.dispatch.Dispatch(store.MoveFiles{Request: req})
			m.selected = map[int64]bool{}
		}
	case "X":
		for _, job := range m.state.ActiveJobs() {
			m.dispatch.Dispatch(store.CancelJob{JobID: job.ID})
		}
	}
	return m, nil
}

// moveRequest builds a move of the selected files, or of the file under the
// cursor when nothing is selected. Only files ready to move are included.
func (m Model) moveRequest() (filecat.MoveRequest, bool) {
	var req filecat.MoveRequest
	for _, rec := range m.state.Files {
		if (len(m.selected) == 0 && rec == m.state.Files[m.cursor]) || m.selected[rec.ID] {
			if rec.PendingMove() {
				req.Items = append(req.Items, filecat.MoveItem{FileID: rec.ID, Category: rec.Category})
			}
		}
	}
	req.ContinueOnError = true
	req.CreateDirectories = true
	return req, len(req.Items) > 0
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("filecat") + "  " + dimStyle.Render(m.state.Filter.String()) + "\n\n")

	if m.state.Loading.Files && len(m.state.Files) == 0 {
		b.WriteString(fmt.Sprintf("  %s loading files...\n", m.spinner.View()))
	} else if len(m.state.Files) == 0 {
		b.WriteString(dimStyle.Render("  no files") + "\n")
	}
	for i, rec := range m.state.Files {
		b.WriteString(m.renderFile(i, rec) + "\n")
	}

	if m.editing {
		b.WriteString("\n  " + m.input.View() + "\n")
	}

	if jobs := m.state.ActiveJobs(); len(jobs) > 0 {
		b.WriteString("\n")
		for _, job := range jobs {
			b.WriteString(fmt.Sprintf("  %s %s %s %d%%\n", m.spinner.View(), job.Kind, job.Status, job.Percent()))
		}
	}

	if n := len(m.state.Console); n > 0 {
		b.WriteString("\n")
		for _, line := range m.state.Console[max(0, n-consoleLines):] {
			b.WriteString("  " + renderConsole(line) + "\n")
		}
	}

	b.WriteString("\n" + statusBarStyle.Render(m.statusLine()))
	return b.String()
}

func (m Model) renderFile(i int, rec *filecat.FileRecord) string {
	marker := "  "
	if m.selected[rec.ID] {
		marker = "* "
	}
	name := rec.Name
	if i == m.cursor {
		name = selectedStyle.Render("> " + name)
	} else {
		name = "  " + name
	}
	if rec.IsNew {
		name += newStyle.Render(" new")
	}
	var category string
	switch {
	case rec.NeedsCategorization && rec.Category != "":
		category = pendingStyle.Render(rec.Category + "?")
	case rec.NeedsCategorization:
		category = pendingStyle.Render("uncategorized")
	case rec.ExcludeFromMove:
		category = dimStyle.Render(rec.Category + " (hidden)")
	default:
		category = categoryStyle.Render(rec.Category)
	}
	return marker + name + "  " + category
}

func renderConsole(msg store.ConsoleMessage) string {
	switch msg.Level {
	case store.LevelError:
		return errorStyle.Render(msg.Text)
	case store.LevelWarn:
		return warnStyle.Render(msg.Text)
	default:
		return dimStyle.Render(msg.Text)
	}
}

func (m Model) statusLine() string {
	return fmt.Sprintf("%s | %d categories | tab filter  r refresh  c/C categorize  e edit  x hide  space select  m move  t train  X cancel  q quit",
		m.state.Connection, len(m.state.Categories))
}

// Store is what Run needs from the client store.
type Store interface {
	Dispatcher
	State() store.State
	Subscribe(fn func(store.State, store.Action)) (unsubscribe func())
}

// Run shows the TUI until the user quits or ctx is done.
func Run(ctx context.Context, st Store) error {
	p := tea.NewProgram(New(st, st.State()), tea.WithAltScreen(), tea.WithContext(ctx))
	var seq atomic.Uint64
	unsubscribe := st.Subscribe(func(s store.State, _ store.Action) {
		msg := stateMsg{seq: seq.Add(1), state: s}
		go p.Send(msg)
	})
	defer unsubscribe()

	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
