// Package tui is the interactive todo screen: a form on top that creates
// todos and a list below that shows and updates them.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/todoapp"
	"github.com/Makepad-fr/tada/internal/ui"
)

// Backend is what the screen needs from storage.
type Backend interface {
	todoapp.Creator
	Update(ctx context.Context, id int, u model.UpdateTodo) (model.Todo, error)
}

type mode int

const (
	browsing mode = iota
	adding
	editing
)

// createdMsg reports that a create call finished.
type createdMsg struct{ err error }

// updatedMsg carries the stored todo after an update call.
type updatedMsg struct {
	todo model.Todo
	err  error
}

var (
	addBind    = key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add"))
	toggleBind = key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle"))
	editBind   = key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit"))
)

// Model is the bubbletea model of the screen.
type Model struct {
	ctx     context.Context
	backend Backend
	todos   *todoapp.List
	logger  *log.Logger

	list  list.Model
	input textinput.Model
	mode  mode

	editID   int
	inFlight int
	status   string
	failed   bool
}

// Option configures the screen.
type Option func(*Model)

// WithLogger sets the logger. It must not write to the terminal the screen uses.
func WithLogger(l *log.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.logger = l
		}
	}
}

// New builds the screen around an empty todo list.
func New(ctx context.Context, b Backend, opts ...Option) Model {
	m := Model{ctx: ctx, backend: b, logger: log.Default()}
	for _, opt := range opts {
		opt(&m)
	}
	m.todos = todoapp.New(b, todoapp.WithLogger(m.logger))

	l := list.New(nil, itemDelegate{}, 0, 0)
	l.SetShowTitle(false)
	l.SetShowHelp(true)
	l.SetShowPagination(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.HelpStyle = ui.Current().Muted
	l.Styles.PaginationStyle = ui.Current().Muted
	l.FilterInput.Prompt = "/ "
	l.SetStatusBarItemName("todo", "todos")
	l.AdditionalShortHelpKeys = func() []key.Binding { return []key.Binding{addBind, toggleBind, editBind} }
	l.AdditionalFullHelpKeys = func() []key.Binding { return []key.Binding{addBind, toggleBind, editBind} }
	m.list = l

	m.input = textinput.New()
	m.input.Prompt = "> "
	m.input.Placeholder = "What needs doing?"
	m.input.CharLimit = model.MaxTextLen
	return m
}

// Run shows the screen until the user quits or ctx is done.
func Run(ctx context.Context, b Backend, opts ...Option) error {
	m := New(ctx, b, opts...)
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

// Todos returns the todos currently on screen.
func (m Model) Todos() []model.Todo { return m.todos.Todos() }

func (m Model) Init() tea.Cmd { return nil }

// createCmd runs the create call off the event loop.
func (m Model) createCmd(p model.NewTodo) tea.Cmd {
	todos, ctx := m.todos, m.ctx
	return func() tea.Msg {
		return createdMsg{err: todos.Create(ctx, p)}
	}
}

func (m Model) updateCmd(id int, u model.UpdateTodo) tea.Cmd {
	b, ctx := m.backend, m.ctx
	return func() tea.Msg {
		t, err := b.Update(ctx, id, u)
		return updatedMsg{todo: t, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(max(msg.Width-2, 0), max(msg.Height-9, 0))
		m.input.Width = max(msg.Width-8, 0)
		return m, nil

	case createdMsg:
		m.inFlight--
		if msg.err != nil {
			m.logger.Error("create failed", "err", msg.err)
			return m.fail("create: " + msg.err.Error()), nil
		}
		m.status, m.failed = "", false
		cmd := m.refresh()
		return m, cmd

	case updatedMsg:
		if msg.err != nil {
			m.logger.Error("update failed", "err", msg.err)
			return m.fail("update: " + msg.err.Error()), nil
		}
		m.todos.Update(model.PatchOf(msg.todo))
		m.status, m.failed = "", false
		cmd := m.refresh()
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.mode {
		case adding:
			return m.updateAdding(msg)
		case editing:
			return m.updateEditing(msg)
		}
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "esc":
			// esc clears an applied filter before it quits
			if m.list.FilterState() == list.FilterApplied {
				break
			}
			return m, tea.Quit
		case "a":
			m.mode = adding
			m.input.SetValue("")
			m.input.Placeholder = "What needs doing?"
			return m, m.input.Focus()
		case " ":
			if it, ok := m.list.SelectedItem().(listItem); ok {
				done := !it.todo.Completed
				return m, m.updateCmd(it.todo.ID, model.UpdateTodo{Completed: &done})
			}
			return m, nil
		case "e":
			if it, ok := m.list.SelectedItem().(listItem); ok {
				m.mode = editing
				m.editID = it.todo.ID
				m.input.SetValue(it.todo.Text)
				m.input.CursorEnd()
				m.input.Placeholder = "Edit todo..."
				return m, m.input.Focus()
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateAdding(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		text := strings.TrimSpace(m.input.Value())
		m.input.SetValue("")
		if text == "" {
			return m, nil
		}
		m.inFlight++
		return m, m.createCmd(model.NewTodo{Text: text})
	case "esc":
		m.mode = browsing
		m.input.SetValue("")
		m.input.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		text := strings.TrimSpace(m.input.Value())
		if err := model.ValidateText(text); err != nil {
			return m.fail(err.Error()), nil
		}
		id := m.editID
		m.mode = browsing
		m.input.SetValue("")
		m.input.Blur()
		return m, m.updateCmd(id, model.UpdateTodo{Text: &text})
	case "esc":
		m.mode = browsing
		m.input.SetValue("")
		m.input.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) fail(msg string) Model {
	m.status, m.failed = msg, true
	return m
}

// refresh re-reads the todo list and keeps the cursor in range.
func (m *Model) refresh() tea.Cmd {
	idx := m.list.Index()
	cmd := m.list.SetItems(toItems(m.todos.Todos()))
	if n := len(m.list.Items()); idx >= n && n > 0 {
		idx = n - 1
	}
	m.list.Select(idx)
	return cmd
}

func (m Model) View() string {
	t := ui.Current()
	todos := m.todos.Todos()
	done, pending := stats(todos)

	header := fmt.Sprintf("%s   %s %d  %s %d  %s %d",
		t.Title.Render("Todo App"),
		t.Success.Render(t.SymDone), done,
		t.Pending.Render(t.SymPending), pending,
		t.Accent.Render("Total"), len(todos),
	)

	formTitle := "New todo"
	switch m.mode {
	case editing:
		formTitle = "Edit todo"
	case browsing:
		formTitle = t.Muted.Render("New todo (press a)")
	}
	if m.inFlight > 0 {
		formTitle += t.Muted.Render(fmt.Sprintf("  saving %d...", m.inFlight))
	}
	form := ui.Box(formTitle + "\n" + m.input.View())

	status := ""
	if m.status != "" {
		status = t.Muted.Render(m.status)
		if m.failed {
			status = t.Error.Render(m.status)
		}
	}

	return ui.Box(lipgloss.JoinVertical(lipgloss.Left, header, form, m.list.View(), status))
}

// small list stats used for the header
func stats(todos []model.Todo) (done, pending int) {
	for _, t := range todos {
		if t.Completed {
			done++
		} else {
			pending++
		}
	}
	return
}
