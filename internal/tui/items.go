package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/ui"
)

// listItem adapts a todo to bubbles/list.Item
type listItem struct {
	todo model.Todo
}

func (i listItem) Title() string       { return i.todo.Text }
func (i listItem) Description() string { return labelNames(i.todo.Labels) }
func (i listItem) FilterValue() string {
	if names := labelNames(i.todo.Labels); names != "" {
		return i.todo.Text + " " + names
	}
	return i.todo.Text
}

func labelNames(labels []model.Label) string {
	if len(labels) == 0 {
		return ""
	}
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = "#" + l.Name
	}
	return strings.Join(names, " ")
}

func toItems(todos []model.Todo) []list.Item {
	out := make([]list.Item, len(todos))
	for i, t := range todos {
		out[i] = listItem{todo: t}
	}
	return out
}

// Custom delegate to control how items render (single line)
type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(listItem)
	if !ok {
		return
	}
	t := ui.Current()

	box := t.Muted.Render(t.BoxUnchecked)
	text := it.todo.Text
	if it.todo.Completed {
		box = t.Success.Render(t.BoxChecked)
		text = t.Done.Render(text)
	}
	line := fmt.Sprintf("%s %s", box, text)
	if names := labelNames(it.todo.Labels); names != "" {
		line += " " + t.Accent.Render(names)
	}

	prefix := "  "
	if index == m.Index() {
		prefix = t.Selected.Render("> ")
	}
	fmt.Fprint(w, prefix+line)
}
