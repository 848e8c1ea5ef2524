// Package todoapp holds the in-memory todo collection shown by the app.
package todoapp

import (
	"context"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/Makepad-fr/tada/internal/model"
)

// Creator turns a creation request into a stored todo with an assigned ID.
type Creator interface {
	Create(ctx context.Context, payload model.NewTodo) (model.Todo, error)
}

// CreatorFunc adapts a function to Creator.
type CreatorFunc func(ctx context.Context, payload model.NewTodo) (model.Todo, error)

func (f CreatorFunc) Create(ctx context.Context, payload model.NewTodo) (model.Todo, error) {
	return f(ctx, payload)
}

// List is the ordered, newest-first collection of todos for one view.
// It starts empty and is safe for concurrent use.
type List struct {
	creator Creator
	logger  *log.Logger

	mu    sync.Mutex
	todos []model.Todo
}

// Option configures a List.
type Option func(*List)

// WithLogger sets the logger used for debug output.
func WithLogger(l *log.Logger) Option {
	return func(list *List) {
		if l != nil {
			list.logger = l
		}
	}
}

// New returns an empty list that creates todos through c.
func New(c Creator, opts ...Option) *List {
	l := &List{creator: c, logger: log.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Create asks the creator for a new todo and puts it at the front of the list.
// Empty text is ignored without error. A creator error is returned as is and
// leaves the list unchanged.
func (l *List) Create(ctx context.Context, payload model.NewTodo) error {
	if payload.Text == "" {
		return nil
	}

	// No lock while waiting: other creates and updates may land meanwhile,
	// and the prepend below applies to whatever the list is by then.
	todo, err := l.creator.Create(ctx, payload)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.todos = Prepend(l.todos, todo)
	n := len(l.todos)
	l.mu.Unlock()

	l.logger.Debug("todo created", "id", todo.ID, "len", n)
	return nil
}

// Update merges p into the todo with the same ID. Unknown IDs are ignored.
func (l *List) Update(p model.TodoPatch) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.todos = MergeByID(l.todos, p)
}

// Todos returns a copy of the current list, labels included.
func (l *List) Todos() []model.Todo {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.Todo, len(l.todos))
	for i, t := range l.todos {
		t.Labels = slices.Clone(t.Labels)
		out[i] = t
	}
	return out
}

// Len reports how many todos are in the list.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.todos)
}

// Prepend returns a new slice with t in front of todos.
func Prepend(todos []model.Todo, t model.Todo) []model.Todo {
	out := make([]model.Todo, 0, len(todos)+1)
	out = append(out, t)
	return append(out, todos...)
}

// MergeByID returns a new slice where every todo with p's ID has p merged in.
// Order is preserved.
func MergeByID(todos []model.Todo, p model.TodoPatch) []model.Todo {
	out := make([]model.Todo, len(todos))
	for i, t := range todos {
		if t.ID == p.ID {
			t = t.Merge(p)
		}
		out[i] = t
	}
	return out
}
