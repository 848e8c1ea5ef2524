package jsonstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Makepad-fr/tada/internal/model"
)

// JSON-backed storage. Single file, human-readable, portable.
// The mutex serializes access within one process only.

// DefaultPath is used when New is given an empty path.
const DefaultPath = "todos.json"

type todoRecord struct {
	ID        int    `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
	Labels    []int  `json:"labels,omitempty"`
}

type document struct {
	NextTodoID  int           `json:"next_todo_id"`
	NextLabelID int           `json:"next_label_id"`
	Todos       []todoRecord  `json:"todos"`
	Labels      []model.Label `json:"labels"`
}

// Store keeps todos and labels in one JSON file.
type Store struct {
	path string
	mu   sync.Mutex
}

// New returns a store for the file at path. The file is created on first write.
func New(path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{path: path}
}

// Path reports the data file location.
func (s *Store) Path() string { return s.path }

func (s *Store) load() (*document, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &document{NextTodoID: 1, NextLabelID: 1}, nil
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	if doc.NextTodoID < 1 {
		doc.NextTodoID = 1
	}
	if doc.NextLabelID < 1 {
		doc.NextLabelID = 1
	}
	return &doc, nil
}

func (s *Store) save(doc *document) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, b, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// update loads the document, applies fn and saves it when fn succeeds.
func (s *Store) update(fn func(doc *document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.save(doc)
}

func (s *Store) view(fn func(doc *document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return err
	}
	return fn(doc)
}

func (d *document) todoIndex(id int) int {
	for i, r := range d.Todos {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (d *document) label(id int) (model.Label, bool) {
	for _, l := range d.Labels {
		if l.ID == id {
			return l, true
		}
	}
	return model.Label{}, false
}

func (d *document) checkLabels(ids []int) error {
	for _, id := range ids {
		if _, ok := d.label(id); !ok {
			return fmt.Errorf("label %d: %w", id, model.ErrNotFound)
		}
	}
	return nil
}

func (d *document) resolve(r todoRecord) model.Todo {
	t := model.Todo{ID: r.ID, Text: r.Text, Completed: r.Completed, Labels: []model.Label{}}
	for _, id := range r.Labels {
		if l, ok := d.label(id); ok {
			t.Labels = append(t.Labels, l)
		}
	}
	return t
}

// Create stores a new, not yet completed todo.
func (s *Store) Create(_ context.Context, payload model.NewTodo) (model.Todo, error) {
	if err := payload.Validate(); err != nil {
		return model.Todo{}, err
	}
	var out model.Todo
	err := s.update(func(doc *document) error {
		if err := doc.checkLabels(payload.Labels); err != nil {
			return err
		}
		r := todoRecord{ID: doc.NextTodoID, Text: payload.Text, Labels: dedupe(payload.Labels)}
		doc.NextTodoID++
		doc.Todos = append(doc.Todos, r)
		out = doc.resolve(r)
		return nil
	})
	return out, err
}

// Find returns the todo with id.
func (s *Store) Find(_ context.Context, id int) (model.Todo, error) {
	var out model.Todo
	err := s.view(func(doc *document) error {
		i := doc.todoIndex(id)
		if i < 0 {
			return fmt.Errorf("todo %d: %w", id, model.ErrNotFound)
		}
		out = doc.resolve(doc.Todos[i])
		return nil
	})
	return out, err
}

// All returns every todo, newest first.
func (s *Store) All(_ context.Context) ([]model.Todo, error) {
	var out []model.Todo
	err := s.view(func(doc *document) error {
		out = make([]model.Todo, 0, len(doc.Todos))
		for _, r := range doc.Todos {
			out = append(out, doc.resolve(r))
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, err
}

// Update applies u to the todo with id and returns the stored result.
func (s *Store) Update(_ context.Context, id int, u model.UpdateTodo) (model.Todo, error) {
	if err := u.Validate(); err != nil {
		return model.Todo{}, err
	}
	var out model.Todo
	err := s.update(func(doc *document) error {
		i := doc.todoIndex(id)
		if i < 0 {
			return fmt.Errorf("todo %d: %w", id, model.ErrNotFound)
		}
		r := &doc.Todos[i]
		if u.Text != nil {
			r.Text = *u.Text
		}
		if u.Completed != nil {
			r.Completed = *u.Completed
		}
		if u.Labels != nil {
			if err := doc.checkLabels(*u.Labels); err != nil {
				return err
			}
			r.Labels = dedupe(*u.Labels)
		}
		out = doc.resolve(*r)
		return nil
	})
	return out, err
}

// Delete removes the todo with id.
func (s *Store) Delete(_ context.Context, id int) error {
	return s.update(func(doc *document) error {
		i := doc.todoIndex(id)
		if i < 0 {
			return fmt.Errorf("todo %d: %w", id, model.ErrNotFound)
		}
		doc.Todos = append(doc.Todos[:i], doc.Todos[i+1:]...)
		return nil
	})
}

// CreateLabel stores a label. Names are unique; creating an existing name returns it.
func (s *Store) CreateLabel(_ context.Context, name string) (model.Label, error) {
	if err := model.ValidateText(name); err != nil {
		return model.Label{}, err
	}
	var out model.Label
	err := s.update(func(doc *document) error {
		for _, l := range doc.Labels {
			if l.Name == name {
				out = l
				return nil
			}
		}
		out = model.Label{ID: doc.NextLabelID, Name: name}
		doc.NextLabelID++
		doc.Labels = append(doc.Labels, out)
		return nil
	})
	return out, err
}

// Labels returns every label ordered by ID.
func (s *Store) Labels(_ context.Context) ([]model.Label, error) {
	var out []model.Label
	err := s.view(func(doc *document) error {
		out = append([]model.Label{}, doc.Labels...)
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

// DeleteLabel removes a label and detaches it from every todo.
func (s *Store) DeleteLabel(_ context.Context, id int) error {
	return s.update(func(doc *document) error {
		idx := -1
		for i, l := range doc.Labels {
			if l.ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("label %d: %w", id, model.ErrNotFound)
		}
		doc.Labels = append(doc.Labels[:idx], doc.Labels[idx+1:]...)
		for i := range doc.Todos {
			doc.Todos[i].Labels = without(doc.Todos[i].Labels, id)
		}
		return nil
	})
}

// Close is a no-op; every call reads and writes the file directly.
func (s *Store) Close() error { return nil }

func dedupe(ids []int) []int {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func without(ids []int, id int) []int {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
