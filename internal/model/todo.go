package model

import (
	"errors"
	"fmt"
	"slices"
	"unicode/utf8"
)

// MaxTextLen is the longest text a todo or label may carry, in characters.
const MaxTextLen = 100

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidText = errors.New("invalid text")
)

// Label is a tag that can be attached to any number of todos.
type Label struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Todo is the domain model for a todo entry.
// ID is assigned by whichever backend created it and never changes.
type Todo struct {
	ID        int     `json:"id"`
	Text      string  `json:"text"`
	Completed bool    `json:"completed"`
	Labels    []Label `json:"labels"`
}

// NewTodo is what a caller sends to have a todo created. It has no identity.
type NewTodo struct {
	Text   string `json:"text"`
	Labels []int  `json:"labels"`
}

// UpdateTodo is the persisted form of a partial update. Nil fields are left untouched.
type UpdateTodo struct {
	Text      *string `json:"text,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
	Labels    *[]int  `json:"labels,omitempty"`
}

// TodoPatch is a partial record merged into the todo with the same ID.
type TodoPatch struct {
	ID        int
	Text      *string
	Completed *bool
	Labels    *[]Label
}

// Merge returns t with every field present on p applied. The ID is kept.
func (t Todo) Merge(p TodoPatch) Todo {
	out := t
	if p.Text != nil {
		out.Text = *p.Text
	}
	if p.Completed != nil {
		out.Completed = *p.Completed
	}
	if p.Labels != nil {
		out.Labels = slices.Clone(*p.Labels)
	}
	return out
}

// PatchOf turns a full record into a patch that replaces every field.
func PatchOf(t Todo) TodoPatch {
	labels := slices.Clone(t.Labels)
	return TodoPatch{
		ID:        t.ID,
		Text:      &t.Text,
		Completed: &t.Completed,
		Labels:    &labels,
	}
}

// ValidateText applies the length rule shared by todo text and label names.
func ValidateText(s string) error {
	n := utf8.RuneCountInString(s)
	if n == 0 {
		return fmt.Errorf("%w: can not be empty", ErrInvalidText)
	}
	if n > MaxTextLen {
		return fmt.Errorf("%w: over text length (%d > %d)", ErrInvalidText, n, MaxTextLen)
	}
	return nil
}

// Validate checks a creation request before it reaches storage.
func (n NewTodo) Validate() error {
	return ValidateText(n.Text)
}

// Validate checks an update request before it reaches storage.
func (u UpdateTodo) Validate() error {
	if u.Text != nil {
		return ValidateText(*u.Text)
	}
	return nil
}

// Apply returns t with the update applied. Labels are resolved by the caller.
func (u UpdateTodo) Apply(t Todo) Todo {
	if u.Text != nil {
		t.Text = *u.Text
	}
	if u.Completed != nil {
		t.Completed = *u.Completed
	}
	return t
}
