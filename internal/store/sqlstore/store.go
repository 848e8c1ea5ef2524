// Package sqlstore persists todos and labels in SQLite or Postgres using the
// todos / labels / todo_labels schema of the todo API server.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver

	"github.com/Makepad-fr/tada/internal/model"
)

const selectTodos = `
	SELECT todos.id, todos.text, todos.completed, labels.id, labels.name
	FROM todos
	LEFT OUTER JOIN todo_labels tl ON todos.id = tl.todo_id
	LEFT OUTER JOIN labels ON labels.id = tl.label_id`

// Store is a database/sql backed todo store.
type Store struct {
	db *sql.DB
	d  Dialect
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// OpenSQLite opens (creating if needed) the SQLite database at path.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = "tada.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open(SQLite.Driver, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)
	return New(ctx, db, SQLite)
}

// OpenPostgres connects to the Postgres database at dsn.
func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open(Postgres.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return New(ctx, db, Postgres)
}

// New wraps an open database and makes sure the schema exists.
func New(ctx context.Context, db *sql.DB, d Dialect) (*Store, error) {
	for _, stmt := range d.Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return &Store{db: db, d: d}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Create inserts a new, not yet completed todo with its labels.
func (s *Store) Create(ctx context.Context, payload model.NewTodo) (model.Todo, error) {
	if err := payload.Validate(); err != nil {
		return model.Todo{}, err
	}
	var out model.Todo
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var id int
		err := tx.QueryRowContext(ctx,
			s.d.Rebind(`INSERT INTO todos (text, completed) VALUES (?, ?) RETURNING id`),
			payload.Text, false,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert todo: %w", err)
		}
		if err := s.attachLabels(ctx, tx, id, payload.Labels); err != nil {
			return err
		}
		out, err = s.find(ctx, tx, id)
		return err
	})
	return out, err
}

// attachLabels links every label in ids to the todo. Unknown labels fail the call.
func (s *Store) attachLabels(ctx context.Context, q queryer, todoID int, ids []int) error {
	seen := make(map[int]bool, len(ids))
	for _, labelID := range ids {
		if seen[labelID] {
			continue
		}
		seen[labelID] = true
		res, err := q.ExecContext(ctx,
			s.d.Rebind(`INSERT INTO todo_labels (todo_id, label_id) SELECT CAST(? AS INTEGER), id FROM labels WHERE id = ?`),
			todoID, labelID,
		)
		if err != nil {
			return fmt.Errorf("attach label %d: %w", labelID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("label %d: %w", labelID, model.ErrNotFound)
		}
	}
	return nil
}

// Find returns the todo with id.
func (s *Store) Find(ctx context.Context, id int) (model.Todo, error) {
	return s.find(ctx, s.db, id)
}

func (s *Store) find(ctx context.Context, q queryer, id int) (model.Todo, error) {
	todos, err := s.query(ctx, q, selectTodos+` WHERE todos.id = ? ORDER BY labels.id`, id)
	if err != nil {
		return model.Todo{}, err
	}
	if len(todos) == 0 {
		return model.Todo{}, fmt.Errorf("todo %d: %w", id, model.ErrNotFound)
	}
	return todos[0], nil
}

// All returns every todo, newest first.
func (s *Store) All(ctx context.Context) ([]model.Todo, error) {
	return s.query(ctx, s.db, selectTodos+` ORDER BY todos.id DESC, labels.id`)
}

func (s *Store) query(ctx context.Context, q queryer, query string, args ...any) ([]model.Todo, error) {
	rows, err := q.QueryContext(ctx, s.d.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("select todos: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Todo
	index := make(map[int]int)
	for rows.Next() {
		var (
			t         model.Todo
			labelID   sql.NullInt64
			labelName sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.Text, &t.Completed, &labelID, &labelName); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		i, ok := index[t.ID]
		if !ok {
			t.Labels = []model.Label{}
			out = append(out, t)
			i = len(out) - 1
			index[t.ID] = i
		}
		if labelID.Valid {
			out[i].Labels = append(out[i].Labels, model.Label{ID: int(labelID.Int64), Name: labelName.String})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if out == nil {
		out = []model.Todo{}
	}
	return out, nil
}

// Update applies u to the todo with id. A non-nil label list replaces the
// todo's labels wholesale.
func (s *Store) Update(ctx context.Context, id int, u model.UpdateTodo) (model.Todo, error) {
	if err := u.Validate(); err != nil {
		return model.Todo{}, err
	}
	var out model.Todo
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		old, err := s.find(ctx, tx, id)
		if err != nil {
			return err
		}
		next := u.Apply(old)
		if _, err := tx.ExecContext(ctx,
			s.d.Rebind(`UPDATE todos SET text = ?, completed = ? WHERE id = ?`),
			next.Text, next.Completed, id,
		); err != nil {
			return fmt.Errorf("update todo: %w", err)
		}
		if u.Labels != nil {
			if _, err := tx.ExecContext(ctx, s.d.Rebind(`DELETE FROM todo_labels WHERE todo_id = ?`), id); err != nil {
				return fmt.Errorf("clear labels: %w", err)
			}
			if err := s.attachLabels(ctx, tx, id, *u.Labels); err != nil {
				return err
			}
		}
		out, err = s.find(ctx, tx, id)
		return err
	})
	return out, err
}

// Delete removes the todo with id and its label links.
func (s *Store) Delete(ctx context.Context, id int) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.d.Rebind(`DELETE FROM todo_labels WHERE todo_id = ?`), id); err != nil {
			return fmt.Errorf("delete todo labels: %w", err)
		}
		return deleteOne(ctx, tx, s.d.Rebind(`DELETE FROM todos WHERE id = ?`), "todo", id)
	})
}

// CreateLabel inserts a label, or returns the existing one with that name.
func (s *Store) CreateLabel(ctx context.Context, name string) (model.Label, error) {
	if err := model.ValidateText(name); err != nil {
		return model.Label{}, err
	}
	out := model.Label{Name: name}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, s.d.Rebind(`SELECT id FROM labels WHERE name = ?`), name).Scan(&out.ID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("select label: %w", err)
		}
		if err := tx.QueryRowContext(ctx,
			s.d.Rebind(`INSERT INTO labels (name) VALUES (?) RETURNING id`), name,
		).Scan(&out.ID); err != nil {
			return fmt.Errorf("insert label: %w", err)
		}
		return nil
	})
	return out, err
}

// Labels returns every label ordered by ID.
func (s *Store) Labels(ctx context.Context) ([]model.Label, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM labels ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select labels: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := []model.Label{}
	for rows.Next() {
		var l model.Label
		if err := rows.Scan(&l.ID, &l.Name); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// DeleteLabel removes a label and detaches it from every todo.
func (s *Store) DeleteLabel(ctx context.Context, id int) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.d.Rebind(`DELETE FROM todo_labels WHERE label_id = ?`), id); err != nil {
			return fmt.Errorf("delete label links: %w", err)
		}
		return deleteOne(ctx, tx, s.d.Rebind(`DELETE FROM labels WHERE id = ?`), "label", id)
	})
}

func deleteOne(ctx context.Context, tx *sql.Tx, query, what string, id int) error {
	res, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, model.ErrNotFound)
	}
	return nil
}
