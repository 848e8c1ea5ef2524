package sqlstore

import (
	"strconv"
	"strings"
)

// Dialect captures the differences between the SQL engines we run on.
type Dialect struct {
	Name   string
	Driver string
	// Schema is executed statement by statement when the store opens.
	Schema []string
	// Numbered reports whether placeholders are $1, $2... instead of ?.
	Numbered bool
}

var SQLite = Dialect{
	Name:   "sqlite",
	Driver: "sqlite",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS todos (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			text TEXT NOT NULL,
			completed BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS labels (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS todo_labels (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			todo_id INTEGER NOT NULL REFERENCES todos(id),
			label_id INTEGER NOT NULL REFERENCES labels(id)
		)`,
	},
}

var Postgres = Dialect{
	Name:     "postgres",
	Driver:   "pgx",
	Numbered: true,
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS todos (
			id SERIAL PRIMARY KEY,
			text TEXT NOT NULL,
			completed BOOLEAN NOT NULL DEFAULT false
		)`,
		`CREATE TABLE IF NOT EXISTS labels (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS todo_labels (
			id SERIAL PRIMARY KEY,
			todo_id INTEGER NOT NULL REFERENCES todos(id) DEFERRABLE INITIALLY DEFERRED,
			label_id INTEGER NOT NULL REFERENCES labels(id) DEFERRABLE INITIALLY DEFERRED
		)`,
	},
}

// Rebind rewrites ? placeholders for dialects that number them.
// Queries here never contain a literal ?, so no quoting rules apply.
func (d Dialect) Rebind(query string) string {
	if !d.Numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
