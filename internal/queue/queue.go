package queue

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sync"

	_ "modernc.org/sqlite"
)

// DefaultList is the list holding failed screenshot deliveries.
const DefaultList = "screenshots"

const schema = `
CREATE TABLE IF NOT EXISTS list_entries (
	id    INTEGER PRIMARY KEY AUTOINCREMENT,
	list  TEXT NOT NULL,
	value TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS list_entries_list_value ON list_entries (list, value);
`

// Queue is a persistent list of strings.
// Queue is safe for concurrent use.
type Queue struct {
	mu   sync.Mutex
	db   *sql.DB
	name string
}

// Open opens (creating if needed) the database at path and the list name.
func Open(path, name string) (*Queue, error) {
	dsn := "file:" + (&url.URL{Path: path}).EscapedPath() +
		"?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("queue: open %s: %w", path, err)
	}
	// One connection keeps every statement on the same SQLite handle.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("queue: create schema: %w", err)
	}

	return &Queue{db: db, name: name}, nil
}

// Name returns the list name.
func (q *Queue) Name() string { return q.name }

// Enqueue appends entry to the end of the list.
func (q *Queue) Enqueue(ctx context.Context, entry string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	_, err := q.db.ExecContext(ctx,
		`INSERT INTO list_entries (list, value) VALUES (?, ?)`, q.name, entry)
	if err != nil {
		return fmt.Errorf("queue: enqueue: %w", err)
	}
	return nil
}

// List returns a snapshot of all entries in insertion order.
func (q *Queue) List(ctx context.Context) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	rows, err := q.db.QueryContext(ctx,
		`SELECT value FROM list_entries WHERE list = ? ORDER BY id`, q.name)
	if err != nil {
		return nil, fmt.Errorf("queue: list: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("queue: scan: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("queue: list: %w", err)
	}
	return out, nil
}

// Remove deletes the oldest occurrence of entry. It reports whether an
// occurrence existed.
func (q *Queue) Remove(ctx context.Context, entry string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	res, err := q.db.ExecContext(ctx, `
DELETE FROM list_entries WHERE id = (
	SELECT id FROM list_entries WHERE list = ? AND value = ? ORDER BY id LIMIT 1
)`, q.name, entry)
	if err != nil {
		return false, fmt.Errorf("queue: remove: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("queue: remove: %w", err)
	}
	return n > 0, nil
}

// Len returns the number of entries in the list.
func (q *Queue) Len(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM list_entries WHERE list = ?`, q.name).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("queue: count: %w", err)
	}
	return n, nil
}

// Close releases the database.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.db.Close()
}
