// Package docstore is a hierarchical document store over SQLite with
// Firestore-style snapshot listeners: a subscription delivers the full
// current result set immediately and again after every committed write to
// its collection.
package docstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

var (
	ErrPathRequired = errors.New("collection path is required")
	ErrIDRequired   = errors.New("document id is required")
	ErrNotFound     = errors.New("document not found")
	ErrClosed       = errors.New("store is closed")
)

// timeLayout is fixed-width so stored timestamps compare lexicographically
// in the same order they compare chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// serverTimestampSentinel marks a field the store fills in at write time.
type serverTimestampSentinel struct{}

// ServerTimestamp is substituted with the store clock's current UTC time
// when a write commits. Timestamps are never client-assigned.
var ServerTimestamp = serverTimestampSentinel{}

// Store owns the database handle and the listener hub.
type Store struct {
	db  *sql.DB
	hub *hub
	now func() time.Time
}

// Open opens (creating if needed) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("database path is required")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open document store: %w", err)
	}
	// A single writer keeps SQLITE_BUSY handling predictable.
	db.SetMaxOpenConns(1)

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate document store: %w", err)
	}

	return &Store{
		db:  db,
		hub: newHub(),
		now: time.Now,
	}, nil
}

// Close releases every live subscription and the database handle.
func (s *Store) Close() error {
	s.hub.closeAll()
	return s.db.Close()
}

// SetClock overrides the store clock. Intended for tests that need
// deterministic server-assigned timestamps.
func (s *Store) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Collection addresses a collection by its hierarchical path, e.g.
// "streamwise/users/u1/watchlist".
func (s *Store) Collection(path string) *Collection {
	return &Collection{store: s, path: strings.Trim(path, "/")}
}

// Collection is a handle to one document collection.
type Collection struct {
	store *Store
	path  string
}

// Path returns the collection's hierarchical path.
func (c *Collection) Path() string { return c.path }

// Add persists data under a fresh unique id and returns the id once the
// write is acknowledged.
func (c *Collection) Add(ctx context.Context, data map[string]any) (string, error) {
	if c.path == "" {
		return "", ErrPathRequired
	}

	id := uuid.NewString()
	if err := c.write(ctx, id, data); err != nil {
		return "", err
	}
	return id, nil
}

// Set fully overwrites the document with the given id, creating it if
// missing. Last writer wins.
func (c *Collection) Set(ctx context.Context, id string, data map[string]any) error {
	if c.path == "" {
		return ErrPathRequired
	}
	if strings.TrimSpace(id) == "" {
		return ErrIDRequired
	}
	return c.write(ctx, id, data)
}

// Update merges the given fields into an existing document. It fails with
// ErrNotFound if the id does not reference a stored document.
func (c *Collection) Update(ctx context.Context, id string, fields map[string]any) error {
	if c.path == "" {
		return ErrPathRequired
	}
	if strings.TrimSpace(id) == "" {
		return ErrIDRequired
	}

	err := c.store.withRetry(func() error {
		tx, err := c.store.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		var raw string
		row := tx.QueryRowContext(ctx,
			`SELECT data FROM documents WHERE collection = ? AND id = ?`, c.path, id)
		if err := row.Scan(&raw); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		var data map[string]any
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return fmt.Errorf("decode stored document: %w", err)
		}
		for k, v := range fields {
			data[k] = v
		}

		encoded, err := c.store.encode(data)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE documents SET data = ?, updated_at = ? WHERE collection = ? AND id = ?`,
			encoded, c.store.now().UTC().Format(timeLayout), c.path, id); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return err
	}

	c.store.hub.notify(c.path)
	return nil
}

// Delete removes the document with the given id. Deleting a nonexistent id
// surfaces ErrNotFound; the caller may choose to ignore it.
func (c *Collection) Delete(ctx context.Context, id string) error {
	if c.path == "" {
		return ErrPathRequired
	}
	if strings.TrimSpace(id) == "" {
		return ErrIDRequired
	}

	err := c.store.withRetry(func() error {
		res, err := c.store.db.ExecContext(ctx,
			`DELETE FROM documents WHERE collection = ? AND id = ?`, c.path, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.store.hub.notify(c.path)
	return nil
}

// Get fetches a single document by id.
func (c *Collection) Get(ctx context.Context, id string) (Document, error) {
	if c.path == "" {
		return Document{}, ErrPathRequired
	}

	var raw string
	row := c.store.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`, c.path, id)
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("get document: %w", err)
	}
	return Document{ID: id, Data: []byte(raw)}, nil
}

func (c *Collection) write(ctx context.Context, id string, data map[string]any) error {
	encoded, err := c.store.encode(data)
	if err != nil {
		return err
	}

	err = c.store.withRetry(func() error {
		_, err := c.store.db.ExecContext(ctx,
			`INSERT INTO documents (collection, id, data, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
			c.path, id, encoded, c.store.now().UTC().Format(timeLayout))
		return err
	})
	if err != nil {
		return fmt.Errorf("write document: %w", err)
	}

	c.store.hub.notify(c.path)
	return nil
}

// encode substitutes ServerTimestamp sentinels and marshals to JSON.
func (s *Store) encode(data map[string]any) (string, error) {
	resolved := make(map[string]any, len(data))
	stamp := s.now().UTC().Format(timeLayout)
	for k, v := range data {
		if _, ok := v.(serverTimestampSentinel); ok {
			resolved[k] = stamp
			continue
		}
		if t, ok := v.(time.Time); ok {
			resolved[k] = t.UTC().Format(timeLayout)
			continue
		}
		resolved[k] = v
	}

	encoded, err := json.Marshal(resolved)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(encoded), nil
}

// withRetry retries transient SQLITE_BUSY contention on writes.
func (s *Store) withRetry(op func() error) error {
	return retry.Do(op,
		retry.Attempts(3),
		retry.Delay(50*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var sqliteErr sqlite3.Error
			if errors.As(err, &sqliteErr) {
				return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
			}
			return false
		}),
	)
}

// Document is one stored document. Data is nil for a document that does not
// exist (a listener on a missing document delivers this, not an error).
type Document struct {
	ID   string
	Data []byte
}

// Exists reports whether the document was present in the store.
func (d Document) Exists() bool { return len(d.Data) > 0 }

// Decode unmarshals the document body into v. Decoding a nonexistent
// document leaves v untouched. Unknown fields are ignored; missing fields
// keep their zero values.
func (d Document) Decode(v any) error {
	if !d.Exists() {
		return nil
	}
	return json.Unmarshal(d.Data, v)
}
