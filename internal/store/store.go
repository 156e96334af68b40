// Package store handles durable key-value persistence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/verte-zerg/tuiquiz/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// KV is the key-value port the practice packages persist through.
type KV interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Delete removes all keys in one step. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
	// Apply runs a batch atomically.
	Apply(ctx context.Context, b Batch) error
}

// Entry is one key-value write.
type Entry struct {
	Key   string
	Value string
}

// Batch groups deletes and ordered writes. Deletes run first.
type Batch struct {
	Deletes        []string
	DeletePrefixes []string
	Sets           []Entry
}

// Store is a KV backed by a SQLite table.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Get implements KV.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("get", key, err)
	}
	return value, true, nil
}

// Set implements KV.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return unavailable("set", key, err)
	}
	return nil
}

// Delete implements KV.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.Apply(ctx, Batch{Deletes: keys})
}

// Apply implements KV. The batch runs in one transaction.
func (s *Store) Apply(ctx context.Context, b Batch) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin", "", err)
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	if len(b.Deletes) > 0 {
		placeholders := make([]string, len(b.Deletes))
		args := make([]any, len(b.Deletes))
		for i, key := range b.Deletes {
			placeholders[i] = "?"
			args[i] = key
		}
		query := fmt.Sprintf(`DELETE FROM kv WHERE key IN (%s)`, strings.Join(placeholders, ","))
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return unavailable("delete", "", err)
		}
	}
	for _, prefix := range b.DeletePrefixes {
		if _, err = tx.ExecContext(ctx, `DELETE FROM kv WHERE substr(key, 1, ?) = ?`, len(prefix), prefix); err != nil {
			return unavailable("delete", prefix, err)
		}
	}
	if len(b.Sets) > 0 {
		stmt, perr := tx.PrepareContext(ctx,
			`INSERT INTO kv (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`)
		if perr != nil {
			err = perr
			return unavailable("prepare", "", err)
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for _, e := range b.Sets {
			if _, err = stmt.ExecContext(ctx, e.Key, e.Value); err != nil {
				return unavailable("set", e.Key, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return unavailable("commit", "", err)
	}
	return nil
}

func unavailable(op, key string, err error) error {
	if key == "" {
		return fmt.Errorf("%w: %s: %v", model.ErrStorageUnavailable, op, err)
	}
	return fmt.Errorf("%w: %s %q: %v", model.ErrStorageUnavailable, op, key, err)
}
