package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on an embedded SQLite database. Documents are
// rows in a single table with the body held as JSON; filters and ordering are
// translated to json_extract expressions.
type SQLiteStore struct{ db *sql.DB }

// OpenSQLite opens (or creates) the database at the given path, applies
// PRAGMAs, runs migrations, and returns the store.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Single-writer engine; keep the pool at one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get returns a single document or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return decodeDocument(collection, id, raw)
}

// Set inserts or fully replaces a document.
func (s *SQLiteStore) Set(ctx context.Context, collection, id string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			data       = excluded.data,
			updated_at = excluded.updated_at`,
		collection, id, string(raw), time.Now().UTC().Unix(),
	)
	return err
}

// Query runs a bounded filtered scan over one collection.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]Document, error) {
	if q.Collection == "" {
		return nil, errors.New("query: collection is required")
	}
	if q.Limit <= 0 {
		return nil, errors.New("query: a positive limit is required")
	}

	var sb strings.Builder
	sb.WriteString(`SELECT id, data FROM documents WHERE collection = ?`)
	args := []any{q.Collection}

	for _, f := range q.Filters {
		op, err := sqlOp(f.Op)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&sb, ` AND json_extract(data, '$.%s') %s ?`, f.Path, op)
		args = append(args, filterArg(f.Value))
	}

	if q.OrderBy != "" {
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&sb, ` ORDER BY json_extract(data, '$.%s') %s`, q.OrderBy, dir)
	}
	sb.WriteString(` LIMIT ?`)
	args = append(args, q.Limit)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Document
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		doc, err := decodeDocument(q.Collection, id, raw)
		if err != nil {
			return nil, err
		}
		res = append(res, doc)
	}
	return res, rows.Err()
}

// Merge applies dot-path field updates inside a single transaction so that
// concurrent unrelated writes to the same document are not lost.
func (s *SQLiteStore) Merge(ctx context.Context, collection, id string, fields map[string]any) error {
	return s.withDoc(ctx, collection, id, func(data map[string]any) (bool, error) {
		for path, value := range fields {
			setPath(data, path, filterArg(value))
		}
		return true, nil
	})
}

// MergeIfAbsent is a conditional set-once: it writes value at path only when
// the path holds nothing yet, and reports whether the write happened.
func (s *SQLiteStore) MergeIfAbsent(ctx context.Context, collection, id, path string, value any) (bool, error) {
	wrote := false
	err := s.withDoc(ctx, collection, id, func(data map[string]any) (bool, error) {
		if _, ok := valueAtPath(data, path); ok {
			return false, nil
		}
		setPath(data, path, filterArg(value))
		wrote = true
		return true, nil
	})
	return wrote, err
}

// withDoc runs a read-modify-write cycle on one document in a transaction.
// The callback returns whether the mutated body should be written back.
func (s *SQLiteStore) withDoc(ctx context.Context, collection, id string, fn func(map[string]any) (bool, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	data := map[string]any{}
	var raw []byte
	row := tx.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	)
	switch err := row.Scan(&raw); {
	case err == nil:
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("decode %s/%s: %w", collection, id, err)
		}
	case errors.Is(err, sql.ErrNoRows):
		// merging into a missing document creates it
	default:
		return err
	}

	write, err := fn(data)
	if err != nil {
		return err
	}
	if !write {
		return tx.Commit()
	}

	out, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			data       = excluded.data,
			updated_at = excluded.updated_at`,
		collection, id, string(out), time.Now().UTC().Unix(),
	); err != nil {
		return err
	}
	return tx.Commit()
}

func decodeDocument(collection, id string, raw []byte) (Document, error) {
	data := map[string]any{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return Document{}, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return Document{Collection: collection, ID: id, Data: data}, nil
}

func sqlOp(op Op) (string, error) {
	switch op {
	case OpEq:
		return "=", nil
	case OpLt:
		return "<", nil
	case OpLte:
		return "<=", nil
	case OpGt:
		return ">", nil
	case OpGte:
		return ">=", nil
	}
	return "", fmt.Errorf("unknown filter op %q", op)
}

// filterArg normalizes values for storage and comparison. Timestamps are kept
// as RFC3339 UTC strings so range filters order correctly.
func filterArg(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339)
	}
	return v
}
