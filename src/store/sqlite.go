package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on top of a single sqlite table. Every
// document is one row holding the JSON payload; the (collection, id) pair is
// the primary key, which gives us the per-document atomicity the adapter
// surface promises.
type SQLiteStore struct {
	db *sql.DB
}

const createDocumentsTable = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	data TEXT NOT NULL,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (collection, id)
);`

// NewSQLiteStore opens (or creates) the backing database and ensures the
// documents table exists. Use ":memory:" for tests.
func NewSQLiteStore(databasePath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", databasePath, err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy_timeout: %w", err)
	}
	if _, err := db.Exec(createDocumentsTable); err != nil {
		return nil, fmt.Errorf("failed to create documents table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Get(collection, id string) (map[string]any, error) {
	var raw string
	err := s.db.QueryRow(
		"SELECT data FROM documents WHERE collection = ? AND id = ?",
		collection, id,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("corrupt document %s/%s: %w", collection, id, err)
	}
	return data, nil
}

func (s *SQLiteStore) Add(collection, id string, data map[string]any) (string, error) {
	if id == "" {
		generated, err := generateDocumentID()
		if err != nil {
			return "", err
		}
		id = generated
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to encode document for %s: %w", collection, err)
	}
	_, err = s.db.Exec(
		"INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)",
		collection, id, string(raw),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("%w: %s/%s", ErrDuplicate, collection, id)
		}
		return "", fmt.Errorf("failed to add %s/%s: %w", collection, id, err)
	}
	return id, nil
}

func (s *SQLiteStore) Update(collection, id string, fields map[string]any) error {
	return s.readModifyWrite(collection, id, func(data map[string]any) error {
		for path, value := range fields {
			setPath(data, path, value)
		}
		return nil
	})
}

func (s *SQLiteStore) Delete(collection, id string) error {
	res, err := s.db.Exec("DELETE FROM documents WHERE collection = ? AND id = ?", collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	return nil
}

func (s *SQLiteStore) List(collection string) ([]Document, error) {
	rows, err := s.db.Query(
		"SELECT id, data FROM documents WHERE collection = ? ORDER BY id",
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan document in %s: %w", collection, err)
		}
		var data map[string]any
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return nil, fmt.Errorf("corrupt document %s/%s: %w", collection, id, err)
		}
		docs = append(docs, Document{ID: id, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	return docs, nil
}

func (s *SQLiteStore) Exists(collection, id string) (bool, error) {
	var one int
	err := s.db.QueryRow(
		"SELECT 1 FROM documents WHERE collection = ? AND id = ?",
		collection, id,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check %s/%s: %w", collection, id, err)
	}
	return true, nil
}

func (s *SQLiteStore) ArrayUnion(collection, id, fieldPath string, elems ...any) error {
	return s.readModifyWrite(collection, id, func(data map[string]any) error {
		arr := arrayAt(data, fieldPath)
		for _, elem := range elems {
			norm, err := normalizeValue(elem)
			if err != nil {
				return err
			}
			if !containsValue(arr, norm) {
				arr = append(arr, norm)
			}
		}
		setPath(data, fieldPath, arr)
		return nil
	})
}

func (s *SQLiteStore) ArrayRemove(collection, id, fieldPath string, elems ...any) error {
	return s.readModifyWrite(collection, id, func(data map[string]any) error {
		arr := arrayAt(data, fieldPath)
		kept := make([]any, 0, len(arr))
		for _, existing := range arr {
			remove := false
			for _, elem := range elems {
				norm, err := normalizeValue(elem)
				if err != nil {
					return err
				}
				if reflect.DeepEqual(existing, norm) {
					remove = true
					break
				}
			}
			if !remove {
				kept = append(kept, existing)
			}
		}
		setPath(data, fieldPath, kept)
		return nil
	})
}

// readModifyWrite runs mutate against the decoded document inside an
// immediate transaction, so concurrent field updates on the same document
// serialize instead of clobbering each other.
func (s *SQLiteStore) readModifyWrite(collection, id string, mutate func(map[string]any) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin update of %s/%s: %w", collection, id, err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRow(
		"SELECT data FROM documents WHERE collection = ? AND id = ?",
		collection, id,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s/%s: %w", collection, id, err)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return fmt.Errorf("corrupt document %s/%s: %w", collection, id, err)
	}
	if err := mutate(data); err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}

	updated, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, id, err)
	}
	if _, err := tx.Exec(
		"UPDATE documents SET data = ?, updated_at = CURRENT_TIMESTAMP WHERE collection = ? AND id = ?",
		string(updated), collection, id,
	); err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", collection, id, err)
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

const documentIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// generateDocumentID produces a 20-character random id for documents added
// without an explicit id.
func generateDocumentID() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate document id: %w", err)
	}
	for i := range b {
		b[i] = documentIDAlphabet[int(b[i])%len(documentIDAlphabet)]
	}
	return string(b), nil
}

// normalizeValue round-trips a value through JSON so that values written via
// typed structs compare equal to values decoded from stored documents.
func normalizeValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("unsupported array element: %w", err)
	}
	var norm any
	if err := json.Unmarshal(raw, &norm); err != nil {
		return nil, fmt.Errorf("unsupported array element: %w", err)
	}
	return norm, nil
}

func containsValue(arr []any, v any) bool {
	for _, existing := range arr {
		if reflect.DeepEqual(existing, v) {
			return true
		}
	}
	return false
}

// arrayAt returns the array at a dotted field path, or an empty array if the
// path is absent or not an array.
func arrayAt(data map[string]any, fieldPath string) []any {
	v := getPath(data, fieldPath)
	if arr, ok := v.([]any); ok {
		return arr
	}
	return []any{}
}

func getPath(data map[string]any, fieldPath string) any {
	parts := strings.Split(fieldPath, ".")
	var current any = data
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[part]
	}
	return current
}

// setPath writes value at a dotted field path, creating intermediate objects
// as needed. Intermediate non-object values are replaced.
func setPath(data map[string]any, fieldPath string, value any) {
	parts := strings.Split(fieldPath, ".")
	current := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}
