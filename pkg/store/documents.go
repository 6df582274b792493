package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Get returns the document with the given id.
func (s *Store) Get(ctx context.Context, collection string, id string) (map[string]interface{}, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND doc_id = $2`,
		collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("corrupt document %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// Set writes fields to a document. With merge the fields are combined into
// the existing document at the JSONB level; without it the document is
// replaced wholesale. Either way the write is a single atomic upsert.
func (s *Store) Set(ctx context.Context, collection string, id string, fields map[string]interface{}, merge bool) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode document fields: %w", err)
	}

	query := `INSERT INTO documents (collection, doc_id, data, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (collection, doc_id) DO UPDATE
		SET data = EXCLUDED.data, updated_at = NOW()`
	if merge {
		query = `INSERT INTO documents (collection, doc_id, data, updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (collection, doc_id) DO UPDATE
			SET data = documents.data || EXCLUDED.data, updated_at = NOW()`
	}
	_, err = s.db.ExecContext(ctx, query, collection, id, raw)
	return err
}

// Delete removes a document. Deleting an absent document is not an error.
func (s *Store) Delete(ctx context.Context, collection string, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND doc_id = $2`, collection, id)
	return err
}

// Query returns the documents whose field equals value. Only equality is
// supported; anything richer belongs in a real table, not the document store.
func (s *Store) Query(ctx context.Context, collection string, field string, op string, value interface{}) ([]map[string]interface{}, error) {
	if op != "==" {
		return nil, fmt.Errorf("unsupported query operator: %s", op)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND data->>$2 = $3`,
		collection, field, fmt.Sprint(value))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []map[string]interface{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var doc map[string]interface{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
