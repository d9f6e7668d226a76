package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ileri/atelier/dbopen"
)

// SubscribeDocument listens to the document at path. onNext receives the
// document JSON, or nil while the document does not exist.
func (s *Store) SubscribeDocument(path string, onNext func(json.RawMessage), onError func(error)) func() {
	load := func(ctx context.Context) ([]byte, error) {
		return s.readDocument(ctx, path)
	}
	return s.listen(load, func(b []byte) { onNext(json.RawMessage(b)) }, onError)
}

// GetDocument reads the document at path once. A missing document is nil.
func (s *Store) GetDocument(ctx context.Context, path string) (json.RawMessage, error) {
	return s.readDocument(ctx, path)
}

func (s *Store) readDocument(ctx context.Context, path string) ([]byte, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM documents WHERE path = ?`, path).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("read", path, err)
	}
	return []byte(data), nil
}

// SetDocument writes data at path. With merge, the top-level keys of data
// are merged into the existing document (nested objects recursively);
// otherwise the document is replaced. Requires an authorized session.
func (s *Store) SetDocument(ctx context.Context, path string, data json.RawMessage, merge bool) error {
	if !s.authorized() {
		return denied("set", path)
	}
	var incoming map[string]any
	if err := json.Unmarshal(data, &incoming); err != nil || incoming == nil {
		return invalid("set", path, fmt.Errorf("document must be a JSON object"))
	}

	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		doc := incoming
		if merge {
			var cur string
			err := tx.QueryRowContext(ctx, `SELECT data FROM documents WHERE path = ?`, path).Scan(&cur)
			switch {
			case errors.Is(err, sql.ErrNoRows):
			case err != nil:
				return err
			default:
				var existing map[string]any
				if err := json.Unmarshal([]byte(cur), &existing); err == nil && existing != nil {
					doc = mergeObjects(existing, incoming)
				}
			}
		}
		b, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO documents (path, data, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(path) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
			path, string(b), s.stamp())
		return err
	})
	if err != nil {
		return wrap("set", path, err)
	}
	s.feed.Notify()
	return nil
}

func mergeObjects(dst, src map[string]any) map[string]any {
	for k, v := range src {
		if sv, ok := v.(map[string]any); ok {
			if dv, ok := dst[k].(map[string]any); ok {
				dst[k] = mergeObjects(dv, sv)
				continue
			}
		}
		dst[k] = v
	}
	return dst
}
