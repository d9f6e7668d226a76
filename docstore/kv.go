package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// SubscribeValue listens to the legacy value at path. onNext receives nil
// while nothing is stored there.
func (s *Store) SubscribeValue(path string, onNext func(json.RawMessage), onError func(error)) func() {
	load := func(ctx context.Context) ([]byte, error) {
		var v string
		err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE path = ?`, path).Scan(&v)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, wrap("listen", path, err)
		}
		return []byte(v), nil
	}
	return s.listen(load, func(b []byte) { onNext(json.RawMessage(b)) }, onError)
}

// SetValue replaces the value at path. A JSON null removes it. Requires an
// authorized session.
func (s *Store) SetValue(ctx context.Context, path string, value json.RawMessage) error {
	if !s.authorized() {
		return denied("set", path)
	}
	if !json.Valid(value) {
		return invalid("set", path, fmt.Errorf("value is not valid JSON"))
	}

	var err error
	if string(value) == "null" {
		_, err = s.db.ExecContext(ctx, `DELETE FROM kv WHERE path = ?`, path)
	} else {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO kv (path, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(path) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			path, string(value), s.stamp())
	}
	if err != nil {
		return wrap("set", path, err)
	}
	s.feed.Notify()
	return nil
}
