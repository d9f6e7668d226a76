package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ileri/atelier/dbopen"
)

// SubscribeCollection listens to every item of the named collection, in
// ascending id order. An empty collection is delivered as an empty slice.
func (s *Store) SubscribeCollection(name string, onNext func([]json.RawMessage), onError func(error)) func() {
	load := func(ctx context.Context) ([]byte, error) {
		if s.rules.PrivilegedRead[name] && !s.authorized() {
			return nil, denied("listen", name)
		}
		return s.readCollection(ctx, name)
	}
	deliver := func(b []byte) {
		var items []json.RawMessage
		if err := json.Unmarshal(b, &items); err != nil {
			s.log.Error("docstore: corrupt collection snapshot", "collection", name, "error", err)
			return
		}
		if items == nil {
			items = []json.RawMessage{}
		}
		onNext(items)
	}
	return s.listen(load, deliver, onError)
}

// readCollection returns the collection as one JSON array.
func (s *Store) readCollection(ctx context.Context, name string) ([]byte, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM items WHERE collection = ? ORDER BY id`, name)
	if err != nil {
		return nil, wrap("read", name, err)
	}
	defer rows.Close()

	var sb strings.Builder
	sb.WriteByte('[')
	n := 0
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, wrap("read", name, err)
		}
		if n > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(data)
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("read", name, err)
	}
	sb.WriteByte(']')
	return []byte(sb.String()), nil
}

// UpsertItem stores data as the item id of the collection, replacing any
// previous item with that id. Unauthorized sessions may only create items in
// PublicCreate collections.
func (s *Store) UpsertItem(ctx context.Context, collection string, id int64, data json.RawMessage) error {
	path := fmt.Sprintf("%s/%d", collection, id)
	if !json.Valid(data) {
		return invalid("upsert", path, fmt.Errorf("item is not valid JSON"))
	}
	authorized := s.authorized()
	if !authorized && !s.rules.PublicCreate[collection] {
		return denied("upsert", path)
	}

	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		if !authorized {
			var one int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM items WHERE collection = ? AND id = ?`, collection, id).Scan(&one)
			if err == nil {
				return denied("upsert", path)
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO items (collection, id, data, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
			collection, id, string(data), s.stamp())
		return err
	})
	if err != nil {
		return wrap("upsert", path, err)
	}
	s.feed.Notify()
	return nil
}

// DeleteItem removes an item. Deleting a missing item is not an error.
// Requires an authorized session.
func (s *Store) DeleteItem(ctx context.Context, collection string, id int64) error {
	path := fmt.Sprintf("%s/%d", collection, id)
	if !s.authorized() {
		return denied("delete", path)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE collection = ? AND id = ?`, collection, id); err != nil {
		return wrap("delete", path, err)
	}
	s.feed.Notify()
	return nil
}

// GetItem reads one item. A missing item is nil. Privileged collections
// require an authorized session.
func (s *Store) GetItem(ctx context.Context, collection string, id int64) (json.RawMessage, error) {
	path := fmt.Sprintf("%s/%d", collection, id)
	if s.rules.PrivilegedRead[collection] && !s.authorized() {
		return nil, denied("get", path)
	}
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM items WHERE collection = ? AND id = ?`, collection, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get", path, err)
	}
	return json.RawMessage(data), nil
}
