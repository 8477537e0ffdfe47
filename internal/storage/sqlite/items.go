package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hubfolio/hubfolio/internal/collection"
)

// Collection returns all items in the named collection in stored order.
func (s *Store) Collection(ctx context.Context, name string) ([]json.RawMessage, error) {
	rows, err := s.read.QueryContext(ctx,
		`SELECT payload FROM items WHERE collection = ? ORDER BY position`, name)
	if err != nil {
		return nil, fmt.Errorf("query collection %q: %w", name, err)
	}
	defer rows.Close()

	items := []json.RawMessage{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, json.RawMessage(payload))
	}
	return items, rows.Err()
}

// ReplaceCollection atomically swaps the named collection's contents.
// Item keys are derived the same way the client merge does, so the
// uniqueness constraint mirrors the merge's deduplication.
func (s *Store) ReplaceCollection(ctx context.Context, name string, items []json.RawMessage) error {
	tx, err := s.write.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE collection = ?`, name); err != nil {
		return fmt.Errorf("clear collection %q: %w", name, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO items (collection, item_key, position, payload) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, item := range items {
		if _, err := stmt.ExecContext(ctx, name, collection.Key(item), i, string(item)); err != nil {
			return fmt.Errorf("insert item %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// ListCollections returns the names of all non-empty collections.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := s.read.QueryContext(ctx,
		`SELECT DISTINCT collection FROM items ORDER BY collection`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan collection name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
