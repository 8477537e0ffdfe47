// Package storage defines persistence interfaces for the collection backend.
package storage

import (
	"context"
	"encoding/json"
)

// ItemStore persists named collections of opaque JSON items
// (todos, ideas, reviews). Items are stored in the order given to
// ReplaceCollection and returned in that same order.
type ItemStore interface {
	// Collection returns all items in the named collection.
	// An unknown collection yields an empty slice, not an error.
	Collection(ctx context.Context, name string) ([]json.RawMessage, error)
	// ReplaceCollection atomically replaces the named collection's contents.
	ReplaceCollection(ctx context.Context, name string, items []json.RawMessage) error
	// ListCollections returns the names of all non-empty collections.
	ListCollections(ctx context.Context) ([]string, error)
	// Ping verifies connectivity.
	Ping(ctx context.Context) error
	// Close releases underlying resources.
	Close() error
}
