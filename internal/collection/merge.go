// Package collection implements merging and ordering for the opaque JSON
// item collections (todos, ideas, reviews) the portfolio UI persists.
//
// Saves are merge-before-write: the current remote collection is unioned
// with the local one so a write never silently drops items added
// concurrently elsewhere. Items are matched by a stable per-item key.
package collection

import (
	"encoding/json"
	"sort"

	"github.com/tidwall/gjson"
)

// keySep separates the composite key fields. A unit separator keeps
// titles containing pipes or colons from colliding.
const keySep = "\x1f"

// Key derives the stable identity of an item: the explicit "id" field
// when present, else a composite of title and description.
func Key(item json.RawMessage) string {
	if id := gjson.GetBytes(item, "id"); id.Exists() {
		return "id" + keySep + id.String()
	}
	return gjson.GetBytes(item, "title").String() + keySep +
		gjson.GetBytes(item, "description").String()
}

// Merge unions local and remote by Key, preferring the local version of
// an item present on both sides, and returns the deduplicated result in
// deterministic order. Merging the same inputs twice yields an
// identical result.
func Merge(local, remote []json.RawMessage) []json.RawMessage {
	seen := make(map[string]struct{}, len(local)+len(remote))
	merged := make([]json.RawMessage, 0, len(local)+len(remote))

	for _, item := range local {
		k := Key(item)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		merged = append(merged, item)
	}
	for _, item := range remote {
		k := Key(item)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		merged = append(merged, item)
	}

	Sort(merged)
	return merged
}

// Sort orders items deterministically: numeric ids ascending first,
// then keyed items lexicographically.
func Sort(items []json.RawMessage) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := gjson.GetBytes(items[i], "id"), gjson.GetBytes(items[j], "id")
		switch {
		case a.Exists() && b.Exists():
			if a.Num != b.Num {
				return a.Num < b.Num
			}
			return a.String() < b.String()
		case a.Exists():
			return true
		case b.Exists():
			return false
		default:
			return Key(items[i]) < Key(items[j])
		}
	})
}
