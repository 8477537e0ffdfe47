package collection

import (
	"encoding/json"
	"reflect"
	"testing"
)

func raw(items ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(items))
	for i, s := range items {
		out[i] = json.RawMessage(s)
	}
	return out
}

func TestMerge_UnionByID(t *testing.T) {
	t.Parallel()
	local := raw(`{"id":1,"title":"A"}`)
	remote := raw(`{"id":1,"title":"A"}`, `{"id":2,"title":"B"}`)

	got := Merge(local, remote)
	want := raw(`{"id":1,"title":"A"}`, `{"id":2,"title":"B"}`)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("merged = %s, want %s", got, want)
	}
}

func TestMerge_LocalWinsOnConflict(t *testing.T) {
	t.Parallel()
	local := raw(`{"id":1,"title":"A edited"}`)
	remote := raw(`{"id":1,"title":"A"}`, `{"id":2,"title":"B"}`)

	got := Merge(local, remote)
	if string(got[0]) != `{"id":1,"title":"A edited"}` {
		t.Errorf("item 1 = %s, want the local version", got[0])
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
}

func TestMerge_Idempotent(t *testing.T) {
	t.Parallel()
	local := raw(`{"id":3,"title":"C"}`, `{"id":1,"title":"A"}`)
	remote := raw(`{"id":2,"title":"B"}`)

	first := Merge(local, remote)
	// Writing the same local collection again with first as the remote
	// must not duplicate or reorder anything.
	second := Merge(local, first)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("second merge = %s, want %s", second, first)
	}
}

func TestMerge_SortedByNumericID(t *testing.T) {
	t.Parallel()
	got := Merge(raw(`{"id":10,"title":"J"}`), raw(`{"id":2,"title":"B"}`, `{"id":1,"title":"A"}`))
	ids := make([]string, len(got))
	for i, item := range got {
		ids[i] = string(item)
	}
	if ids[0] != `{"id":1,"title":"A"}` || ids[2] != `{"id":10,"title":"J"}` {
		t.Errorf("order = %v, want numeric ascending", ids)
	}
}

func TestMerge_CompositeKeyWithoutID(t *testing.T) {
	t.Parallel()
	local := raw(`{"title":"write tests","description":"for the proxy"}`)
	remote := raw(
		`{"title":"write tests","description":"for the proxy"}`,
		`{"title":"write tests","description":"for the client"}`,
	)

	got := Merge(local, remote)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (same title, different description)", len(got))
	}
}

func TestKey(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		a, b string
		same bool
	}{
		{"same id", `{"id":7,"title":"x"}`, `{"id":7,"title":"y"}`, true},
		{"different id", `{"id":7}`, `{"id":8}`, false},
		{"composite equal", `{"title":"a","description":"b"}`, `{"title":"a","description":"b"}`, true},
		{"composite differs", `{"title":"a","description":"b"}`, `{"title":"a","description":"c"}`, false},
		{"id beats composite", `{"id":1,"title":"a"}`, `{"title":"a","description":""}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Key(json.RawMessage(tc.a)) == Key(json.RawMessage(tc.b))
			if got != tc.same {
				t.Errorf("Key(%s) == Key(%s) = %v, want %v", tc.a, tc.b, got, tc.same)
			}
		})
	}
}
