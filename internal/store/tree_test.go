package store

import (
	"errors"
	"testing"
	"time"
)

func TestSplitPath(t *testing.T) {
	segs, err := SplitPath("/rooms/123456/players/u1/")
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(segs) != 4 || segs[3] != "u1" {
		t.Fatalf("unexpected segments %v", segs)
	}
	for _, bad := range []string{"", "/", "rooms//1", "rooms/a.b"} {
		if _, err := SplitPath(bad); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("expected %q to be invalid, got %v", bad, err)
		}
	}
}

func TestNormalizeResolvesTimestampsAndDropsNulls(t *testing.T) {
	now := time.UnixMilli(42)
	tree, err := Normalize(map[string]any{
		"joinedAt": ServerTimestamp(),
		"gone":     nil,
		"nested":   map[string]any{"empty": nil},
		"ids":      []string{"q1", "q2"},
	}, now)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	m := tree.(map[string]any)
	if m["joinedAt"] != float64(42) {
		t.Fatalf("expected resolved timestamp, got %v", m["joinedAt"])
	}
	if _, ok := m["gone"]; ok {
		t.Fatalf("expected null member dropped")
	}
	if _, ok := m["nested"]; ok {
		t.Fatalf("expected empty map dropped")
	}
	if ids, ok := m["ids"].([]any); !ok || len(ids) != 2 {
		t.Fatalf("expected array preserved, got %v", m["ids"])
	}
}

func TestAssignAndLookup(t *testing.T) {
	var root any
	root = Assign(root, []string{"rooms", "1", "status"}, "lobby")
	root = Assign(root, []string{"rooms", "1", "players", "u1", "score"}, float64(10))
	if Lookup(root, []string{"rooms", "1", "status"}) != "lobby" {
		t.Fatalf("expected status lookup")
	}
	root = Assign(root, []string{"rooms", "1", "players", "u1"}, nil)
	if Lookup(root, []string{"rooms", "1", "players"}) != nil {
		t.Fatalf("expected empty players map pruned")
	}
	root = Assign(root, []string{"rooms", "1", "status"}, nil)
	if root != nil {
		t.Fatalf("expected root pruned to nil, got %v", root)
	}
}

func TestRelated(t *testing.T) {
	a := []string{"rooms", "1"}
	if !Related(a, []string{"rooms", "1", "players"}) || !Related(a, []string{"rooms"}) {
		t.Fatalf("expected prefix paths to be related")
	}
	if Related(a, []string{"rooms", "2"}) {
		t.Fatalf("expected sibling paths to be unrelated")
	}
}
