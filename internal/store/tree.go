package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SplitPath validates a path and returns its segments.
func SplitPath(path string) ([]string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	segs := strings.Split(trimmed, "/")
	for _, s := range segs {
		if s == "" || strings.ContainsAny(s, ".#$[]") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return segs, nil
}

// Join builds a path from segments.
func Join(segs ...string) string {
	return strings.Join(segs, "/")
}

// Related reports whether one path is a prefix of the other.
func Related(a, b []string) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Normalize converts an arbitrary Go value into a JSON tree
// (map[string]any, []any, string, float64, bool), resolving server
// timestamps against now and dropping null members.
func Normalize(v any, now time.Time) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return prune(resolve(tree, now)), nil
}

func resolve(v any, now time.Time) any {
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 1 && t[serverValueKey] == "timestamp" {
			return float64(now.UnixMilli())
		}
		for k, child := range t {
			t[k] = resolve(child, now)
		}
	case []any:
		for i, child := range t {
			t[i] = resolve(child, now)
		}
	}
	return v
}

func prune(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	for k, child := range m {
		child = prune(child)
		if child == nil {
			delete(m, k)
			continue
		}
		m[k] = child
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// Lookup returns the subtree at segs, or nil.
func Lookup(root any, segs []string) any {
	cur := root
	for _, s := range segs {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[s]
	}
	return cur
}

// Assign places v at segs inside root and returns the new root. A nil v
// removes the subtree; maps left empty are removed as well.
func Assign(root any, segs []string, v any) any {
	if len(segs) == 0 {
		return v
	}
	m, ok := root.(map[string]any)
	if !ok {
		m = make(map[string]any)
	}
	child := Assign(m[segs[0]], segs[1:], v)
	if child == nil {
		delete(m, segs[0])
	} else {
		m[segs[0]] = child
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// Merge applies an Update field map below base.
func Merge(root any, base []string, fields map[string]any, now time.Time) (any, error) {
	for key, value := range fields {
		rel, err := SplitPath(key)
		if err != nil {
			return root, err
		}
		normalized, err := Normalize(value, now)
		if err != nil {
			return root, err
		}
		full := append(append([]string{}, base...), rel...)
		root = Assign(root, full, normalized)
	}
	return root, nil
}
