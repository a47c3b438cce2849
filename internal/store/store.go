// Package store defines the replicated document store every client talks to.
// Documents are addressed by slash-separated paths and may be read, written,
// merged, deleted, watched and updated with compare-and-set transactions.
package store

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrInvalidPath is returned for empty paths or paths with empty segments.
	ErrInvalidPath = errors.New("invalid store path")
	// ErrNotExist is returned when decoding a snapshot without a value.
	ErrNotExist = errors.New("no value at path")
	// ErrAbort can be returned from a TxFunc to leave the value untouched.
	// Transact then returns the current snapshot and a nil error.
	ErrAbort = errors.New("transaction aborted")
	// ErrTooManyAttempts is wrapped when a transaction kept losing races.
	ErrTooManyAttempts = errors.New("transaction retried too many times")
)

// MaxTxAttempts bounds optimistic transaction retries on conflict.
const MaxTxAttempts = 25

// Store is the replicated hierarchical key-value document store.
// Writes are visible to the writer immediately and to other clients
// eventually, through Subscribe.
type Store interface {
	Get(ctx context.Context, path string) (Snapshot, error)
	// Set overwrites the value at path. A nil value deletes it.
	Set(ctx context.Context, path string, value any) error
	// Update merges fields into path. Field keys may be relative paths.
	Update(ctx context.Context, path string, fields map[string]any) error
	Delete(ctx context.Context, path string) error
	// Subscribe calls fn with the current value and again whenever a write
	// touches path, one of its ancestors or one of its descendants and the
	// value changed. The returned function stops the subscription.
	Subscribe(ctx context.Context, path string, fn func(Snapshot)) (func(), error)
	// Transact runs fn against the current value and writes its result only
	// if the value did not change in between, retrying otherwise.
	Transact(ctx context.Context, path string, fn TxFunc) (Snapshot, error)
}

// TxFunc computes the next value from the current snapshot.
type TxFunc func(current Snapshot) (any, error)

// Snapshot is an immutable JSON view of the value stored at Path.
type Snapshot struct {
	Path string
	Raw  json.RawMessage
}

// Exists reports whether the snapshot holds a value.
func (s Snapshot) Exists() bool {
	return len(s.Raw) > 0 && string(s.Raw) != "null"
}

// Decode unmarshals the snapshot into v.
func (s Snapshot) Decode(v any) error {
	if !s.Exists() {
		return ErrNotExist
	}
	return json.Unmarshal(s.Raw, v)
}

// NewSnapshot encodes a decoded tree value as a snapshot.
func NewSnapshot(path string, value any) (Snapshot, error) {
	if value == nil {
		return Snapshot{Path: path}, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Path: path, Raw: raw}, nil
}

const serverValueKey = ".sv"

// ServerTimestamp is a placeholder resolved to the store's clock, in Unix
// milliseconds, when the write is applied.
func ServerTimestamp() map[string]any {
	return map[string]any{serverValueKey: "timestamp"}
}
