package redis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"trivia-match/internal/domain"
	"trivia-match/internal/store"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Store is a Redis-backed implementation of store.Store shared by every
// client process pointed at the same Redis.
// Layout:
//   - each top-level document (first two path segments, e.g. rooms/123456)
//     is one JSON string key: {prefix}doc:rooms/123456
//   - every write runs under WATCH/MULTI on that key, so transactions are
//     compare-and-set on the whole document
//   - after a write the changed path is published on {prefix}changes:rooms/123456
//     and subscribers re-read their own path
//
// Paths therefore need at least two segments.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewStore builds a Store. A ttl of zero keeps documents forever.
func NewStore(client *redis.Client, prefix string, ttl time.Duration) *Store {
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

func (s *Store) Get(ctx context.Context, path string) (store.Snapshot, error) {
	segs, err := s.split(path)
	if err != nil {
		return store.Snapshot{}, err
	}
	doc, err := s.load(ctx, s.client, s.docKey(segs))
	if err != nil {
		return store.Snapshot{}, err
	}
	return store.NewSnapshot(path, store.Lookup(doc, segs[2:]))
}

func (s *Store) Set(ctx context.Context, path string, value any) error {
	segs, err := s.split(path)
	if err != nil {
		return err
	}
	_, err = s.write(ctx, path, segs, func(doc any, now time.Time) (any, bool, error) {
		tree, err := store.Normalize(value, now)
		if err != nil {
			return nil, false, err
		}
		return store.Assign(doc, segs[2:], tree), true, nil
	})
	return err
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	segs, err := s.split(path)
	if err != nil {
		return err
	}
	_, err = s.write(ctx, path, segs, func(doc any, now time.Time) (any, bool, error) {
		merged, err := store.Merge(doc, segs[2:], fields, now)
		return merged, err == nil, err
	})
	return err
}

func (s *Store) Delete(ctx context.Context, path string) error {
	return s.Set(ctx, path, nil)
}

func (s *Store) Transact(ctx context.Context, path string, fn store.TxFunc) (store.Snapshot, error) {
	segs, err := s.split(path)
	if err != nil {
		return store.Snapshot{}, err
	}
	doc, err := s.write(ctx, path, segs, func(doc any, now time.Time) (any, bool, error) {
		current, err := store.NewSnapshot(path, store.Lookup(doc, segs[2:]))
		if err != nil {
			return nil, false, err
		}
		next, err := fn(current)
		if errors.Is(err, store.ErrAbort) {
			return doc, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		tree, err := store.Normalize(next, now)
		if err != nil {
			return nil, false, err
		}
		return store.Assign(doc, segs[2:], tree), true, nil
	})
	if err != nil {
		return store.Snapshot{}, err
	}
	return store.NewSnapshot(path, store.Lookup(doc, segs[2:]))
}

func (s *Store) Subscribe(ctx context.Context, path string, fn func(store.Snapshot)) (func(), error) {
	segs, err := s.split(path)
	if err != nil {
		return nil, err
	}

	// subscribe before reading so no change between the read and the
	// subscription is missed
	ps := s.client.Subscribe(ctx, s.channel(segs))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, classify(err)
	}
	initial, err := s.Get(ctx, path)
	if err != nil {
		_ = ps.Close()
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	go func() {
		defer ps.Close()
		last := initial.Raw
		fn(initial)

		messages := ps.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				changed, err := store.SplitPath(msg.Payload)
				if err != nil || !store.Related(segs, changed) {
					continue
				}
				snap, err := s.Get(subCtx, path)
				if err != nil {
					log.Warn().Err(err).Str("path", path).Msg("refresh after change notification failed")
					continue
				}
				if bytes.Equal(snap.Raw, last) {
					continue
				}
				last = snap.Raw
				fn(snap)
			}
		}
	}()
	return cancel, nil
}

type mutation func(doc any, now time.Time) (next any, changed bool, err error)

// write applies mutate to the document holding path under optimistic
// locking and returns the resulting document.
func (s *Store) write(ctx context.Context, path string, segs []string, mutate mutation) (any, error) {
	key := s.docKey(segs)
	var (
		result  any
		userErr error
	)
	txf := func(tx *redis.Tx) error {
		doc, err := s.load(ctx, tx, key)
		if err != nil {
			return err
		}
		now, err := tx.Time(ctx).Result()
		if err != nil {
			return err
		}
		next, changed, err := mutate(doc, now)
		if err != nil {
			userErr = err
			return err
		}
		result = next
		if !changed {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next == nil {
				pipe.Del(ctx, key)
			} else {
				raw, err := json.Marshal(next)
				if err != nil {
					return err
				}
				pipe.Set(ctx, key, raw, s.ttl)
			}
			pipe.Publish(ctx, s.channel(segs), path)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < store.MaxTxAttempts; attempt++ {
		userErr = nil
		err := s.client.Watch(ctx, txf, key)
		if userErr != nil {
			return nil, userErr
		}
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, classify(err)
	}
	return nil, fmt.Errorf("%w: %s: %w", domain.ErrTransientIO, path, store.ErrTooManyAttempts)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *Store) load(ctx context.Context, c getter, key string) (any, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return doc, nil
}

func (s *Store) split(path string) ([]string, error) {
	segs, err := store.SplitPath(path)
	if err != nil {
		return nil, err
	}
	if len(segs) < 2 {
		return nil, fmt.Errorf("%w: %q addresses a collection, not a document", store.ErrInvalidPath, path)
	}
	return segs, nil
}

func (s *Store) docKey(segs []string) string {
	return s.prefix + "doc:" + store.Join(segs[:2]...)
}

func (s *Store) channel(segs []string) string {
	return s.prefix + "changes:" + store.Join(segs[:2]...)
}

// classify marks infrastructure failures as transient so callers retry them.
func classify(err error) error {
	if err == nil || errors.Is(err, domain.ErrTransientIO) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrTransientIO, err)
}
