package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"trivia-match/internal/domain"
	"trivia-match/internal/store"

	"github.com/jonboulle/clockwork"
)

// Store is an in-process implementation of store.Store. Every client that
// shares the same *Store sees the same documents, which makes it the
// replicated store for tests and single-node runs.
type Store struct {
	clock clockwork.Clock

	mu   sync.Mutex
	root any
	subs map[*subscription]struct{}
}

type subscription struct {
	path string
	segs []string
	last []byte
	ch   chan store.Snapshot
	done chan struct{}
	once sync.Once
}

func NewStore() *Store {
	return NewStoreWithClock(clockwork.NewRealClock())
}

// NewStoreWithClock resolves server timestamps against clock.
func NewStoreWithClock(clock clockwork.Clock) *Store {
	return &Store{
		clock: clock,
		subs:  make(map[*subscription]struct{}),
	}
}

func (s *Store) Get(_ context.Context, path string) (store.Snapshot, error) {
	segs, err := store.SplitPath(path)
	if err != nil {
		return store.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(path, segs)
}

func (s *Store) Set(_ context.Context, path string, value any) error {
	segs, err := store.SplitPath(path)
	if err != nil {
		return err
	}
	tree, err := store.Normalize(value, s.clock.Now())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = store.Assign(s.root, segs, tree)
	s.notifyLocked(segs)
	return nil
}

func (s *Store) Update(_ context.Context, path string, fields map[string]any) error {
	segs, err := store.SplitPath(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	root, err := store.Merge(s.root, segs, fields, s.clock.Now())
	if err != nil {
		return err
	}
	s.root = root
	s.notifyLocked(segs)
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	return s.Set(ctx, path, nil)
}

func (s *Store) Transact(_ context.Context, path string, fn store.TxFunc) (store.Snapshot, error) {
	segs, err := store.SplitPath(path)
	if err != nil {
		return store.Snapshot{}, err
	}
	for attempt := 0; attempt < store.MaxTxAttempts; attempt++ {
		s.mu.Lock()
		current, err := s.snapshotLocked(path, segs)
		s.mu.Unlock()
		if err != nil {
			return store.Snapshot{}, err
		}

		next, err := fn(current)
		if errors.Is(err, store.ErrAbort) {
			return current, nil
		}
		if err != nil {
			return store.Snapshot{}, err
		}
		tree, err := store.Normalize(next, s.clock.Now())
		if err != nil {
			return store.Snapshot{}, err
		}

		s.mu.Lock()
		latest, err := s.snapshotLocked(path, segs)
		if err != nil || !bytes.Equal(latest.Raw, current.Raw) {
			// lost the race, recompute from the new value
			s.mu.Unlock()
			continue
		}
		s.root = store.Assign(s.root, segs, tree)
		s.notifyLocked(segs)
		committed, err := s.snapshotLocked(path, segs)
		s.mu.Unlock()
		return committed, err
	}
	return store.Snapshot{}, fmt.Errorf("%w: %s: %w", domain.ErrTransientIO, path, store.ErrTooManyAttempts)
}

func (s *Store) Subscribe(ctx context.Context, path string, fn func(store.Snapshot)) (func(), error) {
	segs, err := store.SplitPath(path)
	if err != nil {
		return nil, err
	}
	sub := &subscription{
		path: path,
		segs: segs,
		ch:   make(chan store.Snapshot, 16),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	initial, err := s.snapshotLocked(path, segs)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	sub.last = initial.Raw
	sub.ch <- initial
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.done:
				return
			case snap := <-sub.ch:
				fn(snap)
			}
		}
	}()

	cancel := func() {
		s.mu.Lock()
		delete(s.subs, sub)
		s.mu.Unlock()
		sub.once.Do(func() { close(sub.done) })
	}
	return cancel, nil
}

func (s *Store) snapshotLocked(path string, segs []string) (store.Snapshot, error) {
	return store.NewSnapshot(path, store.Lookup(s.root, segs))
}

func (s *Store) notifyLocked(changed []string) {
	for sub := range s.subs {
		if !store.Related(sub.segs, changed) {
			continue
		}
		snap, err := s.snapshotLocked(sub.path, sub.segs)
		if err != nil || bytes.Equal(snap.Raw, sub.last) {
			continue
		}
		sub.last = snap.Raw
		select {
		case sub.ch <- snap:
		default:
			// slow subscriber: drop the oldest pending snapshot, keep the latest
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- snap
		}
	}
}
