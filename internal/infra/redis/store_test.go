package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"trivia-match/internal/domain"
	"trivia-match/internal/store"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return NewStore(newClient(mr), "trivia:", time.Hour), mr
}

func TestStoreWritesOneDocumentPerRoom(t *testing.T) {
	ctx := context.Background()
	st, mr := newTestStore(t)
	mr.SetTime(time.UnixMilli(1_700_000_000_000))

	if err := st.Set(ctx, "rooms/123456", map[string]any{
		"status":    "lobby",
		"createdAt": store.ServerTimestamp(),
	}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := st.Set(ctx, "rooms/123456/players/u1", map[string]any{"name": "Ana", "score": 0}); err != nil {
		t.Fatalf("set player: %v", err)
	}
	if !mr.Exists("trivia:doc:rooms/123456") {
		t.Fatalf("expected room document key")
	}
	if ttl := mr.TTL("trivia:doc:rooms/123456"); ttl != time.Hour {
		t.Fatalf("expected document ttl of 1h, got %v", ttl)
	}

	snap, err := st.Get(ctx, "rooms/123456/players/u1/name")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var name string
	if err := snap.Decode(&name); err != nil || name != "Ana" {
		t.Fatalf("expected Ana, got %q (%v)", name, err)
	}

	var createdAt int64
	snap, _ = st.Get(ctx, "rooms/123456/createdAt")
	if err := snap.Decode(&createdAt); err != nil || createdAt != 1_700_000_000_000 {
		t.Fatalf("expected redis server time, got %d (%v)", createdAt, err)
	}

	if err := st.Delete(ctx, "rooms/123456"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists("trivia:doc:rooms/123456") {
		t.Fatalf("expected document key removed")
	}
}

func TestStoreRejectsCollectionPaths(t *testing.T) {
	st, _ := newTestStore(t)
	if _, err := st.Get(context.Background(), "rooms"); !errors.Is(err, store.ErrInvalidPath) {
		t.Fatalf("expected invalid path, got %v", err)
	}
}

func TestStoreUpdateMergesFields(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t)

	_ = st.Set(ctx, "rooms/1", map[string]any{"status": "lobby", "questionIndex": 0})
	if err := st.Update(ctx, "rooms/1", map[string]any{
		"status":                 "in_progress",
		"settings/questionCount": 5,
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	var room domain.Room
	snap, _ := st.Get(ctx, "rooms/1")
	if err := snap.Decode(&room); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if room.Status != domain.StatusInProgress || room.Settings.QuestionCount != 5 || room.QuestionIndex != 0 {
		t.Fatalf("unexpected merged room %+v", room)
	}
}

func TestStoreTransactSerializesConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.Transact(ctx, "counters/c1/value", func(cur store.Snapshot) (any, error) {
				var n int
				if cur.Exists() {
					_ = cur.Decode(&n)
				}
				return n + 1, nil
			})
			if err != nil {
				t.Errorf("transact: %v", err)
			}
		}()
	}
	wg.Wait()

	var n int
	snap, _ := st.Get(ctx, "counters/c1/value")
	if err := snap.Decode(&n); err != nil || n != 10 {
		t.Fatalf("expected 10, got %d (%v)", n, err)
	}
}

func TestStoreTransactAbortAndErrors(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t)
	_ = st.Set(ctx, "rooms/1/status", "finished")

	snap, err := st.Transact(ctx, "rooms/1/status", func(store.Snapshot) (any, error) {
		return nil, store.ErrAbort
	})
	if err != nil || string(snap.Raw) != `"finished"` {
		t.Fatalf("expected abort to return current value, got %s (%v)", snap.Raw, err)
	}
	_, err = st.Transact(ctx, "rooms/1/status", func(store.Snapshot) (any, error) {
		return nil, domain.ErrStateConflict
	})
	if !errors.Is(err, domain.ErrStateConflict) {
		t.Fatalf("expected state conflict to surface unwrapped, got %v", err)
	}
}

func TestStoreSubscribeAcrossClients(t *testing.T) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	// two independent clients, as two processes would have
	writer := NewStore(newClient(mr), "trivia:", 0)
	reader := NewStore(newClient(mr), "trivia:", 0)

	got := make(chan store.Snapshot, 8)
	cancel, err := reader.Subscribe(ctx, "rooms/1/status", func(s store.Snapshot) { got <- s })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	if s := waitSnapshot(t, got); s.Exists() {
		t.Fatalf("expected empty initial snapshot, got %s", s.Raw)
	}
	for _, want := range []string{"lobby", "in_progress"} {
		_ = writer.Set(ctx, "rooms/1/players/u1/name", want) // unrelated path, must not fire
		if err := writer.Set(ctx, "rooms/1/status", want); err != nil {
			t.Fatalf("set status: %v", err)
		}
		var status string
		if err := waitSnapshot(t, got).Decode(&status); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if status != want {
			t.Fatalf("expected %s, got %s", want, status)
		}
	}
}

func waitSnapshot(t *testing.T, ch <-chan store.Snapshot) store.Snapshot {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for snapshot")
	}
	return store.Snapshot{}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
