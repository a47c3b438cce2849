package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"

	"trivia-match/internal/domain"
	"trivia-match/internal/store"

	"github.com/rs/zerolog/log"
)

const (
	roomsRoot = "rooms"
	// maxRoomIDAttempts bounds how many random ids Create tries before giving up.
	maxRoomIDAttempts = 8
)

func roomPath(roomID string) string { return store.Join(roomsRoot, roomID) }

func playersPath(roomID string) string { return store.Join(roomsRoot, roomID, "players") }

func playerPath(roomID, playerID string) string {
	return store.Join(roomsRoot, roomID, "players", playerID)
}

// Registry owns the room documents: creation, membership and the
// forward-only status lifecycle.
type Registry struct {
	store store.Store

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRegistry(st store.Store, rnd *rand.Rand) *Registry {
	return &Registry{store: st, rnd: rnd}
}

// NewRoomID returns a six-digit room code.
func (r *Registry) NewRoomID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strconv.Itoa(100000 + r.rnd.Intn(900000))
}

// Create allocates a fresh room in the lobby state. Ids that are already
// taken are regenerated.
func (r *Registry) Create(ctx context.Context, hostID string, settings domain.Settings) (domain.Room, error) {
	if hostID == "" {
		return domain.Room{}, fmt.Errorf("%w: host id is required", domain.ErrValidation)
	}
	for attempt := 0; attempt < maxRoomIDAttempts; attempt++ {
		id := r.NewRoomID()
		taken := false
		snap, err := r.store.Transact(ctx, roomPath(id), func(cur store.Snapshot) (any, error) {
			taken = cur.Exists()
			if taken {
				return nil, store.ErrAbort
			}
			return map[string]any{
				"status":        domain.StatusLobby,
				"hostId":        hostID,
				"settings":      settings,
				"questionIndex": 0,
				"createdAt":     store.ServerTimestamp(),
			}, nil
		})
		if err != nil {
			return domain.Room{}, err
		}
		if taken {
			log.Debug().Str("room_id", id).Msg("room id collision, regenerating")
			continue
		}
		return decodeRoom(id, snap)
	}
	return domain.Room{}, domain.ErrRoomIDExhausted
}

// Load reads the full room document, players included.
func (r *Registry) Load(ctx context.Context, roomID string) (domain.Room, error) {
	if roomID == "" {
		return domain.Room{}, fmt.Errorf("%w: room id is required", domain.ErrValidation)
	}
	snap, err := r.store.Get(ctx, roomPath(roomID))
	if err != nil {
		return domain.Room{}, err
	}
	return decodeRoom(roomID, snap)
}

// AddPlayer registers playerID in the room, or refreshes name and unit if it
// is already there. Score and answers survive a re-join.
func (r *Registry) AddPlayer(ctx context.Context, roomID, playerID, name, unit string) (domain.Player, error) {
	if roomID == "" || playerID == "" || name == "" {
		return domain.Player{}, fmt.Errorf("%w: room, player and name are required", domain.ErrValidation)
	}
	status, err := r.store.Get(ctx, store.Join(roomPath(roomID), "status"))
	if err != nil {
		return domain.Player{}, err
	}
	if !status.Exists() {
		return domain.Player{}, fmt.Errorf("%w: %s", domain.ErrRoomNotFound, roomID)
	}

	snap, err := r.store.Transact(ctx, playerPath(roomID, playerID), func(cur store.Snapshot) (any, error) {
		if !cur.Exists() {
			return map[string]any{
				"name":                name,
				"unit":                unit,
				"joinedAt":            store.ServerTimestamp(),
				"score":               0,
				"totalResponseTimeMs": 0,
			}, nil
		}
		var doc map[string]any
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		doc["name"] = name
		doc["unit"] = unit
		return doc, nil
	})
	if err != nil {
		return domain.Player{}, err
	}
	var p domain.Player
	if err := snap.Decode(&p); err != nil {
		return domain.Player{}, err
	}
	p.ID = playerID
	return p, nil
}

// GetPlayer reads a single player document.
func (r *Registry) GetPlayer(ctx context.Context, roomID, playerID string) (domain.Player, error) {
	snap, err := r.store.Get(ctx, playerPath(roomID, playerID))
	if err != nil {
		return domain.Player{}, err
	}
	if !snap.Exists() {
		return domain.Player{}, fmt.Errorf("%w: %s", domain.ErrPlayerNotFound, playerID)
	}
	var p domain.Player
	if err := snap.Decode(&p); err != nil {
		return domain.Player{}, err
	}
	p.ID = playerID
	return p, nil
}

// Players lists the room's players in join order.
func (r *Registry) Players(ctx context.Context, roomID string) ([]domain.Player, error) {
	snap, err := r.store.Get(ctx, playersPath(roomID))
	if err != nil {
		return nil, err
	}
	players := map[string]domain.Player{}
	if snap.Exists() {
		if err := snap.Decode(&players); err != nil {
			return nil, err
		}
	}
	return domain.OrderPlayers(players), nil
}

func (r *Registry) RemovePlayer(ctx context.Context, roomID, playerID string) error {
	return r.store.Delete(ctx, playerPath(roomID, playerID))
}

// BeginMatch moves a lobby room to in_progress and publishes the chosen
// question ids. Any other status is a state conflict.
func (r *Registry) BeginMatch(ctx context.Context, roomID string, settings domain.Settings, questionIDs []string) (domain.Room, error) {
	if len(questionIDs) == 0 {
		return domain.Room{}, fmt.Errorf("%w: no questions selected", domain.ErrValidation)
	}
	snap, err := r.transactRoom(ctx, roomID, func(room domain.Room, doc map[string]any) error {
		if room.Status != domain.StatusLobby {
			return fmt.Errorf("%w: room %s is %s", domain.ErrStateConflict, roomID, room.Status)
		}
		doc["status"] = domain.StatusInProgress
		doc["settings"] = settings
		doc["questionIds"] = questionIDs
		doc["questionIndex"] = 0
		return nil
	})
	if err != nil {
		return domain.Room{}, err
	}
	return decodeRoom(roomID, snap)
}

// AdvanceQuestion publishes the host's current question index. The index is
// clamped to the question list and never moves backwards.
func (r *Registry) AdvanceQuestion(ctx context.Context, roomID string, index int) error {
	_, err := r.transactRoom(ctx, roomID, func(room domain.Room, doc map[string]any) error {
		if room.Status != domain.StatusInProgress {
			return fmt.Errorf("%w: room %s is %s", domain.ErrStateConflict, roomID, room.Status)
		}
		if last := len(room.QuestionIDs); index > last {
			index = last
		}
		if index <= room.QuestionIndex {
			return store.ErrAbort
		}
		doc["questionIndex"] = index
		return nil
	})
	return err
}

// FinishMatch marks the room finished. Finishing twice is a no-op.
func (r *Registry) FinishMatch(ctx context.Context, roomID string) error {
	_, err := r.transactRoom(ctx, roomID, func(room domain.Room, doc map[string]any) error {
		if room.Status == domain.StatusFinished {
			return store.ErrAbort
		}
		if !room.Status.CanAdvanceTo(domain.StatusFinished) {
			return fmt.Errorf("%w: room %s has unknown status %q", domain.ErrStateConflict, roomID, room.Status)
		}
		doc["status"] = domain.StatusFinished
		return nil
	})
	return err
}

// SubscribeRoom calls fn with every new version of the room. exists is false
// once the room is gone.
func (r *Registry) SubscribeRoom(ctx context.Context, roomID string, fn func(room domain.Room, exists bool)) (func(), error) {
	return r.store.Subscribe(ctx, roomPath(roomID), func(snap store.Snapshot) {
		room, err := decodeRoom(roomID, snap)
		if errors.Is(err, domain.ErrRoomNotFound) {
			fn(domain.Room{ID: roomID}, false)
			return
		}
		if err != nil {
			log.Warn().Err(err).Str("room_id", roomID).Msg("skipping undecodable room snapshot")
			return
		}
		fn(room, true)
	})
}

// transactRoom runs mutate against the decoded room and writes the raw
// document back, so fields this version does not know about survive.
func (r *Registry) transactRoom(ctx context.Context, roomID string, mutate func(room domain.Room, doc map[string]any) error) (store.Snapshot, error) {
	if roomID == "" {
		return store.Snapshot{}, fmt.Errorf("%w: room id is required", domain.ErrValidation)
	}
	return r.store.Transact(ctx, roomPath(roomID), func(cur store.Snapshot) (any, error) {
		if !cur.Exists() {
			return nil, fmt.Errorf("%w: %s", domain.ErrRoomNotFound, roomID)
		}
		var room domain.Room
		if err := cur.Decode(&room); err != nil {
			return nil, err
		}
		var doc map[string]any
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		if err := mutate(room, doc); err != nil {
			return nil, err
		}
		return doc, nil
	})
}

func decodeRoom(roomID string, snap store.Snapshot) (domain.Room, error) {
	if !snap.Exists() {
		return domain.Room{}, fmt.Errorf("%w: %s", domain.ErrRoomNotFound, roomID)
	}
	var room domain.Room
	if err := snap.Decode(&room); err != nil {
		return domain.Room{}, err
	}
	room.ID = roomID
	for id, p := range room.Players {
		p.ID = id
		room.Players[id] = p
	}
	return room, nil
}
