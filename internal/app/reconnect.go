package app

import (
	"context"
	"errors"

	"trivia-match/internal/domain"

	"github.com/rs/zerolog/log"
)

// Reconnector resumes a previous session from the device's local state.
type Reconnector struct {
	registry *Registry
	local    LocalState
}

func NewReconnector(registry *Registry, local LocalState) *Reconnector {
	return &Reconnector{registry: registry, local: local}
}

// Restore returns the remembered session for identity if its room and player
// still exist. Stale memberships are cleared. It never fails: any problem
// just means there is nothing to resume.
func (r *Reconnector) Restore(ctx context.Context, identity string) (*Session, bool) {
	m, ok, err := r.local.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("read local membership")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	logger := log.With().Str("room_id", m.RoomID).Str("player_id", m.PlayerID).Logger()

	if m.RoomID == "" || m.PlayerID == "" || m.PlayerID != identity {
		r.discard(ctx, "identity mismatch")
		return nil, false
	}
	room, err := r.registry.Load(ctx, m.RoomID)
	if errors.Is(err, domain.ErrRoomNotFound) {
		r.discard(ctx, "room gone")
		return nil, false
	}
	if err != nil {
		// keep the membership, the store may come back
		logger.Warn().Err(err).Msg("resume check failed")
		return nil, false
	}

	host := room.HostID == identity
	_, playing := room.Players[identity]
	if !playing && !host {
		r.discard(ctx, "player gone")
		return nil, false
	}
	logger.Info().Str("status", string(room.Status)).Msg("session resumed")
	return &Session{
		RoomID:    room.ID,
		PlayerID:  identity,
		Host:      host,
		Spectator: host && !playing,
		Resumed:   true,
	}, true
}

func (r *Reconnector) discard(ctx context.Context, reason string) {
	log.Info().Str("reason", reason).Msg("discarding stale membership")
	if err := r.local.Clear(ctx); err != nil {
		log.Warn().Err(err).Msg("clear local membership")
	}
}
