package app

import (
	"context"
	"fmt"
	"strings"

	"trivia-match/internal/domain"

	"github.com/rs/zerolog/log"
)

// HostName is the display name given to a host that also plays.
const HostName = "Host"

// Lobby covers everything that happens before the first question: hosting,
// joining and leaving rooms.
type Lobby struct {
	registry *Registry
	local    LocalState
}

func NewLobby(registry *Registry, local LocalState) *Lobby {
	return &Lobby{registry: registry, local: local}
}

type HostRequest struct {
	HostID   string
	Settings domain.Settings
	// Spectate keeps the host out of the player list.
	Spectate bool
}

type JoinRequest struct {
	RoomID   string
	PlayerID string
	Name     string
	Unit     string
}

// Host creates a room owned by req.HostID and, unless spectating, registers
// the host as a player with an empty unit.
func (l *Lobby) Host(ctx context.Context, req HostRequest) (*Session, domain.Room, error) {
	room, err := l.registry.Create(ctx, req.HostID, req.Settings)
	if err != nil {
		return nil, domain.Room{}, err
	}
	if !req.Spectate {
		if _, err := l.registry.AddPlayer(ctx, room.ID, req.HostID, HostName, ""); err != nil {
			return nil, domain.Room{}, err
		}
	}
	sess := &Session{RoomID: room.ID, PlayerID: req.HostID, Host: true, Spectator: req.Spectate}
	l.remember(ctx, sess)
	log.Info().Str("room_id", room.ID).Str("host_id", req.HostID).Msg("room created")
	return sess, room, nil
}

// Join validates the form and adds the player to an existing room.
func (l *Lobby) Join(ctx context.Context, req JoinRequest) (*Session, error) {
	req.RoomID = strings.TrimSpace(req.RoomID)
	req.Name = strings.TrimSpace(req.Name)
	req.Unit = strings.TrimSpace(req.Unit)
	var missing []string
	if req.RoomID == "" {
		missing = append(missing, "room")
	}
	if req.Name == "" {
		missing = append(missing, "name")
	}
	if req.Unit == "" {
		missing = append(missing, "unit")
	}
	if req.PlayerID == "" {
		missing = append(missing, "player id")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", domain.ErrValidation, strings.Join(missing, ", "))
	}

	room, err := l.registry.Load(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}
	if _, err := l.registry.AddPlayer(ctx, room.ID, req.PlayerID, req.Name, req.Unit); err != nil {
		return nil, err
	}
	sess := &Session{RoomID: room.ID, PlayerID: req.PlayerID, Host: room.HostID == req.PlayerID}
	l.remember(ctx, sess)
	log.Info().Str("room_id", room.ID).Str("player_id", req.PlayerID).Msg("player joined")
	return sess, nil
}

// Leave removes the player record and forgets the membership.
func (l *Lobby) Leave(ctx context.Context, sess *Session) error {
	if !sess.Spectator {
		if err := l.registry.RemovePlayer(ctx, sess.RoomID, sess.PlayerID); err != nil {
			return err
		}
	}
	if l.local != nil {
		if err := l.local.Clear(ctx); err != nil {
			log.Warn().Err(err).Msg("clear local membership")
		}
	}
	return nil
}

// remember persists the membership; losing it only disables resume.
func (l *Lobby) remember(ctx context.Context, sess *Session) {
	if l.local == nil {
		return
	}
	if err := l.local.Save(ctx, sess.Membership()); err != nil {
		log.Warn().Err(err).Str("room_id", sess.RoomID).Msg("save local membership")
	}
}
