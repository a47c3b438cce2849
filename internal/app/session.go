package app

import (
	"context"

	"trivia-match/internal/domain"
)

// Session is the per-client context: which room this client is in, as whom,
// and in what role. It replaces any process-wide current-room state.
type Session struct {
	RoomID   string
	PlayerID string
	Host     bool
	// Spectator hosts drive the match without a player record.
	Spectator bool
	// Resumed is set when the session was restored from local state.
	Resumed bool
}

// Membership is the part of the session worth persisting on the device.
func (s *Session) Membership() domain.Membership {
	return domain.Membership{RoomID: s.RoomID, PlayerID: s.PlayerID}
}

// LocalState persists the membership of a single device.
type LocalState interface {
	Load(ctx context.Context) (domain.Membership, bool, error)
	Save(ctx context.Context, m domain.Membership) error
	Clear(ctx context.Context) error
}
