package app

import (
	"fmt"
	"net/url"
	"strings"

	"trivia-match/internal/domain"
)

// RoomParam is the query parameter carrying the room code in join links.
const RoomParam = "room"

// JoinLink builds the deep link players open to join roomID.
func JoinLink(base, roomID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: bad base url: %v", domain.ErrValidation, err)
	}
	q := u.Query()
	q.Set(RoomParam, roomID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// RoomCode extracts the room code from a deep link, or returns input itself
// when it is a bare code.
func RoomCode(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("%w: empty room code", domain.ErrValidation)
	}
	if strings.ContainsAny(input, "?/") {
		u, err := url.Parse(input)
		if err != nil {
			return "", fmt.Errorf("%w: bad link: %v", domain.ErrValidation, err)
		}
		code := u.Query().Get(RoomParam)
		if code == "" {
			return "", fmt.Errorf("%w: link has no %s parameter", domain.ErrValidation, RoomParam)
		}
		return code, nil
	}
	return input, nil
}
