package domain

import "errors"

var (
	// ErrRoomNotFound is returned when a room document does not exist.
	ErrRoomNotFound = errors.New("room not found")
	// ErrPlayerNotFound is returned when a player document does not exist.
	ErrPlayerNotFound = errors.New("player not found in room")
	// ErrValidation marks missing or malformed input, e.g. join fields.
	ErrValidation = errors.New("validation failed")
	// ErrStateConflict marks an action that is not valid in the current state
	// (duplicate start, answer after lock). Callers treat it as a no-op.
	ErrStateConflict = errors.New("state conflict")
	// ErrTransientIO wraps store failures that are worth retrying.
	ErrTransientIO = errors.New("transient store failure")
	// ErrQuestionBankNotFound indicates the question bank could not be loaded.
	ErrQuestionBankNotFound = errors.New("question bank not found")
	// ErrRoomIDExhausted is returned when no free room id was found.
	ErrRoomIDExhausted = errors.New("could not allocate a free room id")
)
