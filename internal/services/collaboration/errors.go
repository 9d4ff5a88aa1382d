package collaboration

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when a connection presents no valid credential
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotInRoom is returned when an event arrives for a connection with no room
	ErrNotInRoom = errors.New("connection is not in a room")
	// ErrValidation is returned for malformed or out-of-bounds event payloads
	ErrValidation = errors.New("invalid event payload")
	// ErrPersistence wraps datastore failures met while handling an event
	ErrPersistence = errors.New("persistence failure")
	// ErrRoomNotFound is returned when joining a connection string no session was started for
	ErrRoomNotFound = fmt.Errorf("%w: room not found", ErrValidation)
	// ErrUnknownEvent is returned for event names the engine does not route
	ErrUnknownEvent = errors.New("unknown event")
)
