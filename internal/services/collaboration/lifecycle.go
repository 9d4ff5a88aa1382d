package collaboration

import (
	"fmt"
	"strings"

	"stratboard/internal/models"

	"github.com/sirupsen/logrus"
)

// Lifecycle moves connections in and out of rooms.
// Explicit leave and transport disconnect share the same cleanup path, and the
// registry's atomic removal makes that path run once per membership.
type Lifecycle struct {
	registry *Registry
	cursors  *CursorTracker
	log      *logrus.Entry
}

// NewLifecycle creates a lifecycle manager over the registry and cursor tracker
func NewLifecycle(registry *Registry, cursors *CursorTracker) *Lifecycle {
	return &Lifecycle{
		registry: registry,
		cursors:  cursors,
		log:      logrus.WithField("component", "session-lifecycle"),
	}
}

// Join adds the session to a registered room. The joiner is answered with
// room:joined before the other members are sent room:user-joined, so it never
// sees its own join as a remote one. A session already in another room leaves it
// first; joining a room that was never started fails with ErrRoomNotFound and
// leaves the session where it was.
func (l *Lifecycle) Join(s *Session, connectionString string) error {
	connectionString = strings.TrimSpace(connectionString)
	if connectionString == "" {
		return fmt.Errorf("%w: connectionString is required", ErrValidation)
	}
	if !l.registry.Exists(connectionString) {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, connectionString)
	}

	if current, ok := l.registry.FindRoomOf(s.ID); ok && current != connectionString {
		l.Leave(s)
	}

	color, users, err := l.registry.Join(connectionString, s.ID, s.UserID, s.Username, s)
	if err != nil {
		return err
	}
	s.setState(StateJoined)

	joined, err := models.NewEnvelope(models.EventRoomJoined, models.RoomJoinedPayload{
		UserID: s.UserID,
		Color:  color,
		Users:  users,
	})
	if err != nil {
		return fmt.Errorf("encode %s: %w", models.EventRoomJoined, err)
	}
	if !s.Enqueue(joined) {
		l.log.WithField("connection_id", s.ID).Warn("Could not deliver room:joined")
	}

	announce, err := models.NewEnvelope(models.EventRoomUserJoined, models.RoomUser{
		UserID:   s.UserID,
		Username: s.Username,
		Color:    color,
	})
	if err != nil {
		return fmt.Errorf("encode %s: %w", models.EventRoomUserJoined, err)
	}
	l.registry.Broadcast(connectionString, announce, s.ID)

	return nil
}

// Leave removes the session from its room, tells the remaining members and drops
// the user's cursor. It reports false when the session was not in a room, in
// which case nothing is broadcast.
func (l *Lifecycle) Leave(s *Session) bool {
	member, ok := l.registry.Leave(s.ID)
	if !ok {
		return false
	}
	s.setState(StateLeft)

	msg, err := models.NewEnvelope(models.EventRoomUserLeft, models.RoomUserLeftPayload{UserID: member.UserID})
	if err != nil {
		l.log.WithError(err).Error("Failed to encode room:user-left")
	} else {
		l.registry.Broadcast(member.ConnectionString, msg, "")
	}

	l.cursors.Remove(member.ConnectionString, member.UserID)
	return true
}

// LeaveRoom handles an explicit room:leave. A connection string naming a room the
// session is not in is ignored.
func (l *Lifecycle) LeaveRoom(s *Session, connectionString string) error {
	current, ok := l.registry.FindRoomOf(s.ID)
	if !ok {
		return ErrNotInRoom
	}
	if connectionString = strings.TrimSpace(connectionString); connectionString != "" && connectionString != current {
		return fmt.Errorf("%w: not a member of room %s", ErrValidation, connectionString)
	}
	l.Leave(s)
	return nil
}
