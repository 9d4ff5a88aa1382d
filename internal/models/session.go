package models

import (
	"time"

	"github.com/segmentio/ksuid"
)

// Session represents one live websocket connection of an authenticated user
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	Role         string    `json:"role"`
	ConnectedAt  time.Time `json:"connectedAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

// NewSession mints a connection id for an authenticated user
func NewSession(userID, username, role string) *Session {
	now := time.Now()
	return &Session{
		ID:           ksuid.New().String(),
		UserID:       userID,
		Username:     username,
		Role:         role,
		ConnectedAt:  now,
		LastActiveAt: now,
	}
}

// RoomUser is a member of a room as seen by clients
type RoomUser struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Color    string `json:"color"`
}

// CursorState is the ephemeral pointer position of a user in a room.
// Advisory presence only, never persisted.
type CursorState struct {
	UserID        string    `json:"userId"`
	X             float64   `json:"x"`
	Y             float64   `json:"y"`
	FloorID       string    `json:"floorId"`
	Color         string    `json:"color"`
	IsLaser       bool      `json:"isLaser,omitempty"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}

// MaxChatLength bounds a chat message after trimming
const MaxChatLength = 500

// ChatMessage is relayed to the room and not persisted
type ChatMessage struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
	Color     string `json:"color"`
}

// RoomSnapshot is the presence view of a room
type RoomSnapshot struct {
	ConnectionString   string        `json:"connectionString"`
	ActiveBattleplanID string        `json:"activeBattleplanId,omitempty"`
	ActiveFloorID      string        `json:"activeFloorId,omitempty"`
	Users              []RoomUser    `json:"users"`
	Cursors            []CursorState `json:"cursors"`
}
