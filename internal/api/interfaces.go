package api

import (
	"context"
	"net/http"

	"stratboard/internal/models"
)

// Interfaces for what the HTTP handlers consume; implementations live in
// services/collaboration and repository.

// RoomService is the part of the session manager the REST surface needs
type RoomService interface {
	RegisterRoom(connectionString, battleplanID, floorID string) models.RoomSnapshot
	Snapshot(connectionString string) (models.RoomSnapshot, bool)
	Stats() (rooms, joined, sessions int)
}

// ConnectionHandler upgrades realtime connections
type ConnectionHandler interface {
	HandleConnection(w http.ResponseWriter, r *http.Request)
}

// BattleplanReader loads a battleplan with its floors
type BattleplanReader interface {
	GetBattleplan(ctx context.Context, id string) (*models.Battleplan, error)
}

// SlotProvisioner makes sure a battleplan has its operator slots
type SlotProvisioner interface {
	EnsureOperatorSlots(ctx context.Context, battleplanID string, perSide int) ([]models.OperatorSlot, error)
}
