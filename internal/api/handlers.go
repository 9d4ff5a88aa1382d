package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"stratboard/internal/middleware"
	"stratboard/internal/models"
	"stratboard/internal/repository"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// RoleAdmin may open a room for any battleplan
const RoleAdmin = "admin"

// Handler handles HTTP requests
type Handler struct {
	rooms       RoomService
	wsHandler   ConnectionHandler
	battleplans BattleplanReader
	slots       SlotProvisioner
	maxSlots    int
}

func NewHandler(
	rooms RoomService,
	wsHandler ConnectionHandler,
	battleplans BattleplanReader,
	slots SlotProvisioner,
	maxSlots int,
) *Handler {
	return &Handler{
		rooms:       rooms,
		wsHandler:   wsHandler,
		battleplans: battleplans,
		slots:       slots,
		maxSlots:    maxSlots,
	}
}

type createRoomRequest struct {
	BattleplanID string `json:"battleplanId"`
}

type createRoomResponse struct {
	ConnectionString   string                `json:"connectionString"`
	ActiveBattleplanID string                `json:"activeBattleplanId"`
	ActiveFloorID      string                `json:"activeFloorId"`
	OperatorSlots      []models.OperatorSlot `json:"operatorSlots"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// HandleWebSocket upgrades a realtime connection
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.wsHandler.HandleConnection(w, r)
}

// CreateRoom starts a collaboration session for a battleplan the caller owns.
// The room gets a fresh connection string, the battleplan's first floor is made
// active and missing operator slots are created.
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := middleware.IdentityFromContext(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.BattleplanID = strings.TrimSpace(req.BattleplanID)
	if req.BattleplanID == "" {
		writeError(w, http.StatusBadRequest, "battleplanId is required")
		return
	}

	logCtx := logrus.WithFields(logrus.Fields{
		"request_id":    middleware.GetRequestID(ctx),
		"user_id":       id.UserID,
		"battleplan_id": req.BattleplanID,
	})

	bp, err := h.battleplans.GetBattleplan(ctx, req.BattleplanID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "battleplan not found")
		return
	}
	if err != nil {
		middleware.AddSpanError(ctx, err)
		logCtx.WithError(err).Error("Failed to load battleplan")
		writeError(w, http.StatusInternalServerError, "failed to load battleplan")
		return
	}
	if bp.OwnerID != id.UserID && id.Role != RoleAdmin {
		writeError(w, http.StatusForbidden, "not the owner of this battleplan")
		return
	}

	slots, err := h.slots.EnsureOperatorSlots(ctx, bp.ID, h.maxSlots)
	if err != nil {
		middleware.AddSpanError(ctx, err)
		logCtx.WithError(err).Error("Failed to provision operator slots")
		writeError(w, http.StatusInternalServerError, "failed to provision operator slots")
		return
	}

	connectionString := uuid.NewString()
	snap := h.rooms.RegisterRoom(connectionString, bp.ID, bp.FirstFloorID())

	middleware.AddSpanEvent(ctx, "room.created", attribute.String("room", connectionString))
	logCtx.WithField("room", connectionString).Info("Room created")

	writeJSON(w, http.StatusCreated, createRoomResponse{
		ConnectionString:   connectionString,
		ActiveBattleplanID: snap.ActiveBattleplanID,
		ActiveFloorID:      snap.ActiveFloorID,
		OperatorSlots:      slots,
	})
}

// GetRoom returns who is in a room, what it is looking at and the live cursors
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	connectionString := mux.Vars(r)["connectionString"]

	snap, ok := h.rooms.Snapshot(connectionString)
	if !ok {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// Health reports liveness and engine counters
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rooms, joined, sessions := h.rooms.Stats()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"rooms":       rooms,
		"connections": joined,
		"sessions":    sessions,
	})
}
