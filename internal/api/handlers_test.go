package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stratboard/internal/auth"
	"stratboard/internal/models"
	"stratboard/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRooms struct {
	mock.Mock
}

func (m *mockRooms) RegisterRoom(connectionString, battleplanID, floorID string) models.RoomSnapshot {
	return m.Called(connectionString, battleplanID, floorID).Get(0).(models.RoomSnapshot)
}

func (m *mockRooms) Snapshot(connectionString string) (models.RoomSnapshot, bool) {
	args := m.Called(connectionString)
	return args.Get(0).(models.RoomSnapshot), args.Bool(1)
}

func (m *mockRooms) Stats() (int, int, int) {
	args := m.Called()
	return args.Int(0), args.Int(1), args.Int(2)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetBattleplan(ctx context.Context, id string) (*models.Battleplan, error) {
	args := m.Called(ctx, id)
	bp, _ := args.Get(0).(*models.Battleplan)
	return bp, args.Error(1)
}

func (m *mockStore) EnsureOperatorSlots(ctx context.Context, battleplanID string, perSide int) ([]models.OperatorSlot, error) {
	args := m.Called(ctx, battleplanID, perSide)
	slots, _ := args.Get(0).([]models.OperatorSlot)
	return slots, args.Error(1)
}

type stubConnections struct{ called bool }

func (s *stubConnections) HandleConnection(w http.ResponseWriter, r *http.Request) {
	s.called = true
	w.WriteHeader(http.StatusSwitchingProtocols)
}

type apiFixture struct {
	rooms    *mockRooms
	store    *mockStore
	ws       *stubConnections
	verifier *auth.Verifier
	router   http.Handler
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	verifier, err := auth.NewVerifier("api-secret", "", nil)
	require.NoError(t, err)

	f := &apiFixture{
		rooms:    &mockRooms{},
		store:    &mockStore{},
		ws:       &stubConnections{},
		verifier: verifier,
	}
	h := NewHandler(f.rooms, f.ws, f.store, f.store, 5)
	f.router = SetupRoutes(h, verifier)
	return f
}

func (f *apiFixture) token(t *testing.T, id auth.Identity) string {
	t.Helper()
	tok, err := f.verifier.Sign(id, time.Hour)
	require.NoError(t, err)
	return tok
}

func (f *apiFixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)
	f.rooms.On("Stats").Return(2, 3, 4)

	rec := f.do(t, http.MethodGet, "/api/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, 2.0, body["rooms"])
	assert.Equal(t, 3.0, body["connections"])
	assert.Equal(t, 4.0, body["sessions"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestCreateRoom(t *testing.T) {
	f := newAPIFixture(t)
	bp := &models.Battleplan{
		ID:      "bp-1",
		OwnerID: "u1",
		Floors:  []models.BattleplanFloor{{ID: "f-2", Number: 2}, {ID: "f-1", Number: 1}},
	}
	slots := []models.OperatorSlot{{ID: "s1", SlotNumber: 1, Side: models.SideDefender}}

	f.store.On("GetBattleplan", mock.Anything, "bp-1").Return(bp, nil)
	f.store.On("EnsureOperatorSlots", mock.Anything, "bp-1", 5).Return(slots, nil)
	f.rooms.On("RegisterRoom", mock.AnythingOfType("string"), "bp-1", "f-1").
		Return(models.RoomSnapshot{ActiveBattleplanID: "bp-1", ActiveFloorID: "f-1"})

	rec := f.do(t, http.MethodPost, "/api/rooms", f.token(t, auth.Identity{UserID: "u1"}), `{"battleplanId":"bp-1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp createRoomResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.ConnectionString, 36)
	assert.Equal(t, "bp-1", resp.ActiveBattleplanID)
	assert.Equal(t, "f-1", resp.ActiveFloorID)
	assert.Len(t, resp.OperatorSlots, 1)

	f.rooms.AssertCalled(t, "RegisterRoom", resp.ConnectionString, "bp-1", "f-1")
}

func TestCreateRoom_Rejections(t *testing.T) {
	f := newAPIFixture(t)
	f.store.On("GetBattleplan", mock.Anything, "bp-1").Return(&models.Battleplan{ID: "bp-1", OwnerID: "owner"}, nil)
	f.store.On("GetBattleplan", mock.Anything, "missing").Return(nil, fmt.Errorf("battleplan missing: %w", repository.ErrNotFound))
	f.store.On("GetBattleplan", mock.Anything, "broken").Return(nil, errors.New("connection refused"))

	stranger := f.token(t, auth.Identity{UserID: "someone"})

	tests := []struct {
		name   string
		token  string
		body   string
		status int
	}{
		{"no credential", "", `{"battleplanId":"bp-1"}`, http.StatusUnauthorized},
		{"bad credential", "nope", `{"battleplanId":"bp-1"}`, http.StatusUnauthorized},
		{"malformed body", stranger, `{`, http.StatusBadRequest},
		{"blank battleplan", stranger, `{"battleplanId":"  "}`, http.StatusBadRequest},
		{"unknown battleplan", stranger, `{"battleplanId":"missing"}`, http.StatusNotFound},
		{"store failure", stranger, `{"battleplanId":"broken"}`, http.StatusInternalServerError},
		{"not the owner", stranger, `{"battleplanId":"bp-1"}`, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/rooms", tt.token, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	f.rooms.AssertNotCalled(t, "RegisterRoom", mock.Anything, mock.Anything, mock.Anything)
	f.store.AssertNotCalled(t, "EnsureOperatorSlots", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateRoom_AdminMayOpenAnyBattleplan(t *testing.T) {
	f := newAPIFixture(t)
	f.store.On("GetBattleplan", mock.Anything, "bp-1").Return(&models.Battleplan{ID: "bp-1", OwnerID: "owner"}, nil)
	f.store.On("EnsureOperatorSlots", mock.Anything, "bp-1", 5).Return([]models.OperatorSlot{}, nil)
	f.rooms.On("RegisterRoom", mock.Anything, "bp-1", "").Return(models.RoomSnapshot{ActiveBattleplanID: "bp-1"})

	rec := f.do(t, http.MethodPost, "/api/rooms", f.token(t, auth.Identity{UserID: "ops", Role: RoleAdmin}), `{"battleplanId":"bp-1"}`)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestGetRoom(t *testing.T) {
	f := newAPIFixture(t)
	f.rooms.On("Snapshot", "live").Return(models.RoomSnapshot{
		ConnectionString: "live",
		Users:            []models.RoomUser{{UserID: "u1", Username: "ash", Color: "#FF0000"}},
		Cursors:          []models.CursorState{},
	}, true)
	f.rooms.On("Snapshot", "gone").Return(models.RoomSnapshot{}, false)
	tok := f.token(t, auth.Identity{UserID: "u1"})

	rec := f.do(t, http.MethodGet, "/api/rooms/live", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap models.RoomSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Users, 1)
	assert.Equal(t, "ash", snap.Users[0].Username)

	rec = f.do(t, http.MethodGet, "/api/rooms/gone", tok, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/rooms/live", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPreflightSkipsAuth(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodOptions, "/api/rooms", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestWebSocketRoute(t *testing.T) {
	f := newAPIFixture(t)

	f.do(t, http.MethodGet, "/ws", "", "")
	assert.True(t, f.ws.called)
}
