package collaboration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"stratboard/internal/middleware"
	"stratboard/internal/models"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Client identifies the connection an event came from
type Client struct {
	ConnectionID string
	UserID       string
	Username     string
}

// Router applies the side effects of room events and fans the results out.
// Every handler resolves the sender's room first and drops the event when there
// is none; persistence-backed handlers resolve it again before broadcasting, so
// a sender that left mid-flight broadcasts nothing.
type Router struct {
	registry *Registry
	cursors  *CursorTracker
	store    PersistenceGateway
	now      func() time.Time
	log      *logrus.Entry
}

// NewRouter creates a router writing through store
func NewRouter(registry *Registry, cursors *CursorTracker, store PersistenceGateway) *Router {
	return &Router{
		registry: registry,
		cursors:  cursors,
		store:    store,
		now:      time.Now,
		log:      logrus.WithField("component", "event-router"),
	}
}

// Dispatch handles one inbound event. Failures are logged here and returned for
// callers that care; none of them affect the connection or other rooms.
func (rt *Router) Dispatch(ctx context.Context, client Client, env models.Envelope) (err error) {
	ctx, span := middleware.StartSpan(ctx, "Collab."+string(env.Event),
		attribute.String("connection.id", client.ConnectionID),
		attribute.String("user.id", client.UserID),
	)
	defer span.End()

	logCtx := rt.log.WithFields(logrus.Fields{
		"event":         env.Event,
		"connection_id": client.ConnectionID,
		"user_id":       client.UserID,
	})

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
			middleware.AddSpanError(ctx, err)
			logCtx.WithField("panic", p).Error("Recovered from panic in event handler")
		}
	}()

	switch env.Event {
	case models.EventCursorMove:
		err = rt.handleCursorMove(client, env.Data)
	case models.EventChatMessage:
		err = rt.handleChatMessage(client, env.Data)
	case models.EventDrawCreate:
		err = rt.handleDrawCreate(ctx, client, env.Data)
	case models.EventDrawDelete:
		err = rt.handleDrawDelete(ctx, client, env.Data)
	case models.EventDrawUpdate:
		err = rt.handleDrawUpdate(ctx, client, env.Data)
	case models.EventOperatorSlotUpdate:
		err = rt.handleOperatorSlotUpdate(ctx, client, env.Data)
	case models.EventBattleplanChange:
		err = rt.handleBattleplanChange(ctx, client, env.Data)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}

	switch {
	case err == nil:
	case errors.Is(err, ErrNotInRoom):
		logCtx.Debug("Dropped event from connection without a room")
	case errors.Is(err, ErrValidation), errors.Is(err, ErrUnknownEvent):
		logCtx.WithError(err).Warn("Dropped invalid event")
	default:
		middleware.AddSpanError(ctx, err)
		logCtx.WithError(err).Error("Event handler failed, event dropped")
	}
	return err
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", ErrValidation)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

func (rt *Router) member(client Client) (Member, error) {
	m, ok := rt.registry.Member(client.ConnectionID)
	if !ok {
		return Member{}, ErrNotInRoom
	}
	return m, nil
}

// activeBattleplan returns the battleplan draw edits of the member's room are
// confined to
func (rt *Router) activeBattleplan(m Member) (string, error) {
	bpID, _, ok := rt.registry.ActiveBattleplan(m.ConnectionString)
	if !ok {
		return "", ErrNotInRoom
	}
	if bpID == "" {
		return "", fmt.Errorf("%w: room has no active battleplan", ErrValidation)
	}
	return bpID, nil
}

func (rt *Router) broadcast(connectionString string, event models.EventName, payload any, exclude string) error {
	msg, err := models.NewEnvelope(event, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	rt.registry.Broadcast(connectionString, msg, exclude)
	return nil
}

// broadcastIfStillJoined re-resolves the sender's room after a suspension point
func (rt *Router) broadcastIfStillJoined(client Client, event models.EventName, payload any, exclude string) error {
	cs, ok := rt.registry.FindRoomOf(client.ConnectionID)
	if !ok {
		rt.log.WithFields(logrus.Fields{
			"event":         event,
			"connection_id": client.ConnectionID,
		}).Debug("Sender left before broadcast, skipping")
		return nil
	}
	return rt.broadcast(cs, event, payload, exclude)
}

func (rt *Router) handleCursorMove(client Client, data json.RawMessage) error {
	m, err := rt.member(client)
	if err != nil {
		return err
	}
	var p models.CursorMovePayload
	if err := decode(data, &p); err != nil {
		return err
	}

	state := models.CursorState{
		UserID:  client.UserID,
		X:       p.X,
		Y:       p.Y,
		FloorID: p.FloorID,
		Color:   m.Color,
		IsLaser: p.IsLaser,
	}
	if !rt.cursors.Update(m.ConnectionString, client.ConnectionID, state) {
		return nil
	}

	return rt.broadcast(m.ConnectionString, models.EventCursorMoved, cursorMoved(state), client.ConnectionID)
}

func cursorMoved(state models.CursorState) models.CursorMovedPayload {
	return models.CursorMovedPayload{
		UserID:  state.UserID,
		X:       state.X,
		Y:       state.Y,
		FloorID: state.FloorID,
		Color:   state.Color,
		IsLaser: state.IsLaser,
	}
}

// FlushCursors relays the final position of every throttled burst whose window
// has closed, to everyone in the room but the mover, and returns how many.
func (rt *Router) FlushCursors() int {
	due := rt.cursors.Flush()
	for _, p := range due {
		if err := rt.broadcast(p.ConnectionString, models.EventCursorMoved, cursorMoved(p.State), p.ConnectionID); err != nil {
			rt.log.WithError(err).WithField("room", p.ConnectionString).Error("Failed to relay held cursor move")
		}
	}
	return len(due)
}

func (rt *Router) handleChatMessage(client Client, data json.RawMessage) error {
	m, err := rt.member(client)
	if err != nil {
		return err
	}
	var p models.ChatMessagePayload
	if err := decode(data, &p); err != nil {
		return err
	}

	text := strings.TrimSpace(p.Text)
	if text == "" {
		return fmt.Errorf("%w: empty chat message", ErrValidation)
	}
	if utf8.RuneCountInString(text) > models.MaxChatLength {
		return fmt.Errorf("%w: chat message longer than %d characters", ErrValidation, models.MaxChatLength)
	}

	return rt.broadcast(m.ConnectionString, models.EventChatMessaged, models.ChatMessage{
		UserID:    client.UserID,
		Username:  client.Username,
		Text:      text,
		Timestamp: rt.now().UnixMilli(),
		Color:     m.Color,
	}, "")
}

func (rt *Router) handleDrawCreate(ctx context.Context, client Client, data json.RawMessage) error {
	m, err := rt.member(client)
	if err != nil {
		return err
	}
	var p models.DrawCreatePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if p.BattleplanFloorID == "" {
		return fmt.Errorf("%w: battleplanFloorId is required", ErrValidation)
	}
	if len(p.Draws) == 0 {
		return fmt.Errorf("%w: empty draw batch", ErrValidation)
	}

	rows := make([]*models.Draw, 0, len(p.Draws))
	for i, item := range p.Draws {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("%w: draw %d: %v", ErrValidation, i, err)
		}
		rows = append(rows, item.ToDraw(p.BattleplanFloorID, client.UserID))
	}

	bpID, err := rt.activeBattleplan(m)
	if err != nil {
		return err
	}
	if err := rt.store.InsertDraws(ctx, bpID, rows); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	return rt.broadcastIfStillJoined(client, models.EventDrawCreated, models.DrawCreatedPayload{
		UserID: client.UserID,
		Draws:  rows,
	}, client.ConnectionID)
}

func (rt *Router) handleDrawDelete(ctx context.Context, client Client, data json.RawMessage) error {
	m, err := rt.member(client)
	if err != nil {
		return err
	}
	var p models.DrawDeletePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if len(p.DrawIDs) == 0 {
		return fmt.Errorf("%w: drawIds is empty", ErrValidation)
	}
	for _, id := range p.DrawIDs {
		if id == "" {
			return fmt.Errorf("%w: blank draw id", ErrValidation)
		}
	}

	bpID, err := rt.activeBattleplan(m)
	if err != nil {
		return err
	}
	if err := rt.store.SoftDeleteDraws(ctx, bpID, p.DrawIDs); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	return rt.broadcastIfStillJoined(client, models.EventDrawDeleted, models.DrawDeletedPayload{
		UserID:  client.UserID,
		DrawIDs: p.DrawIDs,
	}, client.ConnectionID)
}

func (rt *Router) handleDrawUpdate(ctx context.Context, client Client, data json.RawMessage) error {
	m, err := rt.member(client)
	if err != nil {
		return err
	}
	var p models.DrawUpdatePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if p.DrawID == "" {
		return fmt.Errorf("%w: drawId is required", ErrValidation)
	}
	var patch models.DrawPatch
	if err := decode(p.Data, &patch); err != nil {
		return err
	}
	if patch.Empty() {
		return fmt.Errorf("%w: patch changes nothing", ErrValidation)
	}

	bpID, err := rt.activeBattleplan(m)
	if err != nil {
		return err
	}
	if _, err := rt.store.PatchDraw(ctx, bpID, p.DrawID, patch); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	return rt.broadcastIfStillJoined(client, models.EventDrawUpdated, models.DrawUpdatedPayload{
		UserID: client.UserID,
		DrawID: p.DrawID,
		Data:   p.Data,
	}, client.ConnectionID)
}

// handleOperatorSlotUpdate holds the room's mutation lock across write and
// broadcast, so the order of operator-slot:updated frames matches commit order and
// the last frame every client sees is the persisted value.
func (rt *Router) handleOperatorSlotUpdate(ctx context.Context, client Client, data json.RawMessage) error {
	m, err := rt.member(client)
	if err != nil {
		return err
	}
	var p models.OperatorSlotUpdatePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if p.SlotID == "" {
		return fmt.Errorf("%w: slotId is required", ErrValidation)
	}
	if p.OperatorID != nil && *p.OperatorID == "" {
		p.OperatorID = nil
	}

	unlock, ok := rt.registry.LockMutations(m.ConnectionString)
	if !ok {
		return ErrNotInRoom
	}
	defer unlock()

	var operator *models.Operator
	if p.OperatorID != nil {
		operator, err = rt.store.GetOperator(ctx, *p.OperatorID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPersistence, err)
		}
	}

	slot, err := rt.store.UpdateOperatorSlot(ctx, p.SlotID, p.OperatorID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	return rt.broadcastIfStillJoined(client, models.EventOperatorSlotUpdated, models.OperatorSlotUpdatedPayload{
		SlotID:     slot.ID,
		OperatorID: slot.OperatorID,
		Operator:   operator,
		Side:       slot.Side,
	}, "")
}

func (rt *Router) handleBattleplanChange(ctx context.Context, client Client, data json.RawMessage) error {
	if _, err := rt.member(client); err != nil {
		return err
	}
	var p models.BattleplanChangePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if p.BattleplanID == "" {
		return fmt.Errorf("%w: battleplanId is required", ErrValidation)
	}

	bp, err := rt.store.GetBattleplan(ctx, p.BattleplanID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	cs, ok := rt.registry.FindRoomOf(client.ConnectionID)
	if !ok {
		return nil
	}
	rt.registry.SetActiveBattleplan(cs, bp.ID, bp.FirstFloorID())

	return rt.broadcast(cs, models.EventBattleplanChanged, models.BattleplanChangedPayload{
		Battleplan: bp,
	}, client.ConnectionID)
}
