package models

import "encoding/json"

// EventName identifies a message on the realtime wire
type EventName string

// Client -> server
const (
	EventRoomJoin           EventName = "room:join"
	EventRoomLeave          EventName = "room:leave"
	EventCursorMove         EventName = "cursor:move"
	EventDrawCreate         EventName = "draw:create"
	EventDrawDelete         EventName = "draw:delete"
	EventDrawUpdate         EventName = "draw:update"
	EventOperatorSlotUpdate EventName = "operator-slot:update"
	EventBattleplanChange   EventName = "battleplan:change"
	EventChatMessage        EventName = "chat:message"
)

// Server -> client
const (
	EventRoomJoined          EventName = "room:joined"
	EventRoomUserJoined      EventName = "room:user-joined"
	EventRoomUserLeft        EventName = "room:user-left"
	EventCursorMoved         EventName = "cursor:moved"
	EventDrawCreated         EventName = "draw:created"
	EventDrawDeleted         EventName = "draw:deleted"
	EventDrawUpdated         EventName = "draw:updated"
	EventOperatorSlotUpdated EventName = "operator-slot:updated"
	EventBattleplanChanged   EventName = "battleplan:changed"
	EventChatMessaged        EventName = "chat:messaged"
)

// Envelope is the frame every websocket message is wrapped in
type Envelope struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload into a ready-to-send frame
func NewEnvelope(event EventName, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// Inbound payloads

type RoomJoinPayload struct {
	ConnectionString string `json:"connectionString"`
}

type RoomLeavePayload struct {
	ConnectionString string `json:"connectionString"`
}

type CursorMovePayload struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	FloorID string  `json:"floorId"`
	IsLaser bool    `json:"isLaser,omitempty"`
}

type DrawCreatePayload struct {
	BattleplanFloorID string       `json:"battleplanFloorId"`
	Draws             []DrawCreate `json:"draws"`
}

type DrawDeletePayload struct {
	DrawIDs []string `json:"drawIds"`
}

type DrawUpdatePayload struct {
	DrawID string          `json:"drawId"`
	Data   json.RawMessage `json:"data"`
}

type OperatorSlotUpdatePayload struct {
	SlotID     string  `json:"slotId"`
	OperatorID *string `json:"operatorId"`
}

type BattleplanChangePayload struct {
	BattleplanID string `json:"battleplanId"`
}

type ChatMessagePayload struct {
	Text string `json:"text"`
}

// Outbound payloads

type RoomJoinedPayload struct {
	UserID string     `json:"userId"`
	Color  string     `json:"color"`
	Users  []RoomUser `json:"users"`
}

type RoomUserLeftPayload struct {
	UserID string `json:"userId"`
}

type CursorMovedPayload struct {
	UserID  string  `json:"userId"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	FloorID string  `json:"floorId"`
	Color   string  `json:"color"`
	IsLaser bool    `json:"isLaser,omitempty"`
}

type DrawCreatedPayload struct {
	UserID string  `json:"userId"`
	Draws  []*Draw `json:"draws"`
}

type DrawDeletedPayload struct {
	UserID  string   `json:"userId"`
	DrawIDs []string `json:"drawIds"`
}

type DrawUpdatedPayload struct {
	UserID string          `json:"userId"`
	DrawID string          `json:"drawId"`
	Data   json.RawMessage `json:"data"`
}

type OperatorSlotUpdatedPayload struct {
	SlotID     string    `json:"slotId"`
	OperatorID *string   `json:"operatorId"`
	Operator   *Operator `json:"operator"`
	Side       Side      `json:"side"`
}

type BattleplanChangedPayload struct {
	Battleplan *Battleplan `json:"battleplan"`
}
