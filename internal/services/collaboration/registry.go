package collaboration

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"stratboard/internal/models"

	"github.com/sirupsen/logrus"
)

// Outbox accepts outbound frames for one connection without blocking.
// Enqueue reports false when the frame was dropped.
type Outbox interface {
	Enqueue(msg []byte) bool
}

// Member is one live connection inside a room
type Member struct {
	ConnectionString string
	ConnectionID     string
	UserID           string
	Username         string
	Color            string
	JoinedAt         time.Time

	order  uint64
	outbox Outbox
}

// RoomUser converts the member to its client-facing form
func (m Member) RoomUser() models.RoomUser {
	return models.RoomUser{UserID: m.UserID, Username: m.Username, Color: m.Color}
}

// roomState is the live state of one room. Every field is guarded by Registry.mu
// except mutationMu, which serializes persistence-backed writes that must be
// broadcast in commit order.
type roomState struct {
	connectionString   string
	activeBattleplanID string
	activeFloorID      string
	members            map[string]*Member
	colors             *ColorAllocator
	joinSeq            uint64
	discardTimer       *time.Timer

	mutationMu sync.Mutex
}

// Registry maps connection strings to live rooms.
// A reverse index connectionID -> connectionString is kept in step with the
// membership maps under the same lock, so a connection is in at most one room.
type Registry struct {
	mu        sync.RWMutex
	rooms     map[string]*roomState
	connIndex map[string]string

	grace     time.Duration
	palette   []string
	onDiscard func(connectionString string)
	now       func() time.Time
	log       *logrus.Entry
}

// NewRegistry creates an empty registry. Rooms left without members are discarded
// after grace; a zero grace discards them on the last leave.
func NewRegistry(grace time.Duration, palette []string) *Registry {
	return &Registry{
		rooms:     make(map[string]*roomState),
		connIndex: make(map[string]string),
		grace:     grace,
		palette:   palette,
		now:       time.Now,
		log:       logrus.WithField("component", "room-registry"),
	}
}

// OnDiscard registers a callback run (outside the lock) after a room is discarded
func (r *Registry) OnDiscard(fn func(connectionString string)) {
	r.mu.Lock()
	r.onDiscard = fn
	r.mu.Unlock()
}

// Register creates the room if absent and returns its current state
func (r *Registry) Register(connectionString string) models.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.ensureLocked(connectionString)
	return r.snapshotLocked(room)
}

// ensureLocked returns the room, creating it when missing. A new room lives until
// its last member leaves; only Leave starts the discard timer.
func (r *Registry) ensureLocked(connectionString string) *roomState {
	if room, ok := r.rooms[connectionString]; ok {
		return room
	}

	room := &roomState{
		connectionString: connectionString,
		members:          make(map[string]*Member),
		colors:           NewColorAllocator(r.palette),
	}
	r.rooms[connectionString] = room

	r.log.WithField("room", connectionString).Info("Room registered")
	return room
}

// Join adds a connection to a registered room and returns the color assigned to it
// together with the members, joiner included, in join order as of that moment.
// Joining the room the connection is already in returns its existing color; a
// connection that belongs to another room must leave it first. Rooms are only
// created by Register.
func (r *Registry) Join(connectionString, connectionID, userID, username string, outbox Outbox) (string, []models.RoomUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.connIndex[connectionID]; ok {
		if current != connectionString {
			return "", nil, fmt.Errorf("connection %s already in room %s", connectionID, current)
		}
		room := r.rooms[current]
		return room.members[connectionID].Color, usersLocked(room), nil
	}

	room, ok := r.rooms[connectionString]
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrRoomNotFound, connectionString)
	}
	if room.discardTimer != nil {
		room.discardTimer.Stop()
		room.discardTimer = nil
	}

	inUse := make(map[string]bool, len(room.members))
	for _, m := range room.members {
		inUse[m.Color] = true
	}
	color := room.colors.Allocate(inUse)

	room.joinSeq++
	room.members[connectionID] = &Member{
		ConnectionString: connectionString,
		ConnectionID:     connectionID,
		UserID:           userID,
		Username:         username,
		Color:            color,
		JoinedAt:         r.now(),
		order:            room.joinSeq,
		outbox:           outbox,
	}
	r.connIndex[connectionID] = connectionString

	r.log.WithFields(logrus.Fields{
		"room":          connectionString,
		"connection_id": connectionID,
		"user_id":       userID,
		"members":       len(room.members),
	}).Info("Member joined room")

	return color, usersLocked(room), nil
}

// Exists reports whether a room is registered for connectionString
func (r *Registry) Exists(connectionString string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.rooms[connectionString]
	return ok
}

// ActiveBattleplan returns the battleplan and floor a room is pointed at
func (r *Registry) ActiveBattleplan(connectionString string) (battleplanID, floorID string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[connectionString]
	if !ok {
		return "", "", false
	}
	return room.activeBattleplanID, room.activeFloorID, true
}

// Leave removes a connection from whichever room holds it. Unknown connections
// are a no-op and report ok=false.
func (r *Registry) Leave(connectionID string) (Member, bool) {
	r.mu.Lock()

	connectionString, ok := r.connIndex[connectionID]
	if !ok {
		r.mu.Unlock()
		return Member{}, false
	}
	delete(r.connIndex, connectionID)

	room := r.rooms[connectionString]
	member := *room.members[connectionID]
	delete(room.members, connectionID)

	r.log.WithFields(logrus.Fields{
		"room":          connectionString,
		"connection_id": connectionID,
		"user_id":       member.UserID,
		"members":       len(room.members),
	}).Info("Member left room")

	var discarded func(string)
	if len(room.members) == 0 {
		if r.grace > 0 {
			r.scheduleDiscardLocked(room)
		} else {
			delete(r.rooms, connectionString)
			discarded = r.onDiscard
			r.log.WithField("room", connectionString).Info("Room discarded")
		}
	}
	r.mu.Unlock()

	if discarded != nil {
		discarded(connectionString)
	}
	return member, true
}

func (r *Registry) scheduleDiscardLocked(room *roomState) {
	if room.discardTimer != nil {
		room.discardTimer.Stop()
	}
	room.discardTimer = time.AfterFunc(r.grace, func() {
		r.discardIfEmpty(room)
	})
}

// discardIfEmpty drops a room whose grace window elapsed, unless somebody joined
// meanwhile or the room was already replaced.
func (r *Registry) discardIfEmpty(room *roomState) {
	r.mu.Lock()
	if r.rooms[room.connectionString] != room || len(room.members) > 0 {
		r.mu.Unlock()
		return
	}
	delete(r.rooms, room.connectionString)
	room.discardTimer = nil
	fn := r.onDiscard
	r.mu.Unlock()

	r.log.WithField("room", room.connectionString).Info("Room discarded after grace period")
	if fn != nil {
		fn(room.connectionString)
	}
}

// FindRoomOf returns the connection string of the room holding connectionID
func (r *Registry) FindRoomOf(connectionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cs, ok := r.connIndex[connectionID]
	return cs, ok
}

// Member returns a copy of the membership record of connectionID
func (r *Registry) Member(connectionID string) (Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cs, ok := r.connIndex[connectionID]
	if !ok {
		return Member{}, false
	}
	return *r.rooms[cs].members[connectionID], true
}

// Users lists the members of a room in join order
func (r *Registry) Users(connectionString string) []models.RoomUser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[connectionString]
	if !ok {
		return nil
	}
	return usersLocked(room)
}

func usersLocked(room *roomState) []models.RoomUser {
	members := make([]*Member, 0, len(room.members))
	for _, m := range room.members {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].order < members[j].order })

	users := make([]models.RoomUser, 0, len(members))
	for _, m := range members {
		users = append(users, m.RoomUser())
	}
	return users
}

// SetActiveBattleplan points the room at the battleplan and floor being edited
func (r *Registry) SetActiveBattleplan(connectionString, battleplanID, floorID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[connectionString]
	if !ok {
		return false
	}
	room.activeBattleplanID = battleplanID
	room.activeFloorID = floorID
	return true
}

// Snapshot returns the presence view of a room, cursors excluded
func (r *Registry) Snapshot(connectionString string) (models.RoomSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[connectionString]
	if !ok {
		return models.RoomSnapshot{}, false
	}
	return r.snapshotLocked(room), true
}

func (r *Registry) snapshotLocked(room *roomState) models.RoomSnapshot {
	return models.RoomSnapshot{
		ConnectionString:   room.connectionString,
		ActiveBattleplanID: room.activeBattleplanID,
		ActiveFloorID:      room.activeFloorID,
		Users:              usersLocked(room),
		Cursors:            []models.CursorState{},
	}
}

// Broadcast fans msg out to every member of the room except excludeConnectionID
// (pass "" to include everyone) and returns how many outboxes accepted it.
// Outboxes are collected under the read lock and written to after releasing it.
func (r *Registry) Broadcast(connectionString string, msg []byte, excludeConnectionID string) int {
	r.mu.RLock()
	room, ok := r.rooms[connectionString]
	if !ok {
		r.mu.RUnlock()
		return 0
	}
	targets := make([]*Member, 0, len(room.members))
	for id, m := range room.members {
		if id == excludeConnectionID {
			continue
		}
		targets = append(targets, m)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, m := range targets {
		if m.outbox.Enqueue(msg) {
			delivered++
			continue
		}
		r.log.WithFields(logrus.Fields{
			"room":          connectionString,
			"connection_id": m.ConnectionID,
		}).Warn("Outbox full or closed, message dropped")
	}
	return delivered
}

// LockMutations serializes persistence-backed writes within a room. The returned
// function releases the lock; ok is false when the room does not exist.
func (r *Registry) LockMutations(connectionString string) (unlock func(), ok bool) {
	r.mu.RLock()
	room, ok := r.rooms[connectionString]
	r.mu.RUnlock()
	if !ok {
		return func() {}, false
	}

	room.mutationMu.Lock()
	return room.mutationMu.Unlock, true
}

// Stats returns the number of live rooms and joined connections
func (r *Registry) Stats() (rooms, connections int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms), len(r.connIndex)
}

// Close stops pending discard timers
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, room := range r.rooms {
		if room.discardTimer != nil {
			room.discardTimer.Stop()
			room.discardTimer = nil
		}
	}
}
