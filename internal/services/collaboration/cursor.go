package collaboration

import (
	"sort"
	"sync"
	"time"

	"stratboard/internal/models"
)

type cursorEntry struct {
	state        models.CursorState
	connectionID string
	lastEmitted  time.Time
	pending      bool
}

// PendingCursor is the latest position of a user whose last move was held back
// by the throttle and is now due to be relayed.
type PendingCursor struct {
	ConnectionString string
	ConnectionID     string
	State            models.CursorState
}

// CursorTracker keeps the latest pointer position of every user per room.
// Entries older than the timeout are dropped lazily on read and by Sweep;
// there is no timer per cursor.
type CursorTracker struct {
	mu       sync.Mutex
	rooms    map[string]map[string]*cursorEntry
	timeout  time.Duration
	throttle time.Duration
	now      func() time.Time
}

// NewCursorTracker creates a tracker. throttle is the minimum spacing between two
// relayed moves of the same user; zero relays every move.
func NewCursorTracker(timeout, throttle time.Duration) *CursorTracker {
	return &CursorTracker{
		rooms:    make(map[string]map[string]*cursorEntry),
		timeout:  timeout,
		throttle: throttle,
		now:      time.Now,
	}
}

// Update stores the position (last write wins) and reports whether the move
// should be relayed to the room. A move arriving inside the throttle window is
// stored and marked pending; Flush hands it out once the window has closed, so
// the last position of a burst always reaches the room.
func (t *CursorTracker) Update(connectionString, connectionID string, state models.CursorState) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	state.LastUpdatedAt = now

	room, ok := t.rooms[connectionString]
	if !ok {
		room = make(map[string]*cursorEntry)
		t.rooms[connectionString] = room
	}

	entry, ok := room[state.UserID]
	if !ok {
		room[state.UserID] = &cursorEntry{state: state, connectionID: connectionID, lastEmitted: now}
		return true
	}

	entry.state = state
	entry.connectionID = connectionID
	if now.Sub(entry.lastEmitted) < t.throttle {
		entry.pending = true
		return false
	}
	entry.lastEmitted = now
	entry.pending = false
	return true
}

// Flush returns every pending move whose throttle window has closed and marks it
// relayed. Results are ordered by room then user.
func (t *CursorTracker) Flush() []PendingCursor {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var due []PendingCursor
	for cs, room := range t.rooms {
		for _, entry := range room {
			if !entry.pending || now.Sub(entry.lastEmitted) < t.throttle {
				continue
			}
			entry.pending = false
			entry.lastEmitted = now
			due = append(due, PendingCursor{
				ConnectionString: cs,
				ConnectionID:     entry.connectionID,
				State:            entry.state,
			})
		}
	}

	sort.Slice(due, func(i, j int) bool {
		if due[i].ConnectionString != due[j].ConnectionString {
			return due[i].ConnectionString < due[j].ConnectionString
		}
		return due[i].State.UserID < due[j].State.UserID
	})
	return due
}

// Snapshot returns the fresh cursors of a room ordered by user id, evicting stale ones
func (t *CursorTracker) Snapshot(connectionString string) []models.CursorState {
	t.mu.Lock()
	defer t.mu.Unlock()

	room := t.rooms[connectionString]
	now := t.now()

	out := make([]models.CursorState, 0, len(room))
	for userID, entry := range room {
		if t.staleLocked(entry, now) {
			delete(room, userID)
			continue
		}
		out = append(out, entry.state)
	}
	if room != nil && len(room) == 0 {
		delete(t.rooms, connectionString)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Sweep evicts every stale cursor and returns how many were removed
func (t *CursorTracker) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	removed := 0
	for cs, room := range t.rooms {
		for userID, entry := range room {
			if t.staleLocked(entry, now) {
				delete(room, userID)
				removed++
			}
		}
		if len(room) == 0 {
			delete(t.rooms, cs)
		}
	}
	return removed
}

func (t *CursorTracker) staleLocked(entry *cursorEntry, now time.Time) bool {
	return now.Sub(entry.state.LastUpdatedAt) > t.timeout
}

// Remove forgets the cursor of a user in a room
func (t *CursorTracker) Remove(connectionString, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if room, ok := t.rooms[connectionString]; ok {
		delete(room, userID)
		if len(room) == 0 {
			delete(t.rooms, connectionString)
		}
	}
}

// DropRoom forgets every cursor of a room
func (t *CursorTracker) DropRoom(connectionString string) {
	t.mu.Lock()
	delete(t.rooms, connectionString)
	t.mu.Unlock()
}
