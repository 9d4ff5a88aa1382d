package collaboration

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"stratboard/internal/auth"
	"stratboard/internal/models"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Options tunes the room engine
type Options struct {
	CursorTimeout   time.Duration
	CursorThrottle  time.Duration
	RoomGracePeriod time.Duration
	CleanupInterval time.Duration
	OutboxSize      int
	Palette         []string
}

// DefaultOptions returns the tuning used when nothing is configured
func DefaultOptions() Options {
	return Options{
		CursorTimeout:   5 * time.Second,
		CursorThrottle:  50 * time.Millisecond,
		RoomGracePeriod: 10 * time.Second,
		CleanupInterval: 30 * time.Second,
		OutboxSize:      256,
	}
}

// SessionManager owns the room engine: the registry, the cursor tracker, the
// lifecycle manager, the event router and the set of live sessions.
type SessionManager struct {
	registry  *Registry
	cursors   *CursorTracker
	lifecycle *Lifecycle
	router    *Router

	sessions map[string]*Session
	mu       sync.RWMutex

	opts   Options
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
	stop   sync.Once
	log    *logrus.Entry
}

// NewSessionManager wires the engine around a persistence gateway
func NewSessionManager(store PersistenceGateway, opts Options) *SessionManager {
	if opts.OutboxSize <= 0 {
		opts.OutboxSize = DefaultOptions().OutboxSize
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = DefaultOptions().CleanupInterval
	}

	registry := NewRegistry(opts.RoomGracePeriod, opts.Palette)
	cursors := NewCursorTracker(opts.CursorTimeout, opts.CursorThrottle)
	registry.OnDiscard(cursors.DropRoom)

	ctx, cancel := context.WithCancel(context.Background())

	return &SessionManager{
		registry:  registry,
		cursors:   cursors,
		lifecycle: NewLifecycle(registry, cursors),
		router:    NewRouter(registry, cursors, store),
		sessions:  make(map[string]*Session),
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		log:       logrus.WithField("component", "session-manager"),
	}
}

// Start launches the periodic cleanup loop and, when moves are throttled, the
// loop relaying held cursor positions
func (sm *SessionManager) Start() {
	sm.log.Info("Starting session manager")

	sm.wg.Add(1)
	go sm.cleanupLoop()

	if sm.opts.CursorThrottle > 0 {
		sm.wg.Add(1)
		go sm.cursorFlushLoop()
	}
}

// cursorFlushLoop sends the last position of each throttled burst once its
// window closes, so peers never keep a stale cursor.
func (sm *SessionManager) cursorFlushLoop() {
	defer sm.wg.Done()

	ticker := time.NewTicker(sm.opts.CursorThrottle)
	defer ticker.Stop()

	for {
		select {
		case <-sm.done:
			return
		case <-ticker.C:
			sm.router.FlushCursors()
		}
	}
}

// cleanupLoop sweeps stale cursors so idle rooms do not keep them forever
func (sm *SessionManager) cleanupLoop() {
	defer sm.wg.Done()

	ticker := time.NewTicker(sm.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sm.done:
			return
		case <-ticker.C:
			removed := sm.cursors.Sweep()
			rooms, conns := sm.registry.Stats()
			sm.log.WithFields(logrus.Fields{
				"stale_cursors": removed,
				"rooms":         rooms,
				"connections":   conns,
			}).Debug("Cleanup pass")
		}
	}
}

// Connect registers a freshly upgraded, authenticated connection
func (sm *SessionManager) Connect(conn *websocket.Conn, id auth.Identity) *Session {
	s := newSession(models.NewSession(id.UserID, id.Username, id.Role), conn, sm, sm.opts.OutboxSize)

	sm.mu.Lock()
	sm.sessions[s.ID] = s
	sm.mu.Unlock()

	sm.log.WithFields(logrus.Fields{
		"connection_id": s.ID,
		"user_id":       s.UserID,
	}).Info("Session connected")
	return s
}

// Serve runs the pumps of a connected session until it disconnects
func (sm *SessionManager) Serve(s *Session) {
	go s.WritePump()
	s.ReadPump(sm.ctx)
}

// HandleMessage decodes one frame and routes it. Join and leave go to the
// lifecycle manager, everything else to the event router.
func (sm *SessionManager) HandleMessage(ctx context.Context, s *Session, raw []byte) {
	var env models.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		sm.log.WithField("connection_id", s.ID).WithError(err).Warn("Dropped malformed frame")
		return
	}

	logCtx := sm.log.WithFields(logrus.Fields{
		"connection_id": s.ID,
		"user_id":       s.UserID,
		"event":         env.Event,
	})

	switch env.Event {
	case models.EventRoomJoin:
		var p models.RoomJoinPayload
		if err := decode(env.Data, &p); err != nil {
			logCtx.WithError(err).Warn("Dropped invalid join")
			return
		}
		if err := sm.lifecycle.Join(s, p.ConnectionString); err != nil {
			logCtx.WithError(err).Warn("Join failed")
		}

	case models.EventRoomLeave:
		var p models.RoomLeavePayload
		if len(env.Data) > 0 {
			if err := decode(env.Data, &p); err != nil {
				logCtx.WithError(err).Warn("Dropped invalid leave")
				return
			}
		}
		if err := sm.lifecycle.LeaveRoom(s, p.ConnectionString); err != nil {
			if errors.Is(err, ErrNotInRoom) {
				logCtx.Debug("Leave from connection without a room")
				return
			}
			logCtx.WithError(err).Warn("Leave rejected")
		}

	default:
		// errors are logged by the router
		_ = sm.router.Dispatch(ctx, s.Client(), env)
	}
}

// Disconnect runs the leave cleanup for a dropped transport and forgets the
// session. Safe to call more than once; a session that never joined leaves
// without any broadcast.
func (sm *SessionManager) Disconnect(s *Session) {
	sm.mu.Lock()
	_, tracked := sm.sessions[s.ID]
	delete(sm.sessions, s.ID)
	sm.mu.Unlock()

	sm.lifecycle.Leave(s)
	s.setState(StateLeft)

	if tracked {
		sm.log.WithFields(logrus.Fields{
			"connection_id": s.ID,
			"user_id":       s.UserID,
		}).Info("Session disconnected")
	}
}

// RegisterRoom creates a room for a battleplan and makes it the active one
func (sm *SessionManager) RegisterRoom(connectionString, battleplanID, floorID string) models.RoomSnapshot {
	snap := sm.registry.Register(connectionString)
	if battleplanID != "" {
		sm.registry.SetActiveBattleplan(connectionString, battleplanID, floorID)
		snap.ActiveBattleplanID = battleplanID
		snap.ActiveFloorID = floorID
	}
	return snap
}

// Snapshot returns members, active battleplan and fresh cursors of a room
func (sm *SessionManager) Snapshot(connectionString string) (models.RoomSnapshot, bool) {
	snap, ok := sm.registry.Snapshot(connectionString)
	if !ok {
		return models.RoomSnapshot{}, false
	}
	snap.Cursors = sm.cursors.Snapshot(connectionString)
	return snap, true
}

// Stats returns live room, joined connection and open session counts
func (sm *SessionManager) Stats() (rooms, joined, sessions int) {
	rooms, joined = sm.registry.Stats()
	sm.mu.RLock()
	sessions = len(sm.sessions)
	sm.mu.RUnlock()
	return rooms, joined, sessions
}

// Shutdown closes every session and stops background work; safe to call more than once
func (sm *SessionManager) Shutdown() {
	sm.stop.Do(sm.shutdown)
}

func (sm *SessionManager) shutdown() {
	sm.log.Info("Shutting down session manager")

	close(sm.done)
	sm.wg.Wait()

	sm.mu.RLock()
	open := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		open = append(open, s)
	}
	sm.mu.RUnlock()

	for _, s := range open {
		s.Close()
	}

	sm.cancel()
	sm.registry.Close()
	sm.log.Info("Session manager shutdown complete")
}
