package collaboration

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"stratboard/internal/models"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Draw batches can be large
	maxMessageSize = 512 * 1024
)

// SessionState is the lifecycle position of a connection
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateAuthenticated
	StateJoined
	StateLeft
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateJoined:
		return "joined"
	case StateLeft:
		return "left"
	}
	return "unknown"
}

// Session is one authenticated websocket connection.
// Outbound frames go through a buffered channel drained by WritePump; after
// Close the channel is never written to again.
type Session struct {
	*models.Session

	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	manager *SessionManager

	state      atomic.Int32
	lastActive atomic.Int64
	closeOnce  sync.Once
}

func newSession(info *models.Session, conn *websocket.Conn, manager *SessionManager, outboxSize int) *Session {
	s := &Session{
		Session: info,
		conn:    conn,
		send:    make(chan []byte, outboxSize),
		done:    make(chan struct{}),
		manager: manager,
	}
	s.state.Store(int32(StateAuthenticated))
	s.touch()
	return s
}

// Client returns the identity the router sees for this connection
func (s *Session) Client() Client {
	return Client{ConnectionID: s.ID, UserID: s.UserID, Username: s.Username}
}

// State returns the current lifecycle state
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

func (s *Session) setState(state SessionState) {
	s.state.Store(int32(state))
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// LastActive is when the connection last sent a frame or pong
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// Enqueue queues a frame without blocking. It drops the frame when the buffer is
// full or the session is closed.
func (s *Session) Enqueue(msg []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.send <- msg:
		return true
	default:
		return false
	}
}

// Close stops both pumps; safe to call more than once
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.conn != nil {
			s.conn.Close()
		}
	})
}

// Done is closed once the session is closed
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// ReadPump reads frames until the connection drops, handling each one before
// reading the next so events of one connection keep their arrival order.
func (s *Session) ReadPump(ctx context.Context) {
	defer func() {
		s.manager.Disconnect(s)
		s.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.touch()
		return nil
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logrus.WithField("connection_id", s.ID).WithError(err).Warn("WebSocket read error")
			}
			return
		}

		s.touch()
		s.manager.HandleMessage(ctx, s, message)
	}
}

// WritePump writes queued frames and keepalive pings.
// A separate writer goroutine keeps slow clients from blocking the reader.
func (s *Session) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case <-s.done:
			return

		case message := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
