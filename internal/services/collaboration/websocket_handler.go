package collaboration

import (
	"encoding/json"
	"net/http"

	"stratboard/internal/middleware"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// WebSocketHandler authenticates and upgrades realtime connections
type WebSocketHandler struct {
	sessionManager *SessionManager
	verifier       middleware.CredentialVerifier
	upgrader       websocket.Upgrader
}

// NewWebSocketHandler creates a handler. An empty allowedOrigins accepts any origin.
func NewWebSocketHandler(sessionManager *SessionManager, verifier middleware.CredentialVerifier, allowedOrigins []string) *WebSocketHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &WebSocketHandler{
		sessionManager: sessionManager,
		verifier:       verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				return allowed[r.Header.Get("Origin")]
			},
		},
	}
}

// HandleConnection authenticates the handshake, upgrades it and serves the session
// until it disconnects. A bad credential is answered with 401 before any upgrade,
// so the connection never reaches a room.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	ctx, span := middleware.StartSpan(r.Context(), "WebSocket.Connect")

	logCtx := logrus.WithFields(logrus.Fields{
		"component":  "websocket",
		"request_id": middleware.GetRequestID(ctx),
	})

	id, err := h.verifier.Verify(middleware.CredentialFromRequest(r))
	if err != nil {
		middleware.AddSpanError(ctx, err)
		logCtx.WithError(err).Warn("Rejected websocket handshake")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": ErrUnauthorized.Error()})
		span.End()
		return
	}
	span.SetAttributes(attribute.String("user.id", id.UserID))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written an error response
		middleware.AddSpanError(ctx, err)
		logCtx.WithError(err).Warn("Failed to upgrade WebSocket")
		span.End()
		return
	}

	session := h.sessionManager.Connect(conn, id)
	span.SetAttributes(attribute.String("connection.id", session.ID))
	span.End()

	h.sessionManager.Serve(session)
}
