package api

import (
	"net/http"

	"stratboard/internal/middleware"

	"github.com/gorilla/mux"
)

func SetupRoutes(h *Handler, verifier middleware.CredentialVerifier) *mux.Router {
	r := mux.NewRouter()

	// tracing first so recovery and CORS run inside the request span.
	// CORS answers preflights before the auth middleware of a subrouter sees them.
	r.Use(middleware.TracingMiddleware)
	r.Use(middleware.ErrorRecoveryMiddleware)
	r.Use(middleware.CORSMiddleware)

	// the websocket handler authenticates the handshake itself
	r.HandleFunc("/ws", h.HandleWebSocket).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	rooms := api.PathPrefix("/rooms").Subrouter()
	rooms.Use(middleware.Authenticate(verifier))
	rooms.HandleFunc("", h.CreateRoom).Methods(http.MethodPost, http.MethodOptions)
	rooms.HandleFunc("/{connectionString}", h.GetRoom).Methods(http.MethodGet, http.MethodOptions)

	return r
}
