package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"stratboard/internal/auth"

	"github.com/sirupsen/logrus"
)

const identityKey contextKey = "identity"

// CredentialVerifier turns a bearer credential into an identity
type CredentialVerifier interface {
	Verify(credential string) (auth.Identity, error)
}

// CredentialFromRequest extracts the bearer token from the Authorization header,
// falling back to the "token" query parameter since browsers cannot set headers
// on websocket handshakes.
func CredentialFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// Authenticate rejects requests without a valid bearer credential and stores the
// identity in the request context.
func Authenticate(verifier CredentialVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := verifier.Verify(CredentialFromRequest(r))
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"request_id": GetRequestID(r.Context()),
					"path":       r.URL.Path,
				}).WithError(err).Warn("Rejected unauthenticated request")

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// WithIdentity returns a copy of ctx carrying id
func WithIdentity(ctx context.Context, id auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity set by Authenticate
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityKey).(auth.Identity)
	return id, ok
}
