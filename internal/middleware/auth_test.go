package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stratboard/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?token=from-query", nil)
	assert.Equal(t, "from-query", CredentialFromRequest(r))

	r.Header.Set("Authorization", "bearer from-header")
	assert.Equal(t, "from-header", CredentialFromRequest(r))

	r.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, "", CredentialFromRequest(r))
}

func TestAuthenticate(t *testing.T) {
	verifier, err := auth.NewVerifier("secret", "", nil)
	require.NoError(t, err)
	token, err := verifier.Sign(auth.Identity{UserID: "u1", Username: "ash"}, time.Hour)
	require.NoError(t, err)

	var seen auth.Identity
	h := Authenticate(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rooms", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "u1", seen.UserID)
	assert.Equal(t, "ash", seen.Username)
}
