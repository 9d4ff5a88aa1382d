package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestVerifier_RoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	v, err := NewVerifier("secret", "accounts", fixedClock(now))
	require.NoError(t, err)

	token, err := v.Sign(Identity{UserID: "u1", Username: "ash", Role: "user"}, time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "u1", Username: "ash", Role: "user"}, id)
}

func TestVerifier_UsernameFallsBackToSubject(t *testing.T) {
	v, err := NewVerifier("secret", "", nil)
	require.NoError(t, err)

	token, err := v.Sign(Identity{UserID: "u9"}, time.Minute)
	require.NoError(t, err)

	id, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u9", id.Username)
}

func TestVerifier_Rejects(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	v, err := NewVerifier("secret", "accounts", fixedClock(now))
	require.NoError(t, err)

	expired, err := v.Sign(Identity{UserID: "u1"}, -time.Minute)
	require.NoError(t, err)

	other, err := NewVerifier("other-secret", "accounts", fixedClock(now))
	require.NoError(t, err)
	forged, err := other.Sign(Identity{UserID: "u1"}, time.Hour)
	require.NoError(t, err)

	wrongIssuer, err := NewVerifier("secret", "elsewhere", fixedClock(now))
	require.NoError(t, err)
	foreign, err := wrongIssuer.Sign(Identity{UserID: "u1"}, time.Hour)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "accounts",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "  ", ErrMissingCredential},
		{"garbage", "not-a-jwt", ErrInvalidCredential},
		{"expired", expired, ErrInvalidCredential},
		{"bad signature", forged, ErrInvalidCredential},
		{"wrong issuer", foreign, ErrInvalidCredential},
		{"no subject", noSubject, ErrInvalidCredential},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestNewVerifier_RequiresSecret(t *testing.T) {
	_, err := NewVerifier("", "", nil)
	assert.Error(t, err)
}
