package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingCredential is returned when no bearer token was presented
	ErrMissingCredential = errors.New("missing credential")
	// ErrInvalidCredential covers malformed, expired or badly signed tokens
	ErrInvalidCredential = errors.New("invalid credential")
)

// Identity is the authenticated user a connection acts as
type Identity struct {
	UserID   string
	Username string
	Role     string
}

// claims is the internal claims type used for JWT parsing
type claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Verifier validates HMAC signed bearer tokens issued by the account service
type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewVerifier creates a verifier. An empty issuer disables the issuer check;
// a nil clock uses time.Now.
func NewVerifier(secret, issuer string, now func() time.Time) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	if now == nil {
		now = time.Now
	}
	return &Verifier{secret: []byte(secret), issuer: issuer, now: now}, nil
}

// Verify parses a token and returns the identity it carries
func (v *Verifier) Verify(credential string) (Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return Identity{}, ErrMissingCredential
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var c claims
	_, err := jwt.ParseWithClaims(credential, &c, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	userID := strings.TrimSpace(c.Subject)
	if userID == "" {
		return Identity{}, fmt.Errorf("%w: subject claim is empty", ErrInvalidCredential)
	}
	username := strings.TrimSpace(c.Username)
	if username == "" {
		username = userID
	}

	return Identity{UserID: userID, Username: username, Role: c.Role}, nil
}

// Sign issues a token for id valid for ttl. Token issuance belongs to the account
// service; this exists for local tooling and tests.
func (v *Verifier) Sign(id Identity, ttl time.Duration) (string, error) {
	now := v.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Username: id.Username,
		Role:     id.Role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(v.secret)
}
