package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/minitweet/backend/internal/models"
)

var (
	// ErrUnauthenticated is returned for every rejected credential: unknown email, wrong
	// password, malformed, forged or expired tokens.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// DefaultTokenTTL is how long an issued access token stays valid.
const DefaultTokenTTL = 24 * time.Hour

type claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies HS256 signed access tokens. It keeps no state
// beyond its secret and is safe for concurrent use.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration

	NowFunc func() time.Time
}

// NewTokenIssuer constructs an issuer signing with secret. A non-positive ttl
// falls back to DefaultTokenTTL.
func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	if len(secret) == 0 {
		panic("auth: token secret must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{secret: secret, ttl: ttl}
}

// Issue creates a signed token bound to userID that expires after the configured TTL.
func (i *TokenIssuer) Issue(userID string) (models.AuthToken, error) {
	if strings.TrimSpace(userID) == "" {
		return models.AuthToken{}, errors.New("user id must be provided")
	}

	now := i.now()
	c := claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return models.AuthToken{}, fmt.Errorf("sign token: %w", err)
	}

	return models.AuthToken{
		Value:     signed,
		UserID:    userID,
		// The signed exp has whole-second precision; report that, not now+ttl.
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}

// Verify checks the signature and expiry of token and returns the bound user id.
// Any failure yields ErrUnauthenticated.
func (i *TokenIssuer) Verify(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrUnauthenticated
	}

	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !parsed.Valid {
		return "", ErrUnauthenticated
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || strings.TrimSpace(c.UserID) == "" {
		return "", ErrUnauthenticated
	}

	return c.UserID, nil
}

func (i *TokenIssuer) now() time.Time {
	if i.NowFunc != nil {
		return i.NowFunc()
	}
	return time.Now().UTC()
}
