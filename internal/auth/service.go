package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/minitweet/backend/internal/models"
	"github.com/minitweet/backend/internal/repositories"
)

// dummyHash is compared against when no account matches the email.
var dummyHash = sync.OnceValue(func() string {
	hashed, err := bcrypt.GenerateFromPassword([]byte("minitweet-unknown-account"), bcrypt.DefaultCost)
	if err != nil {
		panic(fmt.Sprintf("auth: generate dummy hash: %v", err))
	}
	return string(hashed)
})

// CredentialStore looks up the credential material of an account.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (models.User, error)
}

// LoginResult is returned after a successful login.
type LoginResult struct {
	UserID string
	Token  models.AuthToken
}

// Service authenticates users and resolves bearer tokens to user ids.
type Service struct {
	credentials CredentialStore
	passwords   PasswordVerifier
	tokens      *TokenIssuer
}

// NewService wires a Service from its collaborators.
func NewService(credentials CredentialStore, passwords PasswordVerifier, tokens *TokenIssuer) *Service {
	if credentials == nil || passwords == nil || tokens == nil {
		panic("auth: service dependencies must not be nil")
	}
	return &Service{credentials: credentials, passwords: passwords, tokens: tokens}
}

// Login verifies email and password and issues a token for the matching account.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return LoginResult{}, ErrUnauthenticated
	}

	user, err := s.credentials.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			// Pay the same hashing cost as a known account.
			s.passwords.Verify(dummyHash(), password)
			return LoginResult{}, ErrUnauthenticated
		}
		return LoginResult{}, fmt.Errorf("lookup credentials: %w", err)
	}

	if !s.passwords.Verify(user.PasswordHash, password) {
		return LoginResult{}, ErrUnauthenticated
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}

	return LoginResult{UserID: user.ID, Token: token}, nil
}

// Authenticate resolves a bearer token to the user id it was issued for.
func (s *Service) Authenticate(token string) (string, error) {
	return s.tokens.Verify(token)
}

type ctxKey struct{}

// WithUserID stores the authenticated user id on the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	userID, ok := ctx.Value(ctxKey{}).(string)
	return userID, ok && userID != ""
}
