package handlers

import (
	"context"

	"github.com/minitweet/backend/internal/auth"
	"github.com/minitweet/backend/internal/models"
)

// UserStore captures the account persistence required by sign-up.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
}

// PasswordHasher turns a plaintext password into storable hash material.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// Authenticator logs users in and resolves bearer tokens.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (auth.LoginResult, error)
	Authenticate(token string) (string, error)
}

// TimelineService performs the tweet, follow and timeline operations.
type TimelineService interface {
	PostMessage(ctx context.Context, authorID, text string) (models.Tweet, error)
	Follow(ctx context.Context, followerID, followeeID string) error
	Unfollow(ctx context.Context, followerID, followeeID string) error
	Get(ctx context.Context, userID string) (models.Timeline, error)
}

// TimelineExporter schedules background archiving of a user's timeline.
type TimelineExporter interface {
	Enqueue(ctx context.Context, userID string) error
}
