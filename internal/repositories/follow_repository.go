package repositories

import (
	"context"
)

// FollowRepository defines data access for directed follow edges.
type FollowRepository interface {
	Insert(ctx context.Context, followerID, followeeID string) error
	Delete(ctx context.Context, followerID, followeeID string) error
	ListFollowees(ctx context.Context, followerID string) ([]string, error)
}
