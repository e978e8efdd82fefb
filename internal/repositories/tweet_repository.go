package repositories

import (
	"context"

	"github.com/minitweet/backend/internal/models"
)

// TweetRepository exposes the append-only tweet log.
type TweetRepository interface {
	Append(ctx context.Context, authorID, text string) (models.Tweet, error)
	// ScanByAuthors returns every tweet written by one of authorIDs in insertion order.
	ScanByAuthors(ctx context.Context, authorIDs []string) ([]models.Tweet, error)
}
