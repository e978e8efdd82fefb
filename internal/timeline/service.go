package timeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/minitweet/backend/internal/logging"
	"github.com/minitweet/backend/internal/models"
)

// FollowGraph stores directed follow edges.
type FollowGraph interface {
	Insert(ctx context.Context, followerID, followeeID string) error
	Delete(ctx context.Context, followerID, followeeID string) error
	ListFollowees(ctx context.Context, followerID string) ([]string, error)
}

// TweetLog stores tweets in append order.
type TweetLog interface {
	Append(ctx context.Context, authorID, text string) (models.Tweet, error)
	ScanByAuthors(ctx context.Context, authorIDs []string) ([]models.Tweet, error)
}

// Service answers timeline reads and validates the writes that feed them.
type Service struct {
	follows FollowGraph
	tweets  TweetLog
}

// NewService constructs a Service over the provided stores.
func NewService(follows FollowGraph, tweets TweetLog) *Service {
	if follows == nil || tweets == nil {
		panic("timeline: stores must not be nil")
	}
	return &Service{follows: follows, tweets: tweets}
}

// PostMessage appends text to the author's tweets. Text longer than
// models.MaxTweetLength runes is rejected with ErrMessageTooLong; empty text is allowed.
func (s *Service) PostMessage(ctx context.Context, authorID, text string) (models.Tweet, error) {
	if err := requireID("author", authorID); err != nil {
		return models.Tweet{}, err
	}
	if utf8.RuneCountInString(text) > models.MaxTweetLength {
		return models.Tweet{}, ErrMessageTooLong
	}

	tweet, err := s.tweets.Append(ctx, authorID, text)
	if err != nil {
		return models.Tweet{}, fmt.Errorf("append tweet: %w", err)
	}
	return tweet, nil
}

// Follow adds followeeID to followerID's timeline sources. Repeating a follow,
// following oneself or following an unknown id are accepted.
func (s *Service) Follow(ctx context.Context, followerID, followeeID string) error {
	if err := errors.Join(requireID("follower", followerID), requireID("follow", followeeID)); err != nil {
		return err
	}
	if err := s.follows.Insert(ctx, followerID, followeeID); err != nil {
		return fmt.Errorf("insert follow: %w", err)
	}
	return nil
}

// Unfollow removes the edge if it exists.
func (s *Service) Unfollow(ctx context.Context, followerID, followeeID string) error {
	if err := errors.Join(requireID("follower", followerID), requireID("unfollow", followeeID)); err != nil {
		return err
	}
	if err := s.follows.Delete(ctx, followerID, followeeID); err != nil {
		return fmt.Errorf("delete follow: %w", err)
	}
	return nil
}

// Get returns userID's tweets and the tweets of everyone userID follows, in the
// order they were appended to the log.
func (s *Service) Get(ctx context.Context, userID string) (models.Timeline, error) {
	ctx, span := logging.StartSpan(ctx, "timeline.get")
	defer span.End()

	if err := requireID("user", userID); err != nil {
		return models.Timeline{}, err
	}

	followees, err := s.follows.ListFollowees(ctx, userID)
	if err != nil {
		return models.Timeline{}, fmt.Errorf("list followees: %w", err)
	}

	tweets, err := s.tweets.ScanByAuthors(ctx, authorSet(userID, followees))
	if err != nil {
		return models.Timeline{}, fmt.Errorf("scan tweets: %w", err)
	}

	entries := make([]models.TimelineEntry, 0, len(tweets))
	for _, tweet := range tweets {
		entries = append(entries, models.TimelineEntry{AuthorID: tweet.AuthorID, Text: tweet.Text})
	}

	logging.FromContext(ctx).Debug("timeline assembled",
		slog.String("user_id", userID),
		slog.Int("followees", len(followees)),
		slog.Int("entries", len(entries)),
	)

	return models.Timeline{UserID: userID, Entries: entries}, nil
}

// authorSet returns userID followed by its distinct followees.
func authorSet(userID string, followees []string) []string {
	seen := map[string]struct{}{userID: {}}
	authors := []string{userID}
	for _, id := range followees {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		authors = append(authors, id)
	}
	return authors
}

func requireID(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Reason: "is required"}
	}
	return nil
}
