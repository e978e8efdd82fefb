package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/minitweet/backend/internal/models"
)

// MemoryStore implements the user, follow and tweet repositories in process
// memory. It backs local development runs and handler tests.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]models.User
	byEmail map[string]string
	follows map[string][]string
	tweets  []models.Tweet
	nextID  int64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]models.User),
		byEmail: make(map[string]string),
		follows: make(map[string][]string),
	}
}

// Users exposes the store as a UserRepository.
func (s *MemoryStore) Users() UserRepository { return memoryUsers{s} }

// Follows exposes the store as a FollowRepository.
func (s *MemoryStore) Follows() FollowRepository { return memoryFollows{s} }

// Tweets exposes the store as a TweetRepository.
func (s *MemoryStore) Tweets() TweetRepository { return memoryTweets{s} }

type memoryUsers struct{ s *MemoryStore }

func (m memoryUsers) Create(_ context.Context, user models.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, exists := m.s.byEmail[user.Email]; exists {
		return ErrConflict
	}
	if _, exists := m.s.users[user.ID]; exists {
		return ErrConflict
	}
	m.s.users[user.ID] = user
	m.s.byEmail[user.Email] = user.ID
	return nil
}

func (m memoryUsers) FindByID(_ context.Context, id string) (models.User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	user, ok := m.s.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return user, nil
}

func (m memoryUsers) FindByEmail(_ context.Context, email string) (models.User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	id, ok := m.s.byEmail[email]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return m.s.users[id], nil
}

type memoryFollows struct{ s *MemoryStore }

func (m memoryFollows) Insert(_ context.Context, followerID, followeeID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, ok := m.s.users[followeeID]; !ok {
		return nil
	}
	for _, existing := range m.s.follows[followerID] {
		if existing == followeeID {
			return nil
		}
	}
	m.s.follows[followerID] = append(m.s.follows[followerID], followeeID)
	return nil
}

func (m memoryFollows) Delete(_ context.Context, followerID, followeeID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	edges := m.s.follows[followerID]
	for i, existing := range edges {
		if existing == followeeID {
			m.s.follows[followerID] = append(edges[:i:i], edges[i+1:]...)
			break
		}
	}
	return nil
}

func (m memoryFollows) ListFollowees(_ context.Context, followerID string) ([]string, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	edges := m.s.follows[followerID]
	out := make([]string, len(edges))
	copy(out, edges)
	return out, nil
}

type memoryTweets struct{ s *MemoryStore }

func (m memoryTweets) Append(_ context.Context, authorID, text string) (models.Tweet, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, ok := m.s.users[authorID]; !ok {
		return models.Tweet{}, ErrNotFound
	}
	m.s.nextID++
	tweet := models.Tweet{
		ID:        m.s.nextID,
		AuthorID:  authorID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	m.s.tweets = append(m.s.tweets, tweet)
	return tweet, nil
}

func (m memoryTweets) ScanByAuthors(_ context.Context, authorIDs []string) ([]models.Tweet, error) {
	if len(authorIDs) == 0 {
		return nil, nil
	}

	authors := make(map[string]struct{}, len(authorIDs))
	for _, id := range authorIDs {
		authors[id] = struct{}{}
	}

	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	var out []models.Tweet
	for _, tweet := range m.s.tweets {
		if _, ok := authors[tweet.AuthorID]; ok {
			out = append(out, tweet)
		}
	}
	return out, nil
}

var _ UserRepository = memoryUsers{}
var _ FollowRepository = memoryFollows{}
var _ TweetRepository = memoryTweets{}
