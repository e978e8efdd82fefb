package timeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minitweet/backend/internal/models"
	"github.com/minitweet/backend/internal/repositories"
)

const (
	userA = "00000000-0000-0000-0000-000000000001"
	userB = "00000000-0000-0000-0000-000000000002"
	userC = "00000000-0000-0000-0000-000000000003"
)

func newTestService(t *testing.T) (*Service, *repositories.MemoryStore) {
	t.Helper()
	store := repositories.NewMemoryStore()
	for _, id := range []string{userA, userB, userC} {
		require.NoError(t, store.Users().Create(context.Background(), models.User{ID: id, Email: id + "@test.com"}))
	}
	return NewService(store.Follows(), store.Tweets()), store
}

func texts(tl models.Timeline) []string {
	out := make([]string, 0, len(tl.Entries))
	for _, e := range tl.Entries {
		out = append(out, e.Text)
	}
	return out
}

func TestGetWithoutFolloweesReturnsOwnTweetsInOrder(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	for _, text := range []string{"first", "second", "third"} {
		_, err := svc.PostMessage(ctx, userA, text)
		require.NoError(t, err)
	}
	_, err := svc.PostMessage(ctx, userB, "not mine")
	require.NoError(t, err)

	tl, err := svc.Get(ctx, userA)
	require.NoError(t, err)
	assert.Equal(t, userA, tl.UserID)
	assert.Equal(t, []string{"first", "second", "third"}, texts(tl))
}

func TestFollowThenUnfollowScenario(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.PostMessage(ctx, userB, "user2 test tweet")
	require.NoError(t, err)
	_, err = svc.PostMessage(ctx, userA, "user1 test tweet")
	require.NoError(t, err)

	tl, err := svc.Get(ctx, userA)
	require.NoError(t, err)
	assert.Equal(t, models.Timeline{
		UserID:  userA,
		Entries: []models.TimelineEntry{{AuthorID: userA, Text: "user1 test tweet"}},
	}, tl)

	require.NoError(t, svc.Follow(ctx, userA, userB))

	tl, err = svc.Get(ctx, userA)
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.TimelineEntry{
		{AuthorID: userA, Text: "user1 test tweet"},
		{AuthorID: userB, Text: "user2 test tweet"},
	}, tl.Entries)

	require.NoError(t, svc.Unfollow(ctx, userA, userB))

	tl, err = svc.Get(ctx, userA)
	require.NoError(t, err)
	assert.Equal(t, []models.TimelineEntry{{AuthorID: userA, Text: "user1 test tweet"}}, tl.Entries)
}

func TestGetInterleavesAuthorsInAppendOrder(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	require.NoError(t, svc.Follow(ctx, userA, userB))
	for _, p := range []struct{ author, text string }{
		{userB, "b1"}, {userC, "c1"}, {userA, "a1"}, {userB, "b2"}, {userA, "a2"},
	} {
		_, err := svc.PostMessage(ctx, p.author, p.text)
		require.NoError(t, err)
	}

	tl, err := svc.Get(ctx, userA)
	require.NoError(t, err)
	assert.Equal(t, []string{"b1", "a1", "b2", "a2"}, texts(tl))
}

func TestFollowIsIdempotentAndSelfFollowAccepted(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	_, err := svc.PostMessage(ctx, userB, "hello")
	require.NoError(t, err)
	_, err = svc.PostMessage(ctx, userA, "mine")
	require.NoError(t, err)

	require.NoError(t, svc.Follow(ctx, userA, userB))
	require.NoError(t, svc.Follow(ctx, userA, userB))
	require.NoError(t, svc.Follow(ctx, userA, userA))
	require.NoError(t, svc.Follow(ctx, userA, "no-such-user"))

	tl, err := svc.Get(ctx, userA)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "mine"}, texts(tl))

	require.NoError(t, svc.Unfollow(ctx, userA, userB))
	require.NoError(t, svc.Unfollow(ctx, userA, userB))

	followees, err := store.Follows().ListFollowees(ctx, userA)
	require.NoError(t, err)
	assert.Equal(t, []string{userA}, followees)

	tl, err = svc.Get(ctx, userA)
	require.NoError(t, err)
	assert.Equal(t, []string{"mine"}, texts(tl))
}

func TestPostMessageLengthBoundary(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.PostMessage(ctx, userA, strings.Repeat("a", models.MaxTweetLength))
	require.NoError(t, err)

	_, err = svc.PostMessage(ctx, userA, strings.Repeat("a", models.MaxTweetLength+1))
	assert.ErrorIs(t, err, ErrMessageTooLong)

	var vErr *ValidationError
	assert.True(t, errors.As(err, &vErr))

	// Multi-byte characters count once each.
	_, err = svc.PostMessage(ctx, userA, strings.Repeat("가", models.MaxTweetLength))
	require.NoError(t, err)

	_, err = svc.PostMessage(ctx, userA, "")
	require.NoError(t, err)

	tl, err := svc.Get(ctx, userA)
	require.NoError(t, err)
	assert.Len(t, tl.Entries, 3)
}

func TestValidationOfIdentifiers(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	var vErr *ValidationError

	_, err := svc.PostMessage(ctx, "", "x")
	assert.True(t, errors.As(err, &vErr))

	assert.True(t, errors.As(svc.Follow(ctx, userA, " "), &vErr))
	assert.Equal(t, "follow", vErr.Field)

	assert.True(t, errors.As(svc.Unfollow(ctx, userA, ""), &vErr))
	assert.Equal(t, "unfollow", vErr.Field)

	_, err = svc.Get(ctx, "")
	assert.True(t, errors.As(err, &vErr))
}

type failingTweets struct{ err error }

func (f failingTweets) Append(context.Context, string, string) (models.Tweet, error) {
	return models.Tweet{}, f.err
}

func (f failingTweets) ScanByAuthors(context.Context, []string) ([]models.Tweet, error) {
	return nil, f.err
}

func TestStoreErrorsAreWrapped(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryStore()
	boom := errors.New("db down")
	svc := NewService(store.Follows(), failingTweets{err: boom})

	_, err := svc.PostMessage(ctx, userA, "x")
	assert.ErrorIs(t, err, boom)

	_, err = svc.Get(ctx, userA)
	assert.ErrorIs(t, err, boom)
}
