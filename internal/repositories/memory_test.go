package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/minitweet/backend/internal/models"
)

func seedMemoryUsers(t *testing.T, store *MemoryStore, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if err := store.Users().Create(context.Background(), models.User{ID: id, Email: id + "@example.com"}); err != nil {
			t.Fatalf("create user %s: %v", id, err)
		}
	}
}

func TestMemoryUsers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	users := store.Users()

	if err := users.Create(ctx, models.User{ID: "u1", Email: "a@example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := users.Create(ctx, models.User{ID: "u2", Email: "a@example.com"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict got %v", err)
	}

	if user, err := users.FindByEmail(ctx, "a@example.com"); err != nil || user.ID != "u1" {
		t.Fatalf("find by email: %+v %v", user, err)
	}
	if _, err := users.FindByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound got %v", err)
	}
}

func TestMemoryFollows(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedMemoryUsers(t, store, "u1", "u2", "u3")
	follows := store.Follows()

	_ = follows.Insert(ctx, "u1", "u2")
	_ = follows.Insert(ctx, "u1", "u2")
	_ = follows.Insert(ctx, "u1", "u3")
	_ = follows.Insert(ctx, "u1", "ghost")

	got, _ := follows.ListFollowees(ctx, "u1")
	if len(got) != 2 || got[0] != "u2" || got[1] != "u3" {
		t.Fatalf("unexpected followees: %v", got)
	}

	_ = follows.Delete(ctx, "u1", "u2")
	_ = follows.Delete(ctx, "u1", "u2")

	got, _ = follows.ListFollowees(ctx, "u1")
	if len(got) != 1 || got[0] != "u3" {
		t.Fatalf("unexpected followees after delete: %v", got)
	}
}

func TestMemoryTweetsScanOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedMemoryUsers(t, store, "u1", "u2", "u3")
	tweets := store.Tweets()

	for _, p := range []struct{ author, text string }{
		{"u2", "b1"}, {"u1", "a1"}, {"u3", "c1"}, {"u2", "b2"},
	} {
		if _, err := tweets.Append(ctx, p.author, p.text); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := tweets.ScanByAuthors(ctx, []string{"u1", "u2"})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	want := []string{"b1", "a1", "b2"}
	if len(got) != len(want) {
		t.Fatalf("expected %d tweets got %+v", len(want), got)
	}
	for i := range want {
		if got[i].Text != want[i] {
			t.Fatalf("tweet %d: expected %q got %q", i, want[i], got[i].Text)
		}
		if i > 0 && got[i].ID <= got[i-1].ID {
			t.Fatalf("expected increasing ids: %+v", got)
		}
	}

	if _, err := tweets.Append(ctx, "ghost", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound got %v", err)
	}
}
