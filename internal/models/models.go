package models

import "time"

// MaxTweetLength is the upper bound on tweet text, counted in runes.
const MaxTweetLength = 300

// User represents an account within the minitweet platform.
type User struct {
	ID           string
	Name         string
	Email        string
	Profile      string
	PasswordHash string
	CreatedAt    time.Time
}

// FollowEdge is a directed follow relation between two users.
type FollowEdge struct {
	FollowerID string
	FolloweeID string
}

// Tweet is a single post. IDs increase with insertion order.
type Tweet struct {
	ID        int64
	AuthorID  string
	Text      string
	CreatedAt time.Time
}

// TimelineEntry is one post as it appears in a timeline.
type TimelineEntry struct {
	AuthorID string `json:"user_id"`
	Text     string `json:"tweet"`
}

// Timeline is the ordered set of posts visible to a user.
type Timeline struct {
	UserID  string          `json:"user_id"`
	Entries []TimelineEntry `json:"timeline"`
}

// AuthToken is a signed bearer credential bound to a user.
type AuthToken struct {
	Value     string
	UserID    string
	ExpiresAt time.Time
}
