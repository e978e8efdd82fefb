package timeline

import (
	"fmt"

	"github.com/minitweet/backend/internal/models"
)

// ValidationError reports a write rejected before reaching the store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ErrMessageTooLong is returned when tweet text exceeds models.MaxTweetLength runes.
var ErrMessageTooLong = &ValidationError{
	Field:  "tweet",
	Reason: fmt.Sprintf("exceeds %d characters", models.MaxTweetLength),
}
