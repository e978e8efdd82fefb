package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/minitweet/backend/internal/auth"
	"github.com/minitweet/backend/internal/logging"
)

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Authenticate(token string) (string, error)
}

// RequireAuth rejects requests without a valid token with 401 before next runs.
// On success the user id is available through auth.UserIDFromContext.
func RequireAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := BearerToken(r)
			if token == "" || verifier == nil {
				logging.FromContext(ctx).Warn("request without credentials")
				unauthorized(w)
				return
			}

			userID, err := verifier.Authenticate(token)
			if err != nil {
				logging.FromContext(ctx).Warn("token rejected", "error", err)
				unauthorized(w)
				return
			}

			ctx = auth.WithUserID(ctx, userID)
			ctx = logging.WithUserID(ctx, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from the Authorization header. Both
// "Bearer <token>" and a bare token are accepted.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	if scheme, rest, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(rest)
	}
	if strings.ContainsAny(header, " \t") {
		return ""
	}
	return header
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="minitweet"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
}
