package handlers

import (
	"net/http"

	"github.com/minitweet/backend/internal/metrics"
	"github.com/minitweet/backend/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users        UserStore
	Passwords    PasswordHasher
	Auth         Authenticator
	Timeline     TimelineService
	Exporter     TimelineExporter
	LoginLimiter RateLimiter
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux. Write routes and
// the caller's own timeline sit behind middleware.RequireAuth.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	accounts := AuthHandler{Users: deps.Users, Passwords: deps.Passwords, Auth: deps.Auth, Limiter: deps.LoginLimiter}
	tweets := TweetHandler{Timeline: deps.Timeline}
	follows := FollowHandler{Timeline: deps.Timeline}
	timelines := TimelineHandler{Timeline: deps.Timeline, Exporter: deps.Exporter}

	var verifier middleware.TokenVerifier
	if deps.Auth != nil {
		verifier = deps.Auth
	}
	protected := middleware.RequireAuth(verifier)

	mux.HandleFunc("/ping", health.Ping)
	mux.HandleFunc("/healthz", health.Handle)
	mux.Handle("/metrics", metrics.Handler())

	mux.HandleFunc("/sign-up", accounts.SignUp)
	mux.HandleFunc("/login", accounts.Login)

	mux.Handle("/tweet", protected(http.HandlerFunc(tweets.Post)))
	mux.Handle("/follow", protected(http.HandlerFunc(follows.Follow)))
	mux.Handle("/unfollow", protected(http.HandlerFunc(follows.Unfollow)))

	mux.HandleFunc("/timeline/{id}", timelines.ForUser)
	mux.Handle("/timeline", protected(http.HandlerFunc(timelines.Own)))
	mux.Handle("/timeline/export", protected(http.HandlerFunc(timelines.Export)))
}
