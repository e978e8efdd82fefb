package handlers

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/minitweet/backend/internal/auth"
	"github.com/minitweet/backend/internal/logging"
	"github.com/minitweet/backend/internal/metrics"
	"github.com/minitweet/backend/internal/models"
	"github.com/minitweet/backend/internal/repositories"
)

// AuthHandler implements account creation and login.
type AuthHandler struct {
	Users     UserStore
	Passwords PasswordHasher
	Auth      Authenticator
	Limiter   RateLimiter
	NowFunc   func() time.Time
}

// SignUp handles POST /sign-up requests.
func (h AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "signup") {
		logger.Warn("signup rate limited", "ip", clientIP(r))
		respondError(ctx, w, http.StatusTooManyRequests, "too many sign-up attempts, please try again later")
		return
	}

	if h.Users == nil || h.Passwords == nil {
		logger.Error("signup dependencies unavailable", "hasUsers", h.Users != nil, "hasPasswords", h.Passwords != nil)
		respondError(ctx, w, http.StatusInternalServerError, "account services unavailable")
		return
	}

	var req signUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid signup payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" {
		logger.Warn("signup missing fields", "email", req.Email)
		respondError(ctx, w, http.StatusBadRequest, "name, email and password are required")
		return
	}

	if _, err := mail.ParseAddress(req.Email); err != nil {
		logger.Warn("signup invalid email", "email", req.Email, "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid email address")
		return
	}

	hashed, err := h.Passwords.Hash(req.Password)
	if err != nil {
		logger.Error("signup failed to hash password", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to secure password")
		return
	}

	user := models.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		Profile:      req.Profile,
		PasswordHash: hashed,
		CreatedAt:    h.now(),
	}

	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			logger.Warn("signup conflict", "email", req.Email)
			respondError(ctx, w, http.StatusConflict, "account already exists")
			return
		}
		logger.Error("signup failed to create user", "error", err, "email", req.Email)
		respondError(ctx, w, http.StatusInternalServerError, "failed to create account")
		return
	}

	// Read back what the store persisted so the response reflects it.
	stored, err := h.Users.FindByID(ctx, user.ID)
	if err != nil {
		logger.Error("signup failed to load created user", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load account")
		return
	}

	metrics.SignUps.Inc()
	logger.Info("account created", "userId", stored.ID)
	respondJSON(ctx, w, http.StatusOK, newUserResponse(stored))
}

// Login handles POST /login requests.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "login") {
		logger.Warn("login rate limited", "ip", clientIP(r))
		metrics.LoginFailure.WithLabelValues("rate_limited").Inc()
		respondError(ctx, w, http.StatusTooManyRequests, "too many login attempts, please try again later")
		return
	}

	if h.Auth == nil {
		logger.Error("authentication service unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "authentication services unavailable")
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid login payload", "error", err)
		metrics.LoginFailure.WithLabelValues("bad_request").Inc()
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		logger.Warn("login missing credentials")
		metrics.LoginFailure.WithLabelValues("bad_request").Inc()
		respondError(ctx, w, http.StatusBadRequest, "email and password are required")
		return
	}

	result, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			logger.Warn("login rejected")
			metrics.LoginFailure.WithLabelValues("invalid_credentials").Inc()
			respondError(ctx, w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		logger.Error("login failed", "error", err)
		metrics.LoginFailure.WithLabelValues("internal").Inc()
		respondError(ctx, w, http.StatusInternalServerError, "unable to log in")
		return
	}

	metrics.LoginSuccess.Inc()
	respondJSON(ctx, w, http.StatusOK, loginResponse{
		UserID:      result.UserID,
		AccessToken: result.Token.Value,
	})
}

type signUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Profile  string `json:"profile"`
	Password string `json:"password"`
}

type userResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Profile string `json:"profile"`
}

func newUserResponse(user models.User) userResponse {
	return userResponse{ID: user.ID, Name: user.Name, Email: user.Email, Profile: user.Profile}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
