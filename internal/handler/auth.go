package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mmmykhailo/timecracker-api/internal/apperror"
	"github.com/mmmykhailo/timecracker-api/internal/auth"
	"github.com/mmmykhailo/timecracker-api/internal/model"
	"github.com/mmmykhailo/timecracker-api/internal/service"
)

// AuthHandler exposes registration, login, refresh, logout, profile and the
// GitHub OAuth redirect/callback pair.
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

func NewAuthHandler(authService *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: authService, logger: logger}
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// tokenResponse is the common success shape of the auth endpoints.
type tokenResponse struct {
	AccessToken  string           `json:"accessToken"`
	RefreshToken string           `json:"refreshToken"`
	User         model.PublicUser `json:"user"`
}

// HandleRegister creates a password account.
//
// HTTP: POST /auth/register
// 201 with a token pair; 400 on invalid input or duplicate username/email.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validateRegister(req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.Register(r.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		// The API contract reports duplicates as a 400, not 409.
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && errors.Is(err, apperror.ErrConflict) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "validation_error",
				Message: appErr.Message,
				Field:   appErr.Field,
			})
			return
		}
		h.logger.Error("register failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, tokenResponse{
		AccessToken:  result.Pair.AccessToken,
		RefreshToken: result.Pair.RefreshToken,
		User:         result.User.Public(),
	})
}

// HandleLogin verifies password credentials.
//
// HTTP: POST /auth/login
// 200 with a token pair; 401 uniform on any credential failure.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, apperror.Unauthorized())
		return
	}

	result, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  result.Pair.AccessToken,
		RefreshToken: result.Pair.RefreshToken,
		User:         result.User.Public(),
	})
}

// HandleRefresh rotates a refresh token for a new pair.
//
// HTTP: POST /auth/refresh
// 200 with a fresh pair; 401 when the token is invalid, expired or already
// rotated — after this call the presented token is dead either way.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.RefreshToken == "" {
		writeError(w, apperror.Unauthorized())
		return
	}

	result, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, auth.TokenPair{
		AccessToken:  result.Pair.AccessToken,
		RefreshToken: result.Pair.RefreshToken,
	})
}

// HandleGitHubLogin starts the federated login flow.
//
// HTTP: GET /auth/github
// 302 redirect to GitHub's authorization page with the anti-forgery state.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	url, err := h.auth.BeginGitHubFlow(r.Context())
	if err != nil {
		h.logger.Error("starting GitHub flow failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}

// HandleGitHubCallback completes the federated login flow.
//
// HTTP: GET /auth/github/callback?code&state
// 200 with a token pair; 400 on missing/invalid/replayed state or missing
// code; 502 when GitHub misbehaves.
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if state == "" {
		writeError(w, apperror.InvalidState())
		return
	}
	if code == "" {
		writeError(w, apperror.ValidationFailed("code", "missing OAuth code"))
		return
	}

	result, err := h.auth.CompleteGitHubFlow(r.Context(), code, state)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  result.Pair.AccessToken,
		RefreshToken: result.Pair.RefreshToken,
		User:         result.User.Public(),
	})
}

// HandleLogout clears the caller's refresh-token slot. The current access
// token stays valid until expiry; without the slot no new pair can be minted.
//
// HTTP: POST /auth/logout (authenticated)
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized())
		return
	}

	if err := h.auth.Logout(r.Context(), userID); err != nil {
		h.logger.Error("logout failed", slog.String("userID", userID), slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// HandleProfile returns the authenticated user's public profile.
//
// HTTP: GET /auth/profile (authenticated)
func (h *AuthHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized())
		return
	}

	user, err := h.auth.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user.Public())
}

func validateRegister(req registerRequest) error {
	if len(req.Username) < 3 {
		return apperror.ValidationFailed("username", "username must be at least 3 characters")
	}
	if len(req.Password) < 6 {
		return apperror.ValidationFailed("password", "password must be at least 6 characters")
	}
	if !strings.Contains(req.Email, "@") {
		return apperror.ValidationFailed("email", "invalid email address")
	}
	return nil
}
