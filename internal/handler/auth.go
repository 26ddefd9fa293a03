package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/dukerupert/smartcart/internal/apperr"
	"github.com/dukerupert/smartcart/internal/auth"
	"github.com/dukerupert/smartcart/internal/model"
	"github.com/dukerupert/smartcart/internal/store"
)

type AuthHandler struct {
	users  store.UserStore
	tokens *auth.Tokens
	logger *slog.Logger
}

func NewAuthHandler(users store.UserStore, tokens *auth.Tokens, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, logger: logger}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	name := strings.TrimSpace(req.Name)
	email := store.NormalizeEmail(req.Email)
	if name == "" || email == "" || req.Password == "" {
		writeFailure(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		writeFailure(w, http.StatusBadRequest, "Invalid email address")
		return
	}
	if len(req.Password) < auth.MinPasswordLength {
		writeFailure(w, http.StatusBadRequest, "Password must be at least 6 characters long")
		return
	}
	if len(req.Password) > auth.MaxPasswordLength {
		writeFailure(w, http.StatusBadRequest, "Password must be at most 72 bytes long")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, err := h.users.CreateUser(r.Context(), name, email, hash)
	if errors.Is(err, store.ErrDuplicate) {
		writeFailure(w, http.StatusBadRequest, "User already exists")
		return
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.logger.Info("user registered", "user_id", user.ID)
	h.respondWithTokens(w, r, http.StatusCreated, user)
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	email := store.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		writeFailure(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), email)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		writeFailure(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	h.respondWithTokens(w, r, http.StatusOK, user)
}

// Refresh handles POST /api/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeFailure(w, http.StatusBadRequest, "Refresh token is required")
		return
	}

	claims, err := h.tokens.VerifyRefresh(req.RefreshToken)
	if err != nil {
		writeFailure(w, http.StatusUnauthorized, "Invalid or expired refresh token")
		return
	}
	user, err := h.users.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if user == nil {
		writeFailure(w, http.StatusUnauthorized, "Invalid or expired refresh token")
		return
	}

	pair, err := h.tokens.Issue(user.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetUserByID(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if user == nil {
		writeError(w, r, h.logger, apperr.Unauthorized("User not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}

func (h *AuthHandler) respondWithTokens(w http.ResponseWriter, r *http.Request, status int, user *model.User) {
	pair, err := h.tokens.Issue(user.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, status, map[string]any{
		"success":      true,
		"user":         user,
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}
