// Package api exposes the HTTP surface of the service: authentication,
// metric ingestion and queries, goals, the assistant chat, and health.
package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/supahealth/supahealth/internal/api/respond"
	"github.com/supahealth/supahealth/internal/auth"
	"github.com/supahealth/supahealth/internal/model"
	"github.com/supahealth/supahealth/internal/rid"
	"github.com/supahealth/supahealth/internal/store"
)

const minPasswordLength = 8

// AuthHandler serves signup, signin, token refresh, and the current
// user endpoint.
type AuthHandler struct {
	users  store.Users
	issuer *auth.TokenIssuer
}

func NewAuthHandler(users store.Users, issuer *auth.TokenIssuer) *AuthHandler {
	return &AuthHandler{users: users, issuer: issuer}
}

type signupRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName *string `json:"fullName,omitempty"`
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// Signup handles POST /api/v1/auth/signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid JSON body")
		return
	}
	if err := validateSignup(&req); err != nil {
		respond.WriteValidationError(w, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	user, err := h.users.Create(r.Context(), &model.User{
		ID:           rid.New("user"),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		FullName:     req.FullName,
		IsActive:     true,
	})
	if errors.Is(err, model.ErrConflict) {
		respond.WriteError(w, http.StatusConflict, "email already registered")
		return
	}
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}

	zerolog.Ctx(r.Context()).Info().Str("user_id", user.ID).Msg("user signed up")
	respond.WriteJSON(w, http.StatusCreated, user)
}

// Signin handles POST /api/v1/auth/signin. Every failure mode answers
// with the same 401 so callers cannot enumerate accounts.
func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid JSON body")
		return
	}

	user, err := h.users.GetByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil || !user.IsActive || !auth.VerifyPassword(user.PasswordHash, req.Password) {
		respond.WriteUnauthorized(w)
		return
	}

	token, expiresAt, err := h.issuer.Issue(user)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(time.Until(expiresAt).Seconds()),
	})
}

// Refresh handles POST /api/v1/auth/refresh. The gateway has already
// verified the caller, so this just issues a fresh token for them.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		respond.WriteUnauthorized(w)
		return
	}
	token, expiresAt, err := h.issuer.Issue(user)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(time.Until(expiresAt).Seconds()),
	})
}

// Me handles GET /api/v1/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		respond.WriteUnauthorized(w)
		return
	}
	respond.WriteJSON(w, http.StatusOK, user)
}

func validateSignup(req *signupRequest) error {
	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return model.Fieldf("email", "a valid email address is required")
	}
	if len(req.Password) < minPasswordLength {
		return model.Fieldf("password", "password must be at least %d characters", minPasswordLength)
	}
	return nil
}
