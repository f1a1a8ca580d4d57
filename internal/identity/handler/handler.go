package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"attentid/internal/identity"
	jwttoken "attentid/internal/jwt_token"
	"attentid/internal/transport/http/shared"
	dErrors "attentid/pkg/domain-errors"
)

// Service defines the identity operations the transport consumes.
type Service interface {
	Register(ctx context.Context, email, name, password string) (identity.User, error)
	Authenticate(ctx context.Context, email, password string) (identity.User, error)
	Get(ctx context.Context, userID string) (identity.User, error)
}

// Handler exposes user registration, lookup, and token issuance.
type Handler struct {
	users       Service
	tokens      *jwttoken.JWTService
	tokenExpiry time.Duration
	logger      *slog.Logger
}

func New(users Service, tokens *jwttoken.JWTService, tokenExpiry time.Duration, logger *slog.Logger) *Handler {
	return &Handler{users: users, tokens: tokens, tokenExpiry: tokenExpiry, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/users", h.handleRegister)
	r.Get("/users/{id}", h.handleGet)
	r.Post("/auth/token", h.handleToken)
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type userResponse struct {
	ID      string    `json:"id"`
	Email   string    `json:"email"`
	Name    string    `json:"name"`
	Created time.Time `json:"created"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	user, err := h.users.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, userResponse{
		ID: user.ID, Email: user.Email, Name: user.Name, Created: user.Created,
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, userResponse{
		ID: user.ID, Email: user.Email, Name: user.Name, Created: user.Created,
	})
}

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	user, err := h.users.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	token, err := h.tokens.GenerateAccessToken(user.ID, user.Email, h.tokenExpiry)
	if err != nil {
		h.logger.ErrorContext(ctx, "token generation failed", "error", err)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "could not issue token"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(h.tokenExpiry.Seconds()),
	})
}
