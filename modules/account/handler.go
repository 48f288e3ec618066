// Package account exposes the identity endpoints: registration, login,
// token refresh, logout, and the authenticated profile.
package account

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tradesignal/backend/pkg/binder"
	"github.com/tradesignal/backend/pkg/clientip"
	"github.com/tradesignal/backend/pkg/response"
	"github.com/tradesignal/backend/svc/auth"
	"github.com/tradesignal/backend/svc/user"
)

// Option configures the handler.
type Option func(*Handler)

// WithLogger sets a structured logger. A nil logger is ignored.
func WithLogger(log *slog.Logger) Option {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

// WithRateLimit guards the register, login, and refresh routes with the
// given middleware. A nil middleware leaves them unguarded.
func WithRateLimit(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.rateLimit = mw
	}
}

// Handler serves the account routes.
type Handler struct {
	users     *user.Service
	tokens    *auth.Service
	rateLimit func(http.Handler) http.Handler
	log       *slog.Logger
}

// NewHandler wires the account module.
func NewHandler(users *user.Service, tokens *auth.Service, opts ...Option) *Handler {
	h := &Handler{
		users:  users,
		tokens: tokens,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router mounts the account routes. Token endpoints are public; profile
// endpoints sit behind the access token middleware. The rate limit
// guard, when configured, covers only the endpoints that accept
// credentials.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(clientip.Middleware)

	r.Group(func(pub chi.Router) {
		if h.rateLimit != nil {
			pub.Use(h.rateLimit)
		}
		pub.Post("/register", h.register)
		pub.Post("/login", h.login)
		pub.Post("/refresh", h.refresh)
	})

	r.Post("/logout", h.logout)

	r.Group(func(priv chi.Router) {
		priv.Use(auth.Middleware(h.tokens))
		priv.Get("/me", h.me)
		priv.Put("/me/notification-channel", h.setNotificationChannel)
	})

	return r
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !bind(w, r, &req) {
		return
	}

	usr, err := h.users.Create(r.Context(), user.CreateParams{
		Email:    req.Email,
		Password: req.Password,
		Role:     user.RoleUser,
		Active:   true,
	})
	if err != nil {
		switch {
		case errors.Is(err, user.ErrInvalidEmail):
			response.Error(w, response.ValidationError{"email": {"must be a valid email address"}})
		case errors.Is(err, user.ErrWeakPassword):
			response.Error(w, response.ValidationError{"password": {"does not meet the minimum length"}})
		case errors.Is(err, user.ErrEmailTaken):
			response.Error(w, response.ErrConflict.WithMessage("email already registered"))
		default:
			h.log.ErrorContext(r.Context(), "registration failed", slog.Any("error", err))
			response.Error(w, err)
		}
		return
	}

	response.JSON(w, http.StatusCreated, toUserResponse(usr))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type credentialsResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	User         userResponse `json:"user"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !bind(w, r, &req) {
		return
	}

	usr, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrInvalidCredentials):
			response.Error(w, response.ErrUnauthorized.WithMessage("invalid email or password"))
		case errors.Is(err, user.ErrUserDisabled):
			response.Error(w, response.ErrForbidden.WithMessage("account is not active yet"))
		default:
			h.log.ErrorContext(r.Context(), "login failed", slog.Any("error", err))
			response.Error(w, err)
		}
		return
	}

	creds, err := h.issueCredentials(r, usr)
	if err != nil {
		h.log.ErrorContext(r.Context(), "token issuance failed", slog.Any("error", err))
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, creds)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !bind(w, r, &req) {
		return
	}

	claims, record, err := h.tokens.VerifyRefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		// Unknown, revoked, expired, and malformed all collapse to the
		// same 401; the distinction lives in the server logs only.
		response.Error(w, response.ErrUnauthorized)
		return
	}
	ownerID, err := claims.OwnerID()
	if err != nil {
		response.Error(w, response.ErrUnauthorized)
		return
	}

	meta := requestMeta(r)
	rotated, _, err := h.tokens.RotateRefreshToken(r.Context(), record, meta)
	if err != nil {
		if errors.Is(err, auth.ErrRevokedToken) {
			response.Error(w, response.ErrUnauthorized)
			return
		}
		h.log.ErrorContext(r.Context(), "token rotation failed", slog.Any("error", err))
		response.Error(w, err)
		return
	}

	access, err := h.tokens.IssueAccessToken(ownerID, claims.OwnerType)
	if err != nil {
		h.log.ErrorContext(r.Context(), "token issuance failed", slog.Any("error", err))
		response.Error(w, err)
		return
	}

	response.JSON(w, http.StatusOK, tokenPairResponse{
		AccessToken:  access,
		RefreshToken: rotated,
	})
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if !bind(w, r, &req) {
		return
	}

	if err := h.tokens.RevokeRefreshToken(r.Context(), req.RefreshToken); err != nil {
		h.log.ErrorContext(r.Context(), "logout failed", slog.Any("error", err))
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.GetIdentityFromContext(r.Context())
	if !ok {
		response.Error(w, response.ErrUnauthorized)
		return
	}

	usr, err := h.users.Get(r.Context(), identity.OwnerID)
	if err != nil {
		// A valid token for a missing account means the account is gone;
		// treat the credential as dead.
		if errors.Is(err, user.ErrUserNotFound) {
			response.Error(w, response.ErrUnauthorized)
			return
		}
		h.log.ErrorContext(r.Context(), "profile lookup failed", slog.Any("error", err))
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, toUserResponse(usr))
}

type notificationChannelRequest struct {
	Channel string `json:"channel"`
}

func (h *Handler) setNotificationChannel(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.GetIdentityFromContext(r.Context())
	if !ok {
		response.Error(w, response.ErrUnauthorized)
		return
	}

	var req notificationChannelRequest
	if !bind(w, r, &req) {
		return
	}

	if err := h.users.SetNotificationChannel(r.Context(), identity.OwnerID, req.Channel); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			response.Error(w, response.ErrUnauthorized)
			return
		}
		h.log.ErrorContext(r.Context(), "channel update failed", slog.Any("error", err))
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}

func (h *Handler) issueCredentials(r *http.Request, usr *user.User) (*credentialsResponse, error) {
	ownerType := auth.OwnerUser
	if usr.IsAdmin() {
		ownerType = auth.OwnerAdmin
	}

	access, err := h.tokens.IssueAccessToken(usr.ID, ownerType)
	if err != nil {
		return nil, err
	}
	refresh, _, err := h.tokens.IssueRefreshToken(r.Context(), usr.ID, ownerType, requestMeta(r))
	if err != nil {
		return nil, err
	}

	return &credentialsResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         toUserResponse(usr),
	}, nil
}

func requestMeta(r *http.Request) auth.RequestMeta {
	return auth.RequestMeta{
		IP:        clientip.GetIPFromContext(r.Context()),
		UserAgent: r.UserAgent(),
	}
}

func bind(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := binder.JSON(r, v); err != nil {
		response.Error(w, response.ErrBadRequest.WithMessage(err.Error()))
		return false
	}
	return true
}

type userResponse struct {
	ID                  uuid.UUID `json:"id"`
	Email               string    `json:"email"`
	Role                user.Role `json:"role"`
	Active              bool      `json:"active"`
	NotificationChannel *string   `json:"notificationChannel,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
}

func toUserResponse(usr *user.User) userResponse {
	return userResponse{
		ID:                  usr.ID,
		Email:               usr.Email,
		Role:                usr.Role,
		Active:              usr.Active,
		NotificationChannel: usr.NotificationChannel,
		CreatedAt:           usr.CreatedAt,
	}
}
