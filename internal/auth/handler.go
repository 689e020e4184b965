package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/martpos/martpos/internal/platform/httpx"
	"github.com/martpos/martpos/internal/shared"
	"github.com/martpos/martpos/internal/users"
)

// TokenHeader carries the session token on authenticated requests.
const TokenHeader = "X-Session-Token"

// Handler wires HTTP endpoints for cashier login and logout.
type Handler struct {
	logger   *slog.Logger
	users    *users.Service
	sessions *shared.SessionManager
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, userSvc *users.Service, sessions *shared.SessionManager) *Handler {
	return &Handler{
		logger:   logger,
		users:    userSvc,
		sessions: sessions,
		validate: validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.login)
	r.Post("/logout", h.logout)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	DrawerID int64  `json:"drawer_id" validate:"required,gt=0"`
}

type loginResponse struct {
	Token string     `json:"token"`
	User  users.User `json:"user"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	user, err := h.users.VerifyCredentials(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			httpx.Problem(w, http.StatusUnauthorized, "invalid credentials", "username or password is incorrect")
			return
		}
		h.logger.Error("verify credentials", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	token, err := h.sessions.Create(r.Context(), user.ID, req.DrawerID)
	if err != nil {
		h.logger.Error("create session", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("cashier logged in",
		slog.Int64("user_id", user.ID),
		slog.Int64("drawer_id", req.DrawerID),
	)
	httpx.JSON(w, http.StatusOK, loginResponse{Token: token, User: *user})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(TokenHeader)
	if err := h.sessions.Destroy(r.Context(), token); err != nil {
		h.logger.Error("destroy session", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
