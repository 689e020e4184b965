package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/martpos/martpos/internal/platform/httpx"
	"github.com/martpos/martpos/internal/shared"
)

// Handler manages account endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers account routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/users", h.List)
	r.Post("/users", h.Create)
	r.Post("/users/{id}/deactivate", h.Deactivate)
	r.Post("/users/verify", h.Verify)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	user, err := h.service.Create(r.Context(), req)
	if err != nil {
		if errors.Is(err, shared.ErrIntegrityViolation) {
			httpx.Problem(w, http.StatusConflict, "Duplicate", "username already taken")
			return
		}
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	if err := h.service.SetActive(r.Context(), id, false); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "user not found")
			return
		}
		h.logger.Error("deactivate user", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "deactivated"})
}

type verifyRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	user, err := h.service.VerifyCredentials(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials")
			return
		}
		h.logger.Error("verify credentials", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}
