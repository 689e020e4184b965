package receiving

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/martpos/martpos/internal/catalog"
	"github.com/martpos/martpos/internal/platform/httpx"
	"github.com/martpos/martpos/internal/shared"
)

// Handler exposes goods receipt endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers receiving routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/receiving/receipts", h.Book)
	r.Get("/receiving/receipts/{id}", h.Show)
}

func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	session := shared.SessionFromContext(r.Context())
	if session == nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "no active till session")
		return
	}
	var input ReceiptInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	receipt, err := h.service.Book(r.Context(), input, session.CashierID)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyReceipt):
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		case errors.Is(err, catalog.ErrProductNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		default:
			h.logger.Error("book goods receipt", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "receipt could not be booked")
		}
		return
	}
	httpx.JSON(w, http.StatusCreated, receipt)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid receipt id")
		return
	}
	receipt, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "receipt not found")
			return
		}
		h.logger.Error("load goods receipt", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, receipt)
}
