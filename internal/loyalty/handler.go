package loyalty

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/martpos/martpos/internal/platform/httpx"
)

// Handler exposes customer and gift card endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers loyalty routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/customers", h.Search)
	r.Post("/customers", h.Create)
	r.Get("/customers/{id}", h.Show)
	r.Put("/customers/{id}", h.Update)
	r.Post("/gift-cards", h.IssueGiftCard)
	r.Get("/gift-cards/{code}", h.GiftCardBalance)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	customers, err := h.service.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		h.logger.Error("search customers", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"customers": customers})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CustomerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	customer, err := h.service.Create(r.Context(), req)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusCreated, customer)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid customer id")
		return
	}
	customer, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondLookupError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid customer id")
		return
	}
	var req CustomerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	customer, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.respondLookupError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

func (h *Handler) IssueGiftCard(w http.ResponseWriter, r *http.Request) {
	var req GiftCardRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	card, err := h.service.IssueGiftCard(r.Context(), req)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusCreated, card)
}

func (h *Handler) GiftCardBalance(w http.ResponseWriter, r *http.Request) {
	card, err := h.service.GiftCardBalance(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.respondLookupError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, card)
}

func (h *Handler) respondLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrCustomerNotFound) || errors.Is(err, ErrGiftCardNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}
	h.logger.Error("loyalty lookup", slog.Any("error", err))
	httpx.RespondError(w, err)
}
