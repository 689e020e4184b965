package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/martpos/martpos/internal/platform/httpx"
)

// Handler exposes catalog endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.List)
	r.Post("/products", h.Create)
	r.Get("/products/{id}", h.Show)
	r.Get("/products/{id}/batches", h.Batches)
	r.Get("/products/barcode/{barcode}", h.ShowByBarcode)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filters := ListFilters{Search: r.URL.Query().Get("q")}
	if r.URL.Query().Get("low_stock") == "1" {
		filters.LowStock = true
	}
	if v := r.URL.Query().Get("active"); v != "" {
		active := v == "1" || v == "true"
		filters.IsActive = &active
	}
	products, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list products", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": products, "total": total})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	product, err := h.service.Create(r.Context(), req)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product id")
		return
	}
	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondLookupError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) ShowByBarcode(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.GetByBarcode(r.Context(), chi.URLParam(r, "barcode"))
	if err != nil {
		h.respondLookupError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) Batches(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product id")
		return
	}
	batches, err := h.service.Batches(r.Context(), id)
	if err != nil {
		h.respondLookupError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, batches)
}

func (h *Handler) respondLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrProductNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}
	h.logger.Error("catalog lookup", slog.Any("error", err))
	httpx.RespondError(w, err)
}
