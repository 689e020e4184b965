package cart

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/martpos/martpos/internal/catalog"
	"github.com/martpos/martpos/internal/platform/httpx"
	"github.com/martpos/martpos/internal/shared"
)

// Handler exposes the till's cart. Lines are priced from the catalog at
// scan time and the snapshot is what billing later charges.
type Handler struct {
	logger  *slog.Logger
	store   *Store
	catalog *catalog.Service
}

func NewHandler(logger *slog.Logger, store *Store, catalogSvc *catalog.Service) *Handler {
	return &Handler{logger: logger, store: store, catalog: catalogSvc}
}

// MountRoutes registers cart routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/cart", h.Show)
	r.Post("/cart/items", h.AddItem)
	r.Delete("/cart/items/{productID}", h.RemoveItem)
	r.Post("/cart/customer/{customerID}", h.AttachCustomer)
	r.Delete("/cart/customer", h.DetachCustomer)
}

type addItemRequest struct {
	ProductID int64  `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	Weight    string `json:"weight,omitempty"`
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	session := shared.SessionFromContext(r.Context())
	if session == nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "no active till session")
		return
	}
	st, err := h.store.Load(r.Context(), session.DrawerID)
	if err != nil {
		h.logger.Error("load cart", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	session := shared.SessionFromContext(r.Context())
	if session == nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "no active till session")
		return
	}
	var req addItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}

	product, err := h.catalog.Get(r.Context(), req.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "product not found")
			return
		}
		h.logger.Error("cart product lookup", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if !product.IsActive {
		httpx.Problem(w, http.StatusConflict, "Conflict", "product is not for sale")
		return
	}

	line := Line{
		ProductID:  product.ID,
		Name:       product.Name,
		UnitPrice:  product.Price,
		GSTPercent: product.GSTPercent,
		IsWeighed:  product.IsWeighed,
	}

	var st State
	if product.IsWeighed {
		weight, werr := decimal.NewFromString(req.Weight)
		if werr != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "weighed products require a weight")
			return
		}
		if product.PricePerKg != nil {
			line.UnitPrice = *product.PricePerKg
		}
		st, err = h.store.AddWeighedLine(r.Context(), session.DrawerID, line, weight)
	} else {
		qty := req.Quantity
		if qty == 0 {
			qty = 1
		}
		st, err = h.store.AddLine(r.Context(), session.DrawerID, line, qty)
	}
	if err != nil {
		h.respondCartError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	session := shared.SessionFromContext(r.Context())
	if session == nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "no active till session")
		return
	}
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product id")
		return
	}
	st, err := h.store.RemoveLine(r.Context(), session.DrawerID, productID)
	if err != nil {
		h.respondCartError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func (h *Handler) AttachCustomer(w http.ResponseWriter, r *http.Request) {
	session := shared.SessionFromContext(r.Context())
	if session == nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "no active till session")
		return
	}
	customerID, err := strconv.ParseInt(chi.URLParam(r, "customerID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid customer id")
		return
	}
	st, err := h.store.AttachCustomer(r.Context(), session.DrawerID, customerID)
	if err != nil {
		h.respondCartError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func (h *Handler) DetachCustomer(w http.ResponseWriter, r *http.Request) {
	session := shared.SessionFromContext(r.Context())
	if session == nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "no active till session")
		return
	}
	st, err := h.store.DetachCustomer(r.Context(), session.DrawerID)
	if err != nil {
		h.respondCartError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func (h *Handler) respondCartError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrLineNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidLine), errors.Is(err, ErrInvalidWeight), errors.Is(err, ErrNotWeighedItem):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	default:
		h.logger.Error("cart operation", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
