package returns

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/martpos/martpos/internal/billing"
	"github.com/martpos/martpos/internal/platform/httpx"
	"github.com/martpos/martpos/internal/shared"
)

// Handler exposes the returns endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers return routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/billing/returns", h.Process)
}

type processRequest struct {
	SaleID       int64             `json:"sale_id"`
	RefundMethod string            `json:"refund_method"`
	Items        []processItemLine `json:"items"`
}

type processItemLine struct {
	SaleItemID int64 `json:"sale_item_id"`
	Quantity   int64 `json:"quantity"`
}

func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	session := shared.SessionFromContext(r.Context())
	if session == nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "no active till session")
		return
	}
	var req processRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if req.SaleID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "sale_id required")
		return
	}
	method := req.RefundMethod
	if method == "" {
		method = billing.MethodCash
	}

	quantities := make(map[int64]int64, len(req.Items))
	for _, line := range req.Items {
		quantities[line.SaleItemID] += line.Quantity
	}

	ret, err := h.service.Process(r.Context(), req.SaleID, quantities, method, session.CashierID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ret)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var excessive *ExcessiveReturnError
	switch {
	case errors.Is(err, billing.ErrSaleNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNothingToReturn), errors.Is(err, ErrUnknownSaleItem):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.As(err, &excessive):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Return Rejected", err.Error())
	default:
		h.logger.Error("process return", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "return could not be processed")
	}
}
