package billing

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/martpos/martpos/internal/ledger"
	"github.com/martpos/martpos/internal/platform/httpx"
	"github.com/martpos/martpos/internal/shared"
)

// SaleStore is the persistence surface for sale lookups, receipt
// snapshots and drawer sessions. *Repository implements it.
type SaleStore interface {
	GetSale(ctx context.Context, id int64) (*Sale, error)
	GetSaleByInvoice(ctx context.Context, invoiceNo string) (*Sale, error)
	SetReceipt(ctx context.Context, saleID int64, receipt string) error
	MarkPrinted(ctx context.Context, saleID int64) error
	OpenDrawer(ctx context.Context, openedBy int64, openingFloat decimal.Decimal) (*CashDrawer, error)
	CloseDrawer(ctx context.Context, drawerID int64, countedTotal decimal.Decimal) (*CashDrawer, error)
	GetDrawer(ctx context.Context, drawerID int64) (*CashDrawer, error)
}

// Handler exposes checkout, sale lookup and drawer endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	repo     SaleStore
	renderer *Renderer
}

func NewHandler(logger *slog.Logger, service *Service, repo SaleStore, renderer *Renderer) *Handler {
	return &Handler{logger: logger, service: service, repo: repo, renderer: renderer}
}

// MountRoutes registers billing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/billing/complete", h.Complete)
	r.Get("/billing/sales", h.FindByInvoice)
	r.Get("/billing/sales/{id}", h.ShowSale)
	r.Get("/billing/sales/{id}/receipt", h.Receipt)
	r.Post("/billing/drawers", h.OpenDrawer)
	r.Get("/billing/drawers/{id}", h.ShowDrawer)
	r.Post("/billing/drawers/{id}/close", h.CloseDrawer)
}

type completeRequest struct {
	Cash           string `json:"payment_cash"`
	Card           string `json:"payment_card"`
	UPI            string `json:"payment_upi"`
	Loyalty        string `json:"payment_loyalty"`
	Gift           string `json:"payment_gift"`
	GiftCardCode   string `json:"gift_card_code,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.Sign() < 0 {
		return decimal.Zero, errors.New("amount must be a non-negative number")
	}
	return d.Round(2), nil
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	session := shared.SessionFromContext(r.Context())
	if session == nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "no active till session")
		return
	}
	var req completeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}

	tender := TenderAmounts{GiftCardCode: req.GiftCardCode}
	var err error
	for _, f := range []struct {
		raw string
		dst *decimal.Decimal
	}{
		{req.Cash, &tender.Cash},
		{req.Card, &tender.Card},
		{req.UPI, &tender.UPI},
		{req.Loyalty, &tender.Loyalty},
		{req.Gift, &tender.Gift},
	} {
		if *f.dst, err = parseAmount(f.raw); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
	}

	sale, err := h.service.Complete(r.Context(), CompleteSaleInput{
		Session:        *session,
		Tender:         tender,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.respondCompleteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) respondCompleteError(w http.ResponseWriter, err error) {
	var insufficientStock *ledger.InsufficientStockError
	var insufficientPay *InsufficientPaymentError
	var overtender *OvertenderError
	switch {
	case errors.Is(err, ErrEmptyCart):
		httpx.Problem(w, http.StatusBadRequest, "Empty Cart", err.Error())
	case errors.Is(err, ErrProductVanished):
		httpx.Problem(w, http.StatusConflict, "Product Unavailable", err.Error())
	case errors.As(err, &insufficientStock):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.As(err, &insufficientPay):
		httpx.Problem(w, http.StatusPaymentRequired, "Insufficient Payment", err.Error())
	case errors.As(err, &overtender):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Payment Rejected", err.Error())
	case errors.Is(err, ErrNoCustomerForLoyalty),
		errors.Is(err, ErrInsufficientLoyaltyPoints),
		errors.Is(err, ErrInvalidGiftCard),
		errors.Is(err, ErrInsufficientGiftCardBalance):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Payment Rejected", err.Error())
	case errors.Is(err, ErrDrawerNotOpen):
		httpx.Problem(w, http.StatusConflict, "Drawer Closed", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate Request", err.Error())
	default:
		h.logger.Error("complete sale", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "sale could not be completed")
	}
}

func (h *Handler) ShowSale(w http.ResponseWriter, r *http.Request) {
	sale, ok := h.loadSale(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) FindByInvoice(w http.ResponseWriter, r *http.Request) {
	invoice := r.URL.Query().Get("invoice")
	if invoice == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invoice query parameter required")
		return
	}
	sale, err := h.repo.GetSaleByInvoice(r.Context(), invoice)
	if err != nil {
		h.respondLookupError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

// Receipt returns the stored snapshot, rendering it on demand if the
// background job has not run yet.
func (h *Handler) Receipt(w http.ResponseWriter, r *http.Request) {
	sale, ok := h.loadSale(w, r)
	if !ok {
		return
	}
	receipt := sale.Receipt
	if receipt == "" {
		receipt = h.renderer.Render(sale)
		if err := h.repo.SetReceipt(r.Context(), sale.ID, receipt); err != nil {
			h.logger.Warn("store receipt on reprint", "sale_id", sale.ID, "error", err)
		}
	}
	if !sale.Printed {
		if err := h.repo.MarkPrinted(r.Context(), sale.ID); err != nil {
			h.logger.Warn("mark sale printed", "sale_id", sale.ID, "error", err)
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(receipt))
}

func (h *Handler) loadSale(w http.ResponseWriter, r *http.Request) (*Sale, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid sale id")
		return nil, false
	}
	sale, err := h.repo.GetSale(r.Context(), id)
	if err != nil {
		h.respondLookupError(w, err)
		return nil, false
	}
	return sale, true
}

type openDrawerRequest struct {
	OpeningFloat string `json:"opening_float"`
}

func (h *Handler) OpenDrawer(w http.ResponseWriter, r *http.Request) {
	session := shared.SessionFromContext(r.Context())
	if session == nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "no active till session")
		return
	}
	var req openDrawerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	openingFloat, err := parseAmount(req.OpeningFloat)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	drawer, err := h.repo.OpenDrawer(r.Context(), session.CashierID, openingFloat)
	if err != nil {
		h.logger.Error("open drawer", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, drawer)
}

type closeDrawerRequest struct {
	CountedTotal string `json:"counted_total"`
}

func (h *Handler) CloseDrawer(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid drawer id")
		return
	}
	var req closeDrawerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	counted, err := parseAmount(req.CountedTotal)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	drawer, err := h.repo.CloseDrawer(r.Context(), id, counted)
	if err != nil {
		if errors.Is(err, ErrDrawerNotOpen) {
			httpx.Problem(w, http.StatusConflict, "Drawer Closed", err.Error())
			return
		}
		h.logger.Error("close drawer", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if drawer.Discrepancy != nil && !drawer.Discrepancy.IsZero() {
		h.logger.Warn("drawer closed with discrepancy",
			"drawer_id", drawer.ID, "discrepancy", drawer.Discrepancy.StringFixed(2))
	}
	httpx.JSON(w, http.StatusOK, drawer)
}

func (h *Handler) ShowDrawer(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid drawer id")
		return
	}
	drawer, err := h.repo.GetDrawer(r.Context(), id)
	if err != nil {
		h.respondLookupError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, drawer)
}

func (h *Handler) respondLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrSaleNotFound) || errors.Is(err, ErrDrawerNotOpen) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}
	h.logger.Error("billing lookup", slog.Any("error", err))
	httpx.RespondError(w, err)
}
