package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/martpos/martpos/internal/catalog"
	"github.com/martpos/martpos/internal/platform/httpx"
	"github.com/martpos/martpos/internal/shared"
)

// Handler exposes the stock audit stream and manual adjustments.
type Handler struct {
	logger   *slog.Logger
	repo     *Repository
	adjuster *Adjuster
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, repo *Repository, adjuster *Adjuster) *Handler {
	return &Handler{logger: logger, repo: repo, adjuster: adjuster, validate: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/audit", h.listAudit)
	r.Post("/adjust", h.adjust)
}

type auditPage struct {
	Entries    []AuditEntry      `json:"entries"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) listAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if perPage <= 0 {
		perPage = 50
	}
	if page <= 0 {
		page = 1
	}
	filter := AuditFilter{
		Reason: q.Get("reason"),
		Limit:  perPage,
		Offset: (page - 1) * perPage,
	}
	if raw := q.Get("product_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "invalid product_id", "product_id must be an integer")
			return
		}
		filter.ProductID = id
	}

	entries, err := h.repo.ListAudit(r.Context(), filter)
	if err != nil {
		h.logger.Error("list stock audit", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	total, err := h.repo.CountAudit(r.Context(), filter)
	if err != nil {
		h.logger.Error("count stock audit", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, auditPage{
		Entries:    entries,
		Pagination: shared.NewPagination(page, perPage, total),
	})
}

type adjustRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Delta     int64  `json:"delta" validate:"required"`
	Note      string `json:"note" validate:"max=200"`
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	var actor int64
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		actor = sess.CashierID
	}
	product, err := h.adjuster.Adjust(r.Context(), req.ProductID, req.Delta, actor, req.Note)
	if err != nil {
		var insufficient *InsufficientStockError
		switch {
		case errors.Is(err, catalog.ErrProductNotFound):
			httpx.Problem(w, http.StatusNotFound, "not found", "product does not exist")
		case errors.As(err, &insufficient):
			httpx.Problem(w, http.StatusConflict, "insufficient stock", insufficient.Error())
		default:
			h.logger.Error("manual adjustment", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}
