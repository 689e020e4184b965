package promo

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/martpos/martpos/internal/platform/httpx"
	"github.com/martpos/martpos/internal/shared"
)

// RepositoryPort defines the persistence surface the handler needs.
type RepositoryPort interface {
	Create(ctx context.Context, p Promotion, createdBy int64) (int64, error)
	Get(ctx context.Context, id int64) (*Promotion, error)
	SetActive(ctx context.Context, id int64, active bool) error
	List(ctx context.Context) ([]Promotion, error)
}

// Handler exposes promotion management endpoints.
type Handler struct {
	logger   *slog.Logger
	repo     RepositoryPort
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, repo RepositoryPort) *Handler {
	return &Handler{logger: logger, repo: repo, validate: validator.New()}
}

// MountRoutes registers promotion routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Post("/{id}/activate", h.setActive(true))
	r.Post("/{id}/deactivate", h.setActive(false))
}

type promotionRequest struct {
	Name       string  `json:"name" validate:"required,max=200"`
	Kind       string  `json:"kind" validate:"required,oneof=percent_items fixed_items bill_percent buy_x_get_y"`
	ProductIDs []int64 `json:"product_ids"`
	ProductID  int64   `json:"product_id"`
	Percent    string  `json:"percent"`
	Amount     string  `json:"amount"`
	BuyQty     int64   `json:"buy_qty"`
	FreeQty    int64   `json:"free_qty"`
	StartDate  *string `json:"start_date"`
	EndDate    *string `json:"end_date"`
	Active     bool    `json:"active"`
	MaxUses    *int64  `json:"max_uses"`
	Stackable  bool    `json:"stackable"`
}

type promotionView struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Kind        string     `json:"kind"`
	Description string     `json:"description"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Active      bool       `json:"active"`
	MaxUses     *int64     `json:"max_uses,omitempty"`
	CurrentUses int64      `json:"current_uses"`
	Stackable   bool       `json:"stackable"`
}

func viewOf(p Promotion) promotionView {
	return promotionView{
		ID:          p.ID,
		Name:        p.Name,
		Kind:        string(p.Rule.Kind()),
		Description: p.Rule.Describe(),
		StartDate:   p.StartDate,
		EndDate:     p.EndDate,
		Active:      p.Active,
		MaxUses:     p.MaxUses,
		CurrentUses: p.CurrentUses,
		Stackable:   p.Stackable,
	}
}

func (req promotionRequest) buildRule() (Rule, error) {
	switch Kind(req.Kind) {
	case KindPercentItems:
		percent, err := decimal.NewFromString(req.Percent)
		if err != nil {
			return nil, ErrInvalidRule
		}
		return NewPercentItemsRule(req.ProductIDs, percent)
	case KindFixedItems:
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			return nil, ErrInvalidRule
		}
		return NewFixedItemsRule(req.ProductIDs, amount)
	case KindBillPercent:
		percent, err := decimal.NewFromString(req.Percent)
		if err != nil {
			return nil, ErrInvalidRule
		}
		return NewBillPercentRule(percent)
	case KindBuyXGetY:
		return NewBuyXGetYRule(req.ProductID, req.BuyQty, req.FreeQty)
	default:
		return nil, ErrInvalidRule
	}
}

func parseDate(value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", *value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req promotionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	rule, err := req.buildRule()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid rule", err.Error())
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid start_date", "use YYYY-MM-DD")
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid end_date", "use YYYY-MM-DD")
		return
	}
	if req.MaxUses != nil && *req.MaxUses <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "invalid max_uses", "must be positive when set")
		return
	}

	promotion := Promotion{
		Name:      req.Name,
		Rule:      rule,
		StartDate: start,
		EndDate:   end,
		Active:    req.Active,
		MaxUses:   req.MaxUses,
		Stackable: req.Stackable,
	}
	var actor int64
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		actor = sess.CashierID
	}
	id, err := h.repo.Create(r.Context(), promotion, actor)
	if err != nil {
		h.logger.Error("create promotion", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	promotion.ID = id
	httpx.JSON(w, http.StatusCreated, viewOf(promotion))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	promos, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("list promotions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]promotionView, 0, len(promos))
	for _, p := range promos {
		views = append(views, viewOf(p))
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid id", "id must be an integer")
		return
	}
	p, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "not found", "promotion does not exist")
			return
		}
		h.logger.Error("get promotion", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(*p))
}

func (h *Handler) setActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "invalid id", "id must be an integer")
			return
		}
		if err := h.repo.SetActive(r.Context(), id, active); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				httpx.Problem(w, http.StatusNotFound, "not found", "promotion does not exist")
				return
			}
			h.logger.Error("toggle promotion", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
