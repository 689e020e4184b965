package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// CreateProductRequest carries validated input for product creation.
type CreateProductRequest struct {
	Name       string `json:"name" validate:"required,max=200"`
	Barcode    string `json:"barcode" validate:"required,max=100"`
	Price      string `json:"price" validate:"required"`
	Stock      int64  `json:"stock" validate:"gte=0"`
	GSTPercent string `json:"gst_percent" validate:"required"`
	IsWeighed  bool   `json:"is_weighed"`
	PricePerKg string `json:"price_per_kg,omitempty"`
}

// Service provides catalog CRUD on top of the repository.
type Service struct {
	repo     *Repository
	validate *validator.Validate
}

// NewService constructs Service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

// Create validates and inserts a new product.
func (s *Service) Create(ctx context.Context, req CreateProductRequest) (*Product, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("catalog: price must be a positive amount")
	}
	gst, err := decimal.NewFromString(req.GSTPercent)
	if err != nil || gst.IsNegative() || gst.GreaterThan(decimal.NewFromInt(28)) {
		return nil, errors.New("catalog: gst percent must be between 0 and 28")
	}
	p := Product{
		Name:       req.Name,
		Barcode:    req.Barcode,
		Price:      price.Round(2),
		Stock:      req.Stock,
		GSTPercent: gst,
		IsWeighed:  req.IsWeighed,
		IsActive:   true,
	}
	if req.IsWeighed {
		if req.PricePerKg == "" {
			return nil, errors.New("catalog: weighed products require price_per_kg")
		}
		perKg, err := decimal.NewFromString(req.PricePerKg)
		if err != nil || perKg.LessThanOrEqual(decimal.Zero) {
			return nil, errors.New("catalog: price_per_kg must be a positive amount")
		}
		rounded := perKg.Round(2)
		p.PricePerKg = &rounded
	}

	id, err := s.repo.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	p.ID = id
	return &p, nil
}

// Get loads one product.
func (s *Service) Get(ctx context.Context, id int64) (*Product, error) {
	return s.repo.Get(ctx, id)
}

// GetByBarcode looks up an active product for the billing screen.
func (s *Service) GetByBarcode(ctx context.Context, barcode string) (*Product, error) {
	return s.repo.GetByBarcode(ctx, barcode)
}

// List returns products matching filters.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters)
}

// Batches lists a product's lots in FIFO order.
func (s *Service) Batches(ctx context.Context, productID int64) ([]ProductBatch, error) {
	if _, err := s.repo.Get(ctx, productID); err != nil {
		return nil, err
	}
	return s.repo.ListBatches(ctx, productID)
}
