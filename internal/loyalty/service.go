package loyalty

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// CustomerRequest carries validated input for customer create/update.
type CustomerRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	Phone string `json:"phone" validate:"required,min=7,max=20"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

// GiftCardRequest carries validated input for issuing a gift card.
type GiftCardRequest struct {
	Code    string `json:"code" validate:"required,min=6,max=40"`
	Balance string `json:"balance" validate:"required"`
}

// Service provides customer and gift card management.
type Service struct {
	repo     *Repository
	validate *validator.Validate
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

func (s *Service) Create(ctx context.Context, req CustomerRequest) (*Customer, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("loyalty: %w", err)
	}
	c := Customer{Name: req.Name, Phone: req.Phone, Email: req.Email}
	id, err := s.repo.Create(ctx, &c)
	if err != nil {
		return nil, err
	}
	c.ID = id
	return &c, nil
}

func (s *Service) Update(ctx context.Context, id int64, req CustomerRequest) (*Customer, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("loyalty: %w", err)
	}
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Name, c.Phone, c.Email = req.Name, req.Phone, req.Email
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Customer, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Search(ctx context.Context, query string, limit int) ([]Customer, error) {
	return s.repo.Search(ctx, query, limit)
}

// IssueGiftCard creates a card with an opening balance.
func (s *Service) IssueGiftCard(ctx context.Context, req GiftCardRequest) (*GiftCard, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("loyalty: %w", err)
	}
	balance, err := decimal.NewFromString(req.Balance)
	if err != nil || balance.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("loyalty: gift card balance must be a positive amount")
	}
	g := GiftCard{Code: req.Code, Balance: balance.Round(2), IsActive: true}
	id, err := s.repo.CreateGiftCard(ctx, &g)
	if err != nil {
		return nil, err
	}
	g.ID = id
	return &g, nil
}

// GiftCardBalance returns a card for balance inquiry at the till.
func (s *Service) GiftCardBalance(ctx context.Context, code string) (*GiftCard, error) {
	return s.repo.GetGiftCard(ctx, code)
}
