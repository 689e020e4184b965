package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/martpos/martpos/internal/shared"
)

// RepositoryPort defines data access methods for accounts.
type RepositoryPort interface {
	List(ctx context.Context) ([]User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Create(ctx context.Context, u *User) (int64, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

// CreateUserRequest carries validated input for account creation.
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Name     string `json:"name" validate:"required,max=200"`
	Role     string `json:"role" validate:"required,oneof=cashier manager"`
	Password string `json:"password" validate:"required,min=8"`
}

// Service handles account business logic.
type Service struct {
	repo     RepositoryPort
	validate *validator.Validate
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

// List returns all accounts.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// Create hashes the password and stores the account.
func (s *Service) Create(ctx context.Context, req CreateUserRequest) (*User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("users: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("users: hash password: %w", err)
	}
	u := User{
		Username:     req.Username,
		Name:         req.Name,
		Role:         req.Role,
		IsActive:     true,
		PasswordHash: string(hash),
	}
	id, err := s.repo.Create(ctx, &u)
	if err != nil {
		return nil, err
	}
	u.ID = id
	return &u, nil
}

// VerifyCredentials checks a username/password pair against the stored
// bcrypt hash. Disabled accounts fail the same way as bad passwords.
func (s *Service) VerifyCredentials(ctx context.Context, username, password string) (*User, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return u, nil
}

// SetActive enables or disables an account.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) error {
	return s.repo.SetActive(ctx, id, active)
}
