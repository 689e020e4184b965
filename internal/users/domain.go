package users

import "time"

// User is a cashier or manager account. PasswordHash never leaves the
// package.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Roles.
const (
	RoleCashier = "cashier"
	RoleManager = "manager"
)
