package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/martpos/martpos/internal/shared"
)

// TTL keeps abandoned carts from accumulating. A till that sits idle
// past this loses its cart.
const TTL = 12 * time.Hour

// Store persists per-drawer carts in redis.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func key(drawerID int64) string {
	return fmt.Sprintf("cart:%d", drawerID)
}

// Load returns the drawer's cart, or an empty one if none exists.
func (s *Store) Load(ctx context.Context, drawerID int64) (State, error) {
	raw, err := s.client.Get(ctx, key(drawerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{Lines: Snapshot{}}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("cart: load drawer %d: %w", drawerID, err)
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{}, fmt.Errorf("cart: decode drawer %d: %w", drawerID, err)
	}
	if st.Lines == nil {
		st.Lines = Snapshot{}
	}
	return st, nil
}

func (s *Store) save(ctx context.Context, drawerID int64, st State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("cart: encode drawer %d: %w", drawerID, err)
	}
	if err := s.client.Set(ctx, key(drawerID), raw, TTL).Err(); err != nil {
		return fmt.Errorf("cart: save drawer %d: %w", drawerID, err)
	}
	return nil
}

// AddLine adds qty units of a counted product, merging into an existing
// line for the same product.
func (s *Store) AddLine(ctx context.Context, drawerID int64, line Line, qty int64) (State, error) {
	if qty <= 0 || line.ProductID == 0 {
		return State{}, ErrInvalidLine
	}
	st, err := s.Load(ctx, drawerID)
	if err != nil {
		return State{}, err
	}
	existing, ok := st.Lines[line.ProductID]
	if ok && !existing.IsWeighed {
		existing.Quantity += qty
		st.Lines[line.ProductID] = existing
	} else {
		line.IsWeighed = false
		line.Weight = nil
		line.Quantity = qty
		st.Lines[line.ProductID] = line
	}
	return st, s.save(ctx, drawerID, st)
}

// AddWeighedLine sets a weighed product's line. Weight is stored at 3dp;
// re-weighing replaces the previous weight rather than accumulating.
func (s *Store) AddWeighedLine(ctx context.Context, drawerID int64, line Line, weight decimal.Decimal) (State, error) {
	if line.ProductID == 0 {
		return State{}, ErrInvalidLine
	}
	if weight.Sign() <= 0 {
		return State{}, ErrInvalidWeight
	}
	if !line.IsWeighed {
		return State{}, ErrNotWeighedItem
	}
	st, err := s.Load(ctx, drawerID)
	if err != nil {
		return State{}, err
	}
	w := shared.Round3(weight)
	line.Weight = &w
	line.Quantity = 1
	st.Lines[line.ProductID] = line
	return st, s.save(ctx, drawerID, st)
}

// RemoveLine drops a product from the cart.
func (s *Store) RemoveLine(ctx context.Context, drawerID, productID int64) (State, error) {
	st, err := s.Load(ctx, drawerID)
	if err != nil {
		return State{}, err
	}
	if _, ok := st.Lines[productID]; !ok {
		return State{}, ErrLineNotFound
	}
	delete(st.Lines, productID)
	return st, s.save(ctx, drawerID, st)
}

// AttachCustomer links a loyalty customer to the cart.
func (s *Store) AttachCustomer(ctx context.Context, drawerID, customerID int64) (State, error) {
	st, err := s.Load(ctx, drawerID)
	if err != nil {
		return State{}, err
	}
	st.CustomerID = &customerID
	return st, s.save(ctx, drawerID, st)
}

// DetachCustomer unlinks the loyalty customer, keeping the lines.
func (s *Store) DetachCustomer(ctx context.Context, drawerID int64) (State, error) {
	st, err := s.Load(ctx, drawerID)
	if err != nil {
		return State{}, err
	}
	st.CustomerID = nil
	return st, s.save(ctx, drawerID, st)
}

// Clear removes the drawer's cart entirely.
func (s *Store) Clear(ctx context.Context, drawerID int64) error {
	if err := s.client.Del(ctx, key(drawerID)).Err(); err != nil {
		return fmt.Errorf("cart: clear drawer %d: %w", drawerID, err)
	}
	return nil
}
