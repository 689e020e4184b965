package cart

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func milkLine() Line {
	return Line{
		ProductID:  1,
		Name:       "Milk 1L",
		UnitPrice:  decimal.RequireFromString("60.00"),
		GSTPercent: decimal.RequireFromString("5"),
	}
}

func TestLoadEmptyCart(t *testing.T) {
	st, err := testStore(t).Load(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, st.Empty())
	require.Nil(t, st.CustomerID)
}

func TestAddLineMergesQuantity(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, err := s.AddLine(ctx, 1, milkLine(), 2)
	require.NoError(t, err)
	st, err := s.AddLine(ctx, 1, milkLine(), 3)
	require.NoError(t, err)

	require.Len(t, st.Lines, 1)
	require.Equal(t, int64(5), st.Lines[1].Quantity)
	require.Equal(t, "300.00", st.Lines[1].Subtotal().StringFixed(2))
}

func TestAddLineRejectsBadInput(t *testing.T) {
	s := testStore(t)
	_, err := s.AddLine(context.Background(), 1, milkLine(), 0)
	require.ErrorIs(t, err, ErrInvalidLine)
}

func TestWeighedLineReplacesWeight(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	apples := Line{
		ProductID:  2,
		Name:       "Apples",
		UnitPrice:  decimal.RequireFromString("120.00"),
		GSTPercent: decimal.Zero,
		IsWeighed:  true,
	}
	_, err := s.AddWeighedLine(ctx, 1, apples, decimal.RequireFromString("0.5"))
	require.NoError(t, err)
	st, err := s.AddWeighedLine(ctx, 1, apples, decimal.RequireFromString("0.7505"))
	require.NoError(t, err)

	line := st.Lines[2]
	require.NotNil(t, line.Weight)
	require.Equal(t, "0.751", line.Weight.StringFixed(3))
	require.Equal(t, "90.12", line.Subtotal().StringFixed(2))
}

func TestWeighedLineValidation(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, err := s.AddWeighedLine(ctx, 1, Line{ProductID: 2, IsWeighed: true}, decimal.Zero)
	require.ErrorIs(t, err, ErrInvalidWeight)

	_, err = s.AddWeighedLine(ctx, 1, Line{ProductID: 2}, decimal.NewFromInt(1))
	require.ErrorIs(t, err, ErrNotWeighedItem)
}

func TestRemoveLine(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, err := s.AddLine(ctx, 1, milkLine(), 1)
	require.NoError(t, err)
	st, err := s.RemoveLine(ctx, 1, 1)
	require.NoError(t, err)
	require.True(t, st.Empty())

	_, err = s.RemoveLine(ctx, 1, 99)
	require.ErrorIs(t, err, ErrLineNotFound)
}

func TestCustomerAttachDetach(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	st, err := s.AttachCustomer(ctx, 1, 42)
	require.NoError(t, err)
	require.NotNil(t, st.CustomerID)
	require.Equal(t, int64(42), *st.CustomerID)

	st, err = s.DetachCustomer(ctx, 1)
	require.NoError(t, err)
	require.Nil(t, st.CustomerID)
}

func TestCartsAreScopedByDrawer(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, err := s.AddLine(ctx, 1, milkLine(), 2)
	require.NoError(t, err)

	other, err := s.Load(ctx, 2)
	require.NoError(t, err)
	require.True(t, other.Empty())
}

func TestClearSurvivesReload(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, err := s.AddLine(ctx, 1, milkLine(), 2)
	require.NoError(t, err)
	require.NoError(t, s.Clear(ctx, 1))

	st, err := s.Load(ctx, 1)
	require.NoError(t, err)
	require.True(t, st.Empty())
}
