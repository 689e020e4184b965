package loyalty

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestPointsEarned(t *testing.T) {
	cases := []struct {
		total string
		want  int64
	}{
		{"0", 0},
		{"99.99", 0},
		{"100.00", 1},
		{"199.99", 1},
		{"250.00", 2},
		{"1234.56", 12},
		{"-50.00", 0},
	}
	for _, c := range cases {
		got := PointsEarned(decimal.RequireFromString(c.total))
		require.Equal(t, c.want, got, "total %s", c.total)
	}
}
