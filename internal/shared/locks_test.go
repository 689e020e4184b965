package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSortedIDs(t *testing.T) {
	require.Nil(t, SortedIDs(nil))
	require.Equal(t, []int64{1}, SortedIDs([]int64{1}))
	require.Equal(t, []int64{1, 2, 9}, SortedIDs([]int64{9, 1, 2}))
	require.Equal(t, []int64{3, 7}, SortedIDs([]int64{7, 3, 7, 3}))
}
