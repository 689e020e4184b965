package shared

import "sort"

// SortedIDs returns the given ids deduplicated and in ascending order.
// Every code path that locks multiple product rows must acquire the locks
// in this order; two transactions locking overlapping sets in the same
// order cannot deadlock each other.
func SortedIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
