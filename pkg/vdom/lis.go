package vdom

// longestIncreasing marks the entries of seq that form a longest strictly
// increasing subsequence. Negative entries (unmatched nodes) never take
// part. Runs in O(n log n).
func longestIncreasing(seq []int) []bool {
	stay := make([]bool, len(seq))
	// tails[k] is the index in seq of the smallest tail of an increasing
	// run of length k+1; prev links each index to its predecessor.
	tails := make([]int, 0, len(seq))
	prev := make([]int, len(seq))
	for i, v := range seq {
		prev[i] = -1
		if v < 0 {
			continue
		}
		lo, hi := 0, len(tails)
		for lo < hi {
			mid := (lo + hi) / 2
			if seq[tails[mid]] < v {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		if lo > 0 {
			prev[i] = tails[lo-1]
		}
		if lo == len(tails) {
			tails = append(tails, i)
		} else {
			tails[lo] = i
		}
	}
	if len(tails) == 0 {
		return stay
	}
	for i := tails[len(tails)-1]; i >= 0; i = prev[i] {
		stay[i] = true
	}
	return stay
}
