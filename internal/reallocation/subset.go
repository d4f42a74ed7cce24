package reallocation

// exactSubset returns the indices of a subset of values that sums exactly to
// target, or false when no such subset exists. Values must be positive.
//
// Link counts per balance item are small, so a depth-first search with
// infeasible-state memoization is plenty. States are keyed by position and
// remaining target.
func exactSubset(values []int64, target int64) ([]int, bool) {
	if target <= 0 {
		return nil, false
	}

	// Suffix sums for pruning: if everything left over is not enough to
	// reach the target, the branch is dead.
	suffix := make([]int64, len(values)+1)
	for i := len(values) - 1; i >= 0; i-- {
		suffix[i] = suffix[i+1] + values[i]
	}

	type state struct {
		index     int
		remaining int64
	}
	dead := make(map[state]bool)

	var picked []int
	var search func(index int, remaining int64) bool
	search = func(index int, remaining int64) bool {
		if remaining == 0 {
			return true
		}
		if index >= len(values) || remaining < 0 || suffix[index] < remaining {
			return false
		}
		if dead[state{index, remaining}] {
			return false
		}

		picked = append(picked, index)
		if search(index+1, remaining-values[index]) {
			return true
		}
		picked = picked[:len(picked)-1]

		if search(index+1, remaining) {
			return true
		}

		dead[state{index, remaining}] = true
		return false
	}

	if !search(0, target) {
		return nil, false
	}

	return picked, true
}
