package fusion

// Autocut truncates a descending-sorted score list at the Nth "cliff": a
// gap between consecutive scores that exceeds factor times the median of
// all consecutive gaps in the list. This implements spec §4.5's autocut feature, used to drop a
// long tail of low-relevance results without a fixed k (ambient expansion
// grounded on the same reranker.go family as the fusion strategies above,
// which documents a similar score-gap heuristic). N must be >= 1; a list
// with fewer than N detected jumps is returned unmodified.
func Autocut(scores []float64, n int, factor float64) int {
	if n < 1 {
		n = 1
	}
	if len(scores) < 3 {
		return len(scores)
	}
	if factor <= 0 {
		factor = 3
	}

	gaps := make([]float64, 0, len(scores)-1)
	for i := 1; i < len(scores); i++ {
		gaps = append(gaps, scores[i-1]-scores[i])
	}
	median := medianOf(gaps)
	if median <= 0 {
		return len(scores)
	}

	found := 0
	for i, gap := range gaps {
		if gap > factor*median {
			found++
			if found == n {
				return i + 1
			}
		}
	}
	return len(scores)
}

func medianOf(vals []float64) float64 {
	sorted := append([]float64(nil), vals...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
