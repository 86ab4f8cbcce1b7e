// Package stats holds the small numeric helpers used by report summaries.
package stats

// Percentile returns the p-th percentile of an ascending-sorted slice using
// the nearest-rank method, so the result is always an observed value. An
// empty slice yields 0.
func Percentile(sorted []float64, p int) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := p * n / 100
	if idx > n-1 {
		idx = n - 1
	}
	return sorted[idx]
}
