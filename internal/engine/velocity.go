package engine

import "math"

const (
	// bsrSalesNumerator converts an Amazon sales rank to a rough monthly
	// sales estimate: monthly ~= 300000 / rank, floored at 1.
	bsrSalesNumerator = 300000
	// defaultDaysToSell is used when neither a velocity estimate nor a
	// sales rank is available.
	defaultDaysToSell = 14
)

// EstimateMonthlySales estimates monthly unit sales from a sales rank (BSR).
// Returns 0 when the rank is unknown.
func EstimateMonthlySales(salesRank int) float64 {
	if salesRank <= 0 {
		return 0
	}
	return math.Max(1, float64(bsrSalesNumerator)/float64(salesRank))
}

// EstimateDaysToSell derives an expected time-to-sell in days.
// Preference order: explicit monthly sales estimate, then sales rank
// heuristic, then a fixed default.
func EstimateDaysToSell(monthlySales float64, salesRank int) int {
	if monthlySales <= 0 {
		monthlySales = EstimateMonthlySales(salesRank)
	}
	if monthlySales <= 0 {
		return defaultDaysToSell
	}
	days := int(math.Round(30 / monthlySales))
	if days < 1 {
		days = 1
	}
	return days
}
