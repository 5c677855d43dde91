package engine

import (
	"time"

	"arbitrage-vault/internal/keepa"
)

// FilterWindow returns the points whose timestamps fall within
// [now - windowDays, now] and whose price is strictly positive.
// The input is never mutated and may arrive unsorted; an empty result is an
// expected outcome, not an error.
func FilterWindow(points []keepa.PricePoint, windowDays int, now time.Time) []keepa.PricePoint {
	if len(points) == 0 || windowDays <= 0 {
		return nil
	}
	cutoff := now.AddDate(0, 0, -windowDays)
	var filtered []keepa.PricePoint
	for _, p := range points {
		if p.Price <= 0 {
			continue
		}
		if p.Time.Before(cutoff) || p.Time.After(now) {
			continue
		}
		filtered = append(filtered, p)
	}
	return filtered
}
