package engine

import (
	"fmt"
	"math"
	"sort"

	"arbitrage-vault/internal/keepa"
)

const (
	// DefaultWindowDays is the default price-history lookback.
	DefaultWindowDays = 90
	// DefaultMinDataPoints is the floor below which no corridor is computed.
	DefaultMinDataPoints = 10
	// minTrimmedPoints is the floor below which the P5-P95 outlier trim is
	// abandoned in favor of the untrimmed set. Outlier rejection must never
	// eliminate the ability to answer.
	minTrimmedPoints = 5
)

// Confidence tier thresholds on (data points, coefficient of variation).
const (
	highMinPoints   = 30
	highMaxCV       = 0.20
	mediumMinPoints = 15
	mediumMaxCV     = 0.35
)

// ComputeCorridor computes the [P25, Median, P75] intrinsic-value corridor
// from an already window-filtered price series.
//
// Percentiles use the nearest-rank convention with floor indexing
// (index = floor(n*p), clamped to n-1). Values outside the [P5, P95] band
// are trimmed before the corridor is taken, unless trimming would leave
// fewer than 5 values. Volatility is population stddev over mean of the
// trimmed set. Prices are rounded to 2 decimals and volatility to 4, at
// the boundary only.
//
// Too few points is not an error: the result carries
// ConfidenceInsufficient and a reason, and callers branch on Valid().
func ComputeCorridor(points []keepa.PricePoint, minDataPoints int) ValueCorridor {
	if minDataPoints <= 0 {
		minDataPoints = DefaultMinDataPoints
	}

	n := len(points)
	if n < minDataPoints {
		return ValueCorridor{
			Confidence: ConfidenceInsufficient,
			DataPoints: n,
			Reason:     fmt.Sprintf("only %d valid price points in window, need at least %d", n, minDataPoints),
		}
	}

	prices := make([]float64, n)
	for i, p := range points {
		prices[i] = p.Price
	}
	sort.Float64s(prices)

	// Trim the extreme tails so a handful of bogus listings can't drag the
	// corridor. Fall back to the untrimmed set when too little survives.
	p5 := nearestRank(prices, 0.05)
	p95 := nearestRank(prices, 0.95)
	trimmed := prices[:0:0]
	for _, v := range prices {
		if v >= p5 && v <= p95 {
			trimmed = append(trimmed, v)
		}
	}
	if len(trimmed) < minTrimmedPoints {
		trimmed = prices
	}

	low := nearestRank(trimmed, 0.25)
	median := nearestRank(trimmed, 0.50)
	high := nearestRank(trimmed, 0.75)

	m := mean(trimmed)
	volatility := 0.0
	if m != 0 {
		volatility = popStdDev(trimmed, m) / m
	}

	confidence := ConfidenceLow
	switch {
	case n >= highMinPoints && volatility < highMaxCV:
		confidence = ConfidenceHigh
	case n >= mediumMinPoints && volatility < mediumMaxCV:
		confidence = ConfidenceMedium
	}

	return ValueCorridor{
		Low:        ptr(round2(low)),
		Median:     ptr(round2(median)),
		High:       ptr(round2(high)),
		Volatility: ptr(round4(volatility)),
		Confidence: confidence,
		DataPoints: n,
	}
}

// nearestRank returns the p-th percentile of a sorted slice using
// floor(n*p) indexing clamped to the last element.
func nearestRank(sorted []float64, p float64) float64 {
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// popStdDev is the population standard deviation (divide by n, not n-1).
func popStdDev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var variance float64
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func ptr(v float64) *float64 {
	return &v
}
