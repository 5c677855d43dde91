package engine

import (
	"sort"

	"arbitrage-vault/internal/keepa"
)

const (
	// minSeasonalMonths is the minimum number of distinct calendar months
	// required before any pattern is claimed.
	minSeasonalMonths = 6
	// stableMaxCV marks cross-month volatility below which demand is
	// considered flat year-round.
	stableMaxCV = 0.15
	// peakStdDevFactor flags months this many standard deviations away
	// from the cross-month mean as peaks or troughs.
	peakStdDevFactor = 0.5
	// templateMinOverlap is the Jaccard overlap a seasonal template must
	// score before its label is adopted.
	templateMinOverlap = 0.5
	// evergreenMinPrice and evergreenMaxCV gate the EVERGREEN label:
	// a reasonably priced product with moderately stable demand.
	evergreenMinPrice = 20.0
	evergreenMaxCV    = 0.30
)

// seasonalTemplate names a known demand shape by its peak months.
type seasonalTemplate struct {
	pattern PatternType
	peaks   map[int]bool
}

// Known seasonal shapes in the used-book / general product market.
var seasonalTemplates = []seasonalTemplate{
	{PatternTextbookPeak, monthSet(1, 8, 9)}, // semester starts
	{PatternHolidayPeak, monthSet(11, 12)},
	{PatternSummerPeak, monthSet(5, 6, 7)},
}

func monthSet(months ...int) map[int]bool {
	m := make(map[int]bool, len(months))
	for _, v := range months {
		m[v] = true
	}
	return m
}

// DetectPattern classifies a product's month-of-year price behavior.
// Absence of a clean pattern is itself a valid, named result (IRREGULAR);
// this function never fails.
func DetectPattern(points []keepa.PricePoint) SeasonalPattern {
	sums := make(map[int]float64, 12)
	counts := make(map[int]int, 12)
	for _, p := range points {
		if p.Price <= 0 {
			continue
		}
		m := int(p.Time.Month())
		sums[m] += p.Price
		counts[m]++
	}

	if len(counts) < minSeasonalMonths {
		return SeasonalPattern{PatternType: PatternInsufficientData}
	}

	monthMeans := make(map[int]float64, len(counts))
	var all []float64
	for m, c := range counts {
		avg := sums[m] / float64(c)
		monthMeans[m] = avg
		all = append(all, avg)
	}

	crossMean := mean(all)
	crossStd := popStdDev(all, crossMean)
	cv := 0.0
	if crossMean != 0 {
		cv = crossStd / crossMean
	}

	var peaks, troughs []int
	if crossStd > 0 {
		for m, avg := range monthMeans {
			switch {
			case avg >= crossMean+peakStdDevFactor*crossStd:
				peaks = append(peaks, m)
			case avg <= crossMean-peakStdDevFactor*crossStd:
				troughs = append(troughs, m)
			}
		}
	}
	sort.Ints(peaks)
	sort.Ints(troughs)

	avgPeak := monthGroupMean(monthMeans, peaks)
	avgTrough := monthGroupMean(monthMeans, troughs)
	swingPct := 0.0
	if avgTrough > 0 && avgPeak > 0 {
		swingPct = (avgPeak - avgTrough) / avgTrough * 100
	}

	result := SeasonalPattern{
		PeakMonths:     peaks,
		TroughMonths:   troughs,
		AvgPeakPrice:   round2(avgPeak),
		AvgTroughPrice: round2(avgTrough),
		PriceSwingPct:  round2(swingPct),
	}

	if cv < stableMaxCV {
		result.PatternType = PatternStable
		result.Confidence = round4(1 - cv)
		return result
	}

	if pattern, score := bestTemplate(peaks); score >= templateMinOverlap {
		result.PatternType = pattern
		result.Confidence = round4(score)
		return result
	}

	if crossMean >= evergreenMinPrice && cv < evergreenMaxCV {
		result.PatternType = PatternEvergreen
		result.Confidence = 0.6
		return result
	}

	result.PatternType = PatternIrregular
	result.Confidence = 0.3
	return result
}

// bestTemplate scores the detected peak months against each named template
// by Jaccard overlap and returns the best match.
func bestTemplate(peaks []int) (PatternType, float64) {
	best := PatternIrregular
	bestScore := 0.0
	for _, tpl := range seasonalTemplates {
		score := jaccard(peaks, tpl.peaks)
		if score > bestScore {
			best = tpl.pattern
			bestScore = score
		}
	}
	return best, bestScore
}

func jaccard(months []int, set map[int]bool) float64 {
	if len(months) == 0 || len(set) == 0 {
		return 0
	}
	inter := 0
	for _, m := range months {
		if set[m] {
			inter++
		}
	}
	union := len(set) + len(months) - inter
	return float64(inter) / float64(union)
}

func monthGroupMean(means map[int]float64, months []int) float64 {
	if len(months) == 0 {
		return 0
	}
	var sum float64
	for _, m := range months {
		sum += means[m]
	}
	return sum / float64(len(months))
}
