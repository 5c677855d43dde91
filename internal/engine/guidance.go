package engine

import "fmt"

const (
	// DefaultTargetROIPct is the target return on investment used to derive
	// the maximum justified buy price.
	DefaultTargetROIPct = 0.50
	// DefaultFeePct approximates combined marketplace referral and
	// fulfillment fees as a fraction of the sell price.
	DefaultFeePct = 0.22
)

// ROI ladder thresholds for the recommendation decision.
const (
	excellentROI  = 1.00
	targetTierROI = 0.50
	holdTierROI   = 0.30
)

// ComputeGuidance turns a corridor into actionable buying guidance.
//
// The maximum buy price is the exact algebraic inverse of
// roi = (sell*(1-fee) - buy) / buy solved for buy at the target ROI:
// maxBuy = median*(1-fee) / (1+roi). When a source price is supplied the
// profit and ROI are computed against it; otherwise the max buy price is
// used as the reference and the ROI is the target by construction.
//
// An insufficient-data corridor always yields a SKIP with zeroed numbers,
// never an error.
func ComputeGuidance(corridor ValueCorridor, p GuidanceParams) BuyingGuidance {
	if p.TargetROIPct <= 0 {
		p.TargetROIPct = DefaultTargetROIPct
	}
	if p.FeePct <= 0 {
		p.FeePct = DefaultFeePct
	}

	if !corridor.Valid() {
		return BuyingGuidance{
			Recommendation:       RecommendSkip,
			RecommendationReason: "not enough price history to recommend a price: " + corridor.Reason,
			ConfidenceLabel:      ConfidenceInsufficient,
			Explanations: map[string]string{
				"recommendation": corridor.Reason,
			},
		}
	}

	median := *corridor.Median
	netAfterFees := median * (1 - p.FeePct)
	maxBuyPrice := netAfterFees / (1 + p.TargetROIPct)

	var estimatedProfit, estimatedROI float64
	if p.SourcePrice > 0 {
		estimatedProfit = netAfterFees - p.SourcePrice
		estimatedROI = estimatedProfit / p.SourcePrice
	} else {
		// Self-consistent default: buying at the max buy price yields the
		// target ROI exactly.
		estimatedProfit = netAfterFees - maxBuyPrice
		estimatedROI = p.TargetROIPct
	}

	daysToSell := EstimateDaysToSell(p.MonthlySales, p.SalesRank)
	recommendation, reason := decide(corridor.Confidence, estimatedROI, p.SourcePrice, maxBuyPrice)

	// Guidance numbers stay at full precision so the ROI inverse identity
	// holds exactly; display rounding is the UI's concern.
	g := BuyingGuidance{
		MaxBuyPrice:          maxBuyPrice,
		TargetSellPrice:      median,
		EstimatedProfit:      estimatedProfit,
		EstimatedROIPct:      estimatedROI,
		PriceRange:           PriceRange{Low: *corridor.Low, High: *corridor.High},
		EstimatedDaysToSell:  daysToSell,
		Recommendation:       recommendation,
		RecommendationReason: reason,
		ConfidenceLabel:      corridor.Confidence,
	}
	g.Explanations = explain(corridor, p, g)
	return g
}

// decide applies the ordered recommendation ladder; first match wins.
func decide(confidence Confidence, roi, sourcePrice, maxBuyPrice float64) (Recommendation, string) {
	switch {
	case sourcePrice > 0 && sourcePrice > maxBuyPrice:
		return RecommendSkip, fmt.Sprintf(
			"source price $%.2f exceeds recommended maximum of $%.2f", sourcePrice, maxBuyPrice)
	case roi >= excellentROI:
		if confidence == ConfidenceHigh {
			return RecommendBuy, fmt.Sprintf(
				"excellent ROI of %.0f%% with reliable price history", roi*100)
		}
		return RecommendBuy, fmt.Sprintf(
			"excellent ROI of %.0f%%, but verify: price history confidence is %s", roi*100, confidence)
	case roi >= targetTierROI:
		if confidence == ConfidenceHigh || confidence == ConfidenceMedium {
			return RecommendBuy, fmt.Sprintf("ROI of %.0f%% meets the target threshold", roi*100)
		}
		return RecommendHold, fmt.Sprintf(
			"ROI of %.0f%% meets the target, but price history confidence is only %s", roi*100, confidence)
	case roi >= holdTierROI:
		return RecommendHold, fmt.Sprintf("ROI of %.0f%% is marginal; watch for a better entry", roi*100)
	default:
		return RecommendSkip, fmt.Sprintf("ROI of %.0f%% is too low to be profitable", roi*100)
	}
}

// explain builds the per-field tooltip text. Each string references the
// actual parameters used so the UI never shows stale hardcoded numbers.
func explain(corridor ValueCorridor, p GuidanceParams, g BuyingGuidance) map[string]string {
	volatilityPct := 0.0
	if corridor.Volatility != nil {
		volatilityPct = *corridor.Volatility * 100
	}
	return map[string]string{
		"max_buy_price": fmt.Sprintf(
			"Paying at most $%.2f yields a %.0f%% return after %.0f%% fees at the typical sell price of $%.2f.",
			g.MaxBuyPrice, p.TargetROIPct*100, p.FeePct*100, g.TargetSellPrice),
		"target_sell_price": fmt.Sprintf(
			"Median of %d prices observed over the last %d days.",
			corridor.DataPoints, corridor.WindowDays),
		"estimated_profit": fmt.Sprintf(
			"Expected net proceeds after %.0f%% fees, minus your buy cost.", p.FeePct*100),
		"estimated_roi_pct": fmt.Sprintf(
			"Profit as a fraction of buy cost; your target is %.0f%%.", p.TargetROIPct*100),
		"price_range": fmt.Sprintf(
			"Middle half of historical prices: $%.2f to $%.2f.", g.PriceRange.Low, g.PriceRange.High),
		"estimated_days_to_sell": fmt.Sprintf(
			"Expected %d days to sell at the typical price, given the sales velocity signal.",
			g.EstimatedDaysToSell),
		"confidence": fmt.Sprintf(
			"%s: based on %d data points with %.1f%% price volatility.",
			corridor.Confidence, corridor.DataPoints, volatilityPct),
	}
}
