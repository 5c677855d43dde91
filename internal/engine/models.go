package engine

import "arbitrage-vault/internal/keepa"

// Confidence grades how trustworthy a corridor is, based on sample size
// and volatility.
type Confidence string

const (
	ConfidenceHigh         Confidence = "HIGH"
	ConfidenceMedium       Confidence = "MEDIUM"
	ConfidenceLow          Confidence = "LOW"
	ConfidenceInsufficient Confidence = "INSUFFICIENT_DATA"
)

// ValueCorridor is the [P25, Median, P75] price band describing the normal
// historical selling price of a product. When Confidence is
// INSUFFICIENT_DATA the numeric fields are nil and Reason says why; callers
// must check Valid() before reading them.
type ValueCorridor struct {
	Low        *float64   `json:"low"`
	Median     *float64   `json:"median"`
	High       *float64   `json:"high"`
	Volatility *float64   `json:"volatility"` // coefficient of variation
	Confidence Confidence `json:"confidence"`
	DataPoints int        `json:"data_points"` // points used after window filtering, before outlier trim
	WindowDays int        `json:"window_days"`
	Reason     string     `json:"reason,omitempty"`
}

// Valid reports whether the corridor carries usable price levels.
func (c ValueCorridor) Valid() bool {
	return c.Confidence != ConfidenceInsufficient
}

// Recommendation is the categorical buying decision.
type Recommendation string

const (
	RecommendBuy  Recommendation = "BUY"
	RecommendHold Recommendation = "HOLD"
	RecommendSkip Recommendation = "SKIP"
)

// PriceRange is the corridor band carried alongside guidance for display.
type PriceRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// BuyingGuidance is the actionable output derived from a corridor: what to
// pay, what to expect, and whether to act. Every numeric field has a
// matching plain-language entry in Explanations for UI tooltips.
type BuyingGuidance struct {
	MaxBuyPrice          float64           `json:"max_buy_price"`
	TargetSellPrice      float64           `json:"target_sell_price"`
	EstimatedProfit      float64           `json:"estimated_profit"`
	EstimatedROIPct      float64           `json:"estimated_roi_pct"`
	PriceRange           PriceRange        `json:"price_range"`
	EstimatedDaysToSell  int               `json:"estimated_days_to_sell"`
	Recommendation       Recommendation    `json:"recommendation"`
	RecommendationReason string            `json:"recommendation_reason"`
	ConfidenceLabel      Confidence        `json:"confidence_label"`
	Explanations         map[string]string `json:"explanations"`
}

// GuidanceParams are the business-rule inputs for ComputeGuidance.
// Zero values mean "not supplied": SourcePrice 0 = no candidate acquisition
// price, MonthlySales 0 = no velocity estimate, SalesRank 0 = no BSR.
// TargetROIPct and FeePct fall back to defaults when <= 0.
type GuidanceParams struct {
	SourcePrice  float64 `json:"source_price"`
	MonthlySales float64 `json:"monthly_sales"`
	SalesRank    int     `json:"sales_rank"`
	TargetROIPct float64 `json:"target_roi_pct"`
	FeePct       float64 `json:"fee_pct"`
}

// PatternType classifies the seasonal demand shape of a product.
type PatternType string

const (
	PatternTextbookPeak     PatternType = "TEXTBOOK_PEAK"
	PatternHolidayPeak      PatternType = "HOLIDAY_PEAK"
	PatternSummerPeak       PatternType = "SUMMER_PEAK"
	PatternEvergreen        PatternType = "EVERGREEN"
	PatternStable           PatternType = "STABLE"
	PatternIrregular        PatternType = "IRREGULAR"
	PatternInsufficientData PatternType = "INSUFFICIENT_DATA"
)

// SeasonalPattern is an advisory annotation describing month-of-year price
// behavior. It never alters the numeric guidance, only its framing.
type SeasonalPattern struct {
	PatternType    PatternType `json:"pattern_type"`
	PeakMonths     []int       `json:"peak_months"`
	TroughMonths   []int       `json:"trough_months"`
	Confidence     float64     `json:"confidence"` // 0..1
	AvgPeakPrice   float64     `json:"avg_peak_price"`
	AvgTroughPrice float64     `json:"avg_trough_price"`
	PriceSwingPct  float64     `json:"price_swing_pct"`
}

// AnalyzeParams holds the inputs for a batch product analysis.
// Zero values fall back to defaults (window 90 days, min 10 points,
// target ROI 50%, fee 22%, 100 results).
type AnalyzeParams struct {
	ASINs         []string           `json:"asins"`
	WindowDays    int                `json:"window_days"`
	MinDataPoints int                `json:"min_data_points"`
	TargetROIPct  float64            `json:"target_roi_pct"`
	FeePct        float64            `json:"fee_pct"`
	SourcePrices  map[string]float64 `json:"source_prices,omitempty"` // per-ASIN acquisition price
	MinROIPct     float64            `json:"min_roi_pct"`             // 0 = no filter
	OnlyBuy       bool               `json:"only_buy"`                // keep only BUY recommendations
	MaxResults    int                `json:"max_results"`
	Seasonal      bool               `json:"seasonal"` // include seasonal classification
}

// AnalysisResult is the full analysis of one product.
type AnalysisResult struct {
	ASIN     string           `json:"asin"`
	Title    string           `json:"title,omitempty"`
	Corridor ValueCorridor    `json:"corridor"`
	Guidance BuyingGuidance   `json:"guidance"`
	Seasonal *SeasonalPattern `json:"seasonal,omitempty"`
}

// PriceSource fetches product data from the metered upstream API.
// *keepa.Client satisfies it; tests substitute a stub.
type PriceSource interface {
	FetchProduct(asin string) (*keepa.Product, error)
	IsCached(asin string) bool
	Tokens() keepa.TokenState
}
