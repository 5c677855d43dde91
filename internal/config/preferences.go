package config

// WatchlistItem represents a product being tracked in the watchlist.
type WatchlistItem struct {
	ASIN           string  `json:"asin"`
	Title          string  `json:"title"`
	AddedAt        string  `json:"added_at"`
	SourcePrice    float64 `json:"source_price"` // acquisition cost; 0 = unknown
	AlertEnabled   bool    `json:"alert_enabled"`
	AlertMetric    string  `json:"alert_metric"`    // estimated_roi_pct | max_buy_price | estimated_profit
	AlertThreshold float64 `json:"alert_threshold"` // alert fires when metric >= threshold
}

// Preferences holds the user-tunable business rules for product analysis
// (in-memory representation). Persistence is handled by internal/db.
type Preferences struct {
	WindowDays    int     `json:"window_days"`
	MinDataPoints int     `json:"min_data_points"`
	TargetROIPct  float64 `json:"target_roi_pct"`
	FeePct        float64 `json:"fee_pct"`
	MinROIPct     float64 `json:"min_roi_pct"`
	OnlyBuy       bool    `json:"only_buy"`
	MaxResults    int     `json:"max_results"`
	Seasonal      bool    `json:"seasonal"`
}

// Default returns Preferences with sensible defaults.
func Default() *Preferences {
	return &Preferences{
		WindowDays:    90,
		MinDataPoints: 10,
		TargetROIPct:  0.50,
		FeePct:        0.22,
		MaxResults:    100,
		Seasonal:      true,
	}
}
