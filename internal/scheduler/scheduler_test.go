package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"arbitrage-vault/internal/config"
	"arbitrage-vault/internal/db"
	"arbitrage-vault/internal/engine"
	"arbitrage-vault/internal/keepa"
)

// stubSource serves canned products without network or token spend.
type stubSource struct {
	products map[string]*keepa.Product
}

func (s *stubSource) FetchProduct(asin string) (*keepa.Product, error) {
	p, ok := s.products[asin]
	if !ok {
		return nil, fmt.Errorf("no product for asin %s", asin)
	}
	return p, nil
}

func (s *stubSource) IsCached(asin string) bool { return false }

func (s *stubSource) Tokens() keepa.TokenState {
	return keepa.TokenState{TokensLeft: 300, RefillRate: 5, UpdatedAt: time.Now()}
}

// flatProduct builds a product whose used-price series holds steady around
// $52 for the last 90 days.
func flatProduct(asin string) *keepa.Product {
	now := time.Now().UTC()
	var used []int
	for i := 0; i < 45; i++ {
		ts := now.AddDate(0, 0, -(89 - i*2))
		minute := int(ts.Unix()/60 - 21564000)
		used = append(used, minute, 5100+(i%3)*100)
	}
	return &keepa.Product{
		ASIN:      asin,
		Title:     "Test Product",
		SalesRank: 50000,
		CSV:       [][]int{nil, nil, used, nil},
	}
}

func newTestScheduler(t *testing.T) (*Scheduler, *db.DB) {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "sched.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	source := &stubSource{products: map[string]*keepa.Product{
		"B001TESTAA": flatProduct("B001TESTAA"),
	}}
	scanner := engine.NewScanner(source)
	scanner.History = database

	return NewScheduler(context.Background(), scanner, database, nil), database
}

func TestRefreshTask_FiresAlertsAndRecordsRun(t *testing.T) {
	sched, database := newTestScheduler(t)

	database.AddWatchlistItem(config.WatchlistItem{
		ASIN:           "B001TESTAA",
		Title:          "Test Product",
		AddedAt:        time.Now().UTC().Format(time.RFC3339),
		SourcePrice:    20.00,
		AlertEnabled:   true,
		AlertMetric:    "estimated_roi_pct",
		AlertThreshold: 0.60,
	})

	sched.RunRefreshNow()

	alerts, err := database.GetAlerts(10)
	if err != nil {
		t.Fatalf("GetAlerts: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("alerts fired = %d, want 1", len(alerts))
	}
	if alerts[0].ASIN != "B001TESTAA" || alerts[0].Metric != "estimated_roi_pct" {
		t.Errorf("alert = %+v", alerts[0])
	}
	// median 52, net 52*0.78 = 40.56, ROI on a $20 buy = 20.56/20 = 1.028
	if diff := alerts[0].Value - 1.028; diff < -1e-6 || diff > 1e-6 {
		t.Errorf("alert value = %v, want 1.028", alerts[0].Value)
	}

	runs := database.GetAnalysisRuns(5)
	if len(runs) != 1 || runs[0].Label != "watchlist refresh" {
		t.Fatalf("runs = %+v", runs)
	}
	if results := database.GetAnalysisResults(runs[0].ID); len(results) != 1 {
		t.Errorf("stored results = %d, want 1", len(results))
	}
}

func TestRefreshTask_SkipsDisabledAndUnderThreshold(t *testing.T) {
	sched, database := newTestScheduler(t)

	database.AddWatchlistItem(config.WatchlistItem{
		ASIN:         "B001TESTAA",
		AddedAt:      time.Now().UTC().Format(time.RFC3339),
		AlertEnabled: false,
	})

	sched.RunRefreshNow()
	if alerts, _ := database.GetAlerts(10); len(alerts) != 0 {
		t.Errorf("disabled item fired %d alerts", len(alerts))
	}

	// Enable with an unreachable threshold.
	database.UpdateWatchlistItem(config.WatchlistItem{
		ASIN:           "B001TESTAA",
		SourcePrice:    20.00,
		AlertEnabled:   true,
		AlertMetric:    "estimated_roi_pct",
		AlertThreshold: 50.0,
	})
	sched.RunRefreshNow()
	if alerts, _ := database.GetAlerts(10); len(alerts) != 0 {
		t.Errorf("under-threshold item fired %d alerts", len(alerts))
	}
}

func TestRefreshTask_ROIAlertNeedsSourcePrice(t *testing.T) {
	sched, database := newTestScheduler(t)

	// Without an acquisition cost the ROI estimate degenerates to the
	// configured target, so the alert must not fire no matter the threshold.
	database.AddWatchlistItem(config.WatchlistItem{
		ASIN:           "B001TESTAA",
		AddedAt:        time.Now().UTC().Format(time.RFC3339),
		AlertEnabled:   true,
		AlertMetric:    "estimated_roi_pct",
		AlertThreshold: 0.01,
	})

	sched.RunRefreshNow()
	if alerts, _ := database.GetAlerts(10); len(alerts) != 0 {
		t.Errorf("priceless item fired %d ROI alerts", len(alerts))
	}

	// Other metrics stay usable without a source price.
	database.UpdateWatchlistItem(config.WatchlistItem{
		ASIN:           "B001TESTAA",
		AlertEnabled:   true,
		AlertMetric:    "max_buy_price",
		AlertThreshold: 10.0, // max buy on a $52 corridor is well above this
	})
	sched.RunRefreshNow()
	if alerts, _ := database.GetAlerts(10); len(alerts) != 1 {
		t.Errorf("max_buy_price alerts fired = %d, want 1", len(alerts))
	}
}

func TestRefreshTask_EmptyWatchlistNoRun(t *testing.T) {
	sched, database := newTestScheduler(t)
	sched.RunRefreshNow()
	if runs := database.GetAnalysisRuns(5); len(runs) != 0 {
		t.Errorf("empty watchlist recorded %d runs", len(runs))
	}
}

func TestRegisterAll_RejectsBadCron(t *testing.T) {
	sched, _ := newTestScheduler(t)
	if err := sched.RegisterAll("not a cron", "0 0 */6 * * *"); err == nil {
		t.Error("RegisterAll accepted a malformed cleanup expression")
	}
	if err := sched.RegisterAll("0 30 4 * * *", "0 0 */6 * * *"); err != nil {
		t.Errorf("RegisterAll rejected valid expressions: %v", err)
	}
}

func TestMetricValue_Selection(t *testing.T) {
	res := engine.AnalysisResult{
		Guidance: engine.BuyingGuidance{
			MaxBuyPrice:     26.52,
			EstimatedProfit: 13.26,
			EstimatedROIPct: 0.50,
		},
	}
	if v := metricValue(res, "max_buy_price"); v != 26.52 {
		t.Errorf("max_buy_price = %v", v)
	}
	if v := metricValue(res, "estimated_profit"); v != 13.26 {
		t.Errorf("estimated_profit = %v", v)
	}
	if v := metricValue(res, "estimated_roi_pct"); v != 0.50 {
		t.Errorf("estimated_roi_pct = %v", v)
	}
	if v := metricValue(res, "unknown"); v != 0.50 {
		t.Errorf("unknown metric should fall back to ROI, got %v", v)
	}
}
