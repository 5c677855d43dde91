package db

import (
	"database/sql"
	"testing"
	"time"

	"arbitrage-vault/internal/config"
	"arbitrage-vault/internal/engine"
	"arbitrage-vault/internal/keepa"

	_ "modernc.org/sqlite"
)

// openTestDB opens an in-memory SQLite DB and runs migrations (for testing only).
func openTestDB(t *testing.T) *DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		t.Fatalf("migrate: %v", err)
	}
	return d
}

func fptr(v float64) *float64 { return &v }

func TestDB_MigrateAndAnalysisRunRoundTrip(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	id := d.InsertAnalysisRun("watchlist refresh", 25, 12, 0.84, 1200, engine.AnalyzeParams{WindowDays: 90})
	if id <= 0 {
		t.Fatal("InsertAnalysisRun returned 0")
	}

	runs := d.GetAnalysisRuns(5)
	if len(runs) != 1 {
		t.Fatalf("GetAnalysisRuns(5) len = %d, want 1", len(runs))
	}
	if runs[0].ID != id {
		t.Errorf("GetAnalysisRuns ID = %d, want %d", runs[0].ID, id)
	}
	if runs[0].Label != "watchlist refresh" {
		t.Errorf("Label = %q, want watchlist refresh", runs[0].Label)
	}
	if runs[0].ProductCount != 25 || runs[0].ResultCount != 12 {
		t.Errorf("counts = %d/%d, want 25/12", runs[0].ProductCount, runs[0].ResultCount)
	}
	if runs[0].TopROIPct != 0.84 {
		t.Errorf("TopROIPct = %v, want 0.84", runs[0].TopROIPct)
	}

	one, ok := d.GetAnalysisRun(id)
	if !ok {
		t.Fatal("GetAnalysisRun returned false")
	}
	if one.DurationMs != 1200 {
		t.Errorf("DurationMs = %d, want 1200", one.DurationMs)
	}
	if _, ok := d.GetAnalysisRun(99999); ok {
		t.Error("GetAnalysisRun(99999) should return false")
	}
}

func TestDB_AnalysisResultsRoundTrip(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	id := d.InsertAnalysisRun("scan", 1, 1, 0.65, 300, nil)
	if id <= 0 {
		t.Fatal("InsertAnalysisRun failed")
	}

	results := []engine.AnalysisResult{
		{
			ASIN:  "B001TESTAA",
			Title: "Organic Chemistry 4th Ed",
			Corridor: engine.ValueCorridor{
				Low: fptr(38.50), Median: fptr(52.00), High: fptr(61.25),
				Volatility: fptr(0.12), Confidence: engine.ConfidenceHigh,
				DataPoints: 45, WindowDays: 90,
			},
			Guidance: engine.BuyingGuidance{
				MaxBuyPrice: 27.04, TargetSellPrice: 52.00,
				EstimatedProfit: 13.52, EstimatedROIPct: 0.65,
				EstimatedDaysToSell:  4,
				Recommendation:       engine.RecommendBuy,
				RecommendationReason: "ROI above target",
			},
			Seasonal: &engine.SeasonalPattern{PatternType: engine.PatternTextbookPeak},
		},
	}
	d.InsertAnalysisResults(id, results)

	got := d.GetAnalysisResults(id)
	if len(got) != 1 {
		t.Fatalf("GetAnalysisResults len = %d, want 1", len(got))
	}
	r := got[0]
	if r.ASIN != "B001TESTAA" || r.Title != "Organic Chemistry 4th Ed" {
		t.Errorf("ASIN/Title = %q/%q", r.ASIN, r.Title)
	}
	if r.Corridor.Median == nil || *r.Corridor.Median != 52.00 {
		t.Errorf("Median = %v, want 52.00", r.Corridor.Median)
	}
	if r.Corridor.Confidence != engine.ConfidenceHigh {
		t.Errorf("Confidence = %q", r.Corridor.Confidence)
	}
	if r.Guidance.MaxBuyPrice != 27.04 || r.Guidance.EstimatedROIPct != 0.65 {
		t.Errorf("MaxBuyPrice/ROI = %v/%v", r.Guidance.MaxBuyPrice, r.Guidance.EstimatedROIPct)
	}
	if r.Guidance.Recommendation != engine.RecommendBuy {
		t.Errorf("Recommendation = %q", r.Guidance.Recommendation)
	}
	if r.Seasonal == nil || r.Seasonal.PatternType != engine.PatternTextbookPeak {
		t.Errorf("Seasonal = %+v", r.Seasonal)
	}
}

func TestDB_AnalysisResults_NilCorridorFields(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	id := d.InsertAnalysisRun("scan", 1, 1, 0, 10, nil)
	d.InsertAnalysisResults(id, []engine.AnalysisResult{
		{
			ASIN: "B00SPARSEX",
			Corridor: engine.ValueCorridor{
				Confidence: engine.ConfidenceInsufficient,
				DataPoints: 3,
				Reason:     "only 3 data points in window, need 10",
			},
			Guidance: engine.BuyingGuidance{Recommendation: engine.RecommendSkip},
		},
	})

	got := d.GetAnalysisResults(id)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Corridor.Low != nil || got[0].Corridor.Median != nil || got[0].Corridor.Volatility != nil {
		t.Errorf("corridor fields should round-trip as nil, got %+v", got[0].Corridor)
	}
	if got[0].Corridor.Confidence != engine.ConfidenceInsufficient {
		t.Errorf("Confidence = %q", got[0].Corridor.Confidence)
	}
	if got[0].Seasonal != nil {
		t.Errorf("Seasonal should be nil when no pattern stored, got %+v", got[0].Seasonal)
	}
}

func TestDB_InsertAnalysisResults_ZeroRunIDNoOp(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	d.InsertAnalysisResults(0, []engine.AnalysisResult{{ASIN: "B000000001"}})
	got := d.GetAnalysisResults(0)
	if len(got) != 0 {
		t.Errorf("InsertAnalysisResults(0, ...) should not insert; len = %d", len(got))
	}
}

func TestDB_DeleteAndClearAnalysisRuns(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	id1 := d.InsertAnalysisRun("a", 1, 1, 0.5, 1, nil)
	id2 := d.InsertAnalysisRun("b", 2, 2, 0.6, 2, nil)
	d.InsertAnalysisResults(id1, []engine.AnalysisResult{{ASIN: "B000000001"}})

	if !d.DeleteAnalysisRun(id1) {
		t.Error("DeleteAnalysisRun(id1) = false, want true")
	}
	if len(d.GetAnalysisResults(id1)) != 0 {
		t.Error("results should be deleted with their run")
	}
	if d.DeleteAnalysisRun(id1) {
		t.Error("second delete should return false")
	}

	d.ClearAnalysisRuns()
	if _, ok := d.GetAnalysisRun(id2); ok {
		t.Error("ClearAnalysisRuns should remove all runs")
	}
}

func TestDB_PreferencesRoundTrip(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	// Empty DB returns defaults.
	got := d.LoadPreferences()
	if got.WindowDays != 90 || got.MinDataPoints != 10 {
		t.Errorf("default prefs = %+v", got)
	}

	prefs := &config.Preferences{
		WindowDays:    180,
		MinDataPoints: 20,
		TargetROIPct:  0.75,
		FeePct:        0.15,
		MinROIPct:     0.30,
		OnlyBuy:       true,
		MaxResults:    50,
		Seasonal:      true,
	}
	d.SavePreferences(prefs)

	got = d.LoadPreferences()
	if got.WindowDays != 180 || got.MinDataPoints != 20 {
		t.Errorf("window/min = %d/%d, want 180/20", got.WindowDays, got.MinDataPoints)
	}
	if got.TargetROIPct != 0.75 || got.FeePct != 0.15 || got.MinROIPct != 0.30 {
		t.Errorf("roi/fee/minroi = %v/%v/%v", got.TargetROIPct, got.FeePct, got.MinROIPct)
	}
	if !got.OnlyBuy || !got.Seasonal || got.MaxResults != 50 {
		t.Errorf("flags/max = %v/%v/%d", got.OnlyBuy, got.Seasonal, got.MaxResults)
	}
}

func TestDB_Preferences_UserScoped(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	d.SavePreferencesForUser("alice", &config.Preferences{WindowDays: 30, MinDataPoints: 10})
	d.SavePreferencesForUser("bob", &config.Preferences{WindowDays: 365, MinDataPoints: 10})

	if got := d.LoadPreferencesForUser("alice"); got.WindowDays != 30 {
		t.Errorf("alice WindowDays = %d, want 30", got.WindowDays)
	}
	if got := d.LoadPreferencesForUser("bob"); got.WindowDays != 365 {
		t.Errorf("bob WindowDays = %d, want 365", got.WindowDays)
	}
	// Default user untouched.
	if got := d.LoadPreferences(); got.WindowDays != 90 {
		t.Errorf("default user WindowDays = %d, want 90", got.WindowDays)
	}
}

func TestDB_WatchlistCRUD(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	item := config.WatchlistItem{
		ASIN:           "B001TESTAA",
		Title:          "Calculus Early Transcendentals",
		AddedAt:        time.Now().UTC().Format(time.RFC3339),
		SourcePrice:    18.75,
		AlertEnabled:   true,
		AlertMetric:    "estimated_roi_pct",
		AlertThreshold: 0.50,
	}
	if !d.AddWatchlistItem(item) {
		t.Fatal("AddWatchlistItem = false")
	}
	if !d.HasWatchlistItem("B001TESTAA") {
		t.Error("HasWatchlistItem = false after add")
	}
	if d.AddWatchlistItem(item) {
		t.Error("duplicate add should return false")
	}

	items := d.GetWatchlist()
	if len(items) != 1 {
		t.Fatalf("GetWatchlist len = %d, want 1", len(items))
	}
	if items[0].Title != item.Title || items[0].AlertThreshold != 0.50 {
		t.Errorf("item = %+v", items[0])
	}
	if items[0].SourcePrice != 18.75 {
		t.Errorf("SourcePrice = %v, want 18.75", items[0].SourcePrice)
	}

	item.SourcePrice = 22.00
	item.AlertThreshold = 0.80
	if !d.UpdateWatchlistItem(item) {
		t.Error("UpdateWatchlistItem = false")
	}
	if got := d.GetWatchlist(); got[0].AlertThreshold != 0.80 || got[0].SourcePrice != 22.00 {
		t.Errorf("item after update = %+v", got[0])
	}

	if !d.DeleteWatchlistItem("B001TESTAA") {
		t.Error("DeleteWatchlistItem = false")
	}
	if d.HasWatchlistItem("B001TESTAA") {
		t.Error("HasWatchlistItem = true after delete")
	}
}

func TestDB_SavedSearchCRUD(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	params := engine.AnalyzeParams{
		ASINs:        []string{"B001TESTAA", "B002TESTBB"},
		WindowDays:   180,
		TargetROIPct: 0.60,
		OnlyBuy:      true,
	}
	id := d.InsertSavedSearch("textbook sweep", params)
	if id <= 0 {
		t.Fatal("InsertSavedSearch returned 0")
	}

	got, ok := d.GetSavedSearch(id)
	if !ok {
		t.Fatal("GetSavedSearch returned false")
	}
	if got.Name != "textbook sweep" {
		t.Errorf("Name = %q", got.Name)
	}
	if len(got.Params.ASINs) != 2 || got.Params.WindowDays != 180 || !got.Params.OnlyBuy {
		t.Errorf("Params = %+v", got.Params)
	}

	params.WindowDays = 365
	if !d.UpdateSavedSearch(id, "textbook sweep v2", params) {
		t.Error("UpdateSavedSearch = false")
	}
	got, _ = d.GetSavedSearch(id)
	if got.Name != "textbook sweep v2" || got.Params.WindowDays != 365 {
		t.Errorf("after update = %+v", got)
	}

	// Other users cannot see or delete it.
	if _, ok := d.GetSavedSearchForUser("intruder", id); ok {
		t.Error("search should be invisible to other users")
	}
	if d.DeleteSavedSearchForUser("intruder", id) {
		t.Error("other users should not delete the search")
	}

	if !d.DeleteSavedSearch(id) {
		t.Error("DeleteSavedSearch = false")
	}
	if list := d.GetSavedSearches(); len(list) != 0 {
		t.Errorf("GetSavedSearches len = %d after delete", len(list))
	}
}

func TestDB_PriceHistoryCache(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	if _, ok := d.GetPriceHistory("B001TESTAA"); ok {
		t.Error("empty cache should miss")
	}

	now := time.Now().UTC().Truncate(time.Second)
	points := []keepa.PricePoint{
		{Time: now.AddDate(0, 0, -10), Price: 42.50},
		{Time: now.AddDate(0, 0, -5), Price: 44.00},
		{Time: now.AddDate(0, 0, -1), Price: 41.25},
		// Older than the retention cutoff, must be dropped.
		{Time: now.AddDate(-2, 0, 0), Price: 99.99},
	}
	d.SetPriceHistory("B001TESTAA", points)

	got, ok := d.GetPriceHistory("B001TESTAA")
	if !ok {
		t.Fatal("cache miss after SetPriceHistory")
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3 (stale point dropped)", len(got))
	}
	if got[0].Price != 42.50 || got[2].Price != 41.25 {
		t.Errorf("points out of order: %+v", got)
	}
	if !got[0].Time.Before(got[1].Time) {
		t.Error("points should be ordered by time ascending")
	}
}

func TestDB_PriceHistoryCache_Expiry(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	d.SetPriceHistory("B001TESTAA", []keepa.PricePoint{
		{Time: time.Now().UTC().AddDate(0, 0, -1), Price: 10},
	})

	// Backdate the meta row past the TTL.
	stale := time.Now().UTC().Add(-25 * time.Hour).Format(time.RFC3339)
	if _, err := d.sql.Exec("UPDATE price_history_meta SET updated_at = ? WHERE asin = ?", stale, "B001TESTAA"); err != nil {
		t.Fatalf("backdate meta: %v", err)
	}

	if _, ok := d.GetPriceHistory("B001TESTAA"); ok {
		t.Error("cache older than 24h should miss")
	}
}

func TestDB_TokenLedger(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	if err := d.RecordTokenSpend(7, 10, 30, 270); err != nil {
		t.Fatalf("RecordTokenSpend: %v", err)
	}
	if err := d.RecordTokenSpend(0, 1, 3, 267); err != nil {
		t.Fatalf("RecordTokenSpend: %v", err)
	}

	spends, err := d.GetTokenLedger(10)
	if err != nil {
		t.Fatalf("GetTokenLedger: %v", err)
	}
	if len(spends) != 2 {
		t.Fatalf("len = %d, want 2", len(spends))
	}
	// Newest first.
	if spends[0].BalanceAfter != 267 || spends[1].BalanceAfter != 270 {
		t.Errorf("order wrong: %+v", spends)
	}
	if spends[1].RunID != 7 || spends[1].Products != 10 || spends[1].Cost != 30 {
		t.Errorf("first spend = %+v", spends[1])
	}
}

func TestDB_AlertHistory(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	if err := d.InsertAlert("B001TESTAA", "estimated_roi_pct", 0.82, 0.50); err != nil {
		t.Fatalf("InsertAlert: %v", err)
	}
	alerts, err := d.GetAlerts(10)
	if err != nil {
		t.Fatalf("GetAlerts: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("len = %d, want 1", len(alerts))
	}
	a := alerts[0]
	if a.ASIN != "B001TESTAA" || a.Metric != "estimated_roi_pct" {
		t.Errorf("alert = %+v", a)
	}
	if a.Value != 0.82 || a.Threshold != 0.50 {
		t.Errorf("value/threshold = %v/%v", a.Value, a.Threshold)
	}

	// Negative horizon puts the cutoff in the future, clearing everything.
	if err := d.ClearAlerts(-1); err != nil {
		t.Fatalf("ClearAlerts(-1): %v", err)
	}
	alerts, _ = d.GetAlerts(10)
	if len(alerts) != 0 {
		t.Errorf("alerts remaining after clear = %d", len(alerts))
	}
}
