package scheduler

import (
	"context"
	"fmt"
	"log"

	"arbitrage-vault/internal/auth"
	"arbitrage-vault/internal/db"
	"arbitrage-vault/internal/engine"

	"github.com/robfig/cron/v3"
)

// alertRetentionDays bounds how long fired alerts are kept.
const alertRetentionDays = 90

// Scheduler manages the background cron tasks: nightly cache cleanup and
// periodic watchlist refresh with alert evaluation.
type Scheduler struct {
	Cron     *cron.Cron
	Scanner  *engine.Scanner
	DB       *db.DB
	Sessions *auth.SessionStore
	Ctx      context.Context
}

// NewScheduler creates a Scheduler. Cron expressions use the six-field
// (seconds-first) format.
func NewScheduler(ctx context.Context, scanner *engine.Scanner, database *db.DB, sessions *auth.SessionStore) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Scanner:  scanner,
		DB:       database,
		Sessions: sessions,
		Ctx:      ctx,
	}
}

// RegisterAll registers the cleanup and watchlist refresh tasks.
func (s *Scheduler) RegisterAll(cleanupCron, refreshCron string) error {
	if _, err := s.Cron.AddFunc(cleanupCron, s.cleanupTask); err != nil {
		return fmt.Errorf("register cleanup task: %w", err)
	}
	if _, err := s.Cron.AddFunc(refreshCron, s.refreshTask); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[SCHED] Scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	log.Println("[SCHED] Scheduler stopped")
}

// RunRefreshNow executes the watchlist refresh immediately (manual trigger).
func (s *Scheduler) RunRefreshNow() {
	s.refreshTask()
}

func (s *Scheduler) cleanupTask() {
	log.Println("[SCHED] Running cleanup task")
	s.DB.CleanupOldHistory()
	if err := s.DB.ClearAlerts(alertRetentionDays); err != nil {
		log.Printf("[SCHED] Clear old alerts: %v", err)
	}
	if s.Sessions != nil {
		s.Sessions.PurgeExpired()
	}
}

// refreshTask re-analyzes every watchlist product and fires alerts whose
// configured metric crossed its threshold. Cached histories keep the
// token cost of a refresh near zero for recently analyzed products.
func (s *Scheduler) refreshTask() {
	items := s.DB.GetWatchlist()
	if len(items) == 0 {
		return
	}

	asins := make([]string, 0, len(items))
	sourcePrices := make(map[string]float64)
	for _, item := range items {
		asins = append(asins, item.ASIN)
		if item.SourcePrice > 0 {
			sourcePrices[item.ASIN] = item.SourcePrice
		}
	}
	log.Printf("[SCHED] Refreshing %d watchlist products", len(asins))

	results, err := s.Scanner.Analyze(s.Ctx, engine.AnalyzeParams{ASINs: asins, SourcePrices: sourcePrices}, nil)
	if err != nil {
		log.Printf("[SCHED] Watchlist refresh: %v", err)
		return
	}

	byASIN := make(map[string]engine.AnalysisResult, len(results))
	topROI := 0.0
	for _, res := range results {
		byASIN[res.ASIN] = res
		if res.Guidance.EstimatedROIPct > topROI {
			topROI = res.Guidance.EstimatedROIPct
		}
	}

	runID := s.DB.InsertAnalysisRun("watchlist refresh", len(asins), len(results), topROI, 0, nil)
	s.DB.InsertAnalysisResults(runID, results)

	fired := 0
	for _, item := range items {
		if !item.AlertEnabled {
			continue
		}
		res, ok := byASIN[item.ASIN]
		if !ok || !res.Corridor.Valid() {
			continue
		}
		// Without an acquisition cost the ROI estimate is just the
		// configured target, so an ROI alert would be meaningless.
		if item.AlertMetric == "estimated_roi_pct" && item.SourcePrice <= 0 {
			continue
		}
		value := metricValue(res, item.AlertMetric)
		if value >= item.AlertThreshold {
			if err := s.DB.InsertAlert(item.ASIN, item.AlertMetric, value, item.AlertThreshold); err != nil {
				log.Printf("[SCHED] Record alert for %s: %v", item.ASIN, err)
				continue
			}
			fired++
		}
	}
	if fired > 0 {
		log.Printf("[SCHED] Watchlist refresh fired %d alerts", fired)
	}
}

func metricValue(res engine.AnalysisResult, metric string) float64 {
	switch metric {
	case "max_buy_price":
		return res.Guidance.MaxBuyPrice
	case "estimated_profit":
		return res.Guidance.EstimatedProfit
	default: // estimated_roi_pct
		return res.Guidance.EstimatedROIPct
	}
}
