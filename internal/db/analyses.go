package db

import (
	"encoding/json"
	"log"
	"time"

	"arbitrage-vault/internal/engine"
)

// AnalysisRun summarizes one completed batch analysis.
type AnalysisRun struct {
	ID           int64   `json:"id"`
	Timestamp    string  `json:"timestamp"`
	Label        string  `json:"label"`
	ProductCount int     `json:"product_count"`
	ResultCount  int     `json:"result_count"`
	TopROIPct    float64 `json:"top_roi_pct"`
	DurationMs   int64   `json:"duration_ms"`
	ParamsJSON   string  `json:"params_json,omitempty"`
}

// InsertAnalysisRun records a completed run and returns its ID.
func (d *DB) InsertAnalysisRun(label string, productCount, resultCount int, topROI float64, durationMs int64, params interface{}) int64 {
	paramsJSON := "{}"
	if params != nil {
		if b, err := json.Marshal(params); err == nil {
			paramsJSON = string(b)
		}
	}
	res, err := d.sql.Exec(`
		INSERT INTO analysis_history (timestamp, label, product_count, result_count, top_roi_pct, duration_ms, params_json)
		VALUES (?,?,?,?,?,?,?)
	`, time.Now().UTC().Format(time.RFC3339), label, productCount, resultCount, topROI, durationMs, paramsJSON)
	if err != nil {
		log.Printf("[DB] InsertAnalysisRun: %v", err)
		return 0
	}
	id, _ := res.LastInsertId()
	return id
}

// GetAnalysisRuns returns recent runs, newest first.
func (d *DB) GetAnalysisRuns(limit int) []AnalysisRun {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.sql.Query(`
		SELECT id, timestamp, label, product_count, result_count, top_roi_pct, duration_ms, params_json
		  FROM analysis_history
		 ORDER BY id DESC
		 LIMIT ?
	`, limit)
	if err != nil {
		return []AnalysisRun{}
	}
	defer rows.Close()

	var runs []AnalysisRun
	for rows.Next() {
		var r AnalysisRun
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Label, &r.ProductCount, &r.ResultCount,
			&r.TopROIPct, &r.DurationMs, &r.ParamsJSON); err != nil {
			continue
		}
		runs = append(runs, r)
	}
	if runs == nil {
		return []AnalysisRun{}
	}
	return runs
}

// GetAnalysisRun returns one run by ID, or false if absent.
func (d *DB) GetAnalysisRun(id int64) (AnalysisRun, bool) {
	var r AnalysisRun
	err := d.sql.QueryRow(`
		SELECT id, timestamp, label, product_count, result_count, top_roi_pct, duration_ms, params_json
		  FROM analysis_history
		 WHERE id = ?
	`, id).Scan(&r.ID, &r.Timestamp, &r.Label, &r.ProductCount, &r.ResultCount,
		&r.TopROIPct, &r.DurationMs, &r.ParamsJSON)
	if err != nil {
		return AnalysisRun{}, false
	}
	return r, true
}

// DeleteAnalysisRun removes a run and its results.
func (d *DB) DeleteAnalysisRun(id int64) bool {
	tx, err := d.sql.Begin()
	if err != nil {
		return false
	}
	defer tx.Rollback()
	tx.Exec("DELETE FROM analysis_results WHERE run_id = ?", id)
	res, err := tx.Exec("DELETE FROM analysis_history WHERE id = ?", id)
	if err != nil {
		return false
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return false
	}
	return n > 0
}

// ClearAnalysisRuns removes all runs and results.
func (d *DB) ClearAnalysisRuns() {
	tx, err := d.sql.Begin()
	if err != nil {
		return
	}
	defer tx.Rollback()
	tx.Exec("DELETE FROM analysis_results")
	tx.Exec("DELETE FROM analysis_history")
	tx.Commit()
}

// InsertAnalysisResults bulk-inserts results linked to a run.
func (d *DB) InsertAnalysisResults(runID int64, results []engine.AnalysisResult) {
	if runID == 0 || len(results) == 0 {
		return
	}

	tx, err := d.sql.Begin()
	if err != nil {
		log.Printf("[DB] InsertAnalysisResults begin tx: %v", err)
		return
	}

	stmt, err := tx.Prepare(`INSERT INTO analysis_results (
		run_id, asin, title,
		low, median, high, volatility, confidence, data_points,
		max_buy_price, target_sell_price, estimated_profit, estimated_roi_pct,
		estimated_days_to_sell, recommendation, reason, pattern_type
	) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		tx.Rollback()
		log.Printf("[DB] InsertAnalysisResults prepare: %v", err)
		return
	}
	defer stmt.Close()

	for _, r := range results {
		pattern := ""
		if r.Seasonal != nil {
			pattern = string(r.Seasonal.PatternType)
		}
		stmt.Exec(
			runID, r.ASIN, r.Title,
			floatOrNil(r.Corridor.Low), floatOrNil(r.Corridor.Median), floatOrNil(r.Corridor.High),
			floatOrNil(r.Corridor.Volatility), string(r.Corridor.Confidence), r.Corridor.DataPoints,
			r.Guidance.MaxBuyPrice, r.Guidance.TargetSellPrice, r.Guidance.EstimatedProfit,
			r.Guidance.EstimatedROIPct, r.Guidance.EstimatedDaysToSell,
			string(r.Guidance.Recommendation), r.Guidance.RecommendationReason, pattern,
		)
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[DB] InsertAnalysisResults commit: %v", err)
	}
}

// GetAnalysisResults retrieves the stored results for a run.
func (d *DB) GetAnalysisResults(runID int64) []engine.AnalysisResult {
	rows, err := d.sql.Query(`
		SELECT asin, title,
			low, median, high, volatility, confidence, data_points,
			max_buy_price, target_sell_price, estimated_profit, estimated_roi_pct,
			estimated_days_to_sell, recommendation, reason, pattern_type
		FROM analysis_results WHERE run_id = ? ORDER BY estimated_roi_pct DESC
	`, runID)
	if err != nil {
		return []engine.AnalysisResult{}
	}
	defer rows.Close()

	var results []engine.AnalysisResult
	for rows.Next() {
		var r engine.AnalysisResult
		var low, median, high, volatility *float64
		var confidence, recommendation, reason, pattern string
		if err := rows.Scan(
			&r.ASIN, &r.Title,
			&low, &median, &high, &volatility, &confidence, &r.Corridor.DataPoints,
			&r.Guidance.MaxBuyPrice, &r.Guidance.TargetSellPrice, &r.Guidance.EstimatedProfit,
			&r.Guidance.EstimatedROIPct, &r.Guidance.EstimatedDaysToSell,
			&recommendation, &reason, &pattern,
		); err != nil {
			continue
		}
		r.Corridor.Low, r.Corridor.Median, r.Corridor.High, r.Corridor.Volatility = low, median, high, volatility
		r.Corridor.Confidence = engine.Confidence(confidence)
		r.Guidance.Recommendation = engine.Recommendation(recommendation)
		r.Guidance.RecommendationReason = reason
		r.Guidance.ConfidenceLabel = engine.Confidence(confidence)
		if pattern != "" {
			r.Seasonal = &engine.SeasonalPattern{PatternType: engine.PatternType(pattern)}
		}
		results = append(results, r)
	}
	if results == nil {
		return []engine.AnalysisResult{}
	}
	return results
}

func floatOrNil(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
