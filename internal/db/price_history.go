package db

import (
	"log"
	"time"

	"arbitrage-vault/internal/keepa"
)

// historyTTL is how long a cached price series is considered fresh.
const historyTTL = 24 * time.Hour

// GetPriceHistory retrieves cached price history for an ASIN.
// Returns nil, false if not cached or if the cache is older than 24 hours.
func (d *DB) GetPriceHistory(asin string) ([]keepa.PricePoint, bool) {
	var updatedAt string
	err := d.sql.QueryRow(
		"SELECT updated_at FROM price_history_meta WHERE asin = ?", asin,
	).Scan(&updatedAt)
	if err != nil {
		return nil, false
	}

	t, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil || time.Since(t) > historyTTL {
		return nil, false
	}

	rows, err := d.sql.Query(
		"SELECT ts, price FROM price_history WHERE asin = ? ORDER BY ts", asin,
	)
	if err != nil {
		return nil, false
	}
	defer rows.Close()

	var points []keepa.PricePoint
	for rows.Next() {
		var ts string
		var price float64
		if err := rows.Scan(&ts, &price); err != nil {
			continue
		}
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			continue
		}
		points = append(points, keepa.PricePoint{Time: t, Price: price})
	}
	if len(points) == 0 {
		return nil, false
	}
	return points, true
}

// SetPriceHistory stores a price series in the cache.
// Only points from the last 365 days are stored to bound database growth;
// that comfortably covers the longest analysis window plus a seasonal year.
func (d *DB) SetPriceHistory(asin string, points []keepa.PricePoint) {
	tx, err := d.sql.Begin()
	if err != nil {
		return
	}
	defer tx.Rollback()

	tx.Exec("DELETE FROM price_history WHERE asin = ?", asin)

	stmt, err := tx.Prepare("INSERT INTO price_history (asin, ts, price) VALUES (?,?,?)")
	if err != nil {
		return
	}
	defer stmt.Close()

	cutoff := time.Now().UTC().AddDate(-1, 0, 0)
	for _, p := range points {
		if p.Time.Before(cutoff) || p.Price <= 0 {
			continue
		}
		stmt.Exec(asin, p.Time.UTC().Format(time.RFC3339), p.Price)
	}

	tx.Exec(
		"INSERT OR REPLACE INTO price_history_meta (asin, updated_at) VALUES (?,?)",
		asin, time.Now().UTC().Format(time.RFC3339),
	)

	tx.Commit()
}

// CleanupOldHistory removes price points older than a year and meta rows
// that have not been refreshed in 30 days. Called daily by the scheduler
// to prevent unbounded SQLite growth.
func (d *DB) CleanupOldHistory() {
	cutoff := time.Now().UTC().AddDate(-1, 0, 0).Format(time.RFC3339)
	if res, err := d.sql.Exec("DELETE FROM price_history WHERE ts < ?", cutoff); err != nil {
		log.Printf("[DB] CleanupOldHistory: price delete error: %v", err)
	} else if n, _ := res.RowsAffected(); n > 0 {
		log.Printf("[DB] CleanupOldHistory: removed %d old price rows", n)
	}
	staleCutoff := time.Now().UTC().AddDate(0, 0, -30).Format(time.RFC3339)
	if res, err := d.sql.Exec("DELETE FROM price_history_meta WHERE updated_at < ?", staleCutoff); err != nil {
		log.Printf("[DB] CleanupOldHistory: meta delete error: %v", err)
	} else if n, _ := res.RowsAffected(); n > 0 {
		log.Printf("[DB] CleanupOldHistory: removed %d stale meta entries", n)
	}
}
