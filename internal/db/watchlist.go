package db

import (
	"time"

	"arbitrage-vault/internal/config"
)

// GetWatchlist returns all watchlist items.
func (d *DB) GetWatchlist() []config.WatchlistItem {
	return d.GetWatchlistForUser(DefaultUserID)
}

// GetWatchlistForUser returns all watchlist items for a specific user.
func (d *DB) GetWatchlistForUser(userID string) []config.WatchlistItem {
	userID = normalizeUserID(userID)

	rows, err := d.sql.Query(`
		SELECT asin, title, added_at, source_price, alert_enabled, alert_metric, alert_threshold
		  FROM watchlist
		 WHERE user_id = ?
		 ORDER BY added_at DESC
	`, userID)
	if err != nil {
		return []config.WatchlistItem{}
	}
	defer rows.Close()

	var items []config.WatchlistItem
	for rows.Next() {
		var item config.WatchlistItem
		rows.Scan(
			&item.ASIN,
			&item.Title,
			&item.AddedAt,
			&item.SourcePrice,
			&item.AlertEnabled,
			&item.AlertMetric,
			&item.AlertThreshold,
		)
		if item.AlertMetric == "" {
			item.AlertMetric = "estimated_roi_pct"
		}
		items = append(items, item)
	}
	if items == nil {
		return []config.WatchlistItem{}
	}
	return items
}

// HasWatchlistItem checks if an ASIN is already in the watchlist.
func (d *DB) HasWatchlistItem(asin string) bool {
	return d.HasWatchlistItemForUser(DefaultUserID, asin)
}

// HasWatchlistItemForUser checks if an ASIN is in the watchlist for a specific user.
func (d *DB) HasWatchlistItemForUser(userID, asin string) bool {
	userID = normalizeUserID(userID)

	var count int
	d.sql.QueryRow("SELECT COUNT(*) FROM watchlist WHERE user_id = ? AND asin = ?", userID, asin).Scan(&count)
	return count > 0
}

// AddWatchlistItem inserts a watchlist item. Returns true if inserted, false if duplicate.
func (d *DB) AddWatchlistItem(item config.WatchlistItem) bool {
	return d.AddWatchlistItemForUser(DefaultUserID, item)
}

// AddWatchlistItemForUser inserts a watchlist item for a specific user.
// Returns true if inserted, false if duplicate.
func (d *DB) AddWatchlistItemForUser(userID string, item config.WatchlistItem) bool {
	userID = normalizeUserID(userID)

	if d.HasWatchlistItemForUser(userID, item.ASIN) {
		return false
	}
	if item.AlertMetric == "" {
		item.AlertMetric = "estimated_roi_pct"
	}
	if item.AddedAt == "" {
		item.AddedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := d.sql.Exec(`
		INSERT INTO watchlist (user_id, asin, title, added_at, source_price, alert_enabled, alert_metric, alert_threshold)
		VALUES (?,?,?,?,?,?,?,?)
	`, userID, item.ASIN, item.Title, item.AddedAt, item.SourcePrice, item.AlertEnabled, item.AlertMetric, item.AlertThreshold)
	return err == nil
}

// UpdateWatchlistItem updates alert settings for an ASIN. Returns false if absent.
func (d *DB) UpdateWatchlistItem(item config.WatchlistItem) bool {
	return d.UpdateWatchlistItemForUser(DefaultUserID, item)
}

// UpdateWatchlistItemForUser updates alert settings for a specific user's ASIN.
func (d *DB) UpdateWatchlistItemForUser(userID string, item config.WatchlistItem) bool {
	userID = normalizeUserID(userID)

	res, err := d.sql.Exec(`
		UPDATE watchlist
		   SET title = ?, source_price = ?, alert_enabled = ?, alert_metric = ?, alert_threshold = ?
		 WHERE user_id = ? AND asin = ?
	`, item.Title, item.SourcePrice, item.AlertEnabled, item.AlertMetric, item.AlertThreshold, userID, item.ASIN)
	if err != nil {
		return false
	}
	n, _ := res.RowsAffected()
	return n > 0
}

// DeleteWatchlistItem removes an ASIN from the watchlist. Returns false if absent.
func (d *DB) DeleteWatchlistItem(asin string) bool {
	return d.DeleteWatchlistItemForUser(DefaultUserID, asin)
}

// DeleteWatchlistItemForUser removes an ASIN for a specific user.
func (d *DB) DeleteWatchlistItemForUser(userID, asin string) bool {
	userID = normalizeUserID(userID)
	res, err := d.sql.Exec("DELETE FROM watchlist WHERE user_id = ? AND asin = ?", userID, asin)
	if err != nil {
		return false
	}
	n, _ := res.RowsAffected()
	return n > 0
}
