package db

import (
	"time"
)

// Alert is one recorded watchlist alert hit.
type Alert struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	ASIN      string    `json:"asin"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
}

// InsertAlert records a watchlist threshold crossing.
func (d *DB) InsertAlert(asin, metric string, value, threshold float64) error {
	_, err := d.sql.Exec(
		"INSERT INTO alert_history (timestamp, asin, metric, value, threshold) VALUES (?,?,?,?,?)",
		time.Now().UTC().Format(time.RFC3339), asin, metric, value, threshold,
	)
	return err
}

// GetAlerts returns the most recent alerts, newest first.
func (d *DB) GetAlerts(limit int) ([]Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.sql.Query(
		"SELECT id, timestamp, asin, metric, value, threshold FROM alert_history ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		var a Alert
		var ts string
		if err := rows.Scan(&a.ID, &ts, &a.ASIN, &a.Metric, &a.Value, &a.Threshold); err != nil {
			return nil, err
		}
		a.Timestamp, _ = time.Parse(time.RFC3339, ts)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// ClearAlerts deletes alert history older than the given number of days.
func (d *DB) ClearAlerts(olderThanDays int) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays).Format(time.RFC3339)
	_, err := d.sql.Exec("DELETE FROM alert_history WHERE timestamp < ?", cutoff)
	return err
}
