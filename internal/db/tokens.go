package db

import (
	"time"
)

// TokenSpend is one recorded Keepa token expenditure.
type TokenSpend struct {
	ID           int64     `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	RunID        int64     `json:"runId"`
	Products     int       `json:"products"`
	Cost         int       `json:"cost"`
	BalanceAfter int       `json:"balanceAfter"`
}

// RecordTokenSpend appends a row to the token ledger. RunID may be zero
// when the spend was not part of a saved analysis run.
func (d *DB) RecordTokenSpend(runID int64, products, cost, balanceAfter int) error {
	_, err := d.sql.Exec(
		"INSERT INTO token_ledger (timestamp, run_id, products, cost, balance_after) VALUES (?,?,?,?,?)",
		time.Now().UTC().Format(time.RFC3339), runID, products, cost, balanceAfter,
	)
	return err
}

// GetTokenLedger returns the most recent token spends, newest first.
func (d *DB) GetTokenLedger(limit int) ([]TokenSpend, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.sql.Query(
		"SELECT id, timestamp, run_id, products, cost, balance_after FROM token_ledger ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var spends []TokenSpend
	for rows.Next() {
		var s TokenSpend
		var ts string
		if err := rows.Scan(&s.ID, &ts, &s.RunID, &s.Products, &s.Cost, &s.BalanceAfter); err != nil {
			return nil, err
		}
		s.Timestamp, _ = time.Parse(time.RFC3339, ts)
		spends = append(spends, s)
	}
	return spends, rows.Err()
}
