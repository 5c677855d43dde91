package db

import (
	"log"
	"strconv"

	"arbitrage-vault/internal/config"
)

// LoadPreferences reads analysis preferences from SQLite.
// If empty, returns defaults.
func (d *DB) LoadPreferences() *config.Preferences {
	return d.LoadPreferencesForUser(DefaultUserID)
}

// LoadPreferencesForUser reads analysis preferences for a specific user.
// If empty, returns defaults.
func (d *DB) LoadPreferencesForUser(userID string) *config.Preferences {
	userID = normalizeUserID(userID)
	prefs := config.Default()

	rows, err := d.sql.Query("SELECT key, value FROM preferences WHERE user_id = ?", userID)
	if err != nil {
		return prefs
	}
	defer rows.Close()

	m := make(map[string]string)
	for rows.Next() {
		var k, v string
		rows.Scan(&k, &v)
		m[k] = v
	}

	if len(m) == 0 {
		return prefs
	}

	if v, ok := m["window_days"]; ok {
		prefs.WindowDays, _ = strconv.Atoi(v)
	}
	if v, ok := m["min_data_points"]; ok {
		prefs.MinDataPoints, _ = strconv.Atoi(v)
	}
	if v, ok := m["target_roi_pct"]; ok {
		prefs.TargetROIPct, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := m["fee_pct"]; ok {
		prefs.FeePct, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := m["min_roi_pct"]; ok {
		prefs.MinROIPct, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := m["only_buy"]; ok {
		prefs.OnlyBuy, _ = strconv.ParseBool(v)
	}
	if v, ok := m["max_results"]; ok {
		prefs.MaxResults, _ = strconv.Atoi(v)
	}
	if v, ok := m["seasonal"]; ok {
		prefs.Seasonal, _ = strconv.ParseBool(v)
	}
	return prefs
}

// SavePreferences persists analysis preferences.
func (d *DB) SavePreferences(prefs *config.Preferences) {
	d.SavePreferencesForUser(DefaultUserID, prefs)
}

// SavePreferencesForUser persists analysis preferences for a specific user.
func (d *DB) SavePreferencesForUser(userID string, prefs *config.Preferences) {
	userID = normalizeUserID(userID)

	pairs := map[string]string{
		"window_days":     strconv.Itoa(prefs.WindowDays),
		"min_data_points": strconv.Itoa(prefs.MinDataPoints),
		"target_roi_pct":  strconv.FormatFloat(prefs.TargetROIPct, 'f', -1, 64),
		"fee_pct":         strconv.FormatFloat(prefs.FeePct, 'f', -1, 64),
		"min_roi_pct":     strconv.FormatFloat(prefs.MinROIPct, 'f', -1, 64),
		"only_buy":        strconv.FormatBool(prefs.OnlyBuy),
		"max_results":     strconv.Itoa(prefs.MaxResults),
		"seasonal":        strconv.FormatBool(prefs.Seasonal),
	}

	tx, err := d.sql.Begin()
	if err != nil {
		log.Printf("[DB] SavePreferences begin tx: %v", err)
		return
	}
	defer tx.Rollback()

	for k, v := range pairs {
		if _, err := tx.Exec(
			"INSERT OR REPLACE INTO preferences (user_id, key, value) VALUES (?,?,?)",
			userID, k, v,
		); err != nil {
			log.Printf("[DB] SavePreferences %s: %v", k, err)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		log.Printf("[DB] SavePreferences commit: %v", err)
	}
}
