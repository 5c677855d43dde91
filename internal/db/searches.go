package db

import (
	"encoding/json"
	"log"
	"time"

	"arbitrage-vault/internal/engine"
)

// SavedSearch is a named, reusable set of analysis parameters.
type SavedSearch struct {
	ID        int64                `json:"id"`
	Name      string               `json:"name"`
	Params    engine.AnalyzeParams `json:"params"`
	CreatedAt string               `json:"created_at"`
	UpdatedAt string               `json:"updated_at"`
}

// GetSavedSearches returns all saved searches, newest first.
func (d *DB) GetSavedSearches() []SavedSearch {
	return d.GetSavedSearchesForUser(DefaultUserID)
}

// GetSavedSearchesForUser returns all saved searches for a specific user.
func (d *DB) GetSavedSearchesForUser(userID string) []SavedSearch {
	userID = normalizeUserID(userID)

	rows, err := d.sql.Query(`
		SELECT id, name, params_json, created_at, updated_at
		  FROM saved_search
		 WHERE user_id = ?
		 ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return []SavedSearch{}
	}
	defer rows.Close()

	var searches []SavedSearch
	for rows.Next() {
		var s SavedSearch
		var paramsJSON string
		if err := rows.Scan(&s.ID, &s.Name, &paramsJSON, &s.CreatedAt, &s.UpdatedAt); err != nil {
			continue
		}
		if err := json.Unmarshal([]byte(paramsJSON), &s.Params); err != nil {
			log.Printf("[DB] saved search %d has bad params: %v", s.ID, err)
			continue
		}
		searches = append(searches, s)
	}
	if searches == nil {
		return []SavedSearch{}
	}
	return searches
}

// GetSavedSearch returns one saved search by ID, or false if absent.
func (d *DB) GetSavedSearch(id int64) (SavedSearch, bool) {
	return d.GetSavedSearchForUser(DefaultUserID, id)
}

// GetSavedSearchForUser returns one saved search by ID for a specific user.
func (d *DB) GetSavedSearchForUser(userID string, id int64) (SavedSearch, bool) {
	userID = normalizeUserID(userID)

	var s SavedSearch
	var paramsJSON string
	err := d.sql.QueryRow(`
		SELECT id, name, params_json, created_at, updated_at
		  FROM saved_search
		 WHERE user_id = ? AND id = ?
	`, userID, id).Scan(&s.ID, &s.Name, &paramsJSON, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return SavedSearch{}, false
	}
	if err := json.Unmarshal([]byte(paramsJSON), &s.Params); err != nil {
		return SavedSearch{}, false
	}
	return s, true
}

// InsertSavedSearch stores a new saved search and returns its ID.
func (d *DB) InsertSavedSearch(name string, params engine.AnalyzeParams) int64 {
	return d.InsertSavedSearchForUser(DefaultUserID, name, params)
}

// InsertSavedSearchForUser stores a new saved search for a specific user.
func (d *DB) InsertSavedSearchForUser(userID, name string, params engine.AnalyzeParams) int64 {
	userID = normalizeUserID(userID)

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		log.Printf("[DB] InsertSavedSearch marshal: %v", err)
		return 0
	}
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := d.sql.Exec(`
		INSERT INTO saved_search (user_id, name, params_json, created_at, updated_at)
		VALUES (?,?,?,?,?)
	`, userID, name, string(paramsJSON), now, now)
	if err != nil {
		log.Printf("[DB] InsertSavedSearch: %v", err)
		return 0
	}
	id, _ := res.LastInsertId()
	return id
}

// UpdateSavedSearch replaces the name and parameters of a saved search.
// Returns false if no row matched.
func (d *DB) UpdateSavedSearch(id int64, name string, params engine.AnalyzeParams) bool {
	return d.UpdateSavedSearchForUser(DefaultUserID, id, name, params)
}

// UpdateSavedSearchForUser replaces a saved search for a specific user.
func (d *DB) UpdateSavedSearchForUser(userID string, id int64, name string, params engine.AnalyzeParams) bool {
	userID = normalizeUserID(userID)

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return false
	}
	res, err := d.sql.Exec(`
		UPDATE saved_search
		   SET name = ?, params_json = ?, updated_at = ?
		 WHERE user_id = ? AND id = ?
	`, name, string(paramsJSON), time.Now().UTC().Format(time.RFC3339), userID, id)
	if err != nil {
		return false
	}
	n, _ := res.RowsAffected()
	return n > 0
}

// DeleteSavedSearch removes a saved search. Returns false if no row matched.
func (d *DB) DeleteSavedSearch(id int64) bool {
	return d.DeleteSavedSearchForUser(DefaultUserID, id)
}

// DeleteSavedSearchForUser removes a saved search for a specific user.
func (d *DB) DeleteSavedSearchForUser(userID string, id int64) bool {
	userID = normalizeUserID(userID)
	res, err := d.sql.Exec("DELETE FROM saved_search WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return false
	}
	n, _ := res.RowsAffected()
	return n > 0
}
