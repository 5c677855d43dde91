package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"arbitrage-vault/internal/engine"
)

type searchRequest struct {
	Name   string               `json:"name"`
	Params engine.AnalyzeParams `json:"params"`
}

func (s *Server) handleGetSearches(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.db.GetSavedSearches())
}

func (s *Server) handleAddSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid json")
		return
	}
	if req.Name == "" {
		writeError(w, 400, "name required")
		return
	}
	for i, raw := range req.Params.ASINs {
		asin := normalizeASIN(raw)
		if !isValidASIN(asin) {
			writeError(w, 400, "invalid ASIN "+strconv.Quote(raw))
			return
		}
		req.Params.ASINs[i] = asin
	}
	id := s.db.InsertSavedSearch(req.Name, req.Params)
	if id == 0 {
		writeError(w, 500, "insert failed")
		return
	}
	search, _ := s.db.GetSavedSearch(id)
	writeJSON(w, search)
}

func (s *Server) handleUpdateSearch(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, 400, "invalid id")
		return
	}
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid json")
		return
	}
	if req.Name == "" {
		writeError(w, 400, "name required")
		return
	}
	if !s.db.UpdateSavedSearch(id, req.Name, req.Params) {
		writeError(w, 404, "not found")
		return
	}
	search, _ := s.db.GetSavedSearch(id)
	writeJSON(w, search)
}

func (s *Server) handleDeleteSearch(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, 400, "invalid id")
		return
	}
	if !s.db.DeleteSavedSearch(id) {
		writeError(w, 404, "not found")
		return
	}
	writeJSON(w, map[string]string{"status": "deleted"})
}

// handleRunSearch executes a saved search, streaming results like /api/analyze.
func (s *Server) handleRunSearch(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, 400, "invalid id")
		return
	}
	search, ok := s.db.GetSavedSearch(id)
	if !ok {
		writeError(w, 404, "not found")
		return
	}
	s.streamAnalysis(w, r, search.Params, search.Name)
}
