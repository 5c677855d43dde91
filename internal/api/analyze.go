package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"arbitrage-vault/internal/engine"
	"arbitrage-vault/internal/keepa"
)

// analyzeRequest is the client payload for POST /api/analyze. It mirrors
// engine.AnalyzeParams plus an optional label for the history entry.
type analyzeRequest struct {
	engine.AnalyzeParams
	Label string `json:"label"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid json")
		return
	}
	s.streamAnalysis(w, r, req.AnalyzeParams, req.Label)
}

// streamAnalysis runs a batch analysis and streams NDJSON progress lines
// followed by a single result line. Shared by /api/analyze and
// /api/searches/{id}/run.
func (s *Server) streamAnalysis(w http.ResponseWriter, r *http.Request, params engine.AnalyzeParams, label string) {
	asins := make([]string, 0, len(params.ASINs))
	for _, raw := range params.ASINs {
		asin := normalizeASIN(raw)
		if !isValidASIN(asin) {
			writeError(w, 400, fmt.Sprintf("invalid ASIN %q", raw))
			return
		}
		asins = append(asins, asin)
	}
	if len(asins) == 0 {
		writeError(w, 400, "no ASINs given")
		return
	}
	params.ASINs = asins
	params = s.paramsWithPrefs(params)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, 500, "streaming not supported")
		return
	}

	// The scanner invokes progress from its worker goroutines; the response
	// stream takes one writer at a time.
	var streamMu sync.Mutex
	emit := func(line []byte) {
		streamMu.Lock()
		fmt.Fprintf(w, "%s\n", line)
		flusher.Flush()
		streamMu.Unlock()
	}

	log.Printf("[API] Analyze starting: products=%d, window=%dd, targetROI=%.2f, seasonal=%v",
		len(params.ASINs), params.WindowDays, params.TargetROIPct, params.Seasonal)

	// Count cache misses before the run so the token spend can be recorded.
	uncached := 0
	for _, asin := range params.ASINs {
		if !s.scanner.Source.IsCached(asin) {
			uncached++
		}
	}

	startTime := time.Now()

	results, err := s.scanner.Analyze(r.Context(), params, func(msg string) {
		line, _ := json.Marshal(map[string]string{"type": "progress", "message": msg})
		emit(line)
	})
	if err != nil {
		log.Printf("[API] Analyze error: %v", err)
		line, _ := json.Marshal(map[string]string{"type": "error", "message": err.Error()})
		emit(line)
		return
	}

	durationMs := time.Since(startTime).Milliseconds()
	log.Printf("[API] Analyze complete: %d results in %dms", len(results), durationMs)

	topROI := 0.0
	for _, res := range results {
		if res.Guidance.EstimatedROIPct > topROI {
			topROI = res.Guidance.EstimatedROIPct
		}
	}
	if label == "" {
		label = fmt.Sprintf("%d products", len(params.ASINs))
	}

	var runID int64
	if s.db != nil {
		runID = s.db.InsertAnalysisRun(label, len(params.ASINs), len(results), topROI, durationMs, params)
		s.db.InsertAnalysisResults(runID, results)
		if uncached > 0 {
			tokens := s.scanner.Source.Tokens()
			s.db.RecordTokenSpend(runID, uncached, keepa.EstimateCost(uncached), tokens.TokensLeft)
		}
	}

	line, marshalErr := json.Marshal(map[string]interface{}{
		"type": "result", "data": results, "count": len(results), "run_id": runID,
	})
	if marshalErr != nil {
		log.Printf("[API] Analyze JSON marshal error: %v", marshalErr)
		errLine, _ := json.Marshal(map[string]string{"type": "error", "message": "JSON: " + marshalErr.Error()})
		emit(errLine)
		return
	}
	emit(line)
}

func (s *Server) handleAnalyzeProduct(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ASIN        string  `json:"asin"`
		SourcePrice float64 `json:"source_price"`
		WindowDays  int     `json:"window_days"`
		Seasonal    bool    `json:"seasonal"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid json")
		return
	}
	asin := normalizeASIN(req.ASIN)
	if !isValidASIN(asin) {
		writeError(w, 400, fmt.Sprintf("invalid ASIN %q", req.ASIN))
		return
	}

	params := s.paramsWithPrefs(engine.AnalyzeParams{
		ASINs:      []string{asin},
		WindowDays: req.WindowDays,
		Seasonal:   req.Seasonal,
	})
	if req.SourcePrice > 0 {
		params.SourcePrices = map[string]float64{asin: req.SourcePrice}
	}

	result, err := s.scanner.AnalyzeProduct(asin, params)
	if err != nil {
		writeError(w, 502, err.Error())
		return
	}
	writeJSON(w, result)
}

// --- Analysis history ---

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}
	writeJSON(w, s.db.GetAnalysisRuns(limit))
}

func (s *Server) handleGetHistoryByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, 400, "invalid id")
		return
	}
	run, ok := s.db.GetAnalysisRun(id)
	if !ok {
		writeError(w, 404, "not found")
		return
	}
	writeJSON(w, run)
}

func (s *Server) handleGetHistoryResults(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, 400, "invalid id")
		return
	}
	run, ok := s.db.GetAnalysisRun(id)
	if !ok {
		writeError(w, 404, "not found")
		return
	}
	writeJSON(w, map[string]interface{}{
		"run":     run,
		"results": s.db.GetAnalysisResults(id),
	})
}

func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, 400, "invalid id")
		return
	}
	if !s.db.DeleteAnalysisRun(id) {
		writeError(w, 404, "not found")
		return
	}
	writeJSON(w, map[string]string{"status": "deleted"})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	s.db.ClearAnalysisRuns()
	writeJSON(w, map[string]string{"status": "cleared"})
}
