package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"arbitrage-vault/internal/config"
	"arbitrage-vault/internal/keepa"
)

func (s *Server) handleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.db.GetWatchlist())
}

func (s *Server) handleAddWatchlist(w http.ResponseWriter, r *http.Request) {
	var item config.WatchlistItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeError(w, 400, "invalid json")
		return
	}
	item.ASIN = normalizeASIN(item.ASIN)
	if !isValidASIN(item.ASIN) {
		writeError(w, 400, fmt.Sprintf("invalid ASIN %q", item.ASIN))
		return
	}

	// Fill the canonical title from cached product data if the client
	// didn't provide one. Never spends tokens on an add.
	if item.Title == "" && s.keepa != nil && s.keepa.IsCached(item.ASIN) {
		if p, err := s.keepa.FetchProduct(item.ASIN); err == nil {
			item.Title = p.Title
		}
	}

	item.AddedAt = time.Now().UTC().Format(time.RFC3339)
	inserted := s.db.AddWatchlistItem(item)

	type addResponse struct {
		Items    []config.WatchlistItem `json:"items"`
		Inserted bool                   `json:"inserted"`
	}
	writeJSON(w, addResponse{
		Items:    s.db.GetWatchlist(),
		Inserted: inserted,
	})
}

func (s *Server) handleUpdateWatchlist(w http.ResponseWriter, r *http.Request) {
	asin := normalizeASIN(r.PathValue("asin"))
	if !s.db.HasWatchlistItem(asin) {
		writeError(w, 404, "not found")
		return
	}
	// Partial update: only keys present in the body change, so a client
	// can adjust one field without resetting the rest.
	var patch map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, 400, "invalid json")
		return
	}

	items := s.db.GetWatchlist()
	for _, item := range items {
		if item.ASIN != asin {
			continue
		}
		if v, ok := patch["title"]; ok {
			json.Unmarshal(v, &item.Title)
		}
		if v, ok := patch["source_price"]; ok {
			json.Unmarshal(v, &item.SourcePrice)
		}
		if v, ok := patch["alert_enabled"]; ok {
			json.Unmarshal(v, &item.AlertEnabled)
		}
		if v, ok := patch["alert_metric"]; ok {
			json.Unmarshal(v, &item.AlertMetric)
		}
		if v, ok := patch["alert_threshold"]; ok {
			json.Unmarshal(v, &item.AlertThreshold)
		}
		switch item.AlertMetric {
		case "", "estimated_roi_pct", "max_buy_price", "estimated_profit":
		default:
			writeError(w, 400, "unknown alert metric")
			return
		}
		s.db.UpdateWatchlistItem(item)
		break
	}
	writeJSON(w, s.db.GetWatchlist())
}

func (s *Server) handleDeleteWatchlist(w http.ResponseWriter, r *http.Request) {
	asin := normalizeASIN(r.PathValue("asin"))
	s.db.DeleteWatchlistItem(asin)
	writeJSON(w, s.db.GetWatchlist())
}

// --- Tokens / alerts ---

func (s *Server) handleGetTokens(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}
	ledger, err := s.db.GetTokenLedger(limit)
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}

	result := map[string]interface{}{
		"cost_per_product": keepa.TokensPerProduct,
		"reserve":          s.scanner.TokenReserve,
		"ledger":           ledger,
	}
	if s.keepa != nil {
		tokens := s.keepa.Tokens()
		if tokens.Known() {
			result["tokens_left"] = tokens.TokensLeft
			result["refill_rate"] = tokens.RefillRate
			result["refill_in_ms"] = tokens.RefillInMs
		}
	}
	writeJSON(w, result)
}

// handleRefreshTokens queries the upstream token endpoint for a fresh balance.
func (s *Server) handleRefreshTokens(w http.ResponseWriter, r *http.Request) {
	if s.keepa == nil {
		writeError(w, 500, "keepa not configured")
		return
	}
	tokens, err := s.keepa.RefreshTokens()
	if err != nil {
		writeError(w, 502, err.Error())
		return
	}
	writeJSON(w, map[string]interface{}{
		"tokens_left":  tokens.TokensLeft,
		"refill_rate":  tokens.RefillRate,
		"refill_in_ms": tokens.RefillInMs,
	})
}

func (s *Server) handleGetAlerts(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}
	alerts, err := s.db.GetAlerts(limit)
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, alerts)
}
