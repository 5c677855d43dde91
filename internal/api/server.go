package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"

	"arbitrage-vault/internal/auth"
	"arbitrage-vault/internal/config"
	"arbitrage-vault/internal/db"
	"arbitrage-vault/internal/engine"
	"arbitrage-vault/internal/keepa"
)

// Server is the HTTP API server that connects the Keepa client, analysis engine, and database.
type Server struct {
	cfg      *config.Config
	scanner  *engine.Scanner
	keepa    *keepa.Client
	db       *db.DB
	sessions *auth.SessionStore

	mu    sync.RWMutex
	prefs *config.Preferences
}

// NewServer creates a Server with the given config, Keepa client, and database.
// Preferences are loaded from the database; defaults apply when the DB is empty.
func NewServer(cfg *config.Config, scanner *engine.Scanner, keepaClient *keepa.Client, database *db.DB, sessions *auth.SessionStore) *Server {
	prefs := config.Default()
	if database != nil {
		prefs = database.LoadPreferences()
	}
	return &Server{
		cfg:      cfg,
		scanner:  scanner,
		keepa:    keepaClient,
		db:       database,
		sessions: sessions,
		prefs:    prefs,
	}
}

// Handler returns the HTTP handler with all API routes, auth, and CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	mux.HandleFunc("POST /api/config", s.handleSetConfig)
	// Analysis
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /api/analyze/product", s.handleAnalyzeProduct)
	mux.HandleFunc("GET /api/analyze/history", s.handleGetHistory)
	mux.HandleFunc("GET /api/analyze/history/{id}", s.handleGetHistoryByID)
	mux.HandleFunc("GET /api/analyze/history/{id}/results", s.handleGetHistoryResults)
	mux.HandleFunc("DELETE /api/analyze/history/{id}", s.handleDeleteHistory)
	mux.HandleFunc("POST /api/analyze/history/clear", s.handleClearHistory)
	// Saved searches
	mux.HandleFunc("GET /api/searches", s.handleGetSearches)
	mux.HandleFunc("POST /api/searches", s.handleAddSearch)
	mux.HandleFunc("PUT /api/searches/{id}", s.handleUpdateSearch)
	mux.HandleFunc("DELETE /api/searches/{id}", s.handleDeleteSearch)
	mux.HandleFunc("POST /api/searches/{id}/run", s.handleRunSearch)
	// Watchlist
	mux.HandleFunc("GET /api/watchlist", s.handleGetWatchlist)
	mux.HandleFunc("POST /api/watchlist", s.handleAddWatchlist)
	mux.HandleFunc("PUT /api/watchlist/{asin}", s.handleUpdateWatchlist)
	mux.HandleFunc("DELETE /api/watchlist/{asin}", s.handleDeleteWatchlist)
	// Tokens / alerts
	mux.HandleFunc("GET /api/tokens", s.handleGetTokens)
	mux.HandleFunc("POST /api/tokens/refresh", s.handleRefreshTokens)
	mux.HandleFunc("GET /api/alerts", s.handleGetAlerts)
	// Auth
	mux.HandleFunc("POST /api/auth/login", s.handleAuthLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleAuthLogout)
	mux.HandleFunc("GET /api/auth/status", s.handleAuthStatus)
	return corsMiddleware(s.requireAuth(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(204)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth gates all routes except /api/auth/* behind a bearer session
// token. When no access key is configured the middleware is a pass-through.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.sessions == nil || !s.sessions.Enabled() || strings.HasPrefix(r.URL.Path, "/api/auth/") {
			next.ServeHTTP(w, r)
			return
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !s.sessions.Validate(token) {
			writeError(w, 401, "not logged in")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// normalizeASIN uppercases and trims a raw ASIN.
func normalizeASIN(asin string) string {
	return strings.ToUpper(strings.TrimSpace(asin))
}

// isValidASIN checks the standard 10-character alphanumeric Amazon ID shape.
func isValidASIN(asin string) bool {
	if len(asin) != 10 {
		return false
	}
	for i := 0; i < len(asin); i++ {
		c := asin[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	result := map[string]interface{}{
		"auth_enabled": s.sessions != nil && s.sessions.Enabled(),
	}
	if s.keepa != nil {
		tokens := s.keepa.Tokens()
		result["keepa_ok"] = s.keepa.HealthCheck()
		if tokens.Known() {
			result["tokens_left"] = tokens.TokensLeft
			result["refill_rate"] = tokens.RefillRate
			result["refill_in_ms"] = tokens.RefillInMs
		}
	}
	writeJSON(w, result)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	prefs := *s.prefs
	s.mu.RUnlock()
	writeJSON(w, prefs)
}

func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	var patch map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, 400, "invalid json")
		return
	}

	s.mu.Lock()
	if v, ok := patch["window_days"]; ok {
		json.Unmarshal(v, &s.prefs.WindowDays)
	}
	if v, ok := patch["min_data_points"]; ok {
		json.Unmarshal(v, &s.prefs.MinDataPoints)
	}
	if v, ok := patch["target_roi_pct"]; ok {
		json.Unmarshal(v, &s.prefs.TargetROIPct)
	}
	if v, ok := patch["fee_pct"]; ok {
		json.Unmarshal(v, &s.prefs.FeePct)
	}
	if v, ok := patch["min_roi_pct"]; ok {
		json.Unmarshal(v, &s.prefs.MinROIPct)
	}
	if v, ok := patch["only_buy"]; ok {
		json.Unmarshal(v, &s.prefs.OnlyBuy)
	}
	if v, ok := patch["max_results"]; ok {
		json.Unmarshal(v, &s.prefs.MaxResults)
	}
	if v, ok := patch["seasonal"]; ok {
		json.Unmarshal(v, &s.prefs.Seasonal)
	}

	// Validate bounds
	if s.prefs.WindowDays < 1 {
		s.prefs.WindowDays = 1
	} else if s.prefs.WindowDays > 365 {
		s.prefs.WindowDays = 365
	}
	if s.prefs.MinDataPoints < 1 {
		s.prefs.MinDataPoints = 1
	}
	if s.prefs.TargetROIPct < 0 {
		s.prefs.TargetROIPct = 0
	}
	if s.prefs.FeePct < 0 {
		s.prefs.FeePct = 0
	} else if s.prefs.FeePct > 1 {
		s.prefs.FeePct = 1
	}
	if s.prefs.MinROIPct < 0 {
		s.prefs.MinROIPct = 0
	}
	if s.prefs.MaxResults < 1 {
		s.prefs.MaxResults = 1
	} else if s.prefs.MaxResults > 1000 {
		s.prefs.MaxResults = 1000
	}
	prefs := *s.prefs
	s.mu.Unlock()

	if s.db != nil {
		s.db.SavePreferences(&prefs)
	}
	writeJSON(w, prefs)
}

// paramsWithPrefs fills unset analysis params from the stored preferences.
func (s *Server) paramsWithPrefs(p engine.AnalyzeParams) engine.AnalyzeParams {
	s.mu.RLock()
	prefs := *s.prefs
	s.mu.RUnlock()

	if p.WindowDays == 0 {
		p.WindowDays = prefs.WindowDays
	}
	if p.MinDataPoints == 0 {
		p.MinDataPoints = prefs.MinDataPoints
	}
	if p.TargetROIPct == 0 {
		p.TargetROIPct = prefs.TargetROIPct
	}
	if p.FeePct == 0 {
		p.FeePct = prefs.FeePct
	}
	if p.MinROIPct == 0 {
		p.MinROIPct = prefs.MinROIPct
	}
	if p.MaxResults == 0 {
		p.MaxResults = prefs.MaxResults
	}
	if !p.OnlyBuy {
		p.OnlyBuy = prefs.OnlyBuy
	}
	if !p.Seasonal {
		p.Seasonal = prefs.Seasonal
	}
	return p
}

// --- Auth ---

func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, 500, "auth not configured")
		return
	}
	var req struct {
		AccessKey string `json:"access_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid json")
		return
	}
	sess, err := s.sessions.Login(req.AccessKey)
	if err == auth.ErrBadAccessKey {
		writeError(w, 401, "invalid access key")
		return
	}
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	log.Println("[AUTH] Logged in")
	writeJSON(w, map[string]interface{}{
		"token":      sess.Token,
		"expires_at": sess.ExpiresAt.Unix(),
	})
}

func (s *Server) handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	if s.sessions != nil {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.sessions.Logout(token)
	}
	log.Println("[AUTH] Logged out")
	writeJSON(w, map[string]interface{}{"logged_in": false})
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil || !s.sessions.Enabled() {
		writeJSON(w, map[string]interface{}{"auth_enabled": false, "logged_in": true})
		return
	}
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	writeJSON(w, map[string]interface{}{
		"auth_enabled": true,
		"logged_in":    s.sessions.Validate(token),
	})
}
