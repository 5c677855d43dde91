package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"arbitrage-vault/internal/api"
	"arbitrage-vault/internal/auth"
	"arbitrage-vault/internal/config"
	"arbitrage-vault/internal/db"
	"arbitrage-vault/internal/engine"
	"arbitrage-vault/internal/keepa"
	"arbitrage-vault/internal/logger"
	"arbitrage-vault/internal/scheduler"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "vault.yaml", "path to config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	flag.Parse()

	logger.Banner(version)

	// .env is optional; env vars override the YAML config either way.
	godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("CONFIG", fmt.Sprintf("Load failed: %v", err))
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if cfg.Keepa.APIKey == "" {
		logger.Warn("CONFIG", "No Keepa API key set (KEEPA_API_KEY); analysis requests will fail")
	}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("DB", fmt.Sprintf("Failed to open database: %v", err))
		os.Exit(1)
	}
	defer database.Close()

	keepaClient := keepa.NewClient(cfg.Keepa.APIKey, database)
	if cfg.Keepa.BaseURL != "" {
		keepaClient.SetBaseURL(cfg.Keepa.BaseURL)
	}

	scanner := engine.NewScanner(keepaClient)
	scanner.History = database
	if cfg.Budget.TokenReserve > 0 {
		scanner.TokenReserve = cfg.Budget.TokenReserve
	}

	sessions := auth.NewSessionStore(database.SqlDB(), cfg.Server.AccessKey)
	if sessions.Enabled() {
		logger.Info("AUTH", "Access key auth enabled")
	} else {
		logger.Info("AUTH", "No access key configured, running open (local mode)")
	}

	srv := api.NewServer(cfg, scanner, keepaClient, database, sessions)

	sched := scheduler.NewScheduler(context.Background(), scanner, database, sessions)
	if err := sched.RegisterAll(cfg.Schedule.CleanupCron, cfg.Schedule.RefreshCron); err != nil {
		logger.Error("SCHED", fmt.Sprintf("Register tasks: %v", err))
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	// Warm the token balance so the first analysis has a budget to check.
	go func() {
		if tokens, err := keepaClient.RefreshTokens(); err == nil {
			logger.Success("KEEPA", fmt.Sprintf("Token balance: %d (refill %d/min)", tokens.TokensLeft, tokens.RefillRate))
		} else {
			logger.Warn("KEEPA", fmt.Sprintf("Token check failed: %v", err))
		}
	}()

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	logger.Server(addr)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		logger.Error("Server", fmt.Sprintf("Failed: %v", err))
		os.Exit(1)
	}
}
