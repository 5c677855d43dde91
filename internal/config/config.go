package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds application-level configuration loaded at startup.
// Business-rule defaults the user can tune at runtime live in Preferences
// and are persisted by internal/db.
type Config struct {
	Server struct {
		Port      int    `yaml:"port"`
		AccessKey string `yaml:"access_key"` // empty = auth disabled (local mode)
	} `yaml:"server"`
	Keepa struct {
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"keepa"`
	Budget struct {
		TokenReserve int `yaml:"token_reserve"`
	} `yaml:"budget"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Schedule struct {
		CleanupCron string `yaml:"cleanup_cron"`
		RefreshCron string `yaml:"refresh_cron"`
	} `yaml:"schedule"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides. A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("KEEPA_API_KEY"); v != "" {
		cfg.Keepa.APIKey = v
	}
	if v := os.Getenv("KEEPA_BASE_URL"); v != "" {
		cfg.Keepa.BaseURL = v
	}
	if v := os.Getenv("VAULT_ACCESS_KEY"); v != "" {
		cfg.Server.AccessKey = v
	}
	if v := os.Getenv("VAULT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("VAULT_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("VAULT_TOKEN_RESERVE"); v != "" {
		if reserve, err := strconv.Atoi(v); err == nil {
			cfg.Budget.TokenReserve = reserve
		}
	}

	// Defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8400
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "vault.db"
	}
	if cfg.Budget.TokenReserve == 0 {
		cfg.Budget.TokenReserve = 20
	}
	if cfg.Schedule.CleanupCron == "" {
		cfg.Schedule.CleanupCron = "0 30 4 * * *" // daily 04:30
	}
	if cfg.Schedule.RefreshCron == "" {
		cfg.Schedule.RefreshCron = "0 0 */6 * * *" // every 6 hours
	}

	return cfg, nil
}
