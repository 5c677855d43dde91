package db

import (
	"database/sql"
	"fmt"

	"arbitrage-vault/internal/logger"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	sql *sql.DB
}

// Open opens (or creates) the SQLite database at path and runs migrations.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	logger.Success("DB", fmt.Sprintf("Opened %s", path))
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

// SqlDB exposes the underlying connection for collaborators that manage
// their own tables (the auth session store).
func (d *DB) SqlDB() *sql.DB {
	return d.sql
}

func (d *DB) migrate() error {
	version := 0
	// Try to read current version
	d.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS preferences (
				user_id TEXT NOT NULL,
				key     TEXT NOT NULL,
				value   TEXT NOT NULL,
				PRIMARY KEY (user_id, key)
			);

			CREATE TABLE IF NOT EXISTS saved_search (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id     TEXT NOT NULL,
				name        TEXT NOT NULL,
				params_json TEXT NOT NULL,
				created_at  TEXT NOT NULL,
				updated_at  TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_saved_search_user ON saved_search(user_id);

			CREATE TABLE IF NOT EXISTS watchlist (
				user_id         TEXT NOT NULL,
				asin            TEXT NOT NULL,
				title           TEXT NOT NULL DEFAULT '',
				added_at        TEXT NOT NULL,
				alert_enabled   INTEGER NOT NULL DEFAULT 0,
				alert_metric    TEXT NOT NULL DEFAULT 'estimated_roi_pct',
				alert_threshold REAL NOT NULL DEFAULT 0,
				PRIMARY KEY (user_id, asin)
			);

			CREATE TABLE IF NOT EXISTS analysis_history (
				id            INTEGER PRIMARY KEY AUTOINCREMENT,
				timestamp     TEXT NOT NULL,
				label         TEXT NOT NULL,
				product_count INTEGER NOT NULL,
				result_count  INTEGER NOT NULL,
				top_roi_pct   REAL NOT NULL,
				duration_ms   INTEGER NOT NULL DEFAULT 0,
				params_json   TEXT NOT NULL DEFAULT '{}'
			);
			CREATE INDEX IF NOT EXISTS idx_analysis_history_ts ON analysis_history(timestamp);

			CREATE TABLE IF NOT EXISTS analysis_results (
				id                     INTEGER PRIMARY KEY AUTOINCREMENT,
				run_id                 INTEGER NOT NULL REFERENCES analysis_history(id),
				asin                   TEXT,
				title                  TEXT,
				low                    REAL,
				median                 REAL,
				high                   REAL,
				volatility             REAL,
				confidence             TEXT,
				data_points            INTEGER,
				max_buy_price          REAL,
				target_sell_price      REAL,
				estimated_profit       REAL,
				estimated_roi_pct      REAL,
				estimated_days_to_sell INTEGER,
				recommendation         TEXT,
				reason                 TEXT,
				pattern_type           TEXT
			);
			CREATE INDEX IF NOT EXISTS idx_analysis_results_run ON analysis_results(run_id);

			CREATE TABLE IF NOT EXISTS price_history (
				asin  TEXT NOT NULL,
				ts    TEXT NOT NULL,
				price REAL NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_price_history_asin ON price_history(asin);

			CREATE TABLE IF NOT EXISTS price_history_meta (
				asin       TEXT PRIMARY KEY,
				updated_at TEXT NOT NULL
			);

			CREATE TABLE IF NOT EXISTS token_ledger (
				id            INTEGER PRIMARY KEY AUTOINCREMENT,
				timestamp     TEXT NOT NULL,
				run_id        INTEGER NOT NULL DEFAULT 0,
				products      INTEGER NOT NULL,
				cost          INTEGER NOT NULL,
				balance_after INTEGER NOT NULL
			);

			CREATE TABLE IF NOT EXISTS alert_history (
				id        INTEGER PRIMARY KEY AUTOINCREMENT,
				timestamp TEXT NOT NULL,
				asin      TEXT NOT NULL,
				metric    TEXT NOT NULL,
				value     REAL NOT NULL,
				threshold REAL NOT NULL
			);

			CREATE TABLE IF NOT EXISTS auth_session (
				token      TEXT PRIMARY KEY,
				created_at TEXT NOT NULL,
				expires_at TEXT NOT NULL
			);

			INSERT OR REPLACE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
	}

	if version < 2 {
		// Acquisition cost per watchlist item, needed for ROI alerts.
		_, err := d.sql.Exec(`
			ALTER TABLE watchlist ADD COLUMN source_price REAL NOT NULL DEFAULT 0;
			INSERT OR REPLACE INTO schema_version (version) VALUES (2);
		`)
		if err != nil {
			return fmt.Errorf("migration v2: %w", err)
		}
	}
	return nil
}
