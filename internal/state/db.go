package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS bar_ledger (
			id VARCHAR(42) PRIMARY KEY,
			decimals SMALLINT NOT NULL,
			name TEXT NOT NULL,
			symbol TEXT NOT NULL,
			stake_token VARCHAR(42) NOT NULL,
			total_supply NUMERIC(78, 18) NOT NULL,
			staked NUMERIC(78, 18) NOT NULL,
			staked_usd NUMERIC(78, 18) NOT NULL,
			harvested NUMERIC(78, 18) NOT NULL,
			harvested_usd NUMERIC(78, 18) NOT NULL,
			minted NUMERIC(78, 18) NOT NULL,
			burned NUMERIC(78, 18) NOT NULL,
			age NUMERIC(78, 18) NOT NULL,
			age_destroyed NUMERIC(78, 18) NOT NULL,
			ratio NUMERIC(78, 18) NOT NULL,
			updated_at BIGINT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS bar_positions (
			id VARCHAR(42) PRIMARY KEY,
			bar VARCHAR(42),
			share_balance NUMERIC(78, 18) NOT NULL,
			minted NUMERIC(78, 18) NOT NULL,
			burned NUMERIC(78, 18) NOT NULL,
			staked NUMERIC(78, 18) NOT NULL,
			staked_usd NUMERIC(78, 18) NOT NULL,
			harvested NUMERIC(78, 18) NOT NULL,
			harvested_usd NUMERIC(78, 18) NOT NULL,
			shares_in NUMERIC(78, 18) NOT NULL,
			shares_out NUMERIC(78, 18) NOT NULL,
			stake_in NUMERIC(78, 18) NOT NULL,
			stake_out NUMERIC(78, 18) NOT NULL,
			usd_in NUMERIC(78, 18) NOT NULL,
			usd_out NUMERIC(78, 18) NOT NULL,
			shares_offset NUMERIC(78, 18) NOT NULL,
			stake_offset NUMERIC(78, 18) NOT NULL,
			usd_offset NUMERIC(78, 18) NOT NULL,
			age NUMERIC(78, 18) NOT NULL,
			age_destroyed NUMERIC(78, 18) NOT NULL,
			updated_at BIGINT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_bar_positions_bar ON bar_positions(bar);

		CREATE TABLE IF NOT EXISTS bar_history (
			day BIGINT PRIMARY KEY,
			date BIGINT NOT NULL,
			staked NUMERIC(78, 18) NOT NULL,
			staked_usd NUMERIC(78, 18) NOT NULL,
			harvested NUMERIC(78, 18) NOT NULL,
			harvested_usd NUMERIC(78, 18) NOT NULL,
			age NUMERIC(78, 18) NOT NULL,
			age_destroyed NUMERIC(78, 18) NOT NULL,
			minted NUMERIC(78, 18) NOT NULL,
			burned NUMERIC(78, 18) NOT NULL,
			supply NUMERIC(78, 18) NOT NULL,
			ratio NUMERIC(78, 18) NOT NULL
		);

		CREATE TABLE IF NOT EXISTS chef_ledger (
			id VARCHAR(42) PRIMARY KEY,
			total_alloc_point NUMERIC(78, 0) NOT NULL,
			pool_count NUMERIC(78, 0) NOT NULL,
			reward_per_second NUMERIC(78, 0) NOT NULL,
			updated_at BIGINT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS chef_pools (
			id BIGINT PRIMARY KEY,
			chef VARCHAR(42) NOT NULL,
			pair VARCHAR(42) NOT NULL DEFAULT '',
			rewarder VARCHAR(42),
			alloc_point NUMERIC(78, 0) NOT NULL,
			acc_reward_per_share NUMERIC(78, 0) NOT NULL,
			last_reward_time BIGINT NOT NULL DEFAULT 0,
			supplied_liquidity NUMERIC(78, 0) NOT NULL,
			updated_at BIGINT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS chef_rewarders (
			id VARCHAR(42) PRIMARY KEY,
			updated_at BIGINT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS chef_positions (
			account VARCHAR(42) NOT NULL,
			pool BIGINT NOT NULL,
			amount NUMERIC(78, 0) NOT NULL,
			reward_debt NUMERIC(78, 0) NOT NULL,
			harvested NUMERIC(78, 0) NOT NULL,
			updated_at BIGINT NOT NULL,
			PRIMARY KEY (account, pool)
		);
		CREATE INDEX IF NOT EXISTS idx_chef_positions_pool ON chef_positions(pool);
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
