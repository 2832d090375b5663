package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avdeyev/tasky/internal/config"
)

var globalPostgresPool *pgxpool.Pool

func MustConnectPostgres() {
	cfg := config.Global().Postgres
	connURL := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Username, cfg.Password, cfg.Host,
		cfg.Port, cfg.Database, cfg.SSLMode)

	poolCfg, err := pgxpool.ParseConfig(connURL)
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to parse postgres config")
		panic(err)
	}
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	globalPostgresPool, err = pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to connect to postgres")
		panic(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.PingTimeout)
	defer cancel()

	err = globalPostgresPool.Ping(ctx)
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to ping postgres")
		panic(err)
	}
	globalLogger.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Msg("connected to postgres")
}

func DisconnectPostgres() {
	globalPostgresPool.Close()
	globalLogger.Info().Msg("disconnected from postgres")
}

// Startup DDL is idempotent, so there is no separate migration step.
func MustBootstrapSchema() {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username TEXT UNIQUE,
			email TEXT UNIQUE,
			password TEXT,
			profile_pic TEXT DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS task_shares (
			id BIGSERIAL PRIMARY KEY,
			task_id BIGINT,
			user_id BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS tsk_list (
			id BIGSERIAL PRIMARY KEY,
			name TEXT,
			parent_id BIGINT DEFAULT 0,
			user_id BIGINT,
			is_done BOOLEAN DEFAULT FALSE,
			is_expanded BOOLEAN DEFAULT TRUE,
			description TEXT DEFAULT '',
			start_date TEXT DEFAULT '',
			end_date TEXT DEFAULT '',
			assigned_to TEXT DEFAULT '',
			links TEXT DEFAULT '',
			notes TEXT DEFAULT '',
			priority TEXT DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tsk_user ON tsk_list (user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tsk_parent ON tsk_list (parent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_share_task ON task_shares (task_id)`,
		`CREATE INDEX IF NOT EXISTS idx_share_user ON task_shares (user_id)`,
	}

	ctx := context.Background()
	for _, stmt := range statements {
		_, err := globalPostgresPool.Exec(ctx, stmt)
		if err != nil {
			globalLogger.Error().
				Err(err).
				Msg("failed to bootstrap schema")
			panic(err)
		}
	}
	globalLogger.Info().Msg("bootstrapped schema")
}
