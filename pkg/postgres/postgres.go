package postgres

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/SnowyCoder/queuify/config"

	_ "github.com/lib/pq"
)

func NewPostgresDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to PostgreSQL")
	return db, nil
}

func RunMigrations(db *sql.DB) error {
	// Read migration files and execute them
	// This is a simplified version - you might want to use a proper migration tool
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			email VARCHAR(255) UNIQUE NOT NULL,
			name VARCHAR(255) NOT NULL,
			timezone VARCHAR(64) NOT NULL DEFAULT 'UTC',
			telegram_id VARCHAR(100) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS queues (
			id UUID PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			timezone VARCHAR(64) NOT NULL,
			is_privacy_hidden BOOLEAN NOT NULL DEFAULT FALSE,
			join_mode VARCHAR(20) NOT NULL DEFAULT 'invite',
			expected_time_per_ticket DOUBLE PRECISION NOT NULL DEFAULT 0,
			ticket_stats_count INTEGER NOT NULL DEFAULT 0,
			fixed_ticket_time_minutes INTEGER,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS queue_schedule (
			id BIGSERIAL PRIMARY KEY,
			queue_id UUID NOT NULL REFERENCES queues(id) ON DELETE CASCADE,
			day SMALLINT NOT NULL CHECK (day >= 0 AND day <= 6),
			from_time TIME NOT NULL,
			to_time TIME NOT NULL,
			UNIQUE (queue_id, day)
		)`,

		`CREATE TABLE IF NOT EXISTS queue_exceptions (
			id BIGSERIAL PRIMARY KEY,
			queue_id UUID NOT NULL REFERENCES queues(id) ON DELETE CASCADE,
			day DATE NOT NULL,
			from_time TIME,
			to_time TIME,
			UNIQUE (queue_id, day)
		)`,

		`CREATE TABLE IF NOT EXISTS queue_members (
			queue_id UUID NOT NULL REFERENCES queues(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			role VARCHAR(20) NOT NULL DEFAULT 'invited',
			PRIMARY KEY (queue_id, user_id)
		)`,

		`CREATE TABLE IF NOT EXISTS tickets (
			id BIGSERIAL PRIMARY KEY,
			queue_id UUID NOT NULL REFERENCES queues(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			creation_time TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			requested_time TIMESTAMPTZ NOT NULL,
			state VARCHAR(20) NOT NULL DEFAULT 'open',
			closure_time TIMESTAMPTZ,
			wait_time_secs BIGINT,
			cancel_message VARCHAR(128)
		)`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_tickets_queue_id ON tickets(queue_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_user_id ON tickets(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_state ON tickets(state)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_queue_state_time ON tickets(queue_id, state, requested_time)`,
		`CREATE INDEX IF NOT EXISTS idx_queue_exceptions_day ON queue_exceptions(queue_id, day)`,

		// At most one open ticket per slot instant. Slot-mode bookings are
		// aligned to the grid before insert, so two requests for the same
		// window always carry the same requested_time.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_tickets_open_slot
			ON tickets(queue_id, requested_time) WHERE state = 'open'`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute migration: %v", err)
		}
	}

	log.Println("Database migrations completed successfully")
	return nil
}
