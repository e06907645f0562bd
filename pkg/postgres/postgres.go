package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gabrie-lhilarion/spacemania/config"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
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
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"host":   cfg.Host,
		"dbname": cfg.DBName,
	}).Info("Successfully connected to PostgreSQL")
	return db, nil
}

// MigrationOptions tunes the schema to the configured occupancy policy.
type MigrationOptions struct {
	// ExclusiveBookings adds the bookings_no_overlap exclusion constraint.
	// Shared occupancy drops it because overlapping bookings are legal there.
	ExclusiveBookings bool
}

var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS btree_gist`,

	`CREATE TABLE IF NOT EXISTS workspace_types (
		id SERIAL PRIMARY KEY,
		name VARCHAR(100) UNIQUE NOT NULL,
		default_capacity INTEGER NOT NULL DEFAULT 1 CHECK (default_capacity >= 0),
		requires_approval BOOLEAN NOT NULL DEFAULT FALSE
	)`,

	`CREATE TABLE IF NOT EXISTS workspaces (
		id SERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		type_id INTEGER NOT NULL REFERENCES workspace_types(id),
		floor INTEGER NOT NULL DEFAULT 0,
		location VARCHAR(255) NOT NULL DEFAULT '',
		capacity INTEGER NOT NULL CHECK (capacity > 0),
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		attributes JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS amenities (
		id SERIAL PRIMARY KEY,
		name VARCHAR(100) UNIQUE NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS workspace_amenities (
		workspace_id INTEGER NOT NULL REFERENCES workspaces(id),
		amenity_id INTEGER NOT NULL REFERENCES amenities(id),
		quantity INTEGER NOT NULL DEFAULT 1 CHECK (quantity > 0),
		PRIMARY KEY (workspace_id, amenity_id)
	)`,

	`CREATE TABLE IF NOT EXISTS bookings (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		workspace_id INTEGER NOT NULL REFERENCES workspaces(id),
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ NOT NULL,
		attendees INTEGER NOT NULL DEFAULT 1,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		special_requests TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT bookings_valid_window CHECK (end_time > start_time),
		CONSTRAINT bookings_valid_attendees CHECK (attendees > 0),
		CONSTRAINT bookings_valid_status CHECK (status IN ('pending', 'confirmed', 'cancelled', 'completed', 'rejected'))
	)`,

	// Indexes
	`CREATE INDEX IF NOT EXISTS idx_workspaces_type_id ON workspaces(type_id)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_user_end ON bookings(user_id, end_time)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_workspace_window ON bookings(workspace_id, start_time, end_time)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_status_end ON bookings(status, end_time)`,
}

const addNoOverlap = `
	DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'bookings_no_overlap') THEN
			ALTER TABLE bookings ADD CONSTRAINT bookings_no_overlap
				EXCLUDE USING gist (
					workspace_id WITH =,
					tstzrange(start_time, end_time, '[)') WITH &&
				) WHERE (status IN ('pending', 'confirmed'));
		END IF;
	END
	$$`

const dropNoOverlap = `ALTER TABLE bookings DROP CONSTRAINT IF EXISTS bookings_no_overlap`

// RunMigrations creates the schema idempotently.
func RunMigrations(ctx context.Context, db *sql.DB, opts MigrationOptions) error {
	statements := append([]string{}, schema...)
	if opts.ExclusiveBookings {
		statements = append(statements, addNoOverlap)
	} else {
		statements = append(statements, dropNoOverlap)
	}

	for _, migration := range statements {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	logrus.WithField("exclusive_bookings", opts.ExclusiveBookings).Info("Database migrations completed successfully")
	return nil
}
