package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Veraticus/cardwise/internal/common"
)

// ExpectedSchemaVersion is the schema this build reads and writes.
const ExpectedSchemaVersion = 4

// Migration is one forward-only schema step.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS sessions (
					id TEXT PRIMARY KEY,
					source TEXT NOT NULL DEFAULT '',
					status TEXT NOT NULL DEFAULT 'uploaded',
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS categories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL UNIQUE,
					slug TEXT NOT NULL UNIQUE
				)`,
				`CREATE TABLE IF NOT EXISTS sub_categories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					category_id INTEGER NOT NULL REFERENCES categories(id),
					name TEXT NOT NULL,
					slug TEXT NOT NULL,
					UNIQUE(category_id, slug)
				)`,

				`CREATE TABLE IF NOT EXISTS mcc_codes (
					code TEXT PRIMARY KEY CHECK (length(code) = 4),
					description TEXT NOT NULL DEFAULT '',
					category_id INTEGER NOT NULL REFERENCES categories(id),
					sub_category_id INTEGER REFERENCES sub_categories(id),
					merchant_patterns TEXT NOT NULL DEFAULT '[]',
					confidence REAL NOT NULL DEFAULT 1.0
				)`,
				`CREATE INDEX idx_mcc_codes_category ON mcc_codes(category_id)`,

				`CREATE TABLE IF NOT EXISTS merchant_aliases (
					merchant_name TEXT PRIMARY KEY,
					aliases TEXT NOT NULL DEFAULT '[]',
					mcc_code TEXT NOT NULL,
					confidence REAL NOT NULL DEFAULT 0,
					usage_count INTEGER NOT NULL DEFAULT 0,
					updated_at DATETIME NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					session_id TEXT NOT NULL REFERENCES sessions(id),
					date DATETIME NOT NULL,
					raw_description TEXT NOT NULL,
					merchant TEXT NOT NULL DEFAULT '',
					amount REAL NOT NULL,
					mcc_code TEXT,
					category_id INTEGER REFERENCES categories(id),
					sub_category_id INTEGER REFERENCES sub_categories(id),
					resolution_confidence REAL NOT NULL DEFAULT 0,
					resolution_source TEXT NOT NULL DEFAULT 'unresolved',
					needs_review INTEGER NOT NULL DEFAULT 0
				)`,
				`CREATE INDEX idx_transactions_session ON transactions(session_id)`,

				`CREATE TABLE IF NOT EXISTS jobs (
					id TEXT PRIMARY KEY,
					session_id TEXT NOT NULL,
					kind TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'queued',
					priority INTEGER NOT NULL DEFAULT 0,
					progress INTEGER NOT NULL DEFAULT 0,
					current_step TEXT NOT NULL DEFAULT '',
					queued_at DATETIME NOT NULL,
					started_at DATETIME,
					completed_at DATETIME,
					updated_at DATETIME NOT NULL,
					input_payload TEXT,
					output_payload TEXT,
					error_message TEXT NOT NULL DEFAULT ''
				)`,
				`CREATE INDEX idx_jobs_claim ON jobs(status, priority, queued_at)`,
				`CREATE INDEX idx_jobs_session ON jobs(session_id)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Add offers, recommendations and settings",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS offers (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					issuer TEXT NOT NULL,
					network TEXT NOT NULL DEFAULT '',
					is_active INTEGER NOT NULL DEFAULT 1,
					data TEXT NOT NULL,
					updated_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_offers_active ON offers(is_active)`,

				`CREATE TABLE IF NOT EXISTS recommendations (
					session_id TEXT NOT NULL REFERENCES sessions(id),
					card_id TEXT NOT NULL,
					card_name TEXT NOT NULL,
					rank INTEGER NOT NULL CHECK (rank > 0),
					score REAL NOT NULL,
					estimated_earnings REAL NOT NULL DEFAULT 0,
					net_savings REAL NOT NULL DEFAULT 0,
					signup_bonus_value REAL NOT NULL DEFAULT 0,
					primary_reason TEXT NOT NULL DEFAULT '',
					pros TEXT NOT NULL DEFAULT '[]',
					cons TEXT NOT NULL DEFAULT '[]',
					category_breakdown TEXT NOT NULL DEFAULT '[]',
					is_fallback INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME NOT NULL,
					PRIMARY KEY (session_id, rank),
					UNIQUE (session_id, card_id)
				)`,

				`CREATE TABLE IF NOT EXISTS settings (
					key TEXT PRIMARY KEY,
					value TEXT NOT NULL,
					updated_at DATETIME NOT NULL
				)`,
			})
		},
	},
	{
		Version:     3,
		Description: "Seed category taxonomy, MCC reference data and merchant aliases",
		Up:          seedReferenceData,
	},
	{
		Version:     4,
		Description: "Seed starter offer catalog",
		Up:          seedOffers,
	},
}

// Migrate brings the schema up to ExpectedSchemaVersion. Each migration and
// its version bump commit together. A database already ahead of this build
// is refused with a fatal error rather than touched.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if current > ExpectedSchemaVersion {
		return common.NewFatalError(fmt.Errorf("database schema version %d is newer than supported version %d",
			current, ExpectedSchemaVersion))
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		err := s.withTx(ctx, func(tx *sql.Tx) error {
			if err := m.Up(tx); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.Version))
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
		slog.Info("Applied migration", "version", m.Version, "description", m.Description)
		current = m.Version
	}

	if current != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, current)
	}
	return nil
}

// SchemaVersion reports the schema version currently applied to the database.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
