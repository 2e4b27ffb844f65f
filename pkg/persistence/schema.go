package persistence

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver

	"vozlocal/pkg/proto"
)

// CurrentSchemaVersion defines the current schema version for migration
// support.
const CurrentSchemaVersion = 1

// initializeSchemaWithMigrations ensures the schema is at the current
// version, creating it fresh or migrating as needed.
func initializeSchemaWithMigrations(db *sql.DB) error {
	currentVersion, err := GetSchemaVersion(db)
	if err != nil {
		return fmt.Errorf("get current schema version: %w", err)
	}

	if currentVersion == 0 {
		return createSchema(db)
	}
	if currentVersion == CurrentSchemaVersion {
		return nil
	}
	return runMigrations(db, currentVersion, CurrentSchemaVersion)
}

func runMigrations(db *sql.DB, fromVersion, toVersion int) error {
	for version := fromVersion + 1; version <= toVersion; version++ {
		if err := runMigration(db, version); err != nil {
			return fmt.Errorf("migration to version %d failed: %w", version, err)
		}
		if err := setSchemaVersion(db, version); err != nil {
			return fmt.Errorf("update schema version to %d: %w", version, err)
		}
	}
	return nil
}

func runMigration(_ *sql.DB, version int) error {
	// Version 1 is the initial schema; future versions add cases here.
	return fmt.Errorf("unknown migration version: %d", version)
}

// createSchema creates all tables and indices.
func createSchema(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute pragma %s: %w", pragma, err)
		}
	}

	tables := []string{
		`CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)`,

		`CREATE TABLE IF NOT EXISTS citizens (
			id TEXT PRIMARY KEY,
			user_key_hash TEXT NOT NULL UNIQUE,
			display_name TEXT,
			city TEXT,
			inclusion_group TEXT,
			created_at DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			last_seen_at DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)`,

		`CREATE TABLE IF NOT EXISTS bills (
			id TEXT PRIMARY KEY,
			external_id TEXT UNIQUE,
			title TEXT NOT NULL,
			summary TEXT,
			primary_theme TEXT,
			city TEXT,
			status TEXT NOT NULL DEFAULT '` + string(proto.BillInTramitation) + `'
				CHECK (status IN ('` + string(proto.BillInTramitation) + `', '` +
			string(proto.BillApproved) + `', '` + string(proto.BillArchived) + `')),
			created_at DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)`,

		`CREATE TABLE IF NOT EXISTS interactions (
			id TEXT PRIMARY KEY,
			citizen_id TEXT NOT NULL REFERENCES citizens(id),
			bill_id TEXT REFERENCES bills(id),
			kind TEXT NOT NULL CHECK (kind IN ('` + string(proto.InteractionOpinion) + `', '` +
			string(proto.InteractionView) + `', '` + string(proto.InteractionReaction) + `')),
			opinion TEXT CHECK (opinion IN ('` + string(proto.OpinionFor) + `', '` +
			string(proto.OpinionAgainst) + `', '` + string(proto.OpinionSkip) + `')),
			created_at DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)`,

		`CREATE TABLE IF NOT EXISTS proposals (
			id TEXT PRIMARY KEY,
			citizen_id TEXT NOT NULL REFERENCES citizens(id),
			content TEXT NOT NULL,
			content_kind TEXT NOT NULL CHECK (content_kind IN ('` + string(proto.ContentText) + `', '` +
			string(proto.ContentTranscribedAudio) + `')),
			summary TEXT,
			city TEXT,
			inclusion_group TEXT,
			primary_theme TEXT,
			secondary_themes TEXT,
			confidence REAL DEFAULT 0.0,
			needs_review INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)`,

		`CREATE TABLE IF NOT EXISTS gap_metrics (
			dimension_kind TEXT NOT NULL CHECK (dimension_kind IN ('` + string(proto.DimensionTheme) + `', '` +
			string(proto.DimensionGroup) + `', '` + string(proto.DimensionCity) + `')),
			dimension_key TEXT NOT NULL,
			demand_count INTEGER NOT NULL,
			bill_count INTEGER NOT NULL,
			gap_percent REAL NOT NULL,
			severity TEXT NOT NULL,
			computed_at DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			PRIMARY KEY (dimension_kind, dimension_key)
		)`,
	}

	indices := []string{
		"CREATE INDEX IF NOT EXISTS idx_interactions_citizen ON interactions(citizen_id)",
		"CREATE INDEX IF NOT EXISTS idx_interactions_bill ON interactions(bill_id)",
		"CREATE INDEX IF NOT EXISTS idx_interactions_kind ON interactions(kind)",
		"CREATE INDEX IF NOT EXISTS idx_proposals_citizen ON proposals(citizen_id)",
		"CREATE INDEX IF NOT EXISTS idx_proposals_theme ON proposals(primary_theme)",
		"CREATE INDEX IF NOT EXISTS idx_proposals_review ON proposals(needs_review)",
		"CREATE INDEX IF NOT EXISTS idx_bills_status ON bills(status)",
		"CREATE INDEX IF NOT EXISTS idx_bills_theme ON bills(primary_theme)",
	}

	for _, ddl := range tables {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	for _, ddl := range indices {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	if err := setSchemaVersion(db, CurrentSchemaVersion); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}

func setSchemaVersion(db *sql.DB, version int) error {
	_, err := db.Exec(`INSERT OR REPLACE INTO schema_version (version) VALUES (?)`, version)
	if err != nil {
		return fmt.Errorf("database exec error: %w", err)
	}
	return nil
}

// GetSchemaVersion returns the current schema version, 0 when unset.
func GetSchemaVersion(db *sql.DB) (int, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	)`)
	if err != nil {
		return 0, fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	err = db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("schema version scan error: %w", err)
	}
	return version, nil
}
