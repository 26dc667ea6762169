package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is one versioned schema change.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns the ordered schema migrations.
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create skills table",
			SQL: `
				CREATE TABLE IF NOT EXISTS skills (
					id BIGSERIAL PRIMARY KEY,
					uuid UUID NOT NULL UNIQUE,
					name TEXT NOT NULL,
					statement TEXT NOT NULL,
					author TEXT NOT NULL DEFAULT '',
					category TEXT NOT NULL DEFAULT '',
					keywords TEXT[] NOT NULL DEFAULT '{}',
					job_codes TEXT[] NOT NULL DEFAULT '{}',
					standards TEXT[] NOT NULL DEFAULT '{}',
					status VARCHAR(20) NOT NULL DEFAULT 'draft',
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					published_at TIMESTAMP WITH TIME ZONE,
					archived_at TIMESTAMP WITH TIME ZONE
				);

				CREATE INDEX IF NOT EXISTS idx_skills_status ON skills(status);
				CREATE INDEX IF NOT EXISTS idx_skills_name ON skills(name);
				CREATE INDEX IF NOT EXISTS idx_skills_category ON skills(category);
			`,
		},
		{
			Version:     2,
			Description: "Create collections table",
			SQL: `
				CREATE TABLE IF NOT EXISTS collections (
					id BIGSERIAL PRIMARY KEY,
					uuid UUID NOT NULL UNIQUE,
					name TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					author TEXT NOT NULL DEFAULT '',
					status VARCHAR(20) NOT NULL DEFAULT 'draft',
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					published_at TIMESTAMP WITH TIME ZONE,
					archived_at TIMESTAMP WITH TIME ZONE
				);

				CREATE INDEX IF NOT EXISTS idx_collections_status ON collections(status);
				CREATE INDEX IF NOT EXISTS idx_collections_name ON collections(name);
			`,
		},
		{
			Version:     3,
			Description: "Create collection_skills membership table",
			SQL: `
				CREATE TABLE IF NOT EXISTS collection_skills (
					collection_id BIGINT NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
					skill_id BIGINT NOT NULL REFERENCES skills(id) ON DELETE CASCADE,
					added_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					PRIMARY KEY (collection_id, skill_id)
				);

				CREATE INDEX IF NOT EXISTS idx_collection_skills_skill ON collection_skills(skill_id);
			`,
		},
		{
			Version:     4,
			Description: "Create full-text search indexes",
			SQL: `
				CREATE INDEX IF NOT EXISTS idx_skills_fts ON skills
					USING GIN (to_tsvector('english', name || ' ' || statement));
				CREATE INDEX IF NOT EXISTS idx_collections_fts ON collections
					USING GIN (to_tsvector('english', name || ' ' || description));
			`,
		},
	}
}

// Migrate applies all pending migrations inside a version-tracking table.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	for _, m := range Migrations() {
		var exists bool
		err := db.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", m.Version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", m.Version, err)
		}
		if exists {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
