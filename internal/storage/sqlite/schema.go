package sqlite

import (
	"fmt"
)

const schemaSQL = `
-- Categories group sources and map them to a digest section
CREATE TABLE IF NOT EXISTS categories (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	digest_section TEXT NOT NULL,
	keywords TEXT NOT NULL DEFAULT '[]',
	created_at INTEGER NOT NULL
);

-- Source configurations
-- claimed_at implements worker mutual exclusion: a source with a fresh
-- claimed_at is being fetched by some worker and must not be re-claimed
CREATE TABLE IF NOT EXISTS sources (
	id TEXT PRIMARY KEY,
	category_id TEXT NOT NULL REFERENCES categories(id),
	name TEXT NOT NULL,
	url TEXT NOT NULL,
	type TEXT NOT NULL DEFAULT 'website',
	keywords TEXT NOT NULL DEFAULT '[]',
	enabled INTEGER NOT NULL DEFAULT 1,
	fetch_interval_minutes INTEGER NOT NULL DEFAULT 60,
	last_fetched_at INTEGER,
	claimed_at INTEGER,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sources_enabled ON sources(enabled);
CREATE INDEX IF NOT EXISTS idx_sources_last_fetched_at ON sources(last_fetched_at);

-- Digests, one per UTC date
CREATE TABLE IF NOT EXISTS digests (
	id TEXT PRIMARY KEY,
	date TEXT NOT NULL UNIQUE,
	status TEXT NOT NULL DEFAULT 'building',
	html_path TEXT,
	created_at INTEGER NOT NULL,
	published_at INTEGER,
	notified_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_digests_status ON digests(status);

-- Fetched articles; url uniqueness backs the dedup filter
CREATE TABLE IF NOT EXISTS articles (
	id TEXT PRIMARY KEY,
	source_id TEXT NOT NULL REFERENCES sources(id),
	url TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	raw_content TEXT,
	summary TEXT,
	digest_section TEXT,
	relevance_score REAL,
	published_at INTEGER,
	fetched_at INTEGER NOT NULL,
	digest_id TEXT REFERENCES digests(id)
);

CREATE INDEX IF NOT EXISTS idx_articles_fetched_at ON articles(fetched_at);
CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles(published_at);
CREATE INDEX IF NOT EXISTS idx_articles_relevance_score ON articles(relevance_score);
CREATE INDEX IF NOT EXISTS idx_articles_digest_id ON articles(digest_id);

-- Runtime settings, values stored as a JSON envelope {"value": ...}
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

-- Background job ledger
CREATE TABLE IF NOT EXISTS job_runs (
	id TEXT PRIMARY KEY,
	job_name TEXT NOT NULL,
	status TEXT NOT NULL,
	started_at INTEGER NOT NULL,
	finished_at INTEGER,
	details TEXT NOT NULL DEFAULT '{}',
	error_message TEXT
);

CREATE INDEX IF NOT EXISTS idx_job_runs_job_name ON job_runs(job_name);
CREATE INDEX IF NOT EXISTS idx_job_runs_started_at ON job_runs(started_at);
`

// InitSchema creates all tables and indexes, then applies column
// migrations for databases created by earlier versions.
func (s *SQLiteDB) InitSchema() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// columnExists checks whether a table already has a column
func (s *SQLiteDB) columnExists(table, column string) (bool, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// runMigrations adds columns introduced after the initial schema.
// SQLite has no ADD COLUMN IF NOT EXISTS, so each migration checks
// table_info first.
func (s *SQLiteDB) runMigrations() error {
	migrations := []struct {
		table  string
		column string
		ddl    string
	}{
		{"sources", "claimed_at", "ALTER TABLE sources ADD COLUMN claimed_at INTEGER"},
		{"articles", "relevance_score", "ALTER TABLE articles ADD COLUMN relevance_score REAL"},
		{"digests", "notified_at", "ALTER TABLE digests ADD COLUMN notified_at INTEGER"},
	}

	for _, m := range migrations {
		exists, err := s.columnExists(m.table, m.column)
		if err != nil {
			return fmt.Errorf("failed to inspect %s: %w", m.table, err)
		}
		if exists {
			continue
		}
		if _, err := s.db.Exec(m.ddl); err != nil {
			return fmt.Errorf("migration failed (%s.%s): %w", m.table, m.column, err)
		}
		s.logger.Info().Str("table", m.table).Str("column", m.column).Msg("Applied schema migration")
	}

	return nil
}
