package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

type migration struct {
	version     int
	description string
	apply       func(tx *sql.Tx, dim int) error
}

// migrations is append-only; never edit an applied entry.
var migrations = []migration{
	{
		version:     1,
		description: "initial schema (applied via schemaSQL)",
		apply:       func(tx *sql.Tx, dim int) error { return nil },
	},
	{
		version:     2,
		description: "add source label to chunks",
		apply: func(tx *sql.Tx, dim int) error {
			// Databases created after this migration already have the column.
			if _, err := tx.Exec("ALTER TABLE chunks ADD COLUMN source TEXT NOT NULL DEFAULT ''"); err != nil {
				slog.Debug("migration 2: column may already exist", "error", err)
			}
			return nil
		},
	},
	{
		version:     3,
		description: "rebuild vec_chunks with cosine distance",
		apply:       rebuildVecCosine,
	},
}

// rebuildVecCosine recreates vec_chunks with distance_metric=cosine,
// keeping stored embeddings. Tables already declared that way are left alone.
func rebuildVecCosine(tx *sql.Tx, dim int) error {
	var ddl string
	if err := tx.QueryRow(
		"SELECT sql FROM sqlite_master WHERE name = 'vec_chunks'").Scan(&ddl); err != nil {
		return fmt.Errorf("reading vec_chunks definition: %w", err)
	}
	if strings.Contains(ddl, "distance_metric=cosine") {
		return nil
	}
	stmts := []string{
		"CREATE TEMP TABLE vec_chunks_backup AS SELECT chunk_id, embedding FROM vec_chunks",
		"DROP TABLE vec_chunks",
		fmt.Sprintf(`CREATE VIRTUAL TABLE vec_chunks USING vec0(
    chunk_id INTEGER PRIMARY KEY,
    embedding float[%d] distance_metric=cosine
)`, dim),
		"INSERT INTO vec_chunks (chunk_id, embedding) SELECT chunk_id, embedding FROM vec_chunks_backup",
		"DROP TABLE vec_chunks_backup",
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Migrate runs all pending schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		slog.Info("applying migration", "version", m.version, "description", m.description)

		err := s.inTx(ctx, func(tx *sql.Tx) error {
			if err := m.apply(tx, s.embeddingDim); err != nil {
				return fmt.Errorf("migration %d failed: %w", m.version, err)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO schema_version (version, description) VALUES (?, ?)",
				m.version, m.description); err != nil {
				return fmt.Errorf("recording migration %d: %w", m.version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var current int
	row := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&current); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return current, nil
}
