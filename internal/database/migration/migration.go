package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

type migrationStep struct {
	Name string
	SQL  string
}

// steps are applied in order and recorded in schema_migrations; never edit an applied step.
var steps = []migrationStep{
	{
		Name: "create_table_documents",
		SQL: `CREATE TABLE IF NOT EXISTS documents (
  id                  TEXT        PRIMARY KEY,
  owner_id            TEXT        NOT NULL,
  parent_resource_id  TEXT        NOT NULL,
  resource_reference  TEXT        NOT NULL DEFAULT '',
  document_name       TEXT        NOT NULL,
  content_type        TEXT        NOT NULL,
  size                BIGINT      NOT NULL CHECK (size >= 0),
  content_hash        CHAR(64)    NOT NULL,
  encryption_salt     BYTEA       NOT NULL,
  encryption_iv       BYTEA       NOT NULL,
  kdf_iterations      INTEGER     NOT NULL CHECK (kdf_iterations >= 100000),
  external_anchor_ref TEXT        NULL,
  created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_documents_owner_parent",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_owner_parent ON documents (owner_id, parent_resource_id, created_at DESC);`,
	},
	{
		Name: "create_table_access_limits",
		SQL: `CREATE TABLE IF NOT EXISTS access_limits (
  recipient_id   TEXT        NOT NULL,
  document_id    TEXT        NOT NULL,
  max_downloads  INTEGER     NOT NULL CHECK (max_downloads > 0),
  download_count INTEGER     NOT NULL CHECK (download_count >= 0),
  first_access   TIMESTAMPTZ NOT NULL,
  last_access    TIMESTAMPTZ NOT NULL,
  expiry_at      TIMESTAMPTZ NOT NULL,
  is_expired     BOOLEAN     NOT NULL DEFAULT false,
  PRIMARY KEY (recipient_id, document_id),
  CHECK (download_count <= max_downloads)
);`,
	},
	{
		Name: "create_table_access_logs",
		SQL: `CREATE TABLE IF NOT EXISTS access_logs (
  id              BIGSERIAL   PRIMARY KEY,
  recipient_id    TEXT        NOT NULL,
  document_id     TEXT        NOT NULL,
  outcome         TEXT        NOT NULL,
  served_at       TIMESTAMPTZ NOT NULL,
  client_ip       TEXT        NOT NULL DEFAULT '',
  client_agent    TEXT        NOT NULL DEFAULT '',
  was_watermarked BOOLEAN     NOT NULL DEFAULT false,
  was_signed      BOOLEAN     NOT NULL DEFAULT false,
  signature       TEXT        NULL
);`,
	},
	{
		Name: "create_index_access_logs_document",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_access_logs_document ON access_logs (document_id, served_at);`,
	},
}

const createLedger = `CREATE TABLE IF NOT EXISTS schema_migrations (
  name       TEXT        PRIMARY KEY,
  applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// EnsureMigrated applies every step not yet recorded in schema_migrations.
func EnsureMigrated(ctx context.Context, db *sql.DB, log logrus.FieldLogger, dbHost string) error {
	start := time.Now()
	l := log.WithFields(logrus.Fields{"component": "database", "db_host": dbHost})
	l.WithField("event", "db_migration_check").Info("checking schema")

	if _, err := db.ExecContext(ctx, createLedger); err != nil {
		l.WithError(err).WithField("event", "db_migration_failed").Error("create migration ledger")
		return fmt.Errorf("create migration ledger: %w", err)
	}

	applied, err := appliedSteps(ctx, db)
	if err != nil {
		l.WithError(err).WithField("event", "db_migration_failed").Error("read migration ledger")
		return err
	}

	ran := 0
	for _, step := range steps {
		if applied[step.Name] {
			continue
		}
		stepStart := time.Now()
		if err := apply(ctx, db, step); err != nil {
			l.WithError(err).WithFields(logrus.Fields{
				"event":          "db_migration_failed",
				"migration_step": step.Name,
				"duration_ms":    time.Since(start).Milliseconds(),
			}).Error("migration step failed")
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}
		ran++
		l.WithFields(logrus.Fields{
			"event":            "db_migration_step",
			"migration_step":   step.Name,
			"step_duration_ms": time.Since(stepStart).Milliseconds(),
		}).Info("migration step applied")
	}

	l.WithFields(logrus.Fields{
		"event":       "db_migration_success",
		"steps_run":   ran,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("schema up to date")
	return nil
}

func appliedSteps(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("read migration ledger: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out[name] = true
	}
	return out, rows.Err()
}

func apply(ctx context.Context, db *sql.DB, step migrationStep) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, step.SQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, step.Name); err != nil {
		return err
	}
	return tx.Commit()
}
