// Package store persists scan reports and their findings to PostgreSQL.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/api/schemas"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking
// in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store provides a PostgreSQL implementation of the findings store.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// SaveReport writes one scan and all of its findings in a single transaction.
func (s *Store) SaveReport(ctx context.Context, report *schemas.ScanReport) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback on an already committed transaction returns ErrTxClosed;
		// that is the normal path, not an error worth logging.
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO scans (id, started_at, finished_at, total_vulnerabilities, failed_files)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			total_vulnerabilities = EXCLUDED.total_vulnerabilities,
			failed_files = EXCLUDED.failed_files;
	`, report.ScanID, report.StartedAt.UTC(), report.FinishedAt.UTC(),
		report.TotalVulnerabilities, report.FailedFiles)
	if err != nil {
		return fmt.Errorf("failed to insert scan: %w", err)
	}

	if report.TotalVulnerabilities > 0 {
		if err := s.persistFindings(ctx, tx, report); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) persistFindings(ctx context.Context, tx pgx.Tx, report *schemas.ScanReport) error {
	var rows [][]interface{}
	for _, file := range report.Files {
		for _, v := range file.Result.Vulnerabilities {
			path, err := json.Marshal(v.PropagationPath)
			if err != nil {
				return fmt.Errorf("failed to marshal propagation path: %w", err)
			}
			bypassed, err := json.Marshal(v.SanitizersBypassed)
			if err != nil {
				return fmt.Errorf("failed to marshal bypassed sanitizers: %w", err)
			}

			rows = append(rows, []interface{}{
				v.ID, report.ScanID, file.Path, file.Language,
				v.VulnerabilityType, v.SinkType, string(v.Severity),
				v.Location.Line, v.Location.Column,
				v.TaintedVariable, v.Source,
				path, bypassed,
			})
		}
	}

	copyCount, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"findings"},
		[]string{"id", "scan_id", "file_path", "language", "vulnerability_type", "sink_type", "severity", "line", "col", "tainted_variable", "source", "propagation_path", "sanitizers_bypassed"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy findings: %w", err)
	}
	if int(copyCount) != len(rows) {
		return fmt.Errorf("mismatch in copied findings count: expected %d, got %d", len(rows), copyCount)
	}
	return nil
}

// FindingsByScanID returns the findings persisted for one scan, ordered by
// file and position.
func (s *Store) FindingsByScanID(ctx context.Context, scanID string) ([]schemas.Vulnerability, error) {
	query := `
		SELECT id, vulnerability_type, sink_type, severity, line, col, tainted_variable, source, propagation_path, sanitizers_bypassed
		FROM findings
		WHERE scan_id = $1
		ORDER BY file_path ASC, line ASC, col ASC;
	`
	rows, err := s.pool.Query(ctx, query, scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()

	var findings []schemas.Vulnerability
	for rows.Next() {
		var v schemas.Vulnerability
		var severityStr string
		var path, bypassed []byte

		err := rows.Scan(
			&v.ID, &v.VulnerabilityType, &v.SinkType, &severityStr,
			&v.Location.Line, &v.Location.Column,
			&v.TaintedVariable, &v.Source, &path, &bypassed,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan finding row: %w", err)
		}

		v.Severity = schemas.Severity(severityStr)
		if len(path) > 0 {
			if err := json.Unmarshal(path, &v.PropagationPath); err != nil {
				return nil, fmt.Errorf("failed to unmarshal propagation path: %w", err)
			}
		}
		if len(bypassed) > 0 {
			if err := json.Unmarshal(bypassed, &v.SanitizersBypassed); err != nil {
				return nil, fmt.Errorf("failed to unmarshal bypassed sanitizers: %w", err)
			}
		}
		findings = append(findings, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return findings, nil
}

// Migrate creates the tables the store needs. Idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS scans (
			id TEXT PRIMARY KEY,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL,
			total_vulnerabilities INTEGER NOT NULL DEFAULT 0,
			failed_files INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS findings (
			id TEXT PRIMARY KEY,
			scan_id TEXT NOT NULL REFERENCES scans(id),
			file_path TEXT NOT NULL,
			language TEXT NOT NULL,
			vulnerability_type TEXT NOT NULL,
			sink_type TEXT NOT NULL,
			severity TEXT NOT NULL,
			line INTEGER NOT NULL,
			col INTEGER NOT NULL,
			tainted_variable TEXT NOT NULL,
			source TEXT NOT NULL,
			propagation_path JSONB NOT NULL DEFAULT '[]',
			sanitizers_bypassed JSONB NOT NULL DEFAULT '[]'
		);
		CREATE INDEX IF NOT EXISTS findings_scan_idx ON findings (scan_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
