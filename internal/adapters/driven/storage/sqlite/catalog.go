package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
	"github.com/custodia-labs/lexcorpus/internal/core/ports/driven"
)

// catalog implements driven.Catalog.
type catalog struct {
	store *Store
}

var _ driven.Catalog = (*catalog)(nil)

// RecordVersion inserts a published version. Re-recording is a no-op.
func (c *catalog) RecordVersion(ctx context.Context, v *domain.CorpusVersion) error {
	sourcesJSON, err := json.Marshal(v.Sources)
	if err != nil {
		return fmt.Errorf("marshalling sources: %w", err)
	}
	hashesJSON, err := json.Marshal(v.FileHashes)
	if err != nil {
		return fmt.Errorf("marshalling file hashes: %w", err)
	}

	_, err = c.store.db.ExecContext(ctx, `
		INSERT INTO versions (id, created_at, corpus_hash, sources, file_hashes, file_count)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, v.ID, v.CreatedAt.UTC(), v.CorpusHash, string(sourcesJSON), string(hashesJSON), len(v.FileHashes))
	if err != nil {
		return fmt.Errorf("saving version: %w", err)
	}
	return nil
}

// RecordRun inserts a run and its per-source rows in one transaction.
// Re-recording the same run id is a no-op.
func (c *catalog) RecordRun(ctx context.Context, m *domain.RunManifest) error {
	stagesJSON, err := json.Marshal(m.StageStatuses)
	if err != nil {
		return fmt.Errorf("marshalling stage statuses: %w", err)
	}

	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, version_id, version_reused, started_at, finished_at, state, error, stage_statuses)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO NOTHING
	`, m.RunID, m.VersionID, m.VersionReused, m.StartedAt.UTC(), m.FinishedAt.UTC(),
		string(m.State), nullString(m.Error), string(stagesJSON))
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil
	}

	for _, name := range m.Sources() {
		r := m.PerSourceStatus[name]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO run_sources (run_id, source, status, error_summary, documents, records, chunks,
				rejected, extraction_errors, connector_errors, skipped_documents, output)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, m.RunID, name, string(r.Status), nullString(r.ErrorSummary), r.Documents, r.Records, r.Chunks,
			r.Rejected, r.ExtractionErrors, r.ConnectorErrors, r.SkippedDocuments, nullString(r.Output))
		if err != nil {
			return fmt.Errorf("saving run source %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
// A non-positive limit returns every run.
func (c *catalog) ListRuns(ctx context.Context, limit int) ([]domain.RunManifest, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := c.store.db.QueryContext(ctx, `
		SELECT run_id, version_id, version_reused, started_at, finished_at, state, error, stage_statuses
		FROM runs
		ORDER BY started_at DESC, run_id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}

	var runs []domain.RunManifest //nolint:prealloc // size unknown from query
	for rows.Next() {
		var (
			m          domain.RunManifest
			state      string
			errMsg     sql.NullString
			stagesJSON string
		)
		if err := rows.Scan(&m.RunID, &m.VersionID, &m.VersionReused, &m.StartedAt, &m.FinishedAt,
			&state, &errMsg, &stagesJSON); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		m.State = domain.RunState(state)
		m.Error = errMsg.String
		if err := json.Unmarshal([]byte(stagesJSON), &m.StageStatuses); err != nil {
			rows.Close()
			return nil, fmt.Errorf("unmarshalling stage statuses: %w", err)
		}
		runs = append(runs, m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	rows.Close()

	for i := range runs {
		sources, err := c.runSources(ctx, runs[i].RunID)
		if err != nil {
			return nil, err
		}
		runs[i].PerSourceStatus = sources
	}
	return runs, nil
}

func (c *catalog) runSources(ctx context.Context, runID string) (map[string]*domain.SourceReport, error) {
	rows, err := c.store.db.QueryContext(ctx, `
		SELECT source, status, error_summary, documents, records, chunks,
			rejected, extraction_errors, connector_errors, skipped_documents, output
		FROM run_sources WHERE run_id = ?
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying run sources: %w", err)
	}
	defer rows.Close()

	sources := make(map[string]*domain.SourceReport)
	for rows.Next() {
		var (
			name            string
			status          string
			summary, output sql.NullString
			r               domain.SourceReport
		)
		if err := rows.Scan(&name, &status, &summary, &r.Documents, &r.Records, &r.Chunks,
			&r.Rejected, &r.ExtractionErrors, &r.ConnectorErrors, &r.SkippedDocuments, &output); err != nil {
			return nil, fmt.Errorf("scanning run source: %w", err)
		}
		r.Status = domain.Status(status)
		r.ErrorSummary = summary.String
		r.Output = output.String
		sources[name] = &r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating run sources: %w", err)
	}
	return sources, nil
}

// Close closes the underlying store.
func (c *catalog) Close() error {
	return c.store.Close()
}

// nullString converts an empty string to a NULL column value.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
