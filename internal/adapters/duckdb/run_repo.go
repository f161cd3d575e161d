package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adityak74/weatherweave/internal/core/domain"
)

// SaveRun persists a completed run and all its stages.
func (r *Repository) SaveRun(ctx context.Context, run *domain.Run) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, run_trigger, status, theme, prompt, artifact_id, strategy,
		                  error, start_time, end_time, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status      = excluded.status,
			prompt      = excluded.prompt,
			artifact_id = excluded.artifact_id,
			strategy    = excluded.strategy,
			error       = excluded.error,
			end_time    = excluded.end_time,
			duration_ms = excluded.duration_ms`,
		string(run.ID),
		string(run.Trigger),
		string(run.Status),
		string(run.Theme),
		validText(run.Prompt),
		string(run.ArtifactID),
		run.Strategy,
		validText(run.Error),
		run.StartTime.UTC(),
		utcPtr(run.EndTime),
		run.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}

	// Stages are immutable once a run ends; replace them wholesale.
	if _, err := tx.ExecContext(ctx, `DELETE FROM run_stages WHERE run_id = ?`, string(run.ID)); err != nil {
		return fmt.Errorf("clear stages: %w", err)
	}

	for i, st := range run.Stages {
		attrJSON, _ := json.Marshal(st.Attributes)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_stages (run_id, seq, name, status, error, attributes,
			                        start_time, end_time, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(run.ID),
			i,
			string(st.Name),
			string(st.Status),
			validText(st.Error),
			string(attrJSON),
			st.StartTime.UTC(),
			utcPtr(st.EndTime),
			st.DurationMs,
		)
		if err != nil {
			return fmt.Errorf("insert stage %s: %w", st.Name, err)
		}
	}

	return tx.Commit()
}

// ListRuns returns summaries of the most recent runs (newest first).
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, run_trigger, status, COALESCE(artifact_id, ''), start_time, COALESCE(duration_ms, 0)
		FROM runs
		ORDER BY start_time DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	out := []domain.RunSummary{}
	for rows.Next() {
		var s domain.RunSummary
		var id, trigger, status, artifactID string
		if err := rows.Scan(&id, &trigger, &status, &artifactID, &s.StartTime, &s.DurationMs); err != nil {
			return nil, err
		}
		s.ID = domain.RunID(id)
		s.Trigger = domain.RunTrigger(trigger)
		s.Status = domain.RunStatus(status)
		s.ArtifactID = domain.ArtifactID(artifactID)
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetRun returns a full run with all its stages.
func (r *Repository) GetRun(ctx context.Context, id domain.RunID) (*domain.Run, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, run_trigger, status, theme, COALESCE(prompt, ''), COALESCE(artifact_id, ''),
		       COALESCE(strategy, ''), COALESCE(error, ''), start_time, end_time, COALESCE(duration_ms, 0)
		FROM runs WHERE id = ?`, string(id))

	var run domain.Run
	var runID, trigger, status, theme, artifactID string
	var endTime sql.NullTime
	err := row.Scan(
		&runID, &trigger, &status, &theme, &run.Prompt, &artifactID,
		&run.Strategy, &run.Error, &run.StartTime, &endTime, &run.DurationMs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	run.ID = domain.RunID(runID)
	run.Trigger = domain.RunTrigger(trigger)
	run.Status = domain.RunStatus(status)
	run.Theme = domain.Theme(theme)
	run.ArtifactID = domain.ArtifactID(artifactID)
	if endTime.Valid {
		t := endTime.Time
		run.EndTime = &t
	}

	stages, err := r.loadStages(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Stages = stages
	return &run, nil
}

// PruneRuns keeps the newest keep runs.
func (r *Repository) PruneRuns(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const kept = `SELECT id FROM runs ORDER BY start_time DESC LIMIT ?`
	if _, err := tx.ExecContext(ctx, `DELETE FROM run_stages WHERE run_id NOT IN (`+kept+`)`, keep); err != nil {
		return 0, fmt.Errorf("prune stages: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id NOT IN (`+kept+`)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), tx.Commit()
}

func (r *Repository) loadStages(ctx context.Context, id domain.RunID) ([]domain.Stage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, status, COALESCE(error, ''), COALESCE(attributes, ''), start_time, end_time, COALESCE(duration_ms, 0)
		FROM run_stages WHERE run_id = ?
		ORDER BY seq ASC`, string(id))
	if err != nil {
		return nil, fmt.Errorf("load stages: %w", err)
	}
	defer rows.Close()

	var out []domain.Stage
	for rows.Next() {
		var st domain.Stage
		var name, status, attrJSON string
		var endTime sql.NullTime
		if err := rows.Scan(&name, &status, &st.Error, &attrJSON, &st.StartTime, &endTime, &st.DurationMs); err != nil {
			return nil, err
		}
		st.Name = domain.StageName(name)
		st.Status = domain.RunStatus(status)
		if endTime.Valid {
			t := endTime.Time
			st.EndTime = &t
		}
		if attrJSON != "" && attrJSON != "null" {
			_ = json.Unmarshal([]byte(attrJSON), &st.Attributes)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// validText replaces invalid UTF-8, which DuckDB refuses to bind as VARCHAR.
// Worker stderr is arbitrary bytes.
func validText(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

func utcPtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
