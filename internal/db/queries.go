package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/5dlabs/healer/internal/alerts"
	"github.com/5dlabs/healer/internal/batch"
)

// AlertRow is a persisted alert.
type AlertRow struct {
	ID         int64
	Detector   string
	Severity   string
	Message    string
	Context    map[string]string
	DetectedAt time.Time
}

// RemediationRow is a persisted remediation attempt.
type RemediationRow struct {
	ID        int64
	TaskID    string
	RunName   string
	Category  string
	Summary   string
	StartedAt time.Time
}

// SnapshotRow is a persisted batch health snapshot.
type SnapshotRow struct {
	ID        int64
	Status    string
	Total     int
	Completed int
	Running   int
	Stuck     int
	Failed    int
	Pending   int
	Progress  float64
	TakenAt   time.Time
}

// RecordAlert inserts one alert.
func (d *DB) RecordAlert(ctx context.Context, a *alerts.Alert) error {
	var alertCtx []byte
	if len(a.Context) > 0 {
		var err error
		alertCtx, err = json.Marshal(a.Context)
		if err != nil {
			return fmt.Errorf("encode alert context: %w", err)
		}
	}
	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO alerts (detector, severity, message, context, detected_at) VALUES ($1, $2, $3, $4, $5)`,
		a.Detector, a.Severity.String(), a.Message, alertCtx, a.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("record alert: %w", err)
	}
	return nil
}

// RecordRemediation inserts one remediation attempt.
func (d *DB) RecordRemediation(ctx context.Context, taskID, runName, category, summary string) error {
	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO remediations (task_id, run_name, category, summary) VALUES ($1, $2, $3, $4)`,
		taskID, runName, category, summary,
	)
	if err != nil {
		return fmt.Errorf("record remediation: %w", err)
	}
	return nil
}

// RecordHealthSnapshot inserts one batch health snapshot.
func (d *DB) RecordHealthSnapshot(ctx context.Context, s batch.HealthSummary) error {
	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO health_snapshots (status, total, completed, running, stuck, failed, pending, progress)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.Status, s.Total, s.Completed, s.Running, s.Stuck, s.Failed, s.Pending, s.Progress,
	)
	if err != nil {
		return fmt.Errorf("record health snapshot: %w", err)
	}
	return nil
}

// RecentAlerts returns the newest alerts, newest first.
func (d *DB) RecentAlerts(ctx context.Context, limit int) ([]AlertRow, error) {
	rows, err := d.conn.QueryContext(ctx,
		`SELECT id, detector, severity, message, context, detected_at
		 FROM alerts ORDER BY detected_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent alerts: %w", err)
	}
	defer rows.Close()

	var out []AlertRow
	for rows.Next() {
		var r AlertRow
		var alertCtx []byte
		if err := rows.Scan(&r.ID, &r.Detector, &r.Severity, &r.Message, &alertCtx, &r.DetectedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		if len(alertCtx) > 0 {
			if err := json.Unmarshal(alertCtx, &r.Context); err != nil {
				return nil, fmt.Errorf("decode alert context: %w", err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecentRemediations returns the newest remediation attempts, newest
// first. taskID filters when non-empty.
func (d *DB) RecentRemediations(ctx context.Context, taskID string, limit int) ([]RemediationRow, error) {
	query := `SELECT id, task_id, run_name, category, summary, started_at
	          FROM remediations ORDER BY started_at DESC, id DESC LIMIT $1`
	args := []any{limit}
	if taskID != "" {
		query = `SELECT id, task_id, run_name, category, summary, started_at
		         FROM remediations WHERE task_id = $1 ORDER BY started_at DESC, id DESC LIMIT $2`
		args = []any{taskID, limit}
	}

	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("recent remediations: %w", err)
	}
	defer rows.Close()

	var out []RemediationRow
	for rows.Next() {
		var r RemediationRow
		if err := rows.Scan(&r.ID, &r.TaskID, &r.RunName, &r.Category, &r.Summary, &r.StartedAt); err != nil {
			return nil, fmt.Errorf("scan remediation: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestSnapshot returns the most recent health snapshot, or nil when
// none has been recorded yet.
func (d *DB) LatestSnapshot(ctx context.Context) (*SnapshotRow, error) {
	row := d.conn.QueryRowContext(ctx,
		`SELECT id, status, total, completed, running, stuck, failed, pending, progress, taken_at
		 FROM health_snapshots ORDER BY taken_at DESC, id DESC LIMIT 1`)

	var r SnapshotRow
	err := row.Scan(&r.ID, &r.Status, &r.Total, &r.Completed, &r.Running, &r.Stuck, &r.Failed, &r.Pending, &r.Progress, &r.TakenAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	return &r, nil
}
