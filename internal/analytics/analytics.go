// Package analytics computes aggregate statistics from the healer
// event log: how often each detector fires, what the remediation
// engine diagnoses, and how quickly failures are picked up.
package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"time"
)

// DB is the interface for database queries used by analytics.
type DB interface {
	Conn() *sql.DB
}

// AlertFrequency holds fire counts for one detector at one severity.
type AlertFrequency struct {
	Detector string `json:"detector"`
	Severity string `json:"severity"`
	Count    int    `json:"count"`
}

// QueryAlertFrequency returns per-detector, per-severity alert counts,
// sorted by count descending then detector name.
func QueryAlertFrequency(ctx context.Context, database DB, since time.Time) ([]AlertFrequency, error) {
	query := `
		SELECT detector, severity, COUNT(*)
		FROM alerts`

	args := []interface{}{}
	if !since.IsZero() {
		query += ` WHERE detected_at >= $1`
		args = append(args, since)
	}
	query += ` GROUP BY detector, severity`

	rows, err := database.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alert frequency: %w", err)
	}
	defer rows.Close()

	var results []AlertFrequency
	for rows.Next() {
		var f AlertFrequency
		if err := rows.Scan(&f.Detector, &f.Severity, &f.Count); err != nil {
			return nil, fmt.Errorf("scan alert frequency: %w", err)
		}
		results = append(results, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Count != results[j].Count {
			return results[i].Count > results[j].Count
		}
		return results[i].Detector < results[j].Detector
	})
	return results, nil
}

// RemediationBreakdown holds spawn counts per diagnosis category.
type RemediationBreakdown struct {
	Category string  `json:"category"`
	Count    int     `json:"count"`
	Share    float64 `json:"share_pct"`
}

// QueryRemediationBreakdown returns how the remediation engine
// classified failures, as counts and percentages of all diagnoses.
func QueryRemediationBreakdown(ctx context.Context, database DB, since time.Time) ([]RemediationBreakdown, error) {
	query := `
		SELECT category, COUNT(*)
		FROM remediations`

	args := []interface{}{}
	if !since.IsZero() {
		query += ` WHERE started_at >= $1`
		args = append(args, since)
	}
	query += ` GROUP BY category`

	rows, err := database.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query remediation breakdown: %w", err)
	}
	defer rows.Close()

	var results []RemediationBreakdown
	total := 0
	for rows.Next() {
		var b RemediationBreakdown
		if err := rows.Scan(&b.Category, &b.Count); err != nil {
			return nil, fmt.Errorf("scan remediation breakdown: %w", err)
		}
		total += b.Count
		results = append(results, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range results {
		results[i].Share = pct(results[i].Count, total)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Count != results[j].Count {
			return results[i].Count > results[j].Count
		}
		return results[i].Category < results[j].Category
	})
	return results, nil
}

// ResponseLatency holds the distribution of alert-to-remediation
// delays for one detector.
type ResponseLatency struct {
	Detector string  `json:"detector"`
	Count    int     `json:"count"`
	Avg      float64 `json:"avg_minutes"`
	P50      float64 `json:"p50_minutes"`
	P95      float64 `json:"p95_minutes"`
}

// QueryResponseLatency pairs each remediation with the most recent
// prior alert for the same task and reports how long the failure sat
// before a fix run was spawned, bucketed by the triggering detector.
func QueryResponseLatency(ctx context.Context, database DB, since time.Time) ([]ResponseLatency, error) {
	query := `
		SELECT r.started_at,
			(SELECT a.detector FROM alerts a
			 WHERE a.context->>'task_id' = r.task_id
			 AND a.detected_at <= r.started_at
			 ORDER BY a.detected_at DESC LIMIT 1) AS detector,
			(SELECT MAX(a.detected_at) FROM alerts a
			 WHERE a.context->>'task_id' = r.task_id
			 AND a.detected_at <= r.started_at) AS alerted_at
		FROM remediations r`

	args := []interface{}{}
	if !since.IsZero() {
		query += ` WHERE r.started_at >= $1`
		args = append(args, since)
	}

	rows, err := database.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query response latency: %w", err)
	}
	defer rows.Close()

	latencies := make(map[string][]float64)
	for rows.Next() {
		var startedAt time.Time
		var detector sql.NullString
		var alertedAt sql.NullTime
		if err := rows.Scan(&startedAt, &detector, &alertedAt); err != nil {
			return nil, fmt.Errorf("scan response latency: %w", err)
		}
		if !detector.Valid || !alertedAt.Valid {
			continue
		}
		minutes := startedAt.Sub(alertedAt.Time).Minutes()
		if minutes >= 0 {
			latencies[detector.String] = append(latencies[detector.String], minutes)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return SummarizeLatencies(latencies), nil
}

// SummarizeLatencies reduces per-detector latency samples (minutes) to
// avg/p50/p95, sorted by detector name.
func SummarizeLatencies(samples map[string][]float64) []ResponseLatency {
	var results []ResponseLatency
	for detector, values := range samples {
		sort.Float64s(values)
		results = append(results, ResponseLatency{
			Detector: detector,
			Count:    len(values),
			Avg:      avg(values),
			P50:      percentile(values, 50),
			P95:      percentile(values, 95),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Detector < results[j].Detector
	})
	return results
}

// HealthTrend holds one sampled point of batch progress over time.
type HealthTrend struct {
	TakenAt  time.Time `json:"taken_at"`
	Status   string    `json:"status"`
	Progress float64   `json:"progress"`
	Stuck    int       `json:"stuck"`
	Failed   int       `json:"failed"`
}

// QueryHealthTrend returns the most recent health snapshots in
// chronological order, capped at limit.
func QueryHealthTrend(ctx context.Context, database DB, limit int) ([]HealthTrend, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := database.Conn().QueryContext(ctx, `
		SELECT taken_at, status, progress, stuck, failed
		FROM health_snapshots
		ORDER BY taken_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query health trend: %w", err)
	}
	defer rows.Close()

	var results []HealthTrend
	for rows.Next() {
		var h HealthTrend
		if err := rows.Scan(&h.TakenAt, &h.Status, &h.Progress, &h.Stuck, &h.Failed); err != nil {
			return nil, fmt.Errorf("scan health trend: %w", err)
		}
		results = append(results, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
		results[i], results[j] = results[j], results[i]
	}
	return results, nil
}

// --- helpers ---

func avg(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return math.Round(sum/float64(len(values))*10) / 10
}

func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := float64(p) / 100.0 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper || upper >= len(sorted) {
		return math.Round(sorted[lower]*10) / 10
	}
	weight := rank - float64(lower)
	return math.Round((sorted[lower]*(1-weight)+sorted[upper]*weight)*10) / 10
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*1000) / 10
}
