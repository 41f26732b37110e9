package batch

import (
	"time"
)

// HealthSummary is a point-in-time rollup of batch health, suitable for
// the web API and operator output.
type HealthSummary struct {
	Status    string        `json:"status"`
	Total     int           `json:"total"`
	Completed int           `json:"completed"`
	Running   int           `json:"running"`
	Stuck     int           `json:"stuck"`
	Failed    int           `json:"failed"`
	Pending   int           `json:"pending"`
	Issues    []string      `json:"issues,omitempty"`
	Progress  float64       `json:"progress"`
	Elapsed   time.Duration `json:"-"`

	// ElapsedMins is Elapsed in whole minutes, the unit the JSON
	// consumers expect.
	ElapsedMins int `json:"elapsed_mins"`
}

// HealthBuckets groups task IDs by their health classification. A task
// lands in exactly one bucket; stuck wins over running, failed over
// pending.
type HealthBuckets struct {
	Healthy []string
	Stuck   []string
	Failed  []string
	Pending []string
}

// CheckHealth inspects every task and returns actionable issues. Stuck
// tasks produce a stage-timeout issue; failed tasks with no remediation
// attached produce a needs-remediation issue. The slice is empty when
// all tasks are healthy.
func CheckHealth(b *Batch) []Issue {
	var issues []Issue
	for _, t := range b.Tasks {
		if t.IsStuck() {
			s, _ := t.CurrentStage()
			d, _ := t.StageDuration()
			issues = append(issues, Issue{
				Kind:    IssueStageTimeout,
				TaskID:  t.TaskID,
				Stage:   s,
				Elapsed: d,
			})
		}
		if t.NeedsRemediation() {
			issues = append(issues, Issue{
				Kind:          IssueNeedsRemediation,
				TaskID:        t.TaskID,
				Stage:         t.Status.Stage,
				FailureReason: t.Status.Reason,
			})
		}
	}
	return issues
}

// Summarize builds a HealthSummary from the batch's current state.
//
// Status precedence: a fully completed batch reports Completed even if
// stale issues linger; otherwise any stuck task or open issue makes the
// batch Critical, any failed task makes it Warning, and a batch with
// neither is Healthy.
func Summarize(b *Batch) HealthSummary {
	issues := CheckHealth(b)

	var completed, running, stuck, failed, pending int
	for _, t := range b.Tasks {
		switch {
		case t.IsCompleted():
			completed++
		case t.IsStuck():
			stuck++
		case t.IsRunning():
			running++
		case t.Status.Phase == PhaseFailed:
			failed++
		default:
			pending++
		}
	}

	status := "Healthy"
	switch {
	case completed == len(b.Tasks) && len(b.Tasks) > 0:
		status = "Completed"
	case stuck > 0 || len(issues) > 0:
		status = "Critical"
	case failed > 0:
		status = "Warning"
	}

	descriptions := make([]string, 0, len(issues))
	for _, i := range issues {
		descriptions = append(descriptions, i.Description())
	}

	elapsed := b.Elapsed()
	return HealthSummary{
		Status:      status,
		Total:       len(b.Tasks),
		Completed:   completed,
		Running:     running,
		Stuck:       stuck,
		Failed:      failed,
		Pending:     pending,
		Issues:      descriptions,
		Progress:    b.Progress(),
		Elapsed:     elapsed,
		ElapsedMins: int(elapsed.Minutes()),
	}
}

// TasksByHealth classifies every task into exactly one bucket.
func TasksByHealth(b *Batch) HealthBuckets {
	var buckets HealthBuckets
	for _, t := range b.Tasks {
		switch {
		case t.IsStuck():
			buckets.Stuck = append(buckets.Stuck, t.TaskID)
		case t.Status.Phase == PhaseFailed:
			buckets.Failed = append(buckets.Failed, t.TaskID)
		case t.IsCompleted() || t.IsRunning():
			buckets.Healthy = append(buckets.Healthy, t.TaskID)
		default:
			buckets.Pending = append(buckets.Pending, t.TaskID)
		}
	}
	return buckets
}
