package batch

import (
	"strconv"
	"strings"
	"time"

	"github.com/5dlabs/healer/internal/cluster"
	"github.com/5dlabs/healer/internal/stage"
)

// BatchPhase is the aggregate batch state.
type BatchPhase int

const (
	// BatchInProgress: work remains.
	BatchInProgress BatchPhase = iota
	// BatchCompleted: every task completed.
	BatchCompleted
	// BatchFailed: every task is terminal and at least one failed.
	BatchFailed
)

// BatchStatus is the aggregate status of a batch.
type BatchStatus struct {
	Phase       BatchPhase
	Completed   int
	Total       int
	FailedTasks []string
}

// IsRunning reports whether the batch still has work in flight.
func (s BatchStatus) IsRunning() bool {
	return s.Phase == BatchInProgress
}

// Batch is a set of tasks executed together under one orchestrated run.
type Batch struct {
	ProjectName string
	Repository  string
	Namespace   string
	Tasks       []*TaskState
	StartedAt   time.Time
	Status      BatchStatus
}

// NewBatch creates an empty batch.
func NewBatch(projectName, repository, namespace string) *Batch {
	return &Batch{
		ProjectName: projectName,
		Repository:  repository,
		Namespace:   namespace,
		StartedAt:   time.Now(),
	}
}

// Load reconstructs a batch from persisted per-task state records.
// Unparseable fields degrade to safe defaults; loading never errors on
// record contents.
func Load(records []cluster.StateRecord, namespace string) *Batch {
	b := NewBatch("play", "unknown", namespace)

	for _, rec := range records {
		if !strings.HasPrefix(rec.Name, cluster.StateRecordPrefix) {
			continue
		}
		taskID := strings.TrimPrefix(rec.Name, cluster.StateRecordPrefix)

		task := New(taskID)
		st, ok := stage.FromPersistedValue(rec.Data["stage"])
		if !ok {
			st = stage.Pending
		}

		switch strings.ToLower(rec.Data["status"]) {
		case "completed", "done":
			task.Complete()
		case "failed", "error":
			reason := rec.Data["error"]
			if reason == "" {
				reason = "Unknown error"
			}
			task.Fail(st, reason)
		default:
			started := cluster.ParseTimestamp(rec.Data["last-updated"])
			if started.IsZero() {
				started = time.Now()
			}
			task.Status = Status{Phase: PhaseInProgress, Stage: st, StageStarted: started}
		}

		if pr, err := strconv.Atoi(rec.Data["pr-number"]); err == nil {
			task.PRNumber = pr
		}
		task.WorkflowName = rec.Data["workflow-name"]
		task.ActiveRun = rec.Data["run-name"]

		if b.Repository == "unknown" && rec.Data["repository"] != "" {
			b.Repository = rec.Data["repository"]
		}

		b.Tasks = append(b.Tasks, task)
	}

	b.UpdateStatus()
	return b
}

// AttachRemediations reattaches remediation records from fix runs that
// are live in the cluster. Load rebuilds the batch from state records
// alone, so without this step a reloaded batch forgets in-flight
// remediations and would re-spawn a fix for the same failure. active
// maps task ID to run name.
func (b *Batch) AttachRemediations(active map[string]string) {
	for _, t := range b.Tasks {
		run, ok := active[t.TaskID]
		if !ok || !t.NeedsRemediation() {
			continue
		}
		if err := t.SetRemediation(RemediationRecord{
			RunName:   run,
			Diagnosis: "fix run in progress",
			StartedAt: time.Now(),
		}); err == nil {
			t.ActiveRun = run
		}
	}
}

// UpdateStatus recomputes the aggregate status from task states.
func (b *Batch) UpdateStatus() {
	completed := 0
	var failed []string
	for _, t := range b.Tasks {
		if t.IsCompleted() {
			completed++
		}
		if t.Status.Phase == PhaseFailed {
			failed = append(failed, t.TaskID)
		}
	}
	total := len(b.Tasks)

	switch {
	case len(failed) > 0 && completed+len(failed) == total:
		b.Status = BatchStatus{Phase: BatchFailed, Completed: completed, Total: total, FailedTasks: failed}
	case completed == total && total > 0:
		b.Status = BatchStatus{Phase: BatchCompleted, Completed: completed, Total: total}
	default:
		b.Status = BatchStatus{Phase: BatchInProgress, Completed: completed, Total: total}
	}
}

// Progress returns completion as a percentage.
func (b *Batch) Progress() float64 {
	if len(b.Tasks) == 0 {
		return 0
	}
	completed := 0
	for _, t := range b.Tasks {
		if t.IsCompleted() {
			completed++
		}
	}
	return float64(completed) / float64(len(b.Tasks)) * 100
}

// StuckTasks returns tasks over the stage dwell timeout.
func (b *Batch) StuckTasks() []*TaskState {
	var out []*TaskState
	for _, t := range b.Tasks {
		if t.IsStuck() {
			out = append(out, t)
		}
	}
	return out
}

// TasksNeedingRemediation returns failed tasks with no remediation yet.
func (b *Batch) TasksNeedingRemediation() []*TaskState {
	var out []*TaskState
	for _, t := range b.Tasks {
		if t.NeedsRemediation() {
			out = append(out, t)
		}
	}
	return out
}

// RunningTasks returns tasks currently in progress.
func (b *Batch) RunningTasks() []*TaskState {
	var out []*TaskState
	for _, t := range b.Tasks {
		if t.IsRunning() {
			out = append(out, t)
		}
	}
	return out
}

// Task returns the task with the given ID, or nil.
func (b *Batch) Task(taskID string) *TaskState {
	for _, t := range b.Tasks {
		if t.TaskID == taskID {
			return t
		}
	}
	return nil
}

// Elapsed returns time since the batch started.
func (b *Batch) Elapsed() time.Duration {
	return time.Since(b.StartedAt)
}
