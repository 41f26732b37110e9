package batch

import (
	"errors"
	"fmt"
	"time"

	"github.com/5dlabs/healer/internal/stage"
)

// ErrRemediationActive is returned by SetRemediation when the task
// already carries a remediation record. A remediation must complete or
// be abandoned before another may start.
var ErrRemediationActive = errors.New("task already has an active remediation")

// TaskState is one task's progress record within a batch. It is mutated
// in place by the single control-loop writer and destroyed only by
// whole-batch cleanup.
type TaskState struct {
	TaskID       string
	Status       Status
	PRNumber     int // 0 = no PR yet
	ActiveRun    string
	Issues       []Issue
	WorkflowName string
}

// New creates a pending task.
func New(taskID string) *TaskState {
	return &TaskState{TaskID: taskID, Status: Status{Phase: PhasePending}}
}

// InProgress creates a task already working the given stage.
func InProgress(taskID string, s stage.Stage) *TaskState {
	return &TaskState{
		TaskID: taskID,
		Status: Status{Phase: PhaseInProgress, Stage: s, StageStarted: time.Now()},
	}
}

// CurrentStage returns the stage for in-progress and failed tasks.
func (t *TaskState) CurrentStage() (stage.Stage, bool) {
	switch t.Status.Phase {
	case PhaseInProgress, PhaseFailed:
		return t.Status.Stage, true
	default:
		return 0, false
	}
}

// StageDuration returns how long the task has dwelled in its current
// stage. ok is false unless the task is in progress.
func (t *TaskState) StageDuration() (time.Duration, bool) {
	if t.Status.Phase != PhaseInProgress {
		return 0, false
	}
	return time.Since(t.Status.StageStarted), true
}

// IsStuck reports whether an in-progress task has exceeded the stage
// dwell timeout. Tasks in any other phase are never stuck.
func (t *TaskState) IsStuck() bool {
	d, ok := t.StageDuration()
	return ok && d > stage.Timeout
}

// NeedsRemediation reports whether the task failed with no remediation
// attached yet.
func (t *TaskState) NeedsRemediation() bool {
	return t.Status.Phase == PhaseFailed && t.Status.Remediation == nil
}

// HasActiveRemediation reports whether a remediation record is attached.
func (t *TaskState) HasActiveRemediation() bool {
	return t.Status.Phase == PhaseFailed && t.Status.Remediation != nil
}

// IsCompleted reports whether the task finished successfully.
func (t *TaskState) IsCompleted() bool {
	return t.Status.Phase == PhaseCompleted
}

// IsRunning reports whether the task is in progress.
func (t *TaskState) IsRunning() bool {
	return t.Status.Phase == PhaseInProgress
}

// IsHealthy reports whether the task needs no attention: pending and
// completed tasks are healthy, running tasks are healthy until stuck,
// failed tasks are healthy only once remediation is underway.
func (t *TaskState) IsHealthy() bool {
	switch t.Status.Phase {
	case PhasePending, PhaseCompleted:
		return true
	case PhaseInProgress:
		return !t.IsStuck()
	case PhaseFailed:
		return t.Status.Remediation != nil
	default:
		return false
	}
}

// TransitionTo moves the task into a new stage, restarting the dwell clock.
func (t *TaskState) TransitionTo(s stage.Stage) {
	t.Status = Status{Phase: PhaseInProgress, Stage: s, StageStarted: time.Now()}
}

// Fail marks the task failed at the given stage. Any previous
// remediation record is discarded with the old status.
func (t *TaskState) Fail(s stage.Stage, reason string) {
	t.Status = Status{Phase: PhaseFailed, Stage: s, Reason: reason}
}

// Complete marks the task finished.
func (t *TaskState) Complete() {
	t.Status = Status{Phase: PhaseCompleted}
}

// SetRemediation attaches a remediation record to a failed task. It
// rejects the record when the task is not failed or already has one,
// enforcing at most one active remediation per task.
func (t *TaskState) SetRemediation(r RemediationRecord) error {
	if t.Status.Phase != PhaseFailed {
		return fmt.Errorf("task %s is %s, not failed", t.TaskID, t.Status.Phase)
	}
	if t.Status.Remediation != nil {
		return fmt.Errorf("task %s: %w", t.TaskID, ErrRemediationActive)
	}
	t.Status.Remediation = &r
	return nil
}

// ClearRemediation abandons the attached remediation record, if any.
// The next health check will re-report NeedsRemediation.
func (t *TaskState) ClearRemediation() {
	if t.Status.Phase == PhaseFailed {
		t.Status.Remediation = nil
	}
}

func (t *TaskState) String() string {
	stageStr := "-"
	if s, ok := t.CurrentStage(); ok {
		stageStr = s.String()
	}
	durStr := "-"
	if d, ok := t.StageDuration(); ok {
		durStr = fmt.Sprintf("%dm", int(d.Minutes()))
	}
	prStr := "-"
	if t.PRNumber > 0 {
		prStr = fmt.Sprintf("#%d", t.PRNumber)
	}
	return fmt.Sprintf("Task %s | %s | %s | PR: %s", t.TaskID, stageStr, durStr, prStr)
}
