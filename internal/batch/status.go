// Package batch tracks per-task pipeline progress for one orchestrated
// batch and derives health state from it.
package batch

import (
	"fmt"
	"time"

	"github.com/5dlabs/healer/internal/stage"
)

// Phase is the coarse task lifecycle phase.
type Phase int

const (
	// PhasePending: the task has not started.
	PhasePending Phase = iota
	// PhaseInProgress: an agent is working the task; Stage and
	// StageStarted are set.
	PhaseInProgress
	// PhaseCompleted: the task finished successfully.
	PhaseCompleted
	// PhaseFailed: the task failed; Stage, Reason and (optionally)
	// Remediation are set.
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseInProgress:
		return "in-progress"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is a task's current lifecycle state. Only the fields relevant
// to the Phase are meaningful.
type Status struct {
	Phase        Phase
	Stage        stage.Stage
	StageStarted time.Time
	Reason       string
	Remediation  *RemediationRecord
}

// RemediationRecord describes an active remediation attempt for a
// failed task. Records are created only by the remediation engine.
type RemediationRecord struct {
	RunName   string
	Diagnosis string
	StartedAt time.Time
}

// IssueKind discriminates Issue variants.
type IssueKind int

const (
	// IssueStageTimeout: the task has dwelled in one stage past the
	// stage timeout.
	IssueStageTimeout IssueKind = iota
	// IssueNeedsRemediation: the task failed and no remediation has
	// been attached yet.
	IssueNeedsRemediation
	// IssueOptimization: an agent is behaving suboptimally.
	IssueOptimization
)

// Issue is one actionable finding from a health check. Issues are
// derived data: recomputed on every check, never persisted on their own.
type Issue struct {
	Kind   IssueKind
	TaskID string
	Stage  stage.Stage

	// StageTimeout
	Elapsed time.Duration

	// NeedsRemediation
	FailureReason string

	// Optimization
	Agent           string
	Observation     string
	SuggestedChange string
}

// Description renders the issue for logs and operator output.
func (i Issue) Description() string {
	switch i.Kind {
	case IssueStageTimeout:
		return fmt.Sprintf("Task %s stuck in %s for %dm (>%dm threshold)",
			i.TaskID, i.Stage, int(i.Elapsed.Minutes()), int(stage.Timeout.Minutes()))
	case IssueNeedsRemediation:
		return fmt.Sprintf("Task %s failed in %s: %s", i.TaskID, i.Stage, i.FailureReason)
	case IssueOptimization:
		return fmt.Sprintf("Task %s (%s) optimization: %s", i.TaskID, i.Agent, i.Observation)
	default:
		return fmt.Sprintf("Task %s: unknown issue", i.TaskID)
	}
}
