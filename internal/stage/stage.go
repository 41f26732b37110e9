// Package stage defines the canonical pipeline stages a task moves
// through and the legal transitions between them.
package stage

import (
	"strings"
	"time"
)

// Timeout is the universal dwell limit for every non-terminal stage.
// A task sitting in one stage longer than this is considered stuck.
const Timeout = 30 * time.Minute

// Stage is one step of the agent pipeline.
type Stage int

const (
	// Pending means the workflow has started but no agent is running yet.
	Pending Stage = iota
	// ImplementationInProgress: the implementation agent is writing code.
	ImplementationInProgress
	// QualityInProgress: the quality agent is reviewing code.
	QualityInProgress
	// SecurityInProgress: the security agent is scanning.
	SecurityInProgress
	// TestingInProgress: the testing agent is running tests.
	TestingInProgress
	// WaitingIntegration: the integration agent is merging the PR.
	WaitingIntegration
	// WaitingMerge: waiting for the PR to land on main.
	WaitingMerge
	// Completed: the workflow finished successfully.
	Completed
	// Failed: the workflow failed.
	Failed
)

// Agent returns the agent responsible for this stage, or "" for stages
// that have no agent (pending, merge wait, terminals).
func (s Stage) Agent() string {
	switch s {
	case ImplementationInProgress:
		return "Rex"
	case QualityInProgress:
		return "Cleo"
	case SecurityInProgress:
		return "Cipher"
	case TestingInProgress:
		return "Tess"
	case WaitingIntegration:
		return "Atlas"
	default:
		return ""
	}
}

// HasAgent reports whether an agent drives this stage.
func (s Stage) HasAgent() bool {
	return s.Agent() != ""
}

// IsTerminal reports whether this stage ends the workflow.
func (s Stage) IsTerminal() bool {
	return s == Completed || s == Failed
}

// Next returns the single legal successor stage. ok is false for
// terminal stages, which have no successor.
func (s Stage) Next() (next Stage, ok bool) {
	switch s {
	case Pending:
		return ImplementationInProgress, true
	case ImplementationInProgress:
		return QualityInProgress, true
	case QualityInProgress:
		return SecurityInProgress, true
	case SecurityInProgress:
		return TestingInProgress, true
	case TestingInProgress:
		return WaitingIntegration, true
	case WaitingIntegration:
		return WaitingMerge, true
	case WaitingMerge:
		return Completed, true
	default:
		return s, false
	}
}

// String returns the display name for the stage.
func (s Stage) String() string {
	switch s {
	case Pending:
		return "Pending"
	case ImplementationInProgress:
		return "Implementation"
	case QualityInProgress:
		return "Quality"
	case SecurityInProgress:
		return "Security"
	case TestingInProgress:
		return "Testing"
	case WaitingIntegration:
		return "Integration"
	case WaitingMerge:
		return "Waiting Merge"
	case Completed:
		return "Completed"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Label returns the persisted form written to task state records.
func (s Stage) Label() string {
	switch s {
	case Pending:
		return "pending"
	case ImplementationInProgress:
		return "implementation-in-progress"
	case QualityInProgress:
		return "quality-in-progress"
	case SecurityInProgress:
		return "security-in-progress"
	case TestingInProgress:
		return "testing-in-progress"
	case WaitingIntegration:
		return "waiting-integration"
	case WaitingMerge:
		return "waiting-merge"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// labels maps every accepted persisted value (including synonyms) to a
// stage. Lookups are case-insensitive; see FromPersistedValue.
var labels = map[string]Stage{
	"pending":                    Pending,
	"implementation-in-progress": ImplementationInProgress,
	"implementation":             ImplementationInProgress,
	"quality-in-progress":        QualityInProgress,
	"quality":                    QualityInProgress,
	"security-in-progress":       SecurityInProgress,
	"security":                   SecurityInProgress,
	"testing-in-progress":        TestingInProgress,
	"testing":                    TestingInProgress,
	"waiting-integration":        WaitingIntegration,
	"integration":                WaitingIntegration,
	"waiting-merge":              WaitingMerge,
	"merge":                      WaitingMerge,
	"completed":                  Completed,
	"complete":                   Completed,
	"done":                       Completed,
	"failed":                     Failed,
	"error":                      Failed,
}

// FromPersistedValue parses a stage label read from a persisted task
// state record. Matching is case-insensitive and tolerates the short
// synonyms written by older controllers. Unrecognized values return
// ok=false; parsing never errors.
func FromPersistedValue(value string) (Stage, bool) {
	s, ok := labels[strings.ToLower(strings.TrimSpace(value))]
	return s, ok
}
