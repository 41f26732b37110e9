package alerts

import (
	"fmt"
	"strconv"
	"time"

	"github.com/5dlabs/healer/internal/cluster"
	"github.com/5dlabs/healer/internal/github"
)

// StuckRun fires when an AgentRun has sat in a non-terminal phase
// longer than the configured threshold, measured from when the tracker
// first observed it. Terminal runs are dropped from tracking so the
// alert cannot fire for them again.
type StuckRun struct{}

func (StuckRun) ID() string { return "stuck-run" }

func (StuckRun) Evaluate(event cluster.Event, _ *github.PRState, ctx *Context) *Alert {
	if event.Type != cluster.AgentRunChanged || event.Run == nil {
		return nil
	}
	run := event.Run

	if ctx.Runs == nil {
		return nil
	}

	if run.TerminalPhase() {
		ctx.Runs.Remove(run.Name)
		return nil
	}

	ctx.Runs.RecordFirstSeen(run.Name)

	threshold := time.Duration(ctx.Config.StuckRunMins) * time.Minute
	if !ctx.Runs.ExceedsThreshold(run.Name, threshold) {
		return nil
	}

	return New("stuck-run",
		fmt.Sprintf("AgentRun %s has been in '%s' state for over %d minutes without completing",
			run.Name, run.Phase, ctx.Config.StuckRunMins)).
		WithContext("run_name", run.Name).
		WithContext("run_phase", run.Phase).
		WithContext("agent", run.Agent).
		WithContext("task_id", run.TaskID).
		WithContext("threshold_minutes", strconv.Itoa(ctx.Config.StuckRunMins))
}
