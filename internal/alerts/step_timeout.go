package alerts

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/5dlabs/healer/internal/cluster"
	"github.com/5dlabs/healer/internal/github"
)

// StepTimeout fires when an agent pod has been running longer than the
// threshold for its role. Infrastructure pods are excluded; unknown
// agents fall back to the default threshold.
type StepTimeout struct{}

func (StepTimeout) ID() string { return "step-timeout" }

func (StepTimeout) Evaluate(event cluster.Event, _ *github.PRState, ctx *Context) *Alert {
	pod := eventPod(event)
	if pod == nil || pod.Phase != "Running" || ExcludedPod(pod.Name) {
		return nil
	}
	if pod.StartedAt.IsZero() {
		return nil
	}

	agent := pod.Agent()
	threshold := stepTimeoutFor(agent, ctx.Config.StepTimeouts)
	elapsed := time.Since(pod.StartedAt)
	if elapsed <= threshold {
		return nil
	}

	return New("step-timeout",
		fmt.Sprintf("Step %s has been running for %d minutes (threshold: %d min)",
			pod.Name, int(elapsed.Minutes()), int(threshold.Minutes()))).
		WithContext("pod_name", pod.Name).
		WithContext("agent", agent).
		WithContext("task_id", pod.TaskID()).
		WithContext("elapsed_minutes", strconv.Itoa(int(elapsed.Minutes()))).
		WithContext("threshold_minutes", strconv.Itoa(int(threshold.Minutes())))
}

// stepTimeoutFor maps an agent name to its role's runtime threshold.
func stepTimeoutFor(agent string, timeouts StepTimeouts) time.Duration {
	mins := timeouts.DefaultMins
	switch {
	case strings.Contains(agent, "Rex") || strings.Contains(agent, "Blaze"):
		mins = timeouts.ImplementationMins
	case strings.Contains(agent, "Cleo"):
		mins = timeouts.QualityMins
	case strings.Contains(agent, "Cipher"):
		mins = timeouts.SecurityMins
	case strings.Contains(agent, "Tess"):
		mins = timeouts.TestingMins
	case strings.Contains(agent, "Atlas"):
		mins = timeouts.IntegrationMins
	}
	return time.Duration(mins) * time.Minute
}
