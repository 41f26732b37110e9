package alerts

import (
	"fmt"
	"strconv"

	"github.com/5dlabs/healer/internal/cluster"
	"github.com/5dlabs/healer/internal/github"
)

// crashLoopRestarts is the restart count past which a failed pod is
// treated as crash-looping.
const crashLoopRestarts = 3

// PodFailure fires when a platform pod enters a Failed or Error state.
// Crash-looping pods escalate to Critical.
type PodFailure struct{}

func (PodFailure) ID() string { return "pod-failure" }

func (PodFailure) Evaluate(event cluster.Event, _ *github.PRState, _ *Context) *Alert {
	var pod *cluster.Pod
	switch {
	case event.Type == cluster.PodFailed:
		pod = event.Pod
	case event.Type == cluster.PodModified && event.Pod != nil &&
		(event.Pod.Phase == "Failed" || event.Pod.Phase == "Error"):
		pod = event.Pod
	}
	if pod == nil || ExcludedPod(pod.Name) {
		return nil
	}

	restarts := 0
	for _, c := range pod.Containers {
		restarts += c.RestartCount
	}

	severity := Warning
	message := fmt.Sprintf("Pod %s failed with phase: %s", pod.Name, pod.Phase)
	if restarts > crashLoopRestarts {
		severity = Critical
		message = fmt.Sprintf("Pod %s in CrashLoopBackOff (%d restarts)", pod.Name, restarts)
	}

	return New("pod-failure", message).
		WithSeverity(severity).
		WithContext("pod_name", pod.Name).
		WithContext("phase", pod.Phase).
		WithContext("restart_count", strconv.Itoa(restarts)).
		WithContext("agent", pod.Agent()).
		WithContext("task_id", pod.TaskID())
}
