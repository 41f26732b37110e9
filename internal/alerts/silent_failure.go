package alerts

import (
	"fmt"
	"strconv"

	"github.com/5dlabs/healer/internal/cluster"
	"github.com/5dlabs/healer/internal/github"
)

// SilentFailure fires when a container has terminated with a non-zero
// exit code while its pod still reports phase Running. Sidecars keep
// the pod phase alive and mask the primary container's death.
type SilentFailure struct{}

func (SilentFailure) ID() string { return "silent-failure" }

func (SilentFailure) Evaluate(event cluster.Event, _ *github.PRState, _ *Context) *Alert {
	pod := eventPod(event)
	if pod == nil || pod.Phase != "Running" {
		return nil
	}

	for _, c := range pod.Containers {
		if c.State != cluster.ContainerTerminated || c.ExitCode == 0 {
			continue
		}
		return New("silent-failure",
			fmt.Sprintf("Container '%s' terminated with exit code %d but pod still Running", c.Name, c.ExitCode)).
			WithSeverity(Critical).
			WithContext("pod_name", pod.Name).
			WithContext("container_name", c.Name).
			WithContext("exit_code", strconv.Itoa(c.ExitCode)).
			WithContext("reason", c.Reason).
			WithContext("pod_phase", pod.Phase)
	}
	return nil
}
