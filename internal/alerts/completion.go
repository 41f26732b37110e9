package alerts

import (
	"fmt"

	"github.com/5dlabs/healer/internal/cluster"
	"github.com/5dlabs/healer/internal/github"
)

// Completion fires when an agent pod succeeds without the agent having
// posted its PR comment. A silent success usually means the agent never
// reported its result, which stalls the next stage's predecessor check.
type Completion struct{}

func (Completion) ID() string { return "completion" }

func (Completion) Evaluate(event cluster.Event, pr *github.PRState, _ *Context) *Alert {
	if event.Type != cluster.PodSucceeded || event.Pod == nil {
		return nil
	}
	pod := event.Pod
	if ExcludedPod(pod.Name) {
		return nil
	}

	agent := pod.Agent()
	if agent == "" {
		return nil
	}

	if pr.HasCommentFrom(agent) {
		return nil
	}

	return New("completion",
		fmt.Sprintf("%s pod succeeded but no PR comment from %s was found", pod.Name, agent)).
		WithContext("pod_name", pod.Name).
		WithContext("agent", agent).
		WithContext("task_id", pod.TaskID())
}
