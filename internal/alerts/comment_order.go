package alerts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/5dlabs/healer/internal/cluster"
	"github.com/5dlabs/healer/internal/github"
)

// agentPipelineOrder is the fixed comment order agents post in.
// Rex and Blaze are interchangeable implementation agents, so both
// occupy the head of the pipeline.
var agentPipelineOrder = []string{"Rex", "Blaze", "Cleo", "Cipher", "Tess", "Atlas"}

// CommentOrder fires when an agent's pod starts running before the
// preceding agent in the pipeline has posted its PR comment.
type CommentOrder struct{}

func (CommentOrder) ID() string { return "comment-order" }

func (CommentOrder) Evaluate(event cluster.Event, pr *github.PRState, _ *Context) *Alert {
	if event.Type != cluster.PodRunning || event.Pod == nil {
		return nil
	}

	agent := event.Pod.Agent()
	if agent == "" {
		return nil
	}

	expected := expectedPredecessors(agent)
	if len(expected) == 0 {
		// First agent in the pipeline, or unknown: nothing to check.
		return nil
	}

	if pr.HasCommentFrom(expected...) {
		return nil
	}

	commentCount := 0
	if pr != nil {
		commentCount = len(pr.Comments)
	}

	expectedStr := strings.Join(expected, " or ")
	return New("comment-order",
		fmt.Sprintf("%s is running but no PR comment from %s", agent, expectedStr)).
		WithContext("current_agent", agent).
		WithContext("expected_previous", expectedStr).
		WithContext("pod_name", event.Pod.Name).
		WithContext("pr_comments_count", strconv.Itoa(commentCount))
}

// expectedPredecessors returns the agents that must have commented
// before the given agent starts. Implementation agents (head of the
// pipeline) and unknown agents have none; the quality agent accepts a
// comment from either implementation agent; everyone else requires
// their immediate predecessor.
func expectedPredecessors(agent string) []string {
	pos := -1
	for i, a := range agentPipelineOrder {
		if strings.Contains(agent, a) {
			pos = i
			break
		}
	}
	switch {
	case pos <= 1:
		return nil
	case pos == 2:
		return []string{agentPipelineOrder[0], agentPipelineOrder[1]}
	default:
		return []string{agentPipelineOrder[pos-1]}
	}
}
