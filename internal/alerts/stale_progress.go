package alerts

import (
	"fmt"
	"strconv"
	"time"

	"github.com/5dlabs/healer/internal/cluster"
	"github.com/5dlabs/healer/internal/github"
)

// StaleProgress fires when no commit has landed on the PR branch for
// the configured threshold while an agent pod is running.
type StaleProgress struct{}

func (StaleProgress) ID() string { return "stale-progress" }

func (StaleProgress) Evaluate(event cluster.Event, pr *github.PRState, ctx *Context) *Alert {
	if event.Type != cluster.PodRunning || event.Pod == nil {
		return nil
	}

	last := pr.LastCommit()
	if last == nil {
		return nil
	}

	elapsed := time.Since(last.CommittedAt)
	threshold := time.Duration(ctx.Config.StaleProgressMins) * time.Minute
	if elapsed <= threshold {
		return nil
	}

	agent := event.Pod.Agent()
	if agent == "" {
		agent = "unknown"
	}

	return New("stale-progress",
		fmt.Sprintf("No commits for %d minutes while %s is running", int(elapsed.Minutes()), agent)).
		WithContext("pod_name", event.Pod.Name).
		WithContext("last_commit_sha", last.SHA).
		WithContext("elapsed_minutes", strconv.Itoa(int(elapsed.Minutes()))).
		WithContext("threshold_minutes", strconv.Itoa(ctx.Config.StaleProgressMins))
}
