package alerts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/5dlabs/healer/internal/cluster"
	"github.com/5dlabs/healer/internal/github"
)

// PostApprovalCI fires when the testing agent has approved the PR but
// CI checks are failing: either the approval was wrong or something
// broke after it.
type PostApprovalCI struct{}

func (PostApprovalCI) ID() string { return "post-approval-ci" }

func (PostApprovalCI) Evaluate(event cluster.Event, pr *github.PRState, _ *Context) *Alert {
	if event.Type != cluster.ReviewUpdate || pr == nil {
		return nil
	}

	if !testingAgentApproved(pr) {
		// CI failures before the testing agent signs off are expected.
		return nil
	}

	failed := pr.FailedChecks()
	if len(failed) == 0 {
		return nil
	}

	return New("post-approval-ci",
		fmt.Sprintf("Tess approved but %d CI checks are failing: %s", len(failed), strings.Join(failed, ", "))).
		WithSeverity(Critical).
		WithContext("failed_checks", strings.Join(failed, ", ")).
		WithContext("failed_count", strconv.Itoa(len(failed)))
}

func testingAgentApproved(pr *github.PRState) bool {
	for _, c := range pr.Comments {
		if !strings.Contains(c.Author, "Tess") {
			continue
		}
		if isApprovalComment(c.Body) {
			return true
		}
	}
	return false
}
