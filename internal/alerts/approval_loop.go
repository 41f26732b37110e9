package alerts

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/5dlabs/healer/internal/cluster"
	"github.com/5dlabs/healer/internal/github"
)

// approvalKeywords mark a comment as an approval.
var approvalKeywords = []string{
	"approved",
	"lgtm",
	"looks good",
	"passing",
	"✅",
	"all checks pass",
}

// ApprovalLoop fires when one author has posted more approval comments
// than the configured threshold without the workflow advancing, the
// signature of an agent stuck re-approving in a loop.
type ApprovalLoop struct{}

func (ApprovalLoop) ID() string { return "approval-loop" }

func (ApprovalLoop) Evaluate(event cluster.Event, pr *github.PRState, ctx *Context) *Alert {
	switch event.Type {
	case cluster.ReviewUpdate, cluster.PodRunning, cluster.PodModified:
	default:
		return nil
	}
	if pr == nil {
		return nil
	}

	counts := countApprovalsByAuthor(pr)

	// Iterate authors in sorted order so repeated evaluations report
	// the same offender first.
	authors := make([]string, 0, len(counts))
	for a := range counts {
		authors = append(authors, a)
	}
	sort.Strings(authors)

	for _, author := range authors {
		if counts[author] <= ctx.Config.ApprovalLoopThreshold {
			continue
		}
		return New("approval-loop",
			fmt.Sprintf("%s has posted %d approvals - possible infinite loop", author, counts[author])).
			WithContext("agent", author).
			WithContext("approval_count", strconv.Itoa(counts[author])).
			WithContext("threshold", strconv.Itoa(ctx.Config.ApprovalLoopThreshold))
	}
	return nil
}

func countApprovalsByAuthor(pr *github.PRState) map[string]int {
	counts := map[string]int{}
	for _, c := range pr.Comments {
		if isApprovalComment(c.Body) {
			counts[c.Author]++
		}
	}
	return counts
}

func isApprovalComment(body string) bool {
	lower := strings.ToLower(body)
	for _, kw := range approvalKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
