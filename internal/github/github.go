// Package github fetches pull-request state snapshots via the gh CLI.
package github

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CmdRunner provides command execution. Interface for testing.
type CmdRunner interface {
	Run(args ...string) (string, error)
}

// ExecRunner runs gh commands via exec.
type ExecRunner struct{}

func (r *ExecRunner) Run(args ...string) (string, error) {
	cmd := exec.Command("gh", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return strings.TrimSpace(string(out)), fmt.Errorf("gh %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(string(out)), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// PRState is a point-in-time snapshot of a pull request, as seen by the
// detectors. The zero value is a valid "nothing known yet" snapshot.
type PRState struct {
	Number           int
	Comments         []Comment
	Commits          []Commit
	Checks           []Check
	Reviews          []Review
	Labels           []string
	Mergeable        bool
	MergeStateStatus string
}

// Comment is one PR comment.
type Comment struct {
	Author    string
	Body      string
	CreatedAt time.Time
}

// Commit is one commit on the PR branch.
type Commit struct {
	SHA         string
	Message     string
	CommittedAt time.Time
}

// Check is one CI check run.
type Check struct {
	Name        string
	Conclusion  string // "", "SUCCESS", "FAILURE", "CANCELLED", "SKIPPED"
	CompletedAt time.Time
}

// Failed reports whether the check concluded in failure.
func (c Check) Failed() bool {
	return c.Conclusion == "FAILURE"
}

// Review is one PR review.
type Review struct {
	Author string
	State  string // "APPROVED", "CHANGES_REQUESTED", "COMMENTED", "DISMISSED"
}

// Client fetches PR state for one repository.
type Client struct {
	cmd  CmdRunner
	repo string
}

// NewClient creates a GitHub client for the given "owner/repo".
func NewClient(cmd CmdRunner, repo string) *Client {
	return &Client{cmd: cmd, repo: repo}
}

// prViewPayload mirrors the `gh pr view --json` fields the healer reads.
type prViewPayload struct {
	Number   int `json:"number"`
	Comments []struct {
		Author    struct{ Login string } `json:"author"`
		Body      string                 `json:"body"`
		CreatedAt time.Time              `json:"createdAt"`
	} `json:"comments"`
	Commits []struct {
		OID             string    `json:"oid"`
		MessageHeadline string    `json:"messageHeadline"`
		CommittedDate   time.Time `json:"committedDate"`
	} `json:"commits"`
	StatusCheckRollup []struct {
		Name        string    `json:"name"`
		Conclusion  string    `json:"conclusion"`
		CompletedAt time.Time `json:"completedAt"`
	} `json:"statusCheckRollup"`
	Reviews []struct {
		Author struct{ Login string } `json:"author"`
		State  string                 `json:"state"`
	} `json:"reviews"`
	Labels []struct {
		Name string `json:"name"`
	} `json:"labels"`
	Mergeable        string `json:"mergeable"`
	MergeStateStatus string `json:"mergeStateStatus"`
}

// FetchPRState fetches the current snapshot for a PR.
func (c *Client) FetchPRState(number int) (*PRState, error) {
	if number <= 0 {
		return nil, fmt.Errorf("invalid PR number %d: must be positive", number)
	}

	out, err := c.cmd.Run(
		"pr", "view", fmt.Sprintf("%d", number), "--repo", c.repo, "--json",
		"number,comments,commits,statusCheckRollup,reviews,labels,mergeable,mergeStateStatus",
	)
	if err != nil {
		return nil, fmt.Errorf("fetch PR %d state: %w", number, err)
	}

	var payload prViewPayload
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		return nil, fmt.Errorf("parse PR %d JSON: %w", number, err)
	}

	return payload.toState(), nil
}

func (p *prViewPayload) toState() *PRState {
	state := &PRState{
		Number:           p.Number,
		Mergeable:        p.Mergeable == "MERGEABLE",
		MergeStateStatus: p.MergeStateStatus,
	}
	for _, c := range p.Comments {
		state.Comments = append(state.Comments, Comment{
			Author:    c.Author.Login,
			Body:      c.Body,
			CreatedAt: c.CreatedAt,
		})
	}
	for _, c := range p.Commits {
		state.Commits = append(state.Commits, Commit{
			SHA:         c.OID,
			Message:     c.MessageHeadline,
			CommittedAt: c.CommittedDate,
		})
	}
	for _, c := range p.StatusCheckRollup {
		state.Checks = append(state.Checks, Check{
			Name:        c.Name,
			Conclusion:  c.Conclusion,
			CompletedAt: c.CompletedAt,
		})
	}
	for _, r := range p.Reviews {
		state.Reviews = append(state.Reviews, Review{Author: r.Author.Login, State: r.State})
	}
	for _, l := range p.Labels {
		state.Labels = append(state.Labels, l.Name)
	}
	return state
}

// FailedChecks returns the names of CI checks that concluded in failure.
func (s *PRState) FailedChecks() []string {
	if s == nil {
		return nil
	}
	var failed []string
	for _, c := range s.Checks {
		if c.Failed() {
			failed = append(failed, c.Name)
		}
	}
	return failed
}

// LastCommit returns the most recent commit on the branch, or nil.
func (s *PRState) LastCommit() *Commit {
	if s == nil || len(s.Commits) == 0 {
		return nil
	}
	return &s.Commits[len(s.Commits)-1]
}

// HasCommentFrom reports whether any comment author contains one of the
// given agent names.
func (s *PRState) HasCommentFrom(agents ...string) bool {
	if s == nil {
		return false
	}
	for _, c := range s.Comments {
		for _, a := range agents {
			if a != "" && strings.Contains(c.Author, a) {
				return true
			}
		}
	}
	return false
}
