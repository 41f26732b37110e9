package github

import (
	"errors"
	"strings"
	"testing"
)

type fakeRunner struct {
	out  string
	err  error
	args []string
}

func (f *fakeRunner) Run(args ...string) (string, error) {
	f.args = args
	return f.out, f.err
}

const prJSON = `{
	"number": 42,
	"comments": [
		{"author": {"login": "5DLabs-Rex"}, "body": "Implementation complete", "createdAt": "2026-08-01T10:00:00Z"},
		{"author": {"login": "5DLabs-Cleo"}, "body": "LGTM - approved", "createdAt": "2026-08-01T11:00:00Z"}
	],
	"commits": [
		{"oid": "abc123", "messageHeadline": "Add parser", "committedDate": "2026-08-01T09:30:00Z"},
		{"oid": "def456", "messageHeadline": "Fix lint", "committedDate": "2026-08-01T10:30:00Z"}
	],
	"statusCheckRollup": [
		{"name": "build", "conclusion": "SUCCESS", "completedAt": "2026-08-01T10:40:00Z"},
		{"name": "test", "conclusion": "FAILURE", "completedAt": "2026-08-01T10:45:00Z"}
	],
	"reviews": [{"author": {"login": "5DLabs-Tess"}, "state": "APPROVED"}],
	"labels": [{"name": "automated"}],
	"mergeable": "MERGEABLE",
	"mergeStateStatus": "BLOCKED"
}`

func TestFetchPRState(t *testing.T) {
	runner := &fakeRunner{out: prJSON}
	c := NewClient(runner, "5dlabs/platform")

	state, err := c.FetchPRState(42)
	if err != nil {
		t.Fatalf("FetchPRState() error: %v", err)
	}

	if state.Number != 42 {
		t.Errorf("Number = %d, want 42", state.Number)
	}
	if len(state.Comments) != 2 || state.Comments[0].Author != "5DLabs-Rex" {
		t.Errorf("Comments = %+v", state.Comments)
	}
	if !state.Mergeable {
		t.Error("Mergeable = false, want true")
	}
	if got := state.FailedChecks(); len(got) != 1 || got[0] != "test" {
		t.Errorf("FailedChecks() = %v, want [test]", got)
	}
	if lc := state.LastCommit(); lc == nil || lc.SHA != "def456" {
		t.Errorf("LastCommit() = %+v, want def456", lc)
	}
	if !strings.Contains(strings.Join(runner.args, " "), "--repo 5dlabs/platform") {
		t.Errorf("gh args missing repo: %v", runner.args)
	}
}

func TestFetchPRState_InvalidNumber(t *testing.T) {
	c := NewClient(&fakeRunner{}, "5dlabs/platform")
	if _, err := c.FetchPRState(0); err == nil {
		t.Error("FetchPRState(0) expected error, got nil")
	}
}

func TestFetchPRState_GhError(t *testing.T) {
	c := NewClient(&fakeRunner{err: errors.New("no pull requests found")}, "5dlabs/platform")
	if _, err := c.FetchPRState(7); err == nil {
		t.Error("FetchPRState() expected error, got nil")
	}
}

func TestHasCommentFrom(t *testing.T) {
	state := &PRState{Comments: []Comment{
		{Author: "5DLabs-Rex[bot]", Body: "done"},
	}}

	if !state.HasCommentFrom("5DLabs-Rex") {
		t.Error("HasCommentFrom(Rex) = false, want true")
	}
	if state.HasCommentFrom("5DLabs-Cleo") {
		t.Error("HasCommentFrom(Cleo) = true, want false")
	}
	if state.HasCommentFrom("") {
		t.Error("HasCommentFrom(\"\") = true, want false")
	}

	var nilState *PRState
	if nilState.HasCommentFrom("5DLabs-Rex") {
		t.Error("nil state HasCommentFrom = true, want false")
	}
}
