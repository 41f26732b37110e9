package alerts

import (
	"testing"
	"time"

	"github.com/5dlabs/healer/internal/cluster"
	"github.com/5dlabs/healer/internal/github"
)

func testContext(t *testing.T) *Context {
	t.Helper()
	return &Context{
		TaskID:     "1",
		Repository: "5dlabs/test",
		Namespace:  "agent-platform",
		Config:     DefaultConfig(),
		Runs:       NewRunTracker(),
	}
}

func runningPod(agent, name string) cluster.Event {
	return cluster.Event{
		Type: cluster.PodRunning,
		Pod: &cluster.Pod{
			Name:      name,
			Phase:     "Running",
			Labels:    map[string]string{"agent": agent},
			StartedAt: time.Now(),
		},
	}
}

func TestCommentOrder_QualityAgentWithoutImplementationComment(t *testing.T) {
	d := CommentOrder{}

	event := runningPod("5DLabs-Cleo", "cleo-pod-123")
	pr := &github.PRState{} // no comments yet

	alert := d.Evaluate(event, pr, testContext(t))
	if alert == nil {
		t.Fatal("Evaluate() = nil, want alert")
	}
	if alert.Detector != "comment-order" {
		t.Errorf("Detector = %q", alert.Detector)
	}
	if alert.Severity != Warning {
		t.Errorf("Severity = %v, want Warning", alert.Severity)
	}
}

func TestCommentOrder_QualityAgentWithImplementationComment(t *testing.T) {
	d := CommentOrder{}

	event := runningPod("5DLabs-Cleo", "cleo-pod-123")
	pr := &github.PRState{Comments: []github.Comment{
		{Author: "5DLabs-Rex", Body: "Implementation complete"},
	}}

	if alert := d.Evaluate(event, pr, testContext(t)); alert != nil {
		t.Errorf("Evaluate() = %+v, want nil", alert)
	}
}

func TestCommentOrder_FirstAgentNeedsNoPredecessor(t *testing.T) {
	d := CommentOrder{}

	for _, agent := range []string{"5DLabs-Rex", "5DLabs-Blaze"} {
		event := runningPod(agent, "impl-pod")
		if alert := d.Evaluate(event, &github.PRState{}, testContext(t)); alert != nil {
			t.Errorf("Evaluate(%s) = %+v, want nil", agent, alert)
		}
	}
}

func TestCommentOrder_SecurityAgentRequiresQualityComment(t *testing.T) {
	d := CommentOrder{}
	event := runningPod("5DLabs-Cipher", "cipher-pod")

	// Rex commented but Cleo has not: Cipher's immediate predecessor is missing.
	pr := &github.PRState{Comments: []github.Comment{
		{Author: "5DLabs-Rex", Body: "done"},
	}}
	if alert := d.Evaluate(event, pr, testContext(t)); alert == nil {
		t.Fatal("Evaluate() = nil, want alert")
	}

	pr.Comments = append(pr.Comments, github.Comment{Author: "5DLabs-Cleo", Body: "review complete"})
	if alert := d.Evaluate(event, pr, testContext(t)); alert != nil {
		t.Errorf("Evaluate() = %+v, want nil", alert)
	}
}

func TestCommentOrder_UnknownAgentIgnored(t *testing.T) {
	d := CommentOrder{}
	event := runningPod("some-other-bot", "misc-pod")
	if alert := d.Evaluate(event, &github.PRState{}, testContext(t)); alert != nil {
		t.Errorf("Evaluate() = %+v, want nil", alert)
	}
}

func TestCommentOrder_NilSnapshotIsNoAlertForFirstAgent(t *testing.T) {
	d := CommentOrder{}
	event := runningPod("5DLabs-Rex", "rex-pod")
	if alert := d.Evaluate(event, nil, testContext(t)); alert != nil {
		t.Errorf("Evaluate() = %+v, want nil", alert)
	}
}
