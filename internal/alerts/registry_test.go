package alerts

import (
	"testing"

	"github.com/5dlabs/healer/internal/cluster"
	"github.com/5dlabs/healer/internal/github"
)

func TestNewRegistry_AllDetectorsRegistered(t *testing.T) {
	r := NewRegistry()

	want := []string{
		"approval-loop",
		"comment-order",
		"completion",
		"pod-failure",
		"post-approval-ci",
		"silent-failure",
		"stale-progress",
		"step-timeout",
		"stuck-run",
	}
	got := r.IDs()
	if len(got) != len(want) {
		t.Fatalf("IDs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("IDs()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRegistry_EvaluateCollectsAlerts(t *testing.T) {
	r := NewRegistry()
	ctx := testContext(t)

	// A quality-agent pod starting with no PR comments trips the
	// comment-order detector and nothing else.
	event := runningPod("5DLabs-Cleo", "cleo-pod-1")
	alerts := r.Evaluate(event, &github.PRState{}, ctx)

	if len(alerts) != 1 {
		t.Fatalf("Evaluate() returned %d alerts, want 1: %+v", len(alerts), alerts)
	}
	if alerts[0].Detector != "comment-order" {
		t.Errorf("Detector = %q, want comment-order", alerts[0].Detector)
	}
}

func TestRegistry_EvaluateIsTotal(t *testing.T) {
	r := NewRegistry()
	ctx := testContext(t)

	// Empty events and nil snapshots must produce no alerts, never panic.
	events := []cluster.Event{
		{Type: cluster.PodRunning},
		{Type: cluster.PodFailed},
		{Type: cluster.AgentRunChanged},
		{Type: cluster.WorkflowPhaseChanged},
		{Type: cluster.ReviewUpdate},
	}
	for _, event := range events {
		if alerts := r.Evaluate(event, nil, ctx); len(alerts) != 0 {
			t.Errorf("Evaluate(%v, nil) = %+v, want none", event.Type, alerts)
		}
	}
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := NewRegistry()
	before := len(r.IDs())
	r.Register(CommentOrder{})
	if len(r.IDs()) != before {
		t.Errorf("Register() of existing ID changed count: %d -> %d", before, len(r.IDs()))
	}
	if r.Detector("comment-order") == nil {
		t.Error("Detector(comment-order) = nil")
	}
	if r.Detector("no-such") != nil {
		t.Error("Detector(no-such) != nil")
	}
}
