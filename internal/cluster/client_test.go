package cluster

import (
	"errors"
	"strings"
	"testing"
)

// fakeRunner records commands and returns canned responses keyed by the
// first matching substring of the joined args.
type fakeRunner struct {
	responses map[string]string
	errs      map[string]error
	calls     []string
}

func (f *fakeRunner) Run(args ...string) (string, error) {
	key := strings.Join(args, " ")
	f.calls = append(f.calls, key)
	for sub, err := range f.errs {
		if strings.Contains(key, sub) {
			return "", err
		}
	}
	for sub, out := range f.responses {
		if strings.Contains(key, sub) {
			return out, nil
		}
	}
	return "", nil
}

func (f *fakeRunner) RunInput(input string, args ...string) (string, error) {
	return f.Run(append(args, "<stdin>")...)
}

func TestListStateRecords_FiltersByPrefix(t *testing.T) {
	runner := &fakeRunner{responses: map[string]string{
		"get configmaps": `{
			"items": [
				{"metadata": {"name": "play-task-2"}, "data": {"stage": "quality"}},
				{"metadata": {"name": "kube-root-ca.crt"}, "data": {}},
				{"metadata": {"name": "play-task-1"}, "data": {"stage": "pending"}}
			]
		}`,
	}}
	c := NewClient(runner, "agents")

	records, err := c.ListStateRecords()
	if err != nil {
		t.Fatalf("ListStateRecords() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("ListStateRecords() returned %d records, want 2", len(records))
	}
	if records[0].Name != "play-task-1" || records[1].Name != "play-task-2" {
		t.Errorf("records not sorted by name: %v, %v", records[0].Name, records[1].Name)
	}
	if records[1].Data["stage"] != "quality" {
		t.Errorf("stage = %q, want %q", records[1].Data["stage"], "quality")
	}
}

func TestListStateRecords_KubectlError(t *testing.T) {
	runner := &fakeRunner{errs: map[string]error{"get configmaps": errors.New("connection refused")}}
	c := NewClient(runner, "agents")

	if _, err := c.ListStateRecords(); err == nil {
		t.Error("ListStateRecords() expected error, got nil")
	}
}

func TestListRemediationRuns_MissingCRDIsEmpty(t *testing.T) {
	runner := &fakeRunner{errs: map[string]error{"get agentruns": errors.New(`the server doesn't have a resource type "agentruns"`)}}
	c := NewClient(runner, "agents")

	if runs := c.ListRemediationRuns(); len(runs) != 0 {
		t.Errorf("ListRemediationRuns() = %v, want empty", runs)
	}
}

func TestActiveRemediations_MapsTaskToLiveRun(t *testing.T) {
	runner := &fakeRunner{responses: map[string]string{
		"get agentruns": `{
			"items": [
				{"metadata": {"name": "healer-fix-a1b2c3d4", "labels": {"task-id": "3"}},
				 "status": {"phase": "Running"}},
				{"metadata": {"name": "healer-fix-00000000", "labels": {"task-id": "7"}},
				 "status": {"phase": "Succeeded"}},
				{"metadata": {"name": "healer-fix-11111111", "labels": {}},
				 "status": {"phase": "Running"}}
			]
		}`,
	}}
	c := NewClient(runner, "agents")

	active := c.ActiveRemediations()
	if len(active) != 1 {
		t.Fatalf("active = %v, want one live labeled run", active)
	}
	if active["3"] != "healer-fix-a1b2c3d4" {
		t.Errorf("active[3] = %q", active["3"])
	}
}

func TestActiveRemediations_MissingCRDIsEmpty(t *testing.T) {
	runner := &fakeRunner{errs: map[string]error{
		"get agentruns": errors.New(`error: the server doesn't have a resource type "agentruns"`),
	}}
	c := NewClient(runner, "agents")
	if active := c.ActiveRemediations(); len(active) != 0 {
		t.Errorf("active = %v, want empty", active)
	}
}

func TestReadPodFile(t *testing.T) {
	runner := &fakeRunner{responses: map[string]string{
		"exec run-3": `{"files_created": []}`,
	}}
	c := NewClient(runner, "agents")

	out, err := c.ReadPodFile("run-3", "/workspace/artifact-trail.json")
	if err != nil {
		t.Fatalf("ReadPodFile() error: %v", err)
	}
	if out != `{"files_created": []}` {
		t.Errorf("out = %q", out)
	}
	if !strings.Contains(runner.calls[0], "cat /workspace/artifact-trail.json") {
		t.Errorf("call = %q", runner.calls[0])
	}
}

func TestListBatchWorkflows_ParsesNames(t *testing.T) {
	runner := &fakeRunner{responses: map[string]string{
		"get workflows": "workflow.argoproj.io/play-batch-1\nworkflow.argoproj.io/nightly-backup\nworkflow.argoproj.io/play-batch-2",
	}}
	c := NewClient(runner, "agents")

	names := c.ListBatchWorkflows()
	if len(names) != 2 {
		t.Fatalf("ListBatchWorkflows() = %v, want 2 names", names)
	}
	if names[0] != "play-batch-1" || names[1] != "play-batch-2" {
		t.Errorf("ListBatchWorkflows() = %v", names)
	}
}

func TestPodLogs_FallsBackToLabelSelector(t *testing.T) {
	runner := &fakeRunner{
		errs:      map[string]error{"logs run-abc -n": errors.New("pod not found")},
		responses: map[string]string{"logs -l app.kubernetes.io/name=run-abc": "line1\nline2"},
	}
	c := NewClient(runner, "agents")

	logs, err := c.PodLogs("run-abc", 100)
	if err != nil {
		t.Fatalf("PodLogs() error: %v", err)
	}
	if logs != "line1\nline2" {
		t.Errorf("PodLogs() = %q", logs)
	}
}

func TestPodAccessors_NilSafe(t *testing.T) {
	var p *Pod
	if p.Agent() != "" || p.TaskID() != "" {
		t.Error("nil pod accessors should return empty strings")
	}
}
