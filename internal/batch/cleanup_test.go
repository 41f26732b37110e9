package batch

import (
	"errors"
	"strings"
	"testing"

	"github.com/5dlabs/healer/internal/cluster"
	"github.com/5dlabs/healer/internal/stage"
)

type fakeClusterAPI struct {
	records   []cluster.StateRecord
	runs      []string
	workflows []string

	deleteErrs map[string]error
	deleted    []string
}

func (f *fakeClusterAPI) ListStateRecords() ([]cluster.StateRecord, error) { return f.records, nil }
func (f *fakeClusterAPI) ListRemediationRuns() []string                    { return f.runs }
func (f *fakeClusterAPI) ListBatchWorkflows() []string                     { return f.workflows }

func (f *fakeClusterAPI) delete(name string) error {
	if err := f.deleteErrs[name]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeClusterAPI) DeleteStateRecord(name string) error { return f.delete(name) }
func (f *fakeClusterAPI) DeleteRun(name string) error         { return f.delete(name) }
func (f *fakeClusterAPI) DeleteWorkflow(name string) error    { return f.delete(name) }

func TestCleanup_FailsClosedWhileTasksRun(t *testing.T) {
	b := NewBatch("play", "5dlabs/cto", "agent-platform")
	b.Tasks = []*TaskState{InProgress("1", stage.ImplementationInProgress)}

	api := &fakeClusterAPI{
		records: []cluster.StateRecord{{Name: "play-task-1"}},
		runs:    []string{"healer-fix-aaaaaaaa"},
	}
	cleaner := &Cleaner{API: api}

	report, err := cleaner.Cleanup(b, false)
	if !errors.Is(err, ErrTasksRunning) {
		t.Fatalf("Cleanup() error = %v, want ErrTasksRunning", err)
	}
	if report.Total() != 0 {
		t.Fatalf("blocked cleanup deleted resources: %+v", report)
	}
	if len(api.deleted) != 0 {
		t.Fatalf("blocked cleanup touched the cluster: %v", api.deleted)
	}
}

func TestCleanup_ForceOverridesRunningTasks(t *testing.T) {
	b := NewBatch("play", "5dlabs/cto", "agent-platform")
	b.Tasks = []*TaskState{InProgress("1", stage.TestingInProgress)}

	api := &fakeClusterAPI{
		records:   []cluster.StateRecord{{Name: "play-task-1"}},
		runs:      []string{"healer-fix-aaaaaaaa"},
		workflows: []string{"play-workflow-1"},
	}
	cleaner := &Cleaner{API: api}

	report, err := cleaner.Cleanup(b, true)
	if err != nil {
		t.Fatalf("forced Cleanup() error = %v", err)
	}
	if report.StateRecords != 1 || report.Runs != 1 || report.Workflows != 1 {
		t.Fatalf("report = %+v", report)
	}
}

func TestCleanup_RemovesAllResourceCategories(t *testing.T) {
	done := New("1")
	done.Complete()
	b := NewBatch("play", "5dlabs/cto", "agent-platform")
	b.Tasks = []*TaskState{done}

	api := &fakeClusterAPI{
		records:   []cluster.StateRecord{{Name: "play-task-1"}, {Name: "play-task-2"}},
		runs:      []string{"healer-fix-aaaaaaaa"},
		workflows: []string{"play-workflow-1", "play-workflow-2"},
	}
	var log strings.Builder
	cleaner := &Cleaner{API: api, Progress: &log}

	report, err := cleaner.Cleanup(b, false)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if report.StateRecords != 2 || report.Runs != 1 || report.Workflows != 2 {
		t.Fatalf("report = %+v", report)
	}
	if !strings.Contains(log.String(), "cleanup complete") {
		t.Errorf("progress log = %q", log.String())
	}
}

func TestCleanup_SkipsFailedDeletions(t *testing.T) {
	done := New("1")
	done.Complete()
	b := NewBatch("play", "5dlabs/cto", "agent-platform")
	b.Tasks = []*TaskState{done}

	api := &fakeClusterAPI{
		records:    []cluster.StateRecord{{Name: "play-task-1"}, {Name: "play-task-2"}},
		deleteErrs: map[string]error{"play-task-1": errors.New("finalizer stuck")},
	}
	var log strings.Builder
	cleaner := &Cleaner{API: api, Progress: &log}

	report, err := cleaner.Cleanup(b, false)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if report.StateRecords != 1 {
		t.Fatalf("report = %+v", report)
	}
	if !strings.Contains(log.String(), "play-task-1") {
		t.Errorf("skipped deletion not logged: %q", log.String())
	}
}

func TestCanCleanup(t *testing.T) {
	running := NewBatch("play", "5dlabs/cto", "agent-platform")
	running.Tasks = []*TaskState{InProgress("1", stage.ImplementationInProgress)}

	idle := NewBatch("play", "5dlabs/cto", "agent-platform")
	done := New("1")
	done.Complete()
	idle.Tasks = []*TaskState{done}

	if CanCleanup(running, false) {
		t.Error("running batch should block cleanup")
	}
	if !CanCleanup(running, true) {
		t.Error("force should override")
	}
	if !CanCleanup(idle, false) {
		t.Error("idle batch should allow cleanup")
	}
}
