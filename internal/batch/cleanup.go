package batch

import (
	"errors"
	"fmt"
	"io"

	"github.com/5dlabs/healer/internal/cluster"
)

// ErrTasksRunning is returned by Cleanup when the batch still has
// running tasks and force was not set.
var ErrTasksRunning = errors.New("batch has running tasks")

// ClusterAPI is the slice of cluster operations cleanup needs.
type ClusterAPI interface {
	ListStateRecords() ([]cluster.StateRecord, error)
	DeleteStateRecord(name string) error
	ListRemediationRuns() []string
	DeleteRun(name string) error
	ListBatchWorkflows() []string
	DeleteWorkflow(name string) error
}

// Report counts what a cleanup removed, per resource category.
type Report struct {
	StateRecords int
	Runs         int
	Workflows    int
}

// Total returns the number of resources removed.
func (r Report) Total() int {
	return r.StateRecords + r.Runs + r.Workflows
}

func (r Report) String() string {
	return fmt.Sprintf("removed %d state records, %d remediation runs, %d workflows",
		r.StateRecords, r.Runs, r.Workflows)
}

// Cleaner tears down a finished batch's cluster residue. Progress, when
// non-nil, receives human-readable updates.
type Cleaner struct {
	API      ClusterAPI
	Progress io.Writer
}

func (c *Cleaner) logf(format string, args ...any) {
	if c.Progress != nil {
		fmt.Fprintf(c.Progress, format+"\n", args...)
	}
}

// CanCleanup reports whether cleanup may proceed. Running tasks block
// cleanup unless force is set.
func CanCleanup(b *Batch, force bool) bool {
	if force {
		return true
	}
	return len(b.RunningTasks()) == 0
}

// Cleanup deletes the batch's state records, remediation runs and
// workflows. It refuses to touch anything while tasks are running
// unless force is set: a blocked cleanup returns ErrTasksRunning and a
// zero report. Deletion failures on individual resources are logged and
// skipped so one stuck finalizer does not strand the rest.
func (c *Cleaner) Cleanup(b *Batch, force bool) (Report, error) {
	if !CanCleanup(b, force) {
		return Report{}, fmt.Errorf("%w: %d still in progress (use force to override)",
			ErrTasksRunning, len(b.RunningTasks()))
	}

	var report Report

	records, err := c.API.ListStateRecords()
	if err != nil {
		return report, fmt.Errorf("listing state records: %w", err)
	}
	for _, rec := range records {
		if err := c.API.DeleteStateRecord(rec.Name); err != nil {
			c.logf("warning: could not delete state record %s: %v", rec.Name, err)
			continue
		}
		report.StateRecords++
	}

	for _, name := range c.API.ListRemediationRuns() {
		if err := c.API.DeleteRun(name); err != nil {
			c.logf("warning: could not delete remediation run %s: %v", name, err)
			continue
		}
		report.Runs++
	}

	for _, name := range c.API.ListBatchWorkflows() {
		if err := c.API.DeleteWorkflow(name); err != nil {
			c.logf("warning: could not delete workflow %s: %v", name, err)
			continue
		}
		report.Workflows++
	}

	c.logf("cleanup complete: %s", report)
	return report, nil
}
