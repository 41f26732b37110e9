// Package monitor runs the control loop: it consumes cluster events,
// evaluates detectors against them, sweeps batch health on a timer and
// hands unremediated failures to the remediation engine.
//
// All detector state lives behind a single consumer goroutine, so
// detectors themselves stay free of locking.
package monitor

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync/atomic"
	"time"

	"github.com/5dlabs/healer/internal/alerts"
	"github.com/5dlabs/healer/internal/batch"
	"github.com/5dlabs/healer/internal/cluster"
	"github.com/5dlabs/healer/internal/github"
	"github.com/5dlabs/healer/internal/metrics"
	"github.com/5dlabs/healer/internal/remediate"
)

// Notifier delivers alerts to an operator-facing sink.
type Notifier interface {
	Notify(alert *alerts.Alert) error
}

// LogNotifier writes alerts to a writer, one line each. It is the
// default sink when no external notifier is configured.
type LogNotifier struct {
	Out io.Writer
}

func (n LogNotifier) Notify(a *alerts.Alert) error {
	if n.Out == nil {
		return nil
	}
	line := fmt.Sprintf("ALERT [%s] %s: %s", a.Severity, a.Detector, a.Message)
	for _, k := range sortedKeys(a.Context) {
		line += fmt.Sprintf(" %s=%s", k, a.Context[k])
	}
	_, err := fmt.Fprintln(n.Out, line)
	return err
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Recorder persists the loop's observations.
type Recorder interface {
	RecordAlert(ctx context.Context, alert *alerts.Alert) error
	RecordRemediation(ctx context.Context, taskID, runName, category, summary string) error
	RecordHealthSnapshot(ctx context.Context, summary batch.HealthSummary) error
}

// Remediator diagnoses a failed task and, when possible, spawns a fix.
type Remediator interface {
	Remediate(issue batch.Issue, b *batch.Batch) (*remediate.Diagnosis, error)
}

// StateLister loads persisted task state from the cluster. Active
// remediations are resolved from live fix runs, not memory, so a
// restarted healer does not double-spawn.
type StateLister interface {
	ListStateRecords() ([]cluster.StateRecord, error)
	ActiveRemediations() map[string]string
}

// PRViewer fetches pull request state for detector evaluation.
type PRViewer interface {
	FetchPRState(number int) (*github.PRState, error)
}

// Options configures a Monitor.
type Options struct {
	Namespace    string
	Repository   string
	PollInterval time.Duration
	Alerts       alerts.Config
}

// Monitor is the single-consumer control loop.
type Monitor struct {
	opts     Options
	registry *alerts.Registry
	cluster  StateLister
	prs      PRViewer

	notifier   Notifier
	recorder   Recorder
	remediator Remediator

	// Progress, when non-nil, receives human-readable updates.
	Progress io.Writer

	tracker *alerts.RunTracker

	// batch holds the published snapshot. Sweep finishes all mutation
	// before storing, so readers on other goroutines never observe a
	// half-built batch.
	batch atomic.Pointer[batch.Batch]

	// prCache avoids a gh round trip per event inside one poll window.
	prCache     *github.PRState
	prFetchedAt time.Time

	now func() time.Time
}

// New creates a monitor. Notifier, recorder and remediator may be nil;
// the corresponding step is skipped.
func New(opts Options, registry *alerts.Registry, lister StateLister, prs PRViewer) *Monitor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	return &Monitor{
		opts:     opts,
		registry: registry,
		cluster:  lister,
		prs:      prs,
		tracker:  alerts.NewRunTracker(),
		now:      time.Now,
	}
}

// SetNotifier wires the alert sink.
func (m *Monitor) SetNotifier(n Notifier) { m.notifier = n }

// SetRecorder wires the persistence layer.
func (m *Monitor) SetRecorder(r Recorder) { m.recorder = r }

// SetRemediator wires the remediation engine.
func (m *Monitor) SetRemediator(r Remediator) { m.remediator = r }

func (m *Monitor) logf(format string, args ...any) {
	if m.Progress != nil {
		fmt.Fprintf(m.Progress, format+"\n", args...)
	}
}

// Batch returns the most recently published batch snapshot, or nil
// before the first health sweep. Safe for concurrent use; the snapshot
// is immutable once published, each sweep publishes a fresh one.
func (m *Monitor) Batch() *batch.Batch { return m.batch.Load() }

// Run consumes events until the context is cancelled or the channel
// closes. Health sweeps run every poll interval on the same goroutine,
// so event handling and sweeps never race.
func (m *Monitor) Run(ctx context.Context, events <-chan cluster.Event) error {
	m.logf("monitor started: namespace=%s repository=%s poll=%s",
		m.opts.Namespace, m.opts.Repository, m.opts.PollInterval)

	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()

	m.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			m.HandleEvent(ctx, ev)
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// HandleEvent evaluates all detectors against one event and dispatches
// any alerts they raise.
func (m *Monitor) HandleEvent(ctx context.Context, ev cluster.Event) {
	metrics.EventsTotal.WithLabelValues(ev.Type.String()).Inc()

	actx := &alerts.Context{
		Repository:   m.opts.Repository,
		Namespace:    m.opts.Namespace,
		Config:       m.opts.Alerts,
		Runs:         m.tracker,
		WorkflowName: workflowName(ev),
	}
	if pod := eventPod(ev); pod != nil {
		actx.TaskID = pod.TaskID()
	}

	pr := m.prState(ev)
	if pr != nil {
		actx.PRNumber = pr.Number
	}

	for _, alert := range m.registry.Evaluate(ev, pr, actx) {
		m.dispatch(ctx, alert)
	}
}

func (m *Monitor) dispatch(ctx context.Context, alert *alerts.Alert) {
	metrics.AlertsTotal.WithLabelValues(alert.Detector, alert.Severity.String()).Inc()
	m.logf("[%s] %s: %s", alert.Severity, alert.Detector, alert.Message)

	if m.notifier != nil {
		if err := m.notifier.Notify(alert); err != nil {
			m.logf("warning: alert notification failed: %v", err)
		}
	}
	if m.recorder != nil {
		if err := m.recorder.RecordAlert(ctx, alert); err != nil {
			m.logf("warning: alert not persisted: %v", err)
		}
	}
}

// Sweep rebuilds the batch from cluster state, records its health and
// kicks off remediation for failed tasks that have none attached. Fix
// runs already live in the cluster are reattached before the check, so
// one failure never accumulates a second fix run across sweeps or
// process restarts. The finished batch is published last, after all
// mutation. Errors are logged, not fatal; the next tick retries.
func (m *Monitor) Sweep(ctx context.Context) {
	start := m.now()
	defer func() {
		metrics.HealthCheckDuration.Observe(m.now().Sub(start).Seconds())
	}()

	records, err := m.cluster.ListStateRecords()
	if err != nil {
		m.logf("warning: health sweep skipped, state records unavailable: %v", err)
		return
	}
	b := batch.Load(records, m.opts.Namespace)
	b.AttachRemediations(m.cluster.ActiveRemediations())

	summary := batch.Summarize(b)
	publishTaskGauges(summary)

	if m.recorder != nil {
		if err := m.recorder.RecordHealthSnapshot(ctx, summary); err != nil {
			m.logf("warning: health snapshot not persisted: %v", err)
		}
	}

	if summary.Status != "Healthy" && summary.Status != "Completed" {
		m.logf("batch health %s: %d/%d complete, %d stuck, %d failed",
			summary.Status, summary.Completed, summary.Total, summary.Stuck, summary.Failed)
	}

	if m.remediator != nil {
		for _, issue := range batch.CheckHealth(b) {
			if issue.Kind != batch.IssueNeedsRemediation {
				continue
			}
			m.remediateIssue(ctx, issue, b)
		}
	}

	m.batch.Store(b)
}

func (m *Monitor) remediateIssue(ctx context.Context, issue batch.Issue, b *batch.Batch) {
	d, err := m.remediator.Remediate(issue, b)
	if err != nil {
		metrics.RemediationsTotal.WithLabelValues(categoryLabel(d), "error").Inc()
		m.logf("warning: remediation for task %s failed: %v", issue.TaskID, err)
		return
	}

	outcome := "skipped"
	if task := b.Task(issue.TaskID); task != nil && task.HasActiveRemediation() {
		outcome = "spawned"
		if m.recorder != nil {
			rec := task.Status.Remediation
			if err := m.recorder.RecordRemediation(ctx, task.TaskID, rec.RunName, d.Category.String(), d.Summary); err != nil {
				m.logf("warning: remediation not persisted: %v", err)
			}
		}
	}
	metrics.RemediationsTotal.WithLabelValues(categoryLabel(d), outcome).Inc()
}

// prState returns the PR snapshot for detector evaluation, refreshed
// at most once per poll interval. Review events always refresh so the
// approval detectors see current comments.
func (m *Monitor) prState(ev cluster.Event) *github.PRState {
	if m.prs == nil {
		return nil
	}
	stale := m.now().Sub(m.prFetchedAt) >= m.opts.PollInterval
	if ev.Type == cluster.ReviewUpdate || m.prCache == nil || stale {
		pr, err := m.fetchPR(ev)
		if err != nil {
			m.logf("warning: PR state unavailable: %v", err)
			return m.prCache
		}
		m.prCache = pr
		m.prFetchedAt = m.now()
	}
	return m.prCache
}

func (m *Monitor) fetchPR(ev cluster.Event) (*github.PRState, error) {
	number := 0
	if b := m.Batch(); b != nil {
		if ev.Run != nil && ev.Run.TaskID != "" {
			if t := b.Task(ev.Run.TaskID); t != nil {
				number = t.PRNumber
			}
		}
		if number == 0 {
			for _, t := range b.Tasks {
				if t.IsRunning() && t.PRNumber > 0 {
					number = t.PRNumber
					break
				}
			}
		}
	}
	if number == 0 {
		return nil, nil
	}
	return m.prs.FetchPRState(number)
}

func publishTaskGauges(s batch.HealthSummary) {
	metrics.TasksByState.WithLabelValues("completed").Set(float64(s.Completed))
	metrics.TasksByState.WithLabelValues("running").Set(float64(s.Running))
	metrics.TasksByState.WithLabelValues("stuck").Set(float64(s.Stuck))
	metrics.TasksByState.WithLabelValues("failed").Set(float64(s.Failed))
	metrics.TasksByState.WithLabelValues("pending").Set(float64(s.Pending))
	metrics.BatchProgress.Set(s.Progress)
}

func categoryLabel(d *remediate.Diagnosis) string {
	if d == nil {
		return "unknown"
	}
	return d.Category.String()
}

func workflowName(ev cluster.Event) string {
	if ev.Workflow != nil {
		return ev.Workflow.Name
	}
	return ""
}

func eventPod(ev cluster.Event) *cluster.Pod {
	if ev.Type == cluster.PodRunning || ev.Type == cluster.PodModified || ev.Type == cluster.PodSucceeded || ev.Type == cluster.PodFailed {
		return ev.Pod
	}
	return nil
}
