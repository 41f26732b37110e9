package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Watcher turns periodic kubectl snapshots into a normalized event
// stream. Pods, workflows and AgentRuns are diffed against the previous
// snapshot; every poll also emits one ReviewUpdate so review-driven
// detectors re-evaluate without a cluster change.
type Watcher struct {
	cmd       CmdRunner
	namespace string
	interval  time.Duration

	// Progress, when non-nil, receives human-readable updates.
	Progress io.Writer

	pods      map[string]string // name -> phase
	workflows map[string]string
	runs      map[string]string
}

// NewWatcher creates a watcher polling the namespace at the given
// interval.
func NewWatcher(cmd CmdRunner, namespace string, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Watcher{
		cmd:       cmd,
		namespace: namespace,
		interval:  interval,
		pods:      map[string]string{},
		workflows: map[string]string{},
		runs:      map[string]string{},
	}
}

func (w *Watcher) logf(format string, args ...any) {
	if w.Progress != nil {
		fmt.Fprintf(w.Progress, format+"\n", args...)
	}
}

// Watch starts polling and returns the event channel. The channel is
// closed when the context is cancelled.
func (w *Watcher) Watch(ctx context.Context) <-chan Event {
	events := make(chan Event, 64)
	go func() {
		defer close(events)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.poll(ctx, events)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.poll(ctx, events)
			}
		}
	}()
	return events
}

func (w *Watcher) poll(ctx context.Context, events chan<- Event) {
	w.pollPods(ctx, events)
	w.pollWorkflows(ctx, events)
	w.pollRuns(ctx, events)
	send(ctx, events, Event{Type: ReviewUpdate})
}

// podList mirrors the fields of `kubectl get pods -o json` the watcher
// reads.
type podList struct {
	Items []struct {
		Metadata struct {
			Name   string            `json:"name"`
			Labels map[string]string `json:"labels"`
		} `json:"metadata"`
		Status struct {
			Phase             string `json:"phase"`
			StartTime         string `json:"startTime"`
			ContainerStatuses []struct {
				Name         string `json:"name"`
				RestartCount int    `json:"restartCount"`
				State        struct {
					Waiting *struct {
						Reason string `json:"reason"`
					} `json:"waiting"`
					Running    *struct{} `json:"running"`
					Terminated *struct {
						ExitCode int    `json:"exitCode"`
						Reason   string `json:"reason"`
					} `json:"terminated"`
				} `json:"state"`
			} `json:"containerStatuses"`
		} `json:"status"`
	} `json:"items"`
}

func (w *Watcher) pollPods(ctx context.Context, events chan<- Event) {
	out, err := w.cmd.Run("get", "pods", "-n", w.namespace, "-o", "json")
	if err != nil {
		w.logf("warning: pod poll failed: %v", err)
		return
	}
	var list podList
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		w.logf("warning: pod poll parse failed: %v", err)
		return
	}

	seen := map[string]string{}
	for _, item := range list.Items {
		pod := &Pod{
			Name:      item.Metadata.Name,
			Namespace: w.namespace,
			Phase:     item.Status.Phase,
			Labels:    item.Metadata.Labels,
			StartedAt: ParseTimestamp(item.Status.StartTime),
		}
		for _, cs := range item.Status.ContainerStatuses {
			status := ContainerStatus{Name: cs.Name, RestartCount: cs.RestartCount}
			switch {
			case cs.State.Terminated != nil:
				status.State = ContainerTerminated
				status.ExitCode = cs.State.Terminated.ExitCode
				status.Reason = cs.State.Terminated.Reason
			case cs.State.Running != nil:
				status.State = ContainerRunning
			default:
				status.State = ContainerWaiting
				if cs.State.Waiting != nil {
					status.Reason = cs.State.Waiting.Reason
				}
			}
			pod.Containers = append(pod.Containers, status)
		}

		seen[pod.Name] = pod.Phase
		prev, known := w.pods[pod.Name]

		switch {
		case !known && pod.Phase == "Running":
			send(ctx, events, Event{Type: PodRunning, Pod: pod})
		case known && prev != pod.Phase:
			send(ctx, events, Event{Type: phaseEvent(pod.Phase), Pod: pod})
		case known && pod.Phase == "Running":
			send(ctx, events, Event{Type: PodModified, Pod: pod})
		}
	}
	w.pods = seen
}

func phaseEvent(phase string) EventType {
	switch phase {
	case "Succeeded":
		return PodSucceeded
	case "Failed", "Error":
		return PodFailed
	case "Running":
		return PodRunning
	default:
		return PodModified
	}
}

// resourceList mirrors the metadata/status fields shared by workflow
// and AgentRun listings.
type resourceList struct {
	Items []struct {
		Metadata struct {
			Name   string            `json:"name"`
			Labels map[string]string `json:"labels"`
		} `json:"metadata"`
		Status struct {
			Phase      string `json:"phase"`
			StartedAt  string `json:"startedAt"`
			FinishedAt string `json:"finishedAt"`
		} `json:"status"`
	} `json:"items"`
}

func (w *Watcher) pollWorkflows(ctx context.Context, events chan<- Event) {
	out, err := w.cmd.Run("get", "workflows", "-n", w.namespace, "-o", "json")
	if err != nil {
		// The workflow CRD may not be installed.
		return
	}
	var list resourceList
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		w.logf("warning: workflow poll parse failed: %v", err)
		return
	}

	seen := map[string]string{}
	for _, item := range list.Items {
		if !strings.HasPrefix(item.Metadata.Name, WorkflowPrefix) {
			continue
		}
		seen[item.Metadata.Name] = item.Status.Phase
		if prev, known := w.workflows[item.Metadata.Name]; !known || prev != item.Status.Phase {
			send(ctx, events, Event{Type: WorkflowPhaseChanged, Workflow: &Workflow{
				Name:       item.Metadata.Name,
				Namespace:  w.namespace,
				Phase:      item.Status.Phase,
				StartedAt:  ParseTimestamp(item.Status.StartedAt),
				FinishedAt: ParseTimestamp(item.Status.FinishedAt),
			}})
		}
	}
	w.workflows = seen
}

func (w *Watcher) pollRuns(ctx context.Context, events chan<- Event) {
	out, err := w.cmd.Run("get", "agentruns", "-n", w.namespace, "-o", "json")
	if err != nil {
		// The AgentRun CRD may not be installed.
		return
	}
	var list resourceList
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		w.logf("warning: agentrun poll parse failed: %v", err)
		return
	}

	seen := map[string]string{}
	for _, item := range list.Items {
		seen[item.Metadata.Name] = item.Status.Phase
		prev, known := w.runs[item.Metadata.Name]
		// Non-terminal runs re-emit every poll so dwell-based
		// detectors observe them aging.
		run := &AgentRun{
			Name:      item.Metadata.Name,
			Namespace: w.namespace,
			Phase:     item.Status.Phase,
			Agent:     item.Metadata.Labels["agent"],
			TaskID:    item.Metadata.Labels["task-id"],
			Labels:    item.Metadata.Labels,
		}
		if !known || prev != item.Status.Phase || !run.TerminalPhase() {
			send(ctx, events, Event{Type: AgentRunChanged, Run: run})
		}
	}
	w.runs = seen
}

func send(ctx context.Context, events chan<- Event, ev Event) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}
