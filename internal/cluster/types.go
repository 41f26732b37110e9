// Package cluster defines the normalized event stream and resource
// snapshots the healer consumes from Kubernetes, plus a thin kubectl
// client for the destructive and log-fetching operations.
package cluster

import "time"

// EventType discriminates Event variants.
type EventType int

const (
	// PodRunning: a pod entered the Running phase.
	PodRunning EventType = iota
	// PodModified: a pod changed in place.
	PodModified
	// PodSucceeded: a pod finished successfully.
	PodSucceeded
	// PodFailed: a pod failed.
	PodFailed
	// WorkflowPhaseChanged: a workflow moved to a new phase.
	WorkflowPhaseChanged
	// AgentRunChanged: an AgentRun resource changed.
	AgentRunChanged
	// ReviewUpdate: the PR snapshot was refreshed by the poller.
	ReviewUpdate
)

func (t EventType) String() string {
	switch t {
	case PodRunning:
		return "pod-running"
	case PodModified:
		return "pod-modified"
	case PodSucceeded:
		return "pod-succeeded"
	case PodFailed:
		return "pod-failed"
	case WorkflowPhaseChanged:
		return "workflow-phase-changed"
	case AgentRunChanged:
		return "agent-run-changed"
	case ReviewUpdate:
		return "review-update"
	default:
		return "unknown"
	}
}

// Event is one normalized occurrence delivered by the watch layer.
// Exactly one of Pod, Workflow, Run is set, depending on Type;
// ReviewUpdate events carry none of them.
type Event struct {
	Type     EventType
	Pod      *Pod
	Workflow *Workflow
	Run      *AgentRun
}

// Pod is a simplified pod snapshot.
type Pod struct {
	Name       string
	Namespace  string
	Phase      string
	Labels     map[string]string
	Containers []ContainerStatus
	StartedAt  time.Time
}

// Agent returns the value of the "agent" label, or "".
func (p *Pod) Agent() string {
	if p == nil {
		return ""
	}
	return p.Labels["agent"]
}

// TaskID returns the value of the "task-id" label, or "".
func (p *Pod) TaskID() string {
	if p == nil {
		return ""
	}
	return p.Labels["task-id"]
}

// ContainerStatus describes one container within a pod.
type ContainerStatus struct {
	Name         string
	State        ContainerState
	ExitCode     int
	Reason       string
	RestartCount int
}

// ContainerState is the coarse container lifecycle state.
type ContainerState int

const (
	// ContainerWaiting: the container has not started.
	ContainerWaiting ContainerState = iota
	// ContainerRunning: the container is running.
	ContainerRunning
	// ContainerTerminated: the container exited; ExitCode/Reason apply.
	ContainerTerminated
)

// Workflow is a simplified workflow snapshot.
type Workflow struct {
	Name       string
	Namespace  string
	Phase      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// AgentRun is a simplified snapshot of the custom resource that
// represents one agent execution.
type AgentRun struct {
	Name      string
	Namespace string
	Phase     string
	Agent     string
	TaskID    string
	Labels    map[string]string
}

// TerminalPhase reports whether the run has finished, one way or the other.
func (r *AgentRun) TerminalPhase() bool {
	return r != nil && (r.Phase == "Succeeded" || r.Phase == "Failed")
}

// StateRecord is one persisted per-task state record (a ConfigMap in
// practice). Data keys the healer reads: stage, status, error,
// last-updated, pr-number, workflow-name, run-name, repository.
type StateRecord struct {
	Name string
	Data map[string]string
}
