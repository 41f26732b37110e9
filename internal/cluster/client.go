package cluster

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"
)

// StateRecordPrefix is the name prefix of per-task state records.
const StateRecordPrefix = "play-task-"

// WorkflowPrefix is the name prefix of batch-scoped workflows.
const WorkflowPrefix = "play-"

// RemediationSelector matches AgentRuns spawned by the healer.
const RemediationSelector = "app.kubernetes.io/name=healer"

// CmdRunner provides command execution. Interface for testing.
type CmdRunner interface {
	Run(args ...string) (string, error)
	RunInput(input string, args ...string) (string, error)
}

// ExecRunner runs kubectl commands via exec.
type ExecRunner struct{}

func (r *ExecRunner) Run(args ...string) (string, error) {
	cmd := exec.Command("kubectl", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return strings.TrimSpace(string(out)), fmt.Errorf("kubectl %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(string(out)), err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (r *ExecRunner) RunInput(input string, args ...string) (string, error) {
	cmd := exec.Command("kubectl", args...)
	cmd.Stdin = strings.NewReader(input)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return strings.TrimSpace(string(out)), fmt.Errorf("kubectl %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(string(out)), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Client provides cluster operations scoped to one namespace.
type Client struct {
	cmd       CmdRunner
	namespace string
}

// NewClient creates a cluster client for the given namespace.
func NewClient(cmd CmdRunner, namespace string) *Client {
	return &Client{cmd: cmd, namespace: namespace}
}

// Namespace returns the namespace this client operates in.
func (c *Client) Namespace() string {
	return c.namespace
}

// configMapList mirrors the fields of `kubectl get configmaps -o json`
// the healer reads.
type configMapList struct {
	Items []struct {
		Metadata struct {
			Name string `json:"name"`
		} `json:"metadata"`
		Data map[string]string `json:"data"`
	} `json:"items"`
}

// ListStateRecords returns all per-task state records in the namespace,
// sorted by name.
func (c *Client) ListStateRecords() ([]StateRecord, error) {
	out, err := c.cmd.Run("get", "configmaps", "-n", c.namespace, "-o", "json")
	if err != nil {
		return nil, fmt.Errorf("list state records: %w", err)
	}

	var list configMapList
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		return nil, fmt.Errorf("parse state records: %w", err)
	}

	var records []StateRecord
	for _, item := range list.Items {
		if !strings.HasPrefix(item.Metadata.Name, StateRecordPrefix) {
			continue
		}
		records = append(records, StateRecord{Name: item.Metadata.Name, Data: item.Data})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	return records, nil
}

// DeleteStateRecord deletes one per-task state record.
func (c *Client) DeleteStateRecord(name string) error {
	_, err := c.cmd.Run("delete", "configmap", name, "-n", c.namespace, "--ignore-not-found")
	if err != nil {
		return fmt.Errorf("delete state record %s: %w", name, err)
	}
	return nil
}

// ListRemediationRuns returns the names of AgentRuns spawned by the
// healer. A missing CRD is treated as no runs, not an error.
func (c *Client) ListRemediationRuns() []string {
	out, err := c.cmd.Run("get", "agentruns", "-n", c.namespace, "-l", RemediationSelector, "-o", "name")
	if err != nil {
		return nil
	}
	return parseResourceNames(out)
}

// agentRunList mirrors the fields of `kubectl get agentruns -o json`
// the healer reads.
type agentRunList struct {
	Items []struct {
		Metadata struct {
			Name   string            `json:"name"`
			Labels map[string]string `json:"labels"`
		} `json:"metadata"`
		Status struct {
			Phase string `json:"phase"`
		} `json:"status"`
	} `json:"items"`
}

// ActiveRemediations returns a task-id to run-name map of healer fix
// runs that have not reached a terminal phase. A task in this map has
// a remediation in flight regardless of what the in-memory batch
// remembers, which is how remediation state survives process restarts.
// A missing CRD is treated as no runs.
func (c *Client) ActiveRemediations() map[string]string {
	out, err := c.cmd.Run("get", "agentruns", "-n", c.namespace, "-l", RemediationSelector, "-o", "json")
	if err != nil {
		return nil
	}

	var list agentRunList
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		return nil
	}

	active := map[string]string{}
	for _, item := range list.Items {
		taskID := item.Metadata.Labels["task-id"]
		if taskID == "" {
			continue
		}
		if item.Status.Phase == "Succeeded" || item.Status.Phase == "Failed" {
			continue
		}
		active[taskID] = item.Metadata.Name
	}
	return active
}

// DeleteRun deletes one AgentRun.
func (c *Client) DeleteRun(name string) error {
	_, err := c.cmd.Run("delete", "agentrun", name, "-n", c.namespace, "--ignore-not-found")
	if err != nil {
		return fmt.Errorf("delete agentrun %s: %w", name, err)
	}
	return nil
}

// ListBatchWorkflows returns the names of batch-scoped workflows.
// A missing CRD is treated as no workflows.
func (c *Client) ListBatchWorkflows() []string {
	out, err := c.cmd.Run("get", "workflows", "-n", c.namespace, "-o", "name")
	if err != nil {
		return nil
	}
	var names []string
	for _, n := range parseResourceNames(out) {
		if strings.HasPrefix(n, WorkflowPrefix) {
			names = append(names, n)
		}
	}
	return names
}

// DeleteWorkflow deletes one workflow.
func (c *Client) DeleteWorkflow(name string) error {
	_, err := c.cmd.Run("delete", "workflow", name, "-n", c.namespace, "--ignore-not-found")
	if err != nil {
		return fmt.Errorf("delete workflow %s: %w", name, err)
	}
	return nil
}

// PodLogs fetches the last tail lines from a pod, falling back to a
// name-label selector when the pod name alone does not resolve.
func (c *Client) PodLogs(name string, tail int) (string, error) {
	out, err := c.cmd.Run("logs", name, "-n", c.namespace, fmt.Sprintf("--tail=%d", tail))
	if err == nil {
		return out, nil
	}
	out, err = c.cmd.Run("logs", "-l", "app.kubernetes.io/name="+name, "-n", c.namespace, fmt.Sprintf("--tail=%d", tail))
	if err != nil {
		return "", fmt.Errorf("fetch logs for %s: %w", name, err)
	}
	return out, nil
}

// ReadPodFile reads one file from a running pod's filesystem.
func (c *Client) ReadPodFile(pod, path string) (string, error) {
	out, err := c.cmd.Run("exec", pod, "-n", c.namespace, "--", "cat", path)
	if err != nil {
		return "", fmt.Errorf("read %s from pod %s: %w", path, pod, err)
	}
	return out, nil
}

// WorkflowLogs fetches logs from all containers of a workflow's pods.
func (c *Client) WorkflowLogs(name string, tail int) (string, error) {
	out, err := c.cmd.Run(
		"logs", "-l", "workflows.argoproj.io/workflow="+name,
		"-n", c.namespace, fmt.Sprintf("--tail=%d", tail), "--all-containers",
	)
	if err != nil {
		return "", fmt.Errorf("fetch workflow logs for %s: %w", name, err)
	}
	return out, nil
}

// Apply applies a manifest to the cluster.
func (c *Client) Apply(manifest string) error {
	if _, err := c.cmd.RunInput(manifest, "apply", "-f", "-"); err != nil {
		return fmt.Errorf("apply manifest: %w", err)
	}
	return nil
}

// parseResourceNames strips "kind.group/" prefixes from `-o name` output.
func parseResourceNames(out string) []string {
	var names []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if i := strings.LastIndex(line, "/"); i >= 0 {
			line = line[i+1:]
		}
		names = append(names, line)
	}
	return names
}

// ParseTimestamp parses an RFC3339 timestamp from a state record,
// returning the zero time for absent or malformed values.
func ParseTimestamp(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
