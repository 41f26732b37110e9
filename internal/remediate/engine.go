// Package remediate diagnoses failed tasks and spawns fix runs.
//
// The engine gathers evidence (pod or workflow logs, PR state), matches
// it against a pattern table to classify the root cause, and for code
// issues applies an AgentRun manifest that puts a fixer agent on the
// problem. Non-code diagnoses are surfaced to the operator instead of
// auto-spawned.
package remediate

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/5dlabs/healer/internal/batch"
	"github.com/5dlabs/healer/internal/github"
)

// Category classifies the root cause of a failure.
type Category int

const (
	// Unknown: no pattern matched; needs a human.
	Unknown Category = iota
	// CodeIssue: failing tests, lint errors, broken imports. The only
	// category the engine fixes autonomously.
	CodeIssue
	// PromptIssue: the agent misunderstood its instructions.
	PromptIssue
	// InfraIssue: auth failures, timeouts, cluster trouble.
	InfraIssue
	// GitIssue: merge conflicts and other repository state problems.
	GitIssue
)

func (c Category) String() string {
	switch c {
	case CodeIssue:
		return "CodeIssue"
	case PromptIssue:
		return "PromptIssue"
	case InfraIssue:
		return "InfraIssue"
	case GitIssue:
		return "GitIssue"
	default:
		return "Unknown"
	}
}

// Diagnosis is the engine's conclusion about a failure.
type Diagnosis struct {
	Summary      string
	Category     Category
	SuggestedFix string

	// RelevantFiles are the files the fixer should examine, taken from
	// the failed run's artifact trail.
	RelevantFiles []string
}

// DiagnosisContext is the evidence a diagnosis works from.
type DiagnosisContext struct {
	Logs        string
	AgentOutput string
	PR          *github.PRState

	// CIResults summarizes the PR's check rollup, "" when no PR or no
	// checks reported yet.
	CIResults string

	// CodeSnippets are per-file change summaries from the trail.
	CodeSnippets []string

	// Trail is the failed run's artifact trail, nil when unavailable.
	Trail *ArtifactTrail

	// Probes test what context the agent retained before it failed.
	Probes []EvaluationProbe
}

// LogSource fetches logs and workspace files from the cluster.
type LogSource interface {
	PodLogs(name string, tail int) (string, error)
	WorkflowLogs(name string, tail int) (string, error)
	ReadPodFile(name, path string) (string, error)
}

// PRViewer fetches pull request state.
type PRViewer interface {
	FetchPRState(number int) (*github.PRState, error)
}

// Spawner applies Kubernetes manifests.
type Spawner interface {
	Apply(manifest string) error
}

const logTail = 100

// timeNow is stubbed in tests.
var timeNow = time.Now

// Engine gathers context, diagnoses failures and spawns fix runs.
type Engine struct {
	Logs       LogSource
	PRs        PRViewer
	Cluster    Spawner
	Namespace  string
	Repository string

	// Progress, when non-nil, receives human-readable updates.
	Progress io.Writer

	// newID overrides run name generation in tests.
	newID func() string
}

// NewEngine creates an engine wired to the given cluster and GitHub
// accessors.
func NewEngine(logs LogSource, prs PRViewer, spawner Spawner, namespace, repository string) *Engine {
	return &Engine{
		Logs:       logs,
		PRs:        prs,
		Cluster:    spawner,
		Namespace:  namespace,
		Repository: repository,
	}
}

func (e *Engine) logf(format string, args ...any) {
	if e.Progress != nil {
		fmt.Fprintf(e.Progress, format+"\n", args...)
	}
}

// GatherContext collects evidence for diagnosing an issue. Every fetch
// is best effort; a context with empty fields is still diagnosable (it
// lands on Unknown).
func (e *Engine) GatherContext(issue batch.Issue, b *batch.Batch) DiagnosisContext {
	ctx := DiagnosisContext{AgentOutput: issue.Description()}

	task := b.Task(issue.TaskID)
	if task == nil {
		return ctx
	}

	if task.ActiveRun != "" {
		logs, err := e.Logs.PodLogs(task.ActiveRun, logTail)
		if err != nil {
			e.logf("warning: pod logs for %s unavailable: %v", task.ActiveRun, err)
		}
		ctx.Logs = logs

		if raw, err := e.Logs.ReadPodFile(task.ActiveRun, TrailPath); err == nil {
			var trail ArtifactTrail
			if json.Unmarshal([]byte(raw), &trail) == nil {
				ctx.Trail = &trail
			}
		}
	}
	if ctx.Logs == "" && task.WorkflowName != "" {
		logs, err := e.Logs.WorkflowLogs(task.WorkflowName, logTail)
		if err != nil {
			e.logf("warning: workflow logs for %s unavailable: %v", task.WorkflowName, err)
		}
		ctx.Logs = logs
	}

	if task.PRNumber > 0 {
		pr, err := e.PRs.FetchPRState(task.PRNumber)
		if err != nil {
			e.logf("warning: PR #%d state unavailable: %v", task.PRNumber, err)
		}
		ctx.PR = pr
	}
	if ctx.PR != nil {
		ctx.CIResults = summarizeChecks(ctx.PR.Checks)
	}

	ctx.CodeSnippets = ctx.Trail.Snippets()
	ctx.Probes = GenerateProbes(ctx.Trail)

	return ctx
}

// summarizeChecks reduces a PR's check rollup to one diagnosable line.
func summarizeChecks(checks []github.Check) string {
	if len(checks) == 0 {
		return ""
	}
	var failing []string
	for _, c := range checks {
		if c.Conclusion == "FAILURE" {
			failing = append(failing, c.Name)
		}
	}
	if len(failing) == 0 {
		return "all checks passing"
	}
	return fmt.Sprintf("%d check(s) failing: %s", len(failing), strings.Join(failing, ", "))
}

// diagnosisRule maps log/output evidence to a diagnosis. Rules are
// checked in order; the first match wins.
type diagnosisRule struct {
	match func(logs, output string) bool
	d     Diagnosis
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

var diagnosisRules = []diagnosisRule{
	{
		match: func(logs, output string) bool {
			return containsAny(logs, "merge conflict", "CONFLICT") || strings.Contains(output, "conflict")
		},
		d: Diagnosis{
			Category:     GitIssue,
			Summary:      "Git merge conflict detected",
			SuggestedFix: "Add pre-commit rebase step or conflict resolution logic",
		},
	},
	{
		match: func(logs, _ string) bool {
			return containsAny(logs, "authentication", "401", "403")
		},
		d: Diagnosis{
			Category:     InfraIssue,
			Summary:      "Authentication/authorization error",
			SuggestedFix: "Check credentials and permissions",
		},
	},
	{
		match: func(logs, _ string) bool {
			return containsAny(logs, "timeout", "timed out")
		},
		d: Diagnosis{
			Category:     InfraIssue,
			Summary:      "Operation timed out",
			SuggestedFix: "Increase timeout or optimize operation",
		},
	},
	{
		match: func(logs, _ string) bool {
			return strings.Contains(logs, "import") && strings.Contains(logs, "error")
		},
		d: Diagnosis{
			Category:     CodeIssue,
			Summary:      "Import/dependency error",
			SuggestedFix: "Add missing imports or dependencies",
		},
	},
	{
		match: func(logs, _ string) bool {
			return strings.Contains(logs, "test") && strings.Contains(logs, "fail")
		},
		d: Diagnosis{
			Category:     CodeIssue,
			Summary:      "Test failure",
			SuggestedFix: "Fix failing tests or update test expectations",
		},
	},
	{
		match: func(logs, _ string) bool {
			return containsAny(logs, "lint", "vet")
		},
		d: Diagnosis{
			Category:     CodeIssue,
			Summary:      "Lint/style error",
			SuggestedFix: "Fix lint errors in the code",
		},
	},
	{
		match: func(_, output string) bool {
			return containsAny(output, "misunderstood", "wrong approach", "ignored instructions")
		},
		d: Diagnosis{
			Category:     PromptIssue,
			Summary:      "Agent deviated from its instructions",
			SuggestedFix: "Tighten the agent prompt for this stage",
		},
	},
}

// Diagnose classifies the evidence. Failing CI checks count as log
// evidence, so a clean pod log with a red rollup still lands on a code
// issue. Unmatched evidence yields Unknown.
func (e *Engine) Diagnose(ctx DiagnosisContext) Diagnosis {
	logs := ctx.Logs
	if ctx.CIResults != "" && ctx.CIResults != "all checks passing" {
		logs += "\nCI checks: " + ctx.CIResults
	}

	d := Diagnosis{
		Category:     Unknown,
		Summary:      "Unknown issue - needs investigation",
		SuggestedFix: "Investigate logs and agent output for root cause",
	}
	for _, rule := range diagnosisRules {
		if rule.match(logs, ctx.AgentOutput) {
			d = rule.d
			break
		}
	}
	d.RelevantFiles = ctx.Trail.RelevantFiles()
	return d
}

// SpawnFix applies an AgentRun that puts a fixer agent on the diagnosed
// issue and returns the run name. Runs are labeled with the task ID so
// they can be cancelled later.
func (e *Engine) SpawnFix(taskID string, d Diagnosis) (string, error) {
	id := e.newID
	if id == nil {
		id = shortID
	}
	name := "healer-fix-" + id()

	manifest := buildRunManifest(name, e.Namespace, e.Repository, taskID, d)
	if err := e.Cluster.Apply(manifest); err != nil {
		return "", fmt.Errorf("spawning fix run %s: %w", name, err)
	}

	e.logf("spawned fix run %s for task %s (%s)", name, taskID, d.Category)
	return name, nil
}

func shortID() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

func buildRunManifest(name, namespace, repository, taskID string, d Diagnosis) string {
	files := ""
	if len(d.RelevantFiles) > 0 {
		files = "\n## Relevant Files\n- " + strings.Join(d.RelevantFiles, "\n- ") + "\n"
	}

	prompt := fmt.Sprintf(`You are Healer, fixing an issue in the agent platform.

## Diagnosis
Summary: %s
Category: %s
Suggested Fix: %s
%s
## Instructions
1. Investigate the root cause based on the diagnosis
2. Write a fix for the issue (code, config, or prompt change)
3. Create a PR with the fix
4. Include clear commit message and PR description

Do NOT just restart or retry - fix the underlying issue in code.`,
		d.Summary, d.Category, d.SuggestedFix, files)

	var indented strings.Builder
	for _, line := range strings.Split(prompt, "\n") {
		indented.WriteString("    ")
		indented.WriteString(line)
		indented.WriteString("\n")
	}

	return fmt.Sprintf(`apiVersion: cto.5dlabs.io/v1alpha1
kind: AgentRun
metadata:
  name: %s
  namespace: %s
  labels:
    app.kubernetes.io/name: healer
    app.kubernetes.io/component: remediation
    task-id: '%s'
spec:
  cli: claude
  model: sonnet
  githubApp: cto-healer
  repository: %s
  workingDir: /workspace
  prompt: |
%s`, name, namespace, taskID, repository, indented.String())
}

// Remediate runs the full gather/diagnose/spawn flow for one issue and
// attaches the resulting record to the task. Only code issues spawn a
// fix run; other categories are reported and left to the operator. The
// task's at-most-one-remediation rule is enforced by SetRemediation.
func (e *Engine) Remediate(issue batch.Issue, b *batch.Batch) (*Diagnosis, error) {
	task := b.Task(issue.TaskID)
	if task == nil {
		return nil, fmt.Errorf("task %s not found in batch", issue.TaskID)
	}
	if task.HasActiveRemediation() {
		return nil, fmt.Errorf("task %s: %w", task.TaskID, batch.ErrRemediationActive)
	}

	ctx := e.GatherContext(issue, b)
	d := e.Diagnose(ctx)
	e.logf("task %s diagnosed as %s: %s", task.TaskID, d.Category, d.Summary)

	if d.Category != CodeIssue {
		e.logf("task %s: %s is not auto-remediable, operator attention needed", task.TaskID, d.Category)
		return &d, nil
	}

	name, err := e.SpawnFix(task.TaskID, d)
	if err != nil {
		return &d, err
	}
	if err := task.SetRemediation(batch.RemediationRecord{
		RunName:   name,
		Diagnosis: d.Summary,
		StartedAt: timeNow(),
	}); err != nil {
		return &d, err
	}
	task.ActiveRun = name
	return &d, nil
}
