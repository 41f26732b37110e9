package remediate

import (
	"fmt"
	"sort"
)

// TrailPath is where the agent sidecar persists the artifact trail
// inside a run's workspace.
const TrailPath = "/workspace/artifact-trail.json"

// ArtifactTrail is the agent's own record of what it touched and
// decided during a run. It is best-effort evidence: absent for runs
// whose pod is gone or that never wrote one.
type ArtifactTrail struct {
	FilesCreated  []string          `json:"files_created"`
	FilesModified map[string]string `json:"files_modified"`
	FilesRead     []string          `json:"files_read"`
	Decisions     []string          `json:"decisions_made"`
}

// RelevantFiles returns the files the agent created or modified,
// created first, modified sorted by path.
func (t *ArtifactTrail) RelevantFiles() []string {
	if t == nil {
		return nil
	}
	files := append([]string(nil), t.FilesCreated...)
	modified := make([]string, 0, len(t.FilesModified))
	for f := range t.FilesModified {
		modified = append(modified, f)
	}
	sort.Strings(modified)
	return append(files, modified...)
}

// Snippets renders the trail's per-file change summaries, sorted by
// path.
func (t *ArtifactTrail) Snippets() []string {
	if t == nil || len(t.FilesModified) == 0 {
		return nil
	}
	paths := make([]string, 0, len(t.FilesModified))
	for f := range t.FilesModified {
		paths = append(paths, f)
	}
	sort.Strings(paths)
	snippets := make([]string, 0, len(paths))
	for _, f := range paths {
		snippets = append(snippets, fmt.Sprintf("%s: %s", f, t.FilesModified[f]))
	}
	return snippets
}

// ProbeType classifies what an evaluation probe tests.
type ProbeType string

const (
	// ProbeArtifact: does the agent still know what it changed.
	ProbeArtifact ProbeType = "artifact"
	// ProbeDecision: does the agent still know what it decided.
	ProbeDecision ProbeType = "decision"
	// ProbeContinuation: does the agent know its next step.
	ProbeContinuation ProbeType = "continuation"
	// ProbeAcceptance: does the agent know when it is done.
	ProbeAcceptance ProbeType = "acceptance"
)

// EvaluationProbe is one targeted question testing whether an agent
// retained critical context. Keywords are the terms an adequate answer
// mentions.
type EvaluationProbe struct {
	Type     ProbeType
	Question string
	Keywords []string
}

// GenerateProbes builds the standard probe set for a run from its
// artifact trail.
func GenerateProbes(trail *ArtifactTrail) []EvaluationProbe {
	var probes []EvaluationProbe
	if trail != nil {
		if len(trail.FilesModified) > 0 {
			files := make([]string, 0, len(trail.FilesModified))
			for f := range trail.FilesModified {
				files = append(files, f)
			}
			sort.Strings(files)
			probes = append(probes, EvaluationProbe{
				Type:     ProbeArtifact,
				Question: "Which files have you modified so far?",
				Keywords: files,
			})
		}
		if len(trail.FilesCreated) > 0 {
			probes = append(probes, EvaluationProbe{
				Type:     ProbeArtifact,
				Question: "What new files were created?",
				Keywords: trail.FilesCreated,
			})
		}
		if len(trail.Decisions) > 0 {
			probes = append(probes, EvaluationProbe{
				Type:     ProbeDecision,
				Question: "What key technical decisions have you made?",
				Keywords: trail.Decisions,
			})
		}
	}
	probes = append(probes,
		EvaluationProbe{Type: ProbeContinuation, Question: "What is your next step?"},
		EvaluationProbe{Type: ProbeAcceptance, Question: "What must be true for this task to be complete?"},
	)
	return probes
}
