// Package alerts implements the healer's anomaly detection: a registry
// of independent detectors evaluated against each cluster event and the
// current pull-request snapshot.
//
// Detectors are stateless and total: absent or ambiguous input yields no
// alert, never an error. The only state a detector may consult is the
// RunTracker threaded through the evaluation context.
package alerts

import (
	"sort"
	"strings"
	"time"

	"github.com/5dlabs/healer/internal/cluster"
	"github.com/5dlabs/healer/internal/github"
)

// Severity of a detected anomaly.
type Severity int

const (
	Info Severity = iota
	Warning
	Critical
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// Alert is a detected anomaly. Alerts are handed to the notifier and
// logged; the healer never stores them beyond the evaluation that
// produced them.
type Alert struct {
	Detector   string
	Message    string
	Severity   Severity
	Context    map[string]string
	DetectedAt time.Time
}

// New creates a Warning alert for the given detector.
func New(detector, message string) *Alert {
	return &Alert{
		Detector:   detector,
		Message:    message,
		Severity:   Warning,
		Context:    map[string]string{},
		DetectedAt: time.Now().UTC(),
	}
}

// WithSeverity overrides the severity.
func (a *Alert) WithSeverity(s Severity) *Alert {
	a.Severity = s
	return a
}

// WithContext attaches one context key/value pair.
func (a *Alert) WithContext(key, value string) *Alert {
	a.Context[key] = value
	return a
}

// StepTimeouts holds the per-agent-role pod runtime thresholds, in
// minutes. These are deliberately separate from the universal 30-minute
// stage dwell rule: pod-level and stage-level timeouts are independent
// checks.
type StepTimeouts struct {
	ImplementationMins int `yaml:"implementation_mins"`
	QualityMins        int `yaml:"quality_mins"`
	SecurityMins       int `yaml:"security_mins"`
	TestingMins        int `yaml:"testing_mins"`
	IntegrationMins    int `yaml:"integration_mins"`
	DefaultMins        int `yaml:"default_mins"`
}

// Config holds detector thresholds.
type Config struct {
	// Minutes without a new commit before stale-progress fires.
	StaleProgressMins int `yaml:"stale_progress_mins"`
	// Approval comments per author before approval-loop fires.
	ApprovalLoopThreshold int `yaml:"approval_loop_threshold"`
	// Minutes before a non-terminal AgentRun counts as stuck.
	StuckRunMins int `yaml:"stuck_run_mins"`
	// Per-role pod runtime thresholds.
	StepTimeouts StepTimeouts `yaml:"step_timeouts"`
}

// DefaultConfig returns the production threshold defaults.
func DefaultConfig() Config {
	return Config{
		StaleProgressMins:     15,
		ApprovalLoopThreshold: 2,
		StuckRunMins:          30,
		StepTimeouts: StepTimeouts{
			ImplementationMins: 45,
			QualityMins:        15,
			SecurityMins:       15,
			TestingMins:        30,
			IntegrationMins:    20,
			DefaultMins:        60,
		},
	}
}

// Context is the shared input every detector receives alongside the
// event and PR snapshot.
type Context struct {
	TaskID       string
	Repository   string
	Namespace    string
	PRNumber     int
	WorkflowName string
	Config       Config
	// Runs is threaded in explicitly so tests and concurrent batches
	// never share hidden tracker state.
	Runs *RunTracker
}

// Detector evaluates one failure signature. Implementations must be
// stateless and must return nil (not an error) for input they cannot
// judge.
type Detector interface {
	ID() string
	Evaluate(event cluster.Event, pr *github.PRState, ctx *Context) *Alert
}

// Registry holds detectors keyed by their stable identifier.
type Registry struct {
	detectors map[string]Detector
}

// NewRegistry creates a registry with every built-in detector enabled.
func NewRegistry() *Registry {
	r := &Registry{detectors: map[string]Detector{}}
	for _, d := range []Detector{
		CommentOrder{},
		SilentFailure{},
		StaleProgress{},
		ApprovalLoop{},
		PostApprovalCI{},
		PodFailure{},
		StepTimeout{},
		StuckRun{},
		Completion{},
	} {
		r.Register(d)
	}
	return r
}

// Register adds or replaces a detector under its ID.
func (r *Registry) Register(d Detector) {
	r.detectors[d.ID()] = d
}

// Detector returns the detector registered under id, or nil.
func (r *Registry) Detector(id string) Detector {
	return r.detectors[id]
}

// IDs returns the registered detector identifiers, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.detectors))
	for id := range r.detectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Evaluate runs every detector against the event and returns the alerts
// raised, in detector-ID order.
func (r *Registry) Evaluate(event cluster.Event, pr *github.PRState, ctx *Context) []*Alert {
	var alerts []*Alert
	for _, id := range r.IDs() {
		if a := r.detectors[id].Evaluate(event, pr, ctx); a != nil {
			alerts = append(alerts, a)
		}
	}
	return alerts
}

// excludedPodPrefixes names infrastructure pods that restart during
// deployments and must not trigger timeout, failure, or completion
// checks.
var excludedPodPrefixes = []string{
	"healer",
	"cto-tools",
	"cto-controller",
	"vault-mcp-server",
	"openmemory",
	"event-cleaner",
	"workspace-pvc-cleaner",
}

// ExcludedPod reports whether a pod name belongs to the infrastructure
// exclusion list.
func ExcludedPod(name string) bool {
	for _, prefix := range excludedPodPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// eventPod returns the pod carried by running/modified pod events.
func eventPod(event cluster.Event) *cluster.Pod {
	switch event.Type {
	case cluster.PodRunning, cluster.PodModified:
		return event.Pod
	default:
		return nil
	}
}
