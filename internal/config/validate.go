package config

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a HealerConfig for structural and semantic errors.
// It returns a slice of all validation errors found (empty if valid).
func Validate(cfg *HealerConfig) []ValidationError {
	var errs []ValidationError
	h := cfg.Healer

	if h.Namespace == "" {
		errs = append(errs, ValidationError{Field: "healer.namespace", Message: "is required"})
	}
	if h.Repository == "" {
		errs = append(errs, ValidationError{Field: "healer.repository", Message: "is required"})
	} else if parts := strings.Split(h.Repository, "/"); len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		errs = append(errs, ValidationError{
			Field:   "healer.repository",
			Message: fmt.Sprintf("%q is not in owner/name form", h.Repository),
		})
	}

	if d, err := time.ParseDuration(h.PollInterval); err != nil {
		errs = append(errs, ValidationError{
			Field:   "healer.poll_interval",
			Message: fmt.Sprintf("%q is not a duration", h.PollInterval),
		})
	} else if d < time.Second {
		errs = append(errs, ValidationError{
			Field:   "healer.poll_interval",
			Message: "must be at least 1s",
		})
	}

	if h.Web.Enabled && h.Web.Addr == "" {
		errs = append(errs, ValidationError{Field: "healer.web.addr", Message: "is required when web is enabled"})
	}

	a := h.Alerts
	for _, check := range []struct {
		field string
		value int
	}{
		{"healer.alerts.stale_progress_mins", a.StaleProgressMins},
		{"healer.alerts.approval_loop_threshold", a.ApprovalLoopThreshold},
		{"healer.alerts.stuck_run_mins", a.StuckRunMins},
		{"healer.alerts.step_timeouts.implementation_mins", a.StepTimeouts.ImplementationMins},
		{"healer.alerts.step_timeouts.quality_mins", a.StepTimeouts.QualityMins},
		{"healer.alerts.step_timeouts.security_mins", a.StepTimeouts.SecurityMins},
		{"healer.alerts.step_timeouts.testing_mins", a.StepTimeouts.TestingMins},
		{"healer.alerts.step_timeouts.integration_mins", a.StepTimeouts.IntegrationMins},
		{"healer.alerts.step_timeouts.default_mins", a.StepTimeouts.DefaultMins},
	} {
		if check.value <= 0 {
			errs = append(errs, ValidationError{Field: check.field, Message: "must be positive"})
		}
	}

	return errs
}
