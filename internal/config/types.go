package config

import (
	"time"

	"github.com/5dlabs/healer/internal/alerts"
)

// defaultPollInterval is used when poll_interval is unset or invalid.
const defaultPollInterval = 30 * time.Second

// HealerConfig is the top-level configuration structure parsed from
// healer YAML.
type HealerConfig struct {
	Healer Healer `yaml:"healer"`
}

// Healer defines the full healer setup: cluster scope, polling, alert
// thresholds, and the optional persistence and web surfaces.
type Healer struct {
	Namespace  string `yaml:"namespace"`
	Repository string `yaml:"repository"`

	// PollInterval is a Go duration string, e.g. "30s".
	PollInterval string `yaml:"poll_interval"`

	// DatabaseDSN enables Postgres persistence when set.
	DatabaseDSN string `yaml:"database_dsn"`

	Web    Web           `yaml:"web"`
	Alerts alerts.Config `yaml:"alerts"`

	// AutoRemediate controls whether diagnosed code issues spawn fix
	// runs without operator intervention.
	AutoRemediate bool `yaml:"auto_remediate"`
}

// Poll returns the parsed poll interval, falling back to the default
// for unset or malformed values. Validate reports the malformed case.
func (h Healer) Poll() time.Duration {
	d, err := time.ParseDuration(h.PollInterval)
	if err != nil || d <= 0 {
		return defaultPollInterval
	}
	return d
}

// Web configures the HTTP surface (health, summary API, metrics).
type Web struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}
