package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/5dlabs/healer/internal/alerts"
)

// Load reads and parses a healer configuration from the given YAML file
// path. After parsing, it fills unset fields with defaults.
func Load(path string) (*HealerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg HealerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault searches for a healer config in standard locations and
// loads the first one found. Search order: ./healer.yaml,
// ~/.healer/config.yaml. When none exists the default configuration is
// returned.
func LoadDefault() (*HealerConfig, error) {
	candidates := []string{"healer.yaml"}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".healer", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	cfg := &HealerConfig{}
	applyDefaults(cfg)
	return cfg, nil
}

// applyDefaults fills unset fields. Alert thresholds at zero get the
// standard values; partial step timeout overrides keep the rest of the
// defaults.
func applyDefaults(cfg *HealerConfig) {
	h := &cfg.Healer
	def := alerts.DefaultConfig()

	if h.Namespace == "" {
		h.Namespace = "agent-platform"
	}
	if h.PollInterval == "" {
		h.PollInterval = "30s"
	}
	if h.Web.Addr == "" {
		h.Web.Addr = ":8080"
	}

	a := &h.Alerts
	if a.StaleProgressMins == 0 {
		a.StaleProgressMins = def.StaleProgressMins
	}
	if a.ApprovalLoopThreshold == 0 {
		a.ApprovalLoopThreshold = def.ApprovalLoopThreshold
	}
	if a.StuckRunMins == 0 {
		a.StuckRunMins = def.StuckRunMins
	}

	st := &a.StepTimeouts
	defSt := def.StepTimeouts
	if st.ImplementationMins == 0 {
		st.ImplementationMins = defSt.ImplementationMins
	}
	if st.QualityMins == 0 {
		st.QualityMins = defSt.QualityMins
	}
	if st.SecurityMins == 0 {
		st.SecurityMins = defSt.SecurityMins
	}
	if st.TestingMins == 0 {
		st.TestingMins = defSt.TestingMins
	}
	if st.IntegrationMins == 0 {
		st.IntegrationMins = defSt.IntegrationMins
	}
	if st.DefaultMins == 0 {
		st.DefaultMins = defSt.DefaultMins
	}
}
