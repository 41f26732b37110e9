// Package cli implements the healer command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/5dlabs/healer/internal/config"
)

var version = "dev"

// SetVersion sets the version string printed by the version command.
func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "healer",
	Short: "Self-healing monitor for agent batch runs",
	Long: `healer watches a batch of agent tasks running as cluster jobs, detects
known failure signatures (stalled stages, silent failures, approval
loops), diagnoses root causes from logs and PR state, and spawns fix
runs for code issues.

Configuration is read from ./healer.yaml or ~/.healer/config.yaml.`,
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to config file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(remediateCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig resolves the configuration for a command invocation.
func loadConfig(cmd *cobra.Command) (*config.HealerConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return config.Load(path)
	}
	return config.LoadDefault()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the healer version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "healer version %s\n", version)
	},
}
