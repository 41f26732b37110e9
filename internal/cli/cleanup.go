package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/5dlabs/healer/internal/batch"
	"github.com/5dlabs/healer/internal/cluster"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete the batch's state records, remediation runs and workflows",
	Long: `Cleanup removes the cluster resources left behind by a finished batch:
task state records, remediation agent runs and batch workflows.

It refuses to touch a batch with tasks still in progress unless --force
is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		h := cfg.Healer

		kube := cluster.NewClient(&cluster.ExecRunner{}, h.Namespace)
		records, err := kube.ListStateRecords()
		if err != nil {
			return err
		}

		b := batch.Load(records, h.Namespace)
		force, _ := cmd.Flags().GetBool("force")

		cleaner := &batch.Cleaner{API: kube, Progress: cmd.ErrOrStderr()}
		report, err := cleaner.Cleanup(b, force)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Cleanup complete: %s\n", report)
		return nil
	},
}

func init() {
	cleanupCmd.Flags().Bool("force", false, "clean up even if tasks are still running")
}
