package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/5dlabs/healer/internal/batch"
	"github.com/5dlabs/healer/internal/cluster"
	"github.com/5dlabs/healer/internal/github"
	"github.com/5dlabs/healer/internal/remediate"
)

var remediateCmd = &cobra.Command{
	Use:   "remediate <task-id>",
	Short: "Diagnose a failed task and spawn a fix run if the failure is a code issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		taskID := args[0]

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
		task := b.Task(taskID)
		if task == nil {
			return fmt.Errorf("task %s: no state record found in %s", taskID, h.Namespace)
		}

		var target *batch.Issue
		for _, issue := range batch.CheckHealth(b) {
			if issue.Kind == batch.IssueNeedsRemediation && issue.TaskID == taskID {
				found := issue
				target = &found
				break
			}
		}
		if target == nil {
			return fmt.Errorf("task %s does not need remediation (phase %s)", taskID, task.Status.Phase)
		}

		gh := github.NewClient(&github.ExecRunner{}, h.Repository)
		engine := remediate.NewEngine(kube, gh, kube, h.Namespace, h.Repository)
		engine.Progress = cmd.OutOrStdout()

		out := cmd.OutOrStdout()
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		if dryRun {
			d := engine.Diagnose(engine.GatherContext(*target, b))
			fmt.Fprintf(out, "Diagnosis: %s\n", d.Category)
			fmt.Fprintf(out, "Summary: %s\n", d.Summary)
			if d.SuggestedFix != "" {
				fmt.Fprintf(out, "Suggested fix: %s\n", d.SuggestedFix)
			}
			return nil
		}

		d, err := engine.Remediate(*target, b)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Diagnosis: %s\n", d.Category)
		fmt.Fprintf(out, "Summary: %s\n", d.Summary)
		if task.HasActiveRemediation() {
			fmt.Fprintf(out, "Spawned remediation run %s\n", task.Status.Remediation.RunName)
		} else {
			fmt.Fprintln(out, "No remediation spawned (only code issues are auto-fixed)")
		}
		return nil
	},
}

func init() {
	remediateCmd.Flags().Bool("dry-run", false, "diagnose only, do not spawn a fix run")
}
