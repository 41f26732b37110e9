package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/5dlabs/healer/internal/batch"
	"github.com/5dlabs/healer/internal/cluster"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show batch health from the cluster's task state records",
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
		summary := batch.Summarize(b)

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			data, _ := json.MarshalIndent(summary, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Batch: %s (%s)\n", b.Repository, h.Namespace)
		fmt.Fprintf(w, "Status: %s | %d/%d complete (%.0f%%)\n",
			summary.Status, summary.Completed, summary.Total, summary.Progress)
		fmt.Fprintf(w, "Running: %d  Stuck: %d  Failed: %d  Pending: %d\n",
			summary.Running, summary.Stuck, summary.Failed, summary.Pending)

		if len(b.Tasks) > 0 {
			fmt.Fprintf(w, "\n%-8s %-12s %-14s %-8s %s\n", "TASK", "PHASE", "STAGE", "PR", "DETAIL")
			fmt.Fprintf(w, "%s\n", strings.Repeat("-", 56))
			for _, t := range b.Tasks {
				stageStr, detail := "-", ""
				if st, ok := t.CurrentStage(); ok {
					stageStr = st.String()
					if d, ok := t.StageDuration(); ok {
						detail = fmt.Sprintf("%dm in stage", int(d.Minutes()))
					}
					if t.IsStuck() {
						detail += " (STUCK)"
					}
				} else if t.Status.Phase == batch.PhaseFailed {
					stageStr = t.Status.Stage.String()
					detail = t.Status.Reason
				}
				pr := "-"
				if t.PRNumber > 0 {
					pr = fmt.Sprintf("#%d", t.PRNumber)
				}
				fmt.Fprintf(w, "%-8s %-12s %-14s %-8s %s\n",
					t.TaskID, t.Status.Phase, stageStr, pr, detail)
			}
		}

		for _, issue := range summary.Issues {
			fmt.Fprintf(w, "\n! %s\n", issue)
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().String("format", "table", "output format (table|json)")
}
