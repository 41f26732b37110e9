package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/5dlabs/healer/internal/analytics"
	"github.com/5dlabs/healer/internal/db"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show alert and remediation statistics from the event log",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dsn := cfg.Healer.DatabaseDSN
		if dsn == "" {
			return fmt.Errorf("stats requires healer.database_dsn to be configured")
		}

		ctx := cmd.Context()
		store, err := db.Open(ctx, dsn)
		if err != nil {
			return err
		}
		defer store.Close()

		var since time.Time
		if window, _ := cmd.Flags().GetDuration("since"); window > 0 {
			since = time.Now().Add(-window)
		}

		alerts, err := analytics.QueryAlertFrequency(ctx, store, since)
		if err != nil {
			return err
		}
		remediations, err := analytics.QueryRemediationBreakdown(ctx, store, since)
		if err != nil {
			return err
		}
		latency, err := analytics.QueryResponseLatency(ctx, store, since)
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			out := map[string]interface{}{
				"alerts":       alerts,
				"remediations": remediations,
				"latency":      latency,
			}
			data, _ := json.MarshalIndent(out, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		w := cmd.OutOrStdout()
		fmt.Fprintln(w, "Alerts fired:")
		if len(alerts) == 0 {
			fmt.Fprintln(w, "  (none)")
		}
		for _, a := range alerts {
			fmt.Fprintf(w, "  %-24s %-10s %d\n", a.Detector, a.Severity, a.Count)
		}

		fmt.Fprintln(w, "\nRemediations by diagnosis:")
		if len(remediations) == 0 {
			fmt.Fprintln(w, "  (none)")
		}
		for _, r := range remediations {
			fmt.Fprintf(w, "  %-24s %d (%.1f%%)\n", r.Category, r.Count, r.Share)
		}

		fmt.Fprintln(w, "\nAlert-to-remediation latency (minutes):")
		if len(latency) == 0 {
			fmt.Fprintln(w, "  (none)")
		}
		for _, l := range latency {
			fmt.Fprintf(w, "  %-24s n=%-4d avg=%-6.1f p50=%-6.1f p95=%.1f\n",
				l.Detector, l.Count, l.Avg, l.P50, l.P95)
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().String("format", "table", "output format (table|json)")
	statsCmd.Flags().Duration("since", 0, "only include events newer than this window (e.g. 24h)")
}
