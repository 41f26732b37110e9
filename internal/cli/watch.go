package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/5dlabs/healer/internal/alerts"
	"github.com/5dlabs/healer/internal/cluster"
	"github.com/5dlabs/healer/internal/config"
	"github.com/5dlabs/healer/internal/db"
	"github.com/5dlabs/healer/internal/github"
	"github.com/5dlabs/healer/internal/monitor"
	"github.com/5dlabs/healer/internal/remediate"
	"github.com/5dlabs/healer/internal/web"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the monitor-and-remediate control loop",
	Long: `watch runs the full control loop: it polls the cluster for pod,
workflow and run changes, evaluates every event against the detector
registry, sweeps batch health on each poll interval, and (when
auto_remediate is enabled) spawns fix runs for diagnosable code
issues. The web API and metrics endpoint are served when enabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if errs := config.Validate(cfg); len(errs) > 0 {
			return fmt.Errorf("invalid config: %s", errs[0])
		}
		h := cfg.Healer

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()

		kube := cluster.NewClient(&cluster.ExecRunner{}, h.Namespace)
		gh := github.NewClient(&github.ExecRunner{}, h.Repository)

		mon := monitor.New(monitor.Options{
			Namespace:    h.Namespace,
			Repository:   h.Repository,
			PollInterval: h.Poll(),
			Alerts:       h.Alerts,
		}, alerts.NewRegistry(), kube, gh)
		mon.Progress = out
		mon.SetNotifier(monitor.LogNotifier{Out: out})

		if h.DatabaseDSN != "" {
			store, err := db.Open(ctx, h.DatabaseDSN)
			if err != nil {
				return fmt.Errorf("connecting to database: %w", err)
			}
			defer store.Close()
			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("migrating database: %w", err)
			}
			mon.SetRecorder(store)

			if h.Web.Enabled {
				srv := web.NewServer(mon, store, h.Web.Addr)
				go srv.ListenAndServe(ctx)
			}
		} else if h.Web.Enabled {
			srv := web.NewServer(mon, nil, h.Web.Addr)
			go srv.ListenAndServe(ctx)
		}

		if h.AutoRemediate {
			engine := remediate.NewEngine(kube, gh, kube, h.Namespace, h.Repository)
			engine.Progress = out
			mon.SetRemediator(engine)
		}

		watcher := cluster.NewWatcher(&cluster.ExecRunner{}, h.Namespace, h.Poll())
		watcher.Progress = cmd.ErrOrStderr()

		err = mon.Run(ctx, watcher.Watch(ctx))
		if err == context.Canceled {
			return nil
		}
		return err
	},
}
