package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kaizumaki/kabuscan/internal/alert"
	"github.com/kaizumaki/kabuscan/internal/scan"
	"github.com/kaizumaki/kabuscan/internal/scheduler"
	"github.com/kaizumaki/kabuscan/internal/scheduler/jobs"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the job scheduler",
	Long: `Runs the recurring jobs:

  full_scan          scans the universe, persists candidates, fires alerts
  baseline_refresh   folds latest volumes into the trailing baselines

Schedules use standard cron expressions in local time.

Example:
  go run ./cmd/kabuscan scheduler
  go run ./cmd/kabuscan scheduler --now full_scan`,
	RunE: runScheduler,
}

var (
	scanSchedule     string
	baselineSchedule string
	runNow           string
)

func init() {
	rootCmd.AddCommand(schedulerCmd)

	schedulerCmd.Flags().StringVar(&scanSchedule, "scan-schedule", "30 8 * * 1-5", "cron schedule for the full scan")
	schedulerCmd.Flags().StringVar(&baselineSchedule, "baseline-schedule", "0 16 * * 1-5", "cron schedule for the baseline refresh")
	schedulerCmd.Flags().StringVar(&runNow, "now", "", "run this job immediately and exit")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := setup(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	scanCfg := scan.Config{
		BatchSize:      d.cfg.Screen.BatchSize,
		MaxConcurrency: d.cfg.Screen.MaxConcurrency,
		FetchTimeout:   d.cfg.Provider.FetchTimeout,
	}

	sched := scheduler.New(d.logger)

	scanJob := jobs.NewFullScanJob(d.provider, d.evalA, d.evalB, scanCfg, d.engine, d.scanRepo, scanSchedule, d.logger)
	if err := sched.Register(scanJob); err != nil {
		return err
	}

	baselineJob := jobs.NewBaselineRefreshJob(d.provider, alert.NewRedisBaseline(d.cache), baselineSchedule, d.logger)
	if err := sched.Register(baselineJob); err != nil {
		return err
	}

	if runNow != "" {
		return sched.Trigger(ctx, runNow)
	}

	sched.Start()
	defer sched.Stop()

	fmt.Println("Scheduler running, press Ctrl+C to stop")
	<-ctx.Done()
	return nil
}
