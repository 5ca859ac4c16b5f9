package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kaizumaki/kabuscan/internal/alert"
	"github.com/kaizumaki/kabuscan/internal/contracts"
	"github.com/kaizumaki/kabuscan/internal/scan"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a screening scan",
	Long: `Runs the screening scan over the instrument universe.

Without flags the whole universe is scanned batch by batch; with
--batch only that batch runs. Candidates are printed ranked, persisted
when a database is configured, and fed to the alert engine.

Example:
  go run ./cmd/kabuscan scan
  go run ./cmd/kabuscan scan --batch 3 --concurrency 8`,
	RunE: runScan,
}

var (
	scanBatch       int
	scanConcurrency int
	scanTop         int
)

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().IntVar(&scanBatch, "batch", -1, "run only this batch number")
	scanCmd.Flags().IntVar(&scanConcurrency, "concurrency", 0, "worker pool size (default from config)")
	scanCmd.Flags().IntVar(&scanTop, "top", 20, "number of candidates to print")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := setup(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	universe, err := d.provider.Universe(ctx)
	if err != nil {
		return fmt.Errorf("load universe: %w", err)
	}

	scanCfg := scan.Config{
		BatchSize:      d.cfg.Screen.BatchSize,
		MaxConcurrency: d.cfg.Screen.MaxConcurrency,
		FetchTimeout:   d.cfg.Provider.FetchTimeout,
	}
	orch := scan.NewOrchestrator(universe, d.provider, d.evalA, d.evalB, scanCfg, d.logger)

	fmt.Printf("Universe: %d instruments, %d batches\n", orch.UniverseSize(), orch.TotalBatches())

	var (
		results   []contracts.CombinedResult
		snapshots map[string]*contracts.InstrumentSnapshot
		startedAt = time.Now()
	)

	if scanBatch >= 0 {
		job, err := orch.RunBatch(ctx, scanBatch, scanConcurrency)
		if err != nil {
			return fmt.Errorf("run batch %d: %w", scanBatch, err)
		}
		fmt.Printf("Batch %d: %s (%d processed, %d errors)\n",
			job.BatchNumber, job.Status, job.ProcessedCount, job.ErrorCount)
		results = job.Results
	} else {
		outcome, err := orch.ScanAll(ctx)
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		fmt.Printf("Scan finished: %d processed, %d errors, %d candidates\n",
			outcome.ProcessedCount, outcome.ErrorCount, len(outcome.Results))
		results = outcome.Results
		snapshots = outcome.Snapshots
	}

	printCandidates(results, scanTop)

	if d.scanRepo != nil && len(results) > 0 {
		if err := d.scanRepo.SaveScanResults(ctx, startedAt.Truncate(time.Minute), results); err != nil {
			d.logger.WithError(err).Error("Failed to persist scan results")
		}
	}

	if snapshots != nil {
		outcomes := d.engine.EvaluateAll(ctx, alert.Update{Results: results, Snapshots: snapshots})
		triggered := 0
		for _, o := range outcomes {
			if o.Transitioned {
				triggered++
			}
		}
		if triggered > 0 {
			fmt.Printf("Alerts triggered: %d\n", triggered)
		}
	}

	return nil
}

func printCandidates(results []contracts.CombinedResult, top int) {
	if len(results) == 0 {
		fmt.Println("No candidates matched")
		return
	}
	if top > len(results) {
		top = len(results)
	}

	fmt.Printf("\n%-5s %-8s %-24s %-6s %s\n", "RANK", "CODE", "NAME", "SCORE", "STRATEGIES")
	for _, r := range results[:top] {
		strategies := ""
		for id := range r.StrategyResults {
			if strategies != "" {
				strategies += "+"
			}
			strategies += string(id)
		}
		if r.DualMatch() {
			strategies += " (dual)"
		}
		fmt.Printf("%-5d %-8s %-24s %-6d %s\n", r.Rank, r.Code, r.Name, r.TotalScore, strategies)
	}
}
