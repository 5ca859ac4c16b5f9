// Package jobs holds the scheduled job implementations.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/kaizumaki/kabuscan/internal/alert"
	"github.com/kaizumaki/kabuscan/internal/contracts"
	"github.com/kaizumaki/kabuscan/internal/scan"
	"github.com/kaizumaki/kabuscan/internal/selection"
	"github.com/kaizumaki/kabuscan/pkg/logger"
)

// FullScanJob runs the complete screening pass: refresh the universe,
// scan every batch, persist the ranked candidates, and feed the alert
// engine. A fresh orchestrator is built per run so the universe tracks
// listings and delistings day to day.
type FullScanJob struct {
	provider contracts.DataProvider
	evalA    contracts.Evaluator
	evalB    contracts.Evaluator
	scanCfg  scan.Config
	engine   *alert.Engine
	repo     *selection.Repository // nil when persistence is disabled
	schedule string
	logger   *logger.Logger
}

// NewFullScanJob creates the full scan job.
func NewFullScanJob(provider contracts.DataProvider, evalA, evalB contracts.Evaluator, scanCfg scan.Config, engine *alert.Engine, repo *selection.Repository, schedule string, log *logger.Logger) *FullScanJob {
	return &FullScanJob{
		provider: provider,
		evalA:    evalA,
		evalB:    evalB,
		scanCfg:  scanCfg,
		engine:   engine,
		repo:     repo,
		schedule: schedule,
		logger:   log,
	}
}

func (j *FullScanJob) Name() string     { return "full_scan" }
func (j *FullScanJob) Schedule() string { return j.schedule }

func (j *FullScanJob) Run(ctx context.Context) error {
	universe, err := j.provider.Universe(ctx)
	if err != nil {
		return fmt.Errorf("failed to load universe: %w", err)
	}

	orch := scan.NewOrchestrator(universe, j.provider, j.evalA, j.evalB, j.scanCfg, j.logger)

	outcome, err := orch.ScanAll(ctx)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if j.repo != nil {
		if err := j.repo.SaveScanResults(ctx, outcome.StartedAt.Truncate(time.Minute), outcome.Results); err != nil {
			// Persistence failure must not block the alert pass.
			j.logger.WithError(err).Error("Failed to persist scan results")
		}
	}

	if j.engine != nil {
		outcomes := j.engine.EvaluateAll(ctx, alert.Update{
			Results:   outcome.Results,
			Snapshots: outcome.Snapshots,
		})

		triggered := 0
		for _, o := range outcomes {
			if o.Transitioned {
				triggered++
			}
		}
		j.logger.WithFields(map[string]interface{}{
			"alerts":    len(outcomes),
			"triggered": triggered,
		}).Info("Alert pass finished")
	}

	return nil
}
