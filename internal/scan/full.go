package scan

import (
	"context"
	"time"

	"github.com/kaizumaki/kabuscan/internal/contracts"
	"github.com/kaizumaki/kabuscan/internal/selection"
)

// Outcome is the merged result of a full-universe scan pass.
type Outcome struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Batches []contracts.BatchJob `json:"batches"`

	// Results is the ranked candidate set across the whole universe.
	Results []contracts.CombinedResult `json:"results"`

	// Snapshots holds every successfully fetched snapshot, keyed by
	// code. The alert pass needs these for direct price conditions on
	// instruments that did not make the candidate set.
	Snapshots map[string]*contracts.InstrumentSnapshot `json:"-"`

	ProcessedCount int `json:"processed_count"`
	ErrorCount     int `json:"error_count"`
}

// ScanAll walks every batch in order and merges the output into one
// ranked candidate set. Batches are independent: a failed-partial batch
// contributes its successful results and the scan keeps going. The
// context cancels the scan between and within batches; partial output
// collected so far is returned.
func (o *Orchestrator) ScanAll(ctx context.Context) (*Outcome, error) {
	outcome := &Outcome{
		StartedAt: time.Now(),
		Snapshots: make(map[string]*contracts.InstrumentSnapshot, len(o.universe)),
	}

	all := make([]contracts.CombinedResult, 0)

	total := o.TotalBatches()
	for n := 0; n < total; n++ {
		if ctx.Err() != nil {
			break
		}

		job, snapshots, err := o.runBatch(ctx, n, o.config.MaxConcurrency)
		if err != nil {
			// A batch rejected here (in-flight elsewhere) is the
			// driver's conflict to resolve; surface it.
			return outcome, err
		}

		// Per-batch ranks are recomputed over the merged set below.
		all = append(all, job.Results...)
		job.Results = nil

		outcome.Batches = append(outcome.Batches, job)
		outcome.ProcessedCount += job.ProcessedCount
		outcome.ErrorCount += job.ErrorCount

		for code, snapshot := range snapshots {
			outcome.Snapshots[code] = snapshot
		}
	}

	outcome.Results = selection.Rank(all)
	outcome.FinishedAt = time.Now()

	o.logger.WithFields(map[string]interface{}{
		"batches":    len(outcome.Batches),
		"processed":  outcome.ProcessedCount,
		"errors":     outcome.ErrorCount,
		"candidates": len(outcome.Results),
		"duration":   outcome.FinishedAt.Sub(outcome.StartedAt),
	}).Info("Full scan finished")

	return outcome, nil
}
