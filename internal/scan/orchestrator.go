package scan

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kaizumaki/kabuscan/internal/contracts"
	"github.com/kaizumaki/kabuscan/internal/selection"
	"github.com/kaizumaki/kabuscan/pkg/logger"
)

// Config holds the orchestrator knobs.
type Config struct {
	BatchSize      int
	MaxConcurrency int
	FetchTimeout   time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:      500,
		MaxConcurrency: 10,
		FetchTimeout:   10 * time.Second,
	}
}

// Orchestrator scans the instrument universe in fixed-size, resumable
// batches. Batch numbering is defined against the ordered universe list
// captured at construction, so a batch number always addresses the same
// code range. Evaluators and the combiner are pure; the only shared
// mutable state is the per-batch progress tally and the in-flight set.
type Orchestrator struct {
	universe []string
	provider contracts.DataProvider
	evalA    contracts.Evaluator
	evalB    contracts.Evaluator
	config   Config
	logger   *logger.Logger

	mu       sync.Mutex
	inflight map[int]*batchProgress
}

// batchProgress is the live tally of one running batch. Counters are
// updated atomically by the workers and read by Progress.
type batchProgress struct {
	size      int
	processed atomic.Int32
	failed    atomic.Int32
}

// Progress is a point-in-time view of a batch run.
type Progress struct {
	BatchNumber    int  `json:"batch_number"`
	Size           int  `json:"size"`
	ProcessedCount int  `json:"processed_count"`
	ErrorCount     int  `json:"error_count"`
	Running        bool `json:"running"`
}

// NewOrchestrator creates an orchestrator over an ordered universe.
func NewOrchestrator(universe []string, provider contracts.DataProvider, evalA, evalB contracts.Evaluator, config Config, log *logger.Logger) *Orchestrator {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultConfig().MaxConcurrency
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = DefaultConfig().FetchTimeout
	}

	return &Orchestrator{
		universe: universe,
		provider: provider,
		evalA:    evalA,
		evalB:    evalB,
		config:   config,
		logger:   log,
		inflight: make(map[int]*batchProgress),
	}
}

// UniverseSize returns the number of instruments in the universe.
func (o *Orchestrator) UniverseSize() int {
	return len(o.universe)
}

// TotalBatches returns the number of batches covering the universe.
func (o *Orchestrator) TotalBatches() int {
	if len(o.universe) == 0 {
		return 0
	}
	return (len(o.universe) + o.config.BatchSize - 1) / o.config.BatchSize
}

// DescribeBatch returns the batch job metadata for a batch number.
// Pure pagination: no I/O, stable across calls.
func (o *Orchestrator) DescribeBatch(batchNumber int) (contracts.BatchJob, error) {
	total := o.TotalBatches()
	if batchNumber < 0 || batchNumber >= total {
		return contracts.BatchJob{}, fmt.Errorf("%w: batch %d of %d", contracts.ErrOutOfRange, batchNumber, total)
	}

	start := batchNumber * o.config.BatchSize
	end := start + o.config.BatchSize
	if end > len(o.universe) {
		end = len(o.universe)
	}

	return contracts.BatchJob{
		BatchNumber:    batchNumber,
		CodeRangeStart: start,
		CodeRangeEnd:   end,
		Status:         contracts.BatchPending,
	}, nil
}

// BatchProgress reports the live progress of a batch. For a batch that
// is not running it reports the static size with zero counts.
func (o *Orchestrator) BatchProgress(batchNumber int) (Progress, error) {
	job, err := o.DescribeBatch(batchNumber)
	if err != nil {
		return Progress{}, err
	}

	o.mu.Lock()
	p, running := o.inflight[batchNumber]
	o.mu.Unlock()

	progress := Progress{
		BatchNumber: batchNumber,
		Size:        job.Size(),
		Running:     running,
	}
	if running {
		progress.ProcessedCount = int(p.processed.Load())
		progress.ErrorCount = int(p.failed.Load())
	}
	return progress, nil
}

// RunBatch processes one batch with a bounded worker pool. At most one
// run per batch number is admitted at a time; a duplicate concurrent
// call fails with ErrBatchInFlight. A per-instrument failure is skipped
// and counted, never retried here. The returned job carries the ranked
// combined results of the batch; on cancellation the partial results
// collected so far are preserved and the job reports failed-partial.
func (o *Orchestrator) RunBatch(ctx context.Context, batchNumber, maxConcurrency int) (contracts.BatchJob, error) {
	job, _, err := o.runBatch(ctx, batchNumber, maxConcurrency)
	return job, err
}

func (o *Orchestrator) runBatch(ctx context.Context, batchNumber, maxConcurrency int) (contracts.BatchJob, map[string]*contracts.InstrumentSnapshot, error) {
	job, err := o.DescribeBatch(batchNumber)
	if err != nil {
		return contracts.BatchJob{}, nil, err
	}

	if maxConcurrency <= 0 {
		maxConcurrency = o.config.MaxConcurrency
	}

	progress := &batchProgress{size: job.Size()}

	o.mu.Lock()
	if _, exists := o.inflight[batchNumber]; exists {
		o.mu.Unlock()
		return contracts.BatchJob{}, nil, fmt.Errorf("%w: batch %d", contracts.ErrBatchInFlight, batchNumber)
	}
	o.inflight[batchNumber] = progress
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		delete(o.inflight, batchNumber)
		o.mu.Unlock()
	}()

	job.Status = contracts.BatchRunning
	codes := o.universe[job.CodeRangeStart:job.CodeRangeEnd]

	o.logger.WithFields(map[string]interface{}{
		"batch":       batchNumber,
		"size":        len(codes),
		"concurrency": maxConcurrency,
	}).Info("Batch scan started")

	var (
		collectMu sync.Mutex
		results   = make([]contracts.CombinedResult, 0, len(codes)/10)
		snapshots = make(map[string]*contracts.InstrumentSnapshot, len(codes))
	)

	jobs := make(chan string)
	var wg sync.WaitGroup

	for i := 0; i < maxConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for code := range jobs {
				snapshot, err := o.processOne(ctx, code)
				if err != nil {
					progress.failed.Add(1)
					o.logger.WithFields(map[string]interface{}{
						"batch": batchNumber,
						"code":  code,
						"error": err.Error(),
					}).Warn("Instrument skipped")
					continue
				}

				resultA := o.evalA.Evaluate(snapshot)
				resultB := o.evalB.Evaluate(snapshot)
				combined := selection.Combine(snapshot, resultA, resultB)

				collectMu.Lock()
				snapshots[code] = snapshot
				if combined != nil {
					results = append(results, *combined)
				}
				collectMu.Unlock()

				progress.processed.Add(1)
			}
		}()
	}

feed:
	for _, code := range codes {
		select {
		case <-ctx.Done():
			// Abandoned by the caller: stop feeding, keep what we have.
			break feed
		case jobs <- code:
		}
	}
	close(jobs)
	wg.Wait()

	job.ProcessedCount = int(progress.processed.Load())
	job.ErrorCount = int(progress.failed.Load())
	job.Results = selection.Rank(results)

	if job.ErrorCount > 0 || job.ProcessedCount+job.ErrorCount < job.Size() {
		job.Status = contracts.BatchFailedPartial
	} else {
		job.Status = contracts.BatchCompleted
	}

	o.logger.WithFields(map[string]interface{}{
		"batch":     batchNumber,
		"status":    job.Status,
		"processed": job.ProcessedCount,
		"errors":    job.ErrorCount,
		"matched":   len(job.Results),
	}).Info("Batch scan finished")

	return job, snapshots, nil
}

// processOne fetches and validates a single snapshot under the
// configured fetch timeout.
func (o *Orchestrator) processOne(ctx context.Context, code string) (*contracts.InstrumentSnapshot, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, o.config.FetchTimeout)
	defer cancel()

	snapshot, err := o.provider.FetchSnapshot(fetchCtx, code)
	if err != nil {
		if fetchCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: %s", contracts.ErrTimeout, code)
		}
		return nil, fmt.Errorf("fetch %s: %w", code, err)
	}
	if snapshot == nil {
		return nil, fmt.Errorf("%w: %s", contracts.ErrDataUnavailable, code)
	}

	if err := snapshot.Validate(); err != nil {
		return nil, err
	}

	return snapshot, nil
}
