package scan

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaizumaki/kabuscan/internal/contracts"
	"github.com/kaizumaki/kabuscan/internal/provider/memory"
	"github.com/kaizumaki/kabuscan/internal/strategy"
	"github.com/kaizumaki/kabuscan/pkg/logger"
)

var scanNow = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

// buildUniverse creates n valid snapshots. Every 10th instrument is a
// stop-high candidate so scans produce a non-empty candidate set.
func buildUniverse(n int) []contracts.InstrumentSnapshot {
	snapshots := make([]contracts.InstrumentSnapshot, 0, n)
	for i := 0; i < n; i++ {
		s := contracts.InstrumentSnapshot{
			Code:           fmt.Sprintf("%04d", 1000+i),
			Name:           fmt.Sprintf("Instrument %d", i),
			Price:          1000 + float64(i),
			PriceChangePct: 1.0,
			Volume:         30000,
			ListingDate:    scanNow.AddDate(-1, 0, 0),
			PERatio:        12,
			MarketCap:      8.0e10,
			Low52W:         900,
			High52W:        1100,
		}
		if i%10 == 0 {
			s.PriceChangePct = 16 + float64(i%7) // stop-high movers
			s.Volume = 250000
		}
		snapshots = append(snapshots, s)
	}
	return snapshots
}

func newTestOrchestrator(t *testing.T, snapshots []contracts.InstrumentSnapshot, cfg Config) (*Orchestrator, *memory.Provider) {
	t.Helper()

	provider := memory.New(snapshots)
	universe, err := provider.Universe(context.Background())
	require.NoError(t, err)

	evalA := strategy.NewStopHigh(strategy.DefaultStopHighConfig()).WithClock(func() time.Time { return scanNow })
	evalB := strategy.NewTurnaround()

	return NewOrchestrator(universe, provider, evalA, evalB, cfg, logger.NewNop()), provider
}

func TestDescribeBatch_ContiguousRanges(t *testing.T) {
	orch, _ := newTestOrchestrator(t, buildUniverse(1234), Config{BatchSize: 100})

	total := orch.TotalBatches()
	require.Equal(t, 13, total)

	covered := 0
	for i := 0; i < total; i++ {
		job, err := orch.DescribeBatch(i)
		require.NoError(t, err)

		assert.Equal(t, i, job.BatchNumber)
		assert.Equal(t, contracts.BatchPending, job.Status)
		covered += job.Size()

		if i < total-1 {
			next, err := orch.DescribeBatch(i + 1)
			require.NoError(t, err)
			assert.Equal(t, job.CodeRangeEnd, next.CodeRangeStart, "ranges must be contiguous")
		}
	}

	// Union of all ranges covers the universe exactly once.
	assert.Equal(t, 1234, covered)

	last, err := orch.DescribeBatch(total - 1)
	require.NoError(t, err)
	assert.Equal(t, 1234, last.CodeRangeEnd)
}

func TestDescribeBatch_OutOfRange(t *testing.T) {
	orch, _ := newTestOrchestrator(t, buildUniverse(100), Config{BatchSize: 50})

	_, err := orch.DescribeBatch(2)
	assert.ErrorIs(t, err, contracts.ErrOutOfRange)

	_, err = orch.DescribeBatch(-1)
	assert.ErrorIs(t, err, contracts.ErrOutOfRange)
}

func TestDescribeBatch_Stable(t *testing.T) {
	orch, _ := newTestOrchestrator(t, buildUniverse(300), Config{BatchSize: 100})

	first, err := orch.DescribeBatch(1)
	require.NoError(t, err)
	again, err := orch.DescribeBatch(1)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestRunBatch_Completed(t *testing.T) {
	orch, _ := newTestOrchestrator(t, buildUniverse(120), Config{BatchSize: 120})

	job, err := orch.RunBatch(context.Background(), 0, 8)
	require.NoError(t, err)

	assert.Equal(t, contracts.BatchCompleted, job.Status)
	assert.Equal(t, 120, job.ProcessedCount)
	assert.Equal(t, 0, job.ErrorCount)
	assert.Equal(t, 12, len(job.Results), "every 10th instrument matches")

	// Results come back ranked.
	for i, result := range job.Results {
		assert.Equal(t, i+1, result.Rank)
	}
}

func TestRunBatch_PartialFailure(t *testing.T) {
	snapshots := buildUniverse(500)
	orch, provider := newTestOrchestrator(t, snapshots, Config{BatchSize: 500})

	provider.FailWith(snapshots[17].Code, contracts.ErrDataUnavailable)
	provider.FailWith(snapshots[433].Code, contracts.ErrTimeout)

	job, err := orch.RunBatch(context.Background(), 0, 10)
	require.NoError(t, err)

	assert.Equal(t, contracts.BatchFailedPartial, job.Status)
	assert.Equal(t, 2, job.ErrorCount)
	assert.Equal(t, 498, job.ProcessedCount)
	assert.NotEmpty(t, job.Results, "partial failures keep successful results usable")
}

func TestRunBatch_MalformedSnapshotCountsAsError(t *testing.T) {
	snapshots := buildUniverse(50)
	snapshots[3].Price = 0 // malformed

	orch, _ := newTestOrchestrator(t, snapshots, Config{BatchSize: 50})

	job, err := orch.RunBatch(context.Background(), 0, 4)
	require.NoError(t, err)

	assert.Equal(t, contracts.BatchFailedPartial, job.Status)
	assert.Equal(t, 1, job.ErrorCount)
	assert.Equal(t, 49, job.ProcessedCount)
}

func TestRunBatch_RejectsDuplicateInFlight(t *testing.T) {
	orch, provider := newTestOrchestrator(t, buildUniverse(40), Config{BatchSize: 40})
	provider.SetDelay(30 * time.Millisecond)

	done := make(chan contracts.BatchJob, 1)
	go func() {
		job, err := orch.RunBatch(context.Background(), 0, 2)
		assert.NoError(t, err)
		done <- job
	}()

	// Wait until the first run is admitted.
	require.Eventually(t, func() bool {
		p, err := orch.BatchProgress(0)
		return err == nil && p.Running
	}, 2*time.Second, 5*time.Millisecond)

	_, err := orch.RunBatch(context.Background(), 0, 2)
	assert.ErrorIs(t, err, contracts.ErrBatchInFlight)

	job := <-done
	assert.Equal(t, contracts.BatchCompleted, job.Status)

	// Re-requesting the same batch after completion is a full replay.
	replay, err := orch.RunBatch(context.Background(), 0, 2)
	require.NoError(t, err)
	assert.Equal(t, job.ProcessedCount, replay.ProcessedCount)
}

func TestRunBatch_ProgressQueryableWhileRunning(t *testing.T) {
	orch, provider := newTestOrchestrator(t, buildUniverse(20), Config{BatchSize: 20})
	provider.SetDelay(40 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := orch.RunBatch(context.Background(), 0, 2)
		assert.NoError(t, err)
	}()

	require.Eventually(t, func() bool {
		p, err := orch.BatchProgress(0)
		return err == nil && p.Running && p.ProcessedCount > 0 && p.ProcessedCount < 20
	}, 2*time.Second, 10*time.Millisecond, "mid-run progress must be observable")

	<-done

	p, err := orch.BatchProgress(0)
	require.NoError(t, err)
	assert.False(t, p.Running)
}

func TestRunBatch_CancellationPreservesPartialResults(t *testing.T) {
	orch, provider := newTestOrchestrator(t, buildUniverse(60), Config{BatchSize: 60})
	provider.SetDelay(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()

	job, err := orch.RunBatch(ctx, 0, 2)
	require.NoError(t, err)

	assert.Equal(t, contracts.BatchFailedPartial, job.Status)
	assert.Greater(t, job.ProcessedCount, 0, "partial results preserved")
	assert.Less(t, job.ProcessedCount, 60, "cancelled before finishing")
}

func TestRunBatch_UsesUnavailableAndTimeoutTaxonomy(t *testing.T) {
	snapshots := buildUniverse(10)
	orch, provider := newTestOrchestrator(t, snapshots, Config{BatchSize: 10, FetchTimeout: 50 * time.Millisecond})

	provider.FailWith(snapshots[2].Code, errors.New("connection refused"))

	job, err := orch.RunBatch(context.Background(), 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, job.ErrorCount)
	assert.Equal(t, contracts.BatchFailedPartial, job.Status)
}

func TestScanAll_MergesAndRanks(t *testing.T) {
	orch, _ := newTestOrchestrator(t, buildUniverse(250), Config{BatchSize: 100})

	outcome, err := orch.ScanAll(context.Background())
	require.NoError(t, err)

	assert.Len(t, outcome.Batches, 3)
	assert.Equal(t, 250, outcome.ProcessedCount)
	assert.Equal(t, 0, outcome.ErrorCount)
	assert.Len(t, outcome.Snapshots, 250)
	assert.Equal(t, 25, len(outcome.Results))

	// Ranks are global across batches and strictly sequential.
	for i, result := range outcome.Results {
		assert.Equal(t, i+1, result.Rank)
		if i > 0 {
			assert.GreaterOrEqual(t, outcome.Results[i-1].TotalScore, result.TotalScore)
		}
	}
}
