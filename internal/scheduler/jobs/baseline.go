package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/kaizumaki/kabuscan/internal/contracts"
	"github.com/kaizumaki/kabuscan/pkg/logger"
)

// BaselineStore reads and writes trailing volume baselines.
type BaselineStore interface {
	VolumeBaseline(ctx context.Context, code string) (float64, error)
	SetVolumeBaseline(ctx context.Context, code string, baseline float64) error
}

// smoothing is the weight of the newest observation in the trailing
// volume baseline.
const smoothing = 0.2

// BaselineRefreshJob folds the latest volume of every instrument into
// its trailing baseline. Snapshot fetches go through the provider cache
// so a run shortly after the full scan is mostly cache hits.
type BaselineRefreshJob struct {
	provider contracts.DataProvider
	store    BaselineStore
	schedule string
	logger   *logger.Logger
}

// NewBaselineRefreshJob creates the baseline refresh job.
func NewBaselineRefreshJob(provider contracts.DataProvider, store BaselineStore, schedule string, log *logger.Logger) *BaselineRefreshJob {
	return &BaselineRefreshJob{
		provider: provider,
		store:    store,
		schedule: schedule,
		logger:   log,
	}
}

func (j *BaselineRefreshJob) Name() string     { return "baseline_refresh" }
func (j *BaselineRefreshJob) Schedule() string { return j.schedule }

func (j *BaselineRefreshJob) Run(ctx context.Context) error {
	universe, err := j.provider.Universe(ctx)
	if err != nil {
		return fmt.Errorf("failed to load universe: %w", err)
	}

	updated, skipped := 0, 0
	for _, code := range universe {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		snapshot, err := j.provider.FetchSnapshot(ctx, code)
		if err != nil {
			skipped++
			continue
		}

		volume := float64(snapshot.Volume)

		baseline, err := j.store.VolumeBaseline(ctx, code)
		switch {
		case errors.Is(err, contracts.ErrDataUnavailable):
			baseline = volume // first observation seeds the baseline
		case err != nil:
			skipped++
			continue
		default:
			baseline = (1-smoothing)*baseline + smoothing*volume
		}

		if err := j.store.SetVolumeBaseline(ctx, code, baseline); err != nil {
			skipped++
			continue
		}
		updated++
	}

	j.logger.WithFields(map[string]interface{}{
		"updated": updated,
		"skipped": skipped,
	}).Info("Volume baselines refreshed")

	return nil
}
