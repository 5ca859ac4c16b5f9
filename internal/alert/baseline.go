package alert

import (
	"context"
	"fmt"
	"sync"

	"github.com/kaizumaki/kabuscan/internal/contracts"
	"github.com/kaizumaki/kabuscan/pkg/redis"
)

// RedisBaseline reads trailing volume baselines written by the baseline
// refresh job. Missing keys surface as ErrDataUnavailable; the engine
// treats that as "condition not met".
type RedisBaseline struct {
	cache *redis.Cache
}

// NewRedisBaseline creates a baseline provider over the shared cache.
func NewRedisBaseline(cache *redis.Cache) *RedisBaseline {
	return &RedisBaseline{cache: cache}
}

func (b *RedisBaseline) VolumeBaseline(ctx context.Context, code string) (float64, error) {
	var baseline float64
	found, err := b.cache.Get(ctx, redis.BaselineKey(code), &baseline)
	if err != nil {
		return 0, fmt.Errorf("failed to read volume baseline: %w", err)
	}
	if !found {
		return 0, fmt.Errorf("%w: no volume baseline for %s", contracts.ErrDataUnavailable, code)
	}
	return baseline, nil
}

// SetVolumeBaseline stores the baseline for a code.
func (b *RedisBaseline) SetVolumeBaseline(ctx context.Context, code string, baseline float64) error {
	return b.cache.Set(ctx, redis.BaselineKey(code), baseline, redis.TTLDaily)
}

// StaticBaseline is a fixed in-memory BaselineProvider for tests and
// demo runs without Redis.
type StaticBaseline struct {
	mu        sync.RWMutex
	baselines map[string]float64
}

// NewStaticBaseline creates a baseline provider over a fixed table.
func NewStaticBaseline(baselines map[string]float64) *StaticBaseline {
	if baselines == nil {
		baselines = make(map[string]float64)
	}
	return &StaticBaseline{baselines: baselines}
}

func (b *StaticBaseline) VolumeBaseline(ctx context.Context, code string) (float64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	baseline, ok := b.baselines[code]
	if !ok {
		return 0, fmt.Errorf("%w: no volume baseline for %s", contracts.ErrDataUnavailable, code)
	}
	return baseline, nil
}

// Set stores or replaces one baseline.
func (b *StaticBaseline) Set(code string, baseline float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.baselines[code] = baseline
}
