// Package memory implements an in-process DataProvider backed by a
// fixed snapshot table. It backs tests and offline runs.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kaizumaki/kabuscan/internal/contracts"
)

// Provider serves snapshots from memory. Safe for concurrent use.
type Provider struct {
	mu        sync.RWMutex
	order     []string
	snapshots map[string]contracts.InstrumentSnapshot
	failures  map[string]error
	delay     time.Duration
}

// New creates a provider over the given snapshots. Universe order
// follows the argument order.
func New(snapshots []contracts.InstrumentSnapshot) *Provider {
	p := &Provider{
		order:     make([]string, 0, len(snapshots)),
		snapshots: make(map[string]contracts.InstrumentSnapshot, len(snapshots)),
		failures:  make(map[string]error),
	}
	for _, s := range snapshots {
		p.order = append(p.order, s.Code)
		p.snapshots[s.Code] = s
	}
	return p
}

// Universe implements contracts.DataProvider.
func (p *Provider) Universe(ctx context.Context) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	codes := make([]string, len(p.order))
	copy(codes, p.order)
	return codes, nil
}

// FetchSnapshot implements contracts.DataProvider.
func (p *Provider) FetchSnapshot(ctx context.Context, code string) (*contracts.InstrumentSnapshot, error) {
	p.mu.RLock()
	delay := p.delay
	failure := p.failures[code]
	snapshot, ok := p.snapshots[code]
	p.mu.RUnlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if failure != nil {
		return nil, failure
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", contracts.ErrDataUnavailable, code)
	}

	out := snapshot
	out.FetchedAt = time.Now()
	return &out, nil
}

// Put inserts or replaces a snapshot, appending new codes to the
// universe order.
func (p *Provider) Put(snapshot contracts.InstrumentSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.snapshots[snapshot.Code]; !exists {
		p.order = append(p.order, snapshot.Code)
	}
	p.snapshots[snapshot.Code] = snapshot
}

// FailWith makes fetches for a code return the given error.
func (p *Provider) FailWith(code string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[code] = err
}

// SetDelay adds an artificial per-fetch delay.
func (p *Provider) SetDelay(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delay = d
}
