// Package scheduler runs the recurring jobs: the full scan, the volume
// baseline refresh, and housekeeping. Thin wrapper over robfig/cron
// with per-job retry and run history.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kaizumaki/kabuscan/pkg/logger"
)

// Scheduler owns the cron runner and the registered job set.
type Scheduler struct {
	cron   *cron.Cron
	logger *logger.Logger

	mu        sync.RWMutex
	jobs      map[string]Job
	histories map[string]*history

	maxRetries int
	retryDelay time.Duration
}

// New creates a scheduler with default retry behavior.
func New(log *logger.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		logger:     log,
		jobs:       make(map[string]Job),
		histories:  make(map[string]*history),
		maxRetries: 2,
		retryDelay: 30 * time.Second,
	}
}

// WithRetry overrides the retry policy applied to every job.
func (s *Scheduler) WithRetry(maxRetries int, delay time.Duration) *Scheduler {
	s.maxRetries = maxRetries
	s.retryDelay = delay
	return s
}

// Register adds a job under its cron schedule. Job names are unique.
func (s *Scheduler) Register(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	if _, err := s.cron.AddFunc(job.Schedule(), func() {
		s.execute(context.Background(), job)
	}); err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.jobs[name] = job
	s.histories[name] = &history{}

	s.logger.WithFields(map[string]interface{}{
		"job":      name,
		"schedule": job.Schedule(),
	}).Info("Job registered")

	return nil
}

// Start begins running schedules.
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// Trigger runs a job immediately, outside its schedule, and waits for
// it to finish.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.RLock()
	job, exists := s.jobs[name]
	s.mu.RUnlock()

	if !exists {
		return fmt.Errorf("job %s not found", name)
	}

	record := s.execute(ctx, job)
	if !record.Success {
		return fmt.Errorf("job %s failed: %s", name, record.Error)
	}
	return nil
}

// Jobs returns the registered job names.
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

// History returns the run records of one job, oldest first.
func (s *Scheduler) History(name string) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, exists := s.histories[name]
	if !exists {
		return nil, fmt.Errorf("job %s not found", name)
	}
	return h.snapshot(), nil
}

// execute runs one job with retries and records the outcome.
func (s *Scheduler) execute(ctx context.Context, job Job) RunRecord {
	name := job.Name()
	started := time.Now()

	s.logger.WithField("job", name).Info("Job started")

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		attempts++
		lastErr = job.Run(ctx)
		if lastErr == nil {
			break
		}

		s.logger.WithFields(map[string]interface{}{
			"job":     name,
			"attempt": attempts,
			"error":   lastErr.Error(),
		}).Warn("Job attempt failed")

		if attempt < s.maxRetries {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = s.maxRetries // stop retrying
			case <-time.After(s.retryDelay):
			}
		}
	}

	finished := time.Now()
	record := RunRecord{
		JobName:    name,
		StartedAt:  started,
		FinishedAt: finished,
		Duration:   finished.Sub(started),
		Attempts:   attempts,
		Success:    lastErr == nil,
	}
	if lastErr != nil {
		record.Error = lastErr.Error()
	}

	s.mu.Lock()
	if h, exists := s.histories[name]; exists {
		h.add(record)
	}
	s.mu.Unlock()

	if record.Success {
		s.logger.WithFields(map[string]interface{}{
			"job":      name,
			"duration": record.Duration,
		}).Info("Job finished")
	} else {
		s.logger.WithFields(map[string]interface{}{
			"job":      name,
			"attempts": record.Attempts,
			"error":    record.Error,
		}).Error("Job failed")
	}

	return record
}
