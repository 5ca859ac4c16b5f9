package scheduler

import (
	"context"
	"time"
)

// Job is a unit of scheduled work.
type Job interface {
	// Name returns the unique job name.
	Name() string

	// Schedule returns the cron expression, e.g. "30 8 * * 1-5".
	Schedule() string

	// Run executes the job.
	Run(ctx context.Context) error
}

// RunRecord is the outcome of one job execution.
type RunRecord struct {
	JobName    string        `json:"job_name"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
	Attempts   int           `json:"attempts"`
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
}

// historyLimit bounds the per-job run history.
const historyLimit = 50

// history is a bounded run record list, newest last.
type history struct {
	records []RunRecord
}

func (h *history) add(record RunRecord) {
	h.records = append(h.records, record)
	if len(h.records) > historyLimit {
		h.records = h.records[len(h.records)-historyLimit:]
	}
}

func (h *history) snapshot() []RunRecord {
	out := make([]RunRecord, len(h.records))
	copy(out, h.records)
	return out
}
