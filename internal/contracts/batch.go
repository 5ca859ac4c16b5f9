package contracts

// BatchStatus is the lifecycle state of one batch job.
// pending -> running -> {completed | failed-partial}. Terminal states
// are final; re-requesting the same batch number starts a fresh job.
type BatchStatus string

const (
	BatchPending       BatchStatus = "pending"
	BatchRunning       BatchStatus = "running"
	BatchCompleted     BatchStatus = "completed"
	BatchFailedPartial BatchStatus = "failed-partial"
)

// BatchJob describes one fixed-size contiguous slice of the universe.
// CodeRangeStart/End are indices into the ordered universe list, with
// End exclusive. Batch numbers are stable offsets: callers can resume
// at any batch number idempotently.
type BatchJob struct {
	BatchNumber    int         `json:"batch_number"`
	CodeRangeStart int         `json:"code_range_start"`
	CodeRangeEnd   int         `json:"code_range_end"`
	Status         BatchStatus `json:"status"`
	ProcessedCount int         `json:"processed_count"`
	ErrorCount     int         `json:"error_count"`

	// Results of the successfully processed and matched instruments.
	// Populated by RunBatch; empty for a pure DescribeBatch.
	Results []CombinedResult `json:"results,omitempty"`
}

// Size returns the number of instruments in this batch.
func (j *BatchJob) Size() int {
	return j.CodeRangeEnd - j.CodeRangeStart
}

// Progress reports the processed fraction in [0,1].
func (j *BatchJob) Progress() float64 {
	size := j.Size()
	if size == 0 {
		return 1
	}
	return float64(j.ProcessedCount) / float64(size)
}
