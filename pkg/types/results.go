package types

// TaskStatus is the terminal state of a single install task.
type TaskStatus string

const (
	StatusSuccess   TaskStatus = "success"
	StatusFailed    TaskStatus = "failed"
	StatusSkipped   TaskStatus = "skipped"
	StatusCancelled TaskStatus = "cancelled"
)

// VerifyStats summarizes one task's post-install verification.
type VerifyStats struct {
	// TotalFiles is the number of files covered by the manifest.
	TotalFiles int

	// VerifiedFiles is the number of files whose hash ultimately matched,
	// including files that only matched after a retry.
	VerifiedFiles int

	// RetriedFiles is the number of files that failed the initial pass and
	// were re-extracted at least once.
	RetriedFiles int

	// FailedFiles is the number of files still mismatched after all retry
	// rounds.
	FailedFiles int
}

// TaskResult is the terminal record for one task.
type TaskResult struct {
	Task     string
	Index    int
	Status   TaskStatus
	Scenario string
	Error    string
	Verify   VerifyStats
}

// Succeeded reports whether the task completed without failure.
// Skipped and cancelled tasks are non-successes but not failures.
func (r TaskResult) Succeeded() bool {
	return r.Status == StatusSuccess
}

// BatchResult aggregates the results of a sequentially processed batch.
type BatchResult struct {
	Tasks     []TaskResult
	Succeeded int
	Failed    int
	Skipped   int
	Cancelled int
}

// Add appends a task result and updates the aggregate counts.
func (b *BatchResult) Add(r TaskResult) {
	b.Tasks = append(b.Tasks, r)
	switch r.Status {
	case StatusSuccess:
		b.Succeeded++
	case StatusFailed:
		b.Failed++
	case StatusSkipped:
		b.Skipped++
	case StatusCancelled:
		b.Cancelled++
	}
}

// Ok reports whether no task in the batch failed.
func (b *BatchResult) Ok() bool {
	return b.Failed == 0
}
