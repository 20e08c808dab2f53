package core

// RuntimeStats represents runtime observability state for a Runtime.
type RuntimeStats struct {
	ComputeWorkers  int
	BlockingWorkers int
	PendingTasks    int64
	ComputeQueued   int
	BlockingQueued  int
	ActiveTimers    int
	IoRegistrations int
	Closed          bool
}
