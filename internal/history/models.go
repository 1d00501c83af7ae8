package history

import "time"

// Run summarizes one recorded run with aggregated job statistics.
type Run struct {
	ID               string
	StartedAt        time.Time
	FinishedAt       time.Time
	State            string
	DryRun           bool
	Failure          string
	ErrorMessage     string
	Jobs             int
	FilesTransferred int
	FilesDeleted     int
	BytesTransferred int64
}

// Job holds the recorded statistics of one source's mirror pass.
type Job struct {
	Source           string
	ProtectRules     int
	FilesTransferred int
	FilesDeleted     int
	BytesTransferred int64
	Elapsed          time.Duration
}
