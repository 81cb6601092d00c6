package domain

import "time"

type JobKind string

const (
	JobKindBackup  JobKind = "backup"
	JobKindRestore JobKind = "restore"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether a status is final. Terminal statuses are never
// overwritten.
func (s JobStatus) Terminal() bool {
	return s == JobSucceeded || s == JobFailed || s == JobCancelled
}

type FailureKind string

const (
	FailureNone          FailureKind = ""
	FailureLaunch        FailureKind = "LaunchError"
	FailureSizeLimit     FailureKind = "SizeLimitExceeded"
	FailureToolExecution FailureKind = "ToolExecutionError"
	FailureStorage       FailureKind = "StorageError"
)

// Job is one backup or restore request. A job is created pending, owned by
// exactly one runner while running, and immutable once terminal.
type Job struct {
	ID       string
	Kind     JobKind
	Database string

	// ArchiveID is the restore source, or the committed archive of a
	// succeeded backup.
	ArchiveID string

	Status  JobStatus
	Failure FailureKind
	Error   string

	// Bytes produced by the dump tool or consumed by the restore tool.
	Bytes int64

	SubmittedAt time.Time
	StartedAt   time.Time
	FinishedAt  time.Time
}
