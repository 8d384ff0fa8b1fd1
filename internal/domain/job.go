package domain

import "time"

// JobType enumerates supported generation job categories.
type JobType string

const (
	JobTypeSingleGeneration JobType = "single_generation"
	JobTypeBatchItem        JobType = "batch_item"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job encapsulates one unit of generation work. ResultJSON and ErrorMessage
// are mutually exclusive: both empty until the job is terminal, then exactly
// one is set depending on the outcome.
type Job struct {
	ID           string
	OwnerID      string
	BatchID      *string
	Type         JobType
	PayloadJSON  []byte
	Status       JobStatus
	ResultJSON   []byte
	ErrorMessage string
	ClaimedBy    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// JobOutcome is the terminal state a worker commits for a claimed job.
type JobOutcome struct {
	Status       JobStatus // JobStatusCompleted or JobStatusFailed
	ResultJSON   []byte
	ErrorMessage string
}

// CompletedOutcome builds the outcome for a successful generation.
func CompletedOutcome(resultJSON []byte) JobOutcome {
	return JobOutcome{Status: JobStatusCompleted, ResultJSON: resultJSON}
}

// FailedOutcome builds the outcome for a terminally failed generation.
func FailedOutcome(message string) JobOutcome {
	return JobOutcome{Status: JobStatusFailed, ErrorMessage: message}
}
