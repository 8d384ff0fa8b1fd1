package domain

import "time"

// BatchStatus enumerates batch lifecycle states.
type BatchStatus string

const (
	BatchStatusQueued     BatchStatus = "queued"
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusCompleted  BatchStatus = "completed"
)

// Batch groups jobs created together from one admission. Jobs are never
// added to a batch after creation, so TotalItems is immutable.
type Batch struct {
	ID         string
	OwnerID    string
	ParamsJSON []byte
	TotalItems int
	Status     BatchStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// BatchStats holds per-status job counts for one batch.
type BatchStats struct {
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// Total returns the sum of all counters.
func (s BatchStats) Total() int {
	return s.Queued + s.Processing + s.Completed + s.Failed
}

// DeriveBatchStatus computes the batch status from its job counts. The value
// is always recomputable, so a persisted status is only a cache.
func DeriveBatchStatus(stats BatchStats, totalItems int) BatchStatus {
	terminal := stats.Completed + stats.Failed
	switch {
	case totalItems > 0 && terminal == totalItems:
		return BatchStatusCompleted
	case stats.Processing > 0 || terminal > 0:
		return BatchStatusProcessing
	default:
		return BatchStatusQueued
	}
}

// BatchView is the read model served to batch owners.
type BatchView struct {
	Batch Batch
	Stats BatchStats
	Items []Job
}
