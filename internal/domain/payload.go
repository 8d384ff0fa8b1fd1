package domain

import (
	"encoding/json"
	"fmt"
)

// SingleGenerationPayload is the input of a standalone generation job.
type SingleGenerationPayload struct {
	Prompt string          `json:"prompt"`
	Params json.RawMessage `json:"params,omitempty"`
}

// BatchItemPayload is the input of one item inside a batch. Shared generation
// parameters live on the Batch row, so the item only carries its own prompt
// and position.
type BatchItemPayload struct {
	Prompt string `json:"prompt"`
	Index  int    `json:"index"`
}

// JobPayload is the decoded form of a job's payload, one variant per JobType.
// Exactly one field is non-nil.
type JobPayload struct {
	Single    *SingleGenerationPayload
	BatchItem *BatchItemPayload
}

// DecodePayload parses raw payload bytes according to the job type.
func DecodePayload(jobType JobType, raw []byte) (JobPayload, error) {
	switch jobType {
	case JobTypeSingleGeneration:
		var p SingleGenerationPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return JobPayload{}, fmt.Errorf("decode %s payload: %w", jobType, err)
		}
		return JobPayload{Single: &p}, nil
	case JobTypeBatchItem:
		var p BatchItemPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return JobPayload{}, fmt.Errorf("decode %s payload: %w", jobType, err)
		}
		return JobPayload{BatchItem: &p}, nil
	default:
		return JobPayload{}, fmt.Errorf("unsupported job type %q", jobType)
	}
}
