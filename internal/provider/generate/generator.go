// Package generate defines the Generator dependency: the opaque service
// performing the actual content generation. Prompt construction and
// provider internals stay behind this interface.
package generate

import (
	"context"
	"encoding/json"
)

// Request carries one job's generation input.
type Request struct {
	JobID  string          `json:"job_id"`
	Prompt string          `json:"prompt"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Result is the opaque generation output stored on the job.
type Result struct {
	ContentJSON json.RawMessage
}

// Generator produces a result for a generation request. Implementations may
// block for seconds; callers wrap invocations with a timeout and the shared
// retry policy.
type Generator interface {
	Generate(ctx context.Context, req Request) (Result, error)
}
