package generate

import (
	"context"
	"encoding/json"
	"fmt"
)

// Synthetic is a generator that fabricates deterministic results locally.
// Used when no generator endpoint is configured, mirroring the behavior of
// running without upstream credentials.
type Synthetic struct{}

// NewSynthetic creates the synthetic generator.
func NewSynthetic() *Synthetic { return &Synthetic{} }

// Generate echoes the prompt back as a synthetic result.
func (s *Synthetic) Generate(_ context.Context, req Request) (Result, error) {
	content, err := json.Marshal(map[string]any{
		"synthetic": true,
		"job_id":    req.JobID,
		"text":      fmt.Sprintf("synthetic output for: %s", req.Prompt),
	})
	if err != nil {
		return Result{}, err
	}
	return Result{ContentJSON: content}, nil
}

var _ Generator = (*Synthetic)(nil)
