package transport

import (
	"time"

	"github.com/pendergraft/delegation-deployments/internal/runs/domain"
)

// TriggerRequest is the optional body of POST /runs. An empty version
// validates the latest registry version.
type TriggerRequest struct {
	Version string `json:"version,omitempty"`
}

// RunResponse is the HTTP representation of a run.
type RunResponse struct {
	ID              string            `json:"id"`
	Version         string            `json:"version"`
	Passed          bool              `json:"passed"`
	TriggeredBy     string            `json:"triggeredBy"`
	ChainsFailed    int               `json:"chainsFailed"`
	ContractsFailed int               `json:"contractsFailed"`
	StartedAt       time.Time         `json:"startedAt"`
	FinishedAt      time.Time         `json:"finishedAt"`
	DurationMS      int64             `json:"durationMs"`
	Chains          []domain.ChainRun `json:"chains,omitempty"`
}

// ToResponse converts a domain run to its HTTP representation.
func ToResponse(run *domain.Run) RunResponse {
	return RunResponse{
		ID:              run.ID,
		Version:         run.Version,
		Passed:          run.Passed,
		TriggeredBy:     run.TriggeredBy,
		ChainsFailed:    run.ChainsFailed,
		ContractsFailed: run.ContractsFailed,
		StartedAt:       run.StartedAt,
		FinishedAt:      run.FinishedAt,
		DurationMS:      run.FinishedAt.Sub(run.StartedAt).Milliseconds(),
		Chains:          run.Chains,
	}
}
