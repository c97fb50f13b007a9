// Package domain contains the business logic for validation runs.
package domain

import "time"

// Run is a validation run of one registry version.
type Run struct {
	ID              string     `json:"id"`
	Version         string     `json:"version"`
	Passed          bool       `json:"passed"`
	TriggeredBy     string     `json:"triggeredBy"`
	ChainsFailed    int        `json:"chainsFailed"`
	ContractsFailed int        `json:"contractsFailed"`
	StartedAt       time.Time  `json:"startedAt"`
	FinishedAt      time.Time  `json:"finishedAt"`
	Chains          []ChainRun `json:"chains,omitempty"`
}

// ChainRun is the outcome of one chain within a run.
type ChainRun struct {
	ChainID    uint64        `json:"chainId"`
	Name       string        `json:"name"`
	RPCURL     string        `json:"rpcUrl,omitempty"`
	Status     string        `json:"status"`
	Error      string        `json:"error,omitempty"`
	DurationMS int64         `json:"durationMs"`
	Contracts  []ContractRun `json:"contracts"`
}

// ContractRun is the outcome of one contract check.
type ContractRun struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	CodeSize int    `json:"codeSize,omitempty"`
	CodeHash string `json:"codeHash,omitempty"`
}

// Trigger sources.
const (
	TriggerCLI      = "cli"
	TriggerAPI      = "api"
	TriggerSchedule = "schedule"
)

// ListFilter contains filter options for listing runs.
type ListFilter struct {
	Version string
	Passed  *bool
}

// PaginationParams contains pagination options.
type PaginationParams struct {
	Limit  int
	Cursor string
}

// ListResult is the result of listing runs.
type ListResult struct {
	Runs       []Run
	HasMore    bool
	NextCursor string
}
