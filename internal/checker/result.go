package checker

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Status is the outcome of a single check.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// ContractResult is the outcome of the code check for one contract.
type ContractResult struct {
	Name     string         `json:"name"`
	Address  common.Address `json:"address"`
	Status   Status         `json:"status"`
	CodeSize int            `json:"codeSize,omitempty"`
	CodeHash *common.Hash   `json:"codeHash,omitempty"`
	Error    string         `json:"error,omitempty"`
	Err      error          `json:"-"`
}

// Failed reports whether the contract check failed.
func (c ContractResult) Failed() bool {
	return c.Status == StatusFailed
}

func (c *ContractResult) fail(err error) {
	c.Status = StatusFailed
	c.Err = err
	c.Error = err.Error()
}

// ChainResult is the outcome of validating one chain.
type ChainResult struct {
	ChainID   uint64           `json:"chainId"`
	Name      string           `json:"name"`
	RPCURL    string           `json:"rpcUrl,omitempty"`
	Status    Status           `json:"status"`
	Error     string           `json:"error,omitempty"`
	Err       error            `json:"-"`
	Contracts []ContractResult `json:"contracts"`
	Duration  time.Duration    `json:"durationNs"`
}

// Passed reports whether the chain and all of its contracts passed.
func (c ChainResult) Passed() bool {
	if c.Err != nil {
		return false
	}
	for _, ct := range c.Contracts {
		if ct.Failed() {
			return false
		}
	}
	return true
}

// FailedContracts returns the contracts whose check failed.
func (c ChainResult) FailedContracts() []ContractResult {
	var out []ContractResult
	for _, ct := range c.Contracts {
		if ct.Failed() {
			out = append(out, ct)
		}
	}
	return out
}

func (c *ChainResult) fail(err error) {
	c.Err = err
	c.Error = err.Error()
}

// settle derives the chain status from its own error and its contracts.
func (c *ChainResult) settle() {
	if c.Passed() {
		c.Status = StatusPassed
	} else {
		c.Status = StatusFailed
	}
}

// Report is the result of one validation run.
type Report struct {
	Version    string        `json:"version"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Passed     bool          `json:"passed"`
	Chains     []ChainResult `json:"chains"`
}

// Summary counts outcomes across a report.
type Summary struct {
	ChainsPassed     int `json:"chainsPassed"`
	ChainsFailed     int `json:"chainsFailed"`
	ContractsPassed  int `json:"contractsPassed"`
	ContractsFailed  int `json:"contractsFailed"`
	ContractsSkipped int `json:"contractsSkipped"`
}

// Verdict folds the chain results into the global outcome.
func (r *Report) Verdict() bool {
	for _, c := range r.Chains {
		if !c.Passed() {
			return false
		}
	}
	return true
}

// Summary returns outcome counts.
func (r *Report) Summary() Summary {
	var s Summary
	for _, c := range r.Chains {
		if c.Passed() {
			s.ChainsPassed++
		} else {
			s.ChainsFailed++
		}
		for _, ct := range c.Contracts {
			switch ct.Status {
			case StatusPassed:
				s.ContractsPassed++
			case StatusFailed:
				s.ContractsFailed++
			case StatusSkipped:
				s.ContractsSkipped++
			}
		}
	}
	return s
}

// Failed returns the chains that did not pass.
func (r *Report) Failed() []ChainResult {
	var out []ChainResult
	for _, c := range r.Chains {
		if !c.Passed() {
			out = append(out, c)
		}
	}
	return out
}
