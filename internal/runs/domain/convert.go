package domain

import (
	"github.com/pendergraft/delegation-deployments/internal/checker"
	"github.com/pendergraft/delegation-deployments/internal/storage"
)

// FromReport converts a checker report into a storable run.
func FromReport(rep *checker.Report, triggeredBy string) *storage.Run {
	summary := rep.Summary()
	run := &storage.Run{
		Version:         rep.Version,
		Passed:          rep.Passed,
		TriggeredBy:     triggeredBy,
		ChainsFailed:    summary.ChainsFailed,
		ContractsFailed: summary.ContractsFailed,
		StartedAt:       rep.StartedAt,
		FinishedAt:      rep.FinishedAt,
		Chains:          make([]storage.ChainRun, len(rep.Chains)),
	}

	for i, c := range rep.Chains {
		cr := storage.ChainRun{
			ChainID:    c.ChainID,
			Name:       c.Name,
			RPCURL:     c.RPCURL,
			Status:     string(c.Status),
			Error:      c.Error,
			DurationMS: c.Duration.Milliseconds(),
			Contracts:  make([]storage.ContractRun, len(c.Contracts)),
		}
		for j, ct := range c.Contracts {
			cr.Contracts[j] = storage.ContractRun{
				Name:     ct.Name,
				Address:  ct.Address.Hex(),
				Status:   string(ct.Status),
				Error:    ct.Error,
				CodeSize: ct.CodeSize,
			}
			if ct.CodeHash != nil {
				cr.Contracts[j].CodeHash = ct.CodeHash.Hex()
			}
		}
		run.Chains[i] = cr
	}
	return run
}

func fromStorage(r *storage.Run) *Run {
	run := &Run{
		ID:              r.ID,
		Version:         r.Version,
		Passed:          r.Passed,
		TriggeredBy:     r.TriggeredBy,
		ChainsFailed:    r.ChainsFailed,
		ContractsFailed: r.ContractsFailed,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
	}
	if len(r.Chains) == 0 {
		return run
	}

	run.Chains = make([]ChainRun, len(r.Chains))
	for i, c := range r.Chains {
		contracts := make([]ContractRun, len(c.Contracts))
		for j, ct := range c.Contracts {
			contracts[j] = ContractRun(ct)
		}
		run.Chains[i] = ChainRun{
			ChainID:    c.ChainID,
			Name:       c.Name,
			RPCURL:     c.RPCURL,
			Status:     c.Status,
			Error:      c.Error,
			DurationMS: c.DurationMS,
			Contracts:  contracts,
		}
	}
	return run
}
