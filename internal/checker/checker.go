// Package checker validates that every contract of a registry version has
// deployed code on its chain.
package checker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pendergraft/delegation-deployments/internal/chains"
	"github.com/pendergraft/delegation-deployments/internal/chains/evm"
	"github.com/pendergraft/delegation-deployments/internal/config"
	"github.com/pendergraft/delegation-deployments/internal/observability/metrics"
	"github.com/pendergraft/delegation-deployments/internal/registry"
)

const (
	DefaultConcurrency         = 8
	DefaultContractConcurrency = 4
	DefaultCallTimeout         = 30 * time.Second
)

// Options configures a Checker.
type Options struct {
	// Concurrency bounds the number of chains checked at once.
	Concurrency int
	// ContractConcurrency bounds the code checks in flight per chain.
	ContractConcurrency int
	// CallTimeout bounds every RPC call. Zero disables the timeout.
	CallTimeout time.Duration
	// CheckContractsOnMismatch runs contract checks even when the endpoint
	// reports the wrong chain id.
	CheckContractsOnMismatch bool
	// Chains restricts a run to these chain ids. Empty means all.
	Chains []uint64
	// Overrides replaces descriptor RPC urls.
	Overrides chains.Overrides
	// OnChainDone is called once per chain as soon as it settles. Calls are
	// serialized.
	OnChainDone func(ChainResult)
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Concurrency:         DefaultConcurrency,
		ContractConcurrency: DefaultContractConcurrency,
		CallTimeout:         DefaultCallTimeout,
	}
}

// OptionsFromConfig maps the validation section of the config to Options.
func OptionsFromConfig(cfg config.ValidationConfig) Options {
	return Options{
		Concurrency:              cfg.Concurrency,
		ContractConcurrency:      cfg.ContractConcurrency,
		CallTimeout:              cfg.CallTimeout,
		CheckContractsOnMismatch: cfg.CheckContractsOnMismatch,
	}
}

// Checker runs validations against live chains.
type Checker struct {
	registry *registry.Registry
	catalog  *chains.Catalog
	dialer   evm.Dialer
	opts     Options
	logger   *slog.Logger
}

// New creates a Checker.
func New(reg *registry.Registry, catalog *chains.Catalog, dialer evm.Dialer, opts Options, logger *slog.Logger) *Checker {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.ContractConcurrency <= 0 {
		opts.ContractConcurrency = DefaultContractConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		registry: reg,
		catalog:  catalog,
		dialer:   dialer,
		opts:     opts,
		logger:   logger,
	}
}

// RunLatest validates the highest registry version.
func (c *Checker) RunLatest(ctx context.Context) (*Report, error) {
	return c.Run(ctx, "")
}

// Run validates version, or the latest version when version is empty. Only
// configuration problems are returned as errors; chain and contract failures
// are recorded in the report.
func (c *Checker) Run(ctx context.Context, version string) (*Report, error) {
	version, chainIDs, err := c.plan(version)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Version:   version,
		StartedAt: time.Now().UTC(),
		Chains:    make([]ChainResult, len(chainIDs)),
	}
	c.logger.Info("validation started", "version", version, "chains", len(chainIDs))

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(c.opts.Concurrency)

	for i, chainID := range chainIDs {
		g.Go(func() error {
			contracts, _ := c.registry.Contracts(version, chainID)
			result := c.CheckChain(ctx, chainID, contracts)
			report.Chains[i] = result

			if c.opts.OnChainDone != nil {
				mu.Lock()
				c.opts.OnChainDone(result)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = time.Now().UTC()
	report.Passed = report.Verdict()
	metrics.RunFinished(version, report.Passed)

	s := report.Summary()
	c.logger.Info("validation finished",
		"version", version,
		"passed", report.Passed,
		"chains_failed", s.ChainsFailed,
		"contracts_failed", s.ContractsFailed,
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)
	return report, nil
}

// plan resolves the version and the chain ids to check.
func (c *Checker) plan(version string) (string, []uint64, error) {
	if version == "" {
		latest, err := c.registry.Latest()
		if err != nil {
			return "", nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		version = latest
	}

	chainIDs, err := c.registry.Chains(version)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if len(c.opts.Chains) == 0 {
		return version, chainIDs, nil
	}

	for _, id := range c.opts.Chains {
		if !slices.Contains(chainIDs, id) {
			return "", nil, fmt.Errorf("%w: chain %d is not part of version %s", ErrConfiguration, id, version)
		}
	}
	selected := make([]uint64, 0, len(c.opts.Chains))
	for _, id := range chainIDs {
		if slices.Contains(c.opts.Chains, id) {
			selected = append(selected, id)
		}
	}
	return version, selected, nil
}

// CheckChain validates a single chain. It never returns an error: failures
// are carried on the result.
func (c *Checker) CheckChain(ctx context.Context, chainID uint64, contracts registry.Contracts) (result ChainResult) {
	start := time.Now()
	result = ChainResult{
		ChainID:   chainID,
		Name:      c.chainLabel(chainID),
		Contracts: pending(contracts),
	}
	logger := c.logger.With("chain_id", chainID)

	defer func() {
		result.Duration = time.Since(start)
		result.settle()
		metrics.ChainChecked(string(result.Status))
		for _, ct := range result.Contracts {
			metrics.ContractChecked(string(ct.Status))
		}
	}()

	desc, err := c.catalog.Resolve(chainID)
	if err != nil {
		logger.Error("no chain descriptor", "error", err)
		result.fail(err)
		return result
	}
	desc = c.opts.Overrides.Apply(desc)
	result.Name = desc.Name
	result.RPCURL = desc.RPCURL
	logger = logger.With("chain", desc.Name)

	client, err := c.dial(ctx, desc.RPCURL)
	if err != nil {
		logger.Error("dial failed", "rpc", desc.RPCURL, "error", err)
		result.fail(fmt.Errorf("%w: %w", ErrTransport, err))
		return result
	}
	defer client.Close()

	if err := c.verifyChainID(ctx, client, desc.ID); err != nil {
		logger.Error("chain id check failed", "error", err)
		result.fail(err)
		if !errors.Is(err, ErrChainIDMismatch) || !c.opts.CheckContractsOnMismatch {
			return result
		}
	}

	var g errgroup.Group
	g.SetLimit(c.opts.ContractConcurrency)
	for i := range result.Contracts {
		g.Go(func() error {
			ct := &result.Contracts[i]
			c.checkContract(ctx, client, ct)
			if ct.Failed() {
				logger.Error("contract check failed", "contract", ct.Name, "address", ct.Address.Hex(), "error", ct.Err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return result
}

func (c *Checker) verifyChainID(ctx context.Context, client evm.Client, expected uint64) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	actual, err := client.ChainID(callCtx)
	if err != nil {
		return fmt.Errorf("%w: eth_chainId: %w", ErrTransport, err)
	}
	if !actual.IsUint64() || actual.Uint64() != expected {
		return &ChainIDMismatchError{Expected: expected, Actual: actual}
	}
	return nil
}

func (c *Checker) checkContract(ctx context.Context, client evm.Client, ct *ContractResult) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	code, err := evm.GetDeployedBytecode(callCtx, client, ct.Address)
	if err != nil {
		ct.fail(fmt.Errorf("%w for %s: %w", ErrTransport, ct.Name, err))
		return
	}
	fp := evm.FingerprintCode(code)
	if fp.Empty() {
		ct.fail(fmt.Errorf("%s is not deployed at %s: %w", ct.Name, ct.Address.Hex(), ErrMissingCode))
		return
	}
	ct.Status = StatusPassed
	ct.CodeSize = fp.Size
	ct.CodeHash = &fp.Hash
}

func (c *Checker) dial(ctx context.Context, rpcURL string) (evm.Client, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()
	return c.dialer.Dial(callCtx, rpcURL)
}

func (c *Checker) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.opts.CallTimeout)
}

func (c *Checker) chainLabel(chainID uint64) string {
	if name, ok := c.registry.ChainName(chainID); ok {
		return name
	}
	return fmt.Sprintf("chain %d", chainID)
}

// pending lists contracts in name order, all skipped until checked.
func pending(contracts registry.Contracts) []ContractResult {
	names := contracts.Names()
	out := make([]ContractResult, len(names))
	for i, name := range names {
		out[i] = ContractResult{Name: name, Address: contracts[name], Status: StatusSkipped}
	}
	return out
}
