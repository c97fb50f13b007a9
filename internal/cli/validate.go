package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pendergraft/delegation-deployments/internal/chains"
	"github.com/pendergraft/delegation-deployments/internal/chains/evm"
	"github.com/pendergraft/delegation-deployments/internal/checker"
	"github.com/pendergraft/delegation-deployments/internal/config"
	"github.com/pendergraft/delegation-deployments/internal/logging"
	"github.com/pendergraft/delegation-deployments/internal/registry"
	"github.com/pendergraft/delegation-deployments/internal/report"
	runsDomain "github.com/pendergraft/delegation-deployments/internal/runs/domain"
	"github.com/pendergraft/delegation-deployments/internal/storage"
)

type validateOptions struct {
	jsonOutput          bool
	chainRefs           []string
	rpcPairs            []string
	concurrency         int
	contractConcurrency int
	timeout             time.Duration
	checkOnMismatch     bool
	record              bool
}

func createValidateCmd() *cobra.Command {
	var opts validateOptions

	cmd := &cobra.Command{
		Use:   "validate [version]",
		Short: "Check that every contract of a version has code on its chain",
		Long: `Validate a registry version against live chains.

For every chain of the version the RPC endpoint is dialed, its chain id is
compared with the expected one, and each contract address is checked for
deployed code. Without a version argument the latest version is validated.

The command exits with status 1 if any chain or contract failed.

EXAMPLES:
  # Validate the latest version on every chain
  deployments validate

  # Validate one version on two chains
  deployments validate 1.1.0 --chain sepolia --chain 8453

  # Use a private endpoint for mainnet
  deployments validate --rpc 1=https://eth.example.com

  # Machine-readable output
  deployments validate --json
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var version string
			if len(args) == 1 {
				version = args[0]
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("concurrency") {
				cfg.Validation.Concurrency = opts.concurrency
			}
			if flags.Changed("contract-concurrency") {
				cfg.Validation.ContractConcurrency = opts.contractConcurrency
			}
			if flags.Changed("timeout") {
				cfg.Validation.CallTimeout = opts.timeout
			}
			if flags.Changed("check-on-mismatch") {
				cfg.Validation.CheckContractsOnMismatch = opts.checkOnMismatch
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			return runValidate(cmd, cfg, version, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "print the report as JSON")
	cmd.Flags().StringArrayVar(&opts.chainRefs, "chain", nil, "only validate this chain (id, key or registry name, repeatable)")
	cmd.Flags().StringArrayVar(&opts.rpcPairs, "rpc", nil, "override a chain RPC url as chainId=url (repeatable)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", checker.DefaultConcurrency, "chains checked at once")
	cmd.Flags().IntVar(&opts.contractConcurrency, "contract-concurrency", checker.DefaultContractConcurrency, "code checks in flight per chain")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", checker.DefaultCallTimeout, "timeout for each RPC call (0 disables)")
	cmd.Flags().BoolVar(&opts.checkOnMismatch, "check-on-mismatch", false, "check contracts even when the endpoint reports the wrong chain id")
	cmd.Flags().BoolVar(&opts.record, "record", false, "store the run in the configured run history")

	return cmd
}

func runValidate(cmd *cobra.Command, cfg *config.Config, version string, opts validateOptions) error {
	out := cmd.OutOrStdout()

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Logging, "console")
	if err != nil {
		return err
	}

	reg, err := registry.Default()
	if err != nil {
		return err
	}
	catalog, err := chains.Default()
	if err != nil {
		return err
	}

	overrides, err := cfg.EffectiveOverrides()
	if err != nil {
		return err
	}
	flagOverrides, err := chains.ParseOverrides(opts.rpcPairs)
	if err != nil {
		return err
	}
	overrides = overrides.Merge(flagOverrides)

	chainIDs, err := resolveChainRefs(reg, catalog, opts.chainRefs)
	if err != nil {
		return err
	}

	checkerOpts := checker.OptionsFromConfig(cfg.Validation)
	checkerOpts.Overrides = overrides
	checkerOpts.Chains = chainIDs

	var text *report.Text
	if !opts.jsonOutput {
		text = report.NewText(out)
		checkerOpts.OnChainDone = text.ChainDone
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialer := evm.NewDialer()
	rep, err := checker.New(reg, catalog, dialer, checkerOpts, logger).Run(ctx, version)
	if err != nil {
		return err
	}

	if opts.record {
		if err := recordRun(ctx, cfg, rep, logger); err != nil {
			return err
		}
	}

	if opts.jsonOutput {
		if err := report.WriteJSON(out, rep); err != nil {
			return err
		}
	} else {
		text.Summary(rep)
	}

	if code := report.ExitCode(rep); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// resolveChainRefs maps chain ids, catalog keys and registry names to ids.
func resolveChainRefs(reg *registry.Registry, catalog *chains.Catalog, refs []string) ([]uint64, error) {
	ids := make([]uint64, 0, len(refs))
	for _, ref := range refs {
		if d, err := catalog.Lookup(ref); err == nil {
			ids = append(ids, d.ID)
			continue
		}
		if id, ok := reg.ChainID(ref); ok {
			ids = append(ids, id)
			continue
		}
		return nil, fmt.Errorf("unknown chain %q", ref)
	}
	return ids, nil
}

func recordRun(ctx context.Context, cfg *config.Config, rep *checker.Report, logger *slog.Logger) error {
	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("opening run history: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating run history: %w", err)
	}

	run := runsDomain.FromReport(rep, runsDomain.TriggerCLI)
	if err := store.RecordRun(ctx, run); err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	logger.Info("run recorded", "id", run.ID, "storage", cfg.Storage.Type)
	return nil
}
