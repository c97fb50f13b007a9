package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pendergraft/delegation-deployments/internal/chains"
	"github.com/pendergraft/delegation-deployments/internal/deployments/domain"
	"github.com/pendergraft/delegation-deployments/internal/registry"
)

// newDeploymentsService reads the embedded registry and catalog with the
// configured RPC overrides.
func newDeploymentsService() (domain.Service, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	reg, err := registry.Default()
	if err != nil {
		return nil, err
	}
	catalog, err := chains.Default()
	if err != nil {
		return nil, err
	}
	overrides, err := cfg.EffectiveOverrides()
	if err != nil {
		return nil, err
	}
	return domain.NewService(reg, catalog, overrides), nil
}

func createVersionsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "versions",
		Short: "List registry versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newDeploymentsService()
			if err != nil {
				return err
			}
			result, err := svc.Versions(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, result)
			}
			for _, v := range result.Versions {
				if v == result.Latest {
					fmt.Fprintf(out, "%s (latest)\n", v)
					continue
				}
				fmt.Fprintln(out, v)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func createContractsCmd() *cobra.Command {
	var chain string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "contracts [version]",
		Short: "Show contract addresses of a version",
		Long: `Show the contract addresses of a registry version. Without a version the
latest is shown.

EXAMPLES:
  # Every chain of the latest version
  deployments contracts

  # One chain of a specific version
  deployments contracts 1.1.0 --chain sepolia
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version := domain.LatestAlias
			if len(args) == 1 {
				version = args[0]
			}

			svc, err := newDeploymentsService()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var chainRefs []string
			if chain != "" {
				chainRefs = []string{chain}
			} else {
				detail, err := svc.Version(ctx, version)
				if err != nil {
					return err
				}
				for _, c := range detail.Chains {
					chainRefs = append(chainRefs, fmt.Sprint(c.ChainID))
				}
			}

			deployments := make([]*domain.Deployment, 0, len(chainRefs))
			for _, ref := range chainRefs {
				dep, err := svc.Deployment(ctx, version, ref)
				if err != nil {
					return err
				}
				deployments = append(deployments, dep)
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, deployments)
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CHAIN\tID\tCONTRACT\tADDRESS")
			for _, dep := range deployments {
				for _, c := range dep.Contracts {
					fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", dep.ChainName, dep.ChainID, c.Name, c.Address)
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&chain, "chain", "", "chain id, key or registry name")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func createChainsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "chains",
		Short: "List known chains with their effective RPC endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newDeploymentsService()
			if err != nil {
				return err
			}
			list, err := svc.Chains(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, list)
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKEY\tNAME\tRPC\tVERSIONS")
			for _, c := range list {
				rpc := c.RPCURL
				if c.Overridden {
					rpc += " (override)"
				}
				versions := strings.Join(c.Versions, ",")
				if versions == "" {
					versions = "-"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", c.ChainID, c.Key, c.Name, rpc, versions)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
