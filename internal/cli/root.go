// Package cli implements the deployments command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pendergraft/delegation-deployments/internal/config"
)

const defaultServer = "http://localhost:8080"

var (
	cfgFile string
	server  string
	apiKey  string
)

// ExitError carries a process exit status. The command has already reported
// the failure, so main exits without printing it.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Execute runs the CLI
func Execute(version string) error {
	return newRootCmd(version).Execute()
}

func newRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "deployments",
		Short: "Delegation framework deployment registry and validator",
		Long: `deployments knows where every delegation framework contract is deployed,
per version and chain, and checks that the code is actually there.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: "+config.DefaultFile+" when present)")
	rootCmd.PersistentFlags().StringVar(&server, "server", "", "server URL for run commands (default from config)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key for triggering runs")

	rootCmd.AddCommand(createValidateCmd())
	rootCmd.AddCommand(createVersionsCmd())
	rootCmd.AddCommand(createContractsCmd())
	rootCmd.AddCommand(createChainsCmd())
	rootCmd.AddCommand(createRunsCmd())
	rootCmd.AddCommand(createConfigCmd())
	rootCmd.AddCommand(createAuthCmd())

	return rootCmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithFile(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// getServer returns the server URL from flag, env or config file
func getServer() string {
	// 1. Command line flag
	if server != "" {
		return server
	}

	// 2. DEPLOYMENTS_SERVER or the config file
	if cfg, err := loadConfig(); err == nil && cfg.Server.URL != "" {
		return cfg.Server.URL
	}

	// 3. Default
	return defaultServer
}

// getAPIKey returns the API key from flag, env or credentials file
func getAPIKey() string {
	// 1. Command line flag
	if apiKey != "" {
		return apiKey
	}

	// 2. Environment variable
	if env := os.Getenv("DEPLOYMENTS_API_KEY"); env != "" {
		return env
	}

	// 3. Credentials file (keyed by server URL)
	return getCredential(getServer())
}
