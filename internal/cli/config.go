package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pendergraft/delegation-deployments/internal/config"
)

func createConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	cmd.AddCommand(createConfigInitCmd())
	cmd.AddCommand(createConfigShowCmd())

	return cmd
}

func createConfigInitCmd() *cobra.Command {
	var path string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create config file",
		Long: `Create a commented ` + config.DefaultFile + ` in the current directory.

EXAMPLES:
  # Create the default config file
  deployments config init

  # Overwrite an existing file
  deployments config init --force
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd.OutOrStdout(), path, force)
		},
	}

	cmd.Flags().StringVarP(&path, "output", "o", config.DefaultFile, "file to write")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config")

	return cmd
}

func createConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display effective config",
		Long: `Display where configuration comes from and the effective result.

EXAMPLES:
  deployments config show
  deployments --config ci.toml config show
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd.OutOrStdout())
		},
	}

	return cmd
}

func runConfigInit(out io.Writer, path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	if err := os.WriteFile(path, []byte(config.Template), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(out, "Created %s\n", path)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintf(out, "  1. Edit %s to add RPC overrides or tune concurrency\n", path)
	fmt.Fprintln(out, "  2. Run 'deployments validate' to check the latest version")

	return nil
}

func runConfigShow(out io.Writer) error {
	fmt.Fprintln(out, "Configuration sources (in order of precedence):")
	fmt.Fprintln(out)

	// 1. Command line flags
	fmt.Fprintln(out, "1. Command line flags")
	fmt.Fprintln(out, "   --server, --api-key, --config, validate flags")
	fmt.Fprintln(out)

	// 2. Environment variables
	fmt.Fprintln(out, "2. Environment variables")
	for _, key := range []string{"DEPLOYMENTS_SERVER", "DEPLOYMENTS_API_KEY", "RPC_OVERRIDES", "LOG_LEVEL", "LOG_FORMAT"} {
		value := os.Getenv(key)
		switch {
		case value == "":
			value = "(not set)"
		case key == "DEPLOYMENTS_API_KEY":
			value = maskAPIKey(value)
		}
		fmt.Fprintf(out, "   %s=%s\n", key, value)
	}
	fmt.Fprintln(out)

	// 3. Config file
	path := cfgFile
	if path == "" {
		path = config.DefaultFile
	}
	fmt.Fprintf(out, "3. Config file (%s)\n", path)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(out, "   (not found)")
		} else {
			fmt.Fprintf(out, "   Error: %v\n", err)
		}
	} else {
		fmt.Fprintln(out, "   (loaded)")
	}
	fmt.Fprintln(out)

	// 4. Credentials
	fmt.Fprintf(out, "4. Credentials (%s)\n", credentialsFilePath())
	creds, err := loadCredentials()
	switch {
	case errors.Is(err, os.ErrNotExist):
		fmt.Fprintln(out, "   (not found)")
	case err != nil:
		fmt.Fprintf(out, "   Error: %v\n", err)
	case len(creds.Servers) == 0:
		fmt.Fprintln(out, "   (no credentials stored)")
	default:
		for server, cred := range creds.Servers {
			fmt.Fprintf(out, "   %s: %s\n", server, maskAPIKey(cred.APIKey))
		}
	}
	fmt.Fprintln(out)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.APIKey != "" {
		cfg.Auth.APIKey = maskAPIKey(cfg.Auth.APIKey)
	}
	data, err := cfg.Encode()
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Effective configuration:")
	fmt.Fprintln(out)
	_, err = out.Write(data)
	return err
}
