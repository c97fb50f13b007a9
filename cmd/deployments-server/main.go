package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pendergraft/delegation-deployments/internal/auth"
	"github.com/pendergraft/delegation-deployments/internal/chains"
	"github.com/pendergraft/delegation-deployments/internal/chains/evm"
	"github.com/pendergraft/delegation-deployments/internal/checker"
	"github.com/pendergraft/delegation-deployments/internal/config"
	"github.com/pendergraft/delegation-deployments/internal/logging"
	"github.com/pendergraft/delegation-deployments/internal/observability/metrics"
	"github.com/pendergraft/delegation-deployments/internal/registry"
	runsDomain "github.com/pendergraft/delegation-deployments/internal/runs/domain"
	"github.com/pendergraft/delegation-deployments/internal/server"
	"github.com/pendergraft/delegation-deployments/internal/storage"
)

var (
	version = "dev"
	cfgFile string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "deployments-server",
		Short:        "Deployments server - registry API and scheduled validation",
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: "+config.DefaultFile+" when present)")

	// Default behavior (no subcommand) is to serve
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runServe()
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newKeygenCmd())

	return rootCmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the run history schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := logging.New(os.Stderr, cfg.Logging, "text")
			if err != nil {
				return err
			}

			store, err := storage.New(cfg.Storage, logger)
			if err != nil {
				return fmt.Errorf("initializing storage: %w", err)
			}
			defer store.Close()

			if err := store.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}
			logger.Info("migrations applied", "storage", cfg.Storage.Type)
			return nil
		},
	}
}

func newKeygenCmd() *cobra.Command {
	var outputFile string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an API key for triggering runs",
		Long: `Generate a random API key. The server accepts it once it is set as
AUTH_API_KEY (or [auth] api_key in the config file).

EXAMPLES:
  # Print the key with usage instructions
  deployments-server keygen

  # Print only the key (for piping to a secrets manager)
  deployments-server keygen --quiet | gh secret set DEPLOYMENTS_API_KEY

  # Write the key to a file
  deployments-server keygen --output /secure/path/key.txt
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeygen(outputFile, quiet)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "write key to file (mode 0600)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print only the key (for piping)")

	return cmd
}

func runKeygen(outputFile string, quiet bool) error {
	key, err := auth.GenerateAPIKey()
	if err != nil {
		return err
	}

	if quiet {
		fmt.Println(key)
		return nil
	}

	if outputFile != "" {
		if dir := filepath.Dir(outputFile); dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return fmt.Errorf("creating directory: %w", err)
			}
		}
		if err := os.WriteFile(outputFile, []byte(key+"\n"), 0600); err != nil {
			return fmt.Errorf("writing key to file: %w", err)
		}
		fmt.Printf("API key written to %s (mode 0600)\n", outputFile)
	} else {
		fmt.Println("API key (save this, it is not stored anywhere):")
		fmt.Println()
		fmt.Println("   ", key)
	}

	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  server: AUTH_API_KEY=<key> deployments-server serve")
	fmt.Println("  client: deployments auth login --key <key>")
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithFile(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// Server command

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New(os.Stderr, cfg.Logging, "json")
	if err != nil {
		return err
	}
	logger.Info("starting deployments-server", "version", version)

	metrics.Init(cfg.Metrics.Enabled, "deployments-server")

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(context.Background()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
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

	opts := checker.OptionsFromConfig(cfg.Validation)
	opts.Overrides = overrides
	dialer := evm.NewDialer(evm.WithObserver(metrics.RPCCall))
	validator := checker.New(reg, catalog, dialer, opts, logger.With("component", "checker"))

	srv, err := server.New(cfg, server.Deps{
		Store:     store,
		Registry:  reg,
		Catalog:   catalog,
		Overrides: overrides,
		Validator: validator,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	if cfg.Auth.APIKey == "" {
		logger.Warn("AUTH_API_KEY not set, triggering runs is unauthenticated")
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Metrics.Port),
			Handler:           srv.MetricsHandler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 2)
	go serve(httpServer, "server", logger, errChan)
	if metricsServer != nil {
		go serve(metricsServer, "metrics", logger, errChan)
	}
	go runsDomain.NewScheduler(srv.Runs(), cfg.Validation.Interval, logger).Start(ctx)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig)
	}
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics shutdown error", "error", err)
		}
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func serve(s *http.Server, name string, logger *slog.Logger, errChan chan<- error) {
	logger.Info(name+" listening", "addr", s.Addr)
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errChan <- fmt.Errorf("%s: %w", name, err)
	}
}
