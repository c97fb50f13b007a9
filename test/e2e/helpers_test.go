//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pendergraft/delegation-deployments/internal/auth"
	"github.com/pendergraft/delegation-deployments/internal/chains"
	"github.com/pendergraft/delegation-deployments/internal/chains/evm"
	"github.com/pendergraft/delegation-deployments/internal/chains/evm/evmtest"
	"github.com/pendergraft/delegation-deployments/internal/checker"
	"github.com/pendergraft/delegation-deployments/internal/config"
	"github.com/pendergraft/delegation-deployments/internal/registry"
	"github.com/pendergraft/delegation-deployments/internal/server"
	"github.com/pendergraft/delegation-deployments/internal/storage"
	"github.com/pendergraft/delegation-deployments/pkg/client"
)

// TestContext holds shared test infrastructure
type TestContext struct {
	PostgresContainer *postgres.PostgresContainer
	ConnString        string
	Overrides         chains.Overrides
	TestServer        *httptest.Server
	Store             storage.Store
	APIKey            string

	closeNodes func()
}

// setupPostgresE starts a Postgres container and returns the connection string
func setupPostgresE(ctx context.Context) (*postgres.PostgresContainer, string, error) {
	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("deployments"),
		postgres.WithUsername("deployments"),
		postgres.WithPassword("deployments"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	connString, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = postgresContainer.Terminate(ctx)
		return nil, "", fmt.Errorf("failed to get postgres connection string: %w", err)
	}

	return postgresContainer, connString, nil
}

// startNodesE serves every chain of the latest version with all of its
// contracts deployed. Older versions that point at other addresses fail.
func startNodesE() (chains.Overrides, func(), error) {
	reg, err := registry.Default()
	if err != nil {
		return nil, nil, err
	}
	latest, err := reg.Latest()
	if err != nil {
		return nil, nil, err
	}
	ids, err := reg.Chains(latest)
	if err != nil {
		return nil, nil, err
	}

	overrides := make(chains.Overrides, len(ids))
	servers := make([]*httptest.Server, 0, len(ids))
	closeAll := func() {
		for _, s := range servers {
			s.Close()
		}
	}

	for _, id := range ids {
		contracts, err := reg.Contracts(latest, id)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		node := evmtest.NewNode(id)
		for _, addr := range contracts {
			node.SetCode(addr, []byte{0x60, 0x80, 0x60, 0x40, 0x52})
		}
		s := node.Start()
		servers = append(servers, s)
		overrides[id] = s.URL
	}
	return overrides, closeAll, nil
}

// startServerE starts the deployments server in-process against postgres
func startServerE(connString string, overrides chains.Overrides) (*httptest.Server, storage.Store, string, error) {
	apiKey, err := auth.GenerateAPIKey()
	if err != nil {
		return nil, nil, "", err
	}

	cfg := config.Default()
	cfg.Storage = config.StorageConfig{
		Type:     "postgres",
		Postgres: config.PostgresConfig{URL: connString},
	}
	cfg.Auth.APIKey = apiKey
	cfg.Cache.Enabled = false
	cfg.RateLimit.Enabled = false
	cfg.Logging = config.LoggingConfig{Level: "debug", Format: "text"}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to create store: %w", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		return nil, nil, "", fmt.Errorf("failed to run migrations: %w", err)
	}

	reg, err := registry.Default()
	if err != nil {
		return nil, nil, "", err
	}
	catalog, err := chains.Default()
	if err != nil {
		return nil, nil, "", err
	}

	opts := checker.OptionsFromConfig(cfg.Validation)
	opts.Overrides = overrides
	opts.CallTimeout = 5 * time.Second
	validator := checker.New(reg, catalog, evm.NewDialer(), opts, logger)

	srv, err := server.New(cfg, server.Deps{
		Store:     store,
		Registry:  reg,
		Catalog:   catalog,
		Overrides: overrides,
		Validator: validator,
	}, logger)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to create server: %w", err)
	}

	return httptest.NewServer(srv.Handler()), store, apiKey, nil
}

// newClient creates a new API client for the test server
func newClient(testServer *httptest.Server, apiKey string) *client.Client {
	return client.New(testServer.URL, apiKey)
}

// assertHTTPError asserts that an error is an APIError with the expected code
func assertHTTPError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	require.Error(t, err, "Expected an error")
	apiErr, ok := err.(*client.APIError)
	require.True(t, ok, "Error should be an APIError")
	require.Equal(t, expectedCode, apiErr.Code, "Error code mismatch")
}
