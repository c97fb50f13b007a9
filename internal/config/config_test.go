package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deployments.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, 8, cfg.Validation.Concurrency)
	assert.Equal(t, 4, cfg.Validation.ContractConcurrency)
	assert.Equal(t, 30*time.Second, cfg.Validation.CallTimeout)
	assert.False(t, cfg.Validation.CheckContractsOnMismatch)
	assert.Empty(t, cfg.Auth.APIKey)
}

func TestLoadFilePrecedence(t *testing.T) {
	path := writeFile(t, `
[validation]
concurrency = 2
call_timeout = "5s"

[logging]
format = "text"

[rpc.overrides]
"1" = "https://file.example"
"137" = "https://polygon.example"
`)

	t.Setenv("VALIDATE_CONCURRENCY", "16")
	t.Setenv("RPC_OVERRIDES", "1=https://env.example")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.Validation.Concurrency, "env wins over file")
	assert.Equal(t, 5*time.Second, cfg.Validation.CallTimeout, "file wins over default")
	assert.Equal(t, 4, cfg.Validation.ContractConcurrency, "default kept")
	assert.Equal(t, "text", cfg.Logging.Format)

	overrides, err := cfg.RPCOverrides()
	require.NoError(t, err)
	assert.Equal(t, "https://env.example", overrides[1])
	assert.Equal(t, "https://polygon.example", overrides[137])
}

func TestLoadFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown key", "[validation]\nparallelism = 3\n"},
		{"bad syntax", "[validation\n"},
		{"bad override", "[rpc.overrides]\n\"mainnet\" = \"https://x.example\"\n"},
		{"bad storage", "[storage]\ntype = \"mysql\"\n"},
		{"bad format", "[logging]\nformat = \"xml\"\n"},
		{"zero concurrency", "[validation]\nconcurrency = 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadWithFile(writeFile(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := LoadWithFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestDatabaseURLSelectsPostgres(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://localhost/deployments")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Storage.Type)

	t.Setenv("STORAGE_TYPE", "sqlite")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "45")
	assert.Equal(t, 45*time.Second, getEnvDuration("TEST_DURATION", time.Second))

	t.Setenv("TEST_DURATION", "250ms")
	assert.Equal(t, 250*time.Millisecond, getEnvDuration("TEST_DURATION", time.Second))

	t.Setenv("TEST_DURATION", "soon")
	assert.Equal(t, time.Second, getEnvDuration("TEST_DURATION", time.Second))
}

func TestTemplateParses(t *testing.T) {
	cfg, err := LoadFile(writeFile(t, Template))
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, time.Duration(0), cfg.Validation.Interval)
}

func TestEncodeRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.RPC.Overrides["10"] = "https://optimism.example"

	data, err := cfg.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(data), "https://optimism.example")
}

func TestEffectiveOverrides(t *testing.T) {
	cfg := Default()
	cfg.RPC.Overrides["1"] = "https://mainnet.example"
	cfg.RPC.Overrides["10"] = "https://optimism.example"

	o, err := cfg.EffectiveOverrides()
	require.NoError(t, err)
	assert.Equal(t, "https://mainnet.example", o[1])
	assert.Equal(t, "https://optimism.example", o[10])
	// built-in entries survive
	assert.Equal(t, "https://bsc-dataseed1.binance.org/", o[56])
}
