package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// overlayFile decodes the TOML file at path on top of c. Keys absent from the
// file keep their current value.
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("parsing config file %s: unknown key %q", path, undecoded[0].String())
	}
	return nil
}

// LoadFile reads a TOML config file over defaults, ignoring the environment.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.overlayFile(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Encode renders c as TOML.
func (c *Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return buf.Bytes(), nil
}

// Template is the commented config written by `config init`.
const Template = `# delegation-deployments configuration.
# Environment variables take precedence over this file; flags take precedence
# over both.

[validation]
concurrency = 8
contract_concurrency = 4
call_timeout = "30s"
check_contracts_on_mismatch = false
# Periodic validation in the server; "0s" disables it.
interval = "0s"

[logging]
level = "info"
# json, text or console
format = ""

# Replace the RPC url of a chain, keyed by decimal chain id.
[rpc.overrides]
# "1" = "https://eth.merkle.io"

[server]
port = 8080
url = "http://localhost:8080"

[storage]
type = "sqlite"

[storage.sqlite]
path = "./data/deployments.db"
`
