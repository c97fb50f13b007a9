// Package domain exposes the deployment registry and chain catalog for reading.
package domain

// VersionsResult lists registry versions in ascending semver order.
type VersionsResult struct {
	Versions []string `json:"versions"`
	Latest   string   `json:"latest"`
}

// VersionDetail summarises one registry version.
type VersionDetail struct {
	Version string         `json:"version"`
	Latest  bool           `json:"latest"`
	Chains  []ChainSummary `json:"chains"`
}

// ChainSummary is one chain within a version.
type ChainSummary struct {
	ChainID   uint64 `json:"chainId"`
	Key       string `json:"key,omitempty"`
	Name      string `json:"name"`
	Contracts int    `json:"contracts"`
}

// Deployment is the set of contracts of one version on one chain.
type Deployment struct {
	Version   string     `json:"version"`
	ChainID   uint64     `json:"chainId"`
	ChainName string     `json:"chainName"`
	Contracts []Contract `json:"contracts"`
}

// Contract is a named contract address.
type Contract struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Chain is a catalog entry with its effective RPC endpoint.
type Chain struct {
	ChainID        uint64   `json:"chainId"`
	Key            string   `json:"key"`
	Name           string   `json:"name"`
	RPCURL         string   `json:"rpcUrl"`
	Overridden     bool     `json:"overridden"`
	Testnet        bool     `json:"testnet"`
	CurrencySymbol string   `json:"currencySymbol"`
	Versions       []string `json:"versions"`
}
