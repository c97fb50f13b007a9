// Package chains provides the catalog of known EVM chains and the RPC endpoint
// overrides applied on top of it.
package chains

import (
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed data/chains.yaml
var defaultChains []byte

// ErrChainNotFound is returned when a chain id has no descriptor in the catalog.
var ErrChainNotFound = errors.New("chain not found")

// Currency describes a chain's native currency.
type Currency struct {
	Name     string `yaml:"name" json:"name"`
	Symbol   string `yaml:"symbol" json:"symbol"`
	Decimals uint8  `yaml:"decimals" json:"decimals"`
}

// Descriptor is the static description of an EVM chain.
type Descriptor struct {
	ID             uint64   `yaml:"id" json:"id"`
	Key            string   `yaml:"key" json:"key"`
	Name           string   `yaml:"name" json:"name"`
	RPCURL         string   `yaml:"rpc" json:"rpcUrl"`
	NativeCurrency Currency `yaml:"currency" json:"nativeCurrency"`
	Testnet        bool     `yaml:"testnet,omitempty" json:"testnet"`
}

// Catalog is an immutable set of chain descriptors keyed by chain id.
type Catalog struct {
	byID  map[uint64]Descriptor
	byKey map[string]uint64
	ids   []uint64
}

// NewCatalog builds a catalog, rejecting duplicate ids or keys and malformed
// RPC urls.
func NewCatalog(descriptors []Descriptor) (*Catalog, error) {
	c := &Catalog{
		byID:  make(map[uint64]Descriptor, len(descriptors)),
		byKey: make(map[string]uint64, len(descriptors)),
	}

	for _, d := range descriptors {
		if d.ID == 0 {
			return nil, fmt.Errorf("chain %q: id must be positive", d.Key)
		}
		if d.Key == "" || d.Name == "" {
			return nil, fmt.Errorf("chain %d: key and name are required", d.ID)
		}
		if err := validateRPCURL(d.RPCURL); err != nil {
			return nil, fmt.Errorf("chain %d: %w", d.ID, err)
		}
		if _, ok := c.byID[d.ID]; ok {
			return nil, fmt.Errorf("chain %d: duplicate id", d.ID)
		}
		if _, ok := c.byKey[strings.ToLower(d.Key)]; ok {
			return nil, fmt.Errorf("chain %d: duplicate key %q", d.ID, d.Key)
		}
		c.byID[d.ID] = d
		c.byKey[strings.ToLower(d.Key)] = d.ID
		c.ids = append(c.ids, d.ID)
	}

	sort.Slice(c.ids, func(i, j int) bool { return c.ids[i] < c.ids[j] })
	return c, nil
}

// ParseCatalog decodes a YAML list of descriptors.
func ParseCatalog(data []byte) (*Catalog, error) {
	var descriptors []Descriptor
	if err := yaml.Unmarshal(data, &descriptors); err != nil {
		return nil, fmt.Errorf("parsing chain catalog: %w", err)
	}
	return NewCatalog(descriptors)
}

var loadDefault = sync.OnceValues(func() (*Catalog, error) {
	return ParseCatalog(defaultChains)
})

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return loadDefault()
}

// Resolve returns the descriptor for a chain id.
func (c *Catalog) Resolve(id uint64) (Descriptor, error) {
	d, ok := c.byID[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("chain id %d: %w", id, ErrChainNotFound)
	}
	return d, nil
}

// Lookup resolves either a decimal chain id or a chain key (case-insensitive).
func (c *Catalog) Lookup(idOrKey string) (Descriptor, error) {
	idOrKey = strings.TrimSpace(idOrKey)
	if id, err := strconv.ParseUint(idOrKey, 10, 64); err == nil {
		return c.Resolve(id)
	}
	id, ok := c.byKey[strings.ToLower(idOrKey)]
	if !ok {
		return Descriptor{}, fmt.Errorf("chain %q: %w", idOrKey, ErrChainNotFound)
	}
	return c.byID[id], nil
}

// List returns all descriptors ordered by chain id.
func (c *Catalog) List() []Descriptor {
	out := make([]Descriptor, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.byID[id])
	}
	return out
}

// Len returns the number of chains in the catalog.
func (c *Catalog) Len() int {
	return len(c.ids)
}

func validateRPCURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid rpc url %q: %w", raw, err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("invalid rpc url %q: unsupported scheme", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid rpc url %q: missing host", raw)
	}
	return nil
}
