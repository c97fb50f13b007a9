// Package registry holds the contract deployment registry: for every released
// version, the address of each contract on each chain it was deployed to.
package registry

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/pendergraft/delegation-deployments/internal/validation"
)

//go:embed data/deployments.yaml
var defaultData []byte

var (
	ErrNoVersions        = errors.New("registry has no versions")
	ErrVersionNotFound   = errors.New("version not found")
	ErrChainNotInVersion = errors.New("chain not deployed in version")
	ErrContractNotFound  = errors.New("contract not found")
	ErrUnknownChainName  = errors.New("unknown chain name")
)

// Contracts maps contract names to deployed addresses on a single chain.
type Contracts map[string]common.Address

// Names returns the contract names in lexical order.
func (c Contracts) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c Contracts) clone() Contracts {
	out := make(Contracts, len(c))
	for name, addr := range c {
		out[name] = addr
	}
	return out
}

// Registry is an immutable version -> chain id -> contracts mapping.
type Registry struct {
	versions   map[string]map[uint64]Contracts
	chainIDs   map[string]uint64
	chainNames map[uint64]string
}

// New builds a registry from already resolved deployments. Version keys are
// normalized and must be MAJOR.MINOR.PATCH.
func New(versions map[string]map[uint64]Contracts) (*Registry, error) {
	r := &Registry{
		versions:   make(map[string]map[uint64]Contracts, len(versions)),
		chainIDs:   map[string]uint64{},
		chainNames: map[uint64]string{},
	}
	for version, chains := range versions {
		if err := validation.ValidateVersion(version); err != nil {
			return nil, fmt.Errorf("version %q: %w", version, err)
		}
		v := validation.NormalizeVersion(version)
		if _, dup := r.versions[v]; dup {
			return nil, fmt.Errorf("version %q: duplicate", version)
		}
		byChain := make(map[uint64]Contracts, len(chains))
		for chainID, contracts := range chains {
			if err := validation.ValidateChainID(chainID); err != nil {
				return nil, fmt.Errorf("version %s: %w", v, err)
			}
			byChain[chainID] = contracts.clone()
		}
		r.versions[v] = byChain
	}
	return r, nil
}

// Parse decodes a registry data file.
func Parse(data []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing registry: %w", err)
	}
	return f.resolve()
}

var loadDefault = sync.OnceValues(func() (*Registry, error) {
	return Parse(defaultData)
})

// Default returns the registry compiled into the binary.
func Default() (*Registry, error) {
	return loadDefault()
}

// Latest returns the highest version under semver ordering.
func (r *Registry) Latest() (string, error) {
	latest := validation.ResolveLatest(r.Versions(), true)
	if latest == "" {
		return "", ErrNoVersions
	}
	return latest, nil
}

// Versions returns all versions in ascending semver order.
func (r *Registry) Versions() []string {
	versions := make([]string, 0, len(r.versions))
	for v := range r.versions {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool {
		return validation.CompareVersions(versions[i], versions[j]) < 0
	})
	return versions
}

// Has reports whether version exists.
func (r *Registry) Has(version string) bool {
	_, ok := r.versions[validation.NormalizeVersion(version)]
	return ok
}

// Chains returns the chain ids a version was deployed to, ascending.
func (r *Registry) Chains(version string) ([]uint64, error) {
	byChain, err := r.version(version)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(byChain))
	for id := range byChain {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Contracts returns a copy of the contracts of version on chainID.
func (r *Registry) Contracts(version string, chainID uint64) (Contracts, error) {
	byChain, err := r.version(version)
	if err != nil {
		return nil, err
	}
	contracts, ok := byChain[chainID]
	if !ok {
		return nil, fmt.Errorf("version %s chain %d: %w", validation.NormalizeVersion(version), chainID, ErrChainNotInVersion)
	}
	return contracts.clone(), nil
}

// Address returns the address of a single contract.
func (r *Registry) Address(version string, chainID uint64, name string) (common.Address, error) {
	contracts, err := r.Contracts(version, chainID)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := contracts[name]
	if !ok {
		return common.Address{}, fmt.Errorf("%s on chain %d: %w", name, chainID, ErrContractNotFound)
	}
	return addr, nil
}

// ChainID returns the chain id registered under a chain name.
func (r *Registry) ChainID(name string) (uint64, bool) {
	id, ok := r.chainIDs[name]
	return id, ok
}

// ChainName returns the registry name of a chain id.
func (r *Registry) ChainName(id uint64) (string, bool) {
	name, ok := r.chainNames[id]
	return name, ok
}

func (r *Registry) version(version string) (map[uint64]Contracts, error) {
	v := validation.NormalizeVersion(version)
	byChain, ok := r.versions[v]
	if !ok {
		return nil, fmt.Errorf("version %q: %w", version, ErrVersionNotFound)
	}
	return byChain, nil
}

// file is the on-disk layout of the registry data.
type file struct {
	ChainIDs map[string]uint64            `yaml:"chainIds"`
	Sets     map[string]map[string]string `yaml:"sets"`
	Versions map[string][]group           `yaml:"versions"`
}

type group struct {
	Set       string            `yaml:"set"`
	Chains    []string          `yaml:"chains"`
	Overrides map[string]string `yaml:"overrides"`
}

func (f *file) resolve() (*Registry, error) {
	names := make(map[uint64]string, len(f.ChainIDs))
	for name, id := range f.ChainIDs {
		if err := validation.ValidateChainID(id); err != nil {
			return nil, fmt.Errorf("chainIds.%s: %w", name, err)
		}
		if other, dup := names[id]; dup {
			return nil, fmt.Errorf("chainIds: %s and %s share id %d", other, name, id)
		}
		names[id] = name
	}

	sets := make(map[string]Contracts, len(f.Sets))
	for setName, raw := range f.Sets {
		contracts, err := parseContracts(raw)
		if err != nil {
			return nil, fmt.Errorf("sets.%s: %w", setName, err)
		}
		sets[setName] = contracts
	}

	versions := make(map[string]map[uint64]Contracts, len(f.Versions))
	for version, groups := range f.Versions {
		byChain := map[uint64]Contracts{}
		for i, g := range groups {
			base, ok := sets[g.Set]
			if !ok {
				return nil, fmt.Errorf("versions.%s[%d]: unknown set %q", version, i, g.Set)
			}
			overrides, err := parseContracts(g.Overrides)
			if err != nil {
				return nil, fmt.Errorf("versions.%s[%d].overrides: %w", version, i, err)
			}
			contracts := base.clone()
			for name, addr := range overrides {
				contracts[name] = addr
			}
			for _, ref := range g.Chains {
				id, err := resolveChainRef(f.ChainIDs, ref)
				if err != nil {
					return nil, fmt.Errorf("versions.%s[%d]: %w", version, i, err)
				}
				if _, dup := byChain[id]; dup {
					return nil, fmt.Errorf("versions.%s: chain %s listed twice", version, ref)
				}
				byChain[id] = contracts
			}
		}
		versions[version] = byChain
	}

	r, err := New(versions)
	if err != nil {
		return nil, err
	}
	for name, id := range f.ChainIDs {
		r.chainIDs[name] = id
		r.chainNames[id] = name
	}
	return r, nil
}

func parseContracts(raw map[string]string) (Contracts, error) {
	out := make(Contracts, len(raw))
	for name, addr := range raw {
		if name == "" {
			return nil, errors.New("contract name cannot be empty")
		}
		if err := validation.ValidateAddress(addr); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[name] = common.HexToAddress(addr)
	}
	return out, nil
}

func resolveChainRef(ids map[string]uint64, ref string) (uint64, error) {
	if id, ok := ids[ref]; ok {
		return id, nil
	}
	if id, err := strconv.ParseUint(ref, 10, 64); err == nil && id > 0 {
		return id, nil
	}
	return 0, fmt.Errorf("chain %q: %w", ref, ErrUnknownChainName)
}
