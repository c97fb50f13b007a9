package domain

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/pendergraft/delegation-deployments/internal/chains"
	"github.com/pendergraft/delegation-deployments/internal/registry"
	"github.com/pendergraft/delegation-deployments/internal/validation"
)

// Common errors returned by the deployments service.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidVersion = errors.New("invalid version")
	ErrInvalidChain   = errors.New("invalid chain")
)

// LatestAlias may be used in place of a version.
const LatestAlias = "latest"

// Service defines the deployments service interface.
type Service interface {
	// Versions lists registry versions.
	Versions(ctx context.Context) (*VersionsResult, error)

	// Version describes the chains of one version.
	Version(ctx context.Context, version string) (*VersionDetail, error)

	// Deployment returns the contracts of a version on one chain.
	Deployment(ctx context.Context, version, chain string) (*Deployment, error)

	// Chains lists the chain catalog.
	Chains(ctx context.Context) ([]Chain, error)

	// Chain returns one catalog entry by id or key.
	Chain(ctx context.Context, chain string) (*Chain, error)
}

type service struct {
	registry  *registry.Registry
	catalog   *chains.Catalog
	overrides chains.Overrides
}

// NewService creates a new deployments service.
func NewService(reg *registry.Registry, catalog *chains.Catalog, overrides chains.Overrides) Service {
	return &service{
		registry:  reg,
		catalog:   catalog,
		overrides: overrides,
	}
}

// Versions lists registry versions.
func (s *service) Versions(ctx context.Context) (*VersionsResult, error) {
	latest, err := s.registry.Latest()
	if err != nil {
		return nil, fmt.Errorf("resolving latest: %w", err)
	}
	return &VersionsResult{
		Versions: s.registry.Versions(),
		Latest:   latest,
	}, nil
}

// Version describes one version.
func (s *service) Version(ctx context.Context, version string) (*VersionDetail, error) {
	version, err := s.resolveVersion(version)
	if err != nil {
		return nil, err
	}
	latest, _ := s.registry.Latest()

	ids, err := s.registry.Chains(version)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	detail := &VersionDetail{
		Version: version,
		Latest:  version == latest,
		Chains:  make([]ChainSummary, len(ids)),
	}
	for i, id := range ids {
		contracts, _ := s.registry.Contracts(version, id)
		detail.Chains[i] = ChainSummary{
			ChainID:   id,
			Name:      s.chainName(id),
			Contracts: len(contracts),
		}
		if d, err := s.catalog.Resolve(id); err == nil {
			detail.Chains[i].Key = d.Key
		}
	}
	return detail, nil
}

// Deployment returns the contracts of version on chain.
func (s *service) Deployment(ctx context.Context, version, chain string) (*Deployment, error) {
	version, err := s.resolveVersion(version)
	if err != nil {
		return nil, err
	}
	id, err := s.resolveChainID(chain)
	if err != nil {
		return nil, err
	}

	contracts, err := s.registry.Contracts(version, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	dep := &Deployment{
		Version:   version,
		ChainID:   id,
		ChainName: s.chainName(id),
		Contracts: make([]Contract, 0, len(contracts)),
	}
	for _, name := range contracts.Names() {
		dep.Contracts = append(dep.Contracts, Contract{
			Name:    name,
			Address: contracts[name].Hex(),
		})
	}
	return dep, nil
}

// Chains lists the chain catalog.
func (s *service) Chains(ctx context.Context) ([]Chain, error) {
	descriptors := s.catalog.List()
	out := make([]Chain, len(descriptors))
	for i, d := range descriptors {
		out[i] = s.toChain(d)
	}
	return out, nil
}

// Chain returns one catalog entry.
func (s *service) Chain(ctx context.Context, chain string) (*Chain, error) {
	d, err := s.catalog.Lookup(chain)
	if err != nil {
		if errors.Is(err, chains.ErrChainNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		return nil, err
	}
	c := s.toChain(d)
	return &c, nil
}

func (s *service) toChain(d chains.Descriptor) Chain {
	effective := s.overrides.Apply(d)
	c := Chain{
		ChainID:        d.ID,
		Key:            d.Key,
		Name:           d.Name,
		RPCURL:         effective.RPCURL,
		Overridden:     effective.RPCURL != d.RPCURL,
		Testnet:        d.Testnet,
		CurrencySymbol: d.NativeCurrency.Symbol,
		Versions:       []string{},
	}
	for _, v := range s.registry.Versions() {
		ids, _ := s.registry.Chains(v)
		if slices.Contains(ids, d.ID) {
			c.Versions = append(c.Versions, v)
		}
	}
	return c
}

func (s *service) resolveVersion(version string) (string, error) {
	if version == "" || version == LatestAlias {
		latest, err := s.registry.Latest()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		return latest, nil
	}
	if err := validation.ValidateVersion(version); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidVersion, err)
	}
	version = validation.NormalizeVersion(version)
	if !s.registry.Has(version) {
		return "", fmt.Errorf("%w: version %s", ErrNotFound, version)
	}
	return version, nil
}

// resolveChainID accepts a decimal id, a catalog key or a registry chain name.
func (s *service) resolveChainID(chain string) (uint64, error) {
	if id, err := strconv.ParseUint(chain, 10, 64); err == nil {
		if err := validation.ValidateChainID(id); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidChain, err)
		}
		return id, nil
	}
	if d, err := s.catalog.Lookup(chain); err == nil {
		return d.ID, nil
	}
	if id, ok := s.registry.ChainID(chain); ok {
		return id, nil
	}
	return 0, fmt.Errorf("%w: unknown chain %q", ErrNotFound, chain)
}

func (s *service) chainName(id uint64) string {
	if d, err := s.catalog.Resolve(id); err == nil {
		return d.Name
	}
	if name, ok := s.registry.ChainName(id); ok {
		return name
	}
	return strconv.FormatUint(id, 10)
}
