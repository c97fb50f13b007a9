package chains

import (
	_ "embed"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/overrides.yaml
var defaultOverrides []byte

// Overrides replaces the RPC url of specific chains, keyed by chain id.
type Overrides map[uint64]string

// DefaultOverrides returns the built-in overrides for chains whose public
// endpoints are unreliable.
func DefaultOverrides() (Overrides, error) {
	var o Overrides
	if err := yaml.Unmarshal(defaultOverrides, &o); err != nil {
		return nil, fmt.Errorf("parsing rpc overrides: %w", err)
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// ParseOverride parses a "chainId=url" pair.
func ParseOverride(s string) (uint64, string, error) {
	idPart, rawURL, ok := strings.Cut(s, "=")
	if !ok {
		return 0, "", fmt.Errorf("invalid rpc override %q: expected chainId=url", s)
	}
	id, err := strconv.ParseUint(strings.TrimSpace(idPart), 10, 64)
	if err != nil || id == 0 {
		return 0, "", fmt.Errorf("invalid rpc override %q: chain id must be a positive integer", s)
	}
	rawURL = strings.TrimSpace(rawURL)
	if err := validateRPCURL(rawURL); err != nil {
		return 0, "", err
	}
	return id, rawURL, nil
}

// ParseOverrides parses a list of "chainId=url" pairs. Later pairs win.
func ParseOverrides(pairs []string) (Overrides, error) {
	o := make(Overrides, len(pairs))
	for _, p := range pairs {
		id, rawURL, err := ParseOverride(p)
		if err != nil {
			return nil, err
		}
		o[id] = rawURL
	}
	return o, nil
}

// Merge returns a new set with other layered on top of o.
func (o Overrides) Merge(other Overrides) Overrides {
	merged := make(Overrides, len(o)+len(other))
	for id, u := range o {
		merged[id] = u
	}
	for id, u := range other {
		merged[id] = u
	}
	return merged
}

// Apply returns d with its RPC url replaced when an override exists.
func (o Overrides) Apply(d Descriptor) Descriptor {
	if u, ok := o[d.ID]; ok {
		d.RPCURL = u
	}
	return d
}

// Validate checks every override url.
func (o Overrides) Validate() error {
	for _, id := range o.IDs() {
		if id == 0 {
			return fmt.Errorf("rpc override: chain id must be positive")
		}
		if err := validateRPCURL(o[id]); err != nil {
			return fmt.Errorf("rpc override for chain %d: %w", id, err)
		}
	}
	return nil
}

// IDs returns the overridden chain ids in ascending order.
func (o Overrides) IDs() []uint64 {
	ids := make([]uint64, 0, len(o))
	for id := range o {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
