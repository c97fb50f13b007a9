// Package validation provides input validation for registry data.
package validation

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/mod/semver"
)

// ValidateVersion validates a registry version string (MAJOR.MINOR.PATCH).
func ValidateVersion(v string) error {
	normalized := NormalizeVersion(v)
	if normalized == "" {
		return errors.New("version cannot be empty")
	}

	if !semver.IsValid("v" + normalized) {
		return errors.New("invalid semver version: must be in format X.Y.Z or X.Y.Z-prerelease")
	}

	// semver.IsValid accepts "v1" and "v1.2"; registry keys must be complete
	mainPart := strings.SplitN(strings.SplitN(normalized, "+", 2)[0], "-", 2)[0]
	if strings.Count(mainPart, ".") < 2 {
		return errors.New("invalid semver version: must be in format X.Y.Z (major.minor.patch)")
	}

	return nil
}

// NormalizeVersion normalizes a version string (strips leading 'v')
func NormalizeVersion(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

// IsPrerelease checks if a version is a prerelease
func IsPrerelease(v string) bool {
	return semver.Prerelease("v"+NormalizeVersion(v)) != ""
}

// CompareVersions compares two versions
// Returns -1 if v1 < v2, 0 if v1 == v2, 1 if v1 > v2
func CompareVersions(v1, v2 string) int {
	return semver.Compare("v"+NormalizeVersion(v1), "v"+NormalizeVersion(v2))
}

// ResolveLatest finds the latest version from a list.
// Returns "" for an empty list.
func ResolveLatest(versions []string, includePrerelease bool) string {
	if len(versions) == 0 {
		return ""
	}

	var candidates []string
	for _, v := range versions {
		if !includePrerelease && IsPrerelease(v) {
			continue
		}
		candidates = append(candidates, v)
	}

	if len(candidates) == 0 {
		// If no stable versions, return latest prerelease
		candidates = versions
	}

	latest := candidates[0]
	for _, v := range candidates[1:] {
		if CompareVersions(v, latest) > 0 {
			latest = v
		}
	}

	return latest
}

// ValidateAddress validates an EVM contract address. Mixed-case addresses must
// carry a valid EIP-55 checksum.
func ValidateAddress(addr string) error {
	if len(addr) != 42 {
		return errors.New("invalid address length: must be 42 characters (0x + 40 hex)")
	}
	if !strings.HasPrefix(addr, "0x") {
		return errors.New("invalid address: must start with 0x")
	}
	if !common.IsHexAddress(addr) {
		return errors.New("invalid address: contains non-hex characters")
	}

	body := addr[2:]
	if body != strings.ToLower(body) && body != strings.ToUpper(body) {
		if common.HexToAddress(addr).Hex() != addr {
			return errors.New("invalid address: checksum mismatch")
		}
	}
	return nil
}

// ValidateChainID validates a chain ID
func ValidateChainID(chainID uint64) error {
	if chainID == 0 {
		return errors.New("chain ID must be positive")
	}
	return nil
}
