package evm

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Fingerprint identifies deployed runtime bytecode.
type Fingerprint struct {
	Size int         `json:"size"`
	Hash common.Hash `json:"hash"`
}

// Empty reports whether no code is deployed.
func (f Fingerprint) Empty() bool {
	return f.Size == 0
}

// FingerprintCode hashes runtime bytecode with keccak256.
func FingerprintCode(code []byte) Fingerprint {
	if len(code) == 0 {
		return Fingerprint{}
	}
	return Fingerprint{Size: len(code), Hash: crypto.Keccak256Hash(code)}
}

// GetDeployedBytecode fetches the code at address on the latest block.
func GetDeployedBytecode(ctx context.Context, c Client, address common.Address) ([]byte, error) {
	code, err := c.CodeAt(ctx, address, nil)
	if err != nil {
		return nil, fmt.Errorf("eth_getCode %s: %w", address.Hex(), err)
	}
	return code, nil
}
