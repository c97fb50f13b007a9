package checker

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/pendergraft/delegation-deployments/internal/chains"
)

var (
	// ErrConfiguration aborts a run before any RPC call is made.
	ErrConfiguration = errors.New("configuration error")

	ErrChainNotFound   = chains.ErrChainNotFound
	ErrChainIDMismatch = errors.New("chain id mismatch")
	ErrTransport       = errors.New("rpc request failed")
	ErrMissingCode     = errors.New("no code at address")
)

// ChainIDMismatchError is returned when an endpoint reports a different chain
// id than its descriptor.
type ChainIDMismatchError struct {
	Expected uint64
	Actual   *big.Int
}

func (e *ChainIDMismatchError) Error() string {
	return fmt.Sprintf("chain id mismatch: expected %d, got %s", e.Expected, e.Actual)
}

// Is makes errors.Is(err, ErrChainIDMismatch) match.
func (e *ChainIDMismatchError) Is(target error) bool {
	return target == ErrChainIDMismatch
}
