// Package validatorwallet abstracts how a validator process authenticates
// the on-chain side of its colosseum moves.
package validatorwallet

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Wallet is what a tracker needs from a validator's signing identity.
type Wallet interface {
	Address() common.Address
	Start(ctx context.Context)
	StopAndWait()
}

// NoOp is used for watchtower mode: the validator tracks challenges and
// would be willing to submit moves, but never actually signs or sends a
// transaction.
type NoOp struct {
	address common.Address
}

// NewNoOp constructs a NoOp wallet that reports address without ever
// signing on its behalf.
func NewNoOp(address common.Address) *NoOp {
	return &NoOp{address: address}
}

func (w *NoOp) Address() common.Address { return w.address }

func (w *NoOp) Start(ctx context.Context) {}

func (w *NoOp) StopAndWait() {}
