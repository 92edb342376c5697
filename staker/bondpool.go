// Package staker holds the on-chain-facing collaborator implementations a
// validator process wires into a colosseum.Coordinator: bond escrow and
// transaction signing. It deliberately carries none of the BOLD multi-level
// WASM challenge machinery the teacher package built around, since this
// protocol disputes a single pre-committed output root via direct ZK proof
// rather than re-execution.
package staker

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

const bondPoolABIJSON = `[
	{"inputs":[{"internalType":"address","name":"bidder","type":"address"},{"internalType":"uint256","name":"outputIndex","type":"uint256"}],"name":"increaseBond","outputs":[],"stateMutability":"payable","type":"function"}
]`

var bondPoolABI = mustParseABI(bondPoolABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// OnChainBondPool is the concrete colosseum.BondPool: every call escrows
// minBond more wei into the deployed bond-pool contract for the given
// output index, mirroring the ABI-encoding conventions the rest of the
// protocol contract stack uses.
type OnChainBondPool struct {
	contract *bind.BoundContract
	auth     *bind.TransactOpts
	minBond  *big.Int
}

// NewOnChainBondPool binds to the bond-pool contract at address using
// backend, authenticating transactions with auth.
func NewOnChainBondPool(address common.Address, backend bind.ContractBackend, minBond *big.Int, auth *bind.TransactOpts) *OnChainBondPool {
	return &OnChainBondPool{
		contract: bind.NewBoundContract(address, bondPoolABI, backend, backend, backend),
		auth:     auth,
		minBond:  minBond,
	}
}

// IncreaseBond escrows minBond additional wei for outputIndex on bidder's
// behalf.
func (b *OnChainBondPool) IncreaseBond(ctx context.Context, bidder common.Address, outputIndex uint64) error {
	opts := *b.auth
	opts.Context = ctx
	opts.Value = b.minBond
	_, err := b.contract.Transact(&opts, "increaseBond", bidder, new(big.Int).SetUint64(outputIndex))
	return err
}
