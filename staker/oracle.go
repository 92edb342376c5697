package staker

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/TomTaehoonKim/kroma/colosseum"
)

const outputOracleABIJSON = `[
	{"inputs":[{"internalType":"uint256","name":"outputIndex","type":"uint256"}],"name":"getL2Output","outputs":[{"components":[{"internalType":"bytes32","name":"outputRoot","type":"bytes32"},{"internalType":"uint128","name":"timestamp","type":"uint128"},{"internalType":"uint128","name":"l2BlockNumber","type":"uint128"}],"internalType":"struct Types.CheckpointOutput","name":"","type":"tuple"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"uint256","name":"outputIndex","type":"uint256"}],"name":"isFinalized","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"uint256","name":"outputIndex","type":"uint256"},{"internalType":"bytes32","name":"newOutputRoot","type":"bytes32"},{"internalType":"address","name":"submitter","type":"address"}],"name":"replaceL2Output","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[],"name":"SUBMISSION_INTERVAL","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

var outputOracleABI = mustParseABI(outputOracleABIJSON)

// checkpointOutput mirrors the oracle contract's packed return tuple.
type checkpointOutput struct {
	OutputRoot    [32]byte
	Timestamp     *big.Int
	L2BlockNumber *big.Int
}

// OnChainOracle is the concrete colosseum.Oracle backed by the deployed
// output-oracle contract, bound the same way OnChainBondPool binds the
// bond-pool contract.
type OnChainOracle struct {
	contract           *bind.BoundContract
	auth               *bind.TransactOpts
	submissionInterval uint64
}

// NewOnChainOracle binds to the output-oracle contract at address and
// caches its SubmissionInterval constant, which the coordinator reads once
// at construction time.
func NewOnChainOracle(ctx context.Context, address common.Address, backend bind.ContractBackend, auth *bind.TransactOpts) (*OnChainOracle, error) {
	contract := bind.NewBoundContract(address, outputOracleABI, backend, backend, backend)
	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "SUBMISSION_INTERVAL"); err != nil {
		return nil, err
	}
	interval := abi.ConvertType(out[0], new(big.Int)).(*big.Int).Uint64()
	return &OnChainOracle{contract: contract, auth: auth, submissionInterval: interval}, nil
}

func (o *OnChainOracle) SubmissionInterval() uint64 { return o.submissionInterval }

func (o *OnChainOracle) IsFinalized(ctx context.Context, outputIndex uint64) (bool, error) {
	var out []interface{}
	if err := o.contract.Call(&bind.CallOpts{Context: ctx}, &out, "isFinalized", new(big.Int).SetUint64(outputIndex)); err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

func (o *OnChainOracle) GetL2Output(ctx context.Context, outputIndex uint64) (colosseum.L2Output, error) {
	var out []interface{}
	if err := o.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getL2Output", new(big.Int).SetUint64(outputIndex)); err != nil {
		return colosseum.L2Output{}, err
	}
	raw := abi.ConvertType(out[0], new(checkpointOutput)).(*checkpointOutput)
	return colosseum.L2Output{
		OutputRoot:    raw.OutputRoot,
		L2BlockNumber: raw.L2BlockNumber.Uint64(),
		Timestamp:     raw.Timestamp.Uint64(),
	}, nil
}

func (o *OnChainOracle) ReplaceL2Output(ctx context.Context, outputIndex uint64, newRoot common.Hash, submitter common.Address) error {
	opts := *o.auth
	opts.Context = ctx
	_, err := o.contract.Transact(&opts, "replaceL2Output", new(big.Int).SetUint64(outputIndex), newRoot, submitter)
	return err
}

// CachingOracle wraps another Oracle with an LRU cache of finalized
// checkpoints: once an output is reported finalized its record can never
// change, so repeat lookups from concurrent trackers can be served without
// a round trip to the node.
type CachingOracle struct {
	inner colosseum.Oracle
	cache *lru.Cache[uint64, colosseum.L2Output]
}

// NewCachingOracle wraps inner with an LRU of the given size.
func NewCachingOracle(inner colosseum.Oracle, size int) (*CachingOracle, error) {
	cache, err := lru.New[uint64, colosseum.L2Output](size)
	if err != nil {
		return nil, err
	}
	return &CachingOracle{inner: inner, cache: cache}, nil
}

func (c *CachingOracle) SubmissionInterval() uint64 { return c.inner.SubmissionInterval() }

func (c *CachingOracle) IsFinalized(ctx context.Context, outputIndex uint64) (bool, error) {
	return c.inner.IsFinalized(ctx, outputIndex)
}

func (c *CachingOracle) GetL2Output(ctx context.Context, outputIndex uint64) (colosseum.L2Output, error) {
	if out, ok := c.cache.Get(outputIndex); ok {
		return out, nil
	}
	out, err := c.inner.GetL2Output(ctx, outputIndex)
	if err != nil {
		return colosseum.L2Output{}, err
	}
	if finalized, ferr := c.inner.IsFinalized(ctx, outputIndex); ferr == nil && finalized {
		c.cache.Add(outputIndex, out)
	}
	return out, nil
}

func (c *CachingOracle) ReplaceL2Output(ctx context.Context, outputIndex uint64, newRoot common.Hash, submitter common.Address) error {
	c.cache.Remove(outputIndex)
	return c.inner.ReplaceL2Output(ctx, outputIndex, newRoot, submitter)
}
