// Package fakes provides in-memory collaborator doubles for testing the
// colosseum package, modeled on the teacher's Simulated state manager
// (state-manager/manager.go): plain structs with simple constructors and
// no network I/O, sufficient to drive the coordinator's
// state machine end to end in unit tests.
package fakes

import (
	"context"
	"sync"

	"github.com/TomTaehoonKim/kroma/colosseum"
	"github.com/ethereum/go-ethereum/common"
)

// Oracle is an in-memory output oracle double.
type Oracle struct {
	mu                 sync.Mutex
	submissionInterval uint64
	outputs            map[uint64]colosseum.L2Output
	finalized          map[uint64]bool
}

// NewOracle constructs an Oracle with the given submission interval; use
// SetOutput to seed checkpoint outputs.
func NewOracle(submissionInterval uint64) *Oracle {
	return &Oracle{
		submissionInterval: submissionInterval,
		outputs:            make(map[uint64]colosseum.L2Output),
		finalized:          make(map[uint64]bool),
	}
}

func (o *Oracle) SubmissionInterval() uint64 { return o.submissionInterval }

// SetOutput seeds or overwrites the checkpoint recorded at outputIndex.
func (o *Oracle) SetOutput(outputIndex uint64, out colosseum.L2Output) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outputs[outputIndex] = out
}

// SetFinalized marks outputIndex as finalized or not.
func (o *Oracle) SetFinalized(outputIndex uint64, finalized bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finalized[outputIndex] = finalized
}

func (o *Oracle) IsFinalized(ctx context.Context, outputIndex uint64) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.finalized[outputIndex], nil
}

func (o *Oracle) GetL2Output(ctx context.Context, outputIndex uint64) (colosseum.L2Output, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	out, ok := o.outputs[outputIndex]
	if !ok {
		return colosseum.L2Output{}, errNotFound(outputIndex)
	}
	return out, nil
}

func (o *Oracle) ReplaceL2Output(ctx context.Context, outputIndex uint64, newRoot common.Hash, submitter common.Address) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	out, ok := o.outputs[outputIndex]
	if !ok {
		return errNotFound(outputIndex)
	}
	out.OutputRoot = newRoot
	out.Submitter = submitter
	o.outputs[outputIndex] = out
	return nil
}

type notFoundError uint64

func errNotFound(outputIndex uint64) error { return notFoundError(outputIndex) }

func (e notFoundError) Error() string {
	return "fakes: no output recorded at index"
}

// BondPool is an in-memory bond-escrow double that doubles the recorded
// amount on each repeat IncreaseBond call for the same outputIndex,
// matching spec §8 scenario 4.
type BondPool struct {
	mu      sync.Mutex
	minBond uint64
	bonds   map[uint64]uint64
}

// NewBondPool constructs a BondPool whose first escrow per outputIndex is
// minBond.
func NewBondPool(minBond uint64) *BondPool {
	return &BondPool{minBond: minBond, bonds: make(map[uint64]uint64)}
}

func (b *BondPool) IncreaseBond(ctx context.Context, bidder common.Address, outputIndex uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	current, ok := b.bonds[outputIndex]
	if !ok {
		b.bonds[outputIndex] = b.minBond
		return nil
	}
	b.bonds[outputIndex] = current * 2
	return nil
}

// BondOf returns the currently escrowed amount for outputIndex.
func (b *BondPool) BondOf(outputIndex uint64) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bonds[outputIndex]
}

// DirectCouncil approves every request by invoking the callback from a
// fresh goroutine, honoring the Council contract's no-synchronous-callback
// rule (colosseum.Council docs) without requiring a real queue.
type DirectCouncil struct {
	mu       sync.Mutex
	requests []colosseum.ApprovalRequest
}

func NewDirectCouncil() *DirectCouncil { return &DirectCouncil{} }

func (c *DirectCouncil) RequestValidation(ctx context.Context, payload colosseum.ApprovalRequest, callback func(ctx context.Context) error) error {
	c.mu.Lock()
	c.requests = append(c.requests, payload)
	c.mu.Unlock()
	go func() {
		_ = callback(context.Background())
	}()
	return nil
}

// Requests returns the approval requests received so far.
func (c *DirectCouncil) Requests() []colosseum.ApprovalRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]colosseum.ApprovalRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// CapturingCouncil records each request and its callback without invoking
// either, so a test can drive the council-approval step deterministically
// (from outside the coordinator's lock) instead of racing a goroutine.
type CapturingCouncil struct {
	mu        sync.Mutex
	requests  []colosseum.ApprovalRequest
	callbacks []func(ctx context.Context) error
}

func NewCapturingCouncil() *CapturingCouncil { return &CapturingCouncil{} }

func (c *CapturingCouncil) RequestValidation(ctx context.Context, payload colosseum.ApprovalRequest, callback func(ctx context.Context) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, payload)
	c.callbacks = append(c.callbacks, callback)
	return nil
}

// Requests returns the approval requests received so far.
func (c *CapturingCouncil) Requests() []colosseum.ApprovalRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]colosseum.ApprovalRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// Approve invokes the i-th captured callback, committing that approval.
func (c *CapturingCouncil) Approve(ctx context.Context, i int) error {
	c.mu.Lock()
	cb := c.callbacks[i]
	c.mu.Unlock()
	return cb(ctx)
}

// ZKVerifier is a scriptable ZK verifier double: by default it accepts
// every proof, but a digest can be individually forced to fail via Reject.
type ZKVerifier struct {
	mu      sync.Mutex
	rejects map[common.Hash]bool
}

func NewZKVerifier() *ZKVerifier {
	return &ZKVerifier{rejects: make(map[common.Hash]bool)}
}

func (z *ZKVerifier) Reject(digest common.Hash) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.rejects[digest] = true
}

func (z *ZKVerifier) Verify(ctx context.Context, proof []byte, pair []byte, digest common.Hash) (bool, error) {
	z.mu.Lock()
	defer z.mu.Unlock()
	return !z.rejects[digest], nil
}

// TrieVerifier is a trie-inclusion double that accepts every proof by
// default; Reject forces a specific state root to fail inclusion checks.
type TrieVerifier struct {
	mu      sync.Mutex
	rejects map[common.Hash]bool
}

func NewTrieVerifier() *TrieVerifier {
	return &TrieVerifier{rejects: make(map[common.Hash]bool)}
}

func (t *TrieVerifier) Reject(stateRoot common.Hash) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rejects[stateRoot] = true
}

func (t *TrieVerifier) VerifyInclusionProof(ctx context.Context, key, valueEncoding []byte, proofNodes [][]byte, stateRoot common.Hash) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.rejects[stateRoot], nil
}

// ReplaySet is an in-memory, mutex-guarded colosseum.ReplaySet.
type ReplaySet struct {
	mu   sync.Mutex
	seen map[common.Hash]struct{}
}

func NewReplaySet() *ReplaySet {
	return &ReplaySet{seen: make(map[common.Hash]struct{})}
}

func (r *ReplaySet) Contains(ctx context.Context, digest common.Hash) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.seen[digest]
	return ok, nil
}

func (r *ReplaySet) Insert(ctx context.Context, digest common.Hash) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen[digest] = struct{}{}
	return nil
}
