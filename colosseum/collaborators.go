package colosseum

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Oracle is the external output oracle: it stores checkpoint outputs,
// enforces finalization windows, and accepts replacements (spec §6). It is
// out of scope for this module; only this narrow capability interface is
// consumed.
type Oracle interface {
	IsFinalized(ctx context.Context, outputIndex uint64) (bool, error)
	GetL2Output(ctx context.Context, outputIndex uint64) (L2Output, error)
	ReplaceL2Output(ctx context.Context, outputIndex uint64, newRoot common.Hash, submitter common.Address) error
	// SubmissionInterval is the L2-block span covered by one checkpoint
	// (spec §6). It is read once at coordinator construction time.
	SubmissionInterval() uint64
}

// BondPool is the external validator-bond escrow. IncreaseBond is
// idempotent-per-bidder and doubles the escrowed amount on repeat calls for
// the same outputIndex (spec §6, invariant behind scenario 4 of §8).
type BondPool interface {
	IncreaseBond(ctx context.Context, bidder common.Address, outputIndex uint64) error
}

// Council is the external security-council multisig. RequestValidation
// schedules a vote that, on success, invokes callback, which will itself
// call back into the Coordinator (ApproveChallenge). Per spec §5/§9 the
// Coordinator resolves the resulting re-entrancy by queueing rather than
// permitting true re-entrant locking: implementations MUST NOT invoke
// callback synchronously from within RequestValidation while the
// coordinator's originating operation (ProveFault) still holds its lock.
// The two shipped implementations honor this by deferring callback
// invocation to a goroutine (DirectCouncil) or to an independent consumer
// process reading off a queue (the pubsub-backed council).
type Council interface {
	RequestValidation(ctx context.Context, payload ApprovalRequest, callback func(ctx context.Context) error) error
}

// ZKVerifier is the opaque zero-knowledge verifier predicate (spec §6).
type ZKVerifier interface {
	Verify(ctx context.Context, proof []byte, pair []byte, publicInputDigest common.Hash) (bool, error)
}

// TrieVerifier is the opaque Merkle-trie inclusion-proof predicate used to
// confirm the withdrawal passer account's storage under a state root
// (spec §4.4 step 5, §6).
type TrieVerifier interface {
	VerifyInclusionProof(ctx context.Context, key, valueEncoding []byte, proofNodes [][]byte, stateRoot common.Hash) (bool, error)
}

// Hasher groups the pure block-header/output-root/public-input hashing
// primitives of spec §6. Treated as pure functions; a concrete
// implementation lives in headerhash.go.
type Hasher interface {
	HashOutputRootProof(proof OutputRootProof) common.Hash
	HashBlockHeader(pi PublicInput, rlps [][]byte) (common.Hash, error)
	HashPublicInput(prevStateRoot common.Hash, pi PublicInput, dummyHashes []common.Hash) (common.Hash, error)
	GenerateDummyHashes(dummy common.Hash, n int) []common.Hash
}

// ReplaySet tracks public-input digests that have already authorized a
// successful proof, enforcing the lifetime-wide replay defense of spec §3
// and §4.4 step 7. See SPEC_FULL.md §4.6 for the two shipped backends.
type ReplaySet interface {
	Contains(ctx context.Context, digest common.Hash) (bool, error)
	Insert(ctx context.Context, digest common.Hash) error
}

// Clock supplies the single authoritative wall-clock read each operation
// takes (spec §5: "wall-clock time is read once per operation from a
// monotonic authoritative source").
type Clock interface {
	Now() time.Time
}
