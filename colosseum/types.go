// Package colosseum implements the off-chain fault-dispute state machine
// that adjudicates challenges against proposed L2 checkpoint outputs: the
// segment-bisection arithmetic, turn discipline, timeout taxonomy, and
// proof-acceptance pipeline described by the Colosseum protocol. The output
// oracle, bond pool, security council, and proof verifiers it depends on are
// modeled as narrow collaborator interfaces in collaborators.go and injected
// at construction.
package colosseum

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Status is the pure function output of evaluating a Challenge against a
// point in time. See status.go for the evaluation rules.
type Status uint8

const (
	StatusNone Status = iota
	StatusChallengerTurn
	StatusAsserterTurn
	StatusChallengerTimeout
	StatusAsserterTimeout
	StatusReadyToProve
	StatusProven
	StatusApproved
)

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "NONE"
	case StatusChallengerTurn:
		return "CHALLENGER_TURN"
	case StatusAsserterTurn:
		return "ASSERTER_TURN"
	case StatusChallengerTimeout:
		return "CHALLENGER_TIMEOUT"
	case StatusAsserterTimeout:
		return "ASSERTER_TIMEOUT"
	case StatusReadyToProve:
		return "READY_TO_PROVE"
	case StatusProven:
		return "PROVEN"
	case StatusApproved:
		return "APPROVED"
	default:
		return "UNKNOWN"
	}
}

// InProgress reports whether a challenge in this status still occupies its
// outputIndex slot exclusively (spec §4.2: "in progress" = status ∉
// {NONE, CHALLENGER_TIMEOUT}).
func (s Status) InProgress() bool {
	return s != StatusNone && s != StatusChallengerTimeout
}

// Actor identifies which account is permitted to act next for a given
// status, per the turn validator (turn.go).
type Actor uint8

const (
	ActorNone Actor = iota
	ActorAsserter
	ActorChallenger
)

func (a Actor) String() string {
	switch a {
	case ActorAsserter:
		return "asserter"
	case ActorChallenger:
		return "challenger"
	default:
		return "none"
	}
}

// Challenge is the per-outputIndex dispute record (spec §3).
type Challenge struct {
	OutputIndex uint64
	Asserter    common.Address
	Challenger  common.Address

	// Segments holds the ordered output-root hashes submitted for the
	// current turn; its length must equal SegmentsLengths[Turn-1].
	Segments []common.Hash

	SegStart uint64
	SegSize  uint64

	// Turn is 1-indexed: 1 is the initial challenger submission, odd turns
	// end with a challenger submission, even turns end with an asserter
	// submission. Turn == 0 encodes absence (no live challenge).
	Turn uint64

	TimeoutAt time.Time

	// OutputRoot is the replacement root once a proof succeeds; the zero
	// hash otherwise.
	OutputRoot common.Hash

	// Approved is a permanent tombstone set by the council approval step;
	// once true the outputIndex can never be re-challenged.
	Approved bool
}

// clone returns a deep-enough copy for safe return to callers outside the
// coordinator's lock.
func (c *Challenge) clone() *Challenge {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Segments = make([]common.Hash, len(c.Segments))
	copy(cp.Segments, c.Segments)
	return &cp
}

// live reports whether the challenge record is anything other than the
// absent/zero-turn placeholder (spec §3 invariant 6).
func (c *Challenge) live() bool {
	return c != nil && c.Turn >= 1
}

// L2Output is the checkpoint record read back from the output oracle.
type L2Output struct {
	OutputRoot    common.Hash
	L2BlockNumber uint64
	Timestamp     uint64
	Submitter     common.Address
}

// ApprovalRequest is the payload handed to the security council once a
// proof is accepted (spec §4.4 step 9, §4.7 of SPEC_FULL.md).
type ApprovalRequest struct {
	OutputIndex uint64
	OutputRoot  common.Hash
	Challenger  common.Address
	Nonce       uint64
}

// ZeroHash is the sentinel "no root yet" / "no segment" value.
var ZeroHash common.Hash

// bigZero is a shared zero big.Int. Nothing in the package reads it; the
// header and account encoders allocate their own zero values.
var bigZero = big.NewInt(0)
