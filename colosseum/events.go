package colosseum

import "github.com/ethereum/go-ethereum/common"

// ChallengeCreated is emitted by CreateChallenge.
type ChallengeCreated struct {
	OutputIndex uint64
	Asserter    common.Address
	Challenger  common.Address
}

// Bisected is emitted by Bisect.
type Bisected struct {
	OutputIndex uint64
	Turn        uint64
	Pos         uint64
}

// Proven is emitted once ProveFault accepts a proof.
type Proven struct {
	OutputIndex uint64
	OutputRoot  common.Hash
}

// Approved is emitted once the council's approval commits.
type Approved struct {
	OutputIndex uint64
	OutputRoot  common.Hash
}

// Deleted is emitted when a challenge record is removed, either by
// ChallengerTimeout or by ApproveChallenge clearing the slot.
type Deleted struct {
	OutputIndex uint64
	Reason      string
}

// EventSink receives the named records of spec §6. Implementations must not
// block materially; the reference NoopSink simply discards them.
type EventSink interface {
	Emit(event any)
}

// NoopSink discards all events.
type NoopSink struct{}

func (NoopSink) Emit(any) {}
