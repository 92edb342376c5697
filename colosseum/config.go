package colosseum

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config holds the immutable, construction-time configuration constants of
// spec §6. It is validated once by NewCoordinator and never mutated
// thereafter.
type Config struct {
	BisectionTimeout time.Duration
	ProvingTimeout   time.Duration
	DummyHash        common.Hash
	MaxTxs           uint64
	SegmentsLengths  SegmentsLengths
	CouncilAddress   common.Address
	TrieVerifierAddr common.Address
}

// Validate enforces spec §4.1/§6: len(SegmentsLengths) even,
// ∏(L[t]-1) == submissionInterval. submissionInterval is sourced from the
// Oracle collaborator at coordinator construction time (spec §6: "Exposes
// constant SubmissionInterval"), not stored redundantly on Config.
func (c Config) Validate(submissionInterval uint64) error {
	return c.SegmentsLengths.Validate(submissionInterval)
}

// FinalTurn is the number of turns the configuration defines, K.
func (c Config) FinalTurn() uint64 {
	return uint64(len(c.SegmentsLengths))
}
