// Package localsegments provides a validator-side source of segment
// submissions for the colosseum package, modeled on the teacher's Simulated
// state manager: a flat, locally-known list of per-block state roots that
// the validator trusts, from which any [segStart, segStart+segSize) range
// can be sliced into the L[turn] hashes a Bisect call needs.
package localsegments

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Local is a naive, in-memory source of segment submissions built from a
// single contiguous run of locally computed output roots, indexed by their
// absolute position in the L2 block range under dispute. It has no notion
// of re-execution or multi-level history commitments: every value it hands
// out is one the validator already computed and trusts.
type Local struct {
	// base is the absolute block number that roots[0] corresponds to.
	base  uint64
	roots []common.Hash
}

// New builds a Local source covering the half-open block range
// [base, base+len(roots)). roots[i] must be the validator's own computed
// output root at block base+i.
func New(base uint64, roots []common.Hash) (*Local, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("localsegments: must have at least one root")
	}
	return &Local{base: base, roots: roots}, nil
}

// RootAt returns the root the validator computed for the given absolute
// block number.
func (l *Local) RootAt(block uint64) (common.Hash, error) {
	if block < l.base || block-l.base >= uint64(len(l.roots)) {
		return common.Hash{}, fmt.Errorf("localsegments: block %d out of range [%d,%d)", block, l.base, l.base+uint64(len(l.roots)))
	}
	return l.roots[block-l.base], nil
}

// Segments builds the L[turn]-length segment array covering the boundaries
// segStart through segStart+segSize inclusive, sampled at every
// nextSegSize-sized step as
// required by a Bisect submission at that turn (one hash per boundary,
// L[turn] boundaries in total since nextSegSize*(L[turn]-1) == segSize).
func (l *Local) Segments(ctx context.Context, segStart, segSize uint64, length uint64) ([]common.Hash, error) {
	if length < 2 {
		return nil, fmt.Errorf("localsegments: length %d must be >= 2", length)
	}
	divisor := length - 1
	if segSize%divisor != 0 {
		return nil, fmt.Errorf("localsegments: segSize %d not divisible by length-1 %d", segSize, divisor)
	}
	step := segSize / divisor
	out := make([]common.Hash, length)
	for i := uint64(0); i < length; i++ {
		root, err := l.RootAt(segStart + i*step)
		if err != nil {
			return nil, err
		}
		out[i] = root
	}
	return out, nil
}

// FirstDivergence scans the given segments left to right and returns the
// position of the first boundary whose root does not match the validator's
// own computed root. The disputed sub-range is the one ending at that
// boundary, so the Bisect position to choose is one less than the returned
// pos. It returns found=false if every boundary matches (the submission is
// entirely consistent with this source, which should not happen for a
// dishonest opponent's segments).
func (l *Local) FirstDivergence(segStart, segSize uint64, segments []common.Hash) (pos uint64, found bool, err error) {
	length := uint64(len(segments))
	if length < 2 {
		return 0, false, fmt.Errorf("localsegments: segments length %d must be >= 2", length)
	}
	divisor := length - 1
	if segSize%divisor != 0 {
		return 0, false, fmt.Errorf("localsegments: segSize %d not divisible by length-1 %d", segSize, divisor)
	}
	step := segSize / divisor
	for i := uint64(0); i < length; i++ {
		root, err := l.RootAt(segStart + i*step)
		if err != nil {
			return 0, false, err
		}
		if root != segments[i] {
			return i, true, nil
		}
	}
	return 0, false, nil
}
