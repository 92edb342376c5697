package colosseum

import "fmt"

// SegmentsLengths is the configuration vector L[1..K] from spec §3: L[t] is
// the required number of segments submitted at turn t. It is stored
// zero-indexed, so entry i serves turn i+1 (spec §6 persisted state
// layout).
type SegmentsLengths []uint64

// At returns L[turn], the required segment count for the given 1-indexed
// turn.
func (l SegmentsLengths) At(turn uint64) (uint64, error) {
	if turn < 1 || turn > uint64(len(l)) {
		return 0, fmt.Errorf("%w: turn %d out of range [1,%d]", ErrConfigInvalid, turn, len(l))
	}
	return l[turn-1], nil
}

// Validate enforces spec §3/§4.1's configuration law: len(L) must be even,
// and the product of (L[t]-1) across all turns must equal submissionInterval
// exactly, guaranteeing bisection terminates at single-block granularity on
// the final (challenger) turn.
func (l SegmentsLengths) Validate(submissionInterval uint64) error {
	if len(l) == 0 || len(l)%2 != 0 {
		return fmt.Errorf("%w: segments-lengths length %d is not even and nonzero", ErrConfigInvalid, len(l))
	}
	product := uint64(1)
	for i, length := range l {
		if length < 2 {
			return fmt.Errorf("%w: L[%d]=%d must be >= 2", ErrConfigInvalid, i+1, length)
		}
		product *= length - 1
	}
	if product != submissionInterval {
		return fmt.Errorf("%w: product of (L[t]-1) = %d, want SubmissionInterval = %d", ErrConfigInvalid, product, submissionInterval)
	}
	return nil
}

// NextSegSize computes the child segSize for the turn after t, given the
// segSize at turn t (spec §4.1: nextSegSize = segSize / (L[t]-1)). The
// division is exact by construction of a validated SegmentsLengths; this
// asserts that invariant rather than silently truncating.
func NextSegSize(l SegmentsLengths, turn, segSize uint64) (uint64, error) {
	length, err := l.At(turn)
	if err != nil {
		return 0, err
	}
	divisor := length - 1
	if divisor == 0 {
		return 0, fmt.Errorf("%w: L[%d]-1 is zero", ErrConfigInvalid, turn)
	}
	if segSize%divisor != 0 {
		return 0, fmt.Errorf("%w: segSize %d not evenly divided by L[%d]-1=%d", ErrConfigInvalid, segSize, turn, divisor)
	}
	return segSize / divisor, nil
}

// IsAbleToBisect reports whether the challenge at turn t with the given
// segSize can still be bisected further, i.e. nextSegSize > 1 (spec §4.1).
// When false, the next required action is a ZK proof rather than another
// bisection.
func IsAbleToBisect(l SegmentsLengths, turn, segSize uint64) (bool, error) {
	nextSegSize, err := NextSegSize(l, turn, segSize)
	if err != nil {
		return false, err
	}
	return nextSegSize > 1, nil
}

// NextActorIsChallenger reports whether the actor due to submit at the
// upcoming turn is the challenger; turns are 1-indexed and odd turns end
// with a challenger submission, so the actor who submits turn+1 is the
// challenger exactly when turn is even (spec §4.1, §4.2).
func NextActorIsChallenger(turn uint64) bool {
	return turn%2 == 0
}

// ChildRange computes the sub-range covered by bisecting at position pos
// within [0, L[t]-2] (spec §4.1): [segStart + pos*nextSegSize, segStart +
// (pos+1)*nextSegSize).
func ChildRange(segStart, nextSegSize, pos uint64) (start, end uint64) {
	start = segStart + pos*nextSegSize
	end = start + nextSegSize
	return start, end
}

// MaxPos returns the largest legal bisection position at turn t, L[t]-2.
func MaxPos(l SegmentsLengths, turn uint64) (uint64, error) {
	length, err := l.At(turn)
	if err != nil {
		return 0, err
	}
	if length < 2 {
		return 0, fmt.Errorf("%w: L[%d]=%d < 2", ErrConfigInvalid, turn, length)
	}
	return length - 2, nil
}
