package colosseum

import "time"

// Evaluate is the pure status evaluator of spec §4.2: a function of
// (challenge, now, config) that returns exactly one Status, applying the
// rules in order. It never mutates c and never returns an error for a
// well-formed challenge produced by the coordinator; a malformed turn
// (out of the configured range) that has not timed out is treated as
// collapsed and reported as READY_TO_PROVE.
func Evaluate(c *Challenge, now time.Time, cfg Config) Status {
	if c == nil {
		return StatusNone
	}
	// Rule 1.
	if c.Approved {
		return StatusApproved
	}
	// Rule 2.
	if c.Turn < 1 {
		return StatusNone
	}
	// Rule 3.
	if c.OutputRoot != ZeroHash {
		return StatusProven
	}
	// Rule 4.
	challengerIsNext := NextActorIsChallenger(c.Turn)

	// Rule 5.
	if now.After(c.TimeoutAt) {
		if challengerIsNext {
			return StatusChallengerTimeout
		}
		if now.After(c.TimeoutAt.Add(cfg.ProvingTimeout)) {
			return StatusChallengerTimeout
		}
		return StatusAsserterTimeout
	}

	// Rule 6/7: able-to-bisect depends on the configured segment lengths
	// at the current turn; an out-of-range turn (shouldn't happen for a
	// challenge this coordinator produced) is treated as collapsed.
	ableToBisect, err := IsAbleToBisect(cfg.SegmentsLengths, c.Turn, c.SegSize)
	if err != nil {
		return StatusReadyToProve
	}
	if !ableToBisect {
		return StatusReadyToProve
	}
	if challengerIsNext {
		return StatusChallengerTurn
	}
	return StatusAsserterTurn
}
