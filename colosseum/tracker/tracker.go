// Package tracker polls an in-progress challenge and drives it forward on
// behalf of one side, modeled on the teacher's vertexTracker: a ticker loop
// that re-evaluates status on every tick and dispatches to the action the
// current status calls for, running that action synchronously inside the
// loop instead of keeping a persistent per-vertex FSM (this protocol has no
// subchallenge tree to recurse into).
package tracker

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/TomTaehoonKim/kroma/colosseum"
	"github.com/TomTaehoonKim/kroma/colosseum/localsegments"
	"github.com/TomTaehoonKim/kroma/util/stopwaiter"
)

var log = logrus.WithField("module", "tracker")

// Role is which side of a challenge this tracker acts for.
type Role uint8

const (
	RoleChallenger Role = iota
	RoleAsserter
)

// Tracker watches a single challenge and submits the next bisection, proof,
// or timeout call as soon as it becomes that role's turn to act.
type Tracker struct {
	stopwaiter.StopWaiter

	actEvery    time.Duration
	co          *colosseum.Coordinator
	source      *localsegments.Local
	outputIndex uint64
	caller      common.Address
	role        Role

	buildProof func(ctx context.Context, c *colosseum.Challenge) (newOutputRoot common.Hash, pos uint64, bundle colosseum.PublicInputProof, zkproof, pair []byte, err error)
}

// New constructs a Tracker for outputIndex, acting as caller in role. source
// supplies the locally trusted segments used for bisection submissions;
// buildProof constructs the ZK proof bundle once the challenge reaches
// READY_TO_PROVE (nil if this tracker never proves, e.g. a pure watchtower).
func New(
	co *colosseum.Coordinator,
	source *localsegments.Local,
	outputIndex uint64,
	caller common.Address,
	role Role,
	actEvery time.Duration,
	buildProof func(ctx context.Context, c *colosseum.Challenge) (newOutputRoot common.Hash, pos uint64, bundle colosseum.PublicInputProof, zkproof, pair []byte, err error),
) *Tracker {
	return &Tracker{
		actEvery:    actEvery,
		co:          co,
		source:      source,
		outputIndex: outputIndex,
		caller:      caller,
		role:        role,
		buildProof:  buildProof,
	}
}

// Start launches the tracker's polling loop.
func (t *Tracker) Start(ctx context.Context) {
	t.StopWaiter.Start(ctx)
	t.StopWaiter.LaunchThread(t.spawn)
}

func (t *Tracker) spawn(ctx context.Context) {
	ticker := time.NewTicker(t.actEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			status := t.co.GetStatus(t.outputIndex)
			if status == colosseum.StatusApproved || status == colosseum.StatusNone {
				log.WithField("outputIndex", t.outputIndex).Debug("tracker exiting, challenge resolved")
				return
			}
			if err := t.act(ctx, status); err != nil {
				log.WithError(err).WithField("outputIndex", t.outputIndex).Warn("tracker action failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

func (t *Tracker) act(ctx context.Context, status colosseum.Status) error {
	switch status {
	case colosseum.StatusChallengerTurn:
		if t.role != RoleChallenger {
			return nil
		}
		return t.bisect(ctx)
	case colosseum.StatusAsserterTurn:
		if t.role != RoleAsserter {
			return nil
		}
		return t.bisect(ctx)
	case colosseum.StatusChallengerTimeout:
		if t.role != RoleAsserter {
			return nil
		}
		return t.co.ChallengerTimeout(ctx, t.outputIndex, t.caller)
	case colosseum.StatusAsserterTimeout:
		// The asserter has no legal move here. The coordinator accepts a
		// challenger's ProveFault in this status, but this tracker only
		// submits proofs from READY_TO_PROVE, so it does nothing.
		return nil
	case colosseum.StatusReadyToProve:
		if t.role != RoleChallenger || t.buildProof == nil {
			return nil
		}
		return t.prove(ctx)
	default:
		return nil
	}
}

func (t *Tracker) bisect(ctx context.Context) error {
	c, ok := t.co.GetChallenge(t.outputIndex)
	if !ok {
		return nil
	}
	length, err := t.co.GetSegmentsLength(c.Turn + 1)
	if err != nil {
		return err
	}
	div, found, err := t.source.FirstDivergence(c.SegStart, c.SegSize, c.Segments)
	if err != nil {
		return err
	}
	if !found || div == 0 {
		return nil
	}
	// The disputed sub-range ends at the first diverging boundary, so Bisect's
	// pos is the boundary just before it.
	pos := div - 1
	nextSegSize := c.SegSize / uint64(len(c.Segments)-1)
	childStart, _ := colosseum.ChildRange(c.SegStart, nextSegSize, pos)
	segments, err := t.source.Segments(ctx, childStart, nextSegSize, length)
	if err != nil {
		return err
	}
	_, err = t.co.Bisect(ctx, t.outputIndex, t.caller, pos, segments)
	return err
}

func (t *Tracker) prove(ctx context.Context) error {
	c, ok := t.co.GetChallenge(t.outputIndex)
	if !ok {
		return nil
	}
	newOutputRoot, pos, bundle, zkproof, pair, err := t.buildProof(ctx, c)
	if err != nil {
		return err
	}
	return t.co.ProveFault(ctx, t.outputIndex, t.caller, newOutputRoot, pos, bundle, zkproof, pair)
}
