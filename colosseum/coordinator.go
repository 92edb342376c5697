package colosseum

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Params bundles the collaborators and configuration a Coordinator needs.
// Hasher, Clock, Events, and Logger default to production implementations
// when left zero, mirroring the functional-defaults pattern the teacher
// uses for its simulated state manager constructors.
type Params struct {
	Config    Config
	Oracle    Oracle
	BondPool  BondPool
	Council   Council
	ZK        ZKVerifier
	Trie      TrieVerifier
	ReplaySet ReplaySet

	Hasher Hasher
	Clock  Clock
	Events EventSink
	Logger *logrus.Logger
}

// Coordinator is the top-level Challenge Coordinator of spec §4.5: it owns
// the challenges map and orchestrates the other four components against
// the injected external collaborators. All mutating operations are
// serialized behind a single mutex per spec §5 and §9 ("wrap the
// coordinator in a single mutex").
type Coordinator struct {
	mu sync.Mutex

	cfg                 Config
	submissionInterval  uint64
	oracle              Oracle
	bondPool            BondPool
	council             Council
	zk                  ZKVerifier
	trie                TrieVerifier
	hasher              Hasher
	replaySet           ReplaySet
	clock               Clock
	events              EventSink
	log                 *logrus.Logger
	challenges          map[uint64]*Challenge
}

// NewCoordinator validates the configuration against the oracle's
// SubmissionInterval constant and constructs a Coordinator. It returns
// ErrConfigInvalid if the segments-lengths vector violates the product
// constraint (spec §4.1, §7).
func NewCoordinator(p Params) (*Coordinator, error) {
	if p.Oracle == nil || p.BondPool == nil || p.Council == nil || p.ZK == nil || p.Trie == nil || p.ReplaySet == nil {
		return nil, errors.New("colosseum: all collaborators are required")
	}
	submissionInterval := p.Oracle.SubmissionInterval()
	if err := p.Config.Validate(submissionInterval); err != nil {
		return nil, err
	}
	hasher := p.Hasher
	if hasher == nil {
		hasher = KeccakHasher{}
	}
	clock := p.Clock
	if clock == nil {
		clock = SystemClock()
	}
	events := p.Events
	if events == nil {
		events = NoopSink{}
	}
	log := p.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Coordinator{
		cfg:                p.Config,
		submissionInterval: submissionInterval,
		oracle:             p.Oracle,
		bondPool:           p.BondPool,
		council:            p.Council,
		zk:                 p.ZK,
		trie:               p.Trie,
		hasher:             hasher,
		replaySet:          p.ReplaySet,
		clock:              clock,
		events:             events,
		log:                log,
		challenges:         make(map[uint64]*Challenge),
	}, nil
}

// CreateChallenge opens a new dispute against the output at outputIndex
// (spec §4.5).
func (co *Coordinator) CreateChallenge(ctx context.Context, outputIndex uint64, caller common.Address, segments []common.Hash) (*Challenge, error) {
	if outputIndex == 0 {
		return nil, errors.Wrap(ErrInvalidIndex, "genesis index cannot be challenged")
	}

	co.mu.Lock()
	defer co.mu.Unlock()

	now := co.clock.Now()
	existing := co.challenges[outputIndex]
	if Evaluate(existing, now, co.cfg).InProgress() {
		return nil, errors.Wrapf(ErrAlreadyActive, "outputIndex %d", outputIndex)
	}

	finalized, err := co.oracle.IsFinalized(ctx, outputIndex)
	if err != nil {
		return nil, errors.Wrap(err, "oracle.IsFinalized")
	}
	if finalized {
		return nil, errors.Wrapf(ErrOutputFinalized, "outputIndex %d", outputIndex)
	}

	targetOutput, err := co.oracle.GetL2Output(ctx, outputIndex)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidIndex, "outputIndex %d does not exist: %s", outputIndex, err)
	}
	if caller == targetOutput.Submitter {
		return nil, errors.Wrapf(ErrInvalidIndex, "caller %s submitted the disputed output", caller)
	}

	requiredLen, err := co.cfg.SegmentsLengths.At(1)
	if err != nil {
		return nil, err
	}
	if uint64(len(segments)) != requiredLen {
		return nil, errors.Wrapf(ErrBadSegments, "want %d segments at turn 1, got %d", requiredLen, len(segments))
	}
	if segments[0] != targetOutput.OutputRoot {
		return nil, errors.Wrap(ErrBadSegments, "first segment must match the disputed output's committed root")
	}
	if segments[len(segments)-1] == targetOutput.OutputRoot {
		return nil, errors.Wrap(ErrBadSegments, "last segment must disagree with the disputed output's committed root")
	}

	if err := co.bondPool.IncreaseBond(ctx, caller, outputIndex); err != nil {
		return nil, errors.Wrap(err, "bondPool.IncreaseBond")
	}

	c := &Challenge{
		OutputIndex: outputIndex,
		Asserter:    targetOutput.Submitter,
		Challenger:  caller,
		Segments:    append([]common.Hash(nil), segments...),
		SegStart:    targetOutput.L2BlockNumber - co.submissionInterval,
		SegSize:     co.submissionInterval,
		Turn:        1,
		TimeoutAt:   now.Add(co.cfg.BisectionTimeout),
	}
	co.challenges[outputIndex] = c

	co.log.WithFields(logrus.Fields{
		"outputIndex": outputIndex,
		"asserter":    c.Asserter,
		"challenger":  c.Challenger,
	}).Info("Challenge created")
	co.events.Emit(ChallengeCreated{OutputIndex: outputIndex, Asserter: c.Asserter, Challenger: c.Challenger})

	return c.clone(), nil
}

// Bisect submits a finer partition of the currently disputed sub-range,
// alternating between asserter and challenger (spec §4.5).
func (co *Coordinator) Bisect(ctx context.Context, outputIndex uint64, caller common.Address, pos uint64, segments []common.Hash) (*Challenge, error) {
	co.mu.Lock()
	defer co.mu.Unlock()

	finalized, err := co.oracle.IsFinalized(ctx, outputIndex)
	if err != nil {
		return nil, errors.Wrap(err, "oracle.IsFinalized")
	}
	if finalized {
		return nil, errors.Wrapf(ErrOutputFinalized, "outputIndex %d", outputIndex)
	}

	now := co.clock.Now()
	c := co.challenges[outputIndex]
	status := Evaluate(c, now, co.cfg)
	if status != StatusChallengerTurn && status != StatusAsserterTurn {
		return nil, errors.Wrapf(ErrWrongTurn, "outputIndex %d status %s does not accept bisect", outputIndex, status)
	}
	if err := co.checkCaller(c, status, caller); err != nil {
		return nil, err
	}

	nextTurn := c.Turn + 1
	requiredLen, err := co.cfg.SegmentsLengths.At(nextTurn)
	if err != nil {
		return nil, err
	}
	if uint64(len(segments)) != requiredLen {
		return nil, errors.Wrapf(ErrBadSegments, "want %d segments at turn %d, got %d", requiredLen, nextTurn, len(segments))
	}
	maxPos, err := MaxPos(co.cfg.SegmentsLengths, c.Turn)
	if err != nil {
		return nil, err
	}
	if pos > maxPos {
		return nil, errors.Wrapf(ErrBadSegments, "position %d exceeds max %d at turn %d", pos, maxPos, c.Turn)
	}
	if segments[0] != c.Segments[pos] {
		return nil, errors.Wrap(ErrBadSegments, "first segment must match the parent segment at pos")
	}
	if segments[len(segments)-1] == c.Segments[pos+1] {
		return nil, errors.Wrap(ErrBadSegments, "last segment must not match the parent segment at pos+1")
	}

	nextSegSize, err := NextSegSize(co.cfg.SegmentsLengths, c.Turn, c.SegSize)
	if err != nil {
		return nil, err
	}
	newSegStart, _ := ChildRange(c.SegStart, nextSegSize, pos)

	c.SegStart = newSegStart
	c.SegSize = nextSegSize
	c.Segments = append([]common.Hash(nil), segments...)
	c.Turn = nextTurn

	ableToBisect, err := IsAbleToBisect(co.cfg.SegmentsLengths, c.Turn, c.SegSize)
	if err != nil {
		return nil, err
	}
	timeout := co.cfg.ProvingTimeout
	if ableToBisect {
		timeout = co.cfg.BisectionTimeout
	}
	c.TimeoutAt = now.Add(timeout)

	co.log.WithFields(logrus.Fields{
		"outputIndex": outputIndex,
		"turn":        c.Turn,
		"pos":         pos,
		"segStart":    c.SegStart,
		"segSize":     c.SegSize,
	}).Info("Bisected challenge")
	co.events.Emit(Bisected{OutputIndex: outputIndex, Turn: c.Turn, Pos: pos})

	return c.clone(), nil
}

// ProveFault submits a single-block ZK fault proof (spec §4.4, §4.5).
func (co *Coordinator) ProveFault(
	ctx context.Context,
	outputIndex uint64,
	caller common.Address,
	newOutputRoot common.Hash,
	pos uint64,
	bundle PublicInputProof,
	zkproof []byte,
	pair []byte,
) error {
	co.mu.Lock()
	defer co.mu.Unlock()

	finalized, err := co.oracle.IsFinalized(ctx, outputIndex)
	if err != nil {
		return errors.Wrap(err, "oracle.IsFinalized")
	}
	if finalized {
		return errors.Wrapf(ErrOutputFinalized, "outputIndex %d", outputIndex)
	}

	now := co.clock.Now()
	c := co.challenges[outputIndex]
	status := Evaluate(c, now, co.cfg)
	if status != StatusReadyToProve && status != StatusAsserterTimeout {
		return errors.Wrapf(ErrWrongTurn, "outputIndex %d status %s does not accept proveFault", outputIndex, status)
	}
	if err := co.checkCaller(c, status, caller); err != nil {
		return err
	}

	digest, err := co.verifyProof(ctx, c, status, pos, bundle, zkproof, pair)
	if err != nil {
		return err
	}

	if err := co.replaySet.Insert(ctx, digest); err != nil {
		return errors.Wrap(err, "replaySet.Insert")
	}
	c.OutputRoot = newOutputRoot

	co.log.WithFields(logrus.Fields{
		"outputIndex": outputIndex,
		"outputRoot":  newOutputRoot,
	}).Info("Fault proven, requesting council approval")
	co.events.Emit(Proven{OutputIndex: outputIndex, OutputRoot: newOutputRoot})

	req := ApprovalRequest{
		OutputIndex: outputIndex,
		OutputRoot:  newOutputRoot,
		Challenger:  c.Challenger,
		Nonce:       c.Turn,
	}
	if err := co.council.RequestValidation(ctx, req, func(callbackCtx context.Context) error {
		return co.ApproveChallenge(callbackCtx, outputIndex, co.cfg.CouncilAddress)
	}); err != nil {
		return errors.Wrap(err, "council.RequestValidation")
	}
	return nil
}

// ChallengerTimeout closes a challenge in CHALLENGER_TIMEOUT: the challenger
// missed its bisection or proving deadline, or let an asserter timeout go
// unexploited for ProvingTimeout. It deliberately does not verify the caller's identity
// (spec §9: "challengerTimeout does not verify msg.sender == asserter; this
// is acceptable because the state transition is forced and the outcome is
// not caller-controlled").
func (co *Coordinator) ChallengerTimeout(ctx context.Context, outputIndex uint64, caller common.Address) error {
	co.mu.Lock()
	defer co.mu.Unlock()

	now := co.clock.Now()
	c := co.challenges[outputIndex]
	status := Evaluate(c, now, co.cfg)
	if status != StatusChallengerTimeout {
		return errors.Wrapf(ErrWrongTurn, "outputIndex %d status %s is not CHALLENGER_TIMEOUT", outputIndex, status)
	}

	delete(co.challenges, outputIndex)

	co.log.WithFields(logrus.Fields{"outputIndex": outputIndex}).Info("Challenger timed out, slot released")
	co.events.Emit(Deleted{OutputIndex: outputIndex, Reason: "challenger_timeout"})
	return nil
}

// ApproveChallenge commits a proven challenge's replacement root via the
// oracle and tombstones the slot (spec §4.5).
func (co *Coordinator) ApproveChallenge(ctx context.Context, outputIndex uint64, caller common.Address) error {
	co.mu.Lock()
	defer co.mu.Unlock()

	if caller != co.cfg.CouncilAddress {
		return errors.Wrapf(ErrNotCouncil, "caller %s", caller)
	}

	now := co.clock.Now()
	c := co.challenges[outputIndex]
	status := Evaluate(c, now, co.cfg)
	if status != StatusProven {
		return errors.Wrapf(ErrNotProven, "outputIndex %d status %s", outputIndex, status)
	}

	outputRoot := c.OutputRoot
	challenger := c.Challenger
	if err := co.oracle.ReplaceL2Output(ctx, outputIndex, outputRoot, challenger); err != nil {
		return errors.Wrap(err, "oracle.ReplaceL2Output")
	}

	co.challenges[outputIndex] = &Challenge{OutputIndex: outputIndex, Approved: true}

	co.log.WithFields(logrus.Fields{
		"outputIndex": outputIndex,
		"outputRoot":  outputRoot,
	}).Info("Challenge approved")
	co.events.Emit(Approved{OutputIndex: outputIndex, OutputRoot: outputRoot})
	co.events.Emit(Deleted{OutputIndex: outputIndex, Reason: "approved"})
	return nil
}

// checkCaller enforces spec §4.3: caller must be the account the status
// assigns the next move to, and that account must match the challenge's
// recorded asserter/challenger. The caller identity must be the
// authenticated transaction originator (spec §4.3); this module trusts
// the caller parameter as already authenticated by the transport layer.
func (co *Coordinator) checkCaller(c *Challenge, status Status, caller common.Address) error {
	actor := ExpectedActor(status)
	switch actor {
	case ActorAsserter:
		if caller != c.Asserter {
			return errors.Wrapf(ErrWrongTurn, "expected asserter %s, got %s", c.Asserter, caller)
		}
	case ActorChallenger:
		if caller != c.Challenger {
			return errors.Wrapf(ErrWrongTurn, "expected challenger %s, got %s", c.Challenger, caller)
		}
	default:
		return errors.Wrapf(ErrWrongTurn, "status %s has no legal actor", status)
	}
	return nil
}

// GetChallenge returns a defensive copy of the challenge at outputIndex, if
// any.
func (co *Coordinator) GetChallenge(outputIndex uint64) (*Challenge, bool) {
	co.mu.Lock()
	defer co.mu.Unlock()
	c := co.challenges[outputIndex]
	if c == nil {
		return nil, false
	}
	return c.clone(), true
}

// GetStatus evaluates the current status of the challenge at outputIndex
// against the clock at the moment of the call.
func (co *Coordinator) GetStatus(outputIndex uint64) Status {
	co.mu.Lock()
	defer co.mu.Unlock()
	return Evaluate(co.challenges[outputIndex], co.clock.Now(), co.cfg)
}

// GetSegmentsLength returns L[turn] from the frozen configuration.
func (co *Coordinator) GetSegmentsLength(turn uint64) (uint64, error) {
	return co.cfg.SegmentsLengths.At(turn)
}

// IsAbleToBisect reports whether the challenge at outputIndex can still be
// bisected further at its current turn and segSize.
func (co *Coordinator) IsAbleToBisect(outputIndex uint64) (bool, error) {
	co.mu.Lock()
	defer co.mu.Unlock()
	c := co.challenges[outputIndex]
	if !c.live() {
		return false, errors.Wrapf(ErrInvalidIndex, "no live challenge at outputIndex %d", outputIndex)
	}
	return IsAbleToBisect(co.cfg.SegmentsLengths, c.Turn, c.SegSize)
}

// IsInProgress reports whether the challenge occupies its outputIndex slot
// exclusively, per spec §4.2.
func (co *Coordinator) IsInProgress(outputIndex uint64) bool {
	co.mu.Lock()
	defer co.mu.Unlock()
	return Evaluate(co.challenges[outputIndex], co.clock.Now(), co.cfg).InProgress()
}

// IsChallengeRelated reports whether addr is a party (asserter or
// challenger) to the challenge at outputIndex.
func (co *Coordinator) IsChallengeRelated(outputIndex uint64, addr common.Address) bool {
	co.mu.Lock()
	defer co.mu.Unlock()
	c := co.challenges[outputIndex]
	if c == nil {
		return false
	}
	return c.Asserter == addr || c.Challenger == addr
}
