package colosseum

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// verifyProof runs the proof-acceptance sequence of spec §4.4 steps 2-8
// against an already turn-checked challenge. It returns the accepted
// public-input digest on success. It never mutates c or the replay set;
// the caller commits the effects of step 9 once this returns successfully,
// preserving the "reject without mutation" discipline of spec §7.
func (co *Coordinator) verifyProof(
	ctx context.Context,
	c *Challenge,
	status Status,
	pos uint64,
	bundle PublicInputProof,
	zkproof []byte,
	pair []byte,
) (common.Hash, error) {
	ableToBisect, err := IsAbleToBisect(co.cfg.SegmentsLengths, c.Turn, c.SegSize)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %s", ErrProofRejected, err)
	}

	srcRoot := co.hasher.HashOutputRootProof(bundle.SrcOutputRootProof)
	dstRoot := co.hasher.HashOutputRootProof(bundle.DstOutputRootProof)

	// Step 2: segment anchoring, only once collapsed to single-block
	// granularity. Skipped when we reached here via ASSERTER_TIMEOUT
	// before collapse (spec §4.4 step 2, §9 rationale).
	if !ableToBisect {
		if pos+1 >= uint64(len(c.Segments)) {
			return common.Hash{}, fmt.Errorf("%w: segment position %d out of range", ErrBadSegments, pos)
		}
		if srcRoot != c.Segments[pos] {
			return common.Hash{}, fmt.Errorf("%w: src output root proof does not match committed segment", ErrBadSegments)
		}
		if dstRoot == c.Segments[pos+1] {
			return common.Hash{}, fmt.Errorf("%w: dst output root proof must disagree with committed segment", ErrBadSegments)
		}
	}

	// Step 3: block linkage.
	if bundle.SrcOutputRootProof.NextBlockHash != bundle.DstOutputRootProof.BlockHash {
		return common.Hash{}, fmt.Errorf("%w: src.nextBlockHash != dst.blockHash", ErrProofRejected)
	}

	// Step 4: public-input consistency.
	if bundle.PublicInput.StateRoot != bundle.DstOutputRootProof.StateRoot {
		return common.Hash{}, fmt.Errorf("%w: publicInput.stateRoot != dst.stateRoot", ErrProofRejected)
	}
	headerHash, err := co.hasher.HashBlockHeader(bundle.PublicInput, bundle.Rlps)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: hashBlockHeader: %s", ErrProofRejected, err)
	}
	if headerHash != bundle.SrcOutputRootProof.NextBlockHash {
		return common.Hash{}, fmt.Errorf("%w: hashBlockHeader mismatch", ErrProofRejected)
	}

	// Step 5: withdrawal storage inclusion.
	accountRLP, err := AccountRLP(
		bundle.L2ToL1MessagePasserBalance,
		bundle.L2ToL1MessagePasserCodeHash,
		bundle.DstOutputRootProof.MessagePasserStorageRoot,
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: encode passer account: %s", ErrProofRejected, err)
	}
	included, err := co.trie.VerifyInclusionProof(
		ctx,
		l2ToL1MessagePasserAddress.Bytes(),
		accountRLP,
		bundle.MerkleProof,
		bundle.SrcOutputRootProof.StateRoot,
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: trie verifier: %s", ErrProofRejected, err)
	}
	if !included {
		return common.Hash{}, fmt.Errorf("%w: withdrawal passer account not included under src state root", ErrProofRejected)
	}

	// Step 6: public-input digest.
	dummyHashes := co.hasher.GenerateDummyHashes(co.cfg.DummyHash, int(co.cfg.MaxTxs))
	digest, err := co.hasher.HashPublicInput(bundle.SrcOutputRootProof.StateRoot, bundle.PublicInput, dummyHashes)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: hashPublicInput: %s", ErrProofRejected, err)
	}

	// Step 7: replay check.
	seen, err := co.replaySet.Contains(ctx, digest)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: replay set: %s", ErrProofRejected, err)
	}
	if seen {
		return common.Hash{}, ErrReplay
	}

	// Step 8: ZK verify.
	ok, err := co.zk.Verify(ctx, zkproof, pair, digest)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: zk verifier: %s", ErrProofRejected, err)
	}
	if !ok {
		return common.Hash{}, fmt.Errorf("%w: zk verification failed", ErrProofRejected)
	}

	return digest, nil
}
