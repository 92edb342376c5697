package colosseum

import (
	"bytes"
	"context"

	"github.com/ethereum/go-ethereum/common"
	zktrie "github.com/kroma-network/zktrie/trie"
	zkt "github.com/kroma-network/zktrie/types"
)

// ZkTrieVerifier is the concrete TrieVerifier (spec §6, §4.4 step 5) built on
// the zero-knowledge-friendly Merkle trie used by the rest of the protocol
// stack, so that the withdrawal-passer inclusion proof checked here is
// verified against the same trie construction the L2 state root commits to.
type ZkTrieVerifier struct{}

var _ TrieVerifier = ZkTrieVerifier{}

// VerifyInclusionProof checks that proofNodes is a valid zktrie Merkle proof
// that key maps to valueEncoding under stateRoot.
func (ZkTrieVerifier) VerifyInclusionProof(ctx context.Context, key, valueEncoding []byte, proofNodes [][]byte, stateRoot common.Hash) (bool, error) {
	root, err := zkt.NewBigIntFromBytes(stateRoot.Bytes())
	if err != nil {
		return false, err
	}
	hk, err := zkt.ToSecureKeyBytes(key)
	if err != nil {
		return false, err
	}
	proof := zktrie.NewProofFromBytes(proofNodes)
	got, err := zktrie.VerifyProof(zkt.NewHashFromBigInt(root), hk, proof)
	if err != nil {
		return false, nil
	}
	return bytes.Equal(got, valueEncoding), nil
}
