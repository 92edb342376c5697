package colosseum

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// OutputRootProof is a structured preimage that hashes to an output root
// and exposes the fields the proof pipeline needs (spec §4.4).
type OutputRootProof struct {
	Version                  common.Hash
	StateRoot                common.Hash
	MessagePasserStorageRoot common.Hash
	BlockHash                common.Hash
	NextBlockHash            common.Hash
}

// PublicInput carries the header fields sufficient, together with Rlps, to
// recompute the next block hash deterministically (spec §4.4).
type PublicInput struct {
	BlockHash        common.Hash
	ParentHash       common.Hash
	Timestamp        uint64
	Number           uint64
	GasLimit         uint64
	BaseFee          *big.Int
	TransactionsRoot common.Hash
	StateRoot        common.Hash
	WithdrawalsRoot  common.Hash
}

// PublicInputProof bundles the witnesses proveFault needs to accept a
// single-block fault proof (spec §4.4).
type PublicInputProof struct {
	SrcOutputRootProof OutputRootProof
	DstOutputRootProof OutputRootProof
	PublicInput        PublicInput
	// Rlps holds supplementary pre-encoded header slices needed to
	// recompute NextBlockHash deterministically alongside PublicInput.
	Rlps [][]byte

	MerkleProof                 [][]byte
	L2ToL1MessagePasserBalance  *big.Int
	L2ToL1MessagePasserCodeHash common.Hash
}

// l2ToL1MessagePasserAddress is the predeployed L2 account whose storage
// root forms the second component of an output root (spec GLOSSARY:
// "withdrawal passer"). This is the well-known Bedrock/Kroma predeploy
// address, fixed across all checkpoints.
var l2ToL1MessagePasserAddress = common.HexToAddress("0x4200000000000000000000000000000000000016")

// l2ToL1MessagePasserNonce is always zero for the predeploy account (spec
// §4.4 step 5).
const l2ToL1MessagePasserNonce = 0
