package colosseum

import (
	"bytes"
	"context"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/ethereum/go-ethereum/common"
)

// GnarkVerifier is the concrete ZKVerifier (spec §6, §4.4 step 8) backed by
// a pre-loaded groth16 verifying key for the circuit that proves a block's
// state-transition public input digest.
type GnarkVerifier struct {
	vk groth16.VerifyingKey
}

var _ ZKVerifier = (*GnarkVerifier)(nil)

// NewGnarkVerifier constructs a GnarkVerifier from a gnark-serialized
// groth16 verifying key.
func NewGnarkVerifier(vk groth16.VerifyingKey) *GnarkVerifier {
	return &GnarkVerifier{vk: vk}
}

// Verify checks a groth16 proof against the verifying key, binding the
// public input digest as the circuit's sole public witness element.
func (g *GnarkVerifier) Verify(ctx context.Context, proofBytes []byte, pair []byte, digest common.Hash) (bool, error) {
	if g.vk == nil {
		return false, fmt.Errorf("gnarkverifier: no verifying key loaded")
	}
	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(proofBytes)); err != nil {
		return false, fmt.Errorf("decoding proof: %w", err)
	}

	publicWitness, err := witness.New(ecc.BN254.ScalarField())
	if err != nil {
		return false, fmt.Errorf("allocating public witness: %w", err)
	}
	if err := publicWitness.Fill(1, 0, chanOfDigest(digest)); err != nil {
		return false, fmt.Errorf("filling public witness: %w", err)
	}

	if err := groth16.Verify(proof, g.vk, publicWitness); err != nil {
		return false, nil
	}
	return true, nil
}

func chanOfDigest(digest common.Hash) chan any {
	ch := make(chan any, 1)
	ch <- digest.Big()
	close(ch)
	return ch
}
