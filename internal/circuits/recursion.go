package circuits

import (
	"fmt"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/algebra/emulated/sw_bn254"
	stdgroth16 "github.com/consensys/gnark/std/recursion/groth16"
)

// RecursionCircuit verifies two inner Groth16 proofs inside an outer
// BN254 circuit and is the only building block the orchestrator's
// sequential reduce chain needs (spec.md §4.G/§4.H): leg A and leg B
// carry independent verifying keys, so the same circuit folds two
// homogeneous signature leaves together just as well as it folds the
// running accumulator against a StakeThresholdCircuit, BlockDataCircuit
// or Sha256DigestCircuit proof later in the chain.
//
// Grounded on the teacher's wrapper.go, which verifies a BW6-761 proof
// inside a BN254 outer circuit via sw_bw6761's emulated algebra
// package; this substitutes sw_bn254 since every proof in this module
// already lives on BN254 — self-recursion rather than a curve cycle,
// so the inner pairing is nonnative either way.
type RecursionCircuit struct {
	InnerVKA stdgroth16.VerifyingKey[sw_bn254.G1Affine, sw_bn254.G2Affine, sw_bn254.GTEl]
	ProofA   stdgroth16.Proof[sw_bn254.G1Affine, sw_bn254.G2Affine]
	WitnessA stdgroth16.Witness[sw_bn254.ScalarField]

	InnerVKB stdgroth16.VerifyingKey[sw_bn254.G1Affine, sw_bn254.G2Affine, sw_bn254.GTEl]
	ProofB   stdgroth16.Proof[sw_bn254.G1Affine, sw_bn254.G2Affine]
	WitnessB stdgroth16.Witness[sw_bn254.ScalarField]
}

// NewRecursionCircuit allocates a fold node verifying a proof over
// innerCCSA as leg A and a proof over innerCCSB as leg B, using the
// placeholder pattern: the compiled inner constraint systems fix the
// witness/proof shapes without needing any real key material at
// compile time. innerCCSA == innerCCSB for a homogeneous fold (e.g. two
// Ed25519 leaves); they differ for the heterogeneous compose steps.
func NewRecursionCircuit(innerCCSA, innerCCSB constraint.ConstraintSystem) *RecursionCircuit {
	return &RecursionCircuit{
		InnerVKA: stdgroth16.PlaceholderVerifyingKey[sw_bn254.G1Affine, sw_bn254.G2Affine, sw_bn254.GTEl](innerCCSA),
		ProofA:   stdgroth16.PlaceholderProof[sw_bn254.G1Affine, sw_bn254.G2Affine](innerCCSA),
		WitnessA: stdgroth16.PlaceholderWitness[sw_bn254.ScalarField](innerCCSA),

		InnerVKB: stdgroth16.PlaceholderVerifyingKey[sw_bn254.G1Affine, sw_bn254.G2Affine, sw_bn254.GTEl](innerCCSB),
		ProofB:   stdgroth16.PlaceholderProof[sw_bn254.G1Affine, sw_bn254.G2Affine](innerCCSB),
		WitnessB: stdgroth16.PlaceholderWitness[sw_bn254.ScalarField](innerCCSB),
	}
}

func (c *RecursionCircuit) Define(api frontend.API) error {
	verifier, err := stdgroth16.NewVerifier[sw_bn254.ScalarField, sw_bn254.G1Affine, sw_bn254.G2Affine, sw_bn254.GTEl](api)
	if err != nil {
		return fmt.Errorf("construct recursion verifier: %w", err)
	}

	if err := verifier.AssertProof(c.InnerVKA, c.ProofA, c.WitnessA, stdgroth16.WithCompleteArithmetic()); err != nil {
		return fmt.Errorf("verify leg a: %w", err)
	}
	if err := verifier.AssertProof(c.InnerVKB, c.ProofB, c.WitnessB, stdgroth16.WithCompleteArithmetic()); err != nil {
		return fmt.Errorf("verify leg b: %w", err)
	}
	return nil
}

// RecursionLeg is one child proof entering a fold: a decoded Groth16
// proof plus its public witness and verifying key.
type RecursionLeg struct {
	VK      groth16.VerifyingKey
	Proof   groth16.Proof
	Witness witness.Witness
}

// AssignRecursionWitness builds a fully-assigned RecursionCircuit from
// two real inner proofs, one per leg.
func AssignRecursionWitness(legA, legB RecursionLeg) (*RecursionCircuit, error) {
	vkA, err := stdgroth16.ValueOfVerifyingKey[sw_bn254.G1Affine, sw_bn254.G2Affine, sw_bn254.GTEl](legA.VK)
	if err != nil {
		return nil, fmt.Errorf("convert leg a verifying key: %w", err)
	}
	proofA, err := stdgroth16.ValueOfProof[sw_bn254.G1Affine, sw_bn254.G2Affine](legA.Proof)
	if err != nil {
		return nil, fmt.Errorf("convert leg a proof: %w", err)
	}
	witnessA, err := stdgroth16.ValueOfWitness[sw_bn254.ScalarField](legA.Witness)
	if err != nil {
		return nil, fmt.Errorf("convert leg a witness: %w", err)
	}

	vkB, err := stdgroth16.ValueOfVerifyingKey[sw_bn254.G1Affine, sw_bn254.G2Affine, sw_bn254.GTEl](legB.VK)
	if err != nil {
		return nil, fmt.Errorf("convert leg b verifying key: %w", err)
	}
	proofB, err := stdgroth16.ValueOfProof[sw_bn254.G1Affine, sw_bn254.G2Affine](legB.Proof)
	if err != nil {
		return nil, fmt.Errorf("convert leg b proof: %w", err)
	}
	witnessB, err := stdgroth16.ValueOfWitness[sw_bn254.ScalarField](legB.Witness)
	if err != nil {
		return nil, fmt.Errorf("convert leg b witness: %w", err)
	}

	return &RecursionCircuit{
		InnerVKA: vkA,
		ProofA:   proofA,
		WitnessA: witnessA,
		InnerVKB: vkB,
		ProofB:   proofB,
		WitnessB: witnessB,
	}, nil
}
