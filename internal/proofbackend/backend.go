// Package proofbackend is the concrete ProofBackend capability
// (spec.md §1, §4.C-§4.G): it turns a types.Shape and a witness into a
// types.ProofArtifact using gnark's Groth16 backend over BN254,
// grounded on the teacher's setup_circuit.go (frontend.Compile +
// groth16.Setup/Prove/Verify) and circuitcache for the build-once
// memoization.
package proofbackend

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/solidity"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/near-zk/finality-prover/internal/circuitcache"
	"github.com/near-zk/finality-prover/internal/circuits"
	"github.com/near-zk/finality-prover/internal/errs"
	"github.com/near-zk/finality-prover/internal/types"
)

// builtCircuit is the cached artifact for one shape: the compiled
// constraint system plus its proving/verifying keys.
type builtCircuit struct {
	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey
}

// Backend implements ProofBackend against gnark's Groth16 backend.
// One Backend is shared by every worker goroutine in a process; the
// embedded cache is the only mutable shared state, and it is already
// safe for concurrent use.
type Backend struct {
	cache *circuitcache.Cache
}

func New() *Backend {
	return &Backend{cache: circuitcache.New()}
}

// allocate returns a fresh, unassigned circuit instance for shape —
// used both to compile (frontend.Compile needs only the shape, not a
// witness) and as the witness template the caller fills in. A
// ShapeRecursion shape first resolves (and, if needed, builds) both of
// its legs via FoldLegShapes so NewRecursionCircuit can size its
// placeholder verifying keys/proofs/witnesses off each leg's real
// compiled constraint system.
func (b *Backend) allocate(shape types.Shape) (frontend.Circuit, error) {
	switch shape.Kind {
	case types.ShapeEd25519:
		return circuits.NewEd25519Circuit(shape.MsgLenBits), nil
	case types.ShapeSha256:
		return circuits.NewSha256DigestCircuit(shape.ByteLen), nil
	case types.ShapeStakeThreshold:
		return circuits.NewStakeThresholdCircuit(shape.ByteLen), nil
	case types.ShapeBlockData:
		return circuits.NewBlockDataCircuit(), nil
	case types.ShapeRecursion:
		legA, legB, err := types.FoldLegShapes(shape)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrCircuitBuild, err)
		}
		builtA, err := b.cache.GetOrBuild(legA, b.build)
		if err != nil {
			return nil, fmt.Errorf("%w: build leg a %+v: %v", errs.ErrCircuitBuild, legA, err)
		}
		builtB, err := b.cache.GetOrBuild(legB, b.build)
		if err != nil {
			return nil, fmt.Errorf("%w: build leg b %+v: %v", errs.ErrCircuitBuild, legB, err)
		}
		return circuits.NewRecursionCircuit(builtA.(*builtCircuit).ccs, builtB.(*builtCircuit).ccs), nil
	default:
		return nil, fmt.Errorf("%w: unknown shape kind %d", errs.ErrCircuitBuild, shape.Kind)
	}
}

func (b *Backend) build(shape types.Shape) (any, error) {
	circuit, err := b.allocate(shape)
	if err != nil {
		return nil, err
	}

	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		return nil, fmt.Errorf("%w: compile shape %+v: %v", errs.ErrCircuitBuild, shape, err)
	}

	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("%w: setup shape %+v: %v", errs.ErrCircuitBuild, shape, err)
	}

	return &builtCircuit{ccs: ccs, pk: pk, vk: vk}, nil
}

// Prove binds witness (a fully-assigned circuit of the same shape
// returned by allocate) and produces a Groth16 proof plus the shape's
// verifying key exported as Solidity verifier source, per spec.md
// §4.C's artifact shape.
func (b *Backend) Prove(shape types.Shape, witness frontend.Circuit) (types.ProofArtifact, error) {
	built, err := b.cache.GetOrBuild(shape, b.build)
	if err != nil {
		return types.ProofArtifact{}, err
	}
	bc := built.(*builtCircuit)

	fullWitness, err := frontend.NewWitness(witness, ecc.BN254.ScalarField())
	if err != nil {
		return types.ProofArtifact{}, fmt.Errorf("%w: build witness: %v", errs.ErrWitnessBind, err)
	}

	proof, err := groth16.Prove(bc.ccs, bc.pk, fullWitness)
	if err != nil {
		return types.ProofArtifact{}, fmt.Errorf("%w: %v", errs.ErrProve, err)
	}

	var proofBytes bytes.Buffer
	if _, err := proof.WriteTo(&proofBytes); err != nil {
		return types.ProofArtifact{}, fmt.Errorf("%w: serialize proof: %v", errs.ErrProve, err)
	}

	publicWitness, err := frontend.NewWitness(witness, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return types.ProofArtifact{}, fmt.Errorf("%w: build public witness: %v", errs.ErrWitnessBind, err)
	}
	publicStrings, err := publicInputStrings(publicWitness)
	if err != nil {
		return types.ProofArtifact{}, err
	}

	verifierData, err := exportVerifierData(bc.vk)
	if err != nil {
		return types.ProofArtifact{}, err
	}

	return types.ProofArtifact{
		Bytes:        proofBytes.Bytes(),
		VerifierData: verifierData,
		PublicInputs: publicStrings,
	}, nil
}

// Verify checks a proof against shape's verifying key and the given
// public inputs. Neither the orchestrator nor httpapi calls it: a
// reduced proof is returned without being verified first.
func (b *Backend) Verify(shape types.Shape, witness frontend.Circuit, proof types.ProofArtifact) error {
	built, err := b.cache.GetOrBuild(shape, b.build)
	if err != nil {
		return err
	}
	bc := built.(*builtCircuit)

	publicWitness, err := frontend.NewWitness(witness, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("%w: build public witness: %v", errs.ErrWitnessBind, err)
	}

	gproof := groth16.NewProof(ecc.BN254)
	if _, err := gproof.ReadFrom(bytes.NewReader(proof.Bytes)); err != nil {
		return fmt.Errorf("%w: decode proof: %v", errs.ErrProve, err)
	}

	if err := groth16.Verify(gproof, bc.vk, publicWitness); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrProve, err)
	}
	return nil
}

// RecursionInput is one child leg entering a fold: the proof bytes and
// encoded public witness (one "0x"-hex blob) a prior Prove/Recurse
// call returned.
type RecursionInput struct {
	Proof        []byte
	PublicInputs []string
}

// Recurse folds two already-proven legs into one proof over shape (a
// ShapeRecursion shape), decoding each leg's proof and public witness
// against its own verifying key and driving circuits.RecursionCircuit
// through Prove — the real fold step the orchestrator's sequential
// reduce chain composes one step at a time (spec.md §4.G/§9).
func (b *Backend) Recurse(shape types.Shape, legA, legB RecursionInput) (types.ProofArtifact, error) {
	legAShape, legBShape, err := types.FoldLegShapes(shape)
	if err != nil {
		return types.ProofArtifact{}, fmt.Errorf("%w: %v", errs.ErrCircuitBuild, err)
	}

	recLegA, err := b.decodeRecursionLeg(legAShape, legA)
	if err != nil {
		return types.ProofArtifact{}, fmt.Errorf("decode leg a: %w", err)
	}
	recLegB, err := b.decodeRecursionLeg(legBShape, legB)
	if err != nil {
		return types.ProofArtifact{}, fmt.Errorf("decode leg b: %w", err)
	}

	witness, err := circuits.AssignRecursionWitness(recLegA, recLegB)
	if err != nil {
		return types.ProofArtifact{}, fmt.Errorf("%w: assign recursion witness: %v", errs.ErrWitnessBind, err)
	}

	return b.Prove(shape, witness)
}

// decodeRecursionLeg rebuilds a circuits.RecursionLeg from a leg's
// shape (to fetch its verifying key from the cache) and its encoded
// RecursionInput.
func (b *Backend) decodeRecursionLeg(legShape types.Shape, in RecursionInput) (circuits.RecursionLeg, error) {
	built, err := b.cache.GetOrBuild(legShape, b.build)
	if err != nil {
		return circuits.RecursionLeg{}, err
	}
	bc := built.(*builtCircuit)

	gproof := groth16.NewProof(ecc.BN254)
	if _, err := gproof.ReadFrom(bytes.NewReader(in.Proof)); err != nil {
		return circuits.RecursionLeg{}, fmt.Errorf("decode leg proof: %w", err)
	}

	w, err := decodePublicWitness(in.PublicInputs)
	if err != nil {
		return circuits.RecursionLeg{}, fmt.Errorf("decode leg public witness: %w", err)
	}

	return circuits.RecursionLeg{VK: bc.vk, Proof: gproof, Witness: w}, nil
}

// decodePublicWitness inverts publicInputStrings: Prove encodes the
// public witness as one "0x"-prefixed hex blob via MarshalBinary, so a
// later fold step can rebuild the same witness.Witness from it without
// needing the original assignment around.
func decodePublicWitness(publicInputs []string) (witness.Witness, error) {
	if len(publicInputs) != 1 {
		return nil, fmt.Errorf("expected exactly one encoded public-witness blob, got %d", len(publicInputs))
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(publicInputs[0], "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode public witness hex: %w", err)
	}
	w, err := witness.New(ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("construct witness: %w", err)
	}
	if err := w.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("unmarshal public witness: %w", err)
	}
	return w, nil
}

// exportVerifierData renders the verifying key as Solidity verifier
// contract source, the same export the teacher's setup_circuit.go writes to
// disk, kept here instead so each shape's verifier travels with its
// proof rather than living only on the filesystem.
func exportVerifierData(vk groth16.VerifyingKey) ([]byte, error) {
	var buf bytes.Buffer
	if err := vk.ExportSolidity(&buf, solidity.WithHashToFieldFunction(sha256.New())); err != nil {
		return nil, fmt.Errorf("export verifier data: %w", err)
	}
	return buf.Bytes(), nil
}

func publicInputStrings(w *frontend.Witness) ([]string, error) {
	// frontend.Witness stringifies its public inputs through MarshalBinary;
	// proving jobs only need the encoded blob preserved for the
	// recursion composer's public-input plumbing, not a per-field split.
	public, err := w.Public()
	if err != nil {
		return nil, fmt.Errorf("extract public witness: %w", err)
	}
	vals, err := public.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal public witness: %w", err)
	}
	return []string{fmt.Sprintf("0x%x", vals)}, nil
}
