package proofbackend

import (
	"crypto/ed25519"
	"crypto/sha256"
	"testing"

	"github.com/consensys/gnark/std/math/emulated"
	"github.com/consensys/gnark/std/math/uints"
	"github.com/stretchr/testify/require"

	"github.com/near-zk/finality-prover/internal/circuits"
	"github.com/near-zk/finality-prover/internal/types"
)

func TestProveAndVerifySha256Digest(t *testing.T) {
	b := New()
	shape := types.Shape{Kind: types.ShapeSha256, ByteLen: 8}

	preimage := []byte("12345678")
	witness := circuits.NewSha256DigestCircuit(8)
	for i, by := range preimage {
		witness.Preimage[i] = uints.NewU8(by)
	}
	digest := sha256.Sum256(preimage)
	for i, by := range digest {
		witness.Digest[i] = uints.NewU8(by)
	}

	artifact, err := b.Prove(shape, witness)
	require.NoError(t, err)
	require.NotEmpty(t, artifact.Bytes)
	require.NotEmpty(t, artifact.VerifierData)

	require.NoError(t, b.Verify(shape, witness, artifact))
}

// ed25519LeafFixture builds a real, satisfiable Ed25519Circuit witness
// the same way worker.Pool.prove assembles one from an InputTask.
func ed25519LeafFixture(t *testing.T) (types.Shape, *circuits.Ed25519Circuit) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	msg := make([]byte, 41)
	for i := range msg {
		msg[i] = byte(i + 1)
	}
	sig := ed25519.Sign(priv, msg)

	var rCompressed, aCompressed [32]byte
	copy(rCompressed[:], sig[:32])
	copy(aCompressed[:], pub)
	rx, _, err := circuits.DecompressEdwardsPoint(rCompressed)
	require.NoError(t, err)
	ax, _, err := circuits.DecompressEdwardsPoint(aCompressed)
	require.NoError(t, err)

	shape := types.Shape{Kind: types.ShapeEd25519, MsgLenBits: len(msg) * 8}
	witness := circuits.NewEd25519Circuit(shape.MsgLenBits)
	for i, by := range msg {
		witness.Message[i] = uints.NewU8(by)
	}
	for i := 0; i < 64; i++ {
		witness.Signature[i] = uints.NewU8(sig[i])
	}
	for i := 0; i < 32; i++ {
		witness.PublicKey[i] = uints.NewU8(pub[i])
	}
	witness.RX = emulated.ValueOf[circuits.Curve25519Fp](rx)
	witness.AX = emulated.ValueOf[circuits.Curve25519Fp](ax)

	return shape, witness
}

// TestRecurseFoldsTwoLeafProofs exercises a NumSignatures==1 chain's
// first fold: an Ed25519 leaf composed directly against a
// StakeThreshold proof, per FoldLegShapes' step-1 special case.
func TestRecurseFoldsTwoLeafProofs(t *testing.T) {
	b := New()

	sigShape, sigWitness := ed25519LeafFixture(t)
	proofA, err := b.Prove(sigShape, sigWitness)
	require.NoError(t, err)

	stakeShape := types.Shape{Kind: types.ShapeStakeThreshold, ByteLen: 2}
	stakeWitness := circuits.NewStakeThresholdCircuit(2)
	stakeWitness.Signed[0], stakeWitness.Signed[1] = 1, 1
	proofB, err := b.Prove(stakeShape, stakeWitness)
	require.NoError(t, err)

	recShape := types.Shape{
		Kind:          types.ShapeRecursion,
		Step:          1,
		NumSignatures: 1,
		SigMsgLenBits: sigShape.MsgLenBits,
		NumValidators: 2,
	}
	legA, legB, err := types.FoldLegShapes(recShape)
	require.NoError(t, err)
	require.Equal(t, sigShape, legA)
	require.Equal(t, stakeShape, legB)

	legAInput := RecursionInput{Proof: proofA.Bytes, PublicInputs: proofA.PublicInputs}
	legBInput := RecursionInput{Proof: proofB.Bytes, PublicInputs: proofB.PublicInputs}

	reduced, err := b.Recurse(recShape, legAInput, legBInput)
	require.NoError(t, err)
	require.NotEmpty(t, reduced.Bytes)

	recLegA, err := b.decodeRecursionLeg(legA, legAInput)
	require.NoError(t, err)
	recLegB, err := b.decodeRecursionLeg(legB, legBInput)
	require.NoError(t, err)
	verifyWitness, err := circuits.AssignRecursionWitness(recLegA, recLegB)
	require.NoError(t, err)

	require.NoError(t, b.Verify(recShape, verifyWitness, reduced))
}
