package circuits

import (
	"crypto/sha256"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/std/math/uints"
	gnark_test "github.com/consensys/gnark/test"
)

func TestSha256DigestCircuitIsSolved(t *testing.T) {
	preimage := []byte("alice.near bob.near validator stake digest fixture")
	want := sha256.Sum256(preimage)

	circuit := NewSha256DigestCircuit(len(preimage))
	witness := NewSha256DigestCircuit(len(preimage))
	for i, b := range preimage {
		witness.Preimage[i] = uints.NewU8(b)
	}
	for i, b := range want {
		witness.Digest[i] = uints.NewU8(b)
	}

	assert := gnark_test.NewAssert(t)
	err := gnark_test.IsSolved(circuit, witness, ecc.BN254.ScalarField())
	assert.NoError(err)
}
