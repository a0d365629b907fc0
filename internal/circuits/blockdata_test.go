package circuits

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/std/math/uints"
	gnark_test "github.com/consensys/gnark/test"
)

func fillHash(b byte) [32]uints.U8 {
	var out [32]uints.U8
	for i := range out {
		out[i] = uints.NewU8(b)
	}
	return out
}

func TestBlockDataCircuitConsecutiveHeightsSameEpoch(t *testing.T) {
	circuit := NewBlockDataCircuit()
	witness := NewBlockDataCircuit()

	prev := fillHash(0x01)
	cur := fillHash(0x02)
	epoch := fillHash(0x09)

	witness.PrevHash = prev
	witness.Hash = cur
	witness.BpHash = fillHash(0x0a)
	witness.EpochID = epoch
	witness.NextEpochID = epoch
	witness.LastDsFinalHash = fillHash(0x03)
	witness.LastFinalHash = prev // last-final == prev_hash case
	witness.Height = 101
	witness.PrevHeight = 100
	witness.SameEpoch = 1

	assert := gnark_test.NewAssert(t)
	err := gnark_test.IsSolved(circuit, witness, ecc.BN254.ScalarField())
	assert.NoError(err)
}

func TestBlockDataCircuitRejectsHeightSkip(t *testing.T) {
	circuit := NewBlockDataCircuit()
	witness := NewBlockDataCircuit()

	prev := fillHash(0x01)
	epoch := fillHash(0x09)
	witness.PrevHash = prev
	witness.Hash = fillHash(0x02)
	witness.BpHash = fillHash(0x0a)
	witness.EpochID = epoch
	witness.NextEpochID = epoch
	witness.LastDsFinalHash = fillHash(0x03)
	witness.LastFinalHash = prev
	witness.Height = 102 // skips 101
	witness.PrevHeight = 100
	witness.SameEpoch = 1

	assert := gnark_test.NewAssert(t)
	err := gnark_test.IsSolved(circuit, witness, ecc.BN254.ScalarField())
	assert.Error(err, "a height skip must not satisfy the circuit")
}
