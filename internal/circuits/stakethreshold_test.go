package circuits

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/std/math/uints"
	gnark_test "github.com/consensys/gnark/test"
)

func stakeBytes(v int64) [stakeLimbBytes]uints.U8 {
	var out [stakeLimbBytes]uints.U8
	bi := big.NewInt(v)
	le := bi.Bytes()
	// big.Int.Bytes is big-endian; reverse into the fixed-width LE array.
	for i := 0; i < len(le); i++ {
		out[i] = uints.NewU8(le[len(le)-1-i])
	}
	for i := len(le); i < stakeLimbBytes; i++ {
		out[i] = uints.NewU8(0)
	}
	return out
}

func TestStakeThresholdCircuitMeetsThreshold(t *testing.T) {
	circuit := NewStakeThresholdCircuit(3)
	witness := NewStakeThresholdCircuit(3)

	stakes := []int64{100, 100, 100}
	signed := []int64{1, 1, 0} // 200/300 == 2/3, exactly at threshold
	for i := range stakes {
		witness.Stakes[i] = stakeBytes(stakes[i])
		witness.Signed[i] = signed[i]
	}

	assert := gnark_test.NewAssert(t)
	err := gnark_test.IsSolved(circuit, witness, ecc.BN254.ScalarField())
	assert.NoError(err)
}

func TestStakeThresholdCircuitBelowThreshold(t *testing.T) {
	circuit := NewStakeThresholdCircuit(3)
	witness := NewStakeThresholdCircuit(3)

	stakes := []int64{100, 100, 100}
	signed := []int64{1, 0, 0} // 100/300 < 2/3
	for i := range stakes {
		witness.Stakes[i] = stakeBytes(stakes[i])
		witness.Signed[i] = signed[i]
	}

	assert := gnark_test.NewAssert(t)
	err := gnark_test.IsSolved(circuit, witness, ecc.BN254.ScalarField())
	assert.Error(err, "a signer set below two-thirds stake must not satisfy the circuit")
}
