package circuits

import (
	"fmt"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/math/uints"
)

// stakeLimbBytes is 17, one byte wider than the 16-byte u128 stake
// encoding (types.StakeBytes) so the in-circuit running sums never
// wrap the native BN254 scalar field while accumulating up to a few
// hundred validators' stakes — see SPEC_FULL.md §7's stake-arithmetic
// note, grounded on original_source/near_bft_finality/fuzz/prove_block_data/two_thirds.rs.
const stakeLimbBytes = 17

// StakeThresholdCircuit proves that the signer set identified by
// Signed carries at least two-thirds of TotalStake, per spec.md §4.E:
//
//	3 * sum(stake[i] for i where Signed[i]) >= 2 * sum(stake[i])
//
// Stakes and the signed bitmap are private; only the pass/fail
// relation is constrained, since the caller (worker/orchestrator)
// decides from ErrBelowThreshold whether the job fails, not this
// circuit.
type StakeThresholdCircuit struct {
	Stakes [][stakeLimbBytes]uints.U8 `gnark:",secret"`
	Signed []frontend.Variable        `gnark:",secret"` // 0 or 1 per validator
}

// NewStakeThresholdCircuit allocates a circuit shaped for
// numValidators entries — the circuit shape for ShapeStakeThreshold.
func NewStakeThresholdCircuit(numValidators int) *StakeThresholdCircuit {
	return &StakeThresholdCircuit{
		Stakes: make([][stakeLimbBytes]uints.U8, numValidators),
		Signed: make([]frontend.Variable, numValidators),
	}
}

func (c *StakeThresholdCircuit) Define(api frontend.API) error {
	if len(c.Stakes) != len(c.Signed) {
		return fmt.Errorf("stakes/signed length mismatch: %d vs %d", len(c.Stakes), len(c.Signed))
	}

	totalStake := frontend.Variable(0)
	signedStake := frontend.Variable(0)

	for i := range c.Stakes {
		api.AssertIsBoolean(c.Signed[i])

		stakeVar := leBytesToVariable(api, c.Stakes[i][:])
		totalStake = api.Add(totalStake, stakeVar)
		signedStake = api.Add(signedStake, api.Mul(c.Signed[i], stakeVar))
	}

	lhs := api.Mul(signedStake, 3)
	rhs := api.Mul(totalStake, 2)
	api.AssertIsLessOrEqual(rhs, lhs)

	return nil
}

// leBytesToVariable combines a little-endian byte slice into a single
// field element, the same place-value accumulation the teacher uses
// in serializeLimbTo8Bytes/serializeUint64ToChunk but run in reverse
// (bytes-to-value rather than value-to-bytes).
func leBytesToVariable(api frontend.API, b []uints.U8) frontend.Variable {
	acc := frontend.Variable(0)
	place := frontend.Variable(1)
	for _, byt := range b {
		acc = api.Add(acc, api.Mul(byt.Val, place))
		place = api.Mul(place, 256)
	}
	return acc
}
