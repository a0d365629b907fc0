package circuits

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/stretchr/testify/require"
)

func TestNewRecursionCircuitShapesFromInnerCCS(t *testing.T) {
	innerA := NewSha256DigestCircuit(8)
	ccsA, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, innerA)
	require.NoError(t, err)

	innerB := NewStakeThresholdCircuit(4)
	ccsB, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, innerB)
	require.NoError(t, err)

	c := NewRecursionCircuit(ccsA, ccsB)
	// ccs.GetNbPublicVariables includes gnark's implicit constant-1 wire.
	require.Len(t, c.WitnessA.Public, ccsA.GetNbPublicVariables()-1)
	require.Len(t, c.WitnessB.Public, ccsB.GetNbPublicVariables()-1)
}
