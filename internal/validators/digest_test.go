package validators

import (
	"crypto/sha256"
	"testing"

	"github.com/near-zk/finality-prover/internal/errs"
	"github.com/near-zk/finality-prover/internal/types"
	"github.com/stretchr/testify/require"
)

func sampleValidators() []types.ValidatorStake {
	return []types.ValidatorStake{
		{AccountID: "alice.near", PublicKey: [32]byte{1}, Stake: "1000000000000000000000000", StructVersion: 1},
		{AccountID: "bob.near", PublicKey: [32]byte{2}, Stake: "2000000000000000000000000", StructVersion: 1},
	}
}

func TestDigestMatchesSerialize(t *testing.T) {
	vs := sampleValidators()
	digest, blob, err := Digest(vs)
	require.NoError(t, err)
	require.Equal(t, sha256.Sum256(blob), digest)
}

func TestEmptyValidatorSetFails(t *testing.T) {
	_, _, err := Digest(nil)
	require.ErrorIs(t, err, errs.ErrEmptyValidatorSet)
}

func TestSerializeIsDeterministic(t *testing.T) {
	vs := sampleValidators()
	b1, err := Serialize(vs)
	require.NoError(t, err)
	b2, err := Serialize(vs)
	require.NoError(t, err)
	require.Equal(t, b1, b2)
}

func TestSerializeRejectsNonNumericStake(t *testing.T) {
	vs := []types.ValidatorStake{{AccountID: "x.near", Stake: "not-a-number"}}
	_, err := Serialize(vs)
	require.Error(t, err)
}
