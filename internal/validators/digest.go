// Package validators computes next_bp_hash: the SHA-256 digest of the
// Borsh-serialized ordered validator-stake list for an epoch. See
// spec.md §4.B. The hashing idiom (iterate, feed a running sha256.New(),
// take Sum at the end) follows the teacher's types.ComputeScPubKeysHash.
// Stake values are parsed with holiman/uint256's fixed-width integer
// rather than math/big, since NEAR stake is always u128 and uint256
// avoids the heap allocation big.Int carries for a value this size.
package validators

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/near-zk/finality-prover/internal/errs"
	"github.com/near-zk/finality-prover/internal/types"
)

// Serialize Borsh-encodes the ordered validator list: a 4-byte LE
// length prefix followed by each entry's account_id (Borsh string:
// 4-byte LE length + UTF-8 bytes), 32-byte public key, 16-byte LE
// stake (u128), and a 1-byte struct_version.
func Serialize(vs []types.ValidatorStake) ([]byte, error) {
	if len(vs) == 0 {
		return nil, errs.ErrEmptyValidatorSet
	}

	buf := make([]byte, 0, 4+len(vs)*64)
	lenPrefix := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenPrefix, uint32(len(vs)))
	buf = append(buf, lenPrefix...)

	for i, v := range vs {
		idLen := make([]byte, 4)
		binary.LittleEndian.PutUint32(idLen, uint32(len(v.AccountID)))
		buf = append(buf, idLen...)
		buf = append(buf, []byte(v.AccountID)...)

		buf = append(buf, v.PublicKey[:]...)

		stake, err := uint256.FromDecimal(v.Stake)
		if err != nil {
			return nil, fmt.Errorf("%w: validator %d has non-numeric stake %q: %v", errs.ErrMalformedHeader, i, v.Stake, err)
		}
		var stakeLE [32]byte
		stake.WriteToArray32(&stakeLE)
		// uint256 is little-endian-by-construction but WriteToArray32
		// renders big-endian; reverse the low 16 bytes into Borsh's u128
		// little-endian wire order.
		be := stakeLE[16:32]
		borshLE := make([]byte, 16)
		for i := 0; i < 16; i++ {
			borshLE[i] = be[15-i]
		}
		buf = append(buf, borshLE...)

		buf = append(buf, v.StructVersion)
	}

	return buf, nil
}

// Digest computes next_bp_hash = SHA256(Serialize(vs)).
func Digest(vs []types.ValidatorStake) ([32]byte, []byte, error) {
	blob, err := Serialize(vs)
	if err != nil {
		return [32]byte{}, nil, err
	}
	return sha256.Sum256(blob), blob, nil
}
