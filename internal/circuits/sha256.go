package circuits

import (
	"fmt"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/sha2"
	"github.com/consensys/gnark/std/math/uints"
)

// Sha256DigestCircuit proves that Digest == SHA-256(Preimage), used to
// bind next_bp_hash to the Borsh-serialized validator list
// (validators.Serialize) without re-running the digest natively in
// every caller — spec.md §4.B/§4.E's "the stake-threshold and
// block-data circuits both need this digest as a public input" note.
// One circuit per distinct preimage byte length, cached the same way
// as Ed25519Circuit.
type Sha256DigestCircuit struct {
	Preimage []uints.U8 `gnark:",secret"`
	Digest   [32]uints.U8
}

// NewSha256DigestCircuit allocates a circuit shaped for a
// byteLen-byte preimage.
func NewSha256DigestCircuit(byteLen int) *Sha256DigestCircuit {
	return &Sha256DigestCircuit{Preimage: make([]uints.U8, byteLen)}
}

func (c *Sha256DigestCircuit) Define(api frontend.API) error {
	h, err := sha2.New(api)
	if err != nil {
		return fmt.Errorf("construct sha2 gadget: %w", err)
	}
	h.Write(c.Preimage)
	digest := h.Sum()
	if len(digest) != 32 {
		return fmt.Errorf("unexpected sha256 digest width: %d", len(digest))
	}

	for i := 0; i < 32; i++ {
		api.AssertIsEqual(digest[i].Val, c.Digest[i].Val)
	}
	return nil
}
