// Package canonical re-derives a NEAR block hash from its canonical
// byte layout and produces the approval message bytes a validator
// signs over. It is pure and deterministic — see spec.md §4.A.
package canonical

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/near-zk/finality-prover/internal/errs"
	"github.com/near-zk/finality-prover/internal/types"
)

// Hash re-derives a block's 32-byte hash from its three canonical byte
// regions:
//
//	hash = SHA256( SHA256(inner_lite) || SHA256(inner_rest) || prev_hash )
//
// Fails with errs.ErrMalformedHeader if inner_lite is not exactly
// types.InnerLiteBytes long, or prev_hash is not 32 bytes.
func Hash(h types.HeaderData) ([32]byte, error) {
	var out [32]byte
	if len(h.InnerLite) != types.InnerLiteBytes {
		return out, fmt.Errorf("%w: inner_lite len %d, want %d", errs.ErrMalformedHeader, len(h.InnerLite), types.InnerLiteBytes)
	}
	if len(h.PrevHash) != 32 {
		return out, fmt.Errorf("%w: prev_hash len %d, want 32", errs.ErrMalformedHeader, len(h.PrevHash))
	}

	innerLiteHash := sha256.Sum256(h.InnerLite)
	innerRestHash := sha256.Sum256(h.InnerRest)

	combined := make([]byte, 0, 96)
	combined = append(combined, innerLiteHash[:]...)
	combined = append(combined, innerRestHash[:]...)
	combined = append(combined, h.PrevHash...)

	out = sha256.Sum256(combined)
	return out, nil
}

// InnerLiteFields is the decoded view of the 208-byte inner_lite region,
// used by the block-data prover (4.F) to read height/epoch_id/
// next_bp_hash without re-parsing byte offsets at every call site.
type InnerLiteFields struct {
	Height          uint64
	EpochID         [32]byte
	NextEpochID     [32]byte
	PrevStateRoot   [32]byte
	OutcomeRoot     [32]byte
	Timestamp       uint64
	NextBpHash      [32]byte
	BlockMerkleRoot [32]byte
}

// EncodeInnerLite renders f back into the fixed-layout inner_lite byte
// region DecodeInnerLite parses, so a caller that only has the decoded
// fields (as nearrpc.Client's JSON response does) can still drive
// Hash, rather than needing the raw bytes to already exist somewhere.
func EncodeInnerLite(f InnerLiteFields) []byte {
	b := make([]byte, 0, types.InnerLiteBytes)
	height := make([]byte, 8)
	binary.LittleEndian.PutUint64(height, f.Height)
	b = append(b, height...)
	b = append(b, f.EpochID[:]...)
	b = append(b, f.NextEpochID[:]...)
	b = append(b, f.PrevStateRoot[:]...)
	b = append(b, f.OutcomeRoot[:]...)
	timestamp := make([]byte, 8)
	binary.LittleEndian.PutUint64(timestamp, f.Timestamp)
	b = append(b, timestamp...)
	b = append(b, f.NextBpHash[:]...)
	b = append(b, f.BlockMerkleRoot[:]...)
	return b
}

// DecodeInnerLite parses the fixed-layout inner_lite region.
func DecodeInnerLite(b []byte) (InnerLiteFields, error) {
	var f InnerLiteFields
	if len(b) != types.InnerLiteBytes {
		return f, fmt.Errorf("%w: inner_lite len %d, want %d", errs.ErrMalformedHeader, len(b), types.InnerLiteBytes)
	}

	off := 0
	f.Height = binary.LittleEndian.Uint64(b[off : off+8])
	off += 8
	copy(f.EpochID[:], b[off:off+32])
	off += 32
	copy(f.NextEpochID[:], b[off:off+32])
	off += 32
	copy(f.PrevStateRoot[:], b[off:off+32])
	off += 32
	copy(f.OutcomeRoot[:], b[off:off+32])
	off += 32
	f.Timestamp = binary.LittleEndian.Uint64(b[off : off+8])
	off += 8
	copy(f.NextBpHash[:], b[off:off+32])
	off += 32
	copy(f.BlockMerkleRoot[:], b[off:off+32])
	off += 32

	return f, nil
}

// ApprovalMessage builds get_data_for_sig(Endorsement(prevHash), targetHeight):
// the 41-byte string 0x00 || prevHash || targetHeight(u64 BE).
func ApprovalMessage(prevHash []byte, targetHeight uint64) ([]byte, error) {
	if len(prevHash) != 32 {
		return nil, fmt.Errorf("%w: prev_hash len %d, want 32", errs.ErrMalformedHeader, len(prevHash))
	}
	msg := make([]byte, 0, types.ApprovalMessageLen)
	msg = append(msg, types.EndorsementLeadingByte)
	msg = append(msg, prevHash...)
	heightBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(heightBytes, targetHeight)
	msg = append(msg, heightBytes...)
	return msg, nil
}
