package canonical

import (
	"crypto/sha256"
	"testing"

	"github.com/near-zk/finality-prover/internal/types"
	"github.com/stretchr/testify/require"
)

func TestHashRoundTrip(t *testing.T) {
	prevHash := make([]byte, 32)
	for i := range prevHash {
		prevHash[i] = byte(i)
	}
	innerLite := make([]byte, types.InnerLiteBytes)
	innerRest := []byte("approvals and other chain-state roots go here")

	h, err := Hash(types.HeaderData{PrevHash: prevHash, InnerLite: innerLite, InnerRest: innerRest})
	require.NoError(t, err)

	ilHash := sha256.Sum256(innerLite)
	irHash := sha256.Sum256(innerRest)
	combined := append(append(append([]byte{}, ilHash[:]...), irHash[:]...), prevHash...)
	want := sha256.Sum256(combined)

	require.Equal(t, want, h)
}

func TestHashMalformedInnerLite(t *testing.T) {
	_, err := Hash(types.HeaderData{
		PrevHash:  make([]byte, 32),
		InnerLite: make([]byte, 10),
		InnerRest: []byte{1, 2, 3},
	})
	require.Error(t, err)
}

func TestApprovalMessageLayout(t *testing.T) {
	prevHash := make([]byte, 32)
	msg, err := ApprovalMessage(prevHash, 12345)
	require.NoError(t, err)
	require.Len(t, msg, types.ApprovalMessageLen)
	require.Equal(t, byte(0x00), msg[0])
	require.Equal(t, prevHash, msg[1:33])
}

func TestDecodeInnerLiteRoundTrip(t *testing.T) {
	b := make([]byte, types.InnerLiteBytes)
	b[0] = 7 // height low byte, little-endian
	fields, err := DecodeInnerLite(b)
	require.NoError(t, err)
	require.Equal(t, uint64(7), fields.Height)
}

func TestEncodeInnerLiteRoundTripsThroughDecode(t *testing.T) {
	fields := InnerLiteFields{Height: 12345, Timestamp: 99}
	for i := range fields.EpochID {
		fields.EpochID[i] = byte(i)
	}
	for i := range fields.NextBpHash {
		fields.NextBpHash[i] = byte(i + 1)
	}

	encoded := EncodeInnerLite(fields)
	require.Len(t, encoded, types.InnerLiteBytes)

	decoded, err := DecodeInnerLite(encoded)
	require.NoError(t, err)
	require.Equal(t, fields, decoded)
}
