package orchestrator

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/near-zk/finality-prover/internal/bus"
	"github.com/near-zk/finality-prover/internal/canonical"
	"github.com/near-zk/finality-prover/internal/errs"
	"github.com/near-zk/finality-prover/internal/proofbackend"
	"github.com/near-zk/finality-prover/internal/types"
	"github.com/near-zk/finality-prover/internal/validators"
	"github.com/near-zk/finality-prover/internal/worker"
)

// fakeSource serves a fixed set of blocks keyed by the same block-hash
// string RunJob queries with — one entry for the block being proven,
// one for its predecessor, since RunJob fetches both.
type fakeSource struct {
	byHash map[string]types.HeaderDataFields
	vset   []types.ValidatorStake
}

func (f *fakeSource) Block(ctx context.Context, blockHash string) (types.HeaderDataFields, error) {
	h, ok := f.byHash[blockHash]
	if !ok {
		return types.HeaderDataFields{}, fmt.Errorf("fakeSource: no fixture for block %q", blockHash)
	}
	return h, nil
}

func (f *fakeSource) ValidatorsOrdered(ctx context.Context, epochID string) ([]types.ValidatorStake, error) {
	return f.vset, nil
}

func fill(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

func heightPtr(h uint64) *uint64 { return &h }

// fixtureChain builds a two-block fixture (current, prev) whose
// canonical hash, next_bp_hash and doomslug fields are all genuinely
// consistent with each other, plus two real ed25519 validator keys so
// a signed index produces a real, provable approval rather than a
// placeholder byte blob.
func fixtureChain(t *testing.T) (current, prev types.HeaderDataFields, vset []types.ValidatorStake, privKeys []ed25519.PrivateKey, approvalMsg []byte) {
	t.Helper()

	const height = uint64(100)
	const prevHeight = uint64(99)
	prevHash := fill(0x02, 32)

	pub0, priv0, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	pub1, priv1, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	vset = []types.ValidatorStake{
		{AccountID: "alice.near", PublicKey: [32]byte(pub0), Stake: "100", StructVersion: 0},
		{AccountID: "bob.near", PublicKey: [32]byte(pub1), Stake: "100", StructVersion: 0},
	}
	privKeys = []ed25519.PrivateKey{priv0, priv1}

	bpDigest, _, err := validators.Digest(vset)
	require.NoError(t, err)

	approvalMsg, err = canonical.ApprovalMessage(prevHash, height)
	require.NoError(t, err)

	fields := canonical.InnerLiteFields{Height: height, Timestamp: 1700000000}
	copy(fields.EpochID[:], fill(0x04, 32))
	copy(fields.NextEpochID[:], fill(0x04, 32))
	copy(fields.PrevStateRoot[:], fill(0x05, 32))
	copy(fields.OutcomeRoot[:], fill(0x06, 32))
	copy(fields.NextBpHash[:], bpDigest[:])
	copy(fields.BlockMerkleRoot[:], fill(0x08, 32))
	innerLite := canonical.EncodeInnerLite(fields)
	innerRest := fill(0x09, 16)

	hash, err := canonical.Hash(types.HeaderData{PrevHash: prevHash, InnerLite: innerLite, InnerRest: innerRest})
	require.NoError(t, err)

	timestamp := fields.Timestamp
	current = types.HeaderDataFields{
		Hash:            hash[:],
		Height:          heightPtr(height),
		PrevHash:        prevHash,
		BpHash:          bpDigest[:],
		EpochID:         append([]byte{}, fields.EpochID[:]...),
		NextEpochID:     append([]byte{}, fields.NextEpochID[:]...),
		LastDsFinalHash: fill(0x0a, 32),
		LastFinalHash:   prevHash, // doomslug: last_final == prev_hash this step
		PrevStateRoot:   append([]byte{}, fields.PrevStateRoot[:]...),
		OutcomeRoot:     append([]byte{}, fields.OutcomeRoot[:]...),
		Timestamp:       &timestamp,
		BlockMerkleRoot: append([]byte{}, fields.BlockMerkleRoot[:]...),
		InnerRest:       innerRest,
	}
	prev = types.HeaderDataFields{Height: heightPtr(prevHeight)}

	return current, prev, vset, privKeys, approvalMsg
}

func withApprovals(header types.HeaderDataFields, approvals [][]byte) types.HeaderDataFields {
	header.Approvals = approvals
	return header
}

func newFakeSource(current, prev types.HeaderDataFields, vset []types.ValidatorStake) *fakeSource {
	return &fakeSource{
		byHash: map[string]types.HeaderDataFields{
			"0xcurrent":                                 current,
			"0x" + hex.EncodeToString(current.PrevHash): prev,
		},
		vset: vset,
	}
}

func TestRunJobAboveThresholdSucceeds(t *testing.T) {
	current, prev, vset, privKeys, approvalMsg := fixtureChain(t)

	sig0 := ed25519.Sign(privKeys[0], approvalMsg)
	sig1 := ed25519.Sign(privKeys[1], approvalMsg)
	current = withApprovals(current, [][]byte{sig0, sig1})

	source := newFakeSource(current, prev, vset)
	fakeBus := bus.NewFake()
	backend := proofbackend.New()

	pool := worker.New(fakeBus, backend, zerolog.Nop(), 2)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	go func() { _ = pool.Run(ctx) }()

	o := New(source, backend, fakeBus, zerolog.Nop(), 20*time.Second, 45*time.Second)

	result, err := o.RunJob(ctx, JobRequest{Kind: JobKindBlock, BlockHash: "0xcurrent"})
	require.NoError(t, err)
	require.Empty(t, result.DeadLettered)
	require.NotEmpty(t, result.Proof.Bytes)
}

func TestRunJobBelowThresholdFails(t *testing.T) {
	current, prev, vset, privKeys, approvalMsg := fixtureChain(t)

	sig0 := ed25519.Sign(privKeys[0], approvalMsg)
	current = withApprovals(current, [][]byte{sig0, nil}) // only 100/200 stake signed

	source := newFakeSource(current, prev, vset)
	fakeBus := bus.NewFake()
	backend := proofbackend.New()

	pool := worker.New(fakeBus, backend, zerolog.Nop(), 2)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	go func() { _ = pool.Run(ctx) }()

	o := New(source, backend, fakeBus, zerolog.Nop(), 10*time.Second, 20*time.Second)

	_, err := o.RunJob(ctx, JobRequest{Kind: JobKindBlock, BlockHash: "0xcurrent"})
	require.ErrorIs(t, err, errs.ErrBelowThreshold)
}
