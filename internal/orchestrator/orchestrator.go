// Package orchestrator drives one finality-proving job end to end
// (spec.md §4.H): fetch the block and its validator set, canonicalize
// the hash, dispatch per-signature proving tasks over the bus,
// collect results until every dispatched task has reported or the
// task timeout fires, check that the signed stake reaches two thirds,
// then reduce every leaf proof into one recursive proof.
//
// Grounded on the teacher's provers/listener.go for the
// "fetch -> verify -> assemble" top-level shape; the job state
// machine itself (spec.md §4.H's INIT/FETCH/DISPATCH/COLLECT/REDUCE)
// has no direct teacher analog, so it follows spec.md's own staging
// rather than a borrowed control-flow idiom.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/consensys/gnark/std/math/uints"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/near-zk/finality-prover/internal/bus"
	"github.com/near-zk/finality-prover/internal/canonical"
	"github.com/near-zk/finality-prover/internal/circuits"
	"github.com/near-zk/finality-prover/internal/errs"
	"github.com/near-zk/finality-prover/internal/proofbackend"
	"github.com/near-zk/finality-prover/internal/types"
	"github.com/near-zk/finality-prover/internal/validators"
)

// JobKind distinguishes a single-block proof from an epoch-boundary
// proof. RunJob does not branch on it: both kinds make the same
// BlockSource calls and build the same fold chain, and Kind is only
// logged and copied into JobResult.
type JobKind string

const (
	JobKindBlock JobKind = "BLOCK"
	JobKindEpoch JobKind = "EPOCH"
)

// BlockSource is the subset of nearrpc.Client the orchestrator needs,
// expressed as an interface so tests can fake it without a live RPC
// endpoint.
type BlockSource interface {
	Block(ctx context.Context, blockHash string) (types.HeaderDataFields, error)
	ValidatorsOrdered(ctx context.Context, epochID string) ([]types.ValidatorStake, error)
}

// JobRequest is what an HTTP call or CLI invocation hands the
// orchestrator to start a job.
type JobRequest struct {
	Kind      JobKind
	BlockHash string
}

// JobResult is what the orchestrator returns once a job reaches DONE
// (or fails irrecoverably). DeadLettered records signature indices
// that never produced a usable proof: those a worker reported as
// FAILED and those still unanswered when TaskTimeout elapsed, per
// SPEC_FULL.md §9's supplemented DeadLettered field.
type JobResult struct {
	JobID        string              `json:"job_id"`
	Kind         JobKind             `json:"kind"`
	Proof        types.ProofArtifact `json:"proof"`
	DeadLettered []int               `json:"dead_lettered,omitempty"`
}

// Orchestrator holds the long-lived collaborators a running job needs.
// Never a process-global singleton (spec.md §9): cmd/prover-server
// constructs exactly one and threads it through httpapi.Server.
type Orchestrator struct {
	Source  BlockSource
	Backend *proofbackend.Backend
	Bus     bus.BusClient
	Log     zerolog.Logger

	TaskTimeout time.Duration
	JobTimeout  time.Duration
}

func New(source BlockSource, backend *proofbackend.Backend, busClient bus.BusClient, log zerolog.Logger, taskTimeout, jobTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		Source:      source,
		Backend:     backend,
		Bus:         busClient,
		Log:         log,
		TaskTimeout: taskTimeout,
		JobTimeout:  jobTimeout,
	}
}

// RunJob executes the full state machine for one job and returns its
// result, or an error from the errs taxonomy if the job cannot
// complete (below-threshold stake, malformed header, job timeout).
func (o *Orchestrator) RunJob(ctx context.Context, req JobRequest) (JobResult, error) {
	jobID := uuid.NewString()
	log := o.Log.With().Str("job_id", jobID).Str("kind", string(req.Kind)).Logger()

	ctx, cancel := context.WithTimeout(ctx, o.JobTimeout)
	defer cancel()

	// FETCH_BLOCKS
	header, err := o.Source.Block(ctx, req.BlockHash)
	if err != nil {
		return JobResult{}, fmt.Errorf("fetch block: %w", err)
	}
	if err := validateHeaderComplete(header); err != nil {
		return JobResult{}, err
	}

	prevHeader, err := o.Source.Block(ctx, "0x"+hex.EncodeToString(header.PrevHash))
	if err != nil {
		return JobResult{}, fmt.Errorf("fetch prev block: %w", err)
	}
	if prevHeader.Height == nil {
		return JobResult{}, fmt.Errorf("%w: prev block missing height", errs.ErrMalformedHeader)
	}

	vset, err := o.Source.ValidatorsOrdered(ctx, string(header.EpochID))
	if err != nil {
		return JobResult{}, fmt.Errorf("fetch validators: %w", err)
	}

	// CANONICALIZE: re-derive the block hash from the header's own
	// byte regions via canonical.Hash rather than trusting the
	// RPC-reported hash outright, per SPEC_FULL.md §4.A.
	canonicalHash, err := canonicalizeHash(header)
	if err != nil {
		return JobResult{}, err
	}
	log = log.With().Str("canonical_hash", fmt.Sprintf("0x%x", canonicalHash)).Logger()

	bpDigest, serializedValidators, err := validators.Digest(vset)
	if err != nil {
		return JobResult{}, fmt.Errorf("digest validator set: %w", err)
	}
	if !bytes.Equal(header.BpHash, bpDigest[:]) {
		return JobResult{}, fmt.Errorf("%w: next_bp_hash %x, recomputed %x", errs.ErrHashMismatch, header.BpHash, bpDigest)
	}

	approvalMsg, err := canonical.ApprovalMessage(header.PrevHash, *header.Height)
	if err != nil {
		return JobResult{}, fmt.Errorf("build approval message: %w", err)
	}

	// DISPATCH_SIGS: publish one PROVE_SIGNATURE task per non-nil
	// approval, then collect PROCESS_SIGNATURE_RESULT until every
	// dispatched index has reported or TaskTimeout expires.
	results, deadLettered, err := o.collectSignatureProofs(ctx, jobID, log, approvalMsg, header, vset)
	if err != nil {
		return JobResult{}, err
	}

	if err := o.assertStakeThreshold(vset, results); err != nil {
		return JobResult{}, err
	}

	stakeProof, err := o.proveStakeThreshold(vset, results)
	if err != nil {
		return JobResult{}, fmt.Errorf("prove stake threshold: %w", err)
	}
	blockDataProof, err := o.proveBlockData(header, canonicalHash, *prevHeader.Height)
	if err != nil {
		return JobResult{}, fmt.Errorf("prove block data: %w", err)
	}
	digestProof, err := o.proveDigest(serializedValidators, bpDigest)
	if err != nil {
		return JobResult{}, fmt.Errorf("prove bp_hash digest: %w", err)
	}

	// REDUCE: fold every leaf proof (signatures + stake-threshold +
	// block-data + bp_hash digest) into one recursive proof.
	reduced, err := o.reduce(results, stakeProof, blockDataProof, digestProof, len(approvalMsg)*8, len(vset), len(serializedValidators))
	if err != nil {
		return JobResult{}, err
	}

	return JobResult{
		JobID:        jobID,
		Kind:         req.Kind,
		Proof:        reduced,
		DeadLettered: deadLettered,
	}, nil
}

func validateHeaderComplete(header types.HeaderDataFields) error {
	if header.Height == nil || len(header.PrevHash) != types.PkHashBytes {
		return fmt.Errorf("%w: incomplete header from block source", errs.ErrMalformedHeader)
	}
	widths := map[string][]byte{
		"hash":              header.Hash,
		"bp_hash":           header.BpHash,
		"epoch_id":          header.EpochID,
		"next_epoch_id":     header.NextEpochID,
		"last_ds_final":     header.LastDsFinalHash,
		"last_final":        header.LastFinalHash,
		"prev_state_root":   header.PrevStateRoot,
		"outcome_root":      header.OutcomeRoot,
		"block_merkle_root": header.BlockMerkleRoot,
	}
	for name, field := range widths {
		if len(field) != types.PkHashBytes {
			return fmt.Errorf("%w: %s is %d bytes, want %d", errs.ErrMalformedHeader, name, len(field), types.PkHashBytes)
		}
	}
	if header.Timestamp == nil {
		return fmt.Errorf("%w: missing timestamp", errs.ErrMalformedHeader)
	}
	if header.InnerRest == nil {
		return fmt.Errorf("%w: missing inner_rest", errs.ErrMalformedHeader)
	}
	return nil
}

// canonicalizeHash rebuilds inner_lite from header's decoded fields
// and re-derives the block hash via canonical.Hash, failing with
// errs.ErrHashMismatch rather than silently trusting the RPC-reported
// hash.
func canonicalizeHash(header types.HeaderDataFields) ([32]byte, error) {
	fields := canonical.InnerLiteFields{Height: *header.Height, Timestamp: *header.Timestamp}
	copy(fields.EpochID[:], header.EpochID)
	copy(fields.NextEpochID[:], header.NextEpochID)
	copy(fields.PrevStateRoot[:], header.PrevStateRoot)
	copy(fields.OutcomeRoot[:], header.OutcomeRoot)
	copy(fields.NextBpHash[:], header.BpHash)
	copy(fields.BlockMerkleRoot[:], header.BlockMerkleRoot)

	innerLite := canonical.EncodeInnerLite(fields)
	recomputed, err := canonical.Hash(types.HeaderData{
		PrevHash:  header.PrevHash,
		InnerLite: innerLite,
		InnerRest: header.InnerRest,
	})
	if err != nil {
		return [32]byte{}, err
	}
	if !bytes.Equal(recomputed[:], header.Hash) {
		return [32]byte{}, fmt.Errorf("%w: recomputed %x, rpc reported %x", errs.ErrHashMismatch, recomputed, header.Hash)
	}
	return recomputed, nil
}

type sigResult struct {
	Index int
	Proof types.ProofArtifact
}

// collectSignatureProofs publishes one PROVE_SIGNATURE task per
// approval and waits for matching PROCESS_SIGNATURE_RESULT messages
// until every dispatched index has reported or TaskTimeout elapses.
// Indices reported as FAILED and indices still pending at the deadline
// are returned as dead-lettered. If ctx ends first it returns at once
// with ctx.Err(); results arriving after it returns are not read.
func (o *Orchestrator) collectSignatureProofs(ctx context.Context, jobID string, log zerolog.Logger, approvalMsg []byte, header types.HeaderDataFields, vset []types.ValidatorStake) ([]sigResult, []int, error) {
	pending := map[int]bool{}
	resultCh := make(chan bus.Message, len(header.Approvals))

	if err := o.Bus.Subscribe(ctx, bus.SubjectSigResult, bus.DurableConsumerName, resultCh); err != nil {
		return nil, nil, fmt.Errorf("subscribe to signature results: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, approval := range header.Approvals {
		if approval == nil {
			continue
		}
		i, approval := i, approval
		pending[i] = true
		g.Go(func() error {
			task := types.InputTask{Message: approvalMsg, Approval: approval, Validator: validatorKeyBytes(vset, i), SignatureIndex: i}
			payload, err := json.Marshal(task)
			if err != nil {
				return fmt.Errorf("marshal signature task %d: %w", i, err)
			}
			return o.Bus.Publish(gctx, bus.SubjectProveSig, payload)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("dispatch signature tasks: %w", err)
	}

	var results []sigResult
	var failed []int
	deadline := time.Now().Add(o.TaskTimeout)
	for len(pending) > 0 && time.Now().Before(deadline) {
		select {
		case msg := <-resultCh:
			var out types.OutputTask
			if err := json.Unmarshal(msg.Data, &out); err != nil {
				log.Warn().Err(err).Msg("dropping malformed signature result")
				_ = msg.Term()
				continue
			}
			_ = msg.Ack()
			if !pending[out.SignatureIndex] {
				continue
			}
			delete(pending, out.SignatureIndex)
			if out.Status == types.StatusOK {
				results = append(results, sigResult{
					Index: out.SignatureIndex,
					Proof: types.ProofArtifact{Bytes: out.Proof, VerifierData: out.VerifierData, PublicInputs: out.PublicInputs},
				})
			} else {
				failed = append(failed, out.SignatureIndex)
			}
		case <-ctx.Done():
			return results, append(pendingIndices(pending), failed...), ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}

	return results, append(pendingIndices(pending), failed...), nil
}

func pendingIndices(pending map[int]bool) []int {
	out := make([]int, 0, len(pending))
	for i := range pending {
		out = append(out, i)
	}
	return out
}

func validatorKeyBytes(vset []types.ValidatorStake, idx int) []byte {
	if idx < 0 || idx >= len(vset) {
		return nil
	}
	return vset[idx].PublicKey[:]
}

// assertStakeThreshold re-derives the 3*signed >= 2*total relation
// natively (cheaply, with big.Int for the full 128-bit stake range)
// before paying for the circuit's version of the same check, since a
// below-threshold job should fail fast rather than pay for a reduce
// pass first.
func (o *Orchestrator) assertStakeThreshold(vset []types.ValidatorStake, results []sigResult) error {
	signed := map[int]bool{}
	for _, r := range results {
		signed[r.Index] = true
	}

	total := new(big.Int)
	signedStake := new(big.Int)
	for i, v := range vset {
		stake, ok := new(big.Int).SetString(v.Stake, 10)
		if !ok {
			return fmt.Errorf("%w: validator %d has non-numeric stake %q", errs.ErrMalformedHeader, i, v.Stake)
		}
		total.Add(total, stake)
		if signed[i] {
			signedStake.Add(signedStake, stake)
		}
	}
	if total.Sign() == 0 {
		return fmt.Errorf("%w: empty validator set", errs.ErrEmptyValidatorSet)
	}

	lhs := new(big.Int).Mul(signedStake, big.NewInt(3))
	rhs := new(big.Int).Mul(total, big.NewInt(2))
	if lhs.Cmp(rhs) < 0 {
		return fmt.Errorf("%w: signed stake %s of %s", errs.ErrBelowThreshold, signedStake, total)
	}
	return nil
}

// proveStakeThreshold builds and proves the in-circuit 128-bit version
// of assertStakeThreshold's relation (SPEC_FULL.md §7), one entry per
// validator in vset's order.
func (o *Orchestrator) proveStakeThreshold(vset []types.ValidatorStake, results []sigResult) (types.ProofArtifact, error) {
	signed := map[int]bool{}
	for _, r := range results {
		signed[r.Index] = true
	}

	witness := circuits.NewStakeThresholdCircuit(len(vset))
	for i, v := range vset {
		stake, ok := new(big.Int).SetString(v.Stake, 10)
		if !ok {
			return types.ProofArtifact{}, fmt.Errorf("%w: validator %d has non-numeric stake %q", errs.ErrMalformedHeader, i, v.Stake)
		}
		be := stake.FillBytes(make([]byte, 17))
		for j := 0; j < 17; j++ {
			witness.Stakes[i][j] = uints.NewU8(be[16-j]) // big-endian -> little-endian limb bytes
		}
		if signed[i] {
			witness.Signed[i] = 1
		} else {
			witness.Signed[i] = 0
		}
	}

	shape := types.Shape{Kind: types.ShapeStakeThreshold, ByteLen: len(vset)}
	return o.Backend.Prove(shape, witness)
}

// proveBlockData builds and proves BlockDataCircuit's relation over
// the fetched header and its predecessor's height.
func (o *Orchestrator) proveBlockData(header types.HeaderDataFields, canonicalHash [32]byte, prevHeight uint64) (types.ProofArtifact, error) {
	witness := circuits.NewBlockDataCircuit()
	witness.PrevHash = bytesToU8Array32(header.PrevHash)
	witness.Hash = bytesToU8Array32(canonicalHash[:])
	witness.BpHash = bytesToU8Array32(header.BpHash)
	witness.EpochID = bytesToU8Array32(header.EpochID)
	witness.NextEpochID = bytesToU8Array32(header.NextEpochID)
	witness.LastDsFinalHash = bytesToU8Array32(header.LastDsFinalHash)
	witness.LastFinalHash = bytesToU8Array32(header.LastFinalHash)
	witness.Height = *header.Height
	witness.PrevHeight = prevHeight
	if bytes.Equal(header.EpochID, header.NextEpochID) {
		witness.SameEpoch = 1
	} else {
		witness.SameEpoch = 0
	}

	shape := types.Shape{Kind: types.ShapeBlockData}
	return o.Backend.Prove(shape, witness)
}

// proveDigest builds and proves Sha256DigestCircuit's relation binding
// the Borsh-serialized validator list to next_bp_hash.
func (o *Orchestrator) proveDigest(serializedValidators []byte, bpDigest [32]byte) (types.ProofArtifact, error) {
	witness := circuits.NewSha256DigestCircuit(len(serializedValidators))
	for i, by := range serializedValidators {
		witness.Preimage[i] = uints.NewU8(by)
	}
	for i, by := range bpDigest {
		witness.Digest[i] = uints.NewU8(by)
	}

	shape := types.Shape{Kind: types.ShapeSha256, ByteLen: len(serializedValidators)}
	return o.Backend.Prove(shape, witness)
}

func bytesToU8Array32(b []byte) [32]uints.U8 {
	var out [32]uints.U8
	for i := 0; i < 32; i++ {
		out[i] = uints.NewU8(b[i])
	}
	return out
}

// reduce folds the collected leaf proofs into one recursive proof via
// circuits.RecursionCircuit driven through proofbackend.Backend: the
// signature leaves fold pairwise in sequence (not a balanced tree),
// and the running accumulator then composes against the
// stake-threshold, block-data and digest proofs in that fixed order —
// see types.FoldLegShapes.
func (o *Orchestrator) reduce(results []sigResult, stakeProof, blockDataProof, digestProof types.ProofArtifact, sigMsgLenBits, numValidators, digestPreimageLen int) (types.ProofArtifact, error) {
	if len(results) == 0 {
		return types.ProofArtifact{}, fmt.Errorf("%w: no signature proofs to reduce", errs.ErrBelowThreshold)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })
	n := len(results)

	shapeAt := func(step int) types.Shape {
		return types.Shape{
			Kind:              types.ShapeRecursion,
			Step:              step,
			NumSignatures:     n,
			SigMsgLenBits:     sigMsgLenBits,
			NumValidators:     numValidators,
			DigestPreimageLen: digestPreimageLen,
		}
	}
	toInput := func(p types.ProofArtifact) proofbackend.RecursionInput {
		return proofbackend.RecursionInput{Proof: p.Bytes, PublicInputs: p.PublicInputs}
	}
	fold := func(step int, legA, legB types.ProofArtifact) (types.ProofArtifact, error) {
		return o.Backend.Recurse(shapeAt(step), toInput(legA), toInput(legB))
	}

	var acc types.ProofArtifact
	var err error
	if n == 1 {
		acc = results[0].Proof
	} else {
		acc, err = fold(1, results[0].Proof, results[1].Proof)
		if err != nil {
			return types.ProofArtifact{}, fmt.Errorf("fold signature leaves 0,1: %w", err)
		}
		for i := 2; i < n; i++ {
			acc, err = fold(i, acc, results[i].Proof)
			if err != nil {
				return types.ProofArtifact{}, fmt.Errorf("fold signature leaf %d: %w", i, err)
			}
		}
	}

	acc, err = fold(n, acc, stakeProof)
	if err != nil {
		return types.ProofArtifact{}, fmt.Errorf("fold stake-threshold proof: %w", err)
	}
	acc, err = fold(n+1, acc, blockDataProof)
	if err != nil {
		return types.ProofArtifact{}, fmt.Errorf("fold block-data proof: %w", err)
	}
	acc, err = fold(n+2, acc, digestProof)
	if err != nil {
		return types.ProofArtifact{}, fmt.Errorf("fold digest proof: %w", err)
	}
	return acc, nil
}
