// Package worker implements the signature-proof worker (spec.md §4.D):
// it consumes PROVE_SIGNATURE tasks, resolves the right circuit shape
// from circuitcache, proves the Ed25519Circuit relation, and publishes
// a PROCESS_SIGNATURE_RESULT. Acks only follow a successful publish,
// so a crash between proving and publishing redelivers the task
// rather than silently dropping it.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/consensys/gnark/std/math/emulated"
	"github.com/consensys/gnark/std/math/uints"
	"github.com/rs/zerolog"

	"github.com/near-zk/finality-prover/internal/bus"
	"github.com/near-zk/finality-prover/internal/circuits"
	"github.com/near-zk/finality-prover/internal/errs"
	"github.com/near-zk/finality-prover/internal/proofbackend"
	"github.com/near-zk/finality-prover/internal/types"
)

// maxAttempts is not read by process: a task whose proof fails is
// reported as FAILED and acked on its first delivery, without a Nak
// for another proving attempt.
const maxAttempts = 3

// Pool runs WorkerCount goroutines pulling PROVE_SIGNATURE tasks off
// the bus and publishing PROCESS_SIGNATURE_RESULT for each.
type Pool struct {
	Bus     bus.BusClient
	Backend *proofbackend.Backend
	Log     zerolog.Logger

	WorkerCount int
}

func New(busClient bus.BusClient, backend *proofbackend.Backend, log zerolog.Logger, workerCount int) *Pool {
	return &Pool{Bus: busClient, Backend: backend, Log: log, WorkerCount: workerCount}
}

// Run subscribes to PROVE_SIGNATURE and fans deliveries out to
// WorkerCount processing goroutines, blocking until ctx is canceled.
func (p *Pool) Run(ctx context.Context) error {
	deliveries := make(chan bus.Message, p.WorkerCount*4)
	if err := p.Bus.Subscribe(ctx, bus.SubjectProveSig, bus.DurableConsumerName, deliveries); err != nil {
		return fmt.Errorf("subscribe to %s: %w", bus.SubjectProveSig, err)
	}

	done := make(chan struct{})
	for i := 0; i < p.WorkerCount; i++ {
		go func(id int) {
			log := p.Log.With().Int("worker", id).Logger()
			for {
				select {
				case msg, ok := <-deliveries:
					if !ok {
						done <- struct{}{}
						return
					}
					p.process(ctx, log, msg)
				case <-ctx.Done():
					done <- struct{}{}
					return
				}
			}
		}(i)
	}

	for i := 0; i < p.WorkerCount; i++ {
		<-done
	}
	return ctx.Err()
}

// process proves one signature task and publishes its result. A task
// whose proof fails is published as FAILED and acked on that same
// delivery; proving is not retried. A payload that does not decode is
// Term'd. The delivery is Nak'd (and so redelivered) only when the
// result cannot be marshaled or published.
func (p *Pool) process(ctx context.Context, log zerolog.Logger, msg bus.Message) {
	var task types.InputTask
	if err := json.Unmarshal(msg.Data, &task); err != nil {
		log.Error().Err(err).Msg("malformed signature task, terminating delivery")
		_ = msg.Term()
		return
	}

	proof, proveErr := p.prove(task)
	out := types.OutputTask{SignatureIndex: task.SignatureIndex}
	if proveErr != nil {
		log.Warn().Err(proveErr).Int("signature_index", task.SignatureIndex).Msg("signature proof failed")
		out.Status = types.StatusFailed
	} else {
		out.Proof = proof.Bytes
		out.VerifierData = proof.VerifierData
		out.PublicInputs = proof.PublicInputs
		out.Status = types.StatusOK
	}

	payload, err := json.Marshal(out)
	if err != nil {
		log.Error().Err(err).Msg("marshal signature result")
		_ = msg.Nak()
		return
	}

	if err := p.Bus.Publish(ctx, bus.SubjectSigResult, payload); err != nil {
		log.Error().Err(err).Msg("publish signature result, will redeliver")
		_ = msg.Nak()
		return
	}

	if err := msg.Ack(); err != nil {
		log.Warn().Err(err).Msg("ack failed after successful publish")
	}
}

func (p *Pool) prove(task types.InputTask) (types.ProofArtifact, error) {
	if len(task.Approval) != types.SigBytes {
		return types.ProofArtifact{}, fmt.Errorf("%w: approval is %d bytes, want %d", errs.ErrWitnessBind, len(task.Approval), types.SigBytes)
	}
	if len(task.Validator) != types.PkHashBytes {
		return types.ProofArtifact{}, fmt.Errorf("%w: validator key is %d bytes, want %d", errs.ErrWitnessBind, len(task.Validator), types.PkHashBytes)
	}

	msgLenBits := len(task.Message) * 8
	shape := types.Shape{Kind: types.ShapeEd25519, MsgLenBits: msgLenBits}

	witness := circuits.NewEd25519Circuit(msgLenBits)
	for i, b := range task.Message {
		witness.Message[i] = uints.NewU8(b)
	}
	for i := 0; i < 32; i++ {
		witness.Signature[i] = uints.NewU8(task.Approval[i])
	}
	for i := 0; i < 32; i++ {
		witness.Signature[32+i] = uints.NewU8(task.Approval[32+i])
	}
	for i := 0; i < 32; i++ {
		witness.PublicKey[i] = uints.NewU8(task.Validator[i])
	}

	var rCompressed, aCompressed [32]byte
	copy(rCompressed[:], task.Approval[:32])
	copy(aCompressed[:], task.Validator)
	rx, _, err := circuits.DecompressEdwardsPoint(rCompressed)
	if err != nil {
		return types.ProofArtifact{}, fmt.Errorf("%w: decompress signature nonce R: %v", errs.ErrWitnessBind, err)
	}
	ax, _, err := circuits.DecompressEdwardsPoint(aCompressed)
	if err != nil {
		return types.ProofArtifact{}, fmt.Errorf("%w: decompress validator public key: %v", errs.ErrWitnessBind, err)
	}
	witness.RX = emulated.ValueOf[circuits.Curve25519Fp](rx)
	witness.AX = emulated.ValueOf[circuits.Curve25519Fp](ax)

	proof, err := p.Backend.Prove(shape, witness)
	if err != nil {
		return types.ProofArtifact{}, fmt.Errorf("%w: %v", errs.ErrProve, err)
	}
	return proof, nil
}
