// queue-processor drains PROVE_RANDOM and PROVE_EPOCH tasks off the
// proving stream and runs a full orchestrator job for each, publishing
// the result to RANDOM_PROVING_RESULT. This is the bus-driven sibling
// of cmd/prover-server's HTTP-driven /epoch/proof and /random/proof
// routes — same orchestrator, different trigger.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/near-zk/finality-prover/internal/bus"
	"github.com/near-zk/finality-prover/internal/config"
	"github.com/near-zk/finality-prover/internal/nearrpc"
	"github.com/near-zk/finality-prover/internal/orchestrator"
	"github.com/near-zk/finality-prover/internal/proofbackend"
)

type provingTask struct {
	Kind      orchestrator.JobKind `json:"kind"`
	BlockHash string               `json:"block_hash"`
}

func main() {
	cfg := config.New(os.Args[1:]...)
	log := config.NewLogger("queue-processor", cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	busClient, err := bus.Dial(ctx, cfg.NATSURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to dial bus")
	}
	defer busClient.Close()

	source := nearrpc.New(cfg.NEARRPCURL)
	backend := proofbackend.New()
	orch := orchestrator.New(source, backend, busClient, log, cfg.TaskTimeout, cfg.JobTimeout)

	randomCh := make(chan bus.Message, cfg.DispatchQueueSize)
	epochCh := make(chan bus.Message, cfg.DispatchQueueSize)
	if err := busClient.Subscribe(ctx, bus.SubjectProveRandom, bus.DurableConsumerName, randomCh); err != nil {
		log.Fatal().Err(err).Msg("subscribe PROVE_RANDOM")
	}
	if err := busClient.Subscribe(ctx, bus.SubjectProveEpoch, bus.DurableConsumerName, epochCh); err != nil {
		log.Fatal().Err(err).Msg("subscribe PROVE_EPOCH")
	}

	log.Info().Msg("queue-processor starting")
	for {
		select {
		case msg := <-randomCh:
			handleTask(ctx, orch, busClient, log, msg, orchestrator.JobKindBlock)
		case msg := <-epochCh:
			handleTask(ctx, orch, busClient, log, msg, orchestrator.JobKindEpoch)
		case <-ctx.Done():
			return
		}
	}
}

func handleTask(ctx context.Context, orch *orchestrator.Orchestrator, busClient bus.BusClient, log zerolog.Logger, msg bus.Message, kind orchestrator.JobKind) {
	var task provingTask
	if err := json.Unmarshal(msg.Data, &task); err != nil {
		log.Error().Err(err).Msg("malformed proving task, terminating delivery")
		_ = msg.Term()
		return
	}

	result, err := orch.RunJob(ctx, orchestrator.JobRequest{Kind: kind, BlockHash: task.BlockHash})
	if err != nil {
		log.Error().Err(err).Str("block_hash", task.BlockHash).Msg("job failed")
		_ = msg.Nak()
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		log.Error().Err(err).Msg("marshal job result")
		_ = msg.Nak()
		return
	}
	if err := busClient.Publish(ctx, bus.SubjectRandomResult, payload); err != nil {
		log.Error().Err(err).Msg("publish job result")
		_ = msg.Nak()
		return
	}
	_ = msg.Ack()
}
