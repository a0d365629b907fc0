package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/near-zk/finality-prover/internal/bus"
	"github.com/near-zk/finality-prover/internal/config"
	"github.com/near-zk/finality-prover/internal/proofbackend"
	"github.com/near-zk/finality-prover/internal/worker"
)

func main() {
	cfg := config.New(os.Args[1:]...)
	log := config.NewLogger("prove-worker", cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	busClient, err := bus.Dial(ctx, cfg.NATSURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to dial bus")
	}
	defer busClient.Close()

	backend := proofbackend.New()
	pool := worker.New(busClient, backend, log, cfg.WorkerPoolSize)

	log.Info().Int("workers", cfg.WorkerPoolSize).Msg("prove-worker starting")
	if err := pool.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("worker pool stopped")
	}
}
