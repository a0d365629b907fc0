package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/near-zk/finality-prover/internal/bus"
	"github.com/near-zk/finality-prover/internal/config"
	"github.com/near-zk/finality-prover/internal/httpapi"
	"github.com/near-zk/finality-prover/internal/nearrpc"
	"github.com/near-zk/finality-prover/internal/orchestrator"
	"github.com/near-zk/finality-prover/internal/proofbackend"
)

func main() {
	cfg := config.New(os.Args[1:]...)
	log := config.NewLogger("prover-server", cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	busClient, err := bus.Dial(ctx, cfg.NATSURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to dial bus")
	}
	defer busClient.Close()

	if err := busClient.EnsureStream(ctx, bus.SignaturesStream, []string{bus.SubjectProveSig, bus.SubjectSigResult}); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure signatures stream")
	}
	if err := busClient.EnsureStream(ctx, bus.ProvingStream, []string{bus.SubjectProveRandom, bus.SubjectProveEpoch, bus.SubjectRandomResult}); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure proving stream")
	}

	source := nearrpc.New(cfg.NEARRPCURL)
	backend := proofbackend.New()
	orch := orchestrator.New(source, backend, busClient, log, cfg.TaskTimeout, cfg.JobTimeout)

	srv := httpapi.New(orch, log)
	if err := httpapi.ListenAndServe(ctx, cfg.HTTPAddr, srv.Handler(), log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
