// Package httpapi is the HTTP control plane (spec.md §4.I): health and
// readiness probes plus the two proving endpoints a deployment's own
// orchestration layer calls to kick off per-block or per-epoch
// finality proofs. Routes are registered on a gorilla/mux router;
// request counting and the /ready 409 behavior are
// ported from original_source/near_risc0's axum proving_server.rs,
// the only place in the whole corpus (pack or original source) that
// specifies this control plane's exact shape.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/near-zk/finality-prover/internal/orchestrator"
)

// Server wires the control-plane routes to an orchestrator.Orchestrator.
type Server struct {
	router         *mux.Router
	orch           *orchestrator.Orchestrator
	log            zerolog.Logger
	activeRequests int64
}

func New(orch *orchestrator.Orchestrator, log zerolog.Logger) *Server {
	s := &Server{orch: orch, log: log}
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/epoch/proof", s.handleEpochProof).Methods(http.MethodPost)
	r.HandleFunc("/random/proof", s.handleRandomProof).Methods(http.MethodPost)
	r.Use(s.countRequestsMiddleware)
	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// countRequestsMiddleware tracks in-flight requests so /ready can
// report 409 while this process is mid-proof, mirroring the Rust
// server's active_requests atomic counter. /ready itself is excluded
// from the count, or it would always observe at least itself.
func (s *Server) countRequestsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ready" {
			next.ServeHTTP(w, r)
			return
		}
		atomic.AddInt64(&s.activeRequests, 1)
		defer atomic.AddInt64(&s.activeRequests, -1)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if atomic.LoadInt64(&s.activeRequests) > 0 {
		w.WriteHeader(http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleEpochProof(w http.ResponseWriter, r *http.Request) {
	s.handleProof(w, r, orchestrator.JobKindEpoch)
}

func (s *Server) handleRandomProof(w http.ResponseWriter, r *http.Request) {
	s.handleProof(w, r, orchestrator.JobKindBlock)
}

// provingTaskRequest is the JSON body both endpoints accept: the target
// block hash only. The epoch endpoint takes the same body and has no
// separate epoch-boundary field.
type provingTaskRequest struct {
	BlockHash string `json:"block_hash"`
}

func (s *Server) handleProof(w http.ResponseWriter, r *http.Request, kind orchestrator.JobKind) {
	var req provingTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.log.Error().Err(err).Msg("failed to deserialize request object")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.log.Info().Str("kind", string(kind)).Msg("start proving")
	result, err := s.orch.RunJob(r.Context(), orchestrator.JobRequest{Kind: kind, BlockHash: req.BlockHash})
	if err != nil {
		s.log.Error().Err(err).Msg("failed to generate proof")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	s.log.Info().Str("kind", string(kind)).Msg("generated proof output")

	jsonResponse, err := json.Marshal(result)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to serialize response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(jsonResponse); err != nil {
		s.log.Error().Err(err).Msg("could not write response body")
	}
}

// ListenAndServe starts the HTTP server and blocks until ctx is
// canceled, at which point it shuts down gracefully.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, log zerolog.Logger) error {
	srv := &http.Server{Addr: addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("server running")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listen: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
