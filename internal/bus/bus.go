// Package bus defines the message-bus capability the orchestrator and
// workers use to hand proving tasks back and forth (spec.md §4.J,
// §6's stream/subject layout). BusClient is a small interface — not a
// process-global singleton, per spec.md §9 — so every component that
// needs the bus takes one as a constructor argument; tests inject
// NewFake instead of a real NATS connection.
package bus

import "context"

// Message is one delivered bus message: a decoded payload plus the
// Ack/Nak/Term handles the caller needs to close out the JetStream
// delivery. Subject is carried so a single consumer can fan out by
// subject (PROVE_RANDOM vs PROVE_EPOCH share one stream in spec.md §6).
type Message struct {
	Subject string
	Data    []byte
	Ack     func() error
	Nak     func() error
	Term    func() error
}

// BusClient is the capability the orchestrator and workers depend on.
// Publish fires and forgets (at-least-once delivery is the stream's
// job, not the publisher's); Subscribe delivers messages on ch until
// ctx is canceled or the subscription errors.
type BusClient interface {
	Publish(ctx context.Context, subject string, payload []byte) error
	Subscribe(ctx context.Context, subject, durable string, ch chan<- Message) error
	Close() error
}

// Stream and subject names, fixed by spec.md §6 so every deployment of
// this system talks to the same JetStream topology regardless of
// which process (prover-server, prove-worker, queue-processor) is
// running.
const (
	SignaturesStream   = "SIGNATURES_STREAM"
	SubjectProveSig    = "PROVE_SIGNATURE"
	SubjectSigResult   = "PROCESS_SIGNATURE_RESULT"
	ProvingStream      = "PROVING_STREAM"
	SubjectProveRandom = "PROVE_RANDOM"
	SubjectProveEpoch  = "PROVE_EPOCH"
	SubjectRandomResult = "RANDOM_PROVING_RESULT"

	DurableConsumerName = "consumer"
	MaxAckPending       = 1000
)
