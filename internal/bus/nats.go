package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/near-zk/finality-prover/internal/errs"
)

// NATSClient is the production BusClient, backed by NATS JetStream
// work-queue streams (spec.md §6): durable consumers, explicit
// ack/nak, and max_ack_pending backpressure so a slow worker can't be
// handed more in-flight signature tasks than it can chew through.
//
// This is the one capability in the whole module with no grounding
// source in the example pack — none of the retrieved repos talk to a
// message bus — so nats.go's own documented JetStream client usage is
// the grounding instead (see SPEC_FULL.md §4's domain-stack note).
type NATSClient struct {
	conn *nats.Conn
	js   jetstream.JetStream
	log  zerolog.Logger
}

// Dial connects to url with a reconnect backoff (100ms * attempt,
// capped at 8s), matching spec.md §6's bus-resilience requirements.
// The initial connect is a single attempt; the backoff applies only to
// reconnects after a connection was established.
func Dial(ctx context.Context, url string, log zerolog.Logger) (*NATSClient, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(100*time.Millisecond),
		nats.CustomReconnectDelay(func(attempts int) time.Duration {
			d := time.Duration(attempts) * 100 * time.Millisecond
			if d > 8*time.Second {
				d = 8 * time.Second
			}
			return d
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("bus disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("bus reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", errs.ErrBusDisconnected, url, err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("construct jetstream context: %w", err)
	}

	return &NATSClient{conn: conn, js: js, log: log}, nil
}

// EnsureStream creates stream (work-queue retention, 5s inactivity
// threshold) if it does not already exist, binding it to subjects.
// Called once at startup by cmd/prover-server before it publishes or
// subscribes; cmd/prove-worker and cmd/queue-processor do not call it.
func (c *NATSClient) EnsureStream(ctx context.Context, stream string, subjects []string) error {
	_, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       stream,
		Subjects:   subjects,
		Retention:  jetstream.WorkQueuePolicy,
		MaxAge:     0,
		Storage:    jetstream.FileStorage,
		InactiveThreshold: 5 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("ensure stream %s: %w", stream, err)
	}
	return nil
}

func (c *NATSClient) Publish(ctx context.Context, subject string, payload []byte) error {
	if _, err := c.js.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("%w: publish %s: %v", errs.ErrBusDisconnected, subject, err)
	}
	return nil
}

// Subscribe creates (or reuses) a durable work-queue consumer named
// durable on subject's stream and streams deliveries onto ch until ctx
// is canceled. max_ack_pending bounds in-flight deliveries per
// spec.md §6, so a burst of queued tasks never floods one worker.
func (c *NATSClient) Subscribe(ctx context.Context, subject, durable string, ch chan<- Message) error {
	stream, err := c.streamForSubject(subject)
	if err != nil {
		return err
	}

	cons, err := c.js.CreateOrUpdateConsumer(ctx, stream, jetstream.ConsumerConfig{
		Durable:       durable,
		AckPolicy:     jetstream.AckExplicitPolicy,
		FilterSubject: subject,
		MaxAckPending: MaxAckPending,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s/%s: %w", stream, durable, err)
	}

	consumeCtx, err := cons.Consume(func(msg jetstream.Msg) {
		select {
		case ch <- Message{
			Subject: msg.Subject(),
			Data:    msg.Data(),
			Ack:     msg.Ack,
			Nak:     msg.Nak,
			Term:    msg.Term,
		}:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return fmt.Errorf("consume %s/%s: %w", stream, durable, err)
	}

	go func() {
		<-ctx.Done()
		consumeCtx.Stop()
	}()
	return nil
}

func (c *NATSClient) streamForSubject(subject string) (string, error) {
	switch subject {
	case SubjectProveSig, SubjectSigResult:
		return SignaturesStream, nil
	case SubjectProveRandom, SubjectProveEpoch, SubjectRandomResult:
		return ProvingStream, nil
	default:
		return "", fmt.Errorf("subject %s is not bound to a known stream", subject)
	}
}

func (c *NATSClient) Close() error {
	c.conn.Close()
	return nil
}
