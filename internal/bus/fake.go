package bus

import (
	"context"
	"sync"
)

// Fake is an in-process BusClient used by orchestrator/worker tests so
// they never need a live NATS server, per spec.md §9's "never a
// process-global singleton" note extended to the bus: tests construct
// their own Fake rather than reaching for a shared fixture.
type Fake struct {
	mu   sync.Mutex
	subs map[string][]chan<- Message
	Sent []FakeMessage
}

type FakeMessage struct {
	Subject string
	Data    []byte
}

func NewFake() *Fake {
	return &Fake{subs: make(map[string][]chan<- Message)}
}

func (f *Fake) Publish(ctx context.Context, subject string, payload []byte) error {
	f.mu.Lock()
	f.Sent = append(f.Sent, FakeMessage{Subject: subject, Data: payload})
	subs := append([]chan<- Message(nil), f.subs[subject]...)
	f.mu.Unlock()

	msg := Message{
		Subject: subject,
		Data:    payload,
		Ack:     func() error { return nil },
		Nak:     func() error { return nil },
		Term:    func() error { return nil },
	}
	for _, ch := range subs {
		select {
		case ch <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribe registers ch for subject; durable is accepted for
// interface parity but unused since a single process has no competing
// consumer groups to durably track.
func (f *Fake) Subscribe(ctx context.Context, subject, durable string, ch chan<- Message) error {
	f.mu.Lock()
	f.subs[subject] = append(f.subs[subject], ch)
	f.mu.Unlock()
	return nil
}

func (f *Fake) Close() error { return nil }
