package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFakePublishDeliversToSubscriber(t *testing.T) {
	f := NewFake()
	ch := make(chan Message, 1)
	require.NoError(t, f.Subscribe(context.Background(), SubjectProveSig, DurableConsumerName, ch))

	require.NoError(t, f.Publish(context.Background(), SubjectProveSig, []byte("task-1")))

	select {
	case msg := <-ch:
		require.Equal(t, SubjectProveSig, msg.Subject)
		require.Equal(t, []byte("task-1"), msg.Data)
		require.NoError(t, msg.Ack())
	case <-time.After(time.Second):
		t.Fatal("expected delivery")
	}

	require.Len(t, f.Sent, 1)
}
