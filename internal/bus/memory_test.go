package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryBus_Broadcast(t *testing.T) {
	b := NewMemoryBus(zap.NewNop())
	defer b.Close()

	sub1, err := b.Subscribe(context.Background())
	require.NoError(t, err)
	defer sub1.Close()
	sub2, err := b.Subscribe(context.Background())
	require.NoError(t, err)
	defer sub2.Close()

	msg, err := NewMessage("t", map[string]string{"k": "v"})
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), msg))

	// Every subscriber sees every message.
	got1 := <-sub1.C()
	got2 := <-sub2.C()
	assert.Equal(t, "t", got1.Topic)
	assert.Equal(t, "t", got2.Topic)
}

func TestMemoryBus_CloseSubscription(t *testing.T) {
	b := NewMemoryBus(zap.NewNop())
	defer b.Close()

	sub, err := b.Subscribe(context.Background())
	require.NoError(t, err)

	sub.Close()
	// Close is idempotent.
	sub.Close()

	_, ok := <-sub.C()
	assert.False(t, ok)

	// Publishing after a subscriber left must not fail.
	msg, _ := NewMessage("t", struct{}{})
	assert.NoError(t, b.Publish(context.Background(), msg))
}

func TestMemoryBus_ClosedBus(t *testing.T) {
	b := NewMemoryBus(zap.NewNop())
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	msg, _ := NewMessage("t", struct{}{})
	assert.ErrorIs(t, b.Publish(context.Background(), msg), ErrBusClosed)
	_, err := b.Subscribe(context.Background())
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestMemoryBus_FullQueueDoesNotBlock(t *testing.T) {
	b := NewMemoryBus(zap.NewNop())
	defer b.Close()

	sub, err := b.Subscribe(context.Background())
	require.NoError(t, err)
	defer sub.Close()

	msg, _ := NewMessage("t", struct{}{})
	for i := 0; i < subscriberQueueSize+10; i++ {
		assert.NoError(t, b.Publish(context.Background(), msg))
	}
}

func TestWaitFor_Match(t *testing.T) {
	b := NewMemoryBus(zap.NewNop())
	defer b.Close()

	sub, err := b.Subscribe(context.Background())
	require.NoError(t, err)
	defer sub.Close()

	go func() {
		noise, _ := NewMessage("noise", struct{}{})
		_ = b.Publish(context.Background(), noise)
		wanted, _ := NewMessage("wanted", struct{}{})
		_ = b.Publish(context.Background(), wanted)
	}()

	msg, err := WaitFor(context.Background(), sub, time.Second, func(m *Message) bool {
		return m.Topic == "wanted"
	})
	require.NoError(t, err)
	assert.Equal(t, "wanted", msg.Topic)
}

func TestWaitFor_Timeout(t *testing.T) {
	b := NewMemoryBus(zap.NewNop())
	defer b.Close()

	sub, err := b.Subscribe(context.Background())
	require.NoError(t, err)
	defer sub.Close()

	start := time.Now()
	_, err = WaitFor(context.Background(), sub, 50*time.Millisecond, func(*Message) bool { return true })
	assert.ErrorIs(t, err, ErrWaitTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestWaitFor_ContextCancel(t *testing.T) {
	b := NewMemoryBus(zap.NewNop())
	defer b.Close()

	sub, err := b.Subscribe(context.Background())
	require.NoError(t, err)
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = WaitFor(ctx, sub, time.Second, func(*Message) bool { return true })
	assert.ErrorIs(t, err, context.Canceled)
}

// Two listeners with distinct correlation tokens: a result tagged for one
// must never resolve the other.
func TestWaitFor_CorrelationIsolation(t *testing.T) {
	b := NewMemoryBus(zap.NewNop())
	defer b.Close()

	type result struct {
		SessionID string `json:"sessionId"`
	}

	subA, err := b.Subscribe(context.Background())
	require.NoError(t, err)
	defer subA.Close()
	subB, err := b.Subscribe(context.Background())
	require.NoError(t, err)
	defer subB.Close()

	matchFor := func(id string) func(*Message) bool {
		return func(m *Message) bool {
			var r result
			if m.Topic != "icons.result" || m.Decode(&r) != nil {
				return false
			}
			return r.SessionID == id
		}
	}

	msg, err := NewMessage("icons.result", result{SessionID: "session-a"})
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), msg))

	got, err := WaitFor(context.Background(), subA, time.Second, matchFor("session-a"))
	require.NoError(t, err)
	assert.NotNil(t, got)

	// Listener B stays pending and times out.
	_, err = WaitFor(context.Background(), subB, 50*time.Millisecond, matchFor("session-b"))
	assert.ErrorIs(t, err, ErrWaitTimeout)
}
