package outbound

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	redisstorage "github.com/taoyao-code/ipixel-server/internal/storage/redis"
)

// memQueue 内存队列，按入队顺序出队
type memQueue struct {
	processErr error
	pending    []*redisstorage.OutboundMessage
	processing map[string]bool
	succeeded  []string
	dead       []string
}

func newMemQueue(msgs ...*redisstorage.OutboundMessage) *memQueue {
	return &memQueue{pending: msgs, processing: map[string]bool{}}
}

func (q *memQueue) Dequeue(context.Context) (*redisstorage.OutboundMessage, error) {
	if len(q.pending) == 0 {
		return nil, nil
	}
	m := q.pending[0]
	q.pending = q.pending[1:]
	return m, nil
}

func (q *memQueue) MarkProcessing(_ context.Context, m *redisstorage.OutboundMessage) error {
	if q.processErr != nil {
		return q.processErr
	}
	q.processing[m.ID] = true
	return nil
}

func (q *memQueue) MarkSuccess(_ context.Context, m *redisstorage.OutboundMessage) error {
	delete(q.processing, m.ID)
	q.succeeded = append(q.succeeded, m.ID)
	return nil
}

func (q *memQueue) MarkFailed(_ context.Context, m *redisstorage.OutboundMessage, _ string) error {
	delete(q.processing, m.ID)
	m.Retries++
	if m.Retries < m.MaxRetry {
		q.pending = append(q.pending, m)
		return nil
	}
	q.dead = append(q.dead, m.ID)
	return nil
}

func (q *memQueue) GetPendingCount(context.Context) (int64, error) {
	return int64(len(q.pending)), nil
}

func TestDispatcher_SendsInOrder(t *testing.T) {
	q := newMemQueue(
		&redisstorage.OutboundMessage{ID: "a", Device: "d1", Command: []byte{4, 0, 3, 0x80}},
		&redisstorage.OutboundMessage{ID: "b", Device: "d2", Command: []byte{5, 0, 3, 0x0a}},
	)
	var sent []string
	d := NewDispatcher(q, SenderFunc(func(_ context.Context, device string, _ []byte) error {
		sent = append(sent, device)
		return nil
	}), 10, nil)

	ctx := context.Background()
	assert.True(t, d.processOne(ctx))
	assert.True(t, d.processOne(ctx))
	assert.False(t, d.processOne(ctx))

	assert.Equal(t, []string{"d1", "d2"}, sent)
	assert.Equal(t, []string{"a", "b"}, q.succeeded)
	assert.Equal(t, DispatcherStats{Sent: 2}, d.Stats())
}

func TestDispatcher_RetryThenDead(t *testing.T) {
	q := newMemQueue(&redisstorage.OutboundMessage{ID: "x", MaxRetry: 2})
	d := NewDispatcher(q, SenderFunc(func(context.Context, string, []byte) error {
		return errors.New("gatt write failed")
	}), 10, nil)

	ctx := context.Background()
	require.True(t, d.processOne(ctx))
	require.True(t, d.processOne(ctx))
	assert.False(t, d.processOne(ctx))

	assert.Equal(t, []string{"x"}, q.dead)
	assert.Equal(t, DispatcherStats{Failed: 2, Retried: 1, DeadCount: 1}, d.Stats())
}

func TestDispatcher_MarkProcessingFailureRequeues(t *testing.T) {
	q := newMemQueue(&redisstorage.OutboundMessage{ID: "x", MaxRetry: 2})
	q.processErr = errors.New("redis timeout")
	sends := 0
	d := NewDispatcher(q, SenderFunc(func(context.Context, string, []byte) error {
		sends++
		return nil
	}), 10, nil)

	ctx := context.Background()
	require.True(t, d.processOne(ctx))
	require.Len(t, q.pending, 1, "message goes back to the queue")
	assert.Equal(t, 1, q.pending[0].Retries)

	require.True(t, d.processOne(ctx))
	assert.Equal(t, []string{"x"}, q.dead)
	assert.Zero(t, sends)
	assert.Equal(t, DispatcherStats{Failed: 2, Retried: 1, DeadCount: 1}, d.Stats())
}

func TestDispatcher_StopTwice(t *testing.T) {
	d := NewDispatcher(newMemQueue(), SenderFunc(func(context.Context, string, []byte) error { return nil }), 10, nil)
	assert.NotPanics(t, func() {
		d.Stop()
		d.Stop()
	})
}

func TestDispatcher_StartStopReportsDepth(t *testing.T) {
	q := newMemQueue(&redisstorage.OutboundMessage{ID: "a"})
	d := NewDispatcher(q, SenderFunc(func(context.Context, string, []byte) error { return nil }), 1, nil)

	depths := make(chan int64, 16)
	d.OnDepth(func(n int64) {
		select {
		case depths <- n:
		default:
		}
	})

	done := make(chan struct{})
	go func() {
		d.Start(context.Background())
		close(done)
	}()
	assert.Equal(t, int64(0), <-depths)
	d.Stop()
	<-done
}

func TestLogSender(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	err := LogSender(zap.New(core)).Send(context.Background(), "d1", []byte{0xab})
	require.NoError(t, err)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "ab", logs.All()[0].ContextMap()["hex"])
}
