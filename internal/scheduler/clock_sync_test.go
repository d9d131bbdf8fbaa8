package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taoyao-code/ipixel-server/internal/service"
)

type fakeEncoder struct {
	targets []service.Target
	reqs    []service.Request
	failOn  string
	queued  bool
}

func (f *fakeEncoder) Encode(_ context.Context, target service.Target, req service.Request) (*service.Result, error) {
	f.targets = append(f.targets, target)
	f.reqs = append(f.reqs, req)
	if f.failOn != "" && target.Device == f.failOn {
		return nil, errors.New("queue down")
	}
	return &service.Result{Name: req.CommandName(), Queued: f.queued}, nil
}

func newTestSync(t *testing.T, enc Encoder, devices []string) *ClockSync {
	t.Helper()
	s, err := NewClockSync(enc, "@every 1h", devices, zap.NewNop())
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2024, 3, 1, 9, 8, 7, 0, time.UTC) }
	return s
}

func TestClockSync_Sync(t *testing.T) {
	enc := &fakeEncoder{failOn: "bad", queued: true}
	s := newTestSync(t, enc, []string{"AA:01", "bad", "AA:02"})

	assert.Equal(t, 2, s.Sync(context.Background()))
	require.Len(t, enc.reqs, 3)

	req, ok := enc.reqs[0].(service.TimeRequest)
	require.True(t, ok)
	assert.Equal(t, 9, *req.Hour)
	assert.Equal(t, 8, *req.Minute)
	assert.Equal(t, 7, *req.Second)
	for _, target := range enc.targets {
		require.NotNil(t, target.Enqueue)
		assert.True(t, *target.Enqueue)
	}
	assert.Equal(t, "AA:02", enc.targets[2].Device)
}

func TestClockSync_NoDevices(t *testing.T) {
	enc := &fakeEncoder{queued: true}
	s := newTestSync(t, enc, nil)

	assert.Equal(t, 1, s.Sync(context.Background()))
	assert.Equal(t, "", enc.targets[0].Device)
}

func TestClockSync_NotQueuedCountsAsFailure(t *testing.T) {
	enc := &fakeEncoder{queued: false}
	s := newTestSync(t, enc, []string{"AA:01"})
	assert.Equal(t, 0, s.Sync(context.Background()))
}

func TestNewClockSync_InvalidSpec(t *testing.T) {
	_, err := NewClockSync(&fakeEncoder{}, "not a cron", nil, nil)
	assert.Error(t, err)
}

func TestClockSync_StartStops(t *testing.T) {
	s := newTestSync(t, &fakeEncoder{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
