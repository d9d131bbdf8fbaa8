package bridge

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignHMAC(t *testing.T) {
	got := SignHMAC("secret", "METHOD\n/path\n1700000000\nnonce\nbodyhash")
	assert.Len(t, got, 64)
	assert.Equal(t, got, SignHMAC("secret", "METHOD\n/path\n1700000000\nnonce\nbodyhash"))
	assert.NotEqual(t, got, SignHMAC("other", "METHOD\n/path\n1700000000\nnonce\nbodyhash"))
}

func TestCircuitBreaker_Transitions(t *testing.T) {
	now := time.Unix(1700000000, 0)
	cb := NewCircuitBreaker(2, time.Minute)
	cb.now = func() time.Time { return now }

	var changes []string
	cb.OnStateChange(func(from, to State) { changes = append(changes, from.String()+"->"+to.String()) })

	boom := errors.New("boom")
	fail := func() error { return boom }
	ok := func() error { return nil }

	assert.ErrorIs(t, cb.Call(fail), boom)
	assert.NoError(t, cb.Call(ok)) // 成功重置连续失败计数
	assert.ErrorIs(t, cb.Call(fail), boom)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Call(fail), boom)
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, int64(1), cb.TripCount())

	assert.ErrorIs(t, cb.Call(ok), ErrCircuitOpen)

	// 超时后半开，两次成功恢复
	now = now.Add(2 * time.Minute)
	assert.NoError(t, cb.Call(ok))
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.NoError(t, cb.Call(ok))
	assert.Equal(t, StateClosed, cb.State())

	assert.Equal(t, []string{"closed->open", "open->half_open", "half_open->closed"}, changes)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Unix(1700000000, 0)
	cb := NewCircuitBreaker(1, time.Second)
	cb.now = func() time.Time { return now }

	_ = cb.Call(func() error { return errors.New("x") })
	require.Equal(t, StateOpen, cb.State())

	now = now.Add(2 * time.Second)
	_ = cb.Call(func() error { return errors.New("x") })
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, int64(2), cb.TripCount())
}

func newTestClient(t *testing.T, url string, retries, threshold int) *Client {
	t.Helper()
	c, err := NewClient(Config{
		Endpoint:         url,
		APIKey:           "key",
		Secret:           "secret",
		Retries:          retries,
		BreakerThreshold: threshold,
		BreakerTimeout:   time.Hour,
	}, nil)
	require.NoError(t, err)
	c.backoff = []time.Duration{time.Millisecond}
	return c
}

func TestClient_SendSigned(t *testing.T) {
	var got SendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		ts, _ := strconv.ParseInt(r.Header.Get("X-Timestamp"), 10, 64)
		if r.Header.Get("X-Api-Key") != "key" ||
			!Verify("secret", r.Method, r.URL.Path, ts, r.Header.Get("X-Nonce"), body, r.Header.Get("X-Signature")) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL+"/ble/send", 0, 3)
	cmd := []byte{0x04, 0x00, 0x03, 0x80}
	require.NoError(t, c.Send(context.Background(), "AA:BB", cmd))
	assert.Equal(t, "AA:BB", got.Device)
	assert.Equal(t, hex.EncodeToString(cmd), got.Command)
	assert.Equal(t, 4, got.Size)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 3, 3)
	require.NoError(t, c.Send(context.Background(), "", []byte{1}))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_RejectionDoesNotTrip(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 3, 1)
	for i := 0; i < 3; i++ {
		err := c.Send(context.Background(), "", []byte{1})
		var rej *RejectedError
		require.ErrorAs(t, err, &rej)
		assert.Equal(t, http.StatusBadRequest, rej.StatusCode)
	}
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, StateClosed, c.Breaker().State())
}

func TestClient_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0, 2)
	assert.Error(t, c.Send(context.Background(), "", []byte{1}))
	assert.Error(t, c.Send(context.Background(), "", []byte{1}))
	assert.ErrorIs(t, c.Send(context.Background(), "", []byte{1}), ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
}

func TestNewClient_InvalidEndpoint(t *testing.T) {
	_, err := NewClient(Config{Endpoint: "not a url"}, nil)
	assert.Error(t, err)
}
