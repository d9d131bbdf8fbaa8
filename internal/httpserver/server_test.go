package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	cfgpkg "github.com/taoyao-code/ipixel-server/internal/config"
	appmetrics "github.com/taoyao-code/ipixel-server/internal/metrics"
)

func newTestServer(ready bool, pprofOn bool) *Server {
	gin.SetMode(gin.TestMode)
	cfg := cfgpkg.HTTPConfig{
		Addr:         ":0",
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		Pprof:        cfgpkg.HTTPPprof{Enable: pprofOn},
	}
	reg := appmetrics.NewRegistry()
	return New(cfg, "/metrics", appmetrics.Handler(reg), func() bool { return ready }, nil)
}

func serve(s *Server, method, path string, header http.Header) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	for k, vv := range header {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	s.Engine().ServeHTTP(rr, req)
	return rr
}

func TestHealthzReadyzMetrics(t *testing.T) {
	srv := newTestServer(true, false)

	tests := []struct {
		path string
		code int
	}{
		{"/healthz", http.StatusOK},
		{"/readyz", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/debug/pprof/", http.StatusNotFound},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, serve(srv, http.MethodGet, tt.path, nil).Code, tt.path)
	}
}

func TestReadyzNotReady(t *testing.T) {
	srv := newTestServer(false, false)
	rr := serve(srv, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "not-ready", rr.Body.String())
}

func TestRequestID(t *testing.T) {
	srv := newTestServer(true, false)

	rr := serve(srv, http.MethodGet, "/healthz", nil)
	assert.Len(t, rr.Header().Get(RequestIDHeader), 36)

	rr = serve(srv, http.MethodGet, "/healthz", http.Header{RequestIDHeader: {"trace-1"}})
	assert.Equal(t, "trace-1", rr.Header().Get(RequestIDHeader))
}

func TestPprofEnabled(t *testing.T) {
	srv := newTestServer(true, true)
	assert.Equal(t, http.StatusOK, serve(srv, http.MethodGet, "/debug/pprof/", nil).Code)
}
