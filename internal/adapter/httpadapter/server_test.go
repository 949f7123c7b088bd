package httpadapter_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/dx-spot-relay/internal/adapter/httpadapter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

func newTestServer(readyErr error) *httpadapter.Server {
	return newTestServerAt(":0", readyErr)
}

func newTestServerAt(addr string, readyErr error) *httpadapter.Server {
	reg := prometheus.NewRegistry()
	lines := prometheus.NewCounter(prometheus.CounterOpts{Namespace: "dxrelay", Name: "lines_read_total"})
	reg.MustRegister(lines)
	lines.Add(3)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return httpadapter.NewServer(addr, &mockReadiness{err: readyErr}, reg, logger)
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(errors.New("feed is connecting"))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenStreaming(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenFeedDown(t *testing.T) {
	srv := newTestServer(errors.New("feed is disconnected"))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "feed is disconnected", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dxrelay_lines_read_total 3")
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServeOnBoundListener(t *testing.T) {
	srv := newTestServerAt("127.0.0.1:0", errors.New("feed is connecting"))
	require.NoError(t, srv.Listen())
	assert.NotEqual(t, "127.0.0.1:0", srv.Addr())

	served := make(chan error, 1)
	go func() { served <- srv.Serve() }()

	resp, err := http.Get("http://" + srv.Addr() + "/readyz")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, string(body), "feed is connecting")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.ErrorIs(t, <-served, http.ErrServerClosed)
}

func TestListenFailsOnBusyAddress(t *testing.T) {
	first := newTestServerAt("127.0.0.1:0", nil)
	require.NoError(t, first.Listen())
	go func() { _ = first.Serve() }()
	t.Cleanup(func() { _ = first.Shutdown(context.Background()) })

	second := newTestServerAt(first.Addr(), nil)
	err := second.Listen()
	require.Error(t, err)
	assert.Contains(t, err.Error(), first.Addr())
}
