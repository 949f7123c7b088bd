package telegram

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/dx-spot-relay/internal/domain"
	"github.com/couchcryptid/dx-spot-relay/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const (
	testToken         = "123456:test-token"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

var testAlert = notify.Alert{
	Text: "DX spot: W1XYZ\nFreq: 14025.0 kHz (20m)",
	Spot: domain.Spot{Callsign: "W1XYZ"},
}

func testClient(baseURL string, chatIDs ...string) *Client {
	return &Client{
		token:      testToken,
		chatIDs:    chatIDs,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Inf, 1),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestClient_Send_Success(t *testing.T) {
	var mu sync.Mutex
	var got []sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/bot"+testToken+"/sendMessage", r.URL.Path)
		assert.Equal(t, contentTypeJSON, r.Header.Get(headerContentType))

		var req sendMessageRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		got = append(got, req)
		mu.Unlock()

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, "1001", "-2002")
	require.NoError(t, c.Send(context.Background(), testAlert))

	require.Len(t, got, 2)
	assert.Equal(t, "1001", got[0].ChatID)
	assert.Equal(t, "-2002", got[1].ChatID)
	assert.Equal(t, testAlert.Text, got[0].Text)
	assert.True(t, got[0].DisableWebPagePreview)
}

func TestClient_Send_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	err := testClient(srv.URL, "42").Send(context.Background(), testAlert)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "42", apiErr.ChatID)
	assert.Equal(t, "Bad Request: chat not found", apiErr.Description)
}

func TestClient_Send_OKFalseWith200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"description":"Forbidden: bot was blocked by the user"}`))
	}))
	defer srv.Close()

	err := testClient(srv.URL, "42").Send(context.Background(), testAlert)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Description, "blocked")
}

func TestClient_Send_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer srv.Close()

	err := testClient(srv.URL, "42").Send(context.Background(), testAlert)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
}

func TestClient_Send_PartialFailureStillTriesAllChats(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req sendMessageRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.ChatID == "bad" {
			_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	err := testClient(srv.URL, "bad", "good").Send(context.Background(), testAlert)

	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestClient_Send_ErrorHidesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	err := testClient(srv.URL, "42").Send(context.Background(), testAlert)

	require.Error(t, err)
	assert.False(t, strings.Contains(err.Error(), testToken), "error leaks bot token: %v", err)
}

func TestClient_Send_NoChats(t *testing.T) {
	err := testClient("http://unused").Send(context.Background(), testAlert)
	require.Error(t, err)
}

func TestClient_Send_RateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, "42")
	c.limiter = rate.NewLimiter(rate.Every(time.Hour), 1)
	require.NoError(t, c.Send(context.Background(), testAlert))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Send(ctx, testAlert)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_Send_RateLimitReportedAsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, "42")
	c.limiter = rate.NewLimiter(rate.Every(time.Hour), 1)
	require.NoError(t, c.Send(context.Background(), testAlert))

	start := time.Now()
	err := notify.Deliver(context.Background(), c, testAlert, time.Second)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "limiter gives up without waiting out the deadline")

	var nerr *notify.Error
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, notify.Timeout, nerr.Reason)
}

func TestNewClient_Limiter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	c := NewClient(testToken, []string{"1", "2"}, 20, time.Second, logger)
	assert.InDelta(t, 20.0/60.0, float64(c.limiter.Limit()), 1e-9)
	assert.Equal(t, 2, c.limiter.Burst())
	assert.Equal(t, defaultBaseURL, c.baseURL)

	unlimited := NewClient(testToken, []string{"1"}, 0, time.Second, logger)
	assert.Equal(t, rate.Inf, unlimited.limiter.Limit())
}
