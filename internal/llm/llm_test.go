package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DhavalSuthar-24/miow-context-master/internal/config"
	"github.com/DhavalSuthar-24/miow-context-master/internal/mioerr"
	"github.com/DhavalSuthar-24/miow-context-master/internal/slogutil"
)

func testClient(t *testing.T, url string, attempts int) *Client {
	t.Helper()
	t.Setenv("MIOW_TEST_API_KEY", "test-key")
	c, err := NewClient(
		config.ProviderConfig{BaseURL: url, Model: "test-model", APIKeyEnv: "MIOW_TEST_API_KEY", TimeoutMs: 2000},
		config.RetryConfig{MaxAttempts: attempts, InitialBackoffMs: 1},
		slogutil.NewDiscardLogger())
	require.NoError(t, err)
	return c
}

func TestNewClientWithoutKeyIsUnavailable(t *testing.T) {
	t.Setenv("MIOW_MISSING_KEY", "")
	_, err := NewClient(
		config.ProviderConfig{APIKeyEnv: "MIOW_MISSING_KEY"},
		config.RetryConfig{MaxAttempts: 1, InitialBackoffMs: 1},
		slogutil.NewDiscardLogger())
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestEmbedParsesVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer srv.Close()

	vec, err := testClient(t, srv.URL, 1).Embed(context.Background(), "login form")
	require.NoError(t, err)
	require.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestCompleteParsesContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"plan text"}}]}`))
	}))
	defer srv.Close()

	text, err := testClient(t, srv.URL, 1).Complete(context.Background(), "plan this", 512)
	require.NoError(t, err)
	require.Equal(t, "plan text", text)
}

func TestRetriesTransientThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"data":[{"embedding":[1]}]}`))
	}))
	defer srv.Close()

	vec, err := testClient(t, srv.URL, 3).Embed(context.Background(), "x")
	require.NoError(t, err)
	require.Equal(t, []float32{1}, vec)
	require.Equal(t, int32(3), calls.Load())
}

func TestExhaustedRetriesSurfaceUpstreamError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL, 2).Embed(context.Background(), "x")
	require.True(t, mioerr.Is(err, mioerr.CodeUpstream))
	require.Equal(t, int32(2), calls.Load())
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL, 3).Embed(context.Background(), "x")
	require.Error(t, err)
	require.Equal(t, int32(1), calls.Load())
}

func TestWithRetryRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := withRetry(ctx, slogutil.NewDiscardLogger(), 3, 10*time.Millisecond, "test", func() error {
		return markTransient(errors.New("flaky"))
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestNoopEmbedder(t *testing.T) {
	_, err := NoopEmbedder{}.Embed(context.Background(), "x")
	require.ErrorIs(t, err, ErrUnavailable)
}
