package capture

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ajitpratap0/brazesync/pkg/braze"
	"github.com/ajitpratap0/brazesync/pkg/clients"
	"github.com/ajitpratap0/brazesync/pkg/compression"
	"github.com/ajitpratap0/brazesync/pkg/errors"
	jsonpool "github.com/ajitpratap0/brazesync/pkg/json"
)

func testClient(t *testing.T, serverURL string, compress bool) *Client {
	t.Helper()
	httpCfg := clients.DefaultHTTPConfig()
	httpCfg.EnableHTTP2 = false
	httpCfg.RateLimit = 0
	httpCfg.CircuitBreakerEnabled = false

	client, err := NewClient(Config{
		URL:              serverURL,
		APIKey:           "capture-key",
		HTTP:             httpCfg,
		CompressRequests: compress,
		CompressMinBytes: 1,
	}, zap.NewNop())
	require.NoError(t, err)
	client.clock = braze.FixedClock{Instant: time.Date(2024, 5, 17, 12, 30, 0, 0, time.UTC)}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func sampleEvents(n int) []braze.OutputEvent {
	events := make([]braze.OutputEvent, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, braze.OutputEvent{
			Event:      "Braze campaign: Onboarding",
			Properties: map[string]interface{}{"sent": float64(i)},
			Timestamp:  "2024-05-17T00:00:00.000Z",
		})
	}
	return events
}

func TestNewClient(t *testing.T) {
	t.Run("requires url and key", func(t *testing.T) {
		_, err := NewClient(Config{APIKey: "k"}, nil)
		assert.Error(t, err)
		_, err = NewClient(Config{URL: "https://analytics.example.com/batch"}, nil)
		assert.Error(t, err)
	})

	t.Run("batch size defaults", func(t *testing.T) {
		client, err := NewClient(Config{URL: "https://analytics.example.com/batch", APIKey: "k"}, nil)
		require.NoError(t, err)
		defer func() { _ = client.Close() }()
		assert.Equal(t, DefaultBatchSize, client.batchSize)
	})
}

func TestEmitBatch(t *testing.T) {
	var mu sync.Mutex
	var got []batchPayload
	var gotRequestID, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotRequestID = r.Header.Get("X-Request-ID")
		gotContentType = r.Header.Get("Content-Type")
		var payload batchPayload
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, jsonpool.Unmarshal(raw, &payload))
		got = append(got, payload)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := testClient(t, server.URL, false)
	events := sampleEvents(3)
	require.NoError(t, client.EmitBatch(context.Background(), events))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "capture-key", got[0].APIKey)
	assert.Equal(t, "2024-05-17T12:30:00.000Z", got[0].SentAt)
	assert.Equal(t, events, got[0].Batch)
	assert.NotEmpty(t, gotRequestID)
	assert.Equal(t, "application/json", gotContentType)
}

func TestEmitBatchChunks(t *testing.T) {
	var mu sync.Mutex
	var sizes []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload batchPayload
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, jsonpool.Unmarshal(raw, &payload))
		mu.Lock()
		sizes = append(sizes, len(payload.Batch))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := testClient(t, server.URL, false)
	client.batchSize = 2

	require.NoError(t, client.EmitBatch(context.Background(), sampleEvents(5)))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{2, 2, 1}, sizes)
}

func TestEmitBatchNoEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty batch")
	}))
	defer server.Close()

	client := testClient(t, server.URL, false)
	assert.NoError(t, client.EmitBatch(context.Background(), nil))
}

func TestEmitBatchErrorContract(t *testing.T) {
	t.Run("5xx is retryable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client := testClient(t, server.URL, false)
		err := client.EmitBatch(context.Background(), sampleEvents(1))
		require.Error(t, err)
		assert.True(t, errors.IsRetryable(err))
	})

	t.Run("throttling is retryable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		client := testClient(t, server.URL, false)
		err := client.EmitBatch(context.Background(), sampleEvents(1))
		require.Error(t, err)
		assert.True(t, errors.IsRetryable(err))
	})

	t.Run("4xx rejection is not retryable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		client := testClient(t, server.URL, false)
		err := client.EmitBatch(context.Background(), sampleEvents(1))
		require.Error(t, err)
		assert.False(t, errors.IsRetryable(err))
	})

	t.Run("transport failure is retryable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		client := testClient(t, server.URL, false)
		server.Close()

		err := client.EmitBatch(context.Background(), sampleEvents(1))
		require.Error(t, err)
		assert.True(t, errors.IsRetryable(err))
	})

	t.Run("failed chunk stops the walk", func(t *testing.T) {
		var mu sync.Mutex
		var calls int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			calls++
			n := calls
			mu.Unlock()
			if n == 2 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := testClient(t, server.URL, false)
		client.batchSize = 2

		err := client.EmitBatch(context.Background(), sampleEvents(6))
		require.Error(t, err)
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 2, calls)
	})
}

func TestEmitBatchCompression(t *testing.T) {
	pool := compression.NewCompressorPool(compression.DefaultConfig())
	var gotEncoding string
	var gotPayload batchPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEncoding = r.Header.Get("Content-Encoding")
		raw, _ := io.ReadAll(r.Body)
		plain, err := pool.Decompress(raw)
		assert.NoError(t, err)
		assert.NoError(t, jsonpool.Unmarshal(plain, &gotPayload))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := testClient(t, server.URL, true)
	events := sampleEvents(2)
	require.NoError(t, client.EmitBatch(context.Background(), events))

	assert.Equal(t, "gzip", gotEncoding)
	assert.Equal(t, events, gotPayload.Batch)
}
