package braze

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

	brazeapi "github.com/ajitpratap0/brazesync/pkg/braze"
	"github.com/ajitpratap0/brazesync/pkg/config"
	"github.com/ajitpratap0/brazesync/pkg/connector/core"
	"github.com/ajitpratap0/brazesync/pkg/errors"
	jsonpool "github.com/ajitpratap0/brazesync/pkg/json"
	"github.com/ajitpratap0/brazesync/pkg/pool"
)

// trackServer records /users/track payloads and can fail the first N
// calls.
type trackServer struct {
	mu        sync.Mutex
	requests  []brazeapi.TrackRequest
	failFirst int
	calls     int
	srv       *httptest.Server
}

func newTrackServer(t *testing.T, failFirst int) *trackServer {
	t.Helper()
	ts := &trackServer{failFirst: failFirst}
	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users/track", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		ts.mu.Lock()
		defer ts.mu.Unlock()
		ts.calls++
		if ts.calls <= ts.failFirst {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		var req brazeapi.TrackRequest
		require.NoError(t, jsonpool.Unmarshal(body, &req))
		ts.requests = append(ts.requests, req)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"success"}`))
	}))
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *trackServer) callCount() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.calls
}

func (ts *trackServer) recorded() []brazeapi.TrackRequest {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	out := make([]brazeapi.TrackRequest, len(ts.requests))
	copy(out, ts.requests)
	return out
}

func testConfig(endpoint string) *config.BaseConfig {
	cfg := config.NewBaseConfig("braze", "destination")
	cfg.Security.Credentials[credEndpoint] = endpoint
	cfg.Security.Credentials[credAPIKey] = "test-key"
	cfg.Security.Credentials[credEvents] = "purchase"
	cfg.Security.Credentials[credUserProperties] = "email,plan"
	cfg.Reliability.RetryAttempts = 2
	cfg.Reliability.RetryDelay = 5 * time.Millisecond
	cfg.Reliability.CircuitBreaker = false
	cfg.Reliability.HealthCheck = false
	return cfg
}

func newTestDestination(t *testing.T, cfg *config.BaseConfig) *Destination {
	t.Helper()
	dest := NewDestination()
	require.NoError(t, dest.Initialize(context.Background(), cfg))
	dest.clock = brazeapi.FixedClock{Instant: time.Date(2024, 5, 17, 12, 30, 0, 0, time.UTC)}
	t.Cleanup(func() { _ = dest.Close(context.Background()) })
	return dest
}

func eventRecord(event, distinctID, timestamp string, properties, set map[string]interface{}) *pool.Record {
	record := pool.GetRecord()
	record.ID = pool.GenerateID("test")
	record.SetData("event", event)
	record.SetData("distinct_id", distinctID)
	if timestamp != "" {
		record.SetData("timestamp", timestamp)
	}
	if properties != nil {
		record.SetData("properties", properties)
	}
	if set != nil {
		record.SetData("$set", set)
	}
	return record
}

func streamOf(records ...*pool.Record) *core.RecordStream {
	rc := make(chan *pool.Record, len(records))
	ec := make(chan error, 1)
	for _, r := range records {
		rc <- r
	}
	close(rc)
	close(ec)
	return &core.RecordStream{Records: rc, Errors: ec}
}

func TestInitializeValidation(t *testing.T) {
	t.Run("missing endpoint", func(t *testing.T) {
		cfg := testConfig("")
		err := NewDestination().Initialize(context.Background(), cfg)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	})

	t.Run("missing api key", func(t *testing.T) {
		cfg := testConfig("https://rest.example.braze.com")
		cfg.Security.Credentials[credAPIKey] = ""
		err := NewDestination().Initialize(context.Background(), cfg)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	})

	t.Run("invalid attribute flag", func(t *testing.T) {
		cfg := testConfig("https://rest.example.braze.com")
		cfg.Security.Credentials[credImportAllAttrs] = "definitely"
		err := NewDestination().Initialize(context.Background(), cfg)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	})
}

func TestWriteShapesAndDispatches(t *testing.T) {
	ts := newTrackServer(t, 0)
	dest := newTestDestination(t, testConfig(ts.srv.URL))

	err := dest.Write(context.Background(), streamOf(
		eventRecord("purchase", "u1", "2024-05-17T10:00:00.000Z",
			map[string]interface{}{"amount": float64(10)},
			map[string]interface{}{"email": "a@example.com", "secret": "x"}),
		eventRecord("pageview", "u2", "",
			nil,
			map[string]interface{}{"email": "b@example.com"}),
		eventRecord("purchase", "u3", "", nil, nil),
	))
	require.NoError(t, err)

	requests := ts.recorded()
	require.Len(t, requests, 1)
	req := requests[0]

	require.Len(t, req.Attributes, 1)
	assert.Equal(t, "a@example.com", req.Attributes[0]["email"])
	assert.Equal(t, "u1", req.Attributes[0]["external_id"])
	assert.NotContains(t, req.Attributes[0], "secret")

	require.Len(t, req.Events, 2)
	assert.Equal(t, "purchase", req.Events[0].Name)
	assert.Equal(t, "u1", req.Events[0].ExternalID)
	assert.Equal(t, "2024-05-17T10:00:00.000Z", req.Events[0].Time)
	assert.Equal(t, float64(10), req.Events[0].Properties["amount"])
	assert.NotContains(t, req.Events[0].Properties, "$set")

	// No timestamp falls back to the last UTC midnight.
	assert.Equal(t, "u3", req.Events[1].ExternalID)
	assert.Equal(t, "2024-05-17T00:00:00.000Z", req.Events[1].Time)
}

func TestWriteSkipsNonContributing(t *testing.T) {
	ts := newTrackServer(t, 0)
	dest := newTestDestination(t, testConfig(ts.srv.URL))

	err := dest.Write(context.Background(), streamOf(
		eventRecord("pageview", "u1", "", nil, nil),
		eventRecord("scroll", "u2", "", nil, nil),
	))
	require.NoError(t, err)
	assert.Zero(t, ts.callCount())
}

func TestWriteRetriesFailedDispatch(t *testing.T) {
	ts := newTrackServer(t, 1)
	dest := newTestDestination(t, testConfig(ts.srv.URL))

	err := dest.Write(context.Background(), streamOf(
		eventRecord("purchase", "u1", "2024-05-17T10:00:00.000Z", nil, nil),
	))
	require.NoError(t, err)
	assert.Equal(t, 2, ts.callCount())

	requests := ts.recorded()
	require.Len(t, requests, 1)
	assert.Len(t, requests[0].Events, 1)
}

func TestWriteFailsAfterRetries(t *testing.T) {
	ts := newTrackServer(t, 100)
	dest := newTestDestination(t, testConfig(ts.srv.URL))

	err := dest.Write(context.Background(), streamOf(
		eventRecord("purchase", "u1", "2024-05-17T10:00:00.000Z", nil, nil),
	))
	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err))
	assert.Equal(t, 2, ts.callCount())
}

func TestWriteFlushThreshold(t *testing.T) {
	ts := newTrackServer(t, 0)
	dest := newTestDestination(t, testConfig(ts.srv.URL))

	records := make([]*pool.Record, 0, 150)
	for i := 0; i < 150; i++ {
		records = append(records, eventRecord("purchase", "u1", "2024-05-17T10:00:00.000Z", nil, nil))
	}

	require.NoError(t, dest.Write(context.Background(), streamOf(records...)))

	requests := ts.recorded()
	require.Len(t, requests, 2)
	assert.Len(t, requests[0].Events, 75)
	assert.Len(t, requests[1].Events, 75)
}

func TestWriteBatch(t *testing.T) {
	ts := newTrackServer(t, 0)
	dest := newTestDestination(t, testConfig(ts.srv.URL))

	batch := pool.GetBatchSlice(3)
	batch = append(batch,
		eventRecord("purchase", "u1", "2024-05-17T10:00:00.000Z", nil, nil),
		eventRecord("pageview", "u2", "", nil, nil),
		eventRecord("purchase", "u3", "2024-05-17T11:00:00.000Z", nil, nil),
	)

	batches := make(chan []*pool.Record, 1)
	errsCh := make(chan error, 1)
	batches <- batch
	close(batches)
	close(errsCh)

	err := dest.WriteBatch(context.Background(), &core.BatchStream{Batches: batches, Errors: errsCh})
	require.NoError(t, err)

	requests := ts.recorded()
	require.Len(t, requests, 1)
	assert.Len(t, requests[0].Events, 2)
}

func TestWriteForwardsStreamError(t *testing.T) {
	ts := newTrackServer(t, 0)
	dest := newTestDestination(t, testConfig(ts.srv.URL))

	rc := make(chan *pool.Record, 1)
	ec := make(chan error, 1)
	rc <- eventRecord("purchase", "u1", "2024-05-17T10:00:00.000Z", nil, nil)
	close(rc)
	ec <- errors.New(errors.ErrorTypeData, "upstream failed")
	close(ec)

	err := dest.Write(context.Background(), &core.RecordStream{Records: rc, Errors: ec})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))

	// Shaped work seen before the failure is still dispatched.
	require.Len(t, ts.recorded(), 1)
}
