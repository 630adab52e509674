package braze

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

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

	client, err := NewClient(ClientConfig{
		Endpoint:         serverURL,
		APIKey:           "test-key",
		HTTP:             httpCfg,
		CompressRequests: compress,
		CompressMinBytes: 1,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewClient(t *testing.T) {
	t.Run("requires endpoint and key", func(t *testing.T) {
		_, err := NewClient(ClientConfig{APIKey: "k"}, nil)
		assert.Error(t, err)
		_, err = NewClient(ClientConfig{Endpoint: "https://rest.example.com"}, nil)
		assert.Error(t, err)
	})

	t.Run("trailing slash is trimmed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/campaigns/list", r.URL.Path)
			_, _ = w.Write([]byte(`{"campaigns":[]}`))
		}))
		defer server.Close()

		client := testClient(t, server.URL+"/", false)
		_, err := client.ListCampaigns(context.Background(), 1)
		require.NoError(t, err)
	})
}

func TestClientListCampaigns(t *testing.T) {
	var gotAuth, gotRequestID, gotPage string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		gotPage = r.URL.Query().Get("page")
		_, _ = w.Write([]byte(`{"message":"success","campaigns":[{"id":"c1","name":"Onboarding"},{"id":"c2","name":"Winback"}]}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL, false)
	items, err := client.ListCampaigns(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.NotEmpty(t, gotRequestID)
	assert.Equal(t, "3", gotPage)
	require.Len(t, items, 2)
	assert.Equal(t, Item{ID: "c1", Name: "Onboarding"}, items[0])
}

func TestClientFetchContract(t *testing.T) {
	ctx := context.Background()

	t.Run("server errors are retryable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		items, err := testClient(t, server.URL, false).ListCampaigns(ctx, 1)
		require.Error(t, err)
		assert.Nil(t, items)
		assert.True(t, errors.IsRetryable(err))
		assert.True(t, errors.IsType(err, errors.ErrorTypeAPI))
	})

	t.Run("client errors yield no data and no error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		items, err := testClient(t, server.URL, false).ListCampaigns(ctx, 1)
		require.NoError(t, err)
		assert.Nil(t, items)
	})

	t.Run("unparseable success yields no data", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>not json</html>"))
		}))
		defer server.Close()

		items, err := testClient(t, server.URL, false).ListCampaigns(ctx, 1)
		require.NoError(t, err)
		assert.Nil(t, items)
	})

	t.Run("embedded errors field does not fail the call", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"campaigns":[{"id":"c1","name":"One"}],"errors":["partial failure"]}`))
		}))
		defer server.Close()

		items, err := testClient(t, server.URL, false).ListCampaigns(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, items, 1)
	})

	t.Run("network failures are retryable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		items, err := testClient(t, url, false).ListCampaigns(ctx, 1)
		require.Error(t, err)
		assert.Nil(t, items)
		assert.True(t, errors.IsRetryable(err))
		assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
	})
}

func TestClientSeriesParams(t *testing.T) {
	ctx := context.Background()

	t.Run("campaign series pins a one day window", func(t *testing.T) {
		var query map[string][]string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/campaigns/data_series", r.URL.Path)
			query = r.URL.Query()
			_, _ = w.Write([]byte(`{"message":"success","data":[{"time":"2024-05-16","conversions":1}]}`))
		}))
		defer server.Close()

		points, err := testClient(t, server.URL, false).CampaignSeries(ctx, "c1", "2024-05-17T00:00:00.000Z")
		require.NoError(t, err)
		require.Len(t, points, 1)
		assert.Equal(t, "c1", query["campaign_id"][0])
		assert.Equal(t, "1", query["length"][0])
		assert.Equal(t, "day", query["unit"][0])
		assert.Equal(t, "2024-05-17T00:00:00.000Z", query["ending_at"][0])
	})

	t.Run("canvas series requests full breakdowns", func(t *testing.T) {
		var query map[string][]string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/canvas/data_series", r.URL.Path)
			query = r.URL.Query()
			_, _ = w.Write([]byte(`{"data":{"name":"Flow","stats":[]}}`))
		}))
		defer server.Close()

		data, err := testClient(t, server.URL, false).CanvasSeries(ctx, "cv1", "2024-05-17T00:00:00.000Z")
		require.NoError(t, err)
		require.NotNil(t, data)
		assert.Equal(t, "Flow", data.Name)
		assert.Equal(t, "cv1", query["canvas_id"][0])
		assert.Equal(t, "true", query["include_variant_breakdown"][0])
		assert.Equal(t, "true", query["include_step_breakdown"][0])
		assert.Equal(t, "true", query["include_deleted_step_data"][0])
		assert.NotContains(t, query, "unit")
	})

	t.Run("kpi series hits the kind-specific path", func(t *testing.T) {
		var path string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path = r.URL.Path
			_, _ = w.Write([]byte(`{"message":"success","data":[{"time":"2024-05-16","dau":1500}]}`))
		}))
		defer server.Close()

		points, err := testClient(t, server.URL, false).KPISeries(ctx, KPIDAU, "2024-05-17T00:00:00.000Z")
		require.NoError(t, err)
		require.Len(t, points, 1)
		require.NotNil(t, points[0].DAU)
		assert.Equal(t, float64(1500), *points[0].DAU)
		assert.Equal(t, "/kpi/dau/data_series", path)
	})
}

func TestClientTrack(t *testing.T) {
	ctx := context.Background()
	req := TrackRequest{
		Events: []TrackEvent{{Name: "Signup", Time: "2024-05-17T00:00:00.000Z", ExternalID: "u1"}},
		Attributes: []TrackAttributes{
			{"external_id": "u1", "email": "a@b.co"},
		},
	}

	t.Run("acknowledged batch succeeds", func(t *testing.T) {
		var gotBody TrackRequest
		var gotContentType string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/users/track", r.URL.Path)
			gotContentType = r.Header.Get("Content-Type")
			body, _ := io.ReadAll(r.Body)
			assert.NoError(t, jsonpool.Unmarshal(body, &gotBody))
			_, _ = w.Write([]byte(`{"message":"success"}`))
		}))
		defer server.Close()

		require.NoError(t, testClient(t, server.URL, false).Track(ctx, req))
		assert.Equal(t, "application/json", gotContentType)
		require.Len(t, gotBody.Events, 1)
		assert.Equal(t, "Signup", gotBody.Events[0].Name)
		require.Len(t, gotBody.Attributes, 1)
		assert.Equal(t, "u1", gotBody.Attributes[0]["external_id"])
	})

	t.Run("unacknowledged message is a retryable failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"message":"queued"}`))
		}))
		defer server.Close()

		err := testClient(t, server.URL, false).Track(ctx, req)
		require.Error(t, err)
		assert.True(t, errors.IsRetryable(err))
	})

	t.Run("rejected batch is a retryable failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"invalid external_id"}`))
		}))
		defer server.Close()

		err := testClient(t, server.URL, false).Track(ctx, req)
		require.Error(t, err)
		assert.True(t, errors.IsRetryable(err))
	})

	t.Run("server error propagates", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		err := testClient(t, server.URL, false).Track(ctx, req)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeAPI))
	})

	t.Run("bodies compress when enabled", func(t *testing.T) {
		pool := compression.NewCompressorPool(compression.DefaultConfig())
		var gotEncoding string
		var gotBody TrackRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotEncoding = r.Header.Get("Content-Encoding")
			raw, _ := io.ReadAll(r.Body)
			plain, err := pool.Decompress(raw)
			assert.NoError(t, err)
			assert.NoError(t, jsonpool.Unmarshal(plain, &gotBody))
			_, _ = w.Write([]byte(`{"message":"success"}`))
		}))
		defer server.Close()

		require.NoError(t, testClient(t, server.URL, true).Track(ctx, req))
		assert.Equal(t, "gzip", gotEncoding)
		require.Len(t, gotBody.Events, 1)
		assert.Equal(t, "Signup", gotBody.Events[0].Name)
	})
}
