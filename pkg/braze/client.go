// Package braze implements the Braze REST surface shared by the import
// and export pipelines: the API client with its fetch error contract,
// paginated listing, the resource activity filter, analytics series
// transforms, track payload shaping, and batched concurrent dispatch.
package braze

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajitpratap0/brazesync/pkg/clients"
	"github.com/ajitpratap0/brazesync/pkg/compression"
	"github.com/ajitpratap0/brazesync/pkg/errors"
	jsonpool "github.com/ajitpratap0/brazesync/pkg/json"
	"github.com/ajitpratap0/brazesync/pkg/metrics"
	stringpool "github.com/ajitpratap0/brazesync/pkg/strings"
)

// KPIKind selects one of the account-level KPI series endpoints.
type KPIKind string

// KPI endpoints.
const (
	KPINewUsers   KPIKind = "new_users"
	KPIDAU        KPIKind = "dau"
	KPIMAU        KPIKind = "mau"
	KPIUninstalls KPIKind = "uninstalls"
)

// ClientConfig configures a Braze REST API client.
type ClientConfig struct {
	// Endpoint is the REST API base, e.g. https://rest.iad-03.braze.com.
	Endpoint string
	// APIKey is sent as a bearer token on every request.
	APIKey string
	// HTTP overrides the transport defaults when set.
	HTTP *clients.HTTPConfig
	// CompressRequests gzips outbound bodies at or above CompressMinBytes.
	CompressRequests bool
	CompressMinBytes int
}

// Client talks to the Braze REST API. All read calls share one error
// contract: transport failures and 5xx responses surface as retryable
// errors, any other non-2xx response yields nil data with no error, and
// a 2xx body that fails to parse also yields nil data. An errors field
// inside a 2xx body is logged, never raised.
type Client struct {
	endpoint    string
	apiKey      string
	http        *clients.HTTPClient
	logger      *zap.Logger
	compressor  *compression.CompressorPool
	compressMin int
}

// NewClient builds a client for one Braze workspace.
func NewClient(cfg ClientConfig, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "braze endpoint is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "braze api key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpCfg := cfg.HTTP
	if httpCfg == nil {
		httpCfg = clients.DefaultHTTPConfig()
	}

	c := &Client{
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		http:     clients.NewHTTPClient(httpCfg, logger),
		logger:   logger,
	}

	if cfg.CompressRequests {
		c.compressor = compression.NewCompressorPool(compression.DefaultConfig())
		c.compressMin = cfg.CompressMinBytes
		if c.compressMin <= 0 {
			c.compressMin = 1024
		}
	}
	return c, nil
}

// Close releases idle transport connections.
func (c *Client) Close() error {
	return c.http.Close()
}

// endpointLabel strips the query so metrics stay low-cardinality.
func endpointLabel(path string) string {
	if i := stringpool.Index(path, "?"); i >= 0 {
		return path[:i]
	}
	return path
}

func (c *Client) fetch(ctx context.Context, method, path string, body interface{}) (gojson.RawMessage, error) {
	requestID := uuid.NewString()
	endpoint := endpointLabel(path)

	headers := map[string]string{
		"Authorization": "Bearer " + c.apiKey,
		"Accept":        "application/json",
		"X-Request-ID":  requestID,
	}

	var reader io.Reader
	if body != nil {
		payload, err := jsonpool.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to encode request body")
		}
		if c.compressor != nil && len(payload) >= c.compressMin {
			compressed, cerr := c.compressor.Compress(payload)
			if cerr != nil {
				c.logger.Warn("request compression failed, sending plain body",
					zap.String("endpoint", endpoint),
					zap.Error(cerr))
			} else {
				payload = compressed
				headers["Content-Encoding"] = "gzip"
			}
		}
		headers["Content-Type"] = "application/json"
		reader = bytes.NewReader(payload)
	}

	timer := metrics.NewTimer(endpoint)
	var resp *http.Response
	var err error
	switch method {
	case http.MethodGet:
		resp, err = c.http.Get(ctx, c.endpoint+path, headers)
	case http.MethodPost:
		resp, err = c.http.Post(ctx, c.endpoint+path, reader, headers)
	default:
		return nil, errors.Newf(errors.ErrorTypeInternal, "unsupported method %s", method)
	}
	metrics.RequestDuration.WithLabelValues(endpoint).Observe(timer.Stop().Seconds())

	if err != nil {
		metrics.APIRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, errors.Wrapf(err, errors.ErrorTypeConnection, "request to %s failed", endpoint).
			WithDetail("request_id", requestID)
	}
	defer func() { _ = resp.Body.Close() }()

	metrics.APIRequests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= http.StatusInternalServerError {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, errors.Newf(errors.ErrorTypeAPI, "%s returned %d", endpoint, resp.StatusCode).
			WithDetail("request_id", requestID)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, resp.Body)
		c.logger.Warn("braze request rejected",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.String("request_id", requestID))
		return nil, nil
	}

	var raw gojson.RawMessage
	if derr := jsonpool.UnmarshalFromReader(resp.Body, &raw); derr != nil {
		c.logger.Warn("braze response is not valid JSON",
			zap.String("endpoint", endpoint),
			zap.String("request_id", requestID),
			zap.Error(derr))
		return nil, nil
	}

	c.logResponseErrors(endpoint, requestID, raw)
	return raw, nil
}

// Braze reports partial failures in an errors field on an otherwise
// successful response. Surface them without failing the call.
func (c *Client) logResponseErrors(endpoint, requestID string, raw gojson.RawMessage) {
	var probe struct {
		Errors []interface{} `json:"errors"`
	}
	if err := jsonpool.Unmarshal(raw, &probe); err != nil || len(probe.Errors) == 0 {
		return
	}
	c.logger.Warn("braze response contained errors",
		zap.String("endpoint", endpoint),
		zap.String("request_id", requestID),
		zap.Int("count", len(probe.Errors)),
		zap.Any("errors", probe.Errors))
}

// decode unmarshals a 2xx body into out. A body that does not match the
// expected shape counts as no data, same as an unparsable one.
func (c *Client) decode(endpoint string, raw gojson.RawMessage, out interface{}) bool {
	if err := jsonpool.Unmarshal(raw, out); err != nil {
		c.logger.Warn("unexpected braze payload shape",
			zap.String("endpoint", endpoint),
			zap.Error(err))
		return false
	}
	return true
}

// ListCampaigns fetches one page of campaign handles.
func (c *Client) ListCampaigns(ctx context.Context, page int) ([]Item, error) {
	ub := stringpool.NewURLBuilder("/campaigns/list")
	ub.AddParamInt("page", page)
	path := ub.String()
	ub.Close()

	raw, err := c.fetch(ctx, http.MethodGet, path, nil)
	if raw == nil || err != nil {
		return nil, err
	}
	var out campaignListResponse
	if !c.decode("/campaigns/list", raw, &out) {
		return nil, nil
	}
	return out.Campaigns, nil
}

// CampaignDetails fetches the detail record used by the activity filter.
func (c *Client) CampaignDetails(ctx context.Context, id string) (*Details, error) {
	ub := stringpool.NewURLBuilder("/campaigns/details")
	ub.AddParam("campaign_id", id)
	path := ub.String()
	ub.Close()

	raw, err := c.fetch(ctx, http.MethodGet, path, nil)
	if raw == nil || err != nil {
		return nil, err
	}
	var out Details
	if !c.decode("/campaigns/details", raw, &out) {
		return nil, nil
	}
	return &out, nil
}

// CampaignSeries fetches the one-day analytics bucket ending at endingAt.
func (c *Client) CampaignSeries(ctx context.Context, id, endingAt string) ([]CampaignDataPoint, error) {
	ub := stringpool.NewURLBuilder("/campaigns/data_series")
	ub.AddParam("campaign_id", id).
		AddParamInt("length", 1).
		AddParam("unit", "day").
		AddParam("ending_at", endingAt)
	path := ub.String()
	ub.Close()

	raw, err := c.fetch(ctx, http.MethodGet, path, nil)
	if raw == nil || err != nil {
		return nil, err
	}
	var out campaignSeriesResponse
	if !c.decode("/campaigns/data_series", raw, &out) {
		return nil, nil
	}
	return out.Data, nil
}

// ListCanvases fetches one page of canvas handles.
func (c *Client) ListCanvases(ctx context.Context, page int) ([]Item, error) {
	ub := stringpool.NewURLBuilder("/canvas/list")
	ub.AddParamInt("page", page)
	path := ub.String()
	ub.Close()

	raw, err := c.fetch(ctx, http.MethodGet, path, nil)
	if raw == nil || err != nil {
		return nil, err
	}
	var out canvasListResponse
	if !c.decode("/canvas/list", raw, &out) {
		return nil, nil
	}
	return out.Canvases, nil
}

// CanvasDetails fetches the detail record used by the activity filter.
func (c *Client) CanvasDetails(ctx context.Context, id string) (*Details, error) {
	ub := stringpool.NewURLBuilder("/canvas/details")
	ub.AddParam("canvas_id", id)
	path := ub.String()
	ub.Close()

	raw, err := c.fetch(ctx, http.MethodGet, path, nil)
	if raw == nil || err != nil {
		return nil, err
	}
	var out Details
	if !c.decode("/canvas/details", raw, &out) {
		return nil, nil
	}
	return &out, nil
}

// CanvasSeries fetches the one-day canvas bucket with variant and step
// breakdowns included.
func (c *Client) CanvasSeries(ctx context.Context, id, endingAt string) (*CanvasSeriesData, error) {
	ub := stringpool.NewURLBuilder("/canvas/data_series")
	ub.AddParam("canvas_id", id).
		AddParamInt("length", 1).
		AddParamBool("include_variant_breakdown", true).
		AddParamBool("include_step_breakdown", true).
		AddParamBool("include_deleted_step_data", true).
		AddParam("ending_at", endingAt)
	path := ub.String()
	ub.Close()

	raw, err := c.fetch(ctx, http.MethodGet, path, nil)
	if raw == nil || err != nil {
		return nil, err
	}
	var out canvasSeriesResponse
	if !c.decode("/canvas/data_series", raw, &out) {
		return nil, nil
	}
	return &out.Data, nil
}

// ListEvents fetches one page of custom event names.
func (c *Client) ListEvents(ctx context.Context, page int) ([]string, error) {
	ub := stringpool.NewURLBuilder("/events/list")
	ub.AddParamInt("page", page)
	path := ub.String()
	ub.Close()

	raw, err := c.fetch(ctx, http.MethodGet, path, nil)
	if raw == nil || err != nil {
		return nil, err
	}
	var out eventListResponse
	if !c.decode("/events/list", raw, &out) {
		return nil, nil
	}
	return out.Events, nil
}

// EventSeries fetches the one-day occurrence bucket for a custom event.
func (c *Client) EventSeries(ctx context.Context, event, endingAt string) ([]EventDataPoint, error) {
	ub := stringpool.NewURLBuilder("/events/data_series")
	ub.AddParam("event", event).
		AddParamInt("length", 1).
		AddParam("unit", "day").
		AddParam("ending_at", endingAt)
	path := ub.String()
	ub.Close()

	raw, err := c.fetch(ctx, http.MethodGet, path, nil)
	if raw == nil || err != nil {
		return nil, err
	}
	var out eventSeriesResponse
	if !c.decode("/events/data_series", raw, &out) {
		return nil, nil
	}
	return out.Events, nil
}

// KPISeries fetches the one-day bucket for an account-level KPI.
func (c *Client) KPISeries(ctx context.Context, kind KPIKind, endingAt string) ([]KPIDataPoint, error) {
	endpoint := "/kpi/" + string(kind) + "/data_series"
	ub := stringpool.NewURLBuilder(endpoint)
	ub.AddParamInt("length", 1).
		AddParam("ending_at", endingAt)
	path := ub.String()
	ub.Close()

	raw, err := c.fetch(ctx, http.MethodGet, path, nil)
	if raw == nil || err != nil {
		return nil, err
	}
	var out kpiSeriesResponse
	if !c.decode(endpoint, raw, &out) {
		return nil, nil
	}
	return out.Data, nil
}

// ListFeedCards fetches one page of news feed card handles.
func (c *Client) ListFeedCards(ctx context.Context, page int) ([]Item, error) {
	ub := stringpool.NewURLBuilder("/feed/list")
	ub.AddParamInt("page", page)
	path := ub.String()
	ub.Close()

	raw, err := c.fetch(ctx, http.MethodGet, path, nil)
	if raw == nil || err != nil {
		return nil, err
	}
	var out feedListResponse
	if !c.decode("/feed/list", raw, &out) {
		return nil, nil
	}
	return out.Cards, nil
}

// FeedCardDetails fetches the detail record used by the activity filter.
func (c *Client) FeedCardDetails(ctx context.Context, id string) (*Details, error) {
	ub := stringpool.NewURLBuilder("/feed/details")
	ub.AddParam("card_id", id)
	path := ub.String()
	ub.Close()

	raw, err := c.fetch(ctx, http.MethodGet, path, nil)
	if raw == nil || err != nil {
		return nil, err
	}
	var out Details
	if !c.decode("/feed/details", raw, &out) {
		return nil, nil
	}
	return &out, nil
}

// FeedCardSeries fetches the one-day engagement bucket for a card.
func (c *Client) FeedCardSeries(ctx context.Context, id, endingAt string) ([]FeedDataPoint, error) {
	ub := stringpool.NewURLBuilder("/feed/data_series")
	ub.AddParam("card_id", id).
		AddParamInt("length", 1).
		AddParam("unit", "day").
		AddParam("ending_at", endingAt)
	path := ub.String()
	ub.Close()

	raw, err := c.fetch(ctx, http.MethodGet, path, nil)
	if raw == nil || err != nil {
		return nil, err
	}
	var out feedSeriesResponse
	if !c.decode("/feed/data_series", raw, &out) {
		return nil, nil
	}
	return out.Data, nil
}

// ListSegments fetches one page of segment handles.
func (c *Client) ListSegments(ctx context.Context, page int) ([]Item, error) {
	ub := stringpool.NewURLBuilder("/segments/list")
	ub.AddParamInt("page", page)
	path := ub.String()
	ub.Close()

	raw, err := c.fetch(ctx, http.MethodGet, path, nil)
	if raw == nil || err != nil {
		return nil, err
	}
	var out segmentListResponse
	if !c.decode("/segments/list", raw, &out) {
		return nil, nil
	}
	return out.Segments, nil
}

// SegmentDetails fetches the detail record used by the activity filter.
func (c *Client) SegmentDetails(ctx context.Context, id string) (*Details, error) {
	ub := stringpool.NewURLBuilder("/segments/details")
	ub.AddParam("segment_id", id)
	path := ub.String()
	ub.Close()

	raw, err := c.fetch(ctx, http.MethodGet, path, nil)
	if raw == nil || err != nil {
		return nil, err
	}
	var out Details
	if !c.decode("/segments/details", raw, &out) {
		return nil, nil
	}
	return &out, nil
}

// SegmentSeries fetches the one-day size bucket for a segment.
func (c *Client) SegmentSeries(ctx context.Context, id, endingAt string) ([]SegmentDataPoint, error) {
	ub := stringpool.NewURLBuilder("/segments/data_series")
	ub.AddParam("segment_id", id).
		AddParamInt("length", 1).
		AddParam("ending_at", endingAt)
	path := ub.String()
	ub.Close()

	raw, err := c.fetch(ctx, http.MethodGet, path, nil)
	if raw == nil || err != nil {
		return nil, err
	}
	var out segmentSeriesResponse
	if !c.decode("/segments/data_series", raw, &out) {
		return nil, nil
	}
	return out.Data, nil
}

// SessionSeries fetches the one-day app sessions bucket.
func (c *Client) SessionSeries(ctx context.Context, endingAt string) ([]SessionDataPoint, error) {
	ub := stringpool.NewURLBuilder("/sessions/data_series")
	ub.AddParamInt("length", 1).
		AddParam("unit", "day").
		AddParam("ending_at", endingAt)
	path := ub.String()
	ub.Close()

	raw, err := c.fetch(ctx, http.MethodGet, path, nil)
	if raw == nil || err != nil {
		return nil, err
	}
	var out sessionSeriesResponse
	if !c.decode("/sessions/data_series", raw, &out) {
		return nil, nil
	}
	return out.Data, nil
}

// Track posts a /users/track batch. Anything short of an explicit
// success acknowledgement is a retryable failure so the caller can
// resend the whole batch.
func (c *Client) Track(ctx context.Context, req TrackRequest) error {
	raw, err := c.fetch(ctx, http.MethodPost, "/users/track", req)
	if err != nil {
		metrics.ExportBatches.WithLabelValues("failure").Inc()
		return err
	}

	var out trackResponse
	if raw != nil {
		if derr := jsonpool.Unmarshal(raw, &out); derr != nil {
			out = trackResponse{}
		}
	}
	if out.Message != "success" {
		metrics.ExportBatches.WithLabelValues("failure").Inc()
		return errors.New(errors.ErrorTypeAPI, "users/track was not acknowledged").
			WithDetail("message", out.Message)
	}

	metrics.ExportBatches.WithLabelValues("success").Inc()
	metrics.EventsExported.Add(float64(len(req.Events)))
	metrics.AttributesExported.Add(float64(len(req.Attributes)))
	return nil
}
