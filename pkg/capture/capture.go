// Package capture ships flattened analytics events to the downstream
// capture endpoint.
package capture

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajitpratap0/brazesync/pkg/braze"
	"github.com/ajitpratap0/brazesync/pkg/clients"
	"github.com/ajitpratap0/brazesync/pkg/compression"
	"github.com/ajitpratap0/brazesync/pkg/errors"
	jsonpool "github.com/ajitpratap0/brazesync/pkg/json"
	"github.com/ajitpratap0/brazesync/pkg/metrics"
)

// DefaultBatchSize caps events per capture request.
const DefaultBatchSize = 500

// Config configures the capture client.
type Config struct {
	// URL is the full capture endpoint, e.g. https://analytics.example.com/batch.
	URL string
	// APIKey identifies the project inside each payload.
	APIKey string
	// BatchSize caps events per request. Defaults to DefaultBatchSize.
	BatchSize int
	// HTTP overrides the transport defaults when set.
	HTTP *clients.HTTPConfig
	// CompressRequests gzips outbound bodies at or above CompressMinBytes.
	CompressRequests bool
	CompressMinBytes int
}

// batchPayload is the capture wire format: a project key, a send
// timestamp, and the event batch.
type batchPayload struct {
	APIKey string              `json:"api_key"`
	SentAt string              `json:"sent_at"`
	Batch  []braze.OutputEvent `json:"batch"`
}

// Client posts OutputEvent batches to the capture endpoint. It
// implements the emitter contract consumed by import jobs: transport
// failures, throttling, and 5xx responses are retryable, while any
// other 4xx means the payload itself was rejected and resending the
// same batch cannot help.
type Client struct {
	url         string
	apiKey      string
	batchSize   int
	http        *clients.HTTPClient
	clock       braze.Clock
	logger      *zap.Logger
	compressor  *compression.CompressorPool
	compressMin int
}

// NewClient builds a capture client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "capture url is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "capture api key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpCfg := cfg.HTTP
	if httpCfg == nil {
		httpCfg = clients.DefaultHTTPConfig()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	c := &Client{
		url:       cfg.URL,
		apiKey:    cfg.APIKey,
		batchSize: batchSize,
		http:      clients.NewHTTPClient(httpCfg, logger),
		clock:     braze.SystemClock{},
		logger:    logger,
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

// EmitBatch sends events in capped sub-batches, in order. The first
// failed sub-batch aborts the call; events already accepted stay
// accepted, so retries may redeliver a prefix of the batch.
func (c *Client) EmitBatch(ctx context.Context, events []braze.OutputEvent) error {
	for start := 0; start < len(events); start += c.batchSize {
		end := start + c.batchSize
		if end > len(events) {
			end = len(events)
		}
		if err := c.post(ctx, events[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) post(ctx context.Context, events []braze.OutputEvent) error {
	requestID := uuid.NewString()
	payload, err := jsonpool.Marshal(batchPayload{
		APIKey: c.apiKey,
		SentAt: braze.ISODateString(c.clock.Now()),
		Batch:  events,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to encode capture batch")
	}

	headers := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
		"X-Request-ID": requestID,
	}
	if c.compressor != nil && len(payload) >= c.compressMin {
		compressed, cerr := c.compressor.Compress(payload)
		if cerr != nil {
			c.logger.Warn("capture compression failed, sending plain body", zap.Error(cerr))
		} else {
			payload = compressed
			headers["Content-Encoding"] = "gzip"
		}
	}

	timer := metrics.NewTimer("capture")
	resp, err := c.http.Post(ctx, c.url, bytes.NewReader(payload), headers)
	metrics.RequestDuration.WithLabelValues("capture").Observe(timer.Stop().Seconds())
	if err != nil {
		metrics.CaptureBatches.WithLabelValues("failure").Inc()
		return errors.Wrap(err, errors.ErrorTypeConnection, "capture request failed").
			WithDetail("request_id", requestID)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.CaptureBatches.WithLabelValues("failure").Inc()
		return errors.New(errors.ErrorTypeRateLimit, "capture endpoint throttled the batch").
			WithDetail("request_id", requestID)
	case resp.StatusCode >= http.StatusInternalServerError:
		metrics.CaptureBatches.WithLabelValues("failure").Inc()
		return errors.Newf(errors.ErrorTypeAPI, "capture endpoint returned %d", resp.StatusCode).
			WithDetail("request_id", requestID)
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		metrics.CaptureBatches.WithLabelValues("rejected").Inc()
		return errors.Newf(errors.ErrorTypeData, "capture endpoint rejected the batch with %d", resp.StatusCode).
			WithDetail("request_id", requestID).
			WithDetail("events", len(events))
	}

	metrics.CaptureBatches.WithLabelValues("success").Inc()
	metrics.EventsCaptured.Add(float64(len(events)))
	c.logger.Debug("capture batch accepted",
		zap.Int("events", len(events)),
		zap.String("request_id", requestID))
	return nil
}
