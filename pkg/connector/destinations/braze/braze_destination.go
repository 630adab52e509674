// Package braze implements the Braze destination connector. Inbound
// analytics events are shaped against the export allow lists, packed
// into /users/track payloads, and dispatched concurrently.
package braze

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	brazeapi "github.com/ajitpratap0/brazesync/pkg/braze"
	"github.com/ajitpratap0/brazesync/pkg/clients"
	"github.com/ajitpratap0/brazesync/pkg/config"
	"github.com/ajitpratap0/brazesync/pkg/connector/base"
	"github.com/ajitpratap0/brazesync/pkg/connector/core"
	"github.com/ajitpratap0/brazesync/pkg/errors"
	"github.com/ajitpratap0/brazesync/pkg/pool"
)

// Credential keys recognized by the destination.
const (
	credEndpoint       = "endpoint"
	credAPIKey         = "api_key"
	credEvents         = "events_to_export"
	credUserProperties = "user_properties_to_export"
	credImportAllAttrs = "import_user_attributes_in_all_events"
	credCompress       = "compress_requests"
)

// Destination forwards inbound analytics events to /users/track. Each
// event contributes at most one attributes entry and one events entry
// per the export allow lists; contributions pack greedily under the
// per-array cap.
type Destination struct {
	*base.BaseConnector

	client    *brazeapi.Client
	exportCfg brazeapi.ExportConfig
	clock     brazeapi.Clock
}

// NewDestination creates an uninitialized Braze destination.
func NewDestination() *Destination {
	return &Destination{
		BaseConnector: base.NewBaseConnector("braze", core.ConnectorTypeDestination, "1.0.0"),
		clock:         brazeapi.SystemClock{},
	}
}

// Initialize validates credentials, parses the export allow lists, and
// builds the API client.
func (d *Destination) Initialize(ctx context.Context, cfg *config.BaseConfig) error {
	if err := d.BaseConnector.Initialize(ctx, cfg); err != nil {
		return err
	}
	if err := d.Validate(); err != nil {
		return err
	}

	importAllAttrs, err := credentialBool(cfg, credImportAllAttrs, false)
	if err != nil {
		return err
	}
	d.exportCfg = brazeapi.NewExportConfig(
		cfg.Security.Credential(credEvents),
		cfg.Security.Credential(credUserProperties),
		importAllAttrs,
	)

	compress, err := credentialBool(cfg, credCompress, cfg.Advanced.IsCompressionEnabled())
	if err != nil {
		return err
	}

	client, err := brazeapi.NewClient(brazeapi.ClientConfig{
		Endpoint:         cfg.Security.Credential(credEndpoint),
		APIKey:           cfg.Security.Credential(credAPIKey),
		HTTP:             transportConfig(cfg),
		CompressRequests: compress,
	}, d.GetLogger())
	if err != nil {
		return err
	}
	d.client = client

	d.GetProgressReporter().Start()

	d.GetLogger().Info("braze destination ready",
		zap.Bool("import_all_attributes", importAllAttrs),
		zap.Bool("compression", compress))
	return nil
}

// Write shapes each record and dispatches packed track payloads. The
// day anchor for timestamp fallbacks is computed once per call. Records
// are released after shaping.
func (d *Destination) Write(ctx context.Context, stream *core.RecordStream) error {
	if d.client == nil {
		return errors.New(errors.ErrorTypeConfig, "destination is not initialized")
	}

	lastMidnight := brazeapi.LastUTCMidnight(d.clock)
	flushSize := d.GetConfig().Performance.BatchSize
	shaped := make([]brazeapi.ShapedEvent, 0, flushSize)

	flush := func() error {
		if len(shaped) == 0 {
			return nil
		}
		batches := brazeapi.PackBatches(shaped)
		shaped = shaped[:0]
		return brazeapi.DispatchBatches(ctx, trackDispatcher{d}, batches)
	}

	for record := range stream.Records {
		contribution := brazeapi.ShapeEvent(inboundFrom(record), d.exportCfg, lastMidnight)
		record.Release()
		d.GetProgressReporter().IncrementProcessed(1)
		if contribution.Empty() {
			continue
		}
		shaped = append(shaped, contribution)
		if len(shaped) >= flushSize {
			if err := flush(); err != nil {
				d.UpdateHealth(false, map[string]interface{}{"error": err.Error()})
				return err
			}
		}
	}
	if err := flush(); err != nil {
		d.UpdateHealth(false, map[string]interface{}{"error": err.Error()})
		return err
	}

	if err, ok := <-stream.Errors; ok && err != nil {
		return err
	}
	d.UpdateHealth(true, nil)
	return nil
}

// WriteBatch shapes and dispatches one track payload wave per incoming
// batch. Batch slices are returned to the pool.
func (d *Destination) WriteBatch(ctx context.Context, stream *core.BatchStream) error {
	if d.client == nil {
		return errors.New(errors.ErrorTypeConfig, "destination is not initialized")
	}

	lastMidnight := brazeapi.LastUTCMidnight(d.clock)

	for batch := range stream.Batches {
		shaped := make([]brazeapi.ShapedEvent, 0, len(batch))
		for _, record := range batch {
			contribution := brazeapi.ShapeEvent(inboundFrom(record), d.exportCfg, lastMidnight)
			record.Release()
			if !contribution.Empty() {
				shaped = append(shaped, contribution)
			}
		}
		d.GetProgressReporter().IncrementProcessed(int64(len(batch)))
		pool.PutBatchSlice(batch)

		if len(shaped) == 0 {
			continue
		}
		if err := brazeapi.DispatchBatches(ctx, trackDispatcher{d}, brazeapi.PackBatches(shaped)); err != nil {
			d.UpdateHealth(false, map[string]interface{}{"error": err.Error()})
			return err
		}
	}

	if err, ok := <-stream.Errors; ok && err != nil {
		return err
	}
	d.UpdateHealth(true, nil)
	return nil
}

// Close releases the API client.
func (d *Destination) Close(ctx context.Context) error {
	if d.client != nil {
		if err := d.client.Close(); err != nil {
			d.GetLogger().Warn("failed to close braze client", zap.Error(err))
		}
	}
	if rep := d.GetProgressReporter(); rep != nil {
		rep.Stop()
	}
	return d.BaseConnector.Close(ctx)
}

// trackDispatcher wraps each track call in the connector's retry, rate
// limit, and circuit breaker layers.
type trackDispatcher struct {
	d *Destination
}

func (t trackDispatcher) Track(ctx context.Context, req brazeapi.TrackRequest) error {
	return t.d.ExecuteWithRetry(ctx, func() error {
		if err := t.d.RateLimit(ctx); err != nil {
			return err
		}
		return t.d.ExecuteWithCircuitBreaker(func() error {
			return t.d.client.Track(ctx, req)
		})
	})
}

// inboundFrom reads the inbound event wire shape out of a record. Keys
// that are absent or of the wrong type are left zero; the shaper's
// gates decide what the event contributes.
func inboundFrom(record *pool.Record) brazeapi.InboundEvent {
	var ev brazeapi.InboundEvent
	if v, ok := record.GetData("event"); ok {
		if s, ok := v.(string); ok {
			ev.Event = s
		}
	}
	if v, ok := record.GetData("distinct_id"); ok {
		if s, ok := v.(string); ok {
			ev.DistinctID = s
		}
	}
	if v, ok := record.GetData("properties"); ok {
		if m, ok := v.(map[string]interface{}); ok {
			ev.Properties = m
		}
	}
	if v, ok := record.GetData("$set"); ok {
		if m, ok := v.(map[string]interface{}); ok {
			ev.Set = m
		}
	}
	if v, ok := record.GetData("timestamp"); ok {
		if s, ok := v.(string); ok {
			ev.Timestamp = s
		}
	}
	return ev
}

// credentialBool parses an optional boolean credential.
func credentialBool(cfg *config.BaseConfig, key string, def bool) (bool, error) {
	raw, ok := cfg.Security.Credentials[key]
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.Wrapf(err, errors.ErrorTypeConfig, "invalid boolean credential %q", key)
	}
	return v, nil
}

// transportConfig derives HTTP transport settings from the connector
// config. The transport stays bare on the export path: retries, rate
// limiting, and circuit breaking wrap each track call at the connector
// layer instead.
func transportConfig(cfg *config.BaseConfig) *clients.HTTPConfig {
	httpCfg := clients.DefaultHTTPConfig()
	if cfg.Timeouts.Request > 0 {
		httpCfg.RequestTimeout = cfg.Timeouts.Request
	}
	httpCfg.SlowRequestThreshold = cfg.Timeouts.SlowRequest
	if cfg.Security.TLSSkipVerify {
		httpCfg.InsecureSkipVerify = true
	}
	httpCfg.RateLimit = 0
	httpCfg.CircuitBreakerEnabled = false
	return httpCfg
}
