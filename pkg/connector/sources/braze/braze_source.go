// Package braze implements the Braze source connector. One read pass
// walks the enabled analytics resources (campaigns, canvases, custom
// events, KPIs, news feed cards, segments, sessions), flattens each
// series bucket into a single event, and streams the events as records.
package braze

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	brazeapi "github.com/ajitpratap0/brazesync/pkg/braze"
	"github.com/ajitpratap0/brazesync/pkg/clients"
	"github.com/ajitpratap0/brazesync/pkg/config"
	"github.com/ajitpratap0/brazesync/pkg/connector/base"
	"github.com/ajitpratap0/brazesync/pkg/connector/core"
	"github.com/ajitpratap0/brazesync/pkg/errors"
	"github.com/ajitpratap0/brazesync/pkg/pool"
)

// Credential keys recognized by the source.
const (
	credEndpoint = "endpoint"
	credAPIKey   = "api_key"
	credCompress = "compress_requests"
)

// Source streams flattened Braze analytics events. Listing runs inline
// per resource; detail and series fetches fan out through the async
// scheduler so one slow item never blocks a pass.
type Source struct {
	*base.BaseConnector

	client    *brazeapi.Client
	scheduler *brazeapi.AsyncScheduler
	importCfg brazeapi.ImportConfig
	clock     brazeapi.Clock
}

// NewSource creates an uninitialized Braze source.
func NewSource() *Source {
	return &Source{
		BaseConnector: base.NewBaseConnector("braze", core.ConnectorTypeSource, "1.0.0"),
		clock:         brazeapi.SystemClock{},
	}
}

// Initialize validates credentials and builds the API client and the
// task scheduler.
func (s *Source) Initialize(ctx context.Context, cfg *config.BaseConfig) error {
	if err := s.BaseConnector.Initialize(ctx, cfg); err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return err
	}

	importCfg, err := importConfigFrom(cfg)
	if err != nil {
		return err
	}
	s.importCfg = importCfg

	compress, err := credentialBool(cfg, credCompress, cfg.Advanced.IsCompressionEnabled())
	if err != nil {
		return err
	}

	client, err := brazeapi.NewClient(brazeapi.ClientConfig{
		Endpoint:         cfg.Security.Credential(credEndpoint),
		APIKey:           cfg.Security.Credential(credAPIKey),
		HTTP:             transportConfig(cfg),
		CompressRequests: compress,
	}, s.GetLogger())
	if err != nil {
		return err
	}
	s.client = client

	s.scheduler = brazeapi.NewAsyncScheduler(brazeapi.SchedulerConfig{
		Workers:       cfg.Performance.MaxConcurrency,
		QueueSize:     cfg.Performance.BufferSize,
		RetryAttempts: cfg.Reliability.RetryAttempts,
		RetryDelay:    cfg.Reliability.RetryDelay,
	}, s.GetLogger())

	s.GetProgressReporter().Start()

	s.GetLogger().Info("braze source ready",
		zap.Strings("jobs", jobNames(importCfg)),
		zap.Bool("compression", compress))
	return nil
}

// Read starts one import pass and streams every flattened analytics
// event as a record. Records closes when the pass finishes. Per-item
// failures are retried and dropped by the scheduler; only a listing
// failure that loses a whole resource, or an interrupted drain, arrives
// on Errors.
func (s *Source) Read(ctx context.Context) (*core.RecordStream, error) {
	if s.client == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "source is not initialized")
	}

	records := make(chan *pool.Record, s.GetConfig().Performance.BufferSize)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(records)

		emitter := &streamEmitter{
			ctx:      ctx,
			records:  records,
			reporter: s.GetProgressReporter(),
		}
		importer := brazeapi.NewImporter(s.client, emitter, s.scheduler, s.clock, s.GetLogger())
		anchor := brazeapi.LastUTCMidnight(s.clock)

		err := importer.RunAll(ctx, s.importCfg)
		// Drain regardless: a failed listing still leaves scheduled
		// tasks from the other resources in flight.
		if derr := s.scheduler.Drain(ctx); err == nil {
			err = derr
		}
		if err != nil {
			s.UpdateHealth(false, map[string]interface{}{"error": err.Error()})
			errs <- err
			return
		}

		s.UpdateHealth(true, nil)
		if perr := s.SetPosition(dayPosition(brazeapi.ISODateString(anchor))); perr != nil {
			s.GetLogger().Warn("failed to record position", zap.Error(perr))
		}
	}()

	return &core.RecordStream{Records: records, Errors: errs}, nil
}

// ReadBatch groups the record stream into batches. Batch slices come
// from the global pool; consumers release them with pool.PutBatchSlice.
func (s *Source) ReadBatch(ctx context.Context, batchSize int) (*core.BatchStream, error) {
	if batchSize <= 0 {
		batchSize = s.GetConfig().Performance.BatchSize
	}

	stream, err := s.Read(ctx)
	if err != nil {
		return nil, err
	}
	return base.BatchRecords(ctx, stream, batchSize), nil
}

// Close stops the scheduler and releases the API client.
func (s *Source) Close(ctx context.Context) error {
	if s.scheduler != nil {
		s.scheduler.Close()
	}
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.GetLogger().Warn("failed to close braze client", zap.Error(err))
		}
	}
	if rep := s.GetProgressReporter(); rep != nil {
		rep.Stop()
	}
	return s.BaseConnector.Close(ctx)
}

// streamEmitter bridges the importer's emit calls onto the record
// channel of an open Read stream.
type streamEmitter struct {
	ctx      context.Context
	records  chan<- *pool.Record
	reporter *base.ProgressReporter
}

// EmitBatch converts each flattened event into a pooled record. Both
// the stream context and the scheduler context abort a blocked send.
func (e *streamEmitter) EmitBatch(ctx context.Context, events []brazeapi.OutputEvent) error {
	for _, ev := range events {
		record := pool.GetRecord()
		record.ID = pool.GenerateID("evt")
		record.Metadata.Source = "braze"
		record.Metadata.Resource = resourceOf(ev.Event)
		record.SetData("event", ev.Event)
		record.SetData("properties", ev.Properties)
		record.SetData("timestamp", ev.Timestamp)

		select {
		case e.records <- record:
		case <-e.ctx.Done():
			record.Release()
			return e.ctx.Err()
		case <-ctx.Done():
			record.Release()
			return ctx.Err()
		}
	}
	if e.reporter != nil {
		e.reporter.IncrementProcessed(int64(len(events)))
	}
	return nil
}

// resourceOf recovers the resource kind from the event name prefix the
// transformers assign.
func resourceOf(eventName string) string {
	switch {
	case strings.HasPrefix(eventName, "Braze campaign:"):
		return "campaign"
	case strings.HasPrefix(eventName, "Braze canvas:"):
		return "canvas"
	case strings.HasPrefix(eventName, "Braze custom event:"):
		return "event"
	case strings.HasPrefix(eventName, "Braze KPI:"):
		return "kpi"
	case strings.HasPrefix(eventName, "Braze News Feed Card:"):
		return "feed"
	case strings.HasPrefix(eventName, "Braze segment:"):
		return "segment"
	case eventName == "Braze Sessions":
		return "session"
	default:
		return ""
	}
}

// dayPosition anchors a completed pass to its UTC day boundary.
type dayPosition string

func (p dayPosition) String() string { return string(p) }

// Compare orders positions lexically; ISO 8601 UTC strings order by
// instant.
func (p dayPosition) Compare(other core.Position) int {
	if other == nil {
		return 1
	}
	return strings.Compare(string(p), other.String())
}

// importConfigFrom resolves the per-resource import flags. Every flag
// defaults to enabled; absent or blank credentials keep the default.
func importConfigFrom(cfg *config.BaseConfig) (brazeapi.ImportConfig, error) {
	out := brazeapi.DefaultImportConfig()
	flags := []struct {
		key    string
		target *bool
	}{
		{"import_campaigns", &out.Campaigns},
		{"import_canvases", &out.Canvases},
		{"import_custom_events", &out.CustomEvents},
		{"import_kpis", &out.KPIs},
		{"import_feeds", &out.FeedCards},
		{"import_segments", &out.Segments},
		{"import_sessions", &out.Sessions},
	}
	for _, f := range flags {
		v, err := credentialBool(cfg, f.key, *f.target)
		if err != nil {
			return brazeapi.ImportConfig{}, err
		}
		*f.target = v
	}
	return out, nil
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
// config. On the import path rate limiting and circuit breaking run
// inside the transport; per-item retries belong to the scheduler.
func transportConfig(cfg *config.BaseConfig) *clients.HTTPConfig {
	httpCfg := clients.DefaultHTTPConfig()
	if cfg.Timeouts.Request > 0 {
		httpCfg.RequestTimeout = cfg.Timeouts.Request
	}
	httpCfg.SlowRequestThreshold = cfg.Timeouts.SlowRequest
	if cfg.Security.TLSSkipVerify {
		httpCfg.InsecureSkipVerify = true
	}
	httpCfg.CircuitBreakerEnabled = cfg.Reliability.CircuitBreaker
	if cfg.Reliability.RateLimitPerSec > 0 {
		httpCfg.RateLimit = float64(cfg.Reliability.RateLimitPerSec)
		httpCfg.RateBurst = cfg.Reliability.RateLimitPerSec * 2
	}
	return httpCfg
}

func jobNames(cfg brazeapi.ImportConfig) []string {
	kinds := cfg.Jobs()
	names := make([]string, len(kinds))
	for i, kind := range kinds {
		names[i] = string(kind)
	}
	return names
}
