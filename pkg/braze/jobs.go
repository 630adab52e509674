package braze

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/brazesync/pkg/errors"
	"github.com/ajitpratap0/brazesync/pkg/metrics"
	"github.com/ajitpratap0/brazesync/pkg/observability"
)

// JobKind identifies one import job family.
type JobKind string

// Import job families.
const (
	JobCampaigns    JobKind = "campaigns"
	JobCanvases     JobKind = "canvases"
	JobCustomEvents JobKind = "custom_events"
	JobKPIs         JobKind = "kpis"
	JobFeedCards    JobKind = "feed_cards"
	JobSegments     JobKind = "segments"
	JobSessions     JobKind = "sessions"
)

// ImportConfig selects which job families a pass runs. The zero value
// runs nothing.
type ImportConfig struct {
	Campaigns    bool
	Canvases     bool
	CustomEvents bool
	KPIs         bool
	FeedCards    bool
	Segments     bool
	Sessions     bool
}

// DefaultImportConfig enables every job family.
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		Campaigns:    true,
		Canvases:     true,
		CustomEvents: true,
		KPIs:         true,
		FeedCards:    true,
		Segments:     true,
		Sessions:     true,
	}
}

// Jobs lists the enabled job kinds in a stable order.
func (c ImportConfig) Jobs() []JobKind {
	var kinds []JobKind
	if c.Campaigns {
		kinds = append(kinds, JobCampaigns)
	}
	if c.Canvases {
		kinds = append(kinds, JobCanvases)
	}
	if c.CustomEvents {
		kinds = append(kinds, JobCustomEvents)
	}
	if c.KPIs {
		kinds = append(kinds, JobKPIs)
	}
	if c.FeedCards {
		kinds = append(kinds, JobFeedCards)
	}
	if c.Segments {
		kinds = append(kinds, JobSegments)
	}
	if c.Sessions {
		kinds = append(kinds, JobSessions)
	}
	return kinds
}

// API is the slice of the Braze client the importer consumes.
type API interface {
	ListCampaigns(ctx context.Context, page int) ([]Item, error)
	CampaignDetails(ctx context.Context, id string) (*Details, error)
	CampaignSeries(ctx context.Context, id, endingAt string) ([]CampaignDataPoint, error)
	ListCanvases(ctx context.Context, page int) ([]Item, error)
	CanvasDetails(ctx context.Context, id string) (*Details, error)
	CanvasSeries(ctx context.Context, id, endingAt string) (*CanvasSeriesData, error)
	ListEvents(ctx context.Context, page int) ([]string, error)
	EventSeries(ctx context.Context, event, endingAt string) ([]EventDataPoint, error)
	KPISeries(ctx context.Context, kind KPIKind, endingAt string) ([]KPIDataPoint, error)
	ListFeedCards(ctx context.Context, page int) ([]Item, error)
	FeedCardDetails(ctx context.Context, id string) (*Details, error)
	FeedCardSeries(ctx context.Context, id, endingAt string) ([]FeedDataPoint, error)
	ListSegments(ctx context.Context, page int) ([]Item, error)
	SegmentDetails(ctx context.Context, id string) (*Details, error)
	SegmentSeries(ctx context.Context, id, endingAt string) ([]SegmentDataPoint, error)
	SessionSeries(ctx context.Context, endingAt string) ([]SessionDataPoint, error)
}

// Emitter receives flattened analytics events for delivery downstream.
type Emitter interface {
	EmitBatch(ctx context.Context, events []OutputEvent) error
}

// Importer walks the Braze analytics surface and emits one flat event
// per resource and time bucket. Listing happens inline; every item's
// detail and series fetch is handed to the scheduler as its own task,
// so a slow or failing resource never blocks the pass. Items that still
// fail after the scheduler's retries are dropped for the pass.
type Importer struct {
	api       API
	emitter   Emitter
	scheduler Scheduler
	clock     Clock
	logger    *zap.Logger
	tracer    *observability.ConnectorTracer
}

// NewImporter wires an importer. A nil clock falls back to the system
// clock.
func NewImporter(api API, emitter Emitter, scheduler Scheduler, clock Clock, logger *zap.Logger) *Importer {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{
		api:       api,
		emitter:   emitter,
		scheduler: scheduler,
		clock:     clock,
		logger:    logger,
		tracer:    observability.NewConnectorTracer("source", "braze"),
	}
}

// Run schedules one import pass for a single job kind.
func (imp *Importer) Run(ctx context.Context, kind JobKind) error {
	return imp.runKind(ctx, kind, LastUTCMidnight(imp.clock))
}

// RunAll schedules a pass for every enabled job kind. The midnight
// anchor is computed once so the activity filter and every series fetch
// agree on the day boundary even across a midnight rollover.
func (imp *Importer) RunAll(ctx context.Context, cfg ImportConfig) error {
	lastMidnight := LastUTCMidnight(imp.clock)
	var firstErr error
	for _, kind := range cfg.Jobs() {
		if err := imp.runKind(ctx, kind, lastMidnight); err != nil {
			imp.logger.Error("import job failed",
				zap.String("job", string(kind)),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (imp *Importer) runKind(ctx context.Context, kind JobKind, lastMidnight time.Time) error {
	return imp.tracer.TraceOperation(ctx, "import."+string(kind), func(ctx context.Context) error {
		switch kind {
		case JobCampaigns:
			return imp.importCampaigns(ctx, lastMidnight)
		case JobCanvases:
			return imp.importCanvases(ctx, lastMidnight)
		case JobCustomEvents:
			return imp.importCustomEvents(ctx, lastMidnight)
		case JobKPIs:
			return imp.importKPIs(ctx, lastMidnight)
		case JobFeedCards:
			return imp.importFeedCards(ctx, lastMidnight)
		case JobSegments:
			return imp.importSegments(ctx, lastMidnight)
		case JobSessions:
			return imp.importSessions(ctx, lastMidnight)
		default:
			return errors.Newf(errors.ErrorTypeValidation, "unknown job kind %q", kind)
		}
	})
}

// emit delivers one item's events and bumps the import counters.
func (imp *Importer) emit(ctx context.Context, resource string, events []OutputEvent) error {
	if len(events) == 0 {
		return nil
	}
	if err := imp.emitter.EmitBatch(ctx, events); err != nil {
		return err
	}
	metrics.ImportItems.WithLabelValues(resource).Inc()
	metrics.SeriesPoints.WithLabelValues(resource).Add(float64(len(events)))
	return nil
}

func (imp *Importer) importCampaigns(ctx context.Context, lastMidnight time.Time) error {
	items, err := Paginate(ctx, ItemPageSize, imp.api.ListCampaigns)
	if err != nil {
		return err
	}
	endingAt := ISODateString(lastMidnight)
	for _, item := range items {
		imp.scheduler.RunNow("campaign:"+item.ID, func(ctx context.Context) error {
			return imp.trackCampaign(ctx, item, lastMidnight, endingAt)
		})
	}
	imp.logger.Info("scheduled campaign imports", zap.Int("count", len(items)))
	return nil
}

func (imp *Importer) trackCampaign(ctx context.Context, item Item, lastMidnight time.Time, endingAt string) error {
	details, err := imp.api.CampaignDetails(ctx, item.ID)
	if err != nil {
		return err
	}
	if !IsActive(details, lastMidnight) {
		imp.logger.Debug("skipping inactive campaign",
			zap.String("id", item.ID),
			zap.String("name", item.Name))
		return nil
	}
	series, err := imp.api.CampaignSeries(ctx, item.ID, endingAt)
	if err != nil {
		return err
	}
	return imp.emit(ctx, "campaigns", TransformCampaignSeries(item.Name, series))
}

func (imp *Importer) importCanvases(ctx context.Context, lastMidnight time.Time) error {
	items, err := Paginate(ctx, ItemPageSize, imp.api.ListCanvases)
	if err != nil {
		return err
	}
	endingAt := ISODateString(lastMidnight)
	for _, item := range items {
		imp.scheduler.RunNow("canvas:"+item.ID, func(ctx context.Context) error {
			return imp.trackCanvas(ctx, item, lastMidnight, endingAt)
		})
	}
	imp.logger.Info("scheduled canvas imports", zap.Int("count", len(items)))
	return nil
}

func (imp *Importer) trackCanvas(ctx context.Context, item Item, lastMidnight time.Time, endingAt string) error {
	details, err := imp.api.CanvasDetails(ctx, item.ID)
	if err != nil {
		return err
	}
	if !IsActive(details, lastMidnight) {
		imp.logger.Debug("skipping inactive canvas",
			zap.String("id", item.ID),
			zap.String("name", item.Name))
		return nil
	}
	data, err := imp.api.CanvasSeries(ctx, item.ID, endingAt)
	if err != nil {
		return err
	}
	return imp.emit(ctx, "canvases", TransformCanvasSeries(item.Name, data))
}

// Custom events have no details endpoint, so every listed name is
// fetched.
func (imp *Importer) importCustomEvents(ctx context.Context, lastMidnight time.Time) error {
	names, err := Paginate(ctx, EventPageSize, imp.api.ListEvents)
	if err != nil {
		return err
	}
	endingAt := ISODateString(lastMidnight)
	for _, name := range names {
		imp.scheduler.RunNow("custom_event:"+name, func(ctx context.Context) error {
			series, err := imp.api.EventSeries(ctx, name, endingAt)
			if err != nil {
				return err
			}
			return imp.emit(ctx, "custom_events", TransformEventSeries(name, series))
		})
	}
	imp.logger.Info("scheduled custom event imports", zap.Int("count", len(names)))
	return nil
}

var kpiKinds = []KPIKind{KPINewUsers, KPIDAU, KPIMAU, KPIUninstalls}

func (imp *Importer) importKPIs(ctx context.Context, lastMidnight time.Time) error {
	endingAt := ISODateString(lastMidnight)
	for _, kind := range kpiKinds {
		imp.scheduler.RunNow("kpi:"+string(kind), func(ctx context.Context) error {
			series, err := imp.api.KPISeries(ctx, kind, endingAt)
			if err != nil {
				return err
			}
			return imp.emit(ctx, "kpis", TransformKPISeries(kind, series))
		})
	}
	return nil
}

func (imp *Importer) importFeedCards(ctx context.Context, lastMidnight time.Time) error {
	items, err := Paginate(ctx, ItemPageSize, imp.api.ListFeedCards)
	if err != nil {
		return err
	}
	endingAt := ISODateString(lastMidnight)
	for _, item := range items {
		imp.scheduler.RunNow("feed_card:"+item.ID, func(ctx context.Context) error {
			return imp.trackFeedCard(ctx, item, lastMidnight, endingAt)
		})
	}
	imp.logger.Info("scheduled feed card imports", zap.Int("count", len(items)))
	return nil
}

func (imp *Importer) trackFeedCard(ctx context.Context, item Item, lastMidnight time.Time, endingAt string) error {
	details, err := imp.api.FeedCardDetails(ctx, item.ID)
	if err != nil {
		return err
	}
	if !IsActive(details, lastMidnight) {
		imp.logger.Debug("skipping inactive feed card",
			zap.String("id", item.ID),
			zap.String("name", item.Name))
		return nil
	}
	series, err := imp.api.FeedCardSeries(ctx, item.ID, endingAt)
	if err != nil {
		return err
	}
	return imp.emit(ctx, "feed_cards", TransformFeedSeries(item.Name, series))
}

func (imp *Importer) importSegments(ctx context.Context, lastMidnight time.Time) error {
	items, err := Paginate(ctx, ItemPageSize, imp.api.ListSegments)
	if err != nil {
		return err
	}
	endingAt := ISODateString(lastMidnight)
	for _, item := range items {
		imp.scheduler.RunNow("segment:"+item.ID, func(ctx context.Context) error {
			return imp.trackSegment(ctx, item, lastMidnight, endingAt)
		})
	}
	imp.logger.Info("scheduled segment imports", zap.Int("count", len(items)))
	return nil
}

func (imp *Importer) trackSegment(ctx context.Context, item Item, lastMidnight time.Time, endingAt string) error {
	details, err := imp.api.SegmentDetails(ctx, item.ID)
	if err != nil {
		return err
	}
	if !IsActive(details, lastMidnight) {
		imp.logger.Debug("skipping inactive segment",
			zap.String("id", item.ID),
			zap.String("name", item.Name))
		return nil
	}
	series, err := imp.api.SegmentSeries(ctx, item.ID, endingAt)
	if err != nil {
		return err
	}
	return imp.emit(ctx, "segments", TransformSegmentSeries(item.Name, series))
}

func (imp *Importer) importSessions(ctx context.Context, lastMidnight time.Time) error {
	endingAt := ISODateString(lastMidnight)
	imp.scheduler.RunNow("sessions", func(ctx context.Context) error {
		series, err := imp.api.SessionSeries(ctx, endingAt)
		if err != nil {
			return err
		}
		return imp.emit(ctx, "sessions", TransformSessionSeries(series))
	})
	return nil
}
