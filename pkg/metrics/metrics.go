// Package metrics provides performance tracking and observability for
// brazesync using Prometheus metrics. It offers collectors for API call
// volume, sync throughput, and pipeline health.
//
// # Basic Usage
//
//	// Record an API call
//	metrics.APIRequests.WithLabelValues("/campaigns/list", "200").Inc()
//
//	// Track call latency
//	timer := metrics.NewTimer("campaigns_list")
//	resp := fetch()
//	metrics.RequestDuration.WithLabelValues("/campaigns/list").Observe(timer.Stop().Seconds())
//
//	// Track pipeline throughput
//	tracker := metrics.NewThroughputTracker("braze", "jsonfile")
//	for record := range records {
//	    process(record)
//	    tracker.Increment(1)
//	}
//	throughput := tracker.GetAndReset()
//
// # Metric Types
//
// Counter: Monotonically increasing values (e.g., total events exported)
// Gauge: Values that can go up or down (e.g., active jobs)
// Histogram: Distribution of values (e.g., latency percentiles)
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APIRequests counts Braze REST calls by endpoint path and HTTP
	// status ("error" for transport failures).
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brazesync_api_requests_total",
			Help: "Total number of Braze API requests",
		},
		[]string{"endpoint", "status"},
	)

	// RequestDuration tracks Braze API latency per endpoint path.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brazesync_api_request_duration_seconds",
			Help:    "Braze API request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint"},
	)

	// ImportItems counts items pulled from Braze after activity
	// filtering, by resource kind (campaign, canvas, event, ...).
	ImportItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brazesync_import_items_total",
			Help: "Total number of Braze items imported",
		},
		[]string{"resource"},
	)

	// SeriesPoints counts flattened analytics records produced per
	// resource kind.
	SeriesPoints = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brazesync_series_points_total",
			Help: "Total number of analytics series points produced",
		},
		[]string{"resource"},
	)

	// EventsExported counts events shipped to /users/track.
	EventsExported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "brazesync_events_exported_total",
			Help: "Total number of events exported to Braze",
		},
	)

	// AttributesExported counts attribute objects shipped to /users/track.
	AttributesExported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "brazesync_attributes_exported_total",
			Help: "Total number of attribute updates exported to Braze",
		},
	)

	// ExportBatches counts /users/track batch requests by outcome.
	ExportBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brazesync_export_batches_total",
			Help: "Total number of export batches sent",
		},
		[]string{"status"},
	)

	// EventsCaptured counts flattened analytics events delivered to the
	// capture endpoint.
	EventsCaptured = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "brazesync_events_captured_total",
			Help: "Total number of analytics events delivered to the capture endpoint",
		},
	)

	// CaptureBatches counts capture endpoint requests by outcome.
	CaptureBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brazesync_capture_batches_total",
			Help: "Total number of capture batches sent",
		},
		[]string{"status"},
	)

	// ActiveJobs tracks sync jobs currently running.
	ActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "brazesync_active_jobs",
			Help: "Number of sync jobs currently running",
		},
	)

	// RecordsProcessed tracks records moved through pipelines.
	// Labels: source (connector name), destination (connector name), status (success/failure)
	RecordsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brazesync_records_processed_total",
			Help: "Total number of records processed",
		},
		[]string{"source", "destination", "status"},
	)

	// ProcessingLatency tracks the distribution of processing latencies in nanoseconds.
	// Labels: operation (read/transform/write), source, destination
	ProcessingLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "brazesync_processing_latency_nanoseconds",
			Help: "Processing latency in nanoseconds",
			Buckets: []float64{
				100,    // 100ns - Ultra-low latency operations
				1000,   // 1μs - Memory operations
				10000,  // 10μs - Fast I/O operations
				100000, // 100μs - Network operations
				1e6,    // 1ms - Standard processing
				1e7,    // 10ms - Complex transformations
				1e8,    // 100ms - Batch operations
				1e9,    // 1s - Large batch processing
			},
		},
		[]string{"operation", "source", "destination"},
	)

	// QueueDepth tracks queue depths
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "brazesync_queue_depth",
			Help: "Current queue depth",
		},
		[]string{"queue_name"},
	)

	// Throughput tracks records per second
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "brazesync_throughput_records_per_second",
			Help: "Current throughput in records per second",
		},
		[]string{"source", "destination"},
	)
)

// Collector carries per-component identity and start time for health
// reporting. Components record metrics through the package-level
// collectors; this only tracks uptime.
type Collector struct {
	name      string
	startTime time.Time
}

// NewCollector creates a new metrics collector for a component.
// The name parameter identifies the component in metrics labels.
func NewCollector(name string) *Collector {
	return &Collector{
		name:      name,
		startTime: time.Now(),
	}
}

// GetAll returns all current metric values
func (c *Collector) GetAll() map[string]interface{} {
	return map[string]interface{}{
		"component":  c.name,
		"start_time": c.startTime,
		"uptime":     time.Since(c.startTime).Seconds(),
	}
}

// StartTime returns when the collector was created
func (c *Collector) StartTime() time.Time {
	return c.startTime
}

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
// The name parameter is for identification in logs or metrics.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Stop stops the timer and returns the elapsed duration since creation.
// The timer can be stopped multiple times, each returning the total
// elapsed time since creation.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker tracks throughput (records per second) over time windows.
// It automatically calculates and reports throughput metrics when queried.
// Thread-safe for concurrent use.
type ThroughputTracker struct {
	mu          sync.Mutex
	count       int64
	lastReset   time.Time
	source      string
	destination string
}

// NewThroughputTracker creates a new throughput tracker for a pipeline.
// The source and destination parameters identify the pipeline endpoints
// and are used as metric labels.
func NewThroughputTracker(source, destination string) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset:   time.Now(),
		source:      source,
		destination: destination,
	}
}

// Increment adds n to the record count. Safe for concurrent use.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset calculates the current throughput (records/second),
// updates the Prometheus metric, resets the counter, and returns
// the calculated throughput. Safe for concurrent use.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed

	t.count = 0
	t.lastReset = time.Now()

	Throughput.WithLabelValues(t.source, t.destination).Set(throughput)

	return throughput
}
