package base

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ProgressReporter tracks records processed through a connector and
// periodically logs progress, throughput, and an ETA when a total is
// known.
type ProgressReporter struct {
	logger *zap.Logger
	name   string

	totalRecords     int64
	processedRecords int64
	startTime        time.Time
	reportInterval   time.Duration

	latencyHistory []time.Duration
	historyMutex   sync.RWMutex

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewProgressReporter creates a new progress reporter
func NewProgressReporter(logger *zap.Logger, name string) *ProgressReporter {
	return &ProgressReporter{
		logger:         logger.With(zap.String("component", "progress"), zap.String("connector", name)),
		name:           name,
		startTime:      time.Now(),
		reportInterval: 10 * time.Second,
		latencyHistory: make([]time.Duration, 0, 100),
		stopCh:         make(chan struct{}),
	}
}

// Start begins periodic progress reporting
func (pr *ProgressReporter) Start() {
	pr.wg.Add(1)
	go func() {
		defer pr.wg.Done()
		ticker := time.NewTicker(pr.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-pr.stopCh:
				return
			case <-ticker.C:
				pr.reportCurrentProgress()
			}
		}
	}()
}

// Stop stops reporting and logs a final summary. Safe to call more
// than once.
func (pr *ProgressReporter) Stop() {
	var stopped bool
	pr.stopOnce.Do(func() {
		close(pr.stopCh)
		stopped = true
	})
	pr.wg.Wait()
	if stopped {
		pr.reportFinalProgress()
	}
}

// SetTotal sets the total number of records to process
func (pr *ProgressReporter) SetTotal(total int64) {
	atomic.StoreInt64(&pr.totalRecords, total)
}

// ReportProgress updates the progress
func (pr *ProgressReporter) ReportProgress(processed, total int64) {
	atomic.StoreInt64(&pr.processedRecords, processed)
	if total > 0 {
		atomic.StoreInt64(&pr.totalRecords, total)
	}
}

// IncrementProcessed increments the processed count
func (pr *ProgressReporter) IncrementProcessed(count int64) {
	atomic.AddInt64(&pr.processedRecords, count)
}

// ReportLatency records one operation latency. The last 100 samples
// feed GetAverageLatency.
func (pr *ProgressReporter) ReportLatency(latency time.Duration) {
	pr.historyMutex.Lock()
	defer pr.historyMutex.Unlock()

	pr.latencyHistory = append(pr.latencyHistory, latency)
	if len(pr.latencyHistory) > 100 {
		pr.latencyHistory = pr.latencyHistory[1:]
	}
}

// GetProgress returns current progress
func (pr *ProgressReporter) GetProgress() (processed, total int64) {
	return atomic.LoadInt64(&pr.processedRecords), atomic.LoadInt64(&pr.totalRecords)
}

// GetElapsedTime returns time since start
func (pr *ProgressReporter) GetElapsedTime() time.Duration {
	return time.Since(pr.startTime)
}

// GetThroughput returns the average records per second since start.
func (pr *ProgressReporter) GetThroughput() float64 {
	processed := atomic.LoadInt64(&pr.processedRecords)
	elapsed := time.Since(pr.startTime).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(processed) / elapsed
}

// GetETA estimates time remaining. Returns 0 when no total is set or
// processing has not started.
func (pr *ProgressReporter) GetETA() time.Duration {
	processed := atomic.LoadInt64(&pr.processedRecords)
	total := atomic.LoadInt64(&pr.totalRecords)

	if processed == 0 || total == 0 || processed >= total {
		return 0
	}

	rate := pr.GetThroughput()
	if rate == 0 {
		return 0
	}

	remaining := total - processed
	return time.Duration(float64(remaining)/rate) * time.Second
}

// GetAverageLatency returns average latency over the recent samples.
func (pr *ProgressReporter) GetAverageLatency() time.Duration {
	pr.historyMutex.RLock()
	defer pr.historyMutex.RUnlock()

	if len(pr.latencyHistory) == 0 {
		return 0
	}

	total := time.Duration(0)
	for _, l := range pr.latencyHistory {
		total += l
	}
	return total / time.Duration(len(pr.latencyHistory))
}

func (pr *ProgressReporter) reportCurrentProgress() {
	processed := atomic.LoadInt64(&pr.processedRecords)
	total := atomic.LoadInt64(&pr.totalRecords)

	fields := []zap.Field{
		zap.Int64("processed", processed),
		zap.Float64("throughput", pr.GetThroughput()),
		zap.Duration("elapsed", pr.GetElapsedTime()),
	}
	if total > 0 {
		fields = append(fields,
			zap.Int64("total", total),
			zap.Float64("percentage", float64(processed)/float64(total)*100),
			zap.Duration("eta", pr.GetETA()),
		)
	}

	pr.logger.Info("progress update", fields...)
}

func (pr *ProgressReporter) reportFinalProgress() {
	processed := atomic.LoadInt64(&pr.processedRecords)
	total := atomic.LoadInt64(&pr.totalRecords)

	fields := []zap.Field{
		zap.Int64("total_processed", processed),
		zap.Duration("total_time", pr.GetElapsedTime()),
		zap.Float64("avg_throughput", pr.GetThroughput()),
	}
	if avg := pr.GetAverageLatency(); avg > 0 {
		fields = append(fields, zap.Duration("avg_latency", avg))
	}
	if total > 0 {
		fields = append(fields, zap.Float64("completion_percentage", float64(processed)/float64(total)*100))
	}

	pr.logger.Info("processing completed", fields...)
}

// SetReportInterval sets the progress reporting interval. Call before
// Start.
func (pr *ProgressReporter) SetReportInterval(interval time.Duration) {
	if interval > 0 {
		pr.reportInterval = interval
	}
}
