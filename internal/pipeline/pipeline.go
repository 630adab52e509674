// Package pipeline moves event records from a source connector to a
// destination connector. It is the engine behind the run command:
// a source reader streams records, optional transform workers modify
// them in flight, a collector groups them into batches with a periodic
// flush, and a writer hands the batches to the destination.
//
// Records are pooled; whoever drops a record from the flow releases
// it, and the destination releases the records and batch slices it
// consumes.
package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/brazesync/pkg/connector/core"
	"github.com/ajitpratap0/brazesync/pkg/errors"
	"github.com/ajitpratap0/brazesync/pkg/pool"
)

// Transform modifies a record in flight. Returning nil, nil drops the
// record from the flow.
type Transform func(ctx context.Context, record *pool.Record) (*pool.Record, error)

// Config sizes the pipeline.
type Config struct {
	// BatchSize is the number of records per destination batch.
	BatchSize int
	// WorkerCount is the number of parallel transform workers.
	WorkerCount int
	// FlushInterval bounds how long a partial batch may wait.
	FlushInterval time.Duration
}

// DefaultConfig returns sizes that suit the export path: batches align
// with the track payload cap and a short flush keeps replay latency
// low.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:     75,
		WorkerCount:   4,
		FlushInterval: 5 * time.Second,
	}
}

// Pipeline streams records from one source to one destination. Create
// it with New, optionally add transforms, then call Run once.
type Pipeline struct {
	source      core.Source
	destination core.Destination
	transforms  []Transform

	batchSize     int
	workerCount   int
	flushInterval time.Duration

	recordsProcessed int64
	recordsFailed    int64
	startTime        time.Time

	logger *zap.Logger
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// New creates a pipeline. A nil config gets defaults.
func New(source core.Source, destination core.Destination, cfg *Config, logger *zap.Logger) *Pipeline {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		source:        source,
		destination:   destination,
		batchSize:     cfg.BatchSize,
		workerCount:   cfg.WorkerCount,
		flushInterval: cfg.FlushInterval,
		logger:        logger,
	}
}

// AddTransform appends a transform. Transforms run in order for every
// record.
func (p *Pipeline) AddTransform(t Transform) {
	p.transforms = append(p.transforms, t)
}

// Run streams the source to exhaustion and blocks until the
// destination finished writing. The first terminal error wins;
// per-record transform failures are counted and logged without
// stopping the flow.
func (p *Pipeline) Run(ctx context.Context) error {
	p.startTime = time.Now()
	p.logger.Info("starting pipeline",
		zap.Int("batch_size", p.batchSize),
		zap.Int("worker_count", p.workerCount),
		zap.Int("transforms", len(p.transforms)))

	recordChan := make(chan *pool.Record, p.batchSize*2)
	transformedChan := make(chan *pool.Record, p.batchSize*2)
	batchChan := make(chan []*pool.Record, 8)

	var (
		errOnce  sync.Once
		terminal error
	)
	fail := func(err error) {
		if err == nil {
			return
		}
		errOnce.Do(func() { terminal = err })
		p.logger.Error("pipeline error", zap.Error(err))
	}

	p.wg.Add(1)
	go p.readSource(ctx, recordChan, fail)

	workers := p.workerCount
	if workers <= 0 {
		workers = 1
	}
	transformWg := &sync.WaitGroup{}
	for i := 0; i < workers; i++ {
		transformWg.Add(1)
		go func(id int) {
			defer transformWg.Done()
			p.transformWorker(ctx, id, recordChan, transformedChan)
		}(i)
	}
	go func() {
		transformWg.Wait()
		close(transformedChan)
	}()

	p.wg.Add(1)
	go p.collectBatches(ctx, transformedChan, batchChan)

	p.wg.Add(1)
	go p.writeDestination(ctx, batchChan, fail)

	p.wg.Wait()

	duration := time.Since(p.startTime)
	p.mu.Lock()
	processed, failed := p.recordsProcessed, p.recordsFailed
	p.mu.Unlock()
	p.logger.Info("pipeline finished",
		zap.Int64("records_processed", processed),
		zap.Int64("records_failed", failed),
		zap.Duration("duration", duration))

	if terminal != nil {
		return terminal
	}
	return ctx.Err()
}

// readSource forwards the source stream onto the record channel.
func (p *Pipeline) readSource(ctx context.Context, out chan<- *pool.Record, fail func(error)) {
	defer p.wg.Done()
	defer close(out)

	stream, err := p.source.Read(ctx)
	if err != nil {
		fail(errors.Wrap(err, errors.ErrorTypeConnection, "failed to start source read"))
		return
	}

	for {
		select {
		case record, ok := <-stream.Records:
			if !ok {
				// Stream done: a terminal failure, if any, is already
				// buffered on Errors.
				if err, ok := <-stream.Errors; ok && err != nil {
					fail(err)
				}
				return
			}
			select {
			case out <- record:
			case <-ctx.Done():
				record.Release()
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// transformWorker applies the transform chain to each record. A
// transform error or a nil result drops the record.
func (p *Pipeline) transformWorker(ctx context.Context, id int, in <-chan *pool.Record, out chan<- *pool.Record) {
	logger := p.logger.With(zap.Int("worker", id))

	for record := range in {
		dropped := false
		for _, transform := range p.transforms {
			next, err := transform(ctx, record)
			if err != nil {
				logger.Warn("transform failed, dropping record",
					zap.String("record_id", record.ID),
					zap.Error(err))
				record.Release()
				p.mu.Lock()
				p.recordsFailed++
				p.mu.Unlock()
				dropped = true
				break
			}
			if next == nil {
				record.Release()
				dropped = true
				break
			}
			record = next
		}
		if dropped {
			continue
		}
		select {
		case out <- record:
		case <-ctx.Done():
			record.Release()
			return
		}
	}
}

// collectBatches groups records into pooled batch slices, flushing on
// size and on the ticker so a trickle of records never stalls.
func (p *Pipeline) collectBatches(ctx context.Context, in <-chan *pool.Record, out chan<- []*pool.Record) {
	defer p.wg.Done()
	defer close(out)

	batch := pool.GetBatchSlice(p.batchSize)
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		select {
		case out <- batch:
			batch = pool.GetBatchSlice(p.batchSize)
		case <-ctx.Done():
		}
	}

	for {
		select {
		case record, ok := <-in:
			if !ok {
				flush()
				return
			}
			batch = append(batch, record)
			if len(batch) >= p.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			flush()
			return
		}
	}
}

// writeDestination bridges collected batches onto a BatchStream the
// destination consumes. WriteBatch returns after the batch channel
// closes, so the error channel is closed once the forwarding loop is
// done and the write has finished.
func (p *Pipeline) writeDestination(ctx context.Context, in <-chan []*pool.Record, fail func(error)) {
	defer p.wg.Done()

	batches := make(chan []*pool.Record, 4)
	errs := make(chan error, 1)
	stream := &core.BatchStream{Batches: batches, Errors: errs}

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		if err := p.destination.WriteBatch(ctx, stream); err != nil {
			fail(errors.Wrap(err, errors.ErrorTypeConnection, "destination write failed"))
		}
	}()

	for batch := range in {
		select {
		case batches <- batch:
			p.mu.Lock()
			p.recordsProcessed += int64(len(batch))
			p.mu.Unlock()
		case <-ctx.Done():
			pool.PutBatchSlice(batch)
		}
	}
	close(batches)
	close(errs)
	<-writeDone
}

// Metrics snapshots pipeline counters.
func (p *Pipeline) Metrics() map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.startTime)
	throughput := 0.0
	if elapsed > 0 {
		throughput = float64(p.recordsProcessed) / elapsed.Seconds()
	}
	return map[string]interface{}{
		"records_processed": p.recordsProcessed,
		"records_failed":    p.recordsFailed,
		"duration":          elapsed.String(),
		"throughput_rps":    throughput,
		"batch_size":        p.batchSize,
		"worker_count":      p.workerCount,
	}
}

// FilterTransform drops records the predicate rejects. The replay path
// uses it to restrict a JSON-lines file to selected event names.
func FilterTransform(predicate func(*pool.Record) bool) Transform {
	return func(ctx context.Context, record *pool.Record) (*pool.Record, error) {
		if predicate(record) {
			return record, nil
		}
		return nil, nil
	}
}
