package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/brazesync/pkg/config"
	"github.com/ajitpratap0/brazesync/pkg/connector/core"
	"github.com/ajitpratap0/brazesync/pkg/errors"
	"github.com/ajitpratap0/brazesync/pkg/pool"
)

// memSource streams pre-built records, then optionally a terminal
// error.
type memSource struct {
	records []*pool.Record
	failure error
}

func (s *memSource) Initialize(ctx context.Context, cfg *config.BaseConfig) error { return nil }

func (s *memSource) Read(ctx context.Context) (*core.RecordStream, error) {
	records := make(chan *pool.Record, len(s.records))
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		defer close(records)
		for _, r := range s.records {
			records <- r
		}
		if s.failure != nil {
			errs <- s.failure
		}
	}()
	return &core.RecordStream{Records: records, Errors: errs}, nil
}

func (s *memSource) ReadBatch(ctx context.Context, batchSize int) (*core.BatchStream, error) {
	return nil, errors.New(errors.ErrorTypeInternal, "not implemented")
}
func (s *memSource) Close(ctx context.Context) error          { return nil }
func (s *memSource) GetPosition() core.Position               { return nil }
func (s *memSource) SetPosition(position core.Position) error { return nil }
func (s *memSource) GetState() core.State                     { return nil }
func (s *memSource) SetState(state core.State) error          { return nil }
func (s *memSource) Health(ctx context.Context) error         { return nil }
func (s *memSource) Metrics() map[string]interface{}          { return nil }

// memDestination collects written batch sizes and event names.
type memDestination struct {
	mu      sync.Mutex
	batches [][]string
	failure error
}

func (d *memDestination) Initialize(ctx context.Context, cfg *config.BaseConfig) error { return nil }

func (d *memDestination) Write(ctx context.Context, stream *core.RecordStream) error {
	return errors.New(errors.ErrorTypeInternal, "not implemented")
}

func (d *memDestination) WriteBatch(ctx context.Context, stream *core.BatchStream) error {
	for batch := range stream.Batches {
		if d.failure != nil {
			pool.PutBatchSlice(batch)
			return d.failure
		}
		names := make([]string, 0, len(batch))
		for _, record := range batch {
			if v, ok := record.GetData("event"); ok {
				if s, ok := v.(string); ok {
					names = append(names, s)
				}
			}
			record.Release()
		}
		pool.PutBatchSlice(batch)
		d.mu.Lock()
		d.batches = append(d.batches, names)
		d.mu.Unlock()
	}
	if err, ok := <-stream.Errors; ok && err != nil {
		return err
	}
	return nil
}

func (d *memDestination) Close(ctx context.Context) error  { return nil }
func (d *memDestination) Health(ctx context.Context) error { return nil }
func (d *memDestination) Metrics() map[string]interface{}  { return nil }

func (d *memDestination) written() (batches int, names []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, b := range d.batches {
		names = append(names, b...)
	}
	return len(d.batches), names
}

func eventRecord(name string) *pool.Record {
	r := pool.GetRecord()
	r.ID = pool.GenerateID("evt")
	r.SetData("event", name)
	return r
}

func TestPipelineRun(t *testing.T) {
	t.Run("streams every record in full batches", func(t *testing.T) {
		records := make([]*pool.Record, 10)
		for i := range records {
			records[i] = eventRecord("e")
		}
		source := &memSource{records: records}
		dest := &memDestination{}

		p := New(source, dest, &Config{BatchSize: 4, WorkerCount: 2, FlushInterval: time.Hour}, nil)
		require.NoError(t, p.Run(context.Background()))

		batches, names := dest.written()
		assert.Len(t, names, 10)
		// 4 + 4 + 2: the trailing partial batch flushes on stream end,
		// not on the ticker.
		assert.Equal(t, 3, batches)

		metrics := p.Metrics()
		assert.Equal(t, int64(10), metrics["records_processed"])
		assert.Equal(t, int64(0), metrics["records_failed"])
	})

	t.Run("transforms filter and rewrite records", func(t *testing.T) {
		source := &memSource{records: []*pool.Record{
			eventRecord("keep"), eventRecord("drop"), eventRecord("keep"),
		}}
		dest := &memDestination{}

		p := New(source, dest, &Config{BatchSize: 75, WorkerCount: 1, FlushInterval: time.Hour}, nil)
		p.AddTransform(FilterTransform(func(r *pool.Record) bool {
			v, _ := r.GetData("event")
			return v == "keep"
		}))
		require.NoError(t, p.Run(context.Background()))

		_, names := dest.written()
		assert.Equal(t, []string{"keep", "keep"}, names)
	})

	t.Run("transform errors drop the record and count as failed", func(t *testing.T) {
		source := &memSource{records: []*pool.Record{eventRecord("bad"), eventRecord("good")}}
		dest := &memDestination{}

		p := New(source, dest, &Config{BatchSize: 75, WorkerCount: 1, FlushInterval: time.Hour}, nil)
		p.AddTransform(func(ctx context.Context, r *pool.Record) (*pool.Record, error) {
			if v, _ := r.GetData("event"); v == "bad" {
				return nil, errors.New(errors.ErrorTypeData, "unparseable")
			}
			return r, nil
		})
		require.NoError(t, p.Run(context.Background()))

		_, names := dest.written()
		assert.Equal(t, []string{"good"}, names)
		assert.Equal(t, int64(1), p.Metrics()["records_failed"])
	})

	t.Run("source failure surfaces after the stream drains", func(t *testing.T) {
		source := &memSource{
			records: []*pool.Record{eventRecord("e")},
			failure: errors.New(errors.ErrorTypeConnection, "listing lost"),
		}
		dest := &memDestination{}

		p := New(source, dest, &Config{BatchSize: 75, WorkerCount: 1, FlushInterval: time.Hour}, nil)
		err := p.Run(context.Background())
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))

		// The record that arrived before the failure still made it
		// through.
		_, names := dest.written()
		assert.Equal(t, []string{"e"}, names)
	})

	t.Run("destination failure fails the run", func(t *testing.T) {
		source := &memSource{records: []*pool.Record{eventRecord("e")}}
		dest := &memDestination{failure: errors.New(errors.ErrorTypeAPI, "track rejected")}

		p := New(source, dest, &Config{BatchSize: 1, WorkerCount: 1, FlushInterval: time.Hour}, nil)
		require.Error(t, p.Run(context.Background()))
	})

	t.Run("ticker flushes a stalled partial batch", func(t *testing.T) {
		blocked := make(chan struct{})
		source := &memSource{records: []*pool.Record{eventRecord("early")}}
		dest := &memDestination{}

		// Hold the stream open past one flush interval by parking a
		// transform on the second record.
		slow := eventRecord("late")
		source.records = append(source.records, slow)
		p := New(source, dest, &Config{BatchSize: 75, WorkerCount: 1, FlushInterval: 20 * time.Millisecond}, nil)
		p.AddTransform(func(ctx context.Context, r *pool.Record) (*pool.Record, error) {
			if v, _ := r.GetData("event"); v == "late" {
				<-blocked
			}
			return r, nil
		})

		done := make(chan error, 1)
		go func() { done <- p.Run(context.Background()) }()

		assert.Eventually(t, func() bool {
			batches, _ := dest.written()
			return batches >= 1
		}, 2*time.Second, 10*time.Millisecond, "partial batch never flushed")

		close(blocked)
		require.NoError(t, <-done)
		_, names := dest.written()
		assert.Len(t, names, 2)
	})
}
