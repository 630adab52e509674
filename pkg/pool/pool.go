// Package pool provides typed object pooling for brazesync, built on
// sync.Pool. The pooled Record is the currency of the pipeline: inbound
// analytics events on the export path and emitted Braze analytics on the
// import path both travel as Records.
package pool

import (
	"sync"
	"sync/atomic"
	"time"
)

// Pool is a typed object pool with allocation and usage statistics.
type Pool[T any] struct {
	pool  sync.Pool
	new   func() T
	reset func(T)
	stats struct {
		allocated int64
		inUse     int64
		hits      int64
	}
}

// New creates a typed pool. reset, if non-nil, runs before an object is
// returned to the pool.
func New[T any](new func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{
		new:   new,
		reset: reset,
	}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		return new()
	}
	return p
}

// Get retrieves an object from the pool, allocating if empty.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	obj := p.pool.Get().(T)
	atomic.AddInt64(&p.stats.hits, 1)
	return obj
}

// Put returns an object to the pool, resetting it first.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	atomic.AddInt64(&p.stats.inUse, -1)
	p.pool.Put(obj)
}

// Stats returns allocation count, objects in use, and hit count.
func (p *Pool[T]) Stats() (allocated, inUse, hits int64) {
	return atomic.LoadInt64(&p.stats.allocated),
		atomic.LoadInt64(&p.stats.inUse),
		atomic.LoadInt64(&p.stats.hits)
}

// RecordMetadata carries provenance for a record.
type RecordMetadata struct {
	// Source identifies the producing connector
	Source string `json:"source,omitempty"`
	// Resource is the Braze resource kind the record derives from
	// (campaign, canvas, event, kpi, feed, segment, session)
	Resource string `json:"resource,omitempty"`
	// Timestamp is when the record was created or captured
	Timestamp time.Time `json:"timestamp"`
	// Custom holds extension fields
	Custom map[string]interface{} `json:"custom,omitempty"`
}

// Record is the unified record type flowing between sources and
// destinations. Obtain records from GetRecord and release them with
// Release when done.
type Record struct {
	// ID is a unique identifier for the record
	ID string `json:"id"`
	// Data contains the record payload
	Data map[string]interface{} `json:"data"`
	// Metadata carries provenance and timing
	Metadata RecordMetadata `json:"metadata"`
}

var (
	// RecordPool recycles Record objects with pre-sized data maps.
	RecordPool = New(
		func() *Record {
			return &Record{
				Data: make(map[string]interface{}, 16),
			}
		},
		func(r *Record) {
			r.ID = ""
			for k := range r.Data {
				delete(r.Data, k)
			}
			if r.Metadata.Custom != nil {
				for k := range r.Metadata.Custom {
					delete(r.Metadata.Custom, k)
				}
			}
			r.Metadata = RecordMetadata{}
		},
	)

	// MapPool recycles map[string]interface{} payloads.
	MapPool = New(
		func() map[string]interface{} {
			return make(map[string]interface{}, 16)
		},
		func(m map[string]interface{}) {
			for k := range m {
				delete(m, k)
			}
		},
	)

	// BatchSlicePool recycles record batches used by the pipeline.
	BatchSlicePool = New(
		func() []*Record {
			return make([]*Record, 0, 1000)
		},
		func(s []*Record) {
			for i := range s {
				s[i] = nil
			}
		},
	)

	idBufferPool = New(
		func() []byte {
			return make([]byte, 0, 64)
		},
		nil,
	)
)

var idCounter uint64

// GetRecord retrieves a Record from the global pool with a fresh
// timestamp. Return it with PutRecord or record.Release.
func GetRecord() *Record {
	r := RecordPool.Get()
	r.Metadata.Timestamp = time.Now()
	return r
}

// PutRecord returns a Record to the global pool. Safe with nil.
func PutRecord(record *Record) {
	if record == nil {
		return
	}
	if record.Metadata.Custom != nil {
		PutMap(record.Metadata.Custom)
		record.Metadata.Custom = nil
	}
	RecordPool.Put(record)
}

// GetMap retrieves an empty map from the global pool.
func GetMap() map[string]interface{} {
	return MapPool.Get()
}

// PutMap returns a map to the global pool. Safe with nil.
func PutMap(m map[string]interface{}) {
	if m != nil {
		MapPool.Put(m)
	}
}

// GetBatchSlice retrieves a zero-length record slice with at least the
// given capacity.
func GetBatchSlice(capacity int) []*Record {
	batch := BatchSlicePool.Get()
	if cap(batch) < capacity {
		batch = make([]*Record, 0, capacity)
	}
	return batch[:0]
}

// PutBatchSlice returns a batch slice to the global pool. Safe with nil.
func PutBatchSlice(batch []*Record) {
	if batch != nil {
		BatchSlicePool.Put(batch)
	}
}

// GenerateID returns "prefix-<n>" from an atomic counter. Safe for
// concurrent use.
func GenerateID(prefix string) string {
	buf := idBufferPool.Get()
	defer idBufferPool.Put(buf[:0])

	id := atomic.AddUint64(&idCounter, 1)

	buf = append(buf, prefix...)
	buf = append(buf, '-')
	buf = appendUint64(buf, id)

	return string(buf)
}

func appendUint64(buf []byte, n uint64) []byte {
	if n == 0 {
		return append(buf, '0')
	}

	temp := n
	digits := 0
	for temp > 0 {
		temp /= 10
		digits++
	}

	start := len(buf)
	buf = buf[:start+digits]

	for i := digits - 1; i >= 0; i-- {
		buf[start+i] = byte('0' + n%10)
		n /= 10
	}

	return buf
}

// SetData sets a payload field, initializing the map if needed.
func (r *Record) SetData(key string, value interface{}) {
	if r.Data == nil {
		r.Data = GetMap()
	}
	r.Data[key] = value
}

// GetData retrieves a payload field.
func (r *Record) GetData(key string) (interface{}, bool) {
	if r.Data == nil {
		return nil, false
	}
	v, ok := r.Data[key]
	return v, ok
}

// SetMetadata sets a custom metadata field.
func (r *Record) SetMetadata(key string, value interface{}) {
	if r.Metadata.Custom == nil {
		r.Metadata.Custom = GetMap()
	}
	r.Metadata.Custom[key] = value
}

// SetTimestamp sets the record timestamp.
func (r *Record) SetTimestamp(t time.Time) {
	r.Metadata.Timestamp = t
}

// GetTimestamp returns the record timestamp.
func (r *Record) GetTimestamp() time.Time {
	return r.Metadata.Timestamp
}

// Release returns the record to the global pool.
func (r *Record) Release() {
	PutRecord(r)
}

// NewRecord creates an unpooled record with the given source and data.
// Prefer GetRecord on hot paths.
func NewRecord(source string, data map[string]interface{}) *Record {
	if data == nil {
		data = make(map[string]interface{}, 16)
	}
	return &Record{
		ID:   GenerateID("rec"),
		Data: data,
		Metadata: RecordMetadata{
			Source:    source,
			Timestamp: time.Now(),
		},
	}
}
