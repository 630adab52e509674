package base

import (
	"context"

	"github.com/ajitpratap0/brazesync/pkg/connector/core"
	"github.com/ajitpratap0/brazesync/pkg/pool"
)

// BatchRecords regroups a record stream into batches of up to batchSize
// records, preserving order. Batch slices come from the global pool;
// consumers release them with pool.PutBatchSlice. A terminal error from
// the underlying stream is forwarded after the last batch.
func BatchRecords(ctx context.Context, stream *core.RecordStream, batchSize int) *core.BatchStream {
	batches := make(chan []*pool.Record, 4)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(batches)

		batch := pool.GetBatchSlice(batchSize)
		flush := func() bool {
			if len(batch) == 0 {
				return true
			}
			select {
			case batches <- batch:
				batch = pool.GetBatchSlice(batchSize)
				return true
			case <-ctx.Done():
				return false
			}
		}

		for record := range stream.Records {
			batch = append(batch, record)
			if len(batch) >= batchSize {
				if !flush() {
					releaseBatch(batch)
					return
				}
			}
		}
		if !flush() {
			releaseBatch(batch)
			return
		}
		pool.PutBatchSlice(batch)

		if err, ok := <-stream.Errors; ok && err != nil {
			errs <- err
		}
	}()

	return &core.BatchStream{Batches: batches, Errors: errs}
}

func releaseBatch(batch []*pool.Record) {
	for _, record := range batch {
		record.Release()
	}
	pool.PutBatchSlice(batch)
}
