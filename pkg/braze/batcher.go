package braze

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// MaxBatchEntries caps each array of a /users/track payload.
const MaxBatchEntries = 75

// Tracker posts one track batch.
type Tracker interface {
	Track(ctx context.Context, req TrackRequest) error
}

// PackBatches greedily packs shaped events into track requests. Each
// contribution lands whole in the last open batch unless either array
// would overflow the cap, in which case a fresh batch opens. Empty
// contributions are skipped outright and never open a batch.
func PackBatches(shaped []ShapedEvent) []TrackRequest {
	var batches []TrackRequest
	for _, s := range shaped {
		if s.Empty() {
			continue
		}
		if len(batches) == 0 {
			batches = append(batches, TrackRequest{})
		} else {
			last := &batches[len(batches)-1]
			if len(last.Attributes)+len(s.Attributes) > MaxBatchEntries ||
				len(last.Events)+len(s.Events) > MaxBatchEntries {
				batches = append(batches, TrackRequest{})
			}
		}
		last := &batches[len(batches)-1]
		last.Attributes = append(last.Attributes, s.Attributes...)
		last.Events = append(last.Events, s.Events...)
	}
	return batches
}

// DispatchBatches sends every batch concurrently and waits for all of
// them. Batches are independent, so one failure does not cancel the
// rest; the first error surfaces only after every dispatch finished,
// letting the caller retry the export as a whole.
func DispatchBatches(ctx context.Context, tracker Tracker, batches []TrackRequest) error {
	var g errgroup.Group
	for _, batch := range batches {
		g.Go(func() error {
			return tracker.Track(ctx, batch)
		})
	}
	return g.Wait()
}
