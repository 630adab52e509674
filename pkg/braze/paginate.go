package braze

import "context"

// Page sizes returned by the list endpoints. A page shorter than its
// threshold is the last one.
const (
	// ItemPageSize applies to the campaign, canvas, card, and segment lists.
	ItemPageSize = 100
	// EventPageSize applies to the custom event name list.
	EventPageSize = 250
)

// PageFetch retrieves one page of results for a 1-based page index.
type PageFetch[T any] func(ctx context.Context, page int) ([]T, error)

// Paginate concatenates pages until one comes back shorter than the
// threshold. A page exactly at the threshold forces one more fetch, so
// a result set that is a multiple of the page size costs one trailing
// empty page. There is no upper bound on page count.
func Paginate[T any](ctx context.Context, threshold int, fetch PageFetch[T]) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		items, err := fetch(ctx, page)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if len(items) < threshold {
			return all, nil
		}
	}
}
