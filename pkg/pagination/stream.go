package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/mmb-irb/MDDB-meta/pkg/client"
)

// PageResult is one page of a streaming fetch. Exactly one of Items and Err
// is meaningful; a result with Err set is the last one emitted.
type PageResult[T any] struct {
	// Page is the 1-based page index.
	Page int

	// Items are the page's projected items, in server order.
	Items []T

	// Err is set when the page could not be fetched or the stream was
	// cancelled. It terminates the stream.
	Err error
}

// FetchPages is the streaming variant of FetchAll: it probes page 1, then
// emits one PageResult per page in ascending page order on the returned
// channel. It returns the filteredCount read from the probe, so callers can
// track progress. On a page failure or cancellation the stream emits a final
// PageResult carrying the error and closes; pages already emitted stand as
// the partial result. The channel is closed when the stream ends.
//
// The caller must either drain the channel or cancel ctx when done with it;
// abandoning the channel with a live context leaves the producer goroutine
// blocked on its next send.
func (f *Fetcher[I, T]) FetchPages(ctx context.Context, base client.Query, limit int) (int64, <-chan PageResult[T], error) {
	start := time.Now()

	first, totalPages, err := f.probe(ctx, base, limit)
	if err != nil {
		mddbAggregationFailuresTotal.WithLabelValues(failureClass(err)).Inc()
		return 0, nil, err
	}

	ch := make(chan PageResult[T], 1)

	go func() {
		defer close(ch)
		defer func() {
			mddbFetchDurationSeconds.WithLabelValues("stream").Observe(time.Since(start).Seconds())
		}()

		if totalPages == 0 {
			return
		}

		if !f.emit(ctx, ch, PageResult[T]{Page: 1, Items: projectItems(first.items, f.project)}) {
			return
		}

		for pageNum := 2; pageNum <= totalPages; pageNum++ {
			select {
			case <-ctx.Done():
				mddbAggregationFailuresTotal.WithLabelValues("cancelled").Inc()
				f.emit(ctx, ch, PageResult[T]{
					Page: pageNum,
					Err:  fmt.Errorf("%w after %d of %d pages: %v", ErrCancelled, pageNum-1, totalPages, ctx.Err()),
				})
				return
			default:
			}

			p, _, err := f.fetchPage(ctx, base, limit, pageNum)
			if err != nil {
				mddbAggregationFailuresTotal.WithLabelValues(failureClass(err)).Inc()
				f.emit(ctx, ch, PageResult[T]{
					Page: pageNum,
					Err:  fmt.Errorf("fetch page %d of %d: %w", pageNum, totalPages, err),
				})
				return
			}

			if !f.emit(ctx, ch, PageResult[T]{Page: pageNum, Items: projectItems(p.items, f.project)}) {
				return
			}
		}
	}()

	return first.count, ch, nil
}

// emit sends a result unless the consumer went away.
func (f *Fetcher[I, T]) emit(ctx context.Context, ch chan<- PageResult[T], result PageResult[T]) bool {
	select {
	case ch <- result:
		return true
	case <-ctx.Done():
		return false
	}
}

func projectItems[I, T any](items []I, project func(I) T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		out = append(out, project(item))
	}
	return out
}
