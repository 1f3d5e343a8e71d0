package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/mmb-irb/MDDB-meta/pkg/client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for pagination operations.
var (
	mddbPagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mddb_pages_fetched_total",
		Help: "Total collection pages fetched",
	})

	mddbFetchDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mddb_fetch_duration_seconds",
		Help:    "Duration of whole-collection aggregations by mode",
		Buckets: []float64{0.5, 1, 5, 10, 30, 60, 300},
	}, []string{"mode"})

	mddbAggregationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mddb_aggregation_failures_total",
		Help: "Aggregations aborted, by error class",
	}, []string{"class"})
)

// ErrCancelled is returned when the aggregation is cancelled between pages.
var ErrCancelled = errors.New("aggregation cancelled")

// Transport is the HTTP capability the fetcher depends on.
// *client.Client satisfies it. BaseURL is used to report full request
// URLs in errors, matching the URLs client errors carry.
type Transport interface {
	GetJSON(ctx context.Context, q client.Query) ([]byte, error)
	BaseURL() string
}

// Config holds fetcher configuration.
type Config struct {
	// MaxConcurrency is the worker count for FetchAllParallel.
	MaxConcurrency int

	// Timeout bounds each page fetch in parallel mode.
	Timeout time.Duration
}

// DefaultConfig returns safe defaults for a shared scientific API.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        30 * time.Second,
	}
}

// Fetcher aggregates a paginated collection whose pages decode to items of
// type I, projecting each item to T (e.g. Project -> accession string).
type Fetcher[I, T any] struct {
	transport Transport
	itemsKey  string
	project   func(I) T
	config    Config
	logger    zerolog.Logger
}

// New creates a fetcher for a collection whose page items live under
// itemsKey in the response envelope (e.g. "projects").
func New[I, T any](transport Transport, itemsKey string, project func(I) T, config Config) *Fetcher[I, T] {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &Fetcher[I, T]{
		transport: transport,
		itemsKey:  itemsKey,
		project:   project,
		config:    config,
		logger:    log.With().Str("component", "pagination").Str("items_key", itemsKey).Logger(),
	}
}

// page is one decoded response of the collection endpoint.
type page[I any] struct {
	count int64
	items []I
}

// FetchAll retrieves every item matching the base query and returns the
// projections in server order: item order within a page, ascending page
// order across pages. The base query must not set the page parameter; the
// fetcher owns pagination. Any page failure aborts the whole aggregation.
func (f *Fetcher[I, T]) FetchAll(ctx context.Context, base client.Query, limit int) ([]T, error) {
	start := time.Now()

	first, totalPages, err := f.probe(ctx, base, limit)
	if err != nil {
		mddbAggregationFailuresTotal.WithLabelValues(failureClass(err)).Inc()
		return nil, err
	}

	out := make([]T, 0, first.count)
	for _, item := range first.items {
		out = append(out, f.project(item))
	}

	for pageNum := 2; pageNum <= totalPages; pageNum++ {
		select {
		case <-ctx.Done():
			mddbAggregationFailuresTotal.WithLabelValues("cancelled").Inc()
			return nil, fmt.Errorf("%w after %d of %d pages: %v", ErrCancelled, pageNum-1, totalPages, ctx.Err())
		default:
		}

		p, _, err := f.fetchPage(ctx, base, limit, pageNum)
		if err != nil {
			mddbAggregationFailuresTotal.WithLabelValues(failureClass(err)).Inc()
			return nil, fmt.Errorf("fetch page %d of %d: %w", pageNum, totalPages, err)
		}

		// A short or empty later page does not re-derive the page count;
		// whatever the page returns is appended as-is.
		for _, item := range p.items {
			out = append(out, f.project(item))
		}
	}

	mddbFetchDurationSeconds.WithLabelValues("sequential").Observe(time.Since(start).Seconds())

	f.logger.Info().
		Int("pages", totalPages).
		Int("items", len(out)).
		Int64("filtered_count", first.count).
		Dur("duration", time.Since(start)).
		Msg("Aggregation complete")

	return out, nil
}

// FetchAllParallel behaves like FetchAll but fans the remaining pages out to
// a worker pool once the probe has fixed the page count. Results are
// reassembled by page index, so the output order is identical to FetchAll.
// The whole aggregation still fails if any single page request fails.
func (f *Fetcher[I, T]) FetchAllParallel(ctx context.Context, base client.Query, limit int) ([]T, error) {
	start := time.Now()

	first, totalPages, err := f.probe(ctx, base, limit)
	if err != nil {
		mddbAggregationFailuresTotal.WithLabelValues(failureClass(err)).Inc()
		return nil, err
	}

	pages := make([][]I, totalPages+1)
	if totalPages > 0 {
		pages[1] = first.items
	}

	if totalPages > 1 {
		workerCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		pageQueue := make(chan int)
		errCh := make(chan error, f.config.MaxConcurrency)

		go func() {
			defer close(pageQueue)
			for pageNum := 2; pageNum <= totalPages; pageNum++ {
				select {
				case pageQueue <- pageNum:
				case <-workerCtx.Done():
					return
				}
			}
		}()

		var wg sync.WaitGroup
		for i := 0; i < f.config.MaxConcurrency; i++ {
			wg.Add(1)
			go f.worker(workerCtx, cancel, base, limit, totalPages, pages, pageQueue, errCh, &wg)
		}
		wg.Wait()
		close(errCh)

		if err := <-errCh; err != nil {
			mddbAggregationFailuresTotal.WithLabelValues(failureClass(err)).Inc()
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			mddbAggregationFailuresTotal.WithLabelValues("cancelled").Inc()
			return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
		}
	}

	out := make([]T, 0, first.count)
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		for _, item := range pages[pageNum] {
			out = append(out, f.project(item))
		}
	}

	mddbFetchDurationSeconds.WithLabelValues("parallel").Observe(time.Since(start).Seconds())

	f.logger.Info().
		Int("pages", totalPages).
		Int("items", len(out)).
		Int64("filtered_count", first.count).
		Int("workers", f.config.MaxConcurrency).
		Dur("duration", time.Since(start)).
		Msg("Parallel aggregation complete")

	return out, nil
}

// worker fetches pages from the queue into the slot for their page index.
// The first failure cancels the pool; workers failing afterwards stay quiet
// so the caller sees the original error.
func (f *Fetcher[I, T]) worker(ctx context.Context, cancel context.CancelFunc, base client.Query, limit, totalPages int, pages [][]I, pageQueue <-chan int, errCh chan<- error, wg *sync.WaitGroup) {
	defer wg.Done()

	for pageNum := range pageQueue {
		pageCtx, cancelPage := context.WithTimeout(ctx, f.config.Timeout)
		p, _, err := f.fetchPage(pageCtx, base, limit, pageNum)
		cancelPage()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			select {
			case errCh <- fmt.Errorf("fetch page %d of %d: %w", pageNum, totalPages, err):
			default:
			}
			cancel()
			return
		}

		pages[pageNum] = p.items
	}
}

// probe fetches page 1, validates the envelope, and derives the page count
// from the filteredCount and the page size the server actually honored.
// A zero filteredCount yields zero total pages and no further requests.
func (f *Fetcher[I, T]) probe(ctx context.Context, base client.Query, limit int) (*page[I], int, error) {
	if limit <= 0 {
		return nil, 0, fmt.Errorf("limit must be positive (got %d)", limit)
	}
	if base.Has("page") {
		return nil, 0, fmt.Errorf("base query must not set the page parameter")
	}

	first, requestURL, err := f.fetchPage(ctx, base, limit, 1)
	if err != nil {
		return nil, 0, err
	}

	if first.count == 0 {
		// A zero filteredCount means an empty result, even if the page
		// body carried items.
		first.items = nil
		return first, 0, nil
	}

	// The server clamps oversized limits silently.  The page size it
	// actually honors is observed from page 1, never assumed from the
	// request.
	effective := len(first.items)
	if effective > limit {
		effective = limit
	}
	if effective == 0 {
		return nil, 0, &client.ProtocolError{
			URL:   requestURL,
			Field: f.itemsKey,
			Err:   fmt.Errorf("empty first page with filteredCount %d", first.count),
		}
	}

	totalPages := int((first.count + int64(effective) - 1) / int64(effective))

	f.logger.Debug().
		Int64("filtered_count", first.count).
		Int("requested_limit", limit).
		Int("effective_limit", effective).
		Int("total_pages", totalPages).
		Msg("Probe complete")

	return first, totalPages, nil
}

// fetchPage requests one page and decodes its envelope. Page 1 is requested
// without a page parameter; the API treats the two as equivalent.
func (f *Fetcher[I, T]) fetchPage(ctx context.Context, base client.Query, limit, pageNum int) (*page[I], string, error) {
	q := base.With("limit", strconv.Itoa(limit))
	if pageNum > 1 {
		q = q.With("page", strconv.Itoa(pageNum))
	}
	requestURL := q.URL(f.transport.BaseURL())

	body, err := f.transport.GetJSON(ctx, q)
	if err != nil {
		return nil, requestURL, err
	}

	p, err := f.decodePage(requestURL, body)
	if err != nil {
		return nil, requestURL, err
	}

	mddbPagesFetchedTotal.Inc()
	return p, requestURL, nil
}

// decodePage validates the response envelope against the wire contract.
func (f *Fetcher[I, T]) decodePage(requestURL string, body []byte) (*page[I], error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &client.TransportError{
			URL: requestURL,
			Err: fmt.Errorf("malformed response body: %w", err),
		}
	}

	countRaw, ok := envelope["filteredCount"]
	if !ok {
		return nil, &client.ProtocolError{
			URL:   requestURL,
			Field: "filteredCount",
			Err:   errors.New("field missing"),
		}
	}
	var countNum json.Number
	if err := json.Unmarshal(countRaw, &countNum); err != nil {
		return nil, &client.ProtocolError{
			URL:   requestURL,
			Field: "filteredCount",
			Err:   fmt.Errorf("not numeric: %w", err),
		}
	}
	count, err := countNum.Int64()
	if err != nil {
		return nil, &client.ProtocolError{
			URL:   requestURL,
			Field: "filteredCount",
			Err:   fmt.Errorf("not an integer: %w", err),
		}
	}
	if count < 0 {
		return nil, &client.ProtocolError{
			URL:   requestURL,
			Field: "filteredCount",
			Err:   fmt.Errorf("negative count %d", count),
		}
	}

	itemsRaw, ok := envelope[f.itemsKey]
	if !ok {
		return nil, &client.ProtocolError{
			URL:   requestURL,
			Field: f.itemsKey,
			Err:   errors.New("field missing"),
		}
	}
	var items []I
	if err := json.Unmarshal(itemsRaw, &items); err != nil {
		return nil, &client.ProtocolError{
			URL:   requestURL,
			Field: f.itemsKey,
			Err:   err,
		}
	}

	return &page[I]{count: count, items: items}, nil
}

// failureClass maps an aggregation error to a metrics label.
func failureClass(err error) string {
	if class := client.Classify(err); class != "" {
		return string(class)
	}
	if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return string(client.ErrorClassCancelled)
	}
	return "other"
}
