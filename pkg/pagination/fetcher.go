// Package pagination provides sequential cursor-paginated fetching for SaaS list endpoints
package pagination

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/Sternrassler/connector-poller/pkg/apierror"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Engine-local controls. They are never sent to the remote API.
const (
	ParamPaginate   = "paginate"
	ParamMaxResults = "maxResults"
)

// Config holds fetcher configuration
type Config struct {
	// Name labels logs and metrics (e.g. "calendly.scheduled_events")
	Name string
	// CursorParam is the query parameter that carries the cursor on follow-up requests
	CursorParam string
	// PageSizeParam is the query parameter for the page size; empty disables it
	PageSizeParam string
	// PageSize is sent as PageSizeParam when > 0
	PageSize int
	// Cursor extracts the next cursor from a page's next field
	Cursor CursorFunc
	// StopOnShortPage ends pagination when a page holds fewer than PageSize items
	StopOnShortPage bool
}

// DefaultConfig returns the page_token convention
func DefaultConfig() Config {
	return Config{
		Name:          "default",
		CursorParam:   "page_token",
		PageSizeParam: "count",
		PageSize:      100,
		Cursor:        PageToken,
	}
}

// Options are the caller-facing pagination controls
type Options struct {
	// Paginate follows next cursors when true; otherwise exactly one page is fetched
	Paginate bool
	// MaxResults caps the aggregate; 0 means no explicit cap
	MaxResults int
}

// Page is one response unit from the remote API
type Page[T any] struct {
	Items []T
	// Count is the item count reported by the API
	Count int
	// Next is the raw next-page field; "" when absent
	Next string
}

// PageFunc fetches a single page. It must be idempotent with respect to the cursor parameter.
type PageFunc[T any] func(ctx context.Context, query url.Values) (*Page[T], error)

// Aggregate accumulates items across pages in server order
type Aggregate[T any] struct {
	Items []T
	// Count always equals len(Items)
	Count int
	// Pages is the number of page fetches performed
	Pages int
	// NextPage is the next field of the last fetched page
	NextPage string
	// Truncated is set when items were dropped to honour MaxResults
	Truncated bool
}

func (a *Aggregate[T]) add(items []T) {
	a.Items = append(a.Items, items...)
	a.Count = len(a.Items)
}

func (a *Aggregate[T]) truncate(max int) {
	if max <= 0 || len(a.Items) <= max {
		return
	}
	a.Items = a.Items[:max]
	a.Count = max
	a.Truncated = true
}

// Fetcher drives a PageFunc until the cursor runs out or the cap is reached
type Fetcher[T any] struct {
	fetch  PageFunc[T]
	config Config
	logger zerolog.Logger
}

// NewFetcher creates a new fetcher
func NewFetcher[T any](fetch PageFunc[T], config Config) *Fetcher[T] {
	defaults := DefaultConfig()
	if config.Name == "" {
		config.Name = defaults.Name
	}
	if config.CursorParam == "" {
		config.CursorParam = defaults.CursorParam
	}
	if config.Cursor == nil {
		config.Cursor = defaults.Cursor
	}

	return &Fetcher[T]{
		fetch:  fetch,
		config: config,
		logger: log.With().Str("component", "pagination").Str("fetcher", config.Name).Logger(),
	}
}

// WithLogger replaces the fetcher's logger
func (f *Fetcher[T]) WithLogger(logger zerolog.Logger) *Fetcher[T] {
	f.logger = logger.With().Str("fetcher", f.config.Name).Logger()
	return f
}

// Fetch pages through the endpoint and returns the ordered, capped aggregate.
// A failing page aborts the whole call; no partial aggregate is returned.
func (f *Fetcher[T]) Fetch(ctx context.Context, query url.Values, opts Options) (*Aggregate[T], error) {
	if opts.MaxResults < 0 {
		return nil, apierror.Configuration(ParamMaxResults, "must be >= 0 (got %d)", opts.MaxResults)
	}

	start := time.Now()
	q := cloneQuery(query)

	// the engine owns the cursor
	if q.Has(f.config.CursorParam) {
		f.logger.Debug().
			Str("param", f.config.CursorParam).
			Msg("Dropping caller-supplied cursor")
		q.Del(f.config.CursorParam)
	}
	if f.config.PageSizeParam != "" && f.config.PageSize > 0 && !q.Has(f.config.PageSizeParam) {
		q.Set(f.config.PageSizeParam, fmt.Sprintf("%d", f.config.PageSize))
	}

	agg := &Aggregate[T]{}
	seen := make(map[string]struct{})

	for {
		if err := ctx.Err(); err != nil {
			fetchFailuresTotal.WithLabelValues(f.config.Name).Inc()
			return nil, fmt.Errorf("fetch %s page %d: %w", f.config.Name, agg.Pages+1, err)
		}

		page, err := f.fetch(ctx, cloneQuery(q))
		if err != nil {
			fetchFailuresTotal.WithLabelValues(f.config.Name).Inc()
			f.logger.Warn().
				Err(err).
				Int("page", agg.Pages+1).
				Int("discarded_items", agg.Count).
				Msg("Page fetch failed")
			if !apierror.IsConfiguration(err) {
				err = apierror.AsTransport(err)
			}
			return nil, fmt.Errorf("fetch %s page %d: %w", f.config.Name, agg.Pages+1, err)
		}
		agg.Pages++
		pagesFetchedTotal.WithLabelValues(f.config.Name).Inc()

		if page == nil {
			page = &Page[T]{}
		}
		agg.add(page.Items)
		agg.NextPage = page.Next

		f.logger.Debug().
			Int("page", agg.Pages).
			Int("items", len(page.Items)).
			Int("total", agg.Count).
			Bool("has_next", page.Next != "").
			Msg("Page fetched")

		cursor, ok := f.nextCursor(page, agg, opts, seen)
		if !ok {
			break
		}
		q.Set(f.config.CursorParam, cursor)
	}

	if agg.Count > opts.MaxResults && opts.MaxResults > 0 {
		truncationsTotal.WithLabelValues(f.config.Name).Inc()
	}
	agg.truncate(opts.MaxResults)

	fetchDuration.WithLabelValues(f.config.Name).Observe(time.Since(start).Seconds())
	f.logger.Debug().
		Int("pages", agg.Pages).
		Int("items", agg.Count).
		Bool("truncated", agg.Truncated).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return agg, nil
}

// nextCursor decides whether another page is requested and returns its
// cursor. Termination is gated on cursor presence, never on item count alone.
func (f *Fetcher[T]) nextCursor(page *Page[T], agg *Aggregate[T], opts Options, seen map[string]struct{}) (string, bool) {
	if !opts.Paginate {
		return "", false
	}

	cursor, ok := f.config.Cursor(page.Next)
	if !ok {
		return "", false
	}

	if _, dup := seen[cursor]; dup {
		f.logger.Warn().
			Str("cursor", cursor).
			Int("page", agg.Pages).
			Msg("Cursor repeated - stopping pagination")
		return "", false
	}
	seen[cursor] = struct{}{}

	if f.config.StopOnShortPage && f.config.PageSize > 0 && len(page.Items) < f.config.PageSize {
		return "", false
	}

	if opts.MaxResults > 0 && agg.Count >= opts.MaxResults {
		return "", false
	}

	return cursor, true
}

func cloneQuery(query url.Values) url.Values {
	q := make(url.Values, len(query))
	for k, v := range query {
		q[k] = append([]string(nil), v...)
	}
	return q
}
