package calendly

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/connector-poller/pkg/emit"
	"github.com/Sternrassler/connector-poller/pkg/pagination"
)

// EventsSource polls newly created scheduled events.
type EventsSource struct {
	client *Client
	scope  url.Values
}

// NewEventsSource creates a source. scope selects user, group or
// organization the same way as ListEvents params; nil means the
// authenticated user.
func NewEventsSource(c *Client, scope url.Values) *EventsSource {
	return &EventsSource{client: c, scope: cloneParams(scope)}
}

// Fetch lists events newest-scheduled first. Calendly cannot filter on
// creation time, so since is left to the poller's filter.
func (s *EventsSource) Fetch(ctx context.Context, since time.Time, maxResults int) ([]Event, error) {
	q := cloneParams(s.scope)
	q.Set("sort", "start_time:desc")
	q.Set(pagination.ParamPaginate, "true")
	q.Set(pagination.ParamMaxResults, strconv.Itoa(maxResults))

	agg, err := s.client.ListEvents(ctx, q, "")
	if err != nil {
		return nil, err
	}
	return agg.Items, nil
}

// Envelope identifies an event by its UUID and orders it by creation time.
func (s *EventsSource) Envelope(e Event) emit.Envelope {
	return emit.Envelope{
		ID:      UUID(e.URI),
		TS:      e.CreatedAt,
		Summary: "New event: " + e.Name,
	}
}
