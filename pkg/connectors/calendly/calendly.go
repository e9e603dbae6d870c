// Package calendly connects the Calendly v2 API to the fetch and polling engines.
package calendly

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Sternrassler/connector-poller/pkg/apierror"
	"github.com/Sternrassler/connector-poller/pkg/client"
	"github.com/Sternrassler/connector-poller/pkg/pagination"
)

// BaseURL is the Calendly API root.
const BaseURL = "https://api.calendly.com"

// DefaultOptions mirror the Calendly list endpoints: a single page unless
// pagination is requested, capped at 1000 results.
var DefaultOptions = pagination.Options{Paginate: false, MaxResults: 1000}

// pageSize is the largest count Calendly accepts.
const pageSize = 100

// Client calls the Calendly API.
type Client struct {
	api     *client.Client
	baseURL string
}

// New wraps an API client. baseURL is used to build user and group URIs and
// defaults to BaseURL.
func New(api *client.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = BaseURL
	}
	return &Client{api: api, baseURL: strings.TrimRight(baseURL, "/")}
}

// NewFromToken creates a client for the public API with an OAuth access token.
func NewFromToken(token string) (*Client, error) {
	if token == "" {
		return nil, apierror.Configuration("calendly.token", "must not be empty")
	}
	api, err := client.New(client.DefaultConfig("calendly", BaseURL, token))
	if err != nil {
		return nil, err
	}
	return New(api, BaseURL), nil
}

// UserURI builds the URI of a user from its UUID.
func (c *Client) UserURI(uuid string) string {
	return c.baseURL + "/users/" + uuid
}

// GroupURI builds the URI of a group from its UUID.
func (c *Client) GroupURI(uuid string) string {
	return c.baseURL + "/groups/" + uuid
}

// UUID returns the last path segment of a Calendly URI.
func UUID(uri string) string {
	return uri[strings.LastIndex(uri, "/")+1:]
}

type resource[T any] struct {
	Resource T `json:"resource"`
}

type collection[T any] struct {
	Collection []T `json:"collection"`
	Pagination struct {
		Count    int     `json:"count"`
		NextPage *string `json:"next_page"`
	} `json:"pagination"`
}

// GetUser returns a user by UUID; an empty uuid returns the authenticated user.
func (c *Client) GetUser(ctx context.Context, uuid string) (*User, error) {
	if uuid == "" {
		uuid = "me"
	}
	var res resource[User]
	if err := c.api.Get(ctx, "/users/"+url.PathEscape(uuid), nil, &res); err != nil {
		return nil, fmt.Errorf("get calendly user %s: %w", uuid, err)
	}
	return &res.Resource, nil
}

// DefaultUser returns the URI of the authenticated user. It fails with a
// ConfigurationError when the API returns no user URI.
func (c *Client) DefaultUser(ctx context.Context) (string, error) {
	user, err := c.GetUser(ctx, "")
	if err != nil {
		return "", err
	}
	if user.URI == "" {
		return "", apierror.Configuration("user", "no default user resolvable for the authenticated token")
	}
	return user.URI, nil
}

// GetEvent returns one scheduled event.
func (c *Client) GetEvent(ctx context.Context, uuid string) (*Event, error) {
	if uuid == "" {
		return nil, apierror.Configuration("event", "uuid must not be empty")
	}
	var res resource[Event]
	if err := c.api.Get(ctx, "/scheduled_events/"+url.PathEscape(uuid), nil, &res); err != nil {
		return nil, fmt.Errorf("get calendly event %s: %w", uuid, err)
	}
	return &res.Resource, nil
}

// ListEvents lists scheduled events. userUUID selects a user; otherwise
// params may name an organization or group (UUID or URI). Without any scope
// the authenticated user's events are listed. params may carry the
// paginate and maxResults controls.
func (c *Client) ListEvents(ctx context.Context, params url.Values, userUUID string) (*pagination.Aggregate[Event], error) {
	q := cloneParams(params)
	if userUUID != "" {
		q.Set("user", c.UserURI(userUUID))
	}
	if g := q.Get("group"); g != "" && !strings.HasPrefix(g, "http") {
		q.Set("group", c.GroupURI(g))
	}
	if q.Get("organization") == "" && q.Get("group") == "" && q.Get("user") == "" {
		user, err := c.DefaultUser(ctx)
		if err != nil {
			return nil, err
		}
		q.Set("user", user)
	}
	return list[Event](ctx, c, "calendly.scheduled_events", "/scheduled_events", q)
}

// ListEventInvitees lists the invitees of a scheduled event.
func (c *Client) ListEventInvitees(ctx context.Context, params url.Values, eventUUID string) (*pagination.Aggregate[Invitee], error) {
	if eventUUID == "" {
		return nil, apierror.Configuration("event", "uuid must not be empty")
	}
	path := "/scheduled_events/" + url.PathEscape(eventUUID) + "/invitees"
	return list[Invitee](ctx, c, "calendly.invitees", path, params)
}

// ListEventTypes lists event types, scoped to the authenticated user unless
// params name a user or organization.
func (c *Client) ListEventTypes(ctx context.Context, params url.Values) (*pagination.Aggregate[EventType], error) {
	q := cloneParams(params)
	if q.Get("user") == "" && q.Get("organization") == "" {
		user, err := c.DefaultUser(ctx)
		if err != nil {
			return nil, err
		}
		q.Set("user", user)
	}
	return list[EventType](ctx, c, "calendly.event_types", "/event_types", q)
}

// ListGroups lists the groups of an organization.
func (c *Client) ListGroups(ctx context.Context, params url.Values) (*pagination.Aggregate[Group], error) {
	if params.Get("organization") == "" {
		return nil, apierror.Configuration("organization", "required to list groups")
	}
	return list[Group](ctx, c, "calendly.groups", "/groups", params)
}

// ListOrganizationMembers lists organization memberships.
func (c *Client) ListOrganizationMembers(ctx context.Context, params url.Values) (*pagination.Aggregate[Membership], error) {
	return list[Membership](ctx, c, "calendly.organization_memberships", "/organization_memberships", params)
}

// list drives the page_token pagination shared by all collection endpoints.
func list[T any](ctx context.Context, c *Client, name, path string, params url.Values) (*pagination.Aggregate[T], error) {
	apiParams, opts, err := pagination.SplitControls(params, DefaultOptions)
	if err != nil {
		return nil, err
	}

	fetcher := pagination.NewFetcher[T](func(ctx context.Context, q url.Values) (*pagination.Page[T], error) {
		var res collection[T]
		if err := c.api.Get(ctx, path, q, &res); err != nil {
			return nil, err
		}
		page := &pagination.Page[T]{Items: res.Collection, Count: res.Pagination.Count}
		if res.Pagination.NextPage != nil {
			page.Next = *res.Pagination.NextPage
		}
		return page, nil
	}, pagination.Config{
		Name:          name,
		CursorParam:   "page_token",
		PageSizeParam: "count",
		PageSize:      pageSize,
		Cursor:        pagination.PageToken,
	})

	return fetcher.Fetch(ctx, apiParams, opts)
}

func cloneParams(params url.Values) url.Values {
	q := make(url.Values, len(params))
	for k, v := range params {
		q[k] = append([]string(nil), v...)
	}
	return q
}
