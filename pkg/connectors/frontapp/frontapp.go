// Package frontapp connects the Front core API to the fetch and polling engines.
package frontapp

import (
	"context"
	"fmt"
	"net/url"

	"github.com/Sternrassler/connector-poller/pkg/apierror"
	"github.com/Sternrassler/connector-poller/pkg/client"
	"github.com/Sternrassler/connector-poller/pkg/pagination"
)

// BaseURL is the Front API root.
const BaseURL = "https://api2.frontapp.com"

const pageSize = 100

// DefaultOptions follow _pagination.next without a cap.
var DefaultOptions = pagination.Options{Paginate: true}

// Client calls the Front API.
type Client struct {
	api *client.Client
}

// New wraps an API client.
func New(api *client.Client) *Client {
	return &Client{api: api}
}

// NewFromToken creates a client with an API token.
func NewFromToken(token string) (*Client, error) {
	if token == "" {
		return nil, apierror.Configuration("frontapp.token", "must not be empty")
	}
	api, err := client.New(client.DefaultConfig("frontapp", BaseURL, token))
	if err != nil {
		return nil, err
	}
	return New(api), nil
}

type results[T any] struct {
	Pagination struct {
		Next *string `json:"next"`
	} `json:"_pagination"`
	Results []T `json:"_results"`
}

// ListConversations lists conversations in reverse order of last activity.
// params may carry q[statuses][] filters and the paginate/maxResults controls.
func (c *Client) ListConversations(ctx context.Context, params url.Values) (*pagination.Aggregate[Conversation], error) {
	return list[Conversation](ctx, c, "frontapp.conversations", "/conversations", params)
}

// ListInboxConversations lists the conversations of one inbox.
func (c *Client) ListInboxConversations(ctx context.Context, inboxID string, params url.Values) (*pagination.Aggregate[Conversation], error) {
	if inboxID == "" {
		return nil, apierror.Configuration("inbox", "id must not be empty")
	}
	return list[Conversation](ctx, c, "frontapp.inbox_conversations", "/inboxes/"+url.PathEscape(inboxID)+"/conversations", params)
}

// ListConversationMessages lists the messages of a conversation.
func (c *Client) ListConversationMessages(ctx context.Context, conversationID string, params url.Values) (*pagination.Aggregate[Message], error) {
	if conversationID == "" {
		return nil, apierror.Configuration("conversation", "id must not be empty")
	}
	return list[Message](ctx, c, "frontapp.messages", "/conversations/"+url.PathEscape(conversationID)+"/messages", params)
}

// ListInboxes lists the inboxes visible to the token.
func (c *Client) ListInboxes(ctx context.Context, params url.Values) (*pagination.Aggregate[Inbox], error) {
	return list[Inbox](ctx, c, "frontapp.inboxes", "/inboxes", params)
}

// GetConversation returns one conversation.
func (c *Client) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	if id == "" {
		return nil, apierror.Configuration("conversation", "id must not be empty")
	}
	var conv Conversation
	if err := c.api.Get(ctx, "/conversations/"+url.PathEscape(id), nil, &conv); err != nil {
		return nil, fmt.Errorf("get front conversation %s: %w", id, err)
	}
	return &conv, nil
}

func list[T any](ctx context.Context, c *Client, name, path string, params url.Values) (*pagination.Aggregate[T], error) {
	apiParams, opts, err := pagination.SplitControls(params, DefaultOptions)
	if err != nil {
		return nil, err
	}

	fetcher := pagination.NewFetcher[T](func(ctx context.Context, q url.Values) (*pagination.Page[T], error) {
		var res results[T]
		if err := c.api.Get(ctx, path, q, &res); err != nil {
			return nil, err
		}
		page := &pagination.Page[T]{Items: res.Results, Count: len(res.Results)}
		if res.Pagination.Next != nil {
			page.Next = *res.Pagination.Next
		}
		return page, nil
	}, pagination.Config{
		Name:          name,
		CursorParam:   "page_token",
		PageSizeParam: "limit",
		PageSize:      pageSize,
		Cursor:        pagination.PageToken,
	})

	return fetcher.Fetch(ctx, apiParams, opts)
}
