package frontapp

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/connector-poller/pkg/emit"
	"github.com/Sternrassler/connector-poller/pkg/pagination"
	"github.com/Sternrassler/connector-poller/pkg/poll"
)

// FirstRunSentinel is the watermark used before the first successful pass.
var FirstRunSentinel = time.UnixMilli(1_000_000_000)

// PollConfig returns the poller configuration for Front sources.
func PollConfig(name, key string) poll.Config {
	cfg := poll.DefaultConfig(name, key)
	cfg.Sentinel = FirstRunSentinel
	return cfg
}

// ConversationsSource polls newly created conversations, optionally within
// one inbox.
type ConversationsSource struct {
	client  *Client
	inboxID string
	params  url.Values
}

// NewConversationsSource creates a source. params may carry q[statuses][]
// filters; an empty inboxID lists all conversations.
func NewConversationsSource(c *Client, inboxID string, params url.Values) *ConversationsSource {
	q := url.Values{}
	for k, v := range params {
		q[k] = append([]string(nil), v...)
	}
	return &ConversationsSource{client: c, inboxID: inboxID, params: q}
}

// Fetch lists conversations. Front orders by last activity, so creation
// time is left to the poller's filter.
func (s *ConversationsSource) Fetch(ctx context.Context, since time.Time, maxResults int) ([]Conversation, error) {
	q := url.Values{}
	for k, v := range s.params {
		q[k] = append([]string(nil), v...)
	}
	q.Set(pagination.ParamMaxResults, strconv.Itoa(maxResults))

	var (
		agg *pagination.Aggregate[Conversation]
		err error
	)
	if s.inboxID != "" {
		agg, err = s.client.ListInboxConversations(ctx, s.inboxID, q)
	} else {
		agg, err = s.client.ListConversations(ctx, q)
	}
	if err != nil {
		return nil, err
	}
	return agg.Items, nil
}

// Envelope identifies a conversation by id with its creation time in ms.
func (s *ConversationsSource) Envelope(conv Conversation) emit.Envelope {
	summary := conv.Subject
	if summary == "" {
		summary = "New conversation " + conv.ID
	}
	return emit.Envelope{
		ID:      conv.ID,
		TS:      Timestamp(conv.CreatedAt),
		Summary: summary,
	}
}
