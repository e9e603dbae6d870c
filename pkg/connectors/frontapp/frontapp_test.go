package frontapp

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/Sternrassler/connector-poller/internal/testutil"
	"github.com/Sternrassler/connector-poller/pkg/apierror"
	"github.com/Sternrassler/connector-poller/pkg/client"
	"github.com/Sternrassler/connector-poller/pkg/emit"
	"github.com/Sternrassler/connector-poller/pkg/poll"
	"github.com/Sternrassler/connector-poller/pkg/ratelimit"
	"github.com/Sternrassler/connector-poller/pkg/watermark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *testutil.MockAPI) {
	t.Helper()
	mock := testutil.NewMockAPI()
	t.Cleanup(mock.Close)

	cfg := client.DefaultConfig("frontapp", mock.URL(), "test-token")
	cfg.MaxRetries = 0
	cfg.RateLimit = ratelimit.Config{Name: "frontapp"}
	api, err := client.New(cfg)
	require.NoError(t, err)
	return New(api), mock
}

func renderResults(items []any, next, _ string) any {
	var nextURL any
	if next != "" {
		nextURL = next
	}
	return map[string]any{
		"_links":      map[string]any{"self": "https://api2.frontapp.com/conversations"},
		"_pagination": map[string]any{"next": nextURL},
		"_results":    items,
	}
}

func conversation(id string, createdAt float64) map[string]any {
	return map[string]any{"id": id, "subject": "Re: " + id, "status": "unassigned", "created_at": createdAt}
}

func TestTimestamp(t *testing.T) {
	tests := []struct {
		seconds float64
		want    int64
	}{
		{1_700_000_000, 1_700_000_000_000},
		{1_700_000_000.123, 1_700_000_000_123},
		{1_700_000_000.9996, 1_700_000_001_000},
		{0, 0},
	}
	for _, tt := range tests {
		if got := Timestamp(tt.seconds).UnixMilli(); got != tt.want {
			t.Errorf("Timestamp(%v) = %d, want %d", tt.seconds, got, tt.want)
		}
	}
}

func TestListConversations_FollowsNextURL(t *testing.T) {
	c, mock := newTestClient(t)
	mock.SetPaged("/conversations", testutil.Paged{
		TokenParam: "page_token",
		Token:      func(i int) string { return "tok" + string(rune('A'+i)) },
		Pages: [][]any{
			{conversation("cnv_1", 1_700_000_003), conversation("cnv_2", 1_700_000_002)},
			{conversation("cnv_3", 1_700_000_001)},
		},
		Render: renderResults,
	})

	agg, err := c.ListConversations(context.Background(), url.Values{"q[statuses][]": {"unassigned"}})
	require.NoError(t, err)

	assert.Equal(t, 3, agg.Count)
	assert.Equal(t, 2, agg.Pages)
	assert.Empty(t, agg.NextPage)

	queries := mock.Queries("/conversations")
	require.Len(t, queries, 2)
	assert.Equal(t, "100", queries[0].Get("limit"))
	assert.Equal(t, "unassigned", queries[0].Get("q[statuses][]"))
	assert.Equal(t, "tokB", queries[1].Get("page_token"))
	assert.Equal(t, "unassigned", queries[1].Get("q[statuses][]"))
}

func TestListConversations_MaxResults(t *testing.T) {
	c, mock := newTestClient(t)
	mock.SetPaged("/conversations", testutil.Paged{
		TokenParam: "page_token",
		Pages: [][]any{
			{conversation("cnv_1", 3), conversation("cnv_2", 2)},
			{conversation("cnv_3", 1)},
		},
		Render: renderResults,
	})

	agg, err := c.ListConversations(context.Background(), url.Values{"maxResults": {"1"}})
	require.NoError(t, err)
	assert.Equal(t, 1, agg.Count)
	assert.True(t, agg.Truncated)
	assert.Equal(t, 1, mock.GetRequestCount())
}

func TestListConversations_FrontError(t *testing.T) {
	c, mock := newTestClient(t)
	mock.SetResponse("/conversations", testutil.MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"_error":{"status":404,"title":"Not found","message":"Unknown inbox"}}`,
	})

	_, err := c.ListConversations(context.Background(), nil)
	var te *apierror.TransportError
	require.True(t, errors.As(err, &te), "error = %v", err)
	assert.Equal(t, "Not found", te.Title)
	assert.Equal(t, "Unknown inbox", te.Message)
}

func TestListInboxesAndMessages(t *testing.T) {
	c, mock := newTestClient(t)
	mock.SetPaged("/inboxes", testutil.Paged{
		TokenParam: "page_token",
		Pages:      [][]any{{map[string]any{"id": "inb_1", "name": "Support"}}},
		Render:     renderResults,
	})
	mock.SetPaged("/conversations/cnv_1/messages", testutil.Paged{
		TokenParam: "page_token",
		Pages:      [][]any{{map[string]any{"id": "msg_1", "type": "email", "is_inbound": true, "created_at": 1_700_000_000.5}}},
		Render:     renderResults,
	})

	inboxes, err := c.ListInboxes(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, inboxes.Items, 1)
	assert.Equal(t, "Support", inboxes.Items[0].Name)

	msgs, err := c.ListConversationMessages(context.Background(), "cnv_1", nil)
	require.NoError(t, err)
	require.Len(t, msgs.Items, 1)
	assert.True(t, msgs.Items[0].IsInbound)

	_, err = c.ListConversationMessages(context.Background(), "", nil)
	assert.True(t, apierror.IsConfiguration(err))
	_, err = c.ListInboxConversations(context.Background(), "", nil)
	assert.True(t, apierror.IsConfiguration(err))
}

func TestGetConversation(t *testing.T) {
	c, mock := newTestClient(t)
	mock.SetJSON("/conversations/cnv_9", conversation("cnv_9", 1_700_000_000))

	conv, err := c.GetConversation(context.Background(), "cnv_9")
	require.NoError(t, err)
	assert.Equal(t, "Re: cnv_9", conv.Subject)
}

func TestConversationsSource_FirstRun(t *testing.T) {
	c, mock := newTestClient(t)
	mock.SetPaged("/inboxes/inb_1/conversations", testutil.Paged{
		TokenParam: "page_token",
		Pages: [][]any{{
			conversation("cnv_new", 1_700_000_100.25),
			conversation("cnv_mid", 1_700_000_050),
			conversation("cnv_old", 900_000), // before the sentinel
		}},
		Render: renderResults,
	})

	ctx := context.Background()
	store := watermark.NewMemoryStore()
	key := watermark.Key{Connector: "frontapp", Instance: "inb_1"}.String()
	sink := emit.NewMemorySink[Conversation]()

	p := poll.New[Conversation](
		NewConversationsSource(c, "inb_1", nil),
		store, sink,
		PollConfig("frontapp", key),
		poll.NewerThanWatermark[Conversation](),
	)

	res, err := p.Poll(ctx, poll.Deploy)
	require.NoError(t, err)
	assert.True(t, res.FirstRun)
	assert.True(t, res.Previous.Equal(FirstRunSentinel))
	assert.Equal(t, 2, res.Emitted)

	events := sink.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "cnv_mid", events[0].Envelope.ID)
	assert.Equal(t, "cnv_new", events[1].Envelope.ID)

	wm, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_100_250), wm.UnixMilli())

	assert.Equal(t, "100", mock.Queries("/inboxes/inb_1/conversations")[0].Get("limit"))
}

func TestConversationsSource_Envelope(t *testing.T) {
	src := NewConversationsSource(nil, "", nil)

	env := src.Envelope(Conversation{ID: "cnv_1", CreatedAt: 1_700_000_000})
	assert.Equal(t, "New conversation cnv_1", env.Summary)
	assert.True(t, env.TS.Equal(time.UnixMilli(1_700_000_000_000)))
	require.NoError(t, env.Validate())
}
