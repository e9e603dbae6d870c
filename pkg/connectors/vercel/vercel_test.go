package vercel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
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

const newest = int64(1_700_000_000_000)

func newTestClient(t *testing.T) (*Client, *testutil.MockAPI) {
	t.Helper()
	mock := testutil.NewMockAPI()
	t.Cleanup(mock.Close)

	cfg := client.DefaultConfig("vercel", mock.URL(), "test-token")
	cfg.MaxRetries = 0
	cfg.RateLimit = ratelimit.Config{Name: "vercel"}
	api, err := client.New(cfg)
	require.NoError(t, err)
	return New(api), mock
}

// untilToken is the created timestamp the server hands out as the cursor of page i.
func untilToken(i int) string {
	return strconv.FormatInt(newest-int64(i)*1_000_000, 10)
}

func render(resource string) func(items []any, next, token string) any {
	return func(items []any, next, token string) any {
		var nextTS any
		if token != "" {
			nextTS, _ = strconv.ParseInt(token, 10, 64)
		}
		return map[string]any{
			resource:     items,
			"pagination": map[string]any{"count": len(items), "next": nextTS, "prev": nil},
		}
	}
}

// deploymentPages builds pages of deployments, newest first.
func deploymentPages(sizes ...int) [][]any {
	var pages [][]any
	n := 0
	for _, size := range sizes {
		page := make([]any, 0, size)
		for i := 0; i < size; i++ {
			n++
			page = append(page, map[string]any{
				"uid":     fmt.Sprintf("dpl_%d", n),
				"name":    "web",
				"state":   StateReady,
				"created": newest - int64(n)*1000,
			})
		}
		pages = append(pages, page)
	}
	return pages
}

func TestListDeployments_FollowsUntilCursor(t *testing.T) {
	c, mock := newTestClient(t)
	mock.SetPaged("/v6/deployments", testutil.Paged{
		TokenParam: "until",
		Token:      untilToken,
		Pages:      deploymentPages(100, 100, 30),
		Render:     render("deployments"),
	})

	agg, err := c.ListDeployments(context.Background(), url.Values{
		"teamId":     {"team_1"},
		"maxResults": {"500"},
	})
	require.NoError(t, err)

	assert.Equal(t, 230, agg.Count)
	assert.Equal(t, 3, agg.Pages)
	assert.False(t, agg.Truncated)
	assert.Equal(t, "dpl_1", agg.Items[0].UID)
	assert.Equal(t, "dpl_230", agg.Items[229].UID)

	queries := mock.Queries("/v6/deployments")
	require.Len(t, queries, 3)
	assert.Equal(t, "100", queries[0].Get("limit"))
	assert.Equal(t, "team_1", queries[0].Get("teamId"))
	assert.False(t, queries[0].Has("until"))
	assert.Equal(t, untilToken(1), queries[1].Get("until"))
	assert.Equal(t, untilToken(2), queries[2].Get("until"))
}

func TestListDeployments_StopsOnShortPage(t *testing.T) {
	c, mock := newTestClient(t)
	mock.SetPaged("/v6/deployments", testutil.Paged{
		TokenParam: "until",
		Token:      untilToken,
		Pages:      deploymentPages(30, 10),
		Render:     render("deployments"),
	})

	agg, err := c.ListDeployments(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 30, agg.Count)
	assert.Equal(t, 1, agg.Pages)
	assert.Equal(t, untilToken(1), agg.NextPage)
	assert.Equal(t, 1, mock.GetRequestCount())
}

func TestListDeployments_DefaultCap(t *testing.T) {
	c, mock := newTestClient(t)
	mock.SetPaged("/v6/deployments", testutil.Paged{
		TokenParam: "until",
		Token:      untilToken,
		Pages:      deploymentPages(100, 100),
		Render:     render("deployments"),
	})

	agg, err := c.ListDeployments(context.Background(), url.Values{})
	require.NoError(t, err)

	assert.Equal(t, 100, agg.Count)
	assert.Equal(t, 1, mock.GetRequestCount())
}

func TestListDeployments_IgnoresCallerCursor(t *testing.T) {
	c, mock := newTestClient(t)
	mock.SetPaged("/v6/deployments", testutil.Paged{
		TokenParam: "until",
		Token:      untilToken,
		Pages:      deploymentPages(5),
		Render:     render("deployments"),
	})

	_, err := c.ListDeployments(context.Background(), url.Values{"until": {"42"}})
	require.NoError(t, err)
	assert.False(t, mock.Queries("/v6/deployments")[0].Has("until"))
}

func TestListProjectsAndTeams(t *testing.T) {
	c, mock := newTestClient(t)
	mock.SetPaged("/v9/projects", testutil.Paged{
		TokenParam: "until",
		Pages:      [][]any{{map[string]any{"id": "prj_1", "name": "web", "framework": "nextjs"}}},
		Render:     render("projects"),
	})
	mock.SetPaged("/v2/teams", testutil.Paged{
		TokenParam: "until",
		Pages: [][]any{{
			map[string]any{"id": "team_1", "slug": "acme"},
			map[string]any{"id": "team_2", "slug": "beta"},
		}},
		Render: render("teams"),
	})

	projects, err := c.ListProjects(context.Background(), url.Values{"teamId": {"team_1"}})
	require.NoError(t, err)
	require.Len(t, projects.Items, 1)
	assert.Equal(t, "nextjs", projects.Items[0].Framework)

	teams, err := c.ListTeams(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, teams.Items, 2)
	assert.Equal(t, "beta", teams.Items[1].Slug)
}

func TestListDeployments_ErrorBody(t *testing.T) {
	c, mock := newTestClient(t)
	mock.SetResponse("/v6/deployments", testutil.MockResponse{
		StatusCode: http.StatusForbidden,
		Body:       `{"error":{"code":"forbidden","message":"Not authorized"}}`,
	})

	agg, err := c.ListDeployments(context.Background(), nil)
	assert.Nil(t, agg)

	var te *apierror.TransportError
	require.True(t, errors.As(err, &te), "error = %v", err)
	assert.Equal(t, http.StatusForbidden, te.StatusCode)
	assert.Equal(t, apierror.ClassClient, te.Class)
	assert.Equal(t, "forbidden", te.Title)
	assert.Equal(t, "Not authorized", te.Message)
}

func TestListDeployments_MalformedResource(t *testing.T) {
	c, mock := newTestClient(t)
	mock.SetJSON("/v6/deployments", map[string]any{"deployments": "nope"})

	_, err := c.ListDeployments(context.Background(), nil)
	assert.True(t, apierror.IsTransport(err), "error = %v", err)
}

func TestGetProject(t *testing.T) {
	c, mock := newTestClient(t)
	mock.SetJSON("/v9/projects/prj_1", map[string]any{"id": "prj_1", "name": "web"})

	p, err := c.GetProject(context.Background(), "prj_1", "team_1")
	require.NoError(t, err)
	assert.Equal(t, "web", p.Name)
	assert.Equal(t, "team_1", mock.Queries("/v9/projects/prj_1")[0].Get("teamId"))

	_, err = c.GetProject(context.Background(), "", "")
	assert.True(t, apierror.IsConfiguration(err))
}

func TestCancelDeployment(t *testing.T) {
	c, mock := newTestClient(t)
	var method string
	mock.SetHandler("/v12/deployments/dpl_9/cancel", func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"uid":"dpl_9","state":"CANCELED"}`))
	})

	d, err := c.CancelDeployment(context.Background(), "dpl_9", "")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, method)
	assert.Equal(t, StateCanceled, d.State)
}

func TestCreateDeployment(t *testing.T) {
	c, mock := newTestClient(t)
	var got map[string]any
	mock.SetHandler("/v13/deployments", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"uid":"dpl_new","name":"web","state":"QUEUED"}`))
	})

	d, err := c.CreateDeployment(context.Background(), "team_1", map[string]any{"name": "web", "target": "production"})
	require.NoError(t, err)
	assert.Equal(t, "dpl_new", d.UID)
	assert.Equal(t, "production", got["target"])
	assert.Equal(t, "team_1", mock.Queries("/v13/deployments")[0].Get("teamId"))

	_, err = c.CreateDeployment(context.Background(), "", map[string]any{})
	assert.True(t, apierror.IsConfiguration(err))
}

func TestDeploymentsSource_Poll(t *testing.T) {
	c, mock := newTestClient(t)
	mock.SetPaged("/v6/deployments", testutil.Paged{
		TokenParam: "until",
		Token:      untilToken,
		Pages: [][]any{{
			map[string]any{"uid": "dpl_c", "name": "web", "state": StateReady, "created": newest},
			map[string]any{"uid": "dpl_b", "name": "web", "state": StateError, "created": newest - 1000},
			map[string]any{"uid": "dpl_a", "name": "api", "state": StateReady, "created": newest - 2000},
		}},
		Render: render("deployments"),
	})

	ctx := context.Background()
	store := watermark.NewMemoryStore()
	key := watermark.Key{Connector: "vercel", Instance: "team_1"}.String()
	previous := time.UnixMilli(newest - 5000)
	require.NoError(t, store.Set(ctx, key, previous))

	sink := emit.NewMemorySink[Deployment]()
	p := poll.New[Deployment](
		NewDeploymentsSource(c, "team_1", "prj_1"),
		store, sink,
		poll.DefaultConfig("vercel", key),
		NewDeploymentsFilter(StateReady),
	)

	res, err := p.Poll(ctx, poll.Deploy)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Fetched)
	assert.Equal(t, 2, res.Emitted)

	events := sink.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "dpl_a", events[0].Envelope.ID)
	assert.Equal(t, "dpl_c", events[1].Envelope.ID)
	assert.Equal(t, "New deployment: web", events[1].Envelope.Summary)

	wm, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, wm.Equal(time.UnixMilli(newest)), "watermark = %v", wm)

	q := mock.Queries("/v6/deployments")[0]
	assert.Equal(t, strconv.FormatInt(newest-5000, 10), q.Get("since"))
	assert.Equal(t, "team_1", q.Get("teamId"))
	assert.Equal(t, "prj_1", q.Get("projectId"))
}

func TestDeploymentsSource_FirstRunOmitsSince(t *testing.T) {
	c, mock := newTestClient(t)
	mock.SetPaged("/v6/deployments", testutil.Paged{
		TokenParam: "until",
		Pages:      deploymentPages(2),
		Render:     render("deployments"),
	})

	items, err := NewDeploymentsSource(c, "", "").Fetch(context.Background(), time.Unix(0, 0), 25)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	q := mock.Queries("/v6/deployments")[0]
	assert.False(t, q.Has("since"))
	assert.False(t, q.Has("teamId"))
}
