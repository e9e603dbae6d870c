// Package vercel connects the Vercel REST API to the fetch and polling engines.
package vercel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Sternrassler/connector-poller/pkg/apierror"
	"github.com/Sternrassler/connector-poller/pkg/client"
	"github.com/Sternrassler/connector-poller/pkg/pagination"
)

// BaseURL is the Vercel API root.
const BaseURL = "https://api.vercel.com"

const pageSize = 100

// DefaultOptions follow pagination.next until 100 results are collected.
var DefaultOptions = pagination.Options{Paginate: true, MaxResults: 100}

// Client calls the Vercel API.
type Client struct {
	api *client.Client
}

// New wraps an API client.
func New(api *client.Client) *Client {
	return &Client{api: api}
}

// NewFromToken creates a client with a personal access token.
func NewFromToken(token string) (*Client, error) {
	if token == "" {
		return nil, apierror.Configuration("vercel.token", "must not be empty")
	}
	api, err := client.New(client.DefaultConfig("vercel", BaseURL, token))
	if err != nil {
		return nil, err
	}
	return New(api), nil
}

// cursor is the pagination object shared by Vercel list endpoints. Next is a
// millisecond timestamp or null on the last page.
type cursor struct {
	Count int    `json:"count"`
	Next  *int64 `json:"next"`
	Prev  *int64 `json:"prev"`
}

// ListDeployments lists deployments, newest first. params may carry teamId,
// projectId, state, since and the paginate/maxResults controls.
func (c *Client) ListDeployments(ctx context.Context, params url.Values) (*pagination.Aggregate[Deployment], error) {
	return list[Deployment](ctx, c, "vercel.deployments", "/v6/deployments", "deployments", params)
}

// ListProjects lists the projects of the token's scope (or params' teamId).
func (c *Client) ListProjects(ctx context.Context, params url.Values) (*pagination.Aggregate[Project], error) {
	return list[Project](ctx, c, "vercel.projects", "/v9/projects", "projects", params)
}

// ListTeams lists the teams the token can access.
func (c *Client) ListTeams(ctx context.Context, params url.Values) (*pagination.Aggregate[Team], error) {
	return list[Team](ctx, c, "vercel.teams", "/v2/teams", "teams", params)
}

// GetProject returns one project by id or name.
func (c *Client) GetProject(ctx context.Context, projectID, teamID string) (*Project, error) {
	if projectID == "" {
		return nil, apierror.Configuration("project", "id must not be empty")
	}
	var p Project
	if err := c.api.Get(ctx, "/v9/projects/"+url.PathEscape(projectID), teamQuery(teamID), &p); err != nil {
		return nil, fmt.Errorf("get vercel project %s: %w", projectID, err)
	}
	return &p, nil
}

// CancelDeployment cancels a deployment that is still building.
func (c *Client) CancelDeployment(ctx context.Context, deploymentID, teamID string) (*Deployment, error) {
	if deploymentID == "" {
		return nil, apierror.Configuration("deployment", "id must not be empty")
	}
	var d Deployment
	req := client.Request{
		Method: http.MethodPatch,
		Path:   "/v12/deployments/" + url.PathEscape(deploymentID) + "/cancel",
		Query:  teamQuery(teamID),
	}
	if err := c.api.Do(ctx, req, &d); err != nil {
		return nil, fmt.Errorf("cancel vercel deployment %s: %w", deploymentID, err)
	}
	return &d, nil
}

// CreateDeployment creates a deployment from body (name, gitSource, target ...).
func (c *Client) CreateDeployment(ctx context.Context, teamID string, body map[string]any) (*Deployment, error) {
	if body["name"] == nil {
		return nil, apierror.Configuration("deployment.name", "must not be empty")
	}
	var d Deployment
	req := client.Request{
		Method: http.MethodPost,
		Path:   "/v13/deployments",
		Query:  teamQuery(teamID),
		Body:   body,
	}
	if err := c.api.Do(ctx, req, &d); err != nil {
		return nil, fmt.Errorf("create vercel deployment: %w", err)
	}
	return &d, nil
}

func teamQuery(teamID string) url.Values {
	if teamID == "" {
		return nil
	}
	return url.Values{"teamId": {teamID}}
}

// list walks an endpoint whose body holds the items under resource and a
// pagination object whose next timestamp becomes the until cursor.
func list[T any](ctx context.Context, c *Client, name, path, resource string, params url.Values) (*pagination.Aggregate[T], error) {
	apiParams, opts, err := pagination.SplitControls(params, DefaultOptions)
	if err != nil {
		return nil, err
	}

	fetcher := pagination.NewFetcher[T](func(ctx context.Context, q url.Values) (*pagination.Page[T], error) {
		var body map[string]json.RawMessage
		if err := c.api.Get(ctx, path, q, &body); err != nil {
			return nil, err
		}

		var items []T
		if raw, ok := body[resource]; ok {
			if err := json.Unmarshal(raw, &items); err != nil {
				return nil, decodeError(resource, err)
			}
		}
		var cur cursor
		if raw, ok := body["pagination"]; ok {
			if err := json.Unmarshal(raw, &cur); err != nil {
				return nil, decodeError("pagination", err)
			}
		}

		page := &pagination.Page[T]{Items: items, Count: cur.Count}
		if cur.Next != nil {
			page.Next = strconv.FormatInt(*cur.Next, 10)
		}
		return page, nil
	}, pagination.Config{
		Name:            name,
		CursorParam:     "until",
		PageSizeParam:   "limit",
		PageSize:        pageSize,
		Cursor:          pagination.RawCursor,
		StopOnShortPage: true,
	})

	return fetcher.Fetch(ctx, apiParams, opts)
}

func decodeError(field string, err error) error {
	return &apierror.TransportError{
		Class:      apierror.ClassServer,
		Title:      "invalid response body",
		Message:    fmt.Sprintf("decode %s: %v", field, err),
		Err:        err,
	}
}
