package vercel

import (
	"context"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/Sternrassler/connector-poller/pkg/emit"
	"github.com/Sternrassler/connector-poller/pkg/pagination"
	"github.com/Sternrassler/connector-poller/pkg/poll"
)

// DeploymentsSource polls newly created deployments.
type DeploymentsSource struct {
	client *Client
	scope  url.Values
}

// NewDeploymentsSource creates a source scoped to a team and optionally a
// project; empty ids widen the scope to the token's default.
func NewDeploymentsSource(c *Client, teamID, projectID string) *DeploymentsSource {
	scope := url.Values{}
	if teamID != "" {
		scope.Set("teamId", teamID)
	}
	if projectID != "" {
		scope.Set("projectId", projectID)
	}
	return &DeploymentsSource{client: c, scope: scope}
}

// Fetch lists deployments created after since. Vercel filters on since
// server-side, so a pass only transfers new deployments.
func (s *DeploymentsSource) Fetch(ctx context.Context, since time.Time, maxResults int) ([]Deployment, error) {
	q := url.Values{}
	for k, v := range s.scope {
		q[k] = append([]string(nil), v...)
	}
	if ms := since.UnixMilli(); ms > 0 {
		q.Set("since", strconv.FormatInt(ms, 10))
	}
	q.Set(pagination.ParamPaginate, "true")
	q.Set(pagination.ParamMaxResults, strconv.Itoa(maxResults))

	agg, err := s.client.ListDeployments(ctx, q)
	if err != nil {
		return nil, err
	}
	return agg.Items, nil
}

// Envelope identifies a deployment by uid and orders it by creation time.
func (s *DeploymentsSource) Envelope(d Deployment) emit.Envelope {
	return emit.Envelope{
		ID:      d.UID,
		TS:      time.UnixMilli(d.Created),
		Summary: "New deployment: " + d.Name,
	}
}

// NewDeploymentsFilter keeps deployments newer than the watermark, further
// restricted to the given states when any are named.
func NewDeploymentsFilter(states ...string) poll.Filter[Deployment] {
	return poll.Where[Deployment](func(d Deployment, env emit.Envelope, watermark time.Time) bool {
		if !env.TS.After(watermark) {
			return false
		}
		return len(states) == 0 || slices.Contains(states, d.State)
	})
}
