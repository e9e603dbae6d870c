package client

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/Sternrassler/connector-poller/pkg/apierror"
)

// Request describes one API call. It is validated before dispatch.
type Request struct {
	// Method defaults to GET
	Method string

	// Path is relative to the client's base URL ("/scheduled_events"), or an
	// absolute http(s) URL such as a next-page link
	Path string

	// Query parameters appended to the URL
	Query url.Values

	// Body is JSON-encoded; only allowed for POST, PUT and PATCH
	Body any

	// Idempotent allows retries for POST, PUT and PATCH. GET and DELETE are
	// always retried.
	Idempotent bool
}

// Get builds a GET request.
func Get(path string, query url.Values) Request {
	return Request{Method: http.MethodGet, Path: path, Query: query}
}

func (r Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(r.Method)
}

// retryable reports whether a failed attempt may be sent again.
func (r Request) retryable() bool {
	switch r.method() {
	case http.MethodGet, http.MethodDelete:
		return true
	}
	return r.Idempotent
}

// Validate checks the request can be dispatched.
func (r Request) Validate() error {
	switch r.method() {
	case http.MethodGet, http.MethodDelete:
		if r.Body != nil {
			return apierror.Configuration("request.body", "%s requests cannot carry a body", r.method())
		}
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return apierror.Configuration("request.method", "unsupported method %q", r.Method)
	}

	if r.Path == "" {
		return apierror.Configuration("request.path", "must not be empty")
	}
	if strings.HasPrefix(r.Path, "/") {
		return nil
	}
	u, err := url.Parse(r.Path)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apierror.Configuration("request.path", "must start with / or be an absolute http(s) URL (got %q)", r.Path)
	}
	return nil
}

// endpoint is the metric and log label: the path without host or query.
func (r Request) endpoint() string {
	if strings.HasPrefix(r.Path, "/") {
		if i := strings.IndexAny(r.Path, "?#"); i >= 0 {
			return r.Path[:i]
		}
		return r.Path
	}
	if u, err := url.Parse(r.Path); err == nil {
		return u.Path
	}
	return r.Path
}
