// Package testutil provides a mock SaaS API server for connector tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockAPI is a configurable mock API server for testing.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	failures map[string][]MockResponse

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
	queries           map[string][]url.Values
}

// NewMockAPI creates a new mock API server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers: make(map[string]http.HandlerFunc),
		failures: make(map[string][]MockResponse),
		queries:  make(map[string][]url.Values),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.queries[r.URL.Path] = append(mock.queries[r.URL.Path], r.URL.Query())

		// injected failures take precedence
		if pending := mock.failures[r.URL.Path]; len(pending) > 0 {
			resp := pending[0]
			mock.failures[r.URL.Path] = pending[1:]
			mock.mu.Unlock()
			writeResponse(w, resp)
			return
		}
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}
		writeResponse(w, MockResponse{
			StatusCode: http.StatusNotFound,
			Body:       `{"title":"Resource Not Found","message":"no handler for ` + r.URL.Path + `"}`,
		})
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters and pending failures.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequestHeader = nil
	m.queries = make(map[string][]url.Values)
	m.failures = make(map[string][]MockResponse)
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, resp)
	})
}

// SetJSON serves v as a 200 JSON response for a path.
func (m *MockAPI) SetJSON(path string, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("testutil: marshal response for %s: %v", path, err))
	}
	m.SetResponse(path, NewHealthyResponse(string(body)))
}

// FailNext makes the next n requests to path return resp before the
// configured handler is used again.
func (m *MockAPI) FailNext(path string, n int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < n; i++ {
		m.failures[path] = append(m.failures[path], resp)
	}
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// Queries returns the query parameters of every request to path, in order.
func (m *MockAPI) Queries(path string) []url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]url.Values(nil), m.queries[path]...)
}

// Paged describes a cursor-paginated collection.
type Paged struct {
	// TokenParam is the query parameter carrying the cursor
	TokenParam string

	// Pages holds the items of each page in server order
	Pages [][]any

	// Token returns the cursor of page i (i >= 1); defaults to "p<i>"
	Token func(i int) string

	// Render builds the response body for a page. next is the absolute URL
	// of the following page and token its cursor; both are "" on the last page.
	Render func(items []any, next, token string) any
}

// SetPaged serves p on path. The page is selected by the cursor in
// p.TokenParam; unknown cursors get a 400.
func (m *MockAPI) SetPaged(path string, p Paged) {
	token := p.Token
	if token == nil {
		token = func(i int) string { return fmt.Sprintf("p%d", i) }
	}

	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		idx := 0
		if cur := r.URL.Query().Get(p.TokenParam); cur != "" {
			idx = -1
			for i := 1; i < len(p.Pages); i++ {
				if token(i) == cur {
					idx = i
					break
				}
			}
			if idx < 0 {
				writeResponse(w, MockResponse{
					StatusCode: http.StatusBadRequest,
					Body:       `{"title":"Invalid Argument","message":"unknown cursor"}`,
				})
				return
			}
		}

		var items []any
		if idx < len(p.Pages) {
			items = p.Pages[idx]
		}

		next, nextToken := "", ""
		if idx+1 < len(p.Pages) {
			nextToken = token(idx + 1)
			q := r.URL.Query()
			q.Set(p.TokenParam, nextToken)
			next = m.server.URL + path + "?" + q.Encode()
		}

		body, err := json.Marshal(p.Render(items, next, nextToken))
		if err != nil {
			writeResponse(w, NewServerErrorResponse())
			return
		}
		writeResponse(w, NewHealthyResponse(string(body)))
	})
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewHealthyResponse creates a standard 200 OK response with rate limit headers.
func NewHealthyResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"X-RateLimit-Limit":     "100",
			"X-RateLimit-Remaining": "99",
			"X-RateLimit-Reset":     "60",
			"Content-Type":          "application/json; charset=utf-8",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"title":"Too Many Requests","message":"Rate limit exceeded"}`,
		Headers: map[string]string{
			"X-RateLimit-Limit":     "100",
			"X-RateLimit-Remaining": "0",
			"X-RateLimit-Reset":     "1",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"title":"Internal Server Error","message":"Something went wrong"}`,
	}
}

// NewClientErrorResponse creates a 4xx response with a title/message body.
func NewClientErrorResponse(status int, title, message string) MockResponse {
	body, _ := json.Marshal(map[string]string{"title": title, "message": message})
	return MockResponse{StatusCode: status, Body: string(body)}
}
