package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// maxErrorBody bounds the raw body echoed into error messages.
const maxErrorBody = 200

// errorBody covers the error payloads of the supported APIs:
//
//	{"title": "...", "message": "..."}                      Calendly
//	{"error": {"code": "...", "message": "..."}}            Vercel
//	{"_error": {"status": 404, "title": "...", "message": "..."}}  Front
type errorBody struct {
	Title   string          `json:"title"`
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
	Front   *struct {
		Title   string `json:"title"`
		Message string `json:"message"`
	} `json:"_error"`
}

// parseErrorBody extracts the remote error's title and message. Unknown
// payloads fall back to the status text and a prefix of the raw body.
func parseErrorBody(status int, body []byte) (title, message string) {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		switch {
		case eb.Front != nil:
			title, message = eb.Front.Title, eb.Front.Message
		case eb.Title != "" || eb.Message != "":
			title, message = eb.Title, eb.Message
		case len(eb.Error) > 0:
			var nested struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			}
			var plain string
			if json.Unmarshal(eb.Error, &nested) == nil {
				title, message = nested.Code, nested.Message
			} else if json.Unmarshal(eb.Error, &plain) == nil {
				message = plain
			}
		}
	}

	if title == "" {
		title = http.StatusText(status)
	}
	if message == "" && !json.Valid(body) {
		message = strings.TrimSpace(string(truncate(body, maxErrorBody)))
	}
	return title, message
}

func truncate(b []byte, n int) []byte {
	b = bytes.TrimSpace(b)
	if len(b) <= n {
		return b
	}
	return b[:n]
}
