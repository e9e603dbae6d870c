package frontapp

import (
	"math"
	"time"
)

// Conversation is a Front conversation. CreatedAt is in fractional Unix seconds.
type Conversation struct {
	ID        string  `json:"id"`
	Subject   string  `json:"subject"`
	Status    string  `json:"status"`
	IsPrivate bool    `json:"is_private"`
	CreatedAt float64 `json:"created_at"`
	Assignee  *struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"assignee"`
	Recipient *struct {
		Handle string `json:"handle"`
		Role   string `json:"role"`
	} `json:"recipient"`
	Tags []Tag `json:"tags"`
}

// Message is one message of a conversation.
type Message struct {
	ID         string  `json:"id"`
	Type       string  `json:"type"`
	IsInbound  bool    `json:"is_inbound"`
	Subject    string  `json:"subject"`
	Blurb      string  `json:"blurb"`
	CreatedAt  float64 `json:"created_at"`
	Recipients []struct {
		Handle string `json:"handle"`
		Role   string `json:"role"`
	} `json:"recipients"`
}

// Inbox is a Front inbox.
type Inbox struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsPrivate bool   `json:"is_private"`
}

// Tag is a conversation tag.
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Timestamp converts Front's fractional seconds to a millisecond-precision time.
func Timestamp(seconds float64) time.Time {
	return time.UnixMilli(int64(math.Round(seconds * 1000)))
}
