// Package emit delivers polled items to downstream consumers.
package emit

import (
	"fmt"
	"time"

	"github.com/Sternrassler/connector-poller/pkg/apierror"
	"github.com/google/uuid"
)

// Envelope is the metadata attached to every emitted item.
type Envelope struct {
	// ID is unique per logical event; consumers dedupe on it
	ID string `json:"id"`

	// TS is the event's own creation time, not the emission time
	TS time.Time `json:"ts"`

	// Summary is a one-line human description
	Summary string `json:"summary"`
}

// Validate checks the envelope can be emitted.
func (e Envelope) Validate() error {
	if e.ID == "" {
		return apierror.Configuration("envelope.id", "must not be empty")
	}
	if e.TS.IsZero() {
		return apierror.Configuration("envelope.ts", "must be set (id %s)", e.ID)
	}
	return nil
}

// Instant builds an envelope for webhook-delivered events that carry a
// resource id but no event id: the id is "<resourceID>-<ms>".
func Instant(resourceID, summary string, now time.Time) Envelope {
	return Envelope{
		ID:      fmt.Sprintf("%s-%d", resourceID, now.UnixMilli()),
		TS:      now,
		Summary: summary,
	}
}

// Synthetic builds an envelope with a random id for events without any
// stable identity.
func Synthetic(summary string, now time.Time) Envelope {
	return Envelope{
		ID:      uuid.NewString(),
		TS:      now,
		Summary: summary,
	}
}
