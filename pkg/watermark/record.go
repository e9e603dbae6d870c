package watermark

import (
	"time"
)

// Record is the persisted form of a watermark.
type Record struct {
	// TS is the creation time of the most recently emitted item, in Unix milliseconds
	TS int64 `json:"ts"`

	// UpdatedAt is when the watermark was written
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRecord builds a record for ts stamped with the current time.
func NewRecord(ts time.Time) Record {
	return Record{
		TS:        ts.UnixMilli(),
		UpdatedAt: time.Now().UTC(),
	}
}

// Time returns the watermark as a time.Time.
func (r Record) Time() time.Time {
	return time.UnixMilli(r.TS)
}

// Age returns how long ago the watermark was written.
func (r Record) Age() time.Duration {
	if r.UpdatedAt.IsZero() {
		return 0
	}
	return time.Since(r.UpdatedAt)
}
