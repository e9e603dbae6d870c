package watermark

import (
	"strings"
)

// DefaultSlot is the slot used by sources that keep a single watermark.
const DefaultSlot = "lastTs"

// Key identifies one watermark slot. Every connector instance owns its own
// slots, so concurrent instances never share state.
type Key struct {
	// Prefix namespaces keys in shared backends (default "wm")
	Prefix string

	// Connector is the connector name (e.g. "calendly")
	Connector string

	// Instance distinguishes deployments of the same connector (e.g. an account id)
	Instance string

	// Slot names the value within the instance (default DefaultSlot)
	Slot string
}

// String generates a deterministic key string.
// Format: prefix:connector:instance:slot
//
// Example:
//
//	wm:frontapp:acme:lastTs
func (k Key) String() string {
	prefix := k.Prefix
	if prefix == "" {
		prefix = "wm"
	}
	slot := k.Slot
	if slot == "" {
		slot = DefaultSlot
	}

	parts := []string{prefix, clean(k.Connector)}
	if k.Instance != "" {
		parts = append(parts, clean(k.Instance))
	}
	parts = append(parts, clean(slot))

	return strings.Join(parts, ":")
}

// clean keeps the separator unambiguous.
func clean(s string) string {
	s = strings.TrimSpace(s)
	return strings.ReplaceAll(s, ":", "_")
}
