// Package poll provides the incremental polling engine.
//
// A Poller reads a persisted watermark, fetches candidate items from a
// Source, keeps the items newer than the watermark, emits them oldest first
// and advances the watermark to the newest emitted timestamp.
//
// # Watermark Semantics
//
// The watermark is read once at the start of a pass and written at most once
// at the end, after every item of the pass reached the sink. A pass that
// finds nothing, fails to fetch or fails to emit leaves the watermark
// untouched, so the next pass retries from the same point. Downstream
// consumers dedupe on the envelope id (see emit.Unique).
//
// # Ordering
//
// Items are ordered by (timestamp, id). Emission is ascending; the watermark
// is the timestamp of the first item in descending order. Items sharing a
// timestamp are emitted in ascending id order.
//
// # Modes
//
// Deploy passes run once when a source is first deployed and are capped
// (25 items by default) so a first run does not flood consumers with
// history. Scheduled passes are uncapped.
//
// # Usage
//
//	p := poll.New[calendly.Event](source, store, sink, poll.DefaultConfig("calendly", key),
//		poll.NewerThanWatermark[calendly.Event]())
//	res, err := p.Poll(ctx, poll.Scheduled)
//
// The Runner drives several pollers on an interval and guarantees that two
// passes of the same poller never overlap.
package poll
