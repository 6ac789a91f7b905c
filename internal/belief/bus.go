package belief

import (
	"log"

	"github.com/voxelmind/go-perception/internal/evidence"
	"github.com/voxelmind/go-perception/internal/track"
)

// #region config

// Config bounds the bus's output stream.
type Config struct {
	// MaxEventsPerEmission caps how many deltas one BuildEnvelope call may
	// drain. A hard ceiling: deltas past it stay queued for the next call.
	MaxEventsPerEmission int
}

// DefaultConfig returns the production emission bound.
func DefaultConfig() Config {
	return Config{MaxEventsPerEmission: 16}
}

// #endregion config

// #region bus

// Bus wraps one TrackSet per (bot, stream) identity and converts its raw
// deltas into a bounded, ordered, fail-closed output stream.
//
// Both identifiers are opaque and caller-supplied. StreamID must be fresh
// per process lifetime (the caller includes a restart nonce); the bus never
// derives it internally, which is what keeps two consecutive bot sessions
// from being confused even under identical bot IDs.
//
// A Bus is single-writer: the caller serializes Ingest, FlushPending, and
// BuildEnvelope. Independent buses share nothing.
type Bus struct {
	botID    string
	streamID string

	cfg Config
	ts  *track.TrackSet

	pending []track.Delta

	lastTick int64

	droppedNewThreat int64
	staleBatches     int64
}

// NewBus creates a bus around a fresh TrackSet.
func NewBus(botID, streamID string, cfg Config, trackCfg track.Config, policy *track.Policy) *Bus {
	return &Bus{
		botID:    botID,
		streamID: streamID,
		cfg:      cfg,
		ts:       track.NewTrackSet(trackCfg, policy),
	}
}

// BotID returns the identity supplied at construction, unmodified.
func (b *Bus) BotID() string { return b.botID }

// StreamID returns the identity supplied at construction, unmodified.
func (b *Bus) StreamID() string { return b.streamID }

// DroppedNewThreatCount returns how many malformed new_threat deltas the
// emission boundary has dropped.
func (b *Bus) DroppedNewThreatCount() int64 { return b.droppedNewThreat }

// StaleBatchCount returns how many batches were rejected for violating tick
// monotonicity.
func (b *Bus) StaleBatchCount() int64 { return b.staleBatches }

// PendingCount returns the number of queued-but-unemitted deltas.
func (b *Bus) PendingCount() int { return len(b.pending) }

// #endregion bus

// #region ingest

// Ingest absorbs one evidence batch: TrackSet.Ingest then TrackSet.Tick,
// with the resulting deltas appended in order to the pending queue. No
// de-duplication happens here beyond what the tracker's hysteresis already
// guarantees.
//
// The appended deltas are also returned, so a caller that must react
// faster than the emission cadence (the reflex path) can inspect them the
// tick they land instead of waiting for BuildEnvelope.
//
// Batches that regress the tick clock violate the input contract; they are
// dropped and counted rather than propagated. A dropped batch returns nil.
func (b *Bus) Ingest(batch evidence.Batch) []track.Delta {
	if batch.TickID < b.lastTick {
		b.staleBatches++
		log.Printf("belief: dropped stale batch tick=%d (last=%d) bot=%s", batch.TickID, b.lastTick, b.botID)
		return nil
	}
	b.lastTick = batch.TickID

	deltas := b.ts.Ingest(batch)
	deltas = append(deltas, b.ts.Tick(batch.TickID)...)
	b.pending = append(b.pending, deltas...)
	return deltas
}

// Enqueue appends an externally sourced delta to the pending queue. The
// fail-closed check in BuildEnvelope validates it on emission like any
// other delta.
func (b *Bus) Enqueue(d track.Delta) {
	b.pending = append(b.pending, d)
}

// FlushPending discards all queued-but-unemitted deltas without touching
// track state. Used to shed warm-up transients before steady-state
// measurement, and as an explicit backpressure release valve. Returns the
// number discarded.
func (b *Bus) FlushPending() int {
	n := len(b.pending)
	b.pending = nil
	return n
}

// #endregion ingest

// #region build-envelope

// BuildEnvelope drains up to MaxEventsPerEmission deltas from the front of
// the pending queue, oldest first, into a new immutable envelope. Deltas
// beyond the cap stay queued: backpressure, not silent loss.
//
// Each new_threat delta is checked for referential validity before
// inclusion; one referencing a track this bus never created is dropped,
// logged, and counted. Fail closed rather than hand a corrupt event to the
// consumer.
func (b *Bus) BuildEnvelope(seq int64) *Envelope {
	events := []track.Delta{}

	for len(b.pending) > 0 && len(events) < b.cfg.MaxEventsPerEmission {
		d := b.pending[0]
		b.pending = b.pending[1:]

		if d.Type == track.DeltaNewThreat && !b.ts.Known(d.TrackID) {
			b.droppedNewThreat++
			log.Printf("belief: dropped malformed new_threat track_id=%s bot=%s stream=%s", d.TrackID, b.botID, b.streamID)
			continue
		}
		events = append(events, d)
	}

	return &Envelope{
		BotID:          b.botID,
		StreamID:       b.streamID,
		Seq:            seq,
		SaliencyEvents: events,
	}
}

// #endregion build-envelope

// #region snapshot

// Snapshot exposes the underlying tracker's frozen view for inspection and
// testing.
func (b *Bus) Snapshot(tickID int64) track.Snapshot {
	return b.ts.Snapshot(tickID)
}

// TrackCount returns the number of live tracks in the underlying set.
func (b *Bus) TrackCount() int {
	return b.ts.Size()
}

// #endregion snapshot
