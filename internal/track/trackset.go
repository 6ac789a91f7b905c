package track

import (
	"sort"

	"github.com/voxelmind/go-perception/internal/evidence"
)

// #region trackset

// TrackSet owns the bounded set of tracks for one stream and is the sole
// owner of the engine-identity-to-track mapping. All progression is driven
// by caller-supplied tick values; the set never reads the wall clock and
// never iterates a map without sorting, so identical batch sequences fed to
// two independently constructed sets produce identical track states and
// identical delta sequences.
//
// Calls on one TrackSet must be serialized by the caller. Independent sets
// share nothing.
type TrackSet struct {
	cfg    Config
	policy *Policy

	tracks map[int64]*Track

	// knownIDs holds every track ID ever created by this set, live or
	// evicted. The emission boundary uses it to validate new_threat
	// references after the track is gone.
	knownIDs map[string]struct{}

	capacityDrops int64
}

// NewTrackSet creates an empty set. A nil policy selects the shipped
// default table.
func NewTrackSet(cfg Config, policy *Policy) *TrackSet {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &TrackSet{
		cfg:      cfg,
		policy:   policy,
		tracks:   make(map[int64]*Track),
		knownIDs: make(map[string]struct{}),
	}
}

// Size returns the number of live tracks.
func (ts *TrackSet) Size() int {
	return len(ts.tracks)
}

// CapacityDrops returns how many observations of unseen entities were
// dropped because the set was at capacity. The drop is silent but counted.
func (ts *TrackSet) CapacityDrops() int64 {
	return ts.capacityDrops
}

// Known reports whether trackID was ever created by this set, including
// tracks since evicted.
func (ts *TrackSet) Known(trackID string) bool {
	_, ok := ts.knownIDs[trackID]
	return ok
}

// #endregion trackset

// #region ingest

// Ingest absorbs one evidence batch. For each item it finds or creates the
// track for the engine identity, reinforces confidence, resets accrued
// uncertainty, and re-evaluates classification under the hysteresis
// cooldown. Returns the deltas produced synchronously by this batch, in
// batch order.
//
// Capacity policy: when the set is full, observations of unseen entities
// are dropped without evicting a live track. Stability of already-tracked
// entities wins over coverage of newcomers.
func (ts *TrackSet) Ingest(batch evidence.Batch) []Delta {
	deltas := []Delta{}

	for _, item := range batch.Items {
		t, ok := ts.tracks[item.EngineID]
		if !ok {
			if len(ts.tracks) >= ts.cfg.TrackCap {
				ts.capacityDrops++
				continue
			}
			deltas = append(deltas, ts.createTrack(batch.TickID, item)...)
			continue
		}
		deltas = append(deltas, ts.observe(t, batch.TickID, item)...)
	}

	return deltas
}

// createTrack materializes a new track from its first observation.
func (ts *TrackSet) createTrack(tick int64, item evidence.Item) []Delta {
	t := &Track{
		TrackID:              TrackIDFor(item.EngineID),
		EngineID:             item.EngineID,
		ClassLabel:           item.Kind,
		KindEnum:             item.KindEnum,
		Confidence:           1,
		PUnknown:             0,
		PosBucketX:           item.PosBucketX,
		PosBucketY:           item.PosBucketY,
		PosBucketZ:           item.PosBucketZ,
		DistBucket:           item.DistBucket,
		LOS:                  item.LOS,
		CreatedTick:          tick,
		LastSeenTick:         tick,
		LastReclassifiedTick: tick,
	}
	t.ThreatLevel = ts.policy.Classify(t.KindEnum, t.DistBucket, t.LOS)
	ts.tracks[item.EngineID] = t
	ts.knownIDs[t.TrackID] = struct{}{}

	if t.ThreatLevel > ThreatNone {
		t.everThreat = true
		return []Delta{deltaFor(DeltaNewThreat, t, tick)}
	}
	return nil
}

// observe reinforces an existing track with a fresh observation.
func (ts *TrackSet) observe(t *Track, tick int64, item evidence.Item) []Delta {
	t.LastSeenTick = tick
	t.Confidence = 1
	t.PUnknown = 0
	t.lostAtTick = 0
	t.PosBucketX = item.PosBucketX
	t.PosBucketY = item.PosBucketY
	t.PosBucketZ = item.PosBucketZ
	t.DistBucket = item.DistBucket
	t.LOS = item.LOS

	// Classification only moves once the hysteresis cooldown has lapsed.
	// Observations that would otherwise flip it are absorbed silently,
	// which bounds delta volume when an entity straddles a bucket boundary.
	if tick-t.LastReclassifiedTick < ts.cfg.ReclassifyCooldownTicks {
		return nil
	}

	var deltas []Delta

	if item.KindEnum != t.KindEnum {
		t.KindEnum = item.KindEnum
		t.ClassLabel = item.Kind
		t.LastReclassifiedTick = tick
		deltas = append(deltas, deltaFor(DeltaReclassified, t, tick))
	}

	level := ts.policy.Classify(t.KindEnum, t.DistBucket, t.LOS)
	if level != t.ThreatLevel {
		first := t.ThreatLevel == ThreatNone && level > ThreatNone && !t.everThreat
		t.ThreatLevel = level
		t.LastReclassifiedTick = tick
		if level > ThreatNone {
			t.everThreat = true
		}
		if first {
			deltas = append(deltas, deltaFor(DeltaNewThreat, t, tick))
		} else {
			deltas = append(deltas, deltaFor(DeltaThreatLevelChanged, t, tick))
		}
	}

	return deltas
}

// #endregion ingest

// #region tick

// Tick advances every live track one tick, observed or not. Unobserved
// tracks drift: accrued uncertainty rises and confidence decays at the
// configured per-second rates converted through TrackHz. A track whose
// uncertainty crosses 0.5 has its threat level forced to none regardless of
// prior classification, and one whose uncertainty stays saturated past the
// grace window is evicted with a track_lost delta.
//
// Iteration is in ascending engine ID so the delta sequence is stable.
func (ts *TrackSet) Tick(tickID int64) []Delta {
	deltas := []Delta{}

	for _, id := range ts.sortedEngineIDs() {
		t := ts.tracks[id]

		if t.LastSeenTick == tickID {
			continue
		}

		t.PUnknown = clamp01(t.PUnknown + ts.cfg.UnknownDriftPerSec/ts.cfg.TrackHz)
		t.Confidence = clamp01(t.Confidence - ts.cfg.ConfidenceDecayPerSec/ts.cfg.TrackHz)

		// Uncertainty honesty: the set must not claim a threat it can no
		// longer perceive. This override bypasses the reclassify cooldown.
		if t.PUnknown > 0.5 && t.ThreatLevel != ThreatNone {
			t.ThreatLevel = ThreatNone
			t.LastReclassifiedTick = tickID
			deltas = append(deltas, deltaFor(DeltaThreatLevelChanged, t, tickID))
		}

		if t.PUnknown >= 1 {
			if t.lostAtTick == 0 {
				t.lostAtTick = tickID
			} else if tickID-t.lostAtTick >= ts.cfg.LostGraceTicks {
				delete(ts.tracks, t.EngineID)
				deltas = append(deltas, deltaFor(DeltaTrackLost, t, tickID))
			}
		}
	}

	return deltas
}

// #endregion tick

// #region snapshot

// Snapshot returns a frozen, read-only view of all current tracks in
// ascending engine ID order. It never mutates state; tracks are copied by
// value.
func (ts *TrackSet) Snapshot(tickID int64) Snapshot {
	snap := Snapshot{TickID: tickID, Tracks: make([]Track, 0, len(ts.tracks))}
	for _, id := range ts.sortedEngineIDs() {
		snap.Tracks = append(snap.Tracks, *ts.tracks[id])
	}
	return snap
}

// #endregion snapshot

// #region helpers

func (ts *TrackSet) sortedEngineIDs() []int64 {
	ids := make([]int64, 0, len(ts.tracks))
	for id := range ts.tracks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func deltaFor(dt DeltaType, t *Track, tick int64) Delta {
	return Delta{
		Type:        dt,
		TrackID:     t.TrackID,
		ClassLabel:  t.ClassLabel,
		ThreatLevel: t.ThreatLevel,
		DistBucket:  t.DistBucket,
		Tick:        tick,
	}
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers
