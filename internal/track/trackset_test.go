package track

import (
	"fmt"
	"testing"

	"github.com/voxelmind/go-perception/internal/evidence"
)

// #region helpers

func testConfig() Config {
	return DefaultConfig()
}

func zombieAt(engineID int64, dist int) evidence.Item {
	return evidence.Item{
		EngineID:   engineID,
		Kind:       "zombie",
		KindEnum:   evidence.KindZombie,
		DistBucket: dist,
		LOS:        evidence.LOSVisible,
	}
}

func batchOf(tick int64, items ...evidence.Item) evidence.Batch {
	return evidence.Batch{TickID: tick, Items: items}
}

// #endregion helpers

func TestIngestCreatesTrackAndEmitsNewThreat(t *testing.T) {
	ts := NewTrackSet(testConfig(), nil)

	deltas := ts.Ingest(batchOf(1, zombieAt(100, 3)))

	if len(deltas) != 1 {
		t.Fatalf("expected 1 delta, got %d", len(deltas))
	}
	if deltas[0].Type != DeltaNewThreat {
		t.Fatalf("expected new_threat, got %s", deltas[0].Type)
	}
	if deltas[0].TrackID != "trk-100" {
		t.Fatalf("expected trk-100, got %s", deltas[0].TrackID)
	}
	if deltas[0].ThreatLevel != ThreatMedium {
		t.Fatalf("expected medium at dist 3, got %s", deltas[0].ThreatLevel)
	}
	if ts.Size() != 1 {
		t.Fatalf("expected 1 track, got %d", ts.Size())
	}
}

func TestBenignKindEmitsNoDelta(t *testing.T) {
	ts := NewTrackSet(testConfig(), nil)

	item := evidence.Item{EngineID: 7, Kind: "cow", KindEnum: evidence.KindLivestock, DistBucket: 1, LOS: evidence.LOSVisible}
	deltas := ts.Ingest(batchOf(1, item))

	if len(deltas) != 0 {
		t.Fatalf("benign kind produced %d deltas", len(deltas))
	}
	if ts.Size() != 1 {
		t.Fatalf("benign track should still be created, size=%d", ts.Size())
	}
}

func TestCapacityDropsNewEntitiesSilently(t *testing.T) {
	cfg := testConfig()
	ts := NewTrackSet(cfg, nil)

	items := make([]evidence.Item, 0, cfg.TrackCap+20)
	for i := 0; i < cfg.TrackCap+20; i++ {
		items = append(items, zombieAt(int64(1000+i), 9))
	}
	ts.Ingest(batchOf(1, items...))

	if ts.Size() != cfg.TrackCap {
		t.Fatalf("size %d exceeds cap %d", ts.Size(), cfg.TrackCap)
	}
	if ts.CapacityDrops() != 20 {
		t.Fatalf("expected 20 capacity drops, got %d", ts.CapacityDrops())
	}

	// Existing tracks keep absorbing observations at capacity.
	deltas := ts.Ingest(batchOf(2, zombieAt(1000, 9)))
	if len(deltas) != 0 {
		t.Fatalf("re-observation at capacity emitted %d deltas", len(deltas))
	}
	if ts.Size() != cfg.TrackCap {
		t.Fatalf("size changed to %d", ts.Size())
	}
}

func TestStableSceneProducesZeroDeltas(t *testing.T) {
	ts := NewTrackSet(testConfig(), nil)

	// Warm-up: first classification fires, then the scene settles.
	ts.Ingest(batchOf(1, zombieAt(100, 3)))
	ts.Tick(1)
	ts.Ingest(batchOf(2, zombieAt(100, 3)))
	ts.Tick(2)

	for tick := int64(3); tick <= 22; tick++ {
		ingestDeltas := ts.Ingest(batchOf(tick, zombieAt(100, 3)))
		tickDeltas := ts.Tick(tick)
		if len(ingestDeltas) != 0 || len(tickDeltas) != 0 {
			t.Fatalf("tick %d: stable scene emitted %d+%d deltas", tick, len(ingestDeltas), len(tickDeltas))
		}
	}
}

func TestUnobservedTrackAccruesUncertainty(t *testing.T) {
	ts := NewTrackSet(testConfig(), nil)
	ts.Ingest(batchOf(1, zombieAt(100, 3)))
	ts.Tick(1)

	prev := float32(0)
	forcedNone := false
	for tick := int64(2); tick <= 30; tick++ {
		ts.Ingest(batchOf(tick)) // entity vanished
		ts.Tick(tick)

		snap := ts.Snapshot(tick)
		if len(snap.Tracks) != 1 {
			t.Fatalf("tick %d: expected 1 track, got %d", tick, len(snap.Tracks))
		}
		tr := snap.Tracks[0]
		if tr.PUnknown <= prev {
			t.Fatalf("tick %d: pUnknown %v did not increase from %v", tick, tr.PUnknown, prev)
		}
		prev = tr.PUnknown

		if tr.PUnknown > 0.5 {
			forcedNone = true
			if tr.ThreatLevel != ThreatNone {
				t.Fatalf("tick %d: pUnknown %v but threat %s", tick, tr.PUnknown, tr.ThreatLevel)
			}
		}
	}
	if !forcedNone {
		t.Fatal("pUnknown never crossed 0.5 in 29 unobserved ticks")
	}
}

func TestSaturatedTrackEvictedAfterGrace(t *testing.T) {
	cfg := testConfig()
	ts := NewTrackSet(cfg, nil)
	ts.Ingest(batchOf(1, zombieAt(100, 3)))
	ts.Tick(1)

	var lost []Delta
	for tick := int64(2); tick <= 80; tick++ {
		for _, d := range ts.Tick(tick) {
			if d.Type == DeltaTrackLost {
				lost = append(lost, d)
			}
		}
	}

	if len(lost) != 1 {
		t.Fatalf("expected exactly 1 track_lost, got %d", len(lost))
	}
	if lost[0].TrackID != "trk-100" {
		t.Fatalf("wrong track lost: %s", lost[0].TrackID)
	}
	if ts.Size() != 0 {
		t.Fatalf("evicted track still present, size=%d", ts.Size())
	}
	if !ts.Known("trk-100") {
		t.Fatal("evicted track should remain known for referential validation")
	}
}

func TestHysteresisBoundsOscillation(t *testing.T) {
	ts := NewTrackSet(testConfig(), nil)

	// Warm-up.
	ts.Ingest(batchOf(1, zombieAt(100, 3)))
	ts.Tick(1)

	// Oscillate the distance bucket across the medium/low boundary every
	// tick for 20 ticks.
	changes := 0
	for tick := int64(2); tick <= 21; tick++ {
		dist := 3
		if tick%2 == 0 {
			dist = 5
		}
		for _, d := range ts.Ingest(batchOf(tick, zombieAt(100, dist))) {
			if d.Type == DeltaThreatLevelChanged || d.Type == DeltaReclassified {
				changes++
			}
		}
		ts.Tick(tick)
	}

	if changes > 4 {
		t.Fatalf("cooldown of 5 ticks should bound reclassifications to 4 over 20 ticks, got %d", changes)
	}
	if changes == 0 {
		t.Fatal("expected some reclassification once cooldown lapsed")
	}
}

func TestDeterministicAcrossInstances(t *testing.T) {
	a := NewTrackSet(testConfig(), nil)
	b := NewTrackSet(testConfig(), nil)

	feed := func(ts *TrackSet) []Delta {
		var all []Delta
		for tick := int64(1); tick <= 30; tick++ {
			items := []evidence.Item{zombieAt(100, int(tick%7)+1)}
			if tick >= 5 && tick <= 20 {
				items = append(items, evidence.Item{
					EngineID: 200, Kind: "skeleton", KindEnum: evidence.KindSkeleton,
					DistBucket: 5, LOS: evidence.LOSVisible,
				})
			}
			all = append(all, ts.Ingest(batchOf(tick, items...))...)
			all = append(all, ts.Tick(tick)...)
		}
		return all
	}

	da, db := feed(a), feed(b)

	if fmt.Sprintf("%+v", da) != fmt.Sprintf("%+v", db) {
		t.Fatalf("delta sequences diverged:\n  a: %+v\n  b: %+v", da, db)
	}
	sa, sb := a.Snapshot(30), b.Snapshot(30)
	if fmt.Sprintf("%+v", sa) != fmt.Sprintf("%+v", sb) {
		t.Fatalf("snapshots diverged:\n  a: %+v\n  b: %+v", sa, sb)
	}
}

func TestSnapshotDoesNotMutate(t *testing.T) {
	ts := NewTrackSet(testConfig(), nil)
	ts.Ingest(batchOf(1, zombieAt(100, 3)))

	snap := ts.Snapshot(1)
	snap.Tracks[0].ThreatLevel = ThreatCritical
	snap.Tracks[0].Confidence = 0

	after := ts.Snapshot(1)
	if after.Tracks[0].ThreatLevel != ThreatMedium {
		t.Fatalf("snapshot mutation leaked into track set: %s", after.Tracks[0].ThreatLevel)
	}
	if after.Tracks[0].Confidence != 1 {
		t.Fatalf("snapshot mutation leaked: confidence %v", after.Tracks[0].Confidence)
	}
}

func TestReclassifiedOnKindChange(t *testing.T) {
	ts := NewTrackSet(testConfig(), nil)
	ts.Ingest(batchOf(1, zombieAt(100, 3)))

	// Sensor re-tags the entity after the cooldown lapses.
	item := evidence.Item{EngineID: 100, Kind: "skeleton", KindEnum: evidence.KindSkeleton, DistBucket: 3, LOS: evidence.LOSVisible}
	deltas := ts.Ingest(batchOf(7, item))

	found := false
	for _, d := range deltas {
		if d.Type == DeltaReclassified {
			found = true
			if d.ClassLabel != "skeleton" {
				t.Fatalf("reclassified delta carries stale label %s", d.ClassLabel)
			}
		}
	}
	if !found {
		t.Fatalf("expected reclassified delta, got %+v", deltas)
	}
}

// #endregion
