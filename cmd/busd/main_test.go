package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/voxelmind/go-perception/internal/belief"
	"github.com/voxelmind/go-perception/internal/evidence"
	"github.com/voxelmind/go-perception/internal/journal"
	"github.com/voxelmind/go-perception/internal/reflex"
	"github.com/voxelmind/go-perception/internal/track"
)

// #region helpers

func newTestSink(t *testing.T, emitEvery int64) (*busSink, *reflex.Arbitrator) {
	t.Helper()
	store, err := journal.NewStore(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	bus := belief.NewBus("bot-test", "bot-test-a1b2c3d4", belief.DefaultConfig(), track.DefaultConfig(), nil)
	arb := reflex.NewArbitrator(reflex.DefaultConfig())
	return &busSink{bus: bus, arb: arb, store: store, emitEvery: emitEvery}, arb
}

func creeperBatch(tick int64, dist int) evidence.Batch {
	return evidence.Batch{
		TickID: tick,
		Items: []evidence.Item{{
			EngineID:   9,
			Kind:       "creeper",
			KindEnum:   evidence.KindCreeper,
			DistBucket: dist,
			LOS:        evidence.LOSVisible,
		}},
	}
}

// #endregion helpers

// #region tests

// A lethal entity first seen far away enters tracking at low and every
// later escalation arrives as threat_level_changed. The escalation to
// critical must gate the planner even though no new_threat delta carries a
// high-or-above level anywhere in the trajectory.
func TestHandleBatchGatesPlannerOnEscalation(t *testing.T) {
	s, arb := newTestSink(t, 5)
	ctx := context.Background()

	if err := s.HandleBatch(ctx, creeperBatch(1, 8)); err != nil {
		t.Fatalf("HandleBatch tick 1: %v", err)
	}
	if arb.PlannerBlocked(1) {
		t.Fatalf("low-level threat at tick 1 must not gate the planner")
	}

	for tick := int64(2); tick <= 6; tick++ {
		if err := s.HandleBatch(ctx, creeperBatch(tick, 8)); err != nil {
			t.Fatalf("HandleBatch tick %d: %v", tick, err)
		}
	}
	if arb.PlannerBlocked(6) {
		t.Fatalf("planner gated at tick 6 with the threat still distant")
	}

	// Closes to dist 1 after the reclassify cooldown has lapsed: the
	// tracker escalates to critical via threat_level_changed.
	if err := s.HandleBatch(ctx, creeperBatch(7, 1)); err != nil {
		t.Fatalf("HandleBatch tick 7: %v", err)
	}
	if !arb.PlannerBlocked(7) {
		t.Fatalf("critical escalation at tick 7 must gate the planner")
	}

	st := arb.CurrentState()
	if st.Reason != "creeper" {
		t.Fatalf("reflex reason = %q, want creeper", st.Reason)
	}
	want := int64(7) + reflex.DefaultConfig().CriticalTicks
	if st.EndsAtTick != want {
		t.Fatalf("reflex window ends at %d, want %d (critical duration)", st.EndsAtTick, want)
	}
}

// Gating happens the tick the delta lands, not at the emission boundary.
// With the boundary pushed out of reach, a high-level new_threat must
// still enter the reflex window immediately.
func TestHandleBatchGatesPlannerAtIngest(t *testing.T) {
	s, arb := newTestSink(t, 1000)

	if err := s.HandleBatch(context.Background(), creeperBatch(1, 2)); err != nil {
		t.Fatalf("HandleBatch: %v", err)
	}
	if !arb.PlannerBlocked(1) {
		t.Fatalf("high-level threat must gate the planner at ingest, before any envelope is built")
	}
}

// #endregion tests
