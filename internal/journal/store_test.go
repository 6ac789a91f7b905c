package journal

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/voxelmind/go-perception/internal/belief"
	"github.com/voxelmind/go-perception/internal/evidence"
	"github.com/voxelmind/go-perception/internal/reflex"
	"github.com/voxelmind/go-perception/internal/track"
)

// #region helpers

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// #endregion helpers

func TestAppendAndListBatches(t *testing.T) {
	store := newTestStore(t)

	batches := []evidence.Batch{
		{TickID: 1, Items: []evidence.Item{{EngineID: 100, Kind: "zombie", KindEnum: evidence.KindZombie, DistBucket: 3, LOS: evidence.LOSVisible}}},
		{TickID: 2, Items: []evidence.Item{}},
	}
	for _, b := range batches {
		if err := store.AppendBatch(b); err != nil {
			t.Fatalf("append batch: %v", err)
		}
	}

	got, err := store.ListBatches()
	if err != nil {
		t.Fatalf("list batches: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(got))
	}
	if got[0].TickID != 1 || got[1].TickID != 2 {
		t.Fatalf("batch order wrong: %+v", got)
	}
	if got[0].Items[0].EngineID != 100 || got[0].Items[0].KindEnum != evidence.KindZombie {
		t.Fatalf("batch payload mangled: %+v", got[0].Items[0])
	}
}

func TestAppendAndListEnvelopes(t *testing.T) {
	store := newTestStore(t)

	env := &belief.Envelope{
		BotID:    "bot-test",
		StreamID: "bot-test-1",
		Seq:      1,
		SaliencyEvents: []track.Delta{
			{Type: track.DeltaNewThreat, TrackID: "trk-100", ClassLabel: "zombie", ThreatLevel: track.ThreatHigh, DistBucket: 1, Tick: 5},
		},
	}
	if err := store.AppendEnvelope(env, 5); err != nil {
		t.Fatalf("append envelope: %v", err)
	}

	rows, err := store.ListEnvelopes(10)
	if err != nil {
		t.Fatalf("list envelopes: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 envelope, got %d", len(rows))
	}
	r := rows[0]
	if r.BotID != "bot-test" || r.StreamID != "bot-test-1" || r.Seq != 1 || r.TickID != 5 || r.EventCount != 1 {
		t.Fatalf("envelope row wrong: %+v", r)
	}

	// The journal stores the canonical form, so a replay can compare bytes.
	canon, err := env.MarshalCanonical()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if r.Payload != string(canon) {
		t.Fatalf("journaled payload not canonical:\n  journal: %s\n  canon:   %s", r.Payload, canon)
	}
}

func TestAppendAndListReflexEvents(t *testing.T) {
	store := newTestStore(t)

	events := []reflex.Event{
		{Type: reflex.EventEnter, Reason: "creeper", Tick: 10, RemainingTicks: 15},
		{Type: reflex.EventExit, Reason: "creeper", Tick: 25, RemainingTicks: 0},
	}
	for _, ev := range events {
		if err := store.AppendReflexEvent(ev); err != nil {
			t.Fatalf("append reflex event: %v", err)
		}
	}

	rows, err := store.ListReflexEvents(10)
	if err != nil {
		t.Fatalf("list reflex events: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 events, got %d", len(rows))
	}
	if rows[0].EventType != "reflex_enter" || rows[0].RemainingTicks != 15 || rows[0].Reason != "creeper" {
		t.Fatalf("first event wrong: %+v", rows[0])
	}
	if rows[1].EventType != "reflex_exit" || rows[1].TickID != 25 {
		t.Fatalf("second event wrong: %+v", rows[1])
	}
}

func TestAppendDiagnostic(t *testing.T) {
	store := newTestStore(t)

	if err := store.AppendDiagnostic("raw_passthrough", "3 detections", 7); err != nil {
		t.Fatalf("append diagnostic: %v", err)
	}

	var kind, detail string
	var tickID int64
	err := store.DB().QueryRow(`SELECT kind, detail, tick_id FROM diagnostics`).Scan(&kind, &detail, &tickID)
	if err != nil {
		t.Fatalf("query diagnostic: %v", err)
	}
	if kind != "raw_passthrough" || tickID != 7 || !strings.Contains(detail, "3 detections") {
		t.Fatalf("diagnostic wrong: %s / %s / %d", kind, detail, tickID)
	}
}
