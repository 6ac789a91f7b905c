package main

import (
	"testing"

	"github.com/voxelmind/go-perception/internal/journal"
)

// A journal reused across process restarts carries envelopes from several
// streams. Verification must only compare against the selected stream's
// rows, in their journaled order.
func TestFilterStreamDropsOtherSessions(t *testing.T) {
	rows := []journal.EnvelopeRow{
		{StreamID: "bot-7-first000", Seq: 1, Payload: `{"seq":1}`},
		{StreamID: "bot-7-first000", Seq: 2, Payload: `{"seq":2}`},
		{StreamID: "bot-7-restart1", Seq: 1, Payload: `{"seq":1}`},
		{StreamID: "bot-7-first000", Seq: 3, Payload: `{"seq":3}`},
	}

	got := filterStream(rows, "bot-7-first000")
	if len(got) != 3 {
		t.Fatalf("expected 3 rows for the first stream, got %d", len(got))
	}
	for i, r := range got {
		if r.StreamID != "bot-7-first000" {
			t.Fatalf("row %d from wrong stream: %s", i, r.StreamID)
		}
		if r.Seq != int64(i+1) {
			t.Fatalf("row %d out of order: seq %d", i, r.Seq)
		}
	}

	if got := filterStream(rows, "bot-7-restart1"); len(got) != 1 {
		t.Fatalf("expected 1 row for the restart stream, got %d", len(got))
	}
	if got := filterStream(rows, "bot-7-unknown"); got != nil {
		t.Fatalf("unknown stream should filter to nothing, got %d rows", len(got))
	}
}
