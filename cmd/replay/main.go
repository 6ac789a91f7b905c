package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"

	"github.com/voxelmind/go-perception/internal/config"
	"github.com/voxelmind/go-perception/internal/journal"
	"github.com/voxelmind/go-perception/internal/replay"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	dbPath := flag.String("db", "", "path to perception journal (DB mode)")
	configPath := flag.String("config", "", "config the journal was recorded under (DB mode)")
	streamID := flag.String("stream", "", "stream to verify (DB mode; default: the journal's first recorded stream)")
	flag.Parse()

	if (*fixturePath == "" && *dbPath == "") || (*fixturePath != "" && *dbPath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json")
		fmt.Fprintln(os.Stderr, "       replay --db path/to/perception_journal.db [--config perception.yaml]")
		os.Exit(2)
	}

	var exitCode int
	if *fixturePath != "" {
		exitCode = runFixtureMode(*fixturePath)
	} else {
		exitCode = runDBMode(*dbPath, *configPath, *streamID)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region fixture-mode

func runFixtureMode(path string) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}

	res, err := replay.Run(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}

	return report(res, len(f.Batches))
}

// #endregion fixture-mode

// #region db-mode

// runDBMode rebuilds the pipeline from a journal's recorded batches and
// checks both twin-bus determinism and fidelity against the envelopes the
// original process journaled. A journal reused across restarts holds rows
// from several streams; only one stream's envelopes are compared per run.
func runDBMode(dbPath, configPath, streamID string) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 2
	}

	store, err := journal.NewStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open journal: %v\n", err)
		return 2
	}
	defer store.Close()

	batches, err := store.ListBatches()
	if err != nil {
		fmt.Fprintf(os.Stderr, "list batches: %v\n", err)
		return 2
	}
	if len(batches) == 0 {
		fmt.Fprintln(os.Stderr, "journal has no recorded batches")
		return 2
	}

	recorded, err := store.ListEnvelopes(1 << 20)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list envelopes: %v\n", err)
		return 2
	}
	if len(recorded) == 0 {
		fmt.Fprintln(os.Stderr, "journal has no recorded envelopes")
		return 2
	}

	if streamID == "" {
		streamID = recorded[0].StreamID
	}
	recorded = filterStream(recorded, streamID)
	if len(recorded) == 0 {
		fmt.Fprintf(os.Stderr, "journal has no envelopes for stream %s\n", streamID)
		return 2
	}

	f := &replay.Fixture{
		Description:    fmt.Sprintf("journal replay of %s", dbPath),
		BotID:          recorded[0].BotID,
		StreamID:       recorded[0].StreamID,
		Config:         replay.DefaultFixtureConfig(),
		EmitEveryTicks: cfg.Bus.EmitEveryTicks,
		Batches:        batches,
	}
	f.Config.Tracker.TrackCap = cfg.Tracker.TrackCap
	f.Config.Tracker.TrackHz = cfg.Tracker.TrackHz
	f.Config.Tracker.ConfidenceDecayPerSec = cfg.Tracker.ConfidenceDecayPerSec
	f.Config.Tracker.UnknownDriftPerSec = cfg.Tracker.UnknownDriftPerSec
	f.Config.Tracker.ReclassifyCooldownTicks = cfg.Tracker.ReclassifyCooldownTicks
	f.Config.Tracker.LostGraceTicks = cfg.Tracker.LostGraceTicks
	f.Config.Bus.MaxSaliencyEventsPerEmission = cfg.Bus.MaxSaliencyEventsPerEmission
	f.Config.Policy = cfg.Policy

	res, err := replay.Run(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}

	// Compare against what the original process emitted.
	for i, row := range recorded {
		if i >= len(res.Envelopes) {
			res.Mismatches = append(res.Mismatches,
				fmt.Sprintf("seq %d: journaled but not reproduced", row.Seq))
			continue
		}
		if !bytes.Equal([]byte(row.Payload), res.Envelopes[i]) {
			res.Mismatches = append(res.Mismatches,
				fmt.Sprintf("seq %d: journal mismatch:\n  journal: %s\n  replay:  %s", row.Seq, row.Payload, res.Envelopes[i]))
		}
	}

	return report(res, len(batches))
}

// filterStream keeps only envelopes journaled under streamID, preserving
// order. Comparing across streams would report mismatches that are really
// session boundaries.
func filterStream(rows []journal.EnvelopeRow, streamID string) []journal.EnvelopeRow {
	var out []journal.EnvelopeRow
	for _, r := range rows {
		if r.StreamID == streamID {
			out = append(out, r)
		}
	}
	return out
}

// #endregion db-mode

// #region report

func report(res replay.Result, batchCount int) int {
	fmt.Printf("replayed %d batches, %d envelopes\n", batchCount, len(res.Envelopes))
	if res.Deterministic() {
		fmt.Println("deterministic: envelopes byte-identical across runs")
		return 0
	}
	for _, m := range res.Mismatches {
		fmt.Fprintln(os.Stderr, m)
	}
	fmt.Fprintf(os.Stderr, "%d mismatches\n", len(res.Mismatches))
	return 1
}

// #endregion report
