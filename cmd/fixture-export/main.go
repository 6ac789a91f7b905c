package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/voxelmind/go-perception/internal/config"
	"github.com/voxelmind/go-perception/internal/journal"
	"github.com/voxelmind/go-perception/internal/replay"
)

// #region main

// fixture-export turns a recorded journal into a standalone replay fixture:
// the batch sequence, the config it ran under, and the envelopes it emitted
// as the expected output. The fixture then pins the pipeline's behavior in
// version control without needing the journal around.
func main() {
	dbPath := flag.String("db", envOr("PERCEPTION_DB", "perception_journal.db"), "path to perception journal")
	configPath := flag.String("config", "", "config the journal was recorded under")
	outPath := flag.String("out", "fixture.json", "output fixture path")
	desc := flag.String("desc", "", "fixture description")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(2)
	}

	store, err := journal.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open journal: %v\n", err)
		os.Exit(2)
	}
	defer store.Close()

	batches, err := store.ListBatches()
	if err != nil {
		fmt.Fprintf(os.Stderr, "list batches: %v\n", err)
		os.Exit(2)
	}
	envelopes, err := store.ListEnvelopes(1 << 20)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list envelopes: %v\n", err)
		os.Exit(2)
	}
	if len(batches) == 0 || len(envelopes) == 0 {
		fmt.Fprintln(os.Stderr, "journal is empty; nothing to export")
		os.Exit(2)
	}

	f := &replay.Fixture{
		Description:    *desc,
		BotID:          envelopes[0].BotID,
		StreamID:       envelopes[0].StreamID,
		Config:         replay.DefaultFixtureConfig(),
		EmitEveryTicks: cfg.Bus.EmitEveryTicks,
		Batches:        batches,
	}
	if f.Description == "" {
		f.Description = fmt.Sprintf("exported from %s", *dbPath)
	}
	f.Config.Tracker.TrackCap = cfg.Tracker.TrackCap
	f.Config.Tracker.TrackHz = cfg.Tracker.TrackHz
	f.Config.Tracker.ConfidenceDecayPerSec = cfg.Tracker.ConfidenceDecayPerSec
	f.Config.Tracker.UnknownDriftPerSec = cfg.Tracker.UnknownDriftPerSec
	f.Config.Tracker.ReclassifyCooldownTicks = cfg.Tracker.ReclassifyCooldownTicks
	f.Config.Tracker.LostGraceTicks = cfg.Tracker.LostGraceTicks
	f.Config.Bus.MaxSaliencyEventsPerEmission = cfg.Bus.MaxSaliencyEventsPerEmission
	f.Config.Policy = cfg.Policy

	for _, row := range envelopes {
		f.Expected = append(f.Expected, json.RawMessage(row.Payload))
	}

	if err := f.Save(*outPath); err != nil {
		fmt.Fprintf(os.Stderr, "save fixture: %v\n", err)
		os.Exit(2)
	}
	fmt.Printf("exported %d batches, %d expected envelopes to %s\n", len(batches), len(f.Expected), *outPath)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion main
