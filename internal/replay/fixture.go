package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/voxelmind/go-perception/internal/belief"
	"github.com/voxelmind/go-perception/internal/evidence"
	"github.com/voxelmind/go-perception/internal/track"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture: a recorded
// batch sequence plus the configuration it was recorded under and,
// optionally, the canonical envelopes it is expected to reproduce.
type Fixture struct {
	Description    string            `json:"description"`
	BotID          string            `json:"bot_id"`
	StreamID       string            `json:"stream_id"`
	Config         FixtureConfig     `json:"config"`
	EmitEveryTicks int64             `json:"emit_every_ticks"`
	Batches        []evidence.Batch  `json:"batches"`
	Expected       []json.RawMessage `json:"expected_envelopes,omitempty"`
}

// FixtureConfig bundles the tracker and bus configs for a replay run.
type FixtureConfig struct {
	Tracker FixtureTrackerConfig `json:"tracker"`
	Bus     FixtureBusConfig     `json:"bus"`

	// Policy, when present, overrides the shipped threat table.
	Policy *track.PolicySpec `json:"policy,omitempty"`
}

// FixtureTrackerConfig mirrors track.Config with JSON tags.
type FixtureTrackerConfig struct {
	TrackCap                int     `json:"track_cap"`
	TrackHz                 float32 `json:"track_hz"`
	ConfidenceDecayPerSec   float32 `json:"confidence_decay_per_sec"`
	UnknownDriftPerSec      float32 `json:"unknown_drift_per_sec"`
	ReclassifyCooldownTicks int64   `json:"reclassify_cooldown_ticks"`
	LostGraceTicks          int64   `json:"lost_grace_ticks"`
}

// FixtureBusConfig mirrors belief.Config with JSON tags.
type FixtureBusConfig struct {
	MaxSaliencyEventsPerEmission int `json:"max_saliency_events_per_emission"`
}

// #endregion fixture-types

// #region conversions

// DefaultFixtureConfig returns a fixture config from the shipped defaults.
func DefaultFixtureConfig() FixtureConfig {
	tc := track.DefaultConfig()
	bc := belief.DefaultConfig()
	return FixtureConfig{
		Tracker: FixtureTrackerConfig{
			TrackCap:                tc.TrackCap,
			TrackHz:                 tc.TrackHz,
			ConfidenceDecayPerSec:   tc.ConfidenceDecayPerSec,
			UnknownDriftPerSec:      tc.UnknownDriftPerSec,
			ReclassifyCooldownTicks: tc.ReclassifyCooldownTicks,
			LostGraceTicks:          tc.LostGraceTicks,
		},
		Bus: FixtureBusConfig{MaxSaliencyEventsPerEmission: bc.MaxEventsPerEmission},
	}
}

// TrackConfig converts to the tracker's domain config.
func (fc FixtureConfig) TrackConfig() track.Config {
	return track.Config{
		TrackCap:                fc.Tracker.TrackCap,
		TrackHz:                 fc.Tracker.TrackHz,
		ConfidenceDecayPerSec:   fc.Tracker.ConfidenceDecayPerSec,
		UnknownDriftPerSec:      fc.Tracker.UnknownDriftPerSec,
		ReclassifyCooldownTicks: fc.Tracker.ReclassifyCooldownTicks,
		LostGraceTicks:          fc.Tracker.LostGraceTicks,
	}
}

// BeliefConfig converts to the bus's domain config.
func (fc FixtureConfig) BeliefConfig() belief.Config {
	return belief.Config{MaxEventsPerEmission: fc.Bus.MaxSaliencyEventsPerEmission}
}

// #endregion conversions

// #region fixture-io

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if f.EmitEveryTicks <= 0 {
		f.EmitEveryTicks = 5
	}
	return &f, nil
}

// Save writes the fixture as indented JSON.
func (f *Fixture) Save(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// #endregion fixture-io
