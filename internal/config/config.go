package config

import (
	"fmt"
	"os"

	"github.com/voxelmind/go-perception/internal/belief"
	"github.com/voxelmind/go-perception/internal/reflex"
	"github.com/voxelmind/go-perception/internal/track"
	"gopkg.in/yaml.v3"
)

// #region types

// Config is the full configuration surface of the perception daemon. Every
// constant the core exposes for tuning lives here; the zero file (or a
// missing file) yields the shipped defaults.
type Config struct {
	Tracker TrackerConfig `yaml:"tracker"`
	Bus     BusConfig     `yaml:"bus"`
	Reflex  ReflexConfig  `yaml:"reflex"`
	Feed    FeedConfig    `yaml:"feed"`
	Journal JournalConfig `yaml:"journal"`

	// Policy overrides the compiled-in threat table when non-empty.
	Policy *track.PolicySpec `yaml:"policy"`
}

// TrackerConfig mirrors track.Config with YAML tags.
type TrackerConfig struct {
	TrackCap                int     `yaml:"track_cap"`
	TrackHz                 float32 `yaml:"track_hz"`
	ConfidenceDecayPerSec   float32 `yaml:"confidence_decay_per_sec"`
	UnknownDriftPerSec      float32 `yaml:"unknown_drift_per_sec"`
	ReclassifyCooldownTicks int64   `yaml:"reclassify_cooldown_ticks"`
	LostGraceTicks          int64   `yaml:"lost_grace_ticks"`
}

// BusConfig mirrors belief.Config with YAML tags.
type BusConfig struct {
	MaxSaliencyEventsPerEmission int   `yaml:"max_saliency_events_per_emission"`
	EmitEveryTicks               int64 `yaml:"emit_every_ticks"`
}

// ReflexConfig mirrors reflex.Config with YAML tags.
type ReflexConfig struct {
	CriticalTicks int64 `yaml:"critical_ticks"`
	HighTicks     int64 `yaml:"high_ticks"`
	DefaultTicks  int64 `yaml:"default_ticks"`
}

// FeedConfig configures the sensor feed endpoint.
type FeedConfig struct {
	ListenAddr string `yaml:"listen_addr"`

	// RawPassthrough opts in to the legacy raw-detection path. Default
	// false: with the flag unset, no raw per-tick detection reaches the
	// reasoning consumer except through the tracker and bus.
	RawPassthrough bool `yaml:"raw_passthrough"`
}

// JournalConfig configures the audit journal.
type JournalConfig struct {
	DBPath string `yaml:"db_path"`
}

// #endregion types

// #region defaults

// Default returns the shipped configuration.
func Default() Config {
	trackCfg := track.DefaultConfig()
	busCfg := belief.DefaultConfig()
	reflexCfg := reflex.DefaultConfig()
	return Config{
		Tracker: TrackerConfig{
			TrackCap:                trackCfg.TrackCap,
			TrackHz:                 trackCfg.TrackHz,
			ConfidenceDecayPerSec:   trackCfg.ConfidenceDecayPerSec,
			UnknownDriftPerSec:      trackCfg.UnknownDriftPerSec,
			ReclassifyCooldownTicks: trackCfg.ReclassifyCooldownTicks,
			LostGraceTicks:          trackCfg.LostGraceTicks,
		},
		Bus: BusConfig{
			MaxSaliencyEventsPerEmission: busCfg.MaxEventsPerEmission,
			EmitEveryTicks:               5,
		},
		Reflex: ReflexConfig{
			CriticalTicks: reflexCfg.CriticalTicks,
			HighTicks:     reflexCfg.HighTicks,
			DefaultTicks:  reflexCfg.DefaultTicks,
		},
		Feed: FeedConfig{
			ListenAddr:     "localhost:50071",
			RawPassthrough: false,
		},
		Journal: JournalConfig{
			DBPath: "perception_journal.db",
		},
	}
}

// #endregion defaults

// #region load

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults unchanged. Environment overrides (PERCEPTION_LISTEN_ADDR,
// PERCEPTION_DB, PERCEPTION_RAW_PASSTHROUGH) apply last.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := os.Getenv("PERCEPTION_LISTEN_ADDR"); v != "" {
		cfg.Feed.ListenAddr = v
	}
	if v := os.Getenv("PERCEPTION_DB"); v != "" {
		cfg.Journal.DBPath = v
	}
	if v := os.Getenv("PERCEPTION_RAW_PASSTHROUGH"); v == "true" {
		cfg.Feed.RawPassthrough = true
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Tracker.TrackCap <= 0 {
		return fmt.Errorf("config: track_cap must be positive, got %d", c.Tracker.TrackCap)
	}
	if c.Tracker.TrackHz <= 0 {
		return fmt.Errorf("config: track_hz must be positive, got %v", c.Tracker.TrackHz)
	}
	if c.Bus.MaxSaliencyEventsPerEmission <= 0 {
		return fmt.Errorf("config: max_saliency_events_per_emission must be positive, got %d", c.Bus.MaxSaliencyEventsPerEmission)
	}
	if c.Bus.EmitEveryTicks <= 0 {
		return fmt.Errorf("config: emit_every_ticks must be positive, got %d", c.Bus.EmitEveryTicks)
	}
	return nil
}

// #endregion load

// #region converters

// TrackConfig converts to the tracker's domain config.
func (c Config) TrackConfig() track.Config {
	return track.Config{
		TrackCap:                c.Tracker.TrackCap,
		TrackHz:                 c.Tracker.TrackHz,
		ConfidenceDecayPerSec:   c.Tracker.ConfidenceDecayPerSec,
		UnknownDriftPerSec:      c.Tracker.UnknownDriftPerSec,
		ReclassifyCooldownTicks: c.Tracker.ReclassifyCooldownTicks,
		LostGraceTicks:          c.Tracker.LostGraceTicks,
	}
}

// BeliefConfig converts to the bus's domain config.
func (c Config) BeliefConfig() belief.Config {
	return belief.Config{MaxEventsPerEmission: c.Bus.MaxSaliencyEventsPerEmission}
}

// ArbitratorConfig converts to the arbitrator's domain config.
func (c Config) ArbitratorConfig() reflex.Config {
	return reflex.Config{
		CriticalTicks: c.Reflex.CriticalTicks,
		HighTicks:     c.Reflex.HighTicks,
		DefaultTicks:  c.Reflex.DefaultTicks,
	}
}

// CompilePolicy compiles the configured threat table, or the shipped
// default when the file carries none.
func (c Config) CompilePolicy() (*track.Policy, error) {
	if c.Policy == nil {
		return track.DefaultPolicy(), nil
	}
	return track.CompilePolicy(*c.Policy)
}

// #endregion converters
