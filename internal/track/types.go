package track

import (
	"encoding/json"
	"fmt"

	"github.com/voxelmind/go-perception/internal/evidence"
)

// #region threat-level

// ThreatLevel is the ordered severity assigned to a track. The ordering
// (none < low < medium < high < critical) is load-bearing: classification
// policy must be monotone in it, and the reflex layer keys durations off it.
type ThreatLevel int

const (
	ThreatNone ThreatLevel = iota
	ThreatLow
	ThreatMedium
	ThreatHigh
	ThreatCritical
)

var threatNames = [...]string{"none", "low", "medium", "high", "critical"}

// String returns the wire name of the level.
func (t ThreatLevel) String() string {
	if t < ThreatNone || t > ThreatCritical {
		return "none"
	}
	return threatNames[t]
}

// ParseThreatLevel maps a wire name back to a level. Unrecognized names
// degrade to ThreatNone.
func ParseThreatLevel(s string) ThreatLevel {
	for i, name := range threatNames {
		if name == s {
			return ThreatLevel(i)
		}
	}
	return ThreatNone
}

// MarshalJSON serializes the level as its wire name.
func (t ThreatLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON parses the wire name form.
func (t *ThreatLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("threat level: %w", err)
	}
	*t = ParseThreatLevel(s)
	return nil
}

// #endregion threat-level

// #region track

// Track is the persistent belief about one entity. A Track is exclusively
// owned and mutated by the TrackSet that created it; Snapshot returns
// copies, never live pointers.
type Track struct {
	TrackID    string
	EngineID   int64
	ClassLabel string
	KindEnum   evidence.Kind

	Confidence float32 // [0,1], reinforced on observation, decays while unobserved
	PUnknown   float32 // [0,1], uncertainty accrued while unobserved

	ThreatLevel ThreatLevel

	PosBucketX int
	PosBucketY int
	PosBucketZ int
	DistBucket int
	LOS        evidence.LOS

	CreatedTick          int64
	LastSeenTick         int64
	LastReclassifiedTick int64

	// lostAtTick records when PUnknown saturated to 1; zero while observed
	// or still decaying. Eviction fires LostGraceTicks after it is set.
	lostAtTick int64

	// everThreat marks that this track has classified above ThreatNone at
	// least once, so later escalations emit threat_level_changed rather
	// than a second new_threat.
	everThreat bool
}

// TrackIDFor derives the stable track identifier for an engine identity.
// IDs are a pure function of EngineID and are never reused after eviction.
func TrackIDFor(engineID int64) string {
	return fmt.Sprintf("trk-%d", engineID)
}

// #endregion track

// #region delta

// DeltaType is the closed set of saliency event variants.
type DeltaType string

const (
	DeltaNewThreat          DeltaType = "new_threat"
	DeltaReclassified       DeltaType = "reclassified"
	DeltaThreatLevelChanged DeltaType = "threat_level_changed"
	DeltaTrackLost          DeltaType = "track_lost"
)

// Delta is a discrete, typed change to belief state, queued for emission.
// Every variant carries the same required fields, which keeps validation at
// the emission boundary exhaustive.
type Delta struct {
	Type        DeltaType   `json:"type"`
	TrackID     string      `json:"track_id"`
	ClassLabel  string      `json:"class_label"`
	ThreatLevel ThreatLevel `json:"threat_level"`
	DistBucket  int         `json:"dist_bucket"`
	Tick        int64       `json:"tick"`
}

// #endregion delta

// #region snapshot

// Snapshot is a frozen, read-only view of a TrackSet at one tick, for
// inspection and testing. Tracks are value copies in ascending EngineID
// order.
type Snapshot struct {
	TickID int64
	Tracks []Track
}

// #endregion snapshot

// #region config

// Config holds the tracker's decay, capacity, and hysteresis parameters.
// Per-second rates are converted to per-tick increments via TrackHz, so the
// model is independent of whatever rate the caller drives ticks at.
type Config struct {
	TrackCap                int
	TrackHz                 float32
	ConfidenceDecayPerSec   float32
	UnknownDriftPerSec      float32
	ReclassifyCooldownTicks int64
	LostGraceTicks          int64
}

// DefaultConfig returns the tuning used in production.
func DefaultConfig() Config {
	return Config{
		TrackCap:                64,
		TrackHz:                 10,
		ConfidenceDecayPerSec:   0.2,
		UnknownDriftPerSec:      0.25,
		ReclassifyCooldownTicks: 5,
		LostGraceTicks:          10,
	}
}

// #endregion config
