package reflex

import "github.com/voxelmind/go-perception/internal/track"

// #region events

// EventType is the closed set of arbitrator event variants.
type EventType string

const (
	EventEnter EventType = "reflex_enter"
	EventTick  EventType = "reflex_tick"
	EventExit  EventType = "reflex_exit"
)

// Event is delivered to registered listeners on every arbitrator
// transition and on every active tick.
type Event struct {
	Type           EventType `json:"type"`
	Reason         string    `json:"reason"`
	Tick           int64     `json:"tick"`
	RemainingTicks int64     `json:"remaining_ticks"`
}

// Listener receives arbitrator events. A listener that panics is isolated:
// the panic is recovered, logged, and delivery continues to the remaining
// listeners.
type Listener func(Event)

// #endregion events

// #region state

// State is the arbitrator's transient window. Zero value is idle.
type State struct {
	Active        bool
	Reason        string
	EnteredAtTick int64
	EndsAtTick    int64
}

// #endregion state

// #region config

// Config holds the per-severity override durations, in ticks.
type Config struct {
	CriticalTicks int64
	HighTicks     int64
	DefaultTicks  int64
}

// DefaultConfig returns the production duration table.
func DefaultConfig() Config {
	return Config{
		CriticalTicks: 15,
		HighTicks:     10,
		DefaultTicks:  10,
	}
}

// durationFor maps a severity to a window length.
func (c Config) durationFor(severity track.ThreatLevel) int64 {
	switch severity {
	case track.ThreatCritical:
		return c.CriticalTicks
	case track.ThreatHigh:
		return c.HighTicks
	default:
		return c.DefaultTicks
	}
}

// #endregion config
