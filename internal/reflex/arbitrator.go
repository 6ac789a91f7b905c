package reflex

import (
	"log"
	"sort"

	"github.com/voxelmind/go-perception/internal/track"
)

// #region arbitrator

// Arbitrator gates the external planner during short bursts of acute
// danger, independent of the belief pipeline's own cadence. It cycles
// between idle and active; there is no terminal state.
//
// Like the rest of the core, it is tick-synchronous: time is a value the
// caller passes in, never a side effect observed.
type Arbitrator struct {
	cfg Config
	st  State

	listeners    map[int64]Listener
	nextListener int64
}

// NewArbitrator creates an idle arbitrator.
func NewArbitrator(cfg Config) *Arbitrator {
	return &Arbitrator{
		cfg:       cfg,
		listeners: make(map[int64]Listener),
	}
}

// CurrentState returns a copy of the arbitrator's window state.
func (a *Arbitrator) CurrentState() State {
	return a.st
}

// #endregion arbitrator

// #region listeners

// Register adds a listener and returns a token for Unregister.
func (a *Arbitrator) Register(l Listener) int64 {
	a.nextListener++
	a.listeners[a.nextListener] = l
	return a.nextListener
}

// Unregister removes a previously registered listener. Unknown tokens are
// ignored.
func (a *Arbitrator) Unregister(token int64) {
	delete(a.listeners, token)
}

// emit delivers ev to every listener in registration order. Each listener
// runs under its own recover so one faulty handler cannot block delivery to
// the rest or corrupt arbitrator state.
func (a *Arbitrator) emit(ev Event) {
	tokens := make([]int64, 0, len(a.listeners))
	for tok := range a.listeners {
		tokens = append(tokens, tok)
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i] < tokens[j] })

	for _, tok := range tokens {
		a.deliver(a.listeners[tok], ev)
	}
}

func (a *Arbitrator) deliver(l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("reflex: listener panic during %s: %v", ev.Type, r)
		}
	}()
	l(ev)
}

// #endregion listeners

// #region transitions

// EnterReflex transitions idle→active and emits reflex_enter with the
// remaining-ticks count. If already active this is a no-op: the first
// trigger wins, and re-triggering neither extends nor shortens the window.
func (a *Arbitrator) EnterReflex(reason string, tick int64, severity track.ThreatLevel) {
	if a.st.Active {
		return
	}
	a.st = State{
		Active:        true,
		Reason:        reason,
		EnteredAtTick: tick,
		EndsAtTick:    tick + a.cfg.durationFor(severity),
	}
	a.emit(Event{
		Type:           EventEnter,
		Reason:         reason,
		Tick:           tick,
		RemainingTicks: a.st.EndsAtTick - tick,
	})
}

// TickUpdate advances the window. While active and unexpired it emits
// reflex_tick with the remaining count; once tick reaches EndsAtTick it
// transitions to idle and emits reflex_exit. No-op while idle.
func (a *Arbitrator) TickUpdate(tick int64) {
	if !a.st.Active {
		return
	}
	if tick < a.st.EndsAtTick {
		a.emit(Event{
			Type:           EventTick,
			Reason:         a.st.Reason,
			Tick:           tick,
			RemainingTicks: a.st.EndsAtTick - tick,
		})
		return
	}
	reason := a.st.Reason
	a.st = State{}
	a.emit(Event{Type: EventExit, Reason: reason, Tick: tick, RemainingTicks: 0})
}

// ExitEarly forces an immediate transition to idle and emits reflex_exit.
// No-op while idle, and no-op once the window has already lapsed. The
// lapsed case belongs to TickUpdate, so an early exit never double-emits.
func (a *Arbitrator) ExitEarly(tick int64) {
	if !a.st.Active || tick >= a.st.EndsAtTick {
		return
	}
	reason := a.st.Reason
	a.st = State{}
	a.emit(Event{Type: EventExit, Reason: reason, Tick: tick, RemainingTicks: 0})
}

// #endregion transitions

// #region queries

// Active reports whether the reflex window covers tick. Pure query: expiry
// is reconstructed from state, so a tick past EndsAtTick reports false even
// if TickUpdate was never called for it.
func (a *Arbitrator) Active(tick int64) bool {
	return a.st.Active && tick < a.st.EndsAtTick
}

// PlannerBlocked reports whether the planner is gated at tick.
func (a *Arbitrator) PlannerBlocked(tick int64) bool {
	return a.Active(tick)
}

// #endregion queries
