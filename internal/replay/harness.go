package replay

import (
	"bytes"
	"fmt"

	"github.com/gowebpki/jcs"
	"github.com/voxelmind/go-perception/internal/belief"
	"github.com/voxelmind/go-perception/internal/track"
)

// #region types

// Result captures the outcome of replaying one fixture.
type Result struct {
	// Envelopes holds the canonical envelope bytes from the primary bus,
	// one per emission point.
	Envelopes [][]byte

	// Mismatches lists every divergence found: between the twin buses, or
	// against the fixture's expected envelopes.
	Mismatches []string
}

// Deterministic reports whether the run produced no divergence.
func (r Result) Deterministic() bool {
	return len(r.Mismatches) == 0
}

// #endregion types

// #region run

// Run replays the fixture's batch sequence through two independently
// constructed buses with identical identifiers and configuration, emitting
// an envelope every EmitEveryTicks batches from both. Any byte difference
// between the twins at a matching seq is a determinism violation; any
// difference against the fixture's expected envelopes is a regression.
// Operates entirely in memory.
func Run(f *Fixture) (Result, error) {
	policy, err := compiledPolicy(f.Config)
	if err != nil {
		return Result{}, err
	}

	primary := belief.NewBus(f.BotID, f.StreamID, f.Config.BeliefConfig(), f.Config.TrackConfig(), policy)
	twin := belief.NewBus(f.BotID, f.StreamID, f.Config.BeliefConfig(), f.Config.TrackConfig(), policy)

	var res Result
	var seq int64

	for i, batch := range f.Batches {
		primary.Ingest(batch)
		twin.Ingest(batch)

		if int64(i+1)%f.EmitEveryTicks != 0 {
			continue
		}
		seq++

		got, err := primary.BuildEnvelope(seq).MarshalCanonical()
		if err != nil {
			return Result{}, fmt.Errorf("replay seq %d: %w", seq, err)
		}
		twinGot, err := twin.BuildEnvelope(seq).MarshalCanonical()
		if err != nil {
			return Result{}, fmt.Errorf("replay twin seq %d: %w", seq, err)
		}

		if !bytes.Equal(got, twinGot) {
			res.Mismatches = append(res.Mismatches,
				fmt.Sprintf("seq %d: twin buses diverged:\n  a: %s\n  b: %s", seq, got, twinGot))
		}
		if n := int(seq) - 1; n < len(f.Expected) {
			want, err := jcs.Transform(f.Expected[n])
			if err != nil {
				return Result{}, fmt.Errorf("replay seq %d: canonicalize expected: %w", seq, err)
			}
			if !bytes.Equal(got, want) {
				res.Mismatches = append(res.Mismatches,
					fmt.Sprintf("seq %d: expected envelope mismatch:\n  want: %s\n  got:  %s", seq, want, got))
			}
		}
		res.Envelopes = append(res.Envelopes, got)
	}

	return res, nil
}

func compiledPolicy(fc FixtureConfig) (*track.Policy, error) {
	if fc.Policy == nil {
		return track.DefaultPolicy(), nil
	}
	p, err := track.CompilePolicy(*fc.Policy)
	if err != nil {
		return nil, fmt.Errorf("fixture policy: %w", err)
	}
	return p, nil
}

// #endregion run
