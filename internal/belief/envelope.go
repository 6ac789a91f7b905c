package belief

import (
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
	"github.com/voxelmind/go-perception/internal/track"
)

// #region envelope

// Envelope is the only artifact crossing the core's output boundary: a
// bounded, ordered batch of saliency events for one (bot, stream) identity.
// Envelopes are write-once; BuildEnvelope returns them fully populated and
// nothing mutates them afterwards.
type Envelope struct {
	BotID          string        `json:"bot_id"`
	StreamID       string        `json:"stream_id"`
	Seq            int64         `json:"seq"`
	SaliencyEvents []track.Delta `json:"saliency_events"`
}

// MarshalCanonical serializes the envelope as RFC 8785 canonical JSON.
// Canonicalization makes the determinism contract byte-exact: two buses fed
// identical batch sequences produce identical bytes at matching seq values.
func (e *Envelope) MarshalCanonical() ([]byte, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize envelope: %w", err)
	}
	return canon, nil
}

// #endregion envelope
