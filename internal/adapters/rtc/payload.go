package rtc

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
	"github.com/pkg/errors"

	"github.com/dkeye/devcord-rt/internal/core"
)

// ValidatePayload checks that a signaling payload is what its kind claims:
// a parseable SDP of the matching type for offers and answers, an ICE
// candidate init for candidates. The payload itself is relayed untouched.
func ValidatePayload(kind core.SignalKind, payload json.RawMessage) error {
	switch kind {
	case core.SignalOffer, core.SignalAnswer:
		return validateDescription(kind, payload)
	case core.SignalICECandidate:
		return validateCandidate(payload)
	}
	return errors.Wrapf(core.ErrMalformedEnvelope, "unknown kind %q", kind)
}

func validateDescription(kind core.SignalKind, payload json.RawMessage) error {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(payload, &desc); err != nil {
		return errors.Wrap(core.ErrMalformedEnvelope, err.Error())
	}
	want := webrtc.SDPTypeOffer
	if kind == core.SignalAnswer {
		want = webrtc.SDPTypeAnswer
	}
	if desc.Type != want {
		return errors.Wrapf(core.ErrMalformedEnvelope, "sdp type %s, want %s", desc.Type, want)
	}
	if _, err := desc.Unmarshal(); err != nil {
		return errors.Wrapf(core.ErrMalformedEnvelope, "parse sdp: %v", err)
	}
	return nil
}

func validateCandidate(payload json.RawMessage) error {
	var cand webrtc.ICECandidateInit
	if err := json.Unmarshal(payload, &cand); err != nil {
		return errors.Wrap(core.ErrMalformedEnvelope, err.Error())
	}
	// An empty candidate string is the end-of-candidates marker.
	if cand.Candidate != "" && cand.SDPMid == nil && cand.SDPMLineIndex == nil {
		return errors.Wrap(core.ErrMalformedEnvelope, "candidate without sdpMid or sdpMLineIndex")
	}
	return nil
}
