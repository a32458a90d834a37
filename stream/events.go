package stream

import (
	"encoding/json"

	"go.aimuz.me/meetstream/transcript"
)

// Inbound control message types.
const (
	EventSessionEnd = "session_end"
	EventWaiting    = "waiting"
	EventLive       = "live"
)

// Outbound control message types.
const (
	ControlSessionStart       = "session_start"
	ControlSessionReconnected = "session_reconnected"
	ControlSessionEnd         = "session_end"
)

// Event is a discriminated union for inbound messages.
// Check the concrete type via type switch.
type Event interface {
	eventType() string
}

// TranscriptEvent carries transcript content for the ledger.
type TranscriptEvent struct {
	transcript.Message
}

func (e TranscriptEvent) eventType() string { return e.Type }

// ControlEvent is a lifecycle message without transcript content.
type ControlEvent struct {
	Type string `json:"type"`
}

func (e ControlEvent) eventType() string { return e.Type }

// UnknownEvent holds messages we don't recognize.
type UnknownEvent struct {
	Type string
	Raw  json.RawMessage
}

func (e UnknownEvent) eventType() string { return e.Type }

// ParseEvent unmarshals JSON into the appropriate Event type.
func ParseEvent(data []byte) (Event, error) {
	var header struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, err
	}

	switch {
	case header.Type == EventSessionEnd, header.Type == EventWaiting, header.Type == EventLive:
		return ControlEvent{Type: header.Type}, nil
	case transcript.IsTranscriptType(header.Type):
		var e TranscriptEvent
		if err := json.Unmarshal(data, &e.Message); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return UnknownEvent{Type: header.Type, Raw: data}, nil
	}
}

// AudioFrame is the outbound audio envelope.
type AudioFrame struct {
	Audio string `json:"audio"`
}

// ControlFrame is the outbound control envelope.
type ControlFrame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}
