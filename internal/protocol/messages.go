package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientControl MessageType = "client_control"
	TypeStatus        MessageType = "status"
	TypeTranscript    MessageType = "transcript"
	TypeErrorEvent    MessageType = "error_event"
)

// Control actions accepted from clients.
const (
	ActionStartRecording  = "start_recording"
	ActionStopRecording   = "stop_recording"
	ActionToggleRecording = "toggle_recording"
	ActionSpeak           = "speak"
	ActionHello           = "hello"
	ActionHealth          = "health"
)

var (
	ErrUnsupportedType   = errors.New("unsupported message type")
	ErrUnsupportedAction = errors.New("unsupported control action")
)

type Envelope struct {
	Type MessageType `json:"type"`
}

type ClientControl struct {
	Type   MessageType `json:"type"`
	Action string      `json:"action"`
	Text   string      `json:"text,omitempty"`
	TSMs   int64       `json:"ts_ms,omitempty"`
}

// Status carries the status line and the recording state it was shown in.
type Status struct {
	Type  MessageType `json:"type"`
	Text  string      `json:"text"`
	State string      `json:"state,omitempty"`
	TSMs  int64       `json:"ts_ms"`
}

type Transcript struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
	TSMs int64       `json:"ts_ms"`
}

type ErrorEvent struct {
	Type   MessageType `json:"type"`
	Code   string      `json:"code"`
	Source string      `json:"source"`
	Detail string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		msg.Action = strings.TrimSpace(msg.Action)
		switch msg.Action {
		case "":
			return nil, errors.New("invalid client_control")
		case ActionStartRecording, ActionStopRecording, ActionToggleRecording, ActionSpeak, ActionHello, ActionHealth:
			return msg, nil
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedAction, msg.Action)
		}
	default:
		return nil, ErrUnsupportedType
	}
}
