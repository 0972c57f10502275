package types

import "encoding/json"

// StreamEvent is one incremental event from an agent run. The set of
// variants is closed; wire payloads with an unrecognized type decode to
// UnknownEvent, which consumers drop rather than failing on.
type StreamEvent interface {
	EventType() string
	streamEvent()
}

// Stream event type tags.
const (
	EventTextStart           = "text-start"
	EventTextDelta           = "text-delta"
	EventReasoningStart      = "reasoning-start"
	EventReasoningDelta      = "reasoning-delta"
	EventToolInputStart      = "tool-input-start"
	EventToolInputDelta      = "tool-input-delta"
	EventToolInputAvailable  = "tool-input-available"
	EventToolOutputAvailable = "tool-output-available"
	EventToolOutputError     = "tool-output-error"
	EventError               = "error"
)

// TextStartEvent opens a new assistant text message.
type TextStartEvent struct {
	ID string `json:"id"`
}

func (TextStartEvent) EventType() string { return EventTextStart }
func (TextStartEvent) streamEvent()      {}

// TextDeltaEvent appends a text fragment to an open message.
type TextDeltaEvent struct {
	ID    string `json:"id"`
	Delta string `json:"delta"`
}

func (TextDeltaEvent) EventType() string { return EventTextDelta }
func (TextDeltaEvent) streamEvent()      {}

// ReasoningStartEvent opens a new reasoning message.
type ReasoningStartEvent struct {
	ID string `json:"id"`
}

func (ReasoningStartEvent) EventType() string { return EventReasoningStart }
func (ReasoningStartEvent) streamEvent()      {}

// ReasoningDeltaEvent appends a reasoning fragment to an open message.
type ReasoningDeltaEvent struct {
	ID    string `json:"id"`
	Delta string `json:"delta"`
}

func (ReasoningDeltaEvent) EventType() string { return EventReasoningDelta }
func (ReasoningDeltaEvent) streamEvent()      {}

// ToolInputStartEvent announces a tool call before its input is known.
type ToolInputStartEvent struct {
	ToolCallID string `json:"toolCallId"`
	ToolName   string `json:"toolName"`
}

func (ToolInputStartEvent) EventType() string { return EventToolInputStart }
func (ToolInputStartEvent) streamEvent()      {}

// ToolInputDeltaEvent carries a fragment of the tool call's raw input text.
type ToolInputDeltaEvent struct {
	ToolCallID     string `json:"toolCallId"`
	InputTextDelta string `json:"inputTextDelta"`
}

func (ToolInputDeltaEvent) EventType() string { return EventToolInputDelta }
func (ToolInputDeltaEvent) streamEvent()      {}

// ToolInputAvailableEvent carries the authoritative structured input for a
// tool call. It supersedes any accumulated input deltas.
type ToolInputAvailableEvent struct {
	ToolCallID string `json:"toolCallId"`
	ToolName   string `json:"toolName"`
	Input      any    `json:"input"`
}

func (ToolInputAvailableEvent) EventType() string { return EventToolInputAvailable }
func (ToolInputAvailableEvent) streamEvent()      {}

// ToolOutputAvailableEvent attaches the tool's output to a call.
type ToolOutputAvailableEvent struct {
	ToolCallID string `json:"toolCallId"`
	Output     any    `json:"output"`
}

func (ToolOutputAvailableEvent) EventType() string { return EventToolOutputAvailable }
func (ToolOutputAvailableEvent) streamEvent()      {}

// ToolOutputErrorEvent attaches a tool failure to a call.
type ToolOutputErrorEvent struct {
	ToolCallID string `json:"toolCallId"`
	ErrorText  string `json:"errorText"`
}

func (ToolOutputErrorEvent) EventType() string { return EventToolOutputError }
func (ToolOutputErrorEvent) streamEvent()      {}

// ErrorEvent is a run-level error. It does not touch open buffers; the run
// still reaches a terminal state.
type ErrorEvent struct {
	ErrorText string `json:"errorText"`
}

func (ErrorEvent) EventType() string { return EventError }
func (ErrorEvent) streamEvent()      {}

// UnknownEvent preserves the raw payload of an event type this version does
// not understand.
type UnknownEvent struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

func (e UnknownEvent) EventType() string { return e.Type }
func (UnknownEvent) streamEvent()        {}

// MarshalStreamEvent encodes an event as a tagged JSON object.
func MarshalStreamEvent(ev StreamEvent) ([]byte, error) {
	if u, ok := ev.(UnknownEvent); ok && len(u.Raw) > 0 {
		return u.Raw, nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	typeTag, err := json.Marshal(ev.EventType())
	if err != nil {
		return nil, err
	}
	fields["type"] = typeTag
	return json.Marshal(fields)
}

// UnmarshalStreamEvent decodes a tagged JSON object into its event variant.
// An unrecognized type tag yields UnknownEvent, never an error.
func UnmarshalStreamEvent(data []byte) (StreamEvent, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}

	switch probe.Type {
	case EventTextStart:
		var ev TextStartEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventTextDelta:
		var ev TextDeltaEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventReasoningStart:
		var ev ReasoningStartEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventReasoningDelta:
		var ev ReasoningDeltaEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventToolInputStart:
		var ev ToolInputStartEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventToolInputDelta:
		var ev ToolInputDeltaEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventToolInputAvailable:
		var ev ToolInputAvailableEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventToolOutputAvailable:
		var ev ToolOutputAvailableEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventToolOutputError:
		var ev ToolOutputErrorEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventError:
		var ev ErrorEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	default:
		raw := make(json.RawMessage, len(data))
		copy(raw, data)
		return UnknownEvent{Type: probe.Type, Raw: raw}, nil
	}
}
