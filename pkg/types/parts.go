package types

import (
	"encoding/json"
	"fmt"
)

// Part represents a component of a message.
type Part interface {
	PartType() string
	PartID() string
}

// PartTime contains timing information for a message part.
type PartTime struct {
	Start *int64 `json:"start,omitempty"`
	End   *int64 `json:"end,omitempty"`
}

// TextPart represents plain text content.
type TextPart struct {
	ID   string   `json:"id"`
	Type string   `json:"type"` // always "text"
	Text string   `json:"text"`
	Time PartTime `json:"time,omitempty"`
}

func (p *TextPart) PartType() string { return "text" }
func (p *TextPart) PartID() string   { return p.ID }

// ReasoningPart represents chain-of-thought content, stored and rendered
// distinctly from assistant text.
type ReasoningPart struct {
	ID   string   `json:"id"`
	Type string   `json:"type"` // always "reasoning"
	Text string   `json:"text"`
	Time PartTime `json:"time,omitempty"`
}

func (p *ReasoningPart) PartType() string { return "reasoning" }
func (p *ReasoningPart) PartID() string   { return p.ID }

// ToolPart represents one tool invocation: its name, input, and eventual
// output or error, correlated by ToolCallID.
type ToolPart struct {
	ID         string   `json:"id"`
	Type       string   `json:"type"` // always "tool"
	ToolCallID string   `json:"toolCallId"`
	ToolName   string   `json:"toolName"`
	Input      any      `json:"input,omitempty"`
	RawInput   string   `json:"rawInput,omitempty"`
	Output     any      `json:"output,omitempty"`
	State      string   `json:"state"` // "pending" | "completed" | "error"
	Time       PartTime `json:"time,omitempty"`
}

func (p *ToolPart) PartType() string { return "tool" }
func (p *ToolPart) PartID() string   { return p.ID }

// Tool part states.
const (
	ToolStatePending   = "pending"
	ToolStateCompleted = "completed"
	ToolStateError     = "error"
)

// ToolOutput is the uniform result shape attached to a completed tool part.
// Errors use the same shape with a non-zero exit code.
type ToolOutput struct {
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
	ExitCode int    `json:"exit_code"`
	TimedOut bool   `json:"timed_out,omitempty"`
}

// FilePart references an attached file by name and media type.
type FilePart struct {
	ID        string `json:"id"`
	Type      string `json:"type"` // always "file"
	Filename  string `json:"filename,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
	URL       string `json:"url,omitempty"`
}

func (p *FilePart) PartType() string { return "file" }
func (p *FilePart) PartID() string   { return p.ID }

// UnmarshalPart decodes a single part by its "type" tag. Unknown part types
// decode to nil so old transcripts survive format evolution.
func UnmarshalPart(data []byte) (Part, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to probe part type: %w", err)
	}

	switch probe.Type {
	case "text":
		var p TextPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	case "reasoning":
		var p ReasoningPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	case "tool":
		var p ToolPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	case "file":
		var p FilePart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	default:
		return nil, nil
	}
}
