// Package types provides the core data types for the Weft server.
package types

import (
	"encoding/json"
	"fmt"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Message is a single entry in a thread transcript. A message carries one or
// more typed parts; parts belonging to the same tool invocation share a
// tool-call id.
type Message struct {
	ID    string      `json:"id"`
	Role  string      `json:"role"` // "user" | "assistant" | "system" | "tool"
	Time  MessageTime `json:"time"`
	Parts []Part      `json:"parts"`

	// Assistant-specific fields
	Agent string `json:"agent,omitempty"`
	Model string `json:"model,omitempty"`
}

// MessageTime contains timestamps for a message.
type MessageTime struct {
	Created int64  `json:"created"`
	Updated *int64 `json:"updated,omitempty"`
}

// Text returns the concatenated text content of the message's text parts.
func (m *Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if tp, ok := p.(*TextPart); ok {
			out += tp.Text
		}
	}
	return out
}

// UnmarshalJSON decodes the polymorphic parts list by its type tag.
func (m *Message) UnmarshalJSON(data []byte) error {
	type alias Message
	aux := struct {
		*alias
		Parts []json.RawMessage `json:"parts"`
	}{alias: (*alias)(m)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	m.Parts = make([]Part, 0, len(aux.Parts))
	for _, raw := range aux.Parts {
		part, err := UnmarshalPart(raw)
		if err != nil {
			return fmt.Errorf("message %s: %w", m.ID, err)
		}
		if part != nil {
			m.Parts = append(m.Parts, part)
		}
	}
	return nil
}
