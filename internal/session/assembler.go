package session

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/weftwork/weft/pkg/types"
)

// Assembler reconstructs discrete messages from one run's event stream. It
// is a per-run state machine: open text and reasoning buffers plus tool-call
// records accumulate as events arrive, and Finalize folds whatever is open
// into messages in first-observed order. All state is owned by the run and
// discarded with it.
type Assembler struct {
	buffers map[string]*openBuffer
	tools   map[string]*toolCallRecord

	// order lists correlation keys in first-observed order. Maps alone
	// cannot carry this: Go map iteration order is unspecified.
	order []orderKey

	errors []string
}

type orderKind int

const (
	kindText orderKind = iota
	kindReasoning
	kindTool
	kindError
)

type orderKey struct {
	kind orderKind
	id   string
}

// openBuffer accumulates delta fragments for an in-progress text or
// reasoning message.
type openBuffer struct {
	content strings.Builder
	started int64
}

// toolCallRecord tracks one tool invocation. Any of the three tool event
// kinds may create it: an output can legitimately arrive before this side
// observed any input event.
type toolCallRecord struct {
	name     string
	rawInput strings.Builder
	input    any
	hasInput bool
	output   any
	errored  bool
	done     bool
	started  int64
}

// NewAssembler creates an empty per-run assembler.
func NewAssembler() *Assembler {
	return &Assembler{
		buffers: make(map[string]*openBuffer),
		tools:   make(map[string]*toolCallRecord),
	}
}

// Handle applies one stream event. Events with an unrecognized type or a
// missing correlation id are dropped; handling never fails.
func (a *Assembler) Handle(ev types.StreamEvent) {
	switch e := ev.(type) {
	case types.TextStartEvent:
		id := e.ID
		if id == "" {
			id = fallbackEventID()
		}
		a.openText(id)
	case types.TextDeltaEvent:
		if e.ID == "" {
			return
		}
		a.appendText(e.ID, kindText, e.Delta)
	case types.ReasoningStartEvent:
		id := e.ID
		if id == "" {
			id = fallbackEventID()
		}
		a.openReasoning(id)
	case types.ReasoningDeltaEvent:
		if e.ID == "" {
			return
		}
		a.appendText(e.ID, kindReasoning, e.Delta)
	case types.ToolInputStartEvent:
		if e.ToolCallID == "" {
			return
		}
		rec := a.tool(e.ToolCallID)
		if e.ToolName != "" {
			rec.name = e.ToolName
		}
	case types.ToolInputDeltaEvent:
		if e.ToolCallID == "" || e.InputTextDelta == "" {
			return
		}
		a.tool(e.ToolCallID).rawInput.WriteString(e.InputTextDelta)
	case types.ToolInputAvailableEvent:
		if e.ToolCallID == "" {
			return
		}
		rec := a.tool(e.ToolCallID)
		if e.ToolName != "" {
			rec.name = e.ToolName
		}
		// Authoritative structured input supersedes accumulated deltas.
		rec.input = e.Input
		rec.hasInput = true
	case types.ToolOutputAvailableEvent:
		if e.ToolCallID == "" {
			return
		}
		rec := a.tool(e.ToolCallID)
		rec.output = e.Output
		rec.done = true
	case types.ToolOutputErrorEvent:
		if e.ToolCallID == "" {
			return
		}
		rec := a.tool(e.ToolCallID)
		rec.output = types.ToolOutput{Stderr: e.ErrorText, ExitCode: 1}
		rec.errored = true
		rec.done = true
	case types.ErrorEvent:
		// Run-level error: surfaced as a system-visible message, open
		// buffers untouched.
		text := e.ErrorText
		if text == "" {
			text = "Unknown error"
		}
		a.errors = append(a.errors, "Run error: "+text)
		a.order = append(a.order, orderKey{kind: kindError, id: text})
	}
}

func (a *Assembler) openText(id string) *openBuffer {
	buf, ok := a.buffers[id]
	if !ok {
		buf = &openBuffer{started: time.Now().UnixMilli()}
		a.buffers[id] = buf
		a.order = append(a.order, orderKey{kind: kindText, id: id})
	}
	return buf
}

func (a *Assembler) openReasoning(id string) *openBuffer {
	buf, ok := a.buffers[id]
	if !ok {
		buf = &openBuffer{started: time.Now().UnixMilli()}
		a.buffers[id] = buf
		a.order = append(a.order, orderKey{kind: kindReasoning, id: id})
	}
	return buf
}

// appendText appends a delta, creating the buffer implicitly when no start
// event was observed for the id.
func (a *Assembler) appendText(id string, kind orderKind, delta string) {
	buf, ok := a.buffers[id]
	if !ok {
		buf = &openBuffer{started: time.Now().UnixMilli()}
		a.buffers[id] = buf
		a.order = append(a.order, orderKey{kind: kind, id: id})
	}
	if delta != "" {
		buf.content.WriteString(delta)
	}
}

// tool returns the record for a tool-call id, creating it with the
// defensive name "tool" on first reference.
func (a *Assembler) tool(id string) *toolCallRecord {
	rec, ok := a.tools[id]
	if !ok {
		rec = &toolCallRecord{name: "tool", started: time.Now().UnixMilli()}
		a.tools[id] = rec
		a.order = append(a.order, orderKey{kind: kindTool, id: id})
	}
	return rec
}

// Finalize folds all open state into immutable messages, in the order each
// correlation id was first observed. Buffers still open (a cancelled or
// partial stream) keep their partial content. The assembler must not be
// reused afterwards.
func (a *Assembler) Finalize(agentID, modelID string) []types.Message {
	now := time.Now().UnixMilli()
	errorIdx := 0

	var messages []types.Message
	for _, key := range a.order {
		switch key.kind {
		case kindText:
			buf := a.buffers[key.id]
			messages = append(messages, types.Message{
				ID:    generateID(),
				Role:  types.RoleAssistant,
				Agent: agentID,
				Model: modelID,
				Time:  types.MessageTime{Created: now},
				Parts: []types.Part{&types.TextPart{
					ID:   generateID(),
					Type: "text",
					Text: buf.content.String(),
					Time: types.PartTime{Start: &buf.started, End: &now},
				}},
			})
		case kindReasoning:
			buf := a.buffers[key.id]
			messages = append(messages, types.Message{
				ID:    generateID(),
				Role:  types.RoleAssistant,
				Agent: agentID,
				Model: modelID,
				Time:  types.MessageTime{Created: now},
				Parts: []types.Part{&types.ReasoningPart{
					ID:   generateID(),
					Type: "reasoning",
					Text: buf.content.String(),
					Time: types.PartTime{Start: &buf.started, End: &now},
				}},
			})
		case kindTool:
			rec := a.tools[key.id]
			messages = append(messages, types.Message{
				ID:    generateID(),
				Role:  types.RoleAssistant,
				Agent: agentID,
				Model: modelID,
				Time:  types.MessageTime{Created: now},
				Parts: []types.Part{rec.finalize(key.id, now)},
			})
		case kindError:
			messages = append(messages, types.Message{
				ID:   generateID(),
				Role: types.RoleSystem,
				Time: types.MessageTime{Created: now},
				Parts: []types.Part{&types.TextPart{
					ID:   generateID(),
					Type: "text",
					Text: a.errors[errorIdx],
				}},
			})
			errorIdx++
		}
	}

	return messages
}

// finalize converts the record into its persisted part. Accumulated raw
// input survives only when no authoritative input replaced it; when the raw
// text parses as JSON it becomes the structured input.
func (r *toolCallRecord) finalize(toolCallID string, now int64) *types.ToolPart {
	part := &types.ToolPart{
		ID:         generateID(),
		Type:       "tool",
		ToolCallID: toolCallID,
		ToolName:   r.name,
		State:      types.ToolStatePending,
		Time:       types.PartTime{Start: &r.started},
	}

	if r.hasInput {
		part.Input = r.input
	} else if raw := r.rawInput.String(); raw != "" {
		part.RawInput = raw
		var parsed any
		if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
			part.Input = parsed
		}
	}

	if r.done {
		part.Output = r.output
		part.Time.End = &now
		if r.errored {
			part.State = types.ToolStateError
		} else {
			part.State = types.ToolStateCompleted
		}
	}

	return part
}
