package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/weftwork/weft/pkg/types"
)

// echoModels are the models the built-in echo agent accepts.
var echoModels = []string{"echo-1", "echo-1-verbose"}

// NewEchoPlugin returns the built-in echo agent. It repeats the submitted
// prompt back as streamed text, which gives a working end-to-end pipeline
// without any external backend. Registered when no other plugin is
// configured, and heavily used by tests.
func NewEchoPlugin() *Plugin {
	return &Plugin{
		ID:           "echo",
		Name:         "Echo",
		DefaultModel: echoModels[0],
		CreateAgent: func(model string) (Runner, error) {
			return &echoRunner{model: model}, nil
		},
		ListModels: func() []string {
			return append([]string(nil), echoModels...)
		},
		ValidateModel: func(model string) error {
			for _, m := range echoModels {
				if m == model {
					return nil
				}
			}
			return &ValidationError{
				Message:      fmt.Sprintf("unknown model %q", model),
				Alternatives: append([]string(nil), echoModels...),
			}
		},
	}
}

type echoRunner struct {
	model string
}

func (r *echoRunner) Run(ctx context.Context, input RunInput) (Stream, error) {
	id := ulid.Make().String()
	events := []types.StreamEvent{
		types.TextStartEvent{ID: id},
	}

	// Word-at-a-time deltas so consumers see a real incremental stream.
	for i, word := range strings.Fields(input.Prompt) {
		delta := word
		if i > 0 {
			delta = " " + word
		}
		events = append(events, types.TextDeltaEvent{ID: id, Delta: delta})
	}

	return NewScriptedStream(events...), nil
}
