// Package agent provides the agent capability registry and id resolution.
package agent

import (
	"context"
	"io"

	"github.com/weftwork/weft/pkg/types"
)

// Plugin is the capability bundle one agent backend exposes. Only CreateAgent
// is required; every other hook is optional and checked for presence before
// invocation.
type Plugin struct {
	ID           string
	Name         string
	DefaultModel string

	// CreateAgent builds a runnable for the given model id.
	CreateAgent func(model string) (Runner, error)

	// ListModels enumerates the models this backend can run.
	ListModels func() []string

	// ValidateModel rejects model ids this backend cannot serve.
	ValidateModel func(model string) error

	// CreateDeps builds per-run dependencies handed to the runner.
	CreateDeps func(ctx context.Context) (any, error)

	// OnComplete observes the finalized messages of each run.
	OnComplete func(ctx context.Context, threadID string, produced []types.Message)
}

// DisplayName returns the plugin's human-readable name, falling back to its
// id.
func (p *Plugin) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

// RunInput is the payload for one agent run.
type RunInput struct {
	Prompt  string
	History []types.Message
	Deps    any
}

// Runner executes one submitted turn and streams the response.
type Runner interface {
	Run(ctx context.Context, input RunInput) (Stream, error)
}

// Stream delivers a run's events in arrival order. Recv returns io.EOF when
// the run has emitted its last event.
type Stream interface {
	Recv() (types.StreamEvent, error)
	Close() error
}

// ScriptedStream replays a fixed event sequence. Used by the built-in echo
// agent and by tests.
type ScriptedStream struct {
	events []types.StreamEvent
	next   int
}

// NewScriptedStream creates a stream that yields the given events in order.
func NewScriptedStream(events ...types.StreamEvent) *ScriptedStream {
	return &ScriptedStream{events: events}
}

func (s *ScriptedStream) Recv() (types.StreamEvent, error) {
	if s.next >= len(s.events) {
		return nil, io.EOF
	}
	ev := s.events[s.next]
	s.next++
	return ev, nil
}

func (s *ScriptedStream) Close() error { return nil }
