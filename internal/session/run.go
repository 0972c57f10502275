package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/weftwork/weft/internal/agent"
	"github.com/weftwork/weft/internal/event"
	"github.com/weftwork/weft/internal/logging"
	"github.com/weftwork/weft/internal/selection"
	"github.com/weftwork/weft/pkg/types"
)

const (
	// persistMaxRetries bounds retries of the transcript replace.
	persistMaxRetries = 3
	// persistInitialInterval is the initial retry interval.
	persistInitialInterval = 250 * time.Millisecond
	// persistMaxInterval caps the retry interval.
	persistMaxInterval = 5 * time.Second
)

// newPersistBackoff builds the retry policy for transcript writes. The merge
// is idempotent, so retrying a failed write is safe.
func newPersistBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = persistInitialInterval
	b.MaxInterval = persistMaxInterval
	b.RandomizationFactor = 0.5
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, persistMaxRetries), ctx)
}

// RunRequest is one submitted turn for a thread.
type RunRequest struct {
	SessionID string
	ThreadID  string

	// Prompt is the user's text for this turn. When Submitted is empty a
	// user message is built from it.
	Prompt string

	// Submitted is the request-supplied message window. By policy this is
	// the newest user turn(s); overlap with persisted history is dropped by
	// id during the merge.
	Submitted []types.Message
}

// RunResult is the outcome of a completed run.
type RunResult struct {
	Produced   []types.Message
	Transcript []types.Message
	Agent      string
	Model      string
}

// ErrRunActive is returned when a thread already has a run in flight.
var ErrRunActive = errors.New("thread already has an active run")

// Run executes one turn: resolve the effective agent and model, stream the
// agent's response through the assembler while forwarding live deltas to the
// bus, then merge and persist the transcript. Cancelling ctx stops stream
// consumption but still finalizes open buffers and persists partial
// progress.
func (s *Service) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if !s.store.ThreadExists(ctx, req.SessionID, req.ThreadID) {
		return nil, ErrThreadNotFound
	}

	agentSel, err := selection.SelectAgentForThread(ctx, s.registry, s.store, req.SessionID, req.ThreadID)
	if err != nil {
		return nil, err
	}
	modelSel, err := selection.SelectSessionModel(ctx, s.store, req.SessionID, agentSel.Plugin)
	if err != nil {
		return nil, err
	}

	runCtx, cancel, err := s.trackRun(ctx, req.SessionID, req.ThreadID)
	if err != nil {
		return nil, err
	}
	defer s.untrackRun(req.SessionID, req.ThreadID, cancel)

	submitted := req.Submitted
	if len(submitted) == 0 && req.Prompt != "" {
		submitted = []types.Message{newUserMessage(req.Prompt)}
	}

	history, err := s.store.Transcript(ctx, req.SessionID, req.ThreadID)
	if err != nil {
		return nil, err
	}

	plugin := agentSel.Plugin
	if plugin.CreateAgent == nil {
		return nil, fmt.Errorf("agent %s has no runnable backend", agentSel.AgentID)
	}

	input := agent.RunInput{
		Prompt:  promptText(req, submitted),
		History: history,
	}
	if plugin.CreateDeps != nil {
		deps, err := plugin.CreateDeps(runCtx)
		if err != nil {
			return nil, fmt.Errorf("failed to create run dependencies: %w", err)
		}
		input.Deps = deps
	}

	runner, err := plugin.CreateAgent(modelSel.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	s.bus.Publish(event.Event{
		Type: event.RunStarted,
		Data: event.RunStartedData{
			SessionID: req.SessionID,
			ThreadID:  req.ThreadID,
			Agent:     agentSel.AgentID,
			Model:     modelSel.Model,
		},
	})

	asm := NewAssembler()
	streamErr := s.consumeStream(runCtx, req, runner, input, asm)

	produced := asm.Finalize(agentSel.AgentID, modelSel.Model)

	// Partial progress is persisted even when the stream failed or was
	// cancelled.
	transcript, persistErr := s.mergeAndPersist(ctx, req.SessionID, req.ThreadID, submitted, produced)
	if persistErr != nil {
		return nil, persistErr
	}

	if plugin.OnComplete != nil {
		plugin.OnComplete(ctx, req.ThreadID, produced)
	}

	if streamErr != nil {
		s.bus.Publish(event.Event{
			Type: event.RunErrored,
			Data: event.RunErroredData{
				SessionID: req.SessionID,
				ThreadID:  req.ThreadID,
				Error:     streamErr.Error(),
			},
		})
	} else {
		s.bus.Publish(event.Event{
			Type: event.RunCompleted,
			Data: event.RunCompletedData{
				SessionID: req.SessionID,
				ThreadID:  req.ThreadID,
				Produced:  produced,
			},
		})
	}

	return &RunResult{
		Produced:   produced,
		Transcript: transcript,
		Agent:      agentSel.AgentID,
		Model:      modelSel.Model,
	}, nil
}

// consumeStream pulls events one at a time, forwarding each to the bus and
// the assembler. A transport failure mid-stream is folded into the run as an
// error event; it never discards what already arrived.
func (s *Service) consumeStream(ctx context.Context, req RunRequest, runner agent.Runner, input agent.RunInput, asm *Assembler) error {
	stream, err := runner.Run(ctx, input)
	if err != nil {
		asm.Handle(types.ErrorEvent{ErrorText: err.Error()})
		return err
	}
	defer stream.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ev, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			asm.Handle(types.ErrorEvent{ErrorText: err.Error()})
			return err
		}

		if _, unknown := ev.(types.UnknownEvent); unknown {
			logging.Debug().
				Str("type", ev.EventType()).
				Msg("dropping unrecognized stream event")
			continue
		}

		s.bus.PublishSync(event.Event{
			Type: event.RunDelta,
			Data: event.RunDeltaData{
				SessionID: req.SessionID,
				ThreadID:  req.ThreadID,
				Event:     ev,
			},
		})
		asm.Handle(ev)
	}
}

// mergeAndPersist serializes with other writers on the thread, merges, and
// replaces the transcript, retrying transient write failures.
func (s *Service) mergeAndPersist(ctx context.Context, sessionID, threadID string, submitted, produced []types.Message) ([]types.Message, error) {
	unlock := s.store.LockThread(sessionID, threadID)
	defer unlock()

	history, err := s.store.Transcript(ctx, sessionID, threadID)
	if err != nil {
		return nil, err
	}

	merged := MergeTranscript(history, submitted, produced)

	persist := func() error {
		return s.store.ReplaceTranscript(ctx, sessionID, threadID, merged)
	}
	if err := backoff.Retry(persist, newPersistBackoff(ctx)); err != nil {
		return nil, fmt.Errorf("failed to persist transcript: %w", err)
	}

	return merged, nil
}

// Abort cancels the in-flight run on a thread, if any.
func (s *Service) Abort(sessionID, threadID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cancel, ok := s.active[sessionID+"/"+threadID]
	if ok {
		cancel()
	}
	return ok
}

// IsRunning reports whether the thread has a run in flight.
func (s *Service) IsRunning(sessionID, threadID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[sessionID+"/"+threadID]
	return ok
}

func (s *Service) trackRun(ctx context.Context, sessionID, threadID string) (context.Context, context.CancelFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionID + "/" + threadID
	if _, ok := s.active[key]; ok {
		return nil, nil, ErrRunActive
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.active[key] = cancel
	return runCtx, cancel, nil
}

func (s *Service) untrackRun(sessionID, threadID string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, sessionID+"/"+threadID)
	cancel()
}

// promptText extracts the prompt handed to the agent: the request's prompt,
// or the submitted window's user text.
func promptText(req RunRequest, submitted []types.Message) string {
	if req.Prompt != "" {
		return req.Prompt
	}
	for i := len(submitted) - 1; i >= 0; i-- {
		if submitted[i].Role == types.RoleUser {
			return submitted[i].Text()
		}
	}
	return ""
}

// newUserMessage builds the user message for a submitted prompt.
func newUserMessage(prompt string) types.Message {
	return types.Message{
		ID:   generateID(),
		Role: types.RoleUser,
		Time: types.MessageTime{Created: time.Now().UnixMilli()},
		Parts: []types.Part{&types.TextPart{
			ID:   generateID(),
			Type: "text",
			Text: prompt,
		}},
	}
}
