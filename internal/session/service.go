// Package session implements thread lifecycle, the event assembler, and the
// transcript merge pipeline.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/weftwork/weft/internal/agent"
	"github.com/weftwork/weft/internal/event"
	"github.com/weftwork/weft/internal/logging"
	"github.com/weftwork/weft/internal/selection"
	"github.com/weftwork/weft/internal/store"
	"github.com/weftwork/weft/pkg/types"
)

// Lifecycle errors, re-exported from the store so callers depend on one
// package.
var (
	ErrThreadNotFound = store.ErrThreadNotFound
	ErrThreadExists   = store.ErrThreadExists
)

// DefaultThreadID is the thread bootstrap creates for a session that has
// none.
const DefaultThreadID = "default"

// Service manages sessions and threads.
type Service struct {
	store    *store.ThreadStore
	registry *agent.Registry
	bus      *event.Bus

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewService creates a session service.
func NewService(st *store.ThreadStore, reg *agent.Registry, bus *event.Bus) *Service {
	return &Service{
		store:    st,
		registry: reg,
		bus:      bus,
		active:   make(map[string]context.CancelFunc),
	}
}

// Store exposes the underlying thread store.
func (s *Service) Store() *store.ThreadStore { return s.store }

// Registry exposes the agent registry.
func (s *Service) Registry() *agent.Registry { return s.registry }

// ListThreads returns the session's thread ids.
func (s *Service) ListThreads(ctx context.Context, sessionID string) ([]string, error) {
	return s.store.ListThreads(ctx, sessionID)
}

// CreateThread creates a thread, minting an id when none is supplied.
// Returns ErrThreadExists for a duplicate explicit id.
func (s *Service) CreateThread(ctx context.Context, sessionID, threadID string) (string, error) {
	if threadID == "" {
		threadID = generateID()
	}

	if err := s.store.CreateThread(ctx, sessionID, threadID, time.Now().UnixMilli()); err != nil {
		return "", err
	}

	s.bus.Publish(event.Event{
		Type: event.ThreadCreated,
		Data: event.ThreadData{SessionID: sessionID, ThreadID: threadID},
	})
	return threadID, nil
}

// DeleteThread removes a thread and its transcript irreversibly.
func (s *Service) DeleteThread(ctx context.Context, sessionID, threadID string) error {
	if err := s.store.DeleteThread(ctx, sessionID, threadID); err != nil {
		return err
	}

	s.bus.Publish(event.Event{
		Type: event.ThreadDeleted,
		Data: event.ThreadData{SessionID: sessionID, ThreadID: threadID},
	})
	return nil
}

// ClearThread empties a thread's transcript, preserving its settings.
func (s *Service) ClearThread(ctx context.Context, sessionID, threadID string) error {
	if err := s.store.ClearThread(ctx, sessionID, threadID); err != nil {
		return err
	}

	s.bus.Publish(event.Event{
		Type: event.ThreadCleared,
		Data: event.ThreadData{SessionID: sessionID, ThreadID: threadID},
	})
	return nil
}

// ThreadState assembles the full client-facing view of one thread: effective
// agent, effective model, and transcript.
func (s *Service) ThreadState(ctx context.Context, sessionID, threadID string) (*types.ThreadState, error) {
	if !s.store.ThreadExists(ctx, sessionID, threadID) {
		return nil, ErrThreadNotFound
	}

	agentSel, err := selection.SelectAgentForThread(ctx, s.registry, s.store, sessionID, threadID)
	if err != nil {
		return nil, err
	}

	modelSel, err := selection.SelectSessionModel(ctx, s.store, sessionID, agentSel.Plugin)
	if err != nil {
		return nil, err
	}

	messages, err := s.store.Transcript(ctx, sessionID, threadID)
	if err != nil {
		return nil, err
	}

	return &types.ThreadState{
		ThreadID: threadID,
		Agent:    agentSel.Info(),
		Model:    modelSel.Info(),
		Messages: messages,
	}, nil
}

// ThreadStateUpdate is a partial update to a thread's settings. A nil field
// is untouched; a present-but-empty field resets to the default.
type ThreadStateUpdate struct {
	Agent *string
	Model *string
}

// UpdateThreadState applies a partial settings update and returns the
// resulting thread state.
func (s *Service) UpdateThreadState(ctx context.Context, sessionID, threadID string, update ThreadStateUpdate) (*types.ThreadState, error) {
	if !s.store.ThreadExists(ctx, sessionID, threadID) {
		return nil, ErrThreadNotFound
	}

	agentSel, err := selection.SelectAgentForThread(ctx, s.registry, s.store, sessionID, threadID)
	if err != nil {
		return nil, err
	}

	if update.Agent != nil {
		agentSel, err = selection.SetThreadAgent(ctx, s.registry, s.store, sessionID, threadID, *update.Agent)
		if err != nil {
			return nil, err
		}
	}

	if update.Model != nil {
		if _, err := selection.SetSessionModel(ctx, s.store, sessionID, agentSel.Plugin, *update.Model); err != nil {
			return nil, err
		}
	}

	s.bus.Publish(event.Event{
		Type: event.ThreadUpdated,
		Data: event.ThreadData{SessionID: sessionID, ThreadID: threadID},
	})

	return s.ThreadState(ctx, sessionID, threadID)
}

// Bootstrap establishes the caller's session and selects a thread: the
// explicitly requested one, else the first existing thread, else an
// implicitly created DefaultThreadID. Implicit creation tolerates the
// concurrent-bootstrap race: AlreadyExists is swallowed here and only here.
func (s *Service) Bootstrap(ctx context.Context, requestedThread string) (*types.BootstrapResult, error) {
	sessionID, err := s.store.LoadOrCreateSessionID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to establish session: %w", err)
	}

	threads, err := s.store.ListThreads(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	selected := requestedThread
	if selected == "" {
		if len(threads) > 0 {
			selected = threads[0]
		} else {
			selected = DefaultThreadID
		}
	}

	if !contains(threads, selected) {
		if _, err := s.CreateThread(ctx, sessionID, selected); err != nil && !errors.Is(err, ErrThreadExists) {
			return nil, err
		}
		if threads, err = s.store.ListThreads(ctx, sessionID); err != nil {
			return nil, err
		}
	}

	state, err := s.ThreadState(ctx, sessionID, selected)
	if err != nil {
		return nil, err
	}

	logging.Debug().
		Str("sessionID", sessionID).
		Str("threadID", selected).
		Msg("session bootstrapped")

	return &types.BootstrapResult{
		SessionID: sessionID,
		ThreadID:  selected,
		Threads:   threads,
		Agent:     state.Agent,
		Model:     state.Model,
		Messages:  state.Messages,
	}, nil
}

func contains(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}
