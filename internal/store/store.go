// Package store persists thread state on top of the storage layer.
//
// Records are keyed by (session, thread): the thread's transcript, its
// settings, and the session-level model override. The store guarantees
// at-most-one in-flight writer per thread: callers that merge and replace a
// transcript hold the thread's lock across the read-merge-write cycle.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/weftwork/weft/internal/storage"
	"github.com/weftwork/weft/pkg/types"
)

var (
	// ErrThreadNotFound is returned when an operation targets a thread that
	// does not exist.
	ErrThreadNotFound = errors.New("thread not found")
	// ErrThreadExists is returned when creating a thread that already exists.
	ErrThreadExists = errors.New("thread already exists")
)

// ThreadStore provides keyed access to session and thread state.
type ThreadStore struct {
	storage *storage.Storage

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a ThreadStore over the given storage.
func New(st *storage.Storage) *ThreadStore {
	return &ThreadStore{
		storage: st,
		locks:   make(map[string]*sync.Mutex),
	}
}

// threadRecord is the persisted marker for a thread. Settings live in a
// separate record so clearing the transcript never touches them.
type threadRecord struct {
	ID      string `json:"id"`
	Created int64  `json:"created"`
}

type sessionModelRecord struct {
	Model string `json:"model"`
}

type identityRecord struct {
	SessionID string `json:"sessionID"`
}

func threadPath(sessionID, threadID string, rest ...string) []string {
	return append([]string{"sessions", sessionID, "threads", threadID}, rest...)
}

// LockThread acquires the writer lock for one (session, thread) key and
// returns the release function. Concurrent merges on the same thread
// serialize here.
func (s *ThreadStore) LockThread(sessionID, threadID string) func() {
	key := sessionID + "/" + threadID

	s.mu.Lock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// ThreadExists reports whether the thread has been created.
func (s *ThreadStore) ThreadExists(ctx context.Context, sessionID, threadID string) bool {
	return s.storage.Exists(ctx, threadPath(sessionID, threadID, "thread"))
}

// ListThreads returns the session's thread ids. The order is stable across
// calls; generated ids are ULIDs, so it also tracks creation order.
func (s *ThreadStore) ListThreads(ctx context.Context, sessionID string) ([]string, error) {
	return s.storage.List(ctx, []string{"sessions", sessionID, "threads"})
}

// CreateThread creates a thread with an empty transcript and default
// settings. Returns ErrThreadExists if the id is taken. The existence check
// and the create run under the thread's writer lock so exactly-concurrent
// creates of the same id cannot both succeed.
func (s *ThreadStore) CreateThread(ctx context.Context, sessionID, threadID string, created int64) error {
	unlock := s.LockThread(sessionID, threadID)
	defer unlock()

	if s.ThreadExists(ctx, sessionID, threadID) {
		return ErrThreadExists
	}

	rec := threadRecord{ID: threadID, Created: created}
	if err := s.storage.Put(ctx, threadPath(sessionID, threadID, "thread"), rec); err != nil {
		return fmt.Errorf("failed to create thread: %w", err)
	}
	if err := s.storage.Put(ctx, threadPath(sessionID, threadID, "transcript"), []types.Message{}); err != nil {
		return fmt.Errorf("failed to initialize transcript: %w", err)
	}
	return nil
}

// DeleteThread removes all persisted state for the thread.
func (s *ThreadStore) DeleteThread(ctx context.Context, sessionID, threadID string) error {
	if !s.ThreadExists(ctx, sessionID, threadID) {
		return ErrThreadNotFound
	}
	return s.storage.DeleteAll(ctx, threadPath(sessionID, threadID))
}

// ClearThread resets the transcript to empty, preserving thread identity and
// settings.
func (s *ThreadStore) ClearThread(ctx context.Context, sessionID, threadID string) error {
	if !s.ThreadExists(ctx, sessionID, threadID) {
		return ErrThreadNotFound
	}
	return s.storage.Put(ctx, threadPath(sessionID, threadID, "transcript"), []types.Message{})
}

// ThreadSettings returns the thread's settings. A thread with no stored
// settings record has default settings.
func (s *ThreadStore) ThreadSettings(ctx context.Context, sessionID, threadID string) (types.ThreadSettings, error) {
	var settings types.ThreadSettings
	err := s.storage.Get(ctx, threadPath(sessionID, threadID, "settings"), &settings)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return types.ThreadSettings{}, err
	}
	return settings, nil
}

// SetThreadSettings replaces the thread's settings.
func (s *ThreadStore) SetThreadSettings(ctx context.Context, sessionID, threadID string, settings types.ThreadSettings) error {
	return s.storage.Put(ctx, threadPath(sessionID, threadID, "settings"), settings)
}

// SessionModel returns the session's model override, or "" when unset.
func (s *ThreadStore) SessionModel(ctx context.Context, sessionID string) (string, error) {
	var rec sessionModelRecord
	err := s.storage.Get(ctx, []string{"sessions", sessionID, "model"}, &rec)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return rec.Model, nil
}

// SetSessionModel stores the session's model override. An empty model clears
// the override.
func (s *ThreadStore) SetSessionModel(ctx context.Context, sessionID, model string) error {
	path := []string{"sessions", sessionID, "model"}
	if strings.TrimSpace(model) == "" {
		return s.storage.Delete(ctx, path)
	}
	return s.storage.Put(ctx, path, sessionModelRecord{Model: model})
}

// Transcript loads the thread's full transcript.
func (s *ThreadStore) Transcript(ctx context.Context, sessionID, threadID string) ([]types.Message, error) {
	var messages []types.Message
	err := s.storage.Get(ctx, threadPath(sessionID, threadID, "transcript"), &messages)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return []types.Message{}, nil
		}
		return nil, err
	}
	return messages, nil
}

// ReplaceTranscript atomically replaces the thread's transcript. This is a
// whole-transcript write, not a delta.
func (s *ThreadStore) ReplaceTranscript(ctx context.Context, sessionID, threadID string, messages []types.Message) error {
	return s.storage.Put(ctx, threadPath(sessionID, threadID, "transcript"), messages)
}

// LoadOrCreateSessionID returns the persisted session id, minting and
// persisting one on first use.
func (s *ThreadStore) LoadOrCreateSessionID(ctx context.Context) (string, error) {
	var rec identityRecord
	err := s.storage.Get(ctx, []string{"identity"}, &rec)
	if err == nil && rec.SessionID != "" {
		return rec.SessionID, nil
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}

	rec.SessionID = ulid.Make().String()
	if err := s.storage.Put(ctx, []string{"identity"}, rec); err != nil {
		return "", fmt.Errorf("failed to persist session id: %w", err)
	}
	return rec.SessionID, nil
}
