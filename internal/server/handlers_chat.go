package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/weftwork/weft/internal/event"
	"github.com/weftwork/weft/internal/logging"
	"github.com/weftwork/weft/internal/session"
	"github.com/weftwork/weft/pkg/types"
)

// ChatRequest is the body for POST .../chat. Either a plain prompt or an
// explicit submitted message window.
type ChatRequest struct {
	Prompt   string          `json:"prompt,omitempty"`
	Messages []types.Message `json:"messages,omitempty"`
}

// ChatResult is the terminal payload of a chat stream.
type ChatResult struct {
	SessionID  string          `json:"sessionID"`
	ThreadID   string          `json:"threadID"`
	Agent      string          `json:"agent"`
	Model      string          `json:"model"`
	Produced   []types.Message `json:"produced"`
	Transcript []types.Message `json:"transcript"`
}

// chat handles POST /sessions/{sessionID}/threads/{threadID}/chat.
// The response is an SSE stream: one message event per run delta, then a
// terminal run.completed or run.errored event.
func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	threadID := chi.URLParam(r, "threadID")

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}
	if req.Prompt == "" && len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "prompt or messages required")
		return
	}

	// Fail before committing to a stream: these map to plain JSON errors
	if !s.store.ThreadExists(r.Context(), sessionID, threadID) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "Thread not found")
		return
	}
	if s.sessions.IsRunning(sessionID, threadID) {
		writeError(w, http.StatusConflict, ErrCodeAlreadyExists, "Thread already has an active run")
		return
	}

	setSSEHeaders(w)

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	w.WriteHeader(http.StatusOK)
	sse.flusher.Flush()

	// Deltas are published synchronously from the run goroutine, so every
	// delta is enqueued here before Run returns
	deltas := make(chan event.Event, 256)
	unsub := s.bus.Subscribe(event.RunDelta, func(e event.Event) {
		d, ok := e.Data.(event.RunDeltaData)
		if !ok || d.SessionID != sessionID || d.ThreadID != threadID {
			return
		}
		select {
		case deltas <- e:
		default:
			logging.Warn().
				Str("sessionID", sessionID).
				Str("threadID", threadID).
				Msg("chat delta dropped: channel full")
		}
	})
	defer unsub()

	type outcome struct {
		result *session.RunResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := s.sessions.Run(r.Context(), session.RunRequest{
			SessionID: sessionID,
			ThreadID:  threadID,
			Prompt:    req.Prompt,
			Submitted: req.Messages,
		})
		done <- outcome{result, err}
	}()

	flushDelta := func(e event.Event) bool {
		wire, err := encodeBusEvent(e)
		if err != nil {
			logging.Warn().Err(err).Msg("chat delta encode failed")
			return true
		}
		return sse.writeEvent("message", wire) == nil
	}

	for {
		select {
		case e := <-deltas:
			if !flushDelta(e) {
				return
			}
		case out := <-done:
			// Drain deltas that arrived before the run finished
			for {
				select {
				case e := <-deltas:
					if !flushDelta(e) {
						return
					}
					continue
				default:
				}
				break
			}

			if out.err != nil {
				final := WireEvent{Type: event.RunErrored}
				final.Data, _ = json.Marshal(event.RunErroredData{
					SessionID: sessionID,
					ThreadID:  threadID,
					Error:     out.err.Error(),
				})
				sse.writeEvent("message", final)
				return
			}

			data, err := json.Marshal(ChatResult{
				SessionID:  sessionID,
				ThreadID:   threadID,
				Agent:      out.result.Agent,
				Model:      out.result.Model,
				Produced:   out.result.Produced,
				Transcript: out.result.Transcript,
			})
			if err != nil {
				logging.Error().Err(err).Msg("chat result encode failed")
				return
			}
			sse.writeEvent("message", WireEvent{Type: event.RunCompleted, Data: data})
			return
		}
	}
}
