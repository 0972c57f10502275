package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/weftwork/weft/internal/agent"
	"github.com/weftwork/weft/internal/session"
)

// BootstrapRequest is the body for POST /session/bootstrap.
type BootstrapRequest struct {
	ThreadID string `json:"threadId,omitempty"`
}

// CreateThreadRequest is the body for POST /sessions/{sessionID}/threads.
type CreateThreadRequest struct {
	ThreadID string `json:"threadId,omitempty"`
}

// UpdateThreadStateRequest is the body for PATCH .../state. Pointer fields
// distinguish "absent" from "present but empty": an empty value resets to
// the default.
type UpdateThreadStateRequest struct {
	Agent *string `json:"agent,omitempty"`
	Model *string `json:"model,omitempty"`
}

// bootstrapSession handles POST /session/bootstrap
func (s *Server) bootstrapSession(w http.ResponseWriter, r *http.Request) {
	var req BootstrapRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
			return
		}
	}

	result, err := s.sessions.Bootstrap(r.Context(), req.ThreadID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// listThreads handles GET /sessions/{sessionID}/threads
func (s *Server) listThreads(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	threads, err := s.sessions.ListThreads(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	if threads == nil {
		threads = []string{}
	}

	writeJSON(w, http.StatusOK, map[string][]string{"threads": threads})
}

// createThread handles POST /sessions/{sessionID}/threads
func (s *Server) createThread(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req CreateThreadRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
			return
		}
	}

	threadID, err := s.sessions.CreateThread(r.Context(), sessionID, req.ThreadID)
	if err != nil {
		if errors.Is(err, session.ErrThreadExists) {
			writeError(w, http.StatusConflict, ErrCodeAlreadyExists, "Thread already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"threadId": threadID})
}

// deleteThread handles DELETE /sessions/{sessionID}/threads/{threadID}
func (s *Server) deleteThread(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	threadID := chi.URLParam(r, "threadID")

	if err := s.sessions.DeleteThread(r.Context(), sessionID, threadID); err != nil {
		if errors.Is(err, session.ErrThreadNotFound) {
			writeError(w, http.StatusNotFound, ErrCodeNotFound, "Thread not found")
			return
		}
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"deleted": threadID})
}

// clearThread handles POST /sessions/{sessionID}/threads/{threadID}/clear
func (s *Server) clearThread(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	threadID := chi.URLParam(r, "threadID")

	if err := s.sessions.ClearThread(r.Context(), sessionID, threadID); err != nil {
		if errors.Is(err, session.ErrThreadNotFound) {
			writeError(w, http.StatusNotFound, ErrCodeNotFound, "Thread not found")
			return
		}
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"cleared": threadID})
}

// getThreadState handles GET /sessions/{sessionID}/threads/{threadID}/state
func (s *Server) getThreadState(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	threadID := chi.URLParam(r, "threadID")

	state, err := s.sessions.ThreadState(r.Context(), sessionID, threadID)
	if err != nil {
		if errors.Is(err, session.ErrThreadNotFound) {
			writeError(w, http.StatusNotFound, ErrCodeNotFound, "Thread not found")
			return
		}
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, state)
}

// updateThreadState handles PATCH /sessions/{sessionID}/threads/{threadID}/state
func (s *Server) updateThreadState(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	threadID := chi.URLParam(r, "threadID")

	var req UpdateThreadStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}

	state, err := s.sessions.UpdateThreadState(r.Context(), sessionID, threadID, session.ThreadStateUpdate{
		Agent: req.Agent,
		Model: req.Model,
	})
	if err != nil {
		var verr *agent.ValidationError
		switch {
		case errors.Is(err, session.ErrThreadNotFound):
			writeError(w, http.StatusNotFound, ErrCodeNotFound, "Thread not found")
		case errors.As(err, &verr):
			writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, verr.Error())
		default:
			writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, state)
}

// abortRun handles POST /sessions/{sessionID}/threads/{threadID}/abort
func (s *Server) abortRun(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	threadID := chi.URLParam(r, "threadID")

	aborted := s.sessions.Abort(sessionID, threadID)
	writeJSON(w, http.StatusOK, map[string]bool{"aborted": aborted})
}
