package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/weftwork/weft/internal/event"
	"github.com/weftwork/weft/internal/logging"
	"github.com/weftwork/weft/pkg/types"
)

const (
	// SSEHeartbeatInterval is the interval for SSE heartbeats.
	SSEHeartbeatInterval = 30 * time.Second
)

// WireEvent is the SSE payload shape: {"type": "...", "data": {...}}
type WireEvent struct {
	Type event.Type      `json:"type"`
	Data json.RawMessage `json:"data"`
}

// encodeBusEvent converts a bus event into its wire form. Run deltas carry a
// stream event behind an interface, so they go through the tagged codec.
func encodeBusEvent(e event.Event) (WireEvent, error) {
	if d, ok := e.Data.(event.RunDeltaData); ok {
		ev, err := types.MarshalStreamEvent(d.Event)
		if err != nil {
			return WireEvent{}, err
		}
		data, err := json.Marshal(struct {
			SessionID string          `json:"sessionID"`
			ThreadID  string          `json:"threadID"`
			Event     json.RawMessage `json:"event"`
		}{d.SessionID, d.ThreadID, ev})
		if err != nil {
			return WireEvent{}, err
		}
		return WireEvent{Type: e.Type, Data: data}, nil
	}

	data, err := json.Marshal(e.Data)
	if err != nil {
		return WireEvent{}, err
	}
	return WireEvent{Type: e.Type, Data: data}, nil
}

// sseWriter wraps http.ResponseWriter for SSE.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
}

// newSSEWriter creates a new SSE writer.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	rc := http.NewResponseController(w)

	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	return &sseWriter{w: w, flusher: flusher, rc: rc}, nil
}

// writeEvent writes one SSE event and flushes it.
func (s *sseWriter) writeEvent(eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	// SSE format: event type, data, and blank line
	_, err = fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", eventType, jsonData)
	if err != nil {
		return err
	}

	// ResponseController flushes through middleware wrappers; fall back to
	// the plain Flusher interface if it cannot
	if flushErr := s.rc.Flush(); flushErr != nil {
		s.flusher.Flush()
	}

	return nil
}

// writeHeartbeat writes an SSE heartbeat comment.
func (s *sseWriter) writeHeartbeat() {
	fmt.Fprintf(s.w, ": heartbeat\n\n")
	s.flusher.Flush()
}

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
}

// allEvents handles SSE for the global /event endpoint. Every bus event is
// forwarded until the client disconnects.
func (srv *Server) allEvents(w http.ResponseWriter, r *http.Request) {
	setSSEHeaders(w)

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	// Write status and flush headers before waiting for events
	w.WriteHeader(http.StatusOK)
	sse.flusher.Flush()

	connected := WireEvent{Type: "server.connected", Data: json.RawMessage("{}")}
	if err := sse.writeEvent("message", connected); err != nil {
		return
	}

	// Small buffer keeps latency low; a stalled client drops events rather
	// than stalling publishers
	events := make(chan event.Event, 10)

	unsub := srv.bus.SubscribeAll(func(e event.Event) {
		select {
		case events <- e:
		default:
			logging.Warn().
				Str("eventType", string(e.Type)).
				Msg("SSE event dropped: channel full")
		}
	})
	defer unsub()

	ticker := time.NewTicker(SSEHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-events:
			wire, err := encodeBusEvent(e)
			if err != nil {
				logging.Warn().Err(err).
					Str("eventType", string(e.Type)).
					Msg("SSE event encode failed")
				continue
			}
			if err := sse.writeEvent("message", wire); err != nil {
				return
			}
		case <-ticker.C:
			sse.writeHeartbeat()
		}
	}
}
