package event

import "github.com/weftwork/weft/pkg/types"

// ThreadData is the payload for thread lifecycle events.
type ThreadData struct {
	SessionID string `json:"sessionID"`
	ThreadID  string `json:"threadID"`
}

// RunStartedData is the payload for run.started events.
type RunStartedData struct {
	SessionID string `json:"sessionID"`
	ThreadID  string `json:"threadID"`
	Agent     string `json:"agent"`
	Model     string `json:"model"`
}

// RunDeltaData carries one stream event to live subscribers as it arrives.
type RunDeltaData struct {
	SessionID string            `json:"sessionID"`
	ThreadID  string            `json:"threadID"`
	Event     types.StreamEvent `json:"event"`
}

// RunCompletedData is published once a run's produce has been merged and
// persisted.
type RunCompletedData struct {
	SessionID string          `json:"sessionID"`
	ThreadID  string          `json:"threadID"`
	Produced  []types.Message `json:"produced"`
}

// RunErroredData is the payload for run.errored events.
type RunErroredData struct {
	SessionID string `json:"sessionID"`
	ThreadID  string `json:"threadID"`
	Error     string `json:"error"`
}
