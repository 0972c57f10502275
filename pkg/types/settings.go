package types

// ThreadSettings holds per-thread overrides. Absence of an override means
// "use the default".
type ThreadSettings struct {
	Agent string `json:"agent,omitempty"`
}

// AgentSelectionInfo is the resolved agent for a thread, as reported to
// clients. Recomputed on every read, never persisted.
type AgentSelectionInfo struct {
	Agent        string `json:"agent"`
	AgentName    string `json:"agentName"`
	DefaultAgent string `json:"defaultAgent"`
	IsDefault    bool   `json:"isDefault"`
}

// ModelSelectionInfo is the resolved model for a session.
type ModelSelectionInfo struct {
	Model        string `json:"model"`
	DefaultModel string `json:"defaultModel"`
	IsDefault    bool   `json:"isDefault"`
}

// ThreadState is the full client-facing view of one thread.
type ThreadState struct {
	ThreadID string             `json:"threadId"`
	Agent    AgentSelectionInfo `json:"agent"`
	Model    ModelSelectionInfo `json:"model"`
	Messages []Message          `json:"messages"`
}

// BootstrapResult is the response to a session bootstrap: the session
// identity, the selected thread, and that thread's state.
type BootstrapResult struct {
	SessionID string             `json:"sessionId"`
	ThreadID  string             `json:"threadId"`
	Threads   []string           `json:"threads"`
	Agent     AgentSelectionInfo `json:"agent"`
	Model     ModelSelectionInfo `json:"model"`
	Messages  []Message          `json:"messages"`
}
