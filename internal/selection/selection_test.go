package selection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftwork/weft/internal/agent"
	"github.com/weftwork/weft/internal/storage"
	"github.com/weftwork/weft/internal/store"
	"github.com/weftwork/weft/pkg/types"
)

func newTestRegistry() *agent.Registry {
	reg := agent.NewRegistry()
	reg.Register(agent.NewEchoPlugin())
	reg.Register(&agent.Plugin{ID: "parrot", Name: "Parrot", DefaultModel: "parrot-9"})
	return reg
}

func newTestStore(t *testing.T) *store.ThreadStore {
	t.Helper()
	return store.New(storage.New(t.TempDir()))
}

func TestApply(t *testing.T) {
	eff := Apply("", "echo")
	assert.Equal(t, "echo", eff.Resolved)
	assert.True(t, eff.IsDefault())

	eff = Apply("parrot", "echo")
	assert.Equal(t, "parrot", eff.Resolved)
	assert.Equal(t, "echo", eff.Default)
	assert.False(t, eff.IsDefault())

	// Whitespace-only overrides do not count.
	eff = Apply("   ", "echo")
	assert.Equal(t, "echo", eff.Resolved)
	assert.True(t, eff.IsDefault())

	// Overrides are trimmed, not rewritten.
	eff = Apply("  parrot  ", "echo")
	assert.Equal(t, "parrot", eff.Resolved)
}

func TestSelectAgentForThread_Default(t *testing.T) {
	reg := newTestRegistry()
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateThread(ctx, "s1", "t1", 0))

	sel, err := SelectAgentForThread(ctx, reg, st, "s1", "t1")
	require.NoError(t, err)
	assert.Equal(t, "echo", sel.AgentID)
	assert.True(t, sel.IsDefault())
}

func TestSelectAgentForThread_Override(t *testing.T) {
	reg := newTestRegistry()
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateThread(ctx, "s1", "t1", 0))

	_, err := SetThreadAgent(ctx, reg, st, "s1", "t1", "parrot")
	require.NoError(t, err)

	sel, err := SelectAgentForThread(ctx, reg, st, "s1", "t1")
	require.NoError(t, err)
	assert.Equal(t, "parrot", sel.AgentID)
	assert.False(t, sel.IsDefault())

	info := sel.Info()
	assert.Equal(t, "parrot", info.Agent)
	assert.Equal(t, "Parrot", info.AgentName)
	assert.Equal(t, "echo", info.DefaultAgent)
}

func TestSelectAgentForThread_StaleOverrideFallsBack(t *testing.T) {
	// An override naming an agent that no longer exists must not break
	// state reads; it silently falls back to the default.
	reg := newTestRegistry()
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateThread(ctx, "s1", "t1", 0))
	require.NoError(t, st.SetThreadSettings(ctx, "s1", "t1", types.ThreadSettings{Agent: "retired-agent"}))

	sel, err := SelectAgentForThread(ctx, reg, st, "s1", "t1")
	require.NoError(t, err)
	assert.Equal(t, "echo", sel.AgentID)
	assert.True(t, sel.IsDefault())
}

func TestSetThreadAgent_FuzzyAndReset(t *testing.T) {
	reg := newTestRegistry()
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateThread(ctx, "s1", "t1", 0))

	// Fuzzy prefix match resolves interactively.
	sel, err := SetThreadAgent(ctx, reg, st, "s1", "t1", "parr")
	require.NoError(t, err)
	assert.Equal(t, "parrot", sel.AgentID)

	// Empty request resets to the default.
	sel, err = SetThreadAgent(ctx, reg, st, "s1", "t1", "")
	require.NoError(t, err)
	assert.Equal(t, "echo", sel.AgentID)
	assert.True(t, sel.IsDefault())

	settings, err := st.ThreadSettings(ctx, "s1", "t1")
	require.NoError(t, err)
	assert.Empty(t, settings.Agent)
}

func TestSetThreadAgent_Unknown(t *testing.T) {
	reg := newTestRegistry()
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateThread(ctx, "s1", "t1", 0))

	_, err := SetThreadAgent(ctx, reg, st, "s1", "t1", "gremlin")
	var verr *agent.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.NotEmpty(t, verr.Alternatives)
}

func TestDefaultModel(t *testing.T) {
	// Plugin-declared default wins.
	assert.Equal(t, "echo-1", DefaultModel(agent.NewEchoPlugin()))

	// Environment override applies when the plugin declares none.
	t.Setenv("WEFT_MODEL", "env-model")
	bare := &agent.Plugin{ID: "bare", ListModels: func() []string { return []string{"m1", "m2"} }}
	assert.Equal(t, "env-model", DefaultModel(bare))

	// First enumerated model is the last resort.
	t.Setenv("WEFT_MODEL", "")
	assert.Equal(t, "m1", DefaultModel(bare))

	assert.Equal(t, "", DefaultModel(&agent.Plugin{ID: "empty"}))
}

func TestDefaultModel_ConfiguredFallback(t *testing.T) {
	SetFallbackModel("cfg-model")
	t.Cleanup(func() { SetFallbackModel("") })
	t.Setenv("WEFT_MODEL", "env-model")

	// A plugin-declared default still wins.
	assert.Equal(t, "echo-1", DefaultModel(agent.NewEchoPlugin()))

	// The configured fallback beats the environment.
	assert.Equal(t, "cfg-model", DefaultModel(&agent.Plugin{ID: "bare"}))
}

func TestSessionModelRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	plugin := agent.NewEchoPlugin()

	sel, err := SelectSessionModel(ctx, st, "s1", plugin)
	require.NoError(t, err)
	assert.Equal(t, "echo-1", sel.Model)
	assert.True(t, sel.IsDefault())

	_, err = SetSessionModel(ctx, st, "s1", plugin, "echo-1-verbose")
	require.NoError(t, err)

	sel, err = SelectSessionModel(ctx, st, "s1", plugin)
	require.NoError(t, err)
	assert.Equal(t, "echo-1-verbose", sel.Model)
	assert.False(t, sel.IsDefault())

	// The override is per session, not per thread.
	sel2, err := SelectSessionModel(ctx, st, "s2", plugin)
	require.NoError(t, err)
	assert.Equal(t, "echo-1", sel2.Model)

	// Clearing restores the default.
	_, err = SetSessionModel(ctx, st, "s1", plugin, "")
	require.NoError(t, err)
	sel, err = SelectSessionModel(ctx, st, "s1", plugin)
	require.NoError(t, err)
	assert.True(t, sel.IsDefault())
}

func TestSetSessionModel_Validation(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// A plugin validator rejects unknown models.
	_, err := SetSessionModel(ctx, st, "s1", agent.NewEchoPlugin(), "made-up")
	var verr *agent.ValidationError
	require.ErrorAs(t, err, &verr)

	// Without a validator, model ids are accepted opaquely.
	bare := &agent.Plugin{ID: "bare"}
	sel, err := SetSessionModel(ctx, st, "s1", bare, "anything-goes")
	require.NoError(t, err)
	assert.Equal(t, "anything-goes", sel.Model)
}
