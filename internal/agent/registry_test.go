package agent

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftwork/weft/pkg/types"
)

func newRegistryWith(ids ...string) *Registry {
	reg := NewRegistry()
	for _, id := range ids {
		reg.Register(&Plugin{ID: id})
	}
	return reg
}

func TestRegistry_FirstBecomesDefault(t *testing.T) {
	reg := newRegistryWith("alpha", "beta")
	assert.Equal(t, "alpha", reg.DefaultID())

	require.NoError(t, reg.SetDefault("beta"))
	assert.Equal(t, "beta", reg.DefaultID())

	assert.Error(t, reg.SetDefault("missing"))
}

func TestRegistry_RegistrationOrder(t *testing.T) {
	reg := newRegistryWith("charlie", "alpha", "beta")
	assert.Equal(t, []string{"charlie", "alpha", "beta"}, reg.IDs())

	// Re-registering replaces without reordering.
	reg.Register(&Plugin{ID: "alpha", Name: "Alpha v2"})
	assert.Equal(t, []string{"charlie", "alpha", "beta"}, reg.IDs())
	p, ok := reg.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, "Alpha v2", p.Name)
}

func TestRegistry_Resolve(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Plugin{ID: "echo", Name: "Echo"})
	reg.Register(&Plugin{ID: "claude-code", Name: "Claude Code"})

	// Exact match works with and without fuzzy.
	assert.Equal(t, "echo", reg.Resolve("echo", false))
	assert.Equal(t, "echo", reg.Resolve("echo", true))

	// Non-exact match requires fuzzy.
	assert.Equal(t, "", reg.Resolve("ec", false))
	assert.Equal(t, "echo", reg.Resolve("ec", true))

	// Display names participate in fuzzy matching.
	assert.Equal(t, "claude-code", reg.Resolve("Claude", true))

	// Ambiguous requests resolve to nothing.
	assert.Equal(t, "", reg.Resolve("c", true))

	assert.Equal(t, "", reg.Resolve("", true))
	assert.Equal(t, "", reg.Resolve("zzz", true))
}

func TestUnknownAgentError_RanksAlternatives(t *testing.T) {
	err := NewUnknownAgentError("echoo", []string{"Parrot", "Echo"})
	assert.Equal(t, []string{"Echo", "Parrot"}, err.Alternatives)
	assert.Contains(t, err.Error(), "echoo")
	assert.Contains(t, err.Error(), "Available: Echo, Parrot")
}

func TestPlugin_DisplayName(t *testing.T) {
	assert.Equal(t, "Echo", (&Plugin{ID: "echo", Name: "Echo"}).DisplayName())
	assert.Equal(t, "echo", (&Plugin{ID: "echo"}).DisplayName())
}

func TestEchoPlugin_Stream(t *testing.T) {
	plugin := NewEchoPlugin()

	runner, err := plugin.CreateAgent("echo-1")
	require.NoError(t, err)

	stream, err := runner.Run(context.Background(), RunInput{Prompt: "one two three"})
	require.NoError(t, err)
	defer stream.Close()

	var text string
	starts := 0
	for {
		ev, err := stream.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)

		switch e := ev.(type) {
		case types.TextStartEvent:
			starts++
		case types.TextDeltaEvent:
			text += e.Delta
		}
	}

	assert.Equal(t, 1, starts)
	assert.Equal(t, "one two three", text)
}

func TestEchoPlugin_ValidateModel(t *testing.T) {
	plugin := NewEchoPlugin()

	assert.NoError(t, plugin.ValidateModel("echo-1"))
	assert.NoError(t, plugin.ValidateModel("echo-1-verbose"))

	err := plugin.ValidateModel("gpt-5")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"echo-1", "echo-1-verbose"}, verr.Alternatives)
}
