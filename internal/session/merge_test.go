package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftwork/weft/pkg/types"
)

func msg(id, role, text string) types.Message {
	return types.Message{
		ID:   id,
		Role: role,
		Parts: []types.Part{&types.TextPart{
			ID:   id + "-p",
			Type: "text",
			Text: text,
		}},
	}
}

func ids(messages []types.Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.ID
	}
	return out
}

func TestMergeTranscript_Append(t *testing.T) {
	history := []types.Message{msg("u1", types.RoleUser, "hi"), msg("a1", types.RoleAssistant, "hello")}
	submitted := []types.Message{msg("u2", types.RoleUser, "again")}
	produced := []types.Message{msg("a2", types.RoleAssistant, "hello again")}

	merged := MergeTranscript(history, submitted, produced)
	assert.Equal(t, []string{"u1", "a1", "u2", "a2"}, ids(merged))
}

func TestMergeTranscript_DropsSubmittedOverlap(t *testing.T) {
	// A client resending already-persisted turns must not duplicate them.
	history := []types.Message{msg("u1", types.RoleUser, "hi"), msg("a1", types.RoleAssistant, "hello")}
	submitted := []types.Message{msg("u1", types.RoleUser, "hi"), msg("u2", types.RoleUser, "more")}

	merged := MergeTranscript(history, submitted, nil)
	assert.Equal(t, []string{"u1", "a1", "u2"}, ids(merged))
}

func TestMergeTranscript_Idempotent(t *testing.T) {
	// Retrying the same merge with no new produce yields the same
	// transcript.
	history := []types.Message{msg("u1", types.RoleUser, "hi")}
	submitted := []types.Message{msg("u2", types.RoleUser, "more")}

	once := MergeTranscript(history, submitted, nil)
	twice := MergeTranscript(once, submitted, nil)
	assert.Equal(t, ids(once), ids(twice))
}

func TestMergeTranscript_PreservesHistoryOrder(t *testing.T) {
	history := []types.Message{
		msg("a", types.RoleUser, "1"),
		msg("b", types.RoleAssistant, "2"),
		msg("c", types.RoleUser, "3"),
	}

	merged := MergeTranscript(history, nil, nil)
	require.Equal(t, []string{"a", "b", "c"}, ids(merged))
	assert.Equal(t, "1", merged[0].Text())
}

func TestMergeTranscript_EmptyInputs(t *testing.T) {
	assert.Empty(t, MergeTranscript(nil, nil, nil))

	produced := []types.Message{msg("a1", types.RoleAssistant, "fresh")}
	merged := MergeTranscript(nil, nil, produced)
	assert.Equal(t, []string{"a1"}, ids(merged))
}
