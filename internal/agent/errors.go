package agent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// ValidationError reports an unknown or ambiguous agent id, or a rejected
// model id. It is a client error: nothing was mutated.
type ValidationError struct {
	Message      string
	Alternatives []string
}

func (e *ValidationError) Error() string {
	if len(e.Alternatives) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s. Available: %s", e.Message, strings.Join(e.Alternatives, ", "))
}

// NewUnknownAgentError builds a ValidationError for a requested agent that
// did not resolve, listing the known agents closest to the request first.
func NewUnknownAgentError(requested string, available []string) *ValidationError {
	return &ValidationError{
		Message:      fmt.Sprintf("unknown or ambiguous agent %q", requested),
		Alternatives: rankBySimilarity(requested, available),
	}
}

// rankBySimilarity orders candidates by Levenshtein distance to the request,
// closest first, with ties broken alphabetically.
func rankBySimilarity(requested string, candidates []string) []string {
	ranked := append([]string(nil), candidates...)
	needle := strings.ToLower(requested)
	sort.SliceStable(ranked, func(i, j int) bool {
		di := levenshtein.ComputeDistance(needle, strings.ToLower(ranked[i]))
		dj := levenshtein.ComputeDistance(needle, strings.ToLower(ranked[j]))
		if di != dj {
			return di < dj
		}
		return ranked[i] < ranked[j]
	})
	return ranked
}
