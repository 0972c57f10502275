package session

import "github.com/weftwork/weft/pkg/types"

// MergeTranscript combines the persisted history, the request's submitted
// message window, and a run's produced messages into the new canonical
// transcript.
//
// The merge is append-only: history keeps its order and contents, submitted
// messages whose id already appears in history are skipped, produced
// messages follow. Because overlap is dropped by id, repeating the merge
// (a retry with the same submission and no new produce) yields the same
// transcript.
func MergeTranscript(history, submitted, produced []types.Message) []types.Message {
	merged := make([]types.Message, 0, len(history)+len(submitted)+len(produced))

	seen := make(map[string]bool, len(history))
	for _, msg := range history {
		merged = append(merged, msg)
		seen[msg.ID] = true
	}

	for _, msg := range submitted {
		if seen[msg.ID] {
			continue
		}
		merged = append(merged, msg)
		seen[msg.ID] = true
	}

	merged = append(merged, produced...)
	return merged
}
