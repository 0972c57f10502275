package session

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// generateID mints a new ULID. Used for message, part, and thread ids so
// lexicographic order tracks creation order.
func generateID() string {
	return ulid.Make().String()
}

// fallbackEventID mints a correlation id for a start event that arrived
// without one.
func fallbackEventID() string {
	return uuid.NewString()
}
