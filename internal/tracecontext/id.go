package tracecontext

import "github.com/martinbechard/wslog/pkg/vos"

// newEventID produces a unique, lexicographically sortable event id.
// Returns an empty string if ULID generation fails; the failure mode of
// crypto/rand is treated as unreachable in practice.
func newEventID() string {
	id, err := vos.NewULID()
	if err != nil {
		return ""
	}
	return id.String()
}
