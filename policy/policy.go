package policy

import (
	"errors"

	"github.com/pumpdev/pumphouse/credentials"
)

// Operation is a requested action on a stored activity.
type Operation string

// The operations the resource endpoint can ask about.
const (
	Read   Operation = "read"
	Update Operation = "update"
	Delete Operation = "delete"
)

// ErrDenied is returned when the actor may not perform the operation.
// It always classifies as a client error, never a server one.
var ErrDenied = errors.New("operation not permitted")

// Authorize decides whether actor may perform op against an activity
// owned by ownerID. Reads are public; mutation belongs to the owner
// alone. Pure computation, no lookups.
func Authorize(actor credentials.Actor, op Operation, ownerID string) error {
	switch op {
	case Read:
		return nil
	case Update, Delete:
		if actor.IsAnonymous() || actor.ID != ownerID {
			return ErrDenied
		}
		return nil
	}
	return ErrDenied
}
