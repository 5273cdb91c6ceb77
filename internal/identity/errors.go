package identity

import "errors"

// Domain errors for the identity package.
//
//	if errors.Is(err, identity.ErrNotFound) {
//	    // the node is not provisioned
//	}
var (
	// ErrNotFound is returned when no identity is registered for a node id.
	ErrNotFound = errors.New("identity: not found")

	// ErrExists is returned when a device id is already bound to another node.
	ErrExists = errors.New("identity: device already bound to another node")

	// ErrInvalid is returned when an identity fails validation.
	ErrInvalid = errors.New("identity: invalid")
)
