package bridge

import "errors"

// Domain errors for the bridge package.
//
//	if errors.Is(err, bridge.ErrIdentityNotFound) {
//	    // the node is not provisioned; the connection stays unidentified
//	}
var (
	// ErrIdentityNotFound is returned by CreateSession when the node id has
	// no registered identity. No platform connection is attempted.
	ErrIdentityNotFound = errors.New("bridge: identity not found")

	// ErrSessionExists is returned when the connection is already
	// identified or the device already has a session.
	ErrSessionExists = errors.New("bridge: session already exists")

	// ErrSessionNotFound is returned for connection or device ids without a session.
	ErrSessionNotFound = errors.New("bridge: session not found")

	// ErrConnClosed is returned when the external connection went away
	// while its session was being created.
	ErrConnClosed = errors.New("bridge: connection closed during login")

	// ErrRegistryClosed is returned after Close.
	ErrRegistryClosed = errors.New("bridge: registry closed")
)
