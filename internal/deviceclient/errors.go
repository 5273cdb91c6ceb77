package deviceclient

import (
	"errors"
	"fmt"
)

// Domain errors for the device protocol client.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, deviceclient.ErrTimeout) {
//	    // no response will arrive for this request
//	}
var (
	// ErrAuthRejected means the platform refused the device credentials,
	// either at CONNECT or in the bridge login response.
	ErrAuthRejected = errors.New("deviceclient: authentication rejected")

	// ErrTransportUnavailable means the platform could not be reached or the
	// transport failed underneath an operation.
	ErrTransportUnavailable = errors.New("deviceclient: transport unavailable")

	// ErrTimeout means a correlated request expired. No later response will
	// be delivered for it.
	ErrTimeout = errors.New("deviceclient: request timed out")

	// ErrCancelled means the request was abandoned because the client closed
	// or the caller's context ended.
	ErrCancelled = errors.New("deviceclient: request cancelled")

	// ErrDuplicateResponse is returned when a command is answered twice.
	ErrDuplicateResponse = errors.New("deviceclient: command already answered")

	// ErrDecode marks a malformed inbound payload. It is only logged.
	ErrDecode = errors.New("deviceclient: malformed payload")

	// ErrClosed is returned by operations on a closed client.
	ErrClosed = errors.New("deviceclient: client closed")

	// ErrNotConnected is returned by operations before Connect succeeds.
	ErrNotConnected = errors.New("deviceclient: not connected")

	// ErrInvalidIdentity is returned when an identity lacks a device id or credentials.
	ErrInvalidIdentity = errors.New("deviceclient: invalid identity")

	// ErrDuplicateRequestID is returned when registering an id that is already pending.
	ErrDuplicateRequestID = errors.New("deviceclient: request id already pending")

	// ErrUnknownTopic is returned by ParseTopic for topics outside the platform grammar.
	ErrUnknownTopic = errors.New("deviceclient: unrecognised topic")
)

// ConnectError reports why Connect failed.
//
// Reason is one of ErrAuthRejected, ErrTransportUnavailable or ErrTimeout;
// Err is the underlying cause. Both are reachable with errors.Is.
type ConnectError struct {
	DeviceID string
	Reason   error
	Err      error
}

func (e *ConnectError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("connect %s: %v", e.DeviceID, e.Reason)
	}
	return fmt.Sprintf("connect %s: %v: %v", e.DeviceID, e.Reason, e.Err)
}

// Unwrap exposes both the reason and the cause to errors.Is and errors.As.
func (e *ConnectError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}
