// Package bridge multiplexes external device connections onto platform
// device clients.
//
// Each external connection identifies itself with a node id. The Registry
// resolves the node to a device identity, builds and connects one
// deviceclient per device, and keeps two maps consistent: connection id to
// session and device id to session. At most one session exists per
// connection and per device.
//
// Downlink traffic (messages, commands, property sets) is written to the
// external connection. Uplink frames are reported as device messages.
// Commands and property sets are answered according to the AckPolicy:
// AutoAck answers as soon as the request is written, which does not confirm
// that the device executed it. ManualAck leaves answering to the integrator.
//
// TCPServer is the bundled transport: newline-framed TCP where the first
// line is the node id.
package bridge
