package bridge

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/iot-bridge/internal/deviceclient"
)

// Conn is an external device connection.
type Conn interface {
	// ID is unique among live connections.
	ID() string
	// Write delivers one downlink frame to the device.
	Write(frame []byte) error
	Close() error
}

// ConnState is the lifecycle state of an external connection.
type ConnState int

// Connection states. A removed connection reads as StateUnidentified.
const (
	StateUnidentified ConnState = iota
	StateAuthenticating
	StateActive
)

func (s ConnState) String() string {
	switch s {
	case StateUnidentified:
		return "unidentified"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session binds one external connection to one device's platform client.
// The session owns the client and closes it when removed.
type Session struct {
	ConnID    string
	NodeID    string
	DeviceID  string
	CreatedAt time.Time

	client   DeviceClient
	conn     Conn
	registry *Registry

	closeOnce sync.Once
}

// SessionInfo is a snapshot of a session for listings.
type SessionInfo struct {
	ConnID    string    `json:"conn_id"`
	NodeID    string    `json:"node_id"`
	DeviceID  string    `json:"device_id"`
	CreatedAt time.Time `json:"created_at"`
	Connected bool      `json:"connected"`
}

// Info returns a snapshot of the session.
func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ConnID:    s.ConnID,
		NodeID:    s.NodeID,
		DeviceID:  s.DeviceID,
		CreatedAt: s.CreatedAt,
		Connected: s.client.IsConnected(),
	}
}

// RespondCommand answers a platform command for this device.
// It is how integrators acknowledge commands under ManualAck.
func (s *Session) RespondCommand(requestID string, rsp deviceclient.CommandResponse) error {
	return s.client.RespondCommand(requestID, rsp)
}

// RespondPropertiesSet answers a platform property-set request for this device.
func (s *Session) RespondPropertiesSet(requestID string, result deviceclient.IotResult) error {
	return s.client.RespondPropertiesSet(requestID, result)
}

// ReportProperties publishes a property report for this device.
func (s *Session) ReportProperties(services []deviceclient.ServiceProperty) error {
	return s.client.ReportProperties(services)
}

// Disconnect closes the external connection. The transport then removes
// the session when its read loop ends.
func (s *Session) Disconnect() error {
	return s.conn.Close()
}

// wire routes the client's downlink traffic to the external connection.
// It runs before Connect so nothing arrives unrouted.
func (s *Session) wire() {
	s.client.SetMessageListener(deviceclient.MessageListenerFunc(func(payload []byte) {
		s.writeDownlink("message", payload)
	}))

	s.client.SetCommandListener(deviceclient.CommandListenerFunc(
		func(requestID, serviceID, commandName string, paras map[string]any) {
			err := s.writeJSON("command", paras)
			s.registry.logger.Debug("command relayed",
				"device_id", s.DeviceID,
				"request_id", requestID,
				"service_id", serviceID,
				"command_name", commandName,
				"error", err,
			)
			s.registry.ack.OnCommand(s, requestID, err)
		}))

	s.client.SetPropertySetListener(deviceclient.PropertySetListenerFunc(
		func(requestID, _, serviceID string, properties map[string]any) {
			err := s.writeJSON("property_set", properties)
			s.registry.logger.Debug("property set relayed",
				"device_id", s.DeviceID,
				"request_id", requestID,
				"service_id", serviceID,
				"error", err,
			)
			s.registry.ack.OnPropertiesSet(s, requestID, err)
		}))
}

func (s *Session) writeJSON(kind string, v any) error {
	frame, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s frame: %w", kind, err)
	}
	return s.writeDownlink(kind, frame)
}

func (s *Session) writeDownlink(kind string, frame []byte) error {
	err := s.conn.Write(frame)
	s.registry.metrics.downlink(kind, len(frame), err)
	if err != nil {
		s.registry.logger.Warn("downlink write failed",
			"conn_id", s.ConnID,
			"device_id", s.DeviceID,
			"kind", kind,
			"error", err,
		)
		return err
	}
	s.registry.notify(Event{Type: EventDownlink, Session: s.Info(), Bytes: len(frame)})
	return nil
}

// listenerDrainTimeout bounds how long close waits for a downlink callback
// that was already running when the client closed.
const listenerDrainTimeout = 5 * time.Second

// close tears down the platform client and waits for an in-flight downlink
// relay to finish. The external connection belongs to the transport that
// created it.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		if err := s.client.Close(); err != nil {
			s.registry.logger.Debug("client close failed", "device_id", s.DeviceID, "error", err)
		}
		d, ok := s.client.(interface{ Done() <-chan struct{} })
		if !ok {
			return
		}
		select {
		case <-d.Done():
		case <-time.After(listenerDrainTimeout):
			s.registry.logger.Warn("downlink relay still running after close", "conn_id", s.ConnID, "device_id", s.DeviceID)
		}
	})
}
