package bridge

import "github.com/nerrad567/iot-bridge/internal/deviceclient"

// Result codes sent by AutoAck.
const (
	resultSuccess     = 0
	resultUndelivered = 1
)

// AckPolicy decides how platform requests relayed to a device are answered.
// writeErr is the outcome of writing the request to the external connection.
type AckPolicy interface {
	OnCommand(s *Session, requestID string, writeErr error)
	OnPropertiesSet(s *Session, requestID string, writeErr error)
}

// AutoAck answers every relayed request as soon as it is written: result
// code 0 when the write succeeded and 1 when it failed. The device's own
// execution is never confirmed.
type AutoAck struct{}

// OnCommand responds to the command.
func (AutoAck) OnCommand(s *Session, requestID string, writeErr error) {
	rsp := deviceclient.CommandResponse{ResultCode: resultSuccess}
	if writeErr != nil {
		rsp = deviceclient.CommandResponse{ResultCode: resultUndelivered, ResponseName: "undelivered"}
	}
	if err := s.RespondCommand(requestID, rsp); err != nil {
		s.registry.logger.Warn("auto-ack command failed", "device_id", s.DeviceID, "request_id", requestID, "error", err)
	}
}

// OnPropertiesSet responds to the property-set request.
func (AutoAck) OnPropertiesSet(s *Session, requestID string, writeErr error) {
	result := deviceclient.IotResult{ResultCode: resultSuccess, ResultDesc: "success"}
	if writeErr != nil {
		result = deviceclient.IotResult{ResultCode: resultUndelivered, ResultDesc: writeErr.Error()}
	}
	if err := s.RespondPropertiesSet(requestID, result); err != nil {
		s.registry.logger.Warn("auto-ack property set failed", "device_id", s.DeviceID, "request_id", requestID, "error", err)
	}
}

// ManualAck never responds. The integrator answers through
// Session.RespondCommand and Session.RespondPropertiesSet.
type ManualAck struct{}

// OnCommand does nothing.
func (ManualAck) OnCommand(*Session, string, error) {}

// OnPropertiesSet does nothing.
func (ManualAck) OnPropertiesSet(*Session, string, error) {}
