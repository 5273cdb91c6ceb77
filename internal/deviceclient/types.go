package deviceclient

import (
	"encoding/json"
	"time"
)

// Identity is the platform identity of one device.
//
// Exactly one of Secret or the CertFile/KeyFile pair authenticates the device.
// NodeID is the identifier the device presents on the external transport and
// is empty for natively connected devices.
type Identity struct {
	NodeID   string
	DeviceID string
	Secret   string
	CertFile string
	KeyFile  string
}

// validate checks the identity can authenticate.
func (id Identity) validate() error {
	if id.DeviceID == "" {
		return ErrInvalidIdentity
	}
	if id.Secret == "" && (id.CertFile == "" || id.KeyFile == "") {
		return ErrInvalidIdentity
	}
	return nil
}

// RawMessage is one message exchanged with the transport.
type RawMessage struct {
	Topic   string
	Payload []byte
	QoS     byte
}

// ServiceProperty holds the properties of one service.
type ServiceProperty struct {
	ServiceID  string         `json:"service_id"`
	Properties map[string]any `json:"properties"`
	// EventTime is the UTC collection time, formatted yyyyMMdd'T'HHmmss'Z'.
	EventTime string `json:"event_time,omitempty"`
}

// PropertyReport is the body of a properties/report publish.
type PropertyReport struct {
	Services []ServiceProperty `json:"services"`
}

// PropertySet is a platform request to write device properties.
type PropertySet struct {
	DeviceID string            `json:"device_id,omitempty"`
	Services []ServiceProperty `json:"services"`
}

// PropertyGet is a platform request to read device properties.
// An empty ServiceID asks for every service.
type PropertyGet struct {
	DeviceID  string `json:"device_id,omitempty"`
	ServiceID string `json:"service_id,omitempty"`
}

// CommandRequest is a platform command addressed to the device.
type CommandRequest struct {
	RequestID   string         `json:"request_id,omitempty"`
	DeviceID    string         `json:"device_id,omitempty"`
	ServiceID   string         `json:"service_id"`
	CommandName string         `json:"command_name"`
	Paras       map[string]any `json:"paras"`
}

// CommandResponse answers a CommandRequest. ResultCode 0 means success.
type CommandResponse struct {
	ResultCode   int            `json:"result_code"`
	ResponseName string         `json:"response_name,omitempty"`
	Paras        map[string]any `json:"paras,omitempty"`
}

// IotResult is the generic response body for property-set and login.
type IotResult struct {
	ResultCode int    `json:"result_code"`
	ResultDesc string `json:"result_desc,omitempty"`
}

// PropertiesData is one side (desired or reported) of a shadow.
type PropertiesData struct {
	Properties map[string]any `json:"properties"`
	EventTime  string         `json:"event_time,omitempty"`
}

// ShadowData is the shadow of one service.
type ShadowData struct {
	ServiceID string          `json:"service_id"`
	Desired   *PropertiesData `json:"desired,omitempty"`
	Reported  *PropertiesData `json:"reported,omitempty"`
	Version   int64           `json:"version,omitempty"`
}

// ShadowResponse is the platform answer to a shadow get.
type ShadowResponse struct {
	DeviceID string       `json:"device_id,omitempty"`
	Shadow   []ShadowData `json:"shadow"`
}

// ShadowRequest is the body of a shadow get publish.
type ShadowRequest struct {
	DeviceID  string `json:"object_device_id,omitempty"`
	ServiceID string `json:"service_id,omitempty"`
}

// DeviceInfo carries software and firmware versions.
type DeviceInfo struct {
	NodeID    string `json:"node_id,omitempty"`
	Name      string `json:"name,omitempty"`
	SwVersion string `json:"sw_version,omitempty"`
	FwVersion string `json:"fw_version,omitempty"`
}

// SubDeviceInfo is a versioned set of sub-device descriptions keyed by node id.
type SubDeviceInfo struct {
	Version    int64                 `json:"version"`
	Subdevices map[string]DeviceInfo `json:"subdevices"`
}

// Event is one entry of an events/up publish.
type Event struct {
	ServiceID string         `json:"service_id"`
	EventType string         `json:"event_type"`
	EventTime string         `json:"event_time,omitempty"`
	Paras     map[string]any `json:"paras"`
}

// eventReport is the body of an events/up publish.
type eventReport struct {
	DeviceID string  `json:"object_device_id,omitempty"`
	Services []Event `json:"services"`
}

// loginRequest is the body of a bridge login publish.
type loginRequest struct {
	Password  string `json:"password"`
	Timestamp string `json:"timestamp"`
}

// loginResponse decodes result_code strictly: a missing code is malformed.
type loginResponse struct {
	ResultCode *int `json:"result_code"`
}

// objectDeviceID lets inbound payloads name the device with object_device_id.
type objectDeviceID struct {
	ObjectDeviceID string `json:"object_device_id"`
}

func (o objectDeviceID) or(deviceID string) string {
	if deviceID != "" {
		return deviceID
	}
	return o.ObjectDeviceID
}

// UnmarshalJSON accepts object_device_id as an alias of device_id.
func (p *PropertySet) UnmarshalJSON(data []byte) error {
	type plain PropertySet
	var aux struct {
		plain
		objectDeviceID
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = PropertySet(aux.plain)
	p.DeviceID = aux.objectDeviceID.or(aux.DeviceID)
	return nil
}

// UnmarshalJSON accepts object_device_id as an alias of device_id.
func (g *PropertyGet) UnmarshalJSON(data []byte) error {
	type plain PropertyGet
	var aux struct {
		plain
		objectDeviceID
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*g = PropertyGet(aux.plain)
	g.DeviceID = aux.objectDeviceID.or(aux.DeviceID)
	return nil
}

// UnmarshalJSON accepts object_device_id as an alias of device_id.
func (c *CommandRequest) UnmarshalJSON(data []byte) error {
	type plain CommandRequest
	var aux struct {
		plain
		objectDeviceID
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = CommandRequest(aux.plain)
	c.DeviceID = aux.objectDeviceID.or(aux.DeviceID)
	return nil
}

// UnmarshalJSON accepts object_device_id as an alias of device_id.
func (s *ShadowResponse) UnmarshalJSON(data []byte) error {
	type plain ShadowResponse
	var aux struct {
		plain
		objectDeviceID
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*s = ShadowResponse(aux.plain)
	s.DeviceID = aux.objectDeviceID.or(aux.DeviceID)
	return nil
}

// eventTimeLayout is the platform's compact UTC timestamp.
const eventTimeLayout = "20060102T150405Z"

// EventTime formats t for the event_time fields.
func EventTime(t time.Time) string {
	return t.UTC().Format(eventTimeLayout)
}
