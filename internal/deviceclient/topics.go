package deviceclient

import (
	"fmt"
	"strings"
)

// Topic root and path segments of the platform grammar.
const (
	topicRoot       = "$oc"
	segDevices      = "devices"
	segBridges      = "bridges"
	segSys          = "sys"
	requestIDPrefix = "request_id="
)

// Kind identifies the protocol message carried on an inbound topic.
type Kind int

// Inbound message kinds.
const (
	KindUnknown Kind = iota
	KindCommand
	KindPropertySet
	KindPropertyGet
	KindShadowResponse
	KindMessageDown
	KindLoginResponse
	KindLogoutResponse
)

var kindNames = map[Kind]string{
	KindUnknown:        "unknown",
	KindCommand:        "command",
	KindPropertySet:    "property_set",
	KindPropertyGet:    "property_get",
	KindShadowResponse: "shadow_response",
	KindMessageDown:    "message_down",
	KindLoginResponse:  "login_response",
	KindLogoutResponse: "logout_response",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// kindPaths maps the path after "sys/" (request id segment removed) to a Kind.
var kindPaths = map[string]Kind{
	"commands":            KindCommand,
	"properties/set":      KindPropertySet,
	"properties/get":      KindPropertyGet,
	"shadow/get/response": KindShadowResponse,
	"messages/down":       KindMessageDown,
	"login/response":      KindLoginResponse,
	"logout/response":     KindLogoutResponse,
}

// Topic is the decoded form of an inbound topic string.
type Topic struct {
	Kind      Kind
	DeviceID  string
	BridgeID  string
	RequestID string
}

// ParseTopic decodes an inbound topic.
//
// Recognised shapes:
//
//	$oc/devices/{device_id}/sys/{path}[/request_id={id}]
//	$oc/bridges/{bridge_id}/devices/{device_id}/sys/{path}[/request_id={id}]
//
// Topics outside the grammar return ErrUnknownTopic with Kind KindUnknown.
// Well-formed topics with an unrecognised path return KindUnknown and no error.
func ParseTopic(topic string) (Topic, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 5 || parts[0] != topicRoot {
		return Topic{}, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}

	var t Topic
	var rest []string

	switch parts[1] {
	case segDevices:
		t.DeviceID = parts[2]
		rest = parts[3:]
	case segBridges:
		if len(parts) < 7 || parts[3] != segDevices {
			return Topic{}, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
		}
		t.BridgeID = parts[2]
		t.DeviceID = parts[4]
		rest = parts[5:]
	default:
		return Topic{}, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}

	if t.DeviceID == "" || rest[0] != segSys || len(rest) < 2 {
		return Topic{}, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}
	rest = rest[1:]

	if last := rest[len(rest)-1]; strings.HasPrefix(last, requestIDPrefix) {
		t.RequestID = strings.TrimPrefix(last, requestIDPrefix)
		rest = rest[:len(rest)-1]
	}

	t.Kind = kindPaths[strings.Join(rest, "/")]
	return t, nil
}

// =============================================================================
// Outbound topics
// =============================================================================

// Topics builds the topic strings for one device.
type Topics struct {
	DeviceID string
	// BridgeID is set when the device logs in through a bridge.
	BridgeID string
}

func (t Topics) sys(path string) string {
	return topicRoot + "/" + segDevices + "/" + t.DeviceID + "/" + segSys + "/" + path
}

func (t Topics) bridgeSys(path string) string {
	return topicRoot + "/" + segBridges + "/" + t.BridgeID + "/" + segDevices + "/" + t.DeviceID + "/" + segSys + "/" + path
}

// PropertiesReport returns the property report topic.
func (t Topics) PropertiesReport() string { return t.sys("properties/report") }

// PropertiesSetResponse returns the response topic for a property set request.
func (t Topics) PropertiesSetResponse(requestID string) string {
	return t.sys("properties/set/response/" + requestIDPrefix + requestID)
}

// PropertiesGetResponse returns the response topic for a property get request.
func (t Topics) PropertiesGetResponse(requestID string) string {
	return t.sys("properties/get/response/" + requestIDPrefix + requestID)
}

// CommandResponse returns the response topic for a command.
func (t Topics) CommandResponse(requestID string) string {
	return t.sys("commands/response/" + requestIDPrefix + requestID)
}

// ShadowGet returns the shadow request topic.
func (t Topics) ShadowGet(requestID string) string {
	return t.sys("shadow/get/" + requestIDPrefix + requestID)
}

// MessagesUp returns the uplink device message topic.
func (t Topics) MessagesUp() string { return t.sys("messages/up") }

// EventsUp returns the uplink event topic.
func (t Topics) EventsUp() string { return t.sys("events/up") }

// BridgeLogin returns the bridge login request topic.
func (t Topics) BridgeLogin(requestID string) string {
	return t.bridgeSys("login/" + requestIDPrefix + requestID)
}

// =============================================================================
// Subscriptions
// =============================================================================

// Filters returns the fixed subscription set for the device.
func (t Topics) Filters() []string {
	filters := []string{
		t.sys("commands/#"),
		t.sys("properties/set/#"),
		t.sys("properties/get/#"),
		t.sys("shadow/get/response/#"),
		t.sys("messages/down"),
	}
	if t.BridgeID != "" {
		filters = append(filters, t.bridgeSys("login/response/#"))
	}
	return filters
}
