package deviceclient

import (
	"errors"
	"testing"
)

func TestParseTopic(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		want    Topic
		wantErr bool
	}{
		{
			name:  "command with request id",
			topic: "$oc/devices/D1/sys/commands/request_id=42",
			want:  Topic{Kind: KindCommand, DeviceID: "D1", RequestID: "42"},
		},
		{
			name:  "property set",
			topic: "$oc/devices/D1/sys/properties/set/request_id=r-1",
			want:  Topic{Kind: KindPropertySet, DeviceID: "D1", RequestID: "r-1"},
		},
		{
			name:  "property get",
			topic: "$oc/devices/D1/sys/properties/get/request_id=r-2",
			want:  Topic{Kind: KindPropertyGet, DeviceID: "D1", RequestID: "r-2"},
		},
		{
			name:  "shadow response",
			topic: "$oc/devices/D1/sys/shadow/get/response/request_id=abc-3",
			want:  Topic{Kind: KindShadowResponse, DeviceID: "D1", RequestID: "abc-3"},
		},
		{
			name:  "message down has no request id",
			topic: "$oc/devices/D1/sys/messages/down",
			want:  Topic{Kind: KindMessageDown, DeviceID: "D1"},
		},
		{
			name:  "bridge login response",
			topic: "$oc/bridges/B1/devices/D1/sys/login/response/request_id=9",
			want:  Topic{Kind: KindLoginResponse, DeviceID: "D1", BridgeID: "B1", RequestID: "9"},
		},
		{
			name:  "bridge logout response",
			topic: "$oc/bridges/B1/devices/D1/sys/logout/response/request_id=10",
			want:  Topic{Kind: KindLogoutResponse, DeviceID: "D1", BridgeID: "B1", RequestID: "10"},
		},
		{
			name:  "well formed but unknown path",
			topic: "$oc/devices/D1/sys/events/down",
			want:  Topic{Kind: KindUnknown, DeviceID: "D1"},
		},
		{name: "wrong root", topic: "foo/devices/D1/sys/commands", wantErr: true},
		{name: "too short", topic: "$oc/devices/D1", wantErr: true},
		{name: "missing sys", topic: "$oc/devices/D1/xyz/commands", wantErr: true},
		{name: "empty device", topic: "$oc/devices//sys/commands", wantErr: true},
		{name: "bridge without devices", topic: "$oc/bridges/B1/things/D1/sys/login", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTopic(tt.topic)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownTopic) {
					t.Fatalf("ParseTopic(%q) error = %v, want ErrUnknownTopic", tt.topic, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTopic(%q) unexpected error: %v", tt.topic, err)
			}
			if got != tt.want {
				t.Errorf("ParseTopic(%q) = %+v, want %+v", tt.topic, got, tt.want)
			}
		})
	}
}

func TestTopicsBuilders(t *testing.T) {
	topics := Topics{DeviceID: "D1", BridgeID: "B1"}

	tests := []struct {
		got  string
		want string
	}{
		{topics.PropertiesReport(), "$oc/devices/D1/sys/properties/report"},
		{topics.PropertiesSetResponse("7"), "$oc/devices/D1/sys/properties/set/response/request_id=7"},
		{topics.PropertiesGetResponse("8"), "$oc/devices/D1/sys/properties/get/response/request_id=8"},
		{topics.CommandResponse("42"), "$oc/devices/D1/sys/commands/response/request_id=42"},
		{topics.ShadowGet("s-1"), "$oc/devices/D1/sys/shadow/get/request_id=s-1"},
		{topics.MessagesUp(), "$oc/devices/D1/sys/messages/up"},
		{topics.EventsUp(), "$oc/devices/D1/sys/events/up"},
		{topics.BridgeLogin("l-1"), "$oc/bridges/B1/devices/D1/sys/login/request_id=l-1"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("topic = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestTopicsFilters(t *testing.T) {
	direct := Topics{DeviceID: "D1"}.Filters()
	if len(direct) != 5 {
		t.Fatalf("direct Filters() len = %d, want 5", len(direct))
	}
	for _, f := range direct {
		if f == "$oc/bridges/B1/devices/D1/sys/login/response/#" {
			t.Errorf("direct Filters() contains bridge login filter")
		}
	}

	bridged := Topics{DeviceID: "D1", BridgeID: "B1"}.Filters()
	if len(bridged) != 6 {
		t.Fatalf("bridge Filters() len = %d, want 6", len(bridged))
	}
	if got := bridged[5]; got != "$oc/bridges/B1/devices/D1/sys/login/response/#" {
		t.Errorf("bridge login filter = %q", got)
	}
}

func TestOutboundTopicsRoundTrip(t *testing.T) {
	topics := Topics{DeviceID: "D1"}

	got, err := ParseTopic(topics.CommandResponse("42"))
	if err != nil {
		t.Fatalf("ParseTopic() unexpected error: %v", err)
	}
	// Response topics are outbound only, so they carry no inbound kind.
	if got.Kind != KindUnknown || got.RequestID != "42" {
		t.Errorf("ParseTopic(CommandResponse) = %+v, want unknown kind with request id 42", got)
	}
}

func TestKindString(t *testing.T) {
	if got := KindShadowResponse.String(); got != "shadow_response" {
		t.Errorf("KindShadowResponse.String() = %q, want shadow_response", got)
	}
	if got := Kind(99).String(); got != "kind(99)" {
		t.Errorf("Kind(99).String() = %q, want kind(99)", got)
	}
}
