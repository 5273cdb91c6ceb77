package deviceclient

import "testing"

func TestRouterDispatch(t *testing.T) {
	r := NewRouter(nil)

	var got []Topic
	r.Handle(KindCommand, HandlerFunc(func(tp Topic, _ RawMessage) { got = append(got, tp) }))

	tests := []struct {
		name  string
		topic string
		want  bool
	}{
		{"registered kind", "$oc/devices/D1/sys/commands/request_id=1", true},
		{"kind without handler", "$oc/devices/D1/sys/messages/down", false},
		{"unknown path", "$oc/devices/D1/sys/nope", false},
		{"foreign topic", "home/livingroom/light", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if ok := r.Dispatch(RawMessage{Topic: tt.topic}); ok != tt.want {
				t.Errorf("Dispatch(%q) = %v, want %v", tt.topic, ok, tt.want)
			}
		})
	}

	if len(got) != 1 || got[0].RequestID != "1" {
		t.Errorf("handler calls = %+v, want one call with request id 1", got)
	}
}

func TestRouterHandleReplaces(t *testing.T) {
	r := NewRouter(nil)

	calls := ""
	r.Handle(KindMessageDown, HandlerFunc(func(Topic, RawMessage) { calls += "a" }))
	r.Handle(KindMessageDown, HandlerFunc(func(Topic, RawMessage) { calls += "b" }))

	r.Dispatch(RawMessage{Topic: "$oc/devices/D1/sys/messages/down"})
	if calls != "b" {
		t.Errorf("calls = %q, want b", calls)
	}
}
