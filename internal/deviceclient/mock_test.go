package deviceclient

import (
	"context"
	"strings"
	"sync"

	"github.com/nerrad567/iot-bridge/internal/infrastructure/mqtt"
)

// mockTransport implements Transport for testing.
type mockTransport struct {
	mu            sync.Mutex
	connected     bool
	closed        int
	connectErr    error
	publishErr    error
	published     []RawMessage
	subscriptions map[string]mqtt.MessageHandler
	unsubscribed  []string

	// onPublish runs after a successful publish, outside the lock.
	onPublish func(topic string, payload []byte)
}

func newMockTransport() *mockTransport {
	return &mockTransport{subscriptions: make(map[string]mqtt.MessageHandler)}
}

// factory returns a TransportFactory handing out m.
func (m *mockTransport) factory() TransportFactory {
	return func(TransportConfig) (Transport, error) { return m, nil }
}

func (m *mockTransport) Connect(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connectErr != nil {
		return m.connectErr
	}
	m.connected = true
	return nil
}

func (m *mockTransport) Publish(topic string, payload []byte, qos byte) error {
	m.mu.Lock()
	if m.publishErr != nil {
		err := m.publishErr
		m.mu.Unlock()
		return err
	}
	m.published = append(m.published, RawMessage{Topic: topic, Payload: payload, QoS: qos})
	hook := m.onPublish
	m.mu.Unlock()

	if hook != nil {
		hook(topic, payload)
	}
	return nil
}

func (m *mockTransport) Subscribe(filter string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[filter] = handler
	return nil
}

func (m *mockTransport) Unsubscribe(filters ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range filters {
		delete(m.subscriptions, f)
	}
	m.unsubscribed = append(m.unsubscribed, filters...)
	return nil
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	m.closed++
	return nil
}

func (m *mockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Deliver simulates an inbound message, calling the matching subscription
// handler on the caller's goroutine the way the MQTT callback would.
func (m *mockTransport) Deliver(topic string, payload []byte) bool {
	m.mu.Lock()
	var handler mqtt.MessageHandler
	for filter, h := range m.subscriptions {
		if filterMatches(filter, topic) {
			handler = h
			break
		}
	}
	m.mu.Unlock()

	if handler == nil {
		return false
	}
	handler(topic, payload)
	return true
}

func (m *mockTransport) Published() []RawMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RawMessage, len(m.published))
	copy(out, m.published)
	return out
}

func (m *mockTransport) PublishedOn(prefix string) []RawMessage {
	var out []RawMessage
	for _, msg := range m.Published() {
		if strings.HasPrefix(msg.Topic, prefix) {
			out = append(out, msg)
		}
	}
	return out
}

func (m *mockTransport) Closed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *mockTransport) SubscriptionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscriptions)
}

func filterMatches(filter, topic string) bool {
	if prefix, ok := strings.CutSuffix(filter, "/#"); ok {
		return topic == prefix || strings.HasPrefix(topic, prefix+"/")
	}
	return filter == topic
}
