//go:build integration

package mqtt

import (
	"context"
	"sync"
	"testing"
	"time"
)

// Integration tests against a local broker at 127.0.0.1:1883 that accepts
// anonymous clients.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func TestIntegration_PublishSubscribeRoundTrip(t *testing.T) {
	c := New(Options{ServerURI: "tcp://127.0.0.1:1883", ClientID: "iotbridge-integration"})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close()

	var (
		mu  sync.Mutex
		got []byte
	)
	received := make(chan struct{})
	topic := "$oc/devices/IT1/sys/messages/down"

	err := c.Subscribe(topic, 1, func(_ string, payload []byte) {
		mu.Lock()
		got = payload
		mu.Unlock()
		close(received)
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := c.Publish(topic, []byte("ping"), 1); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}

	mu.Lock()
	defer mu.Unlock()
	if string(got) != "ping" {
		t.Errorf("payload = %q, want %q", got, "ping")
	}
	if !c.HasSubscription(topic) {
		t.Error("HasSubscription() = false after Subscribe")
	}
}
