package mqtt

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/eclipse/paho.mqtt.golang/packets"
)

// =============================================================================
// Credential Tests
// =============================================================================

func TestDeviceCredentials(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 34, 56, 0, time.UTC)

	tests := []struct {
		name         string
		secret       string
		wantClientID string
		wantPassword string
	}{
		{
			name:         "secret signs password",
			secret:       "secret123",
			wantClientID: "D1_0_0_2026101812",
			wantPassword: "b99c2f0ef2f59fd019f51955e80f3e855981848af1c29503b67dfd7e28718304",
		},
		{
			name:         "certificate auth leaves password empty",
			secret:       "",
			wantClientID: "D1_0_0_2026101812",
			wantPassword: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeviceCredentials("D1", tt.secret, now)
			if got.ClientID != tt.wantClientID {
				t.Errorf("ClientID = %q, want %q", got.ClientID, tt.wantClientID)
			}
			if got.Username != "D1" {
				t.Errorf("Username = %q, want %q", got.Username, "D1")
			}
			if got.Password != tt.wantPassword {
				t.Errorf("Password = %q, want %q", got.Password, tt.wantPassword)
			}
		})
	}
}

func TestTimestampUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	local := time.Date(2026, 10, 18, 20, 0, 0, 0, loc)

	if got := Timestamp(local); got != "2026101812" {
		t.Errorf("Timestamp() = %q, want %q", got, "2026101812")
	}
}

func TestTLSConfig(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "ca.pem")
	if err := os.WriteFile(garbage, []byte("not a certificate"), 0600); err != nil {
		t.Fatalf("writing CA file: %v", err)
	}

	tests := []struct {
		name     string
		ca       string
		cert     string
		key      string
		wantErr  bool
		wantCred bool
	}{
		{name: "system roots", wantErr: false},
		{name: "missing CA file", ca: filepath.Join(dir, "missing.pem"), wantErr: true},
		{name: "CA file without PEM", ca: garbage, wantErr: true},
		{name: "cert without key", cert: "device.crt", wantErr: true, wantCred: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := TLSConfig(tt.ca, tt.cert, tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("TLSConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantCred && !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("TLSConfig() error = %v, want ErrInvalidCredentials", err)
			}
			if err == nil && cfg.MinVersion != tlsMinVersion {
				t.Errorf("MinVersion = %v, want %v", cfg.MinVersion, tlsMinVersion)
			}
		})
	}
}

// =============================================================================
// Option Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	opts := buildClientOptions(Options{
		ServerURI:        "ssl://iot.example.com:8883",
		ClientID:         "D1_0_0_2026101812",
		Username:         "D1",
		Password:         "signed",
		ReconnectInitial: 2 * time.Second,
		ReconnectMax:     30 * time.Second,
	})

	if len(opts.Servers) != 1 || opts.Servers[0].Host != "iot.example.com:8883" {
		t.Errorf("Servers = %v, want iot.example.com:8883", opts.Servers)
	}
	if opts.ClientID != "D1_0_0_2026101812" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "D1" || opts.Password != "signed" {
		t.Errorf("credentials = %q/%q, want D1/signed", opts.Username, opts.Password)
	}
	if opts.ConnectRetry {
		t.Error("ConnectRetry = true, want false so rejected credentials surface")
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect = false, want true")
	}
	if !opts.OrderMatters {
		t.Error("OrderMatters = false, want true")
	}
	if opts.TLSConfig == nil {
		t.Error("TLSConfig = nil for ssl:// URI")
	}
	if opts.MaxReconnectInterval != 30*time.Second {
		t.Errorf("MaxReconnectInterval = %v, want 30s", opts.MaxReconnectInterval)
	}
	if opts.ConnectTimeout != defaultConnectTimeout {
		t.Errorf("ConnectTimeout = %v, want %v", opts.ConnectTimeout, defaultConnectTimeout)
	}
}

func TestSecureScheme(t *testing.T) {
	tests := map[string]bool{
		"ssl://h:8883":   true,
		"mqtts://h:8883": true,
		"wss://h/mqtt":   true,
		"tcp://h:1883":   false,
		"ws://h/mqtt":    false,
		"::bad::":        false,
	}
	for uri, want := range tests {
		if got := secureScheme(uri); got != want {
			t.Errorf("secureScheme(%q) = %v, want %v", uri, got, want)
		}
	}
}

// =============================================================================
// Error Classification Tests
// =============================================================================

func TestClassifyConnectError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{name: "bad password", in: packets.ErrorRefusedBadUsernameOrPassword, want: ErrAuthRejected},
		{name: "not authorised", in: packets.ErrorRefusedNotAuthorised, want: ErrAuthRejected},
		{name: "identifier rejected", in: packets.ErrorRefusedIDRejected, want: ErrAuthRejected},
		{name: "server unavailable", in: packets.ErrorRefusedServerUnavailable, want: ErrConnectionFailed},
		{name: "network", in: errors.New("dial tcp: connection refused"), want: ErrConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyConnectError(tt.in)
			if !errors.Is(got, tt.want) {
				t.Errorf("classifyConnectError() = %v, want %v", got, tt.want)
			}
			if !errors.Is(got, tt.in) {
				t.Errorf("classifyConnectError() = %v, lost cause %v", got, tt.in)
			}
		})
	}
}

// =============================================================================
// Disconnected Client Tests
// =============================================================================

func TestDisconnectedClient(t *testing.T) {
	c := New(Options{ServerURI: "tcp://127.0.0.1:1", ClientID: "offline"})

	if c.IsConnected() {
		t.Fatal("IsConnected() = true before Connect()")
	}

	if err := c.Publish("$oc/devices/D1/sys/messages/up", []byte("hi"), 1); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
	noop := func(string, []byte) {}
	if err := c.Subscribe("$oc/devices/D1/sys/messages/down", 1, noop); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() error = %v, want ErrNotConnected", err)
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}

func TestPublishValidation(t *testing.T) {
	c := New(Options{ServerURI: "tcp://127.0.0.1:1", ClientID: "validation"})

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{name: "empty topic", topic: "", payload: nil, qos: 0, want: ErrInvalidTopic},
		{name: "qos 3", topic: "t", payload: nil, qos: 3, want: ErrInvalidQoS},
		{name: "oversized", topic: "t", payload: make([]byte, maxPayloadSize+1), qos: 1, want: ErrPublishFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Publish(tt.topic, tt.payload, tt.qos); !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := New(Options{ServerURI: "tcp://127.0.0.1:1", ClientID: "validation"})

	if err := c.Subscribe("", 1, func(string, []byte) {}); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty) error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("t", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v, want ErrSubscribeFailed", err)
	}
	if err := c.Unsubscribe(); err != nil {
		t.Errorf("Unsubscribe() with no filters error = %v, want nil", err)
	}
	if c.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", c.SubscriptionCount())
	}
}

func TestConnectUnreachableBroker(t *testing.T) {
	c := New(Options{
		ServerURI:      "tcp://127.0.0.1:1",
		ClientID:       "unreachable",
		ConnectTimeout: 2 * time.Second,
	})
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := c.Connect(ctx)
	if err == nil {
		t.Fatal("Connect() expected error for unreachable broker")
	}
	if errors.Is(err, ErrAuthRejected) {
		t.Errorf("Connect() error = %v, must not be ErrAuthRejected", err)
	}
}
