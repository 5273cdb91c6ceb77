package mqtt

import (
	"crypto/tls"
	"net/url"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for CONNACK.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive matches the platform's recommended 120s heartbeat.
	defaultKeepAlive = 120 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// Options describes one device's connection to the platform broker.
type Options struct {
	// ServerURI is the broker address, e.g. ssl://iot.example.com:8883.
	ServerURI string

	ClientID string
	Username string
	Password string

	// TLS is used for ssl://, tls://, mqtts:// and wss:// URIs. Nil means a
	// default config with system roots.
	TLS *tls.Config

	ConnectTimeout time.Duration
	KeepAlive      time.Duration

	// ReconnectInitial and ReconnectMax bound the backoff used after the
	// connection is lost. The first connect is never retried.
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
}

// secureScheme reports whether the URI scheme requires TLS.
func secureScheme(serverURI string) bool {
	u, err := url.Parse(serverURI)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "ssl", "tls", "mqtts", "wss":
		return true
	default:
		return false
	}
}

// buildClientOptions creates paho options for a device connection.
//
// This configures:
//   - Broker URL and client identification
//   - Device credentials
//   - Auto-reconnect after a lost connection, but no retry of the first CONNECT,
//     so rejected credentials surface to the caller
//   - TLS configuration for secure schemes
//   - Clean session mode
func buildClientOptions(o Options) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	opts.AddBroker(o.ServerURI)
	opts.SetClientID(o.ClientID)

	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}

	opts.SetCleanSession(true)
	opts.SetOrderMatters(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	if o.ReconnectInitial > 0 {
		opts.SetConnectRetryInterval(o.ReconnectInitial)
	}
	if o.ReconnectMax > 0 {
		opts.SetMaxReconnectInterval(o.ReconnectMax)
	}

	connectTimeout := o.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	opts.SetConnectTimeout(connectTimeout)

	keepAlive := o.KeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	opts.SetKeepAlive(keepAlive)

	if secureScheme(o.ServerURI) {
		tlsConfig := o.TLS
		if tlsConfig == nil {
			tlsConfig = &tls.Config{MinVersion: tlsMinVersion}
		}
		opts.SetTLSConfig(tlsConfig)
	}

	return opts
}
