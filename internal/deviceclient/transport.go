package deviceclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/iot-bridge/internal/infrastructure/mqtt"
)

// Transport is the secure publish/subscribe channel a Client runs over.
//
// *mqtt.Client implements it. Connect errors wrapping mqtt.ErrAuthRejected
// or mqtt.ErrTimeout are reported as ErrAuthRejected and ErrTimeout;
// anything else is ErrTransportUnavailable.
type Transport interface {
	Connect(ctx context.Context) error
	Publish(topic string, payload []byte, qos byte) error
	Subscribe(filter string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(filters ...string) error
	Close() error
	IsConnected() bool
}

// TransportConfig is what a TransportFactory needs to build one device connection.
type TransportConfig struct {
	ServerURI string
	Identity  Identity
	// TrustAnchor is the CA bundle path used to verify the platform.
	TrustAnchor string

	ConnectTimeout   time.Duration
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
	Now              func() time.Time
	Logger           Logger
}

// TransportFactory builds an unconnected Transport.
type TransportFactory func(cfg TransportConfig) (Transport, error)

// NewMQTTTransport is the default TransportFactory.
func NewMQTTTransport(cfg TransportConfig) (Transport, error) {
	now := time.Now
	if cfg.Now != nil {
		now = cfg.Now
	}

	tlsCfg, err := mqtt.TLSConfig(cfg.TrustAnchor, cfg.Identity.CertFile, cfg.Identity.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("building TLS config for %s: %w", cfg.Identity.DeviceID, err)
	}

	creds := mqtt.DeviceCredentials(cfg.Identity.DeviceID, cfg.Identity.Secret, now())
	c := mqtt.New(mqtt.Options{
		ServerURI:        cfg.ServerURI,
		ClientID:         creds.ClientID,
		Username:         creds.Username,
		Password:         creds.Password,
		TLS:              tlsCfg,
		ConnectTimeout:   cfg.ConnectTimeout,
		ReconnectInitial: cfg.ReconnectInitial,
		ReconnectMax:     cfg.ReconnectMax,
	})
	if cfg.Logger != nil {
		c.SetLogger(cfg.Logger)
	}
	return c, nil
}

// connectReason maps a transport connect error onto the ConnectError reasons.
func connectReason(err error) error {
	switch {
	case errors.Is(err, mqtt.ErrAuthRejected), errors.Is(err, ErrAuthRejected):
		return ErrAuthRejected
	case errors.Is(err, mqtt.ErrTimeout), errors.Is(err, ErrTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	default:
		return ErrTransportUnavailable
	}
}
