package deviceclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/iot-bridge/internal/infrastructure/mqtt"
)

// Client defaults.
const (
	defaultQoS            = 1
	defaultResponseMemory = 10 * time.Minute
)

// Logger is the logging interface used by the client.
// *logging.Logger and *slog.Logger satisfy it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Client.
type Options struct {
	// ServerURI is the platform endpoint, e.g. ssl://iot.example.com:8883.
	ServerURI string
	// TrustAnchor is the CA bundle used to verify the platform certificate.
	TrustAnchor string
	// BridgeID enables bridge login after CONNECT. Empty means direct mode.
	BridgeID string

	QoS            byte
	RequestTimeout time.Duration
	ConnectTimeout time.Duration
	// ResponseMemory is how long answered command ids are remembered for
	// duplicate detection.
	ResponseMemory time.Duration

	ReconnectInitial time.Duration
	ReconnectMax     time.Duration

	// TransportFactory defaults to NewMQTTTransport.
	TransportFactory TransportFactory
	// Defaults receives traffic with no registered listener. Nil drops it with a log line.
	Defaults DefaultHandler
	Logger   Logger
	// QueueSize bounds the listener dispatch queue. Messages arriving while
	// it is full are dropped and counted by DroppedMessages.
	QueueSize int
	// Now is the clock used for credentials and timestamps.
	Now func() time.Time
}

type clientState int

const (
	stateIdle clientState = iota
	stateConnecting
	stateConnected
	stateClosed
)

// Client is the device-facing protocol API for one device identity.
//
// It owns one Transport, a Correlator for requests it originates, and a
// Router that feeds inbound messages to the registered listeners.
//
// Thread Safety: all methods are safe for concurrent use. Listener callbacks
// run one at a time on the client's dispatch goroutine in arrival order.
type Client struct {
	identity   Identity
	opts       Options
	topics     Topics
	transport  Transport
	correlator *Correlator
	router     *Router
	dispatch   *dispatcher
	logger     Logger
	now        func() time.Time

	listenerMu  sync.RWMutex
	propertySet PropertySetListener
	propertyGet PropertyGetListener
	command     CommandListener
	message     MessageListener
	shadow      ShadowListener
	login       LoginListener
	defaults    DefaultHandler

	respondedMu sync.Mutex
	responded   map[string]time.Time

	stateMu sync.Mutex
	state   clientState

	decodeErrors atomic.Uint64
}

// New builds a client for identity. No network activity happens until Connect.
func New(identity Identity, opts Options) (*Client, error) {
	if err := identity.validate(); err != nil {
		return nil, fmt.Errorf("%w: device %q needs a device id and a secret or certificate", err, identity.DeviceID)
	}
	if opts.QoS == 0 {
		opts.QoS = defaultQoS
	}
	if opts.ResponseMemory <= 0 {
		opts.ResponseMemory = defaultResponseMemory
	}
	if opts.TransportFactory == nil {
		opts.TransportFactory = NewMQTTTransport
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	defaults := opts.Defaults
	if defaults == nil {
		defaults = dropHandler{logger: logger}
	}

	transport, err := opts.TransportFactory(TransportConfig{
		ServerURI:        opts.ServerURI,
		Identity:         identity,
		TrustAnchor:      opts.TrustAnchor,
		ConnectTimeout:   opts.ConnectTimeout,
		ReconnectInitial: opts.ReconnectInitial,
		ReconnectMax:     opts.ReconnectMax,
		Now:              opts.Now,
		Logger:           logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating transport: %w", err)
	}

	c := &Client{
		identity:   identity,
		opts:       opts,
		topics:     Topics{DeviceID: identity.DeviceID, BridgeID: opts.BridgeID},
		transport:  transport,
		correlator: NewCorrelator(opts.RequestTimeout),
		router:     NewRouter(logger),
		dispatch:   newDispatcher(opts.QueueSize, identity.DeviceID, logger),
		logger:     logger,
		now:        opts.Now,
		defaults:   defaults,
		responded:  make(map[string]time.Time),
	}
	c.correlator.now = opts.Now

	c.router.Handle(KindCommand, HandlerFunc(c.handleCommand))
	c.router.Handle(KindPropertySet, HandlerFunc(c.handlePropertySet))
	c.router.Handle(KindPropertyGet, HandlerFunc(c.handlePropertyGet))
	c.router.Handle(KindShadowResponse, HandlerFunc(c.handleShadow))
	c.router.Handle(KindMessageDown, HandlerFunc(c.handleMessageDown))
	c.router.Handle(KindLoginResponse, HandlerFunc(c.handleLogin))
	c.router.Handle(KindLogoutResponse, HandlerFunc(c.handleLogout))

	return c, nil
}

// DeviceID returns the platform device id.
func (c *Client) DeviceID() string { return c.identity.DeviceID }

// Identity returns the identity the client was built with.
func (c *Client) Identity() Identity { return c.identity }

// Connect connects the transport, subscribes the device's topic filters and,
// in bridge mode, logs the device in.
//
// In bridge mode with no LoginListener set, Connect waits for the login
// result. With a LoginListener set it returns once the login request is
// published and the listener receives the result.
//
// Failures are *ConnectError values; the transport is closed before returning.
func (c *Client) Connect(ctx context.Context) error {
	c.stateMu.Lock()
	switch c.state {
	case stateClosed:
		c.stateMu.Unlock()
		return ErrClosed
	case stateConnecting, stateConnected:
		c.stateMu.Unlock()
		return nil
	}
	c.state = stateConnecting
	c.stateMu.Unlock()

	c.dispatch.start()
	c.correlator.Start(context.Background())

	if err := c.connect(ctx); err != nil {
		_ = c.transport.Close()
		c.setStateIf(stateConnecting, stateIdle)
		return err
	}

	if !c.setStateIf(stateConnecting, stateConnected) {
		return &ConnectError{DeviceID: c.identity.DeviceID, Reason: ErrTransportUnavailable, Err: ErrClosed}
	}

	c.logger.Info("device connected", "device_id", c.identity.DeviceID, "bridge_id", c.opts.BridgeID)
	return nil
}

func (c *Client) connect(ctx context.Context) error {
	if err := c.transport.Connect(ctx); err != nil {
		return &ConnectError{DeviceID: c.identity.DeviceID, Reason: connectReason(err), Err: err}
	}

	for _, filter := range c.topics.Filters() {
		qos := c.opts.QoS
		if err := c.transport.Subscribe(filter, qos, func(topic string, payload []byte) {
			c.router.Dispatch(RawMessage{Topic: topic, Payload: payload, QoS: qos})
		}); err != nil {
			return &ConnectError{
				DeviceID: c.identity.DeviceID,
				Reason:   ErrTransportUnavailable,
				Err:      fmt.Errorf("subscribing %s: %w", filter, err),
			}
		}
	}

	if c.opts.BridgeID != "" {
		return c.bridgeLogin(ctx)
	}
	return nil
}

// bridgeLogin publishes the login request and, unless a LoginListener is
// set, waits for the correlated result code.
func (c *Client) bridgeLogin(ctx context.Context) error {
	requestID := c.correlator.NewRequestID()

	var future *Future
	if c.loginListener() == nil {
		f, err := c.correlator.Register(requestID)
		if err != nil {
			return &ConnectError{DeviceID: c.identity.DeviceID, Reason: ErrTransportUnavailable, Err: err}
		}
		future = f
	}

	ts := mqtt.Timestamp(c.now())
	body := loginRequest{
		Password:  mqtt.SignSecret(c.identity.Secret, ts),
		Timestamp: ts,
	}
	if err := c.publishJSON(c.topics.BridgeLogin(requestID), body); err != nil {
		if future != nil {
			c.correlator.Cancel(requestID, err)
		}
		return &ConnectError{DeviceID: c.identity.DeviceID, Reason: ErrTransportUnavailable, Err: err}
	}

	if future == nil {
		return nil
	}

	v, err := future.Await(ctx)
	if err != nil {
		reason := ErrTimeout
		if !errors.Is(err, ErrTimeout) && !errors.Is(err, context.DeadlineExceeded) {
			reason = ErrTransportUnavailable
		}
		return &ConnectError{DeviceID: c.identity.DeviceID, Reason: reason, Err: err}
	}
	if code, _ := v.(int); code != 0 {
		return &ConnectError{
			DeviceID: c.identity.DeviceID,
			Reason:   ErrAuthRejected,
			Err:      fmt.Errorf("login result_code %d", code),
		}
	}
	return nil
}

// Close unsubscribes, disconnects the transport, and fails pending requests
// with ErrCancelled. Closing twice is a no-op.
//
// Listeners may call Close. For that reason Close does not wait for a
// listener callback that is already running; callers outside the listeners
// that need it finished wait on Done.
func (c *Client) Close() error {
	c.stateMu.Lock()
	if c.state == stateClosed {
		c.stateMu.Unlock()
		return nil
	}
	wasConnected := c.state == stateConnected
	c.state = stateClosed
	c.stateMu.Unlock()

	if wasConnected {
		if err := c.transport.Unsubscribe(c.topics.Filters()...); err != nil {
			c.logger.Debug("unsubscribe on close failed", "device_id", c.identity.DeviceID, "error", err)
		}
	}

	err := c.transport.Close()

	if n := c.correlator.CancelAll(ErrCancelled); n > 0 {
		c.logger.Debug("cancelled pending requests", "device_id", c.identity.DeviceID, "count", n)
	}
	c.correlator.Stop()
	c.dispatch.stop()

	c.logger.Info("device client closed", "device_id", c.identity.DeviceID)
	return err
}

// IsConnected reports whether Connect succeeded and the transport is up.
func (c *Client) IsConnected() bool {
	c.stateMu.Lock()
	state := c.state
	c.stateMu.Unlock()
	return state == stateConnected && c.transport.IsConnected()
}

// IsClosed reports whether Close has been called.
func (c *Client) IsClosed() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state == stateClosed
}

// DecodeErrors returns the number of malformed inbound payloads dropped.
func (c *Client) DecodeErrors() uint64 { return c.decodeErrors.Load() }

// DroppedMessages returns the number of inbound messages dropped because the
// listener queue was full.
func (c *Client) DroppedMessages() uint64 { return c.dispatch.dropped.Load() }

// Done is closed once Close has run and no listener callback is executing.
func (c *Client) Done() <-chan struct{} { return c.dispatch.exited }

// PendingRequests returns the number of outstanding correlated requests.
func (c *Client) PendingRequests() int { return c.correlator.Len() }

func (c *Client) setStateIf(from, to clientState) bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.state != from {
		return false
	}
	c.state = to
	return true
}

// ready returns nil when outbound operations are allowed.
func (c *Client) ready() error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	switch c.state {
	case stateClosed:
		return ErrClosed
	case stateIdle:
		return ErrNotConnected
	default:
		return nil
	}
}

func (c *Client) publishJSON(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", topic, err)
	}
	return c.publish(topic, payload)
}

func (c *Client) publish(topic string, payload []byte) error {
	if err := c.transport.Publish(topic, payload, c.opts.QoS); err != nil {
		return fmt.Errorf("%w: %w", ErrTransportUnavailable, err)
	}
	return nil
}

// =============================================================================
// Listener registration
// =============================================================================

// SetPropertySetListener replaces the property-set listener. Nil clears it.
func (c *Client) SetPropertySetListener(l PropertySetListener) {
	c.listenerMu.Lock()
	c.propertySet = l
	c.listenerMu.Unlock()
}

// SetPropertyGetListener replaces the property-get listener. Nil clears it.
func (c *Client) SetPropertyGetListener(l PropertyGetListener) {
	c.listenerMu.Lock()
	c.propertyGet = l
	c.listenerMu.Unlock()
}

// SetCommandListener replaces the command listener. Nil clears it.
func (c *Client) SetCommandListener(l CommandListener) {
	c.listenerMu.Lock()
	c.command = l
	c.listenerMu.Unlock()
}

// SetMessageListener replaces the downlink message listener. Nil clears it.
func (c *Client) SetMessageListener(l MessageListener) {
	c.listenerMu.Lock()
	c.message = l
	c.listenerMu.Unlock()
}

// SetShadowListener replaces the shadow listener. Nil clears it.
func (c *Client) SetShadowListener(l ShadowListener) {
	c.listenerMu.Lock()
	c.shadow = l
	c.listenerMu.Unlock()
}

// SetLoginListener replaces the login listener. Nil clears it.
func (c *Client) SetLoginListener(l LoginListener) {
	c.listenerMu.Lock()
	c.login = l
	c.listenerMu.Unlock()
}

func (c *Client) propertySetListener() PropertySetListener {
	c.listenerMu.RLock()
	defer c.listenerMu.RUnlock()
	return c.propertySet
}

func (c *Client) propertyGetListener() PropertyGetListener {
	c.listenerMu.RLock()
	defer c.listenerMu.RUnlock()
	return c.propertyGet
}

func (c *Client) commandListener() CommandListener {
	c.listenerMu.RLock()
	defer c.listenerMu.RUnlock()
	return c.command
}

func (c *Client) messageListener() MessageListener {
	c.listenerMu.RLock()
	defer c.listenerMu.RUnlock()
	return c.message
}

func (c *Client) shadowListener() ShadowListener {
	c.listenerMu.RLock()
	defer c.listenerMu.RUnlock()
	return c.shadow
}

func (c *Client) loginListener() LoginListener {
	c.listenerMu.RLock()
	defer c.listenerMu.RUnlock()
	return c.login
}
