package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/iot-bridge/internal/deviceclient"
	"github.com/nerrad567/iot-bridge/internal/identity"
)

// Logger is the logging interface used by the bridge.
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

// IdentityRegistry resolves node ids to device identities.
// A missing node must yield an error matching identity.ErrNotFound.
type IdentityRegistry interface {
	LookupIdentity(ctx context.Context, nodeID string) (deviceclient.Identity, error)
}

// DeviceClient is the part of *deviceclient.Client a session drives.
type DeviceClient interface {
	Connect(ctx context.Context) error
	Close() error
	IsConnected() bool
	ReportDeviceMessage(payload []byte) error
	ReportProperties(services []deviceclient.ServiceProperty) error
	RespondCommand(requestID string, rsp deviceclient.CommandResponse) error
	RespondPropertiesSet(requestID string, result deviceclient.IotResult) error
	SetMessageListener(l deviceclient.MessageListener)
	SetCommandListener(l deviceclient.CommandListener)
	SetPropertySetListener(l deviceclient.PropertySetListener)
}

// ClientFactory builds an unconnected client for a resolved identity.
type ClientFactory func(id deviceclient.Identity) (DeviceClient, error)

// DeviceClientFactory returns a ClientFactory that builds *deviceclient.Client
// values sharing opts.
func DeviceClientFactory(opts deviceclient.Options) ClientFactory {
	return func(id deviceclient.Identity) (DeviceClient, error) {
		return deviceclient.New(id, opts)
	}
}

// claim reserves a connection id or device id while a session is being built.
type claim struct {
	deviceID  string
	abandoned bool
}

// Registry maps external connections to device sessions.
//
// At most one session exists per connection id and per device id. Both maps
// are updated under one lock, so a session is reachable from both or from
// neither. Platform connects and client teardown run outside the lock, so a
// slow login on one connection never blocks another.
//
// Thread Safety: all methods are safe for concurrent use.
type Registry struct {
	identities IdentityRegistry
	newClient  ClientFactory
	ack        AckPolicy
	metrics    *Metrics
	observers  []Observer
	logger     Logger
	now        func() time.Time

	mu             sync.Mutex
	byConn         map[string]*Session
	byDevice       map[string]*Session
	claimedConns   map[string]*claim
	claimedDevices map[string]bool
	closed         bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithAckPolicy sets how relayed platform requests are answered.
// The default is AutoAck.
func WithAckPolicy(p AckPolicy) Option {
	return func(r *Registry) { r.ack = p }
}

// WithMetrics records session and frame counters.
func WithMetrics(m *Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithObserver adds a session event observer.
func WithObserver(o Observer) Option {
	return func(r *Registry) { r.observers = append(r.observers, o) }
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithClock sets the clock used for session timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates an empty registry.
func NewRegistry(identities IdentityRegistry, newClient ClientFactory, opts ...Option) *Registry {
	r := &Registry{
		identities:     identities,
		newClient:      newClient,
		ack:            AutoAck{},
		logger:         noopLogger{},
		now:            time.Now,
		byConn:         make(map[string]*Session),
		byDevice:       make(map[string]*Session),
		claimedConns:   make(map[string]*claim),
		claimedDevices: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateSession authenticates conn as nodeID and makes it Active.
//
// An unknown node returns ErrIdentityNotFound without building a client.
// A connection that is already identified, or a device that already has a
// session, returns ErrSessionExists. Connect failures are returned as the
// client reports them (*deviceclient.ConnectError). On any error no session
// exists and conn stays unidentified, so the caller may retry.
func (r *Registry) CreateSession(ctx context.Context, nodeID string, conn Conn) (*Session, error) {
	connID := conn.ID()

	c, err := r.claimConn(connID)
	if err != nil {
		r.reject(connID, nodeID, "exists", err)
		return nil, err
	}
	deviceID := ""
	defer func() {
		r.release(connID, deviceID)
	}()

	id, err := r.identities.LookupIdentity(ctx, nodeID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			err = fmt.Errorf("%w: node %q", ErrIdentityNotFound, nodeID)
			r.reject(connID, nodeID, "identity_not_found", err)
			return nil, err
		}
		r.reject(connID, nodeID, "lookup_failed", err)
		return nil, fmt.Errorf("looking up node %q: %w", nodeID, err)
	}

	if err := r.claimDevice(id.DeviceID); err != nil {
		r.reject(connID, nodeID, "exists", err)
		return nil, fmt.Errorf("%w: device %q", err, id.DeviceID)
	}
	deviceID = id.DeviceID

	client, err := r.newClient(id)
	if err != nil {
		r.reject(connID, nodeID, "client_failed", err)
		return nil, fmt.Errorf("building client for device %q: %w", id.DeviceID, err)
	}

	s := &Session{
		ConnID:    connID,
		NodeID:    id.NodeID,
		DeviceID:  id.DeviceID,
		CreatedAt: r.now(),
		client:    client,
		conn:      conn,
		registry:  r,
	}
	s.wire()

	if err := client.Connect(ctx); err != nil {
		s.close()
		r.reject(connID, nodeID, "connect_failed", err)
		return nil, fmt.Errorf("connecting device %q: %w", id.DeviceID, err)
	}

	if err := r.activate(s, c); err != nil {
		s.close()
		r.reject(connID, nodeID, "abandoned", err)
		return nil, err
	}

	r.metrics.sessionResult("created")
	r.logger.Info("session created", "conn_id", connID, "node_id", s.NodeID, "device_id", s.DeviceID)
	r.notify(Event{Type: EventOpened, Session: s.Info()})
	return s, nil
}

func (r *Registry) claimConn(connID string) (*claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}
	if _, ok := r.byConn[connID]; ok {
		return nil, fmt.Errorf("%w: connection %q", ErrSessionExists, connID)
	}
	if _, ok := r.claimedConns[connID]; ok {
		return nil, fmt.Errorf("%w: connection %q is authenticating", ErrSessionExists, connID)
	}
	c := &claim{}
	r.claimedConns[connID] = c
	return c, nil
}

func (r *Registry) claimDevice(deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byDevice[deviceID]; ok || r.claimedDevices[deviceID] {
		return ErrSessionExists
	}
	r.claimedDevices[deviceID] = true
	return nil
}

// activate inserts s into both maps unless the connection went away or the
// registry closed while it was connecting.
func (r *Registry) activate(s *Session, c *claim) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRegistryClosed
	}
	if c.abandoned {
		return ErrConnClosed
	}
	r.byConn[s.ConnID] = s
	r.byDevice[s.DeviceID] = s
	return nil
}

func (r *Registry) release(connID, deviceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.claimedConns, connID)
	if deviceID != "" {
		delete(r.claimedDevices, deviceID)
	}
}

func (r *Registry) reject(connID, nodeID, result string, err error) {
	r.metrics.sessionResult(result)
	if errors.Is(err, ErrIdentityNotFound) {
		r.logger.Info("unknown node", "conn_id", connID, "node_id", nodeID)
	} else {
		r.logger.Warn("session not created", "conn_id", connID, "node_id", nodeID, "reason", result, "error", err)
	}
	r.notify(Event{
		Type:    EventRejected,
		Session: SessionInfo{ConnID: connID, NodeID: nodeID},
		Error:   err.Error(),
	})
}

// RemoveSession closes the session for connID and removes it from both maps.
// It reports whether a session was removed; a second call is a no-op.
// It returns after any downlink relay in flight on the session has finished,
// so Observers must not call it.
// A connection still authenticating is marked so its session is torn down
// instead of activated.
func (r *Registry) RemoveSession(connID string) bool {
	r.mu.Lock()
	s, ok := r.byConn[connID]
	if ok {
		delete(r.byConn, connID)
		delete(r.byDevice, s.DeviceID)
	} else if c, pending := r.claimedConns[connID]; pending {
		c.abandoned = true
	}
	r.mu.Unlock()

	if !ok {
		return false
	}

	s.close()
	r.metrics.sessionResult("closed")
	r.logger.Info("session removed", "conn_id", connID, "device_id", s.DeviceID)
	r.notify(Event{Type: EventClosed, Session: s.Info()})
	return true
}

// HandleUplink relays a frame from the external connection to the platform
// as a device message. Unknown connections return ErrSessionNotFound.
func (r *Registry) HandleUplink(connID string, frame []byte) error {
	s, ok := r.Session(connID)
	if !ok {
		return fmt.Errorf("%w: connection %q", ErrSessionNotFound, connID)
	}

	err := s.client.ReportDeviceMessage(frame)
	r.metrics.uplink(len(frame), err)
	if err != nil {
		return fmt.Errorf("relaying uplink for device %q: %w", s.DeviceID, err)
	}
	r.notify(Event{Type: EventUplink, Session: s.Info(), Bytes: len(frame)})
	return nil
}

// State returns the lifecycle state of connID.
func (r *Registry) State(connID string) ConnState {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byConn[connID]; ok {
		return StateActive
	}
	if _, ok := r.claimedConns[connID]; ok {
		return StateAuthenticating
	}
	return StateUnidentified
}

// Session returns the session for connID.
func (r *Registry) Session(connID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byConn[connID]
	return s, ok
}

// SessionByDevice returns the session for deviceID.
func (r *Registry) SessionByDevice(deviceID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byDevice[deviceID]
	return s, ok
}

// Sessions returns a snapshot of all active sessions.
func (r *Registry) Sessions() []SessionInfo {
	r.mu.Lock()
	list := make([]*Session, 0, len(r.byConn))
	for _, s := range r.byConn {
		list = append(list, s)
	}
	r.mu.Unlock()

	infos := make([]SessionInfo, 0, len(list))
	for _, s := range list {
		infos = append(infos, s.Info())
	}
	return infos
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byConn)
}

// Close removes every session and rejects further CreateSession calls.
// Sessions still authenticating are torn down when their connect returns.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	ids := make([]string, 0, len(r.byConn))
	for id := range r.byConn {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.RemoveSession(id)
	}
}

func (r *Registry) notify(ev Event) {
	if len(r.observers) == 0 {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = r.now()
	}
	for _, o := range r.observers {
		o.OnSessionEvent(ev)
	}
}
