package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/iot-bridge/internal/audit"
	"github.com/nerrad567/iot-bridge/internal/auth"
	"github.com/nerrad567/iot-bridge/internal/bridge"
	"github.com/nerrad567/iot-bridge/internal/deviceclient"
	"github.com/nerrad567/iot-bridge/internal/infrastructure/config"
	"github.com/nerrad567/iot-bridge/internal/infrastructure/logging"
)

// Server timeouts.
const (
	gracefulShutdownTimeout = 10 * time.Second
	readTimeout             = 10 * time.Second
	writeTimeout            = 15 * time.Second
	idleTimeout             = 60 * time.Second
)

// SessionStore is the part of *bridge.Registry the API reads and manages.
type SessionStore interface {
	Sessions() []bridge.SessionInfo
	Session(connID string) (*bridge.Session, bool)
	RemoveSession(connID string) bool
}

// IdentityStore is the part of *identity.Registry the API manages.
type IdentityStore interface {
	List(ctx context.Context) ([]deviceclient.Identity, error)
	LookupIdentity(ctx context.Context, nodeID string) (deviceclient.Identity, error)
	Register(ctx context.Context, id deviceclient.Identity) error
	Unregister(ctx context.Context, nodeID string) error
}

// HealthChecker reports whether a dependency is usable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.AdminConfig
	Logger     *logging.Logger
	Sessions   SessionStore
	Identities IdentityStore
	// Database is optional; when set /healthz includes it.
	Database HealthChecker
	// Gatherer defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	// Hub is optional. Pass one when it must exist before the server, for
	// example to register it as a bridge observer.
	Hub *Hub
	// Auth and Tokens may be nil, in which case every protected route
	// answers 401.
	Auth   *auth.Authenticator
	Tokens *auth.TokenIssuer
	// Audit is optional; when nil operator actions are only logged.
	Audit   audit.Repository
	Version string
}

// Server is the admin HTTP server.
type Server struct {
	cfg        config.AdminConfig
	logger     *logging.Logger
	sessions   SessionStore
	identities IdentityStore
	database   HealthChecker
	gatherer   prometheus.Gatherer
	auth       *auth.Authenticator
	tokens     *auth.TokenIssuer
	audit      audit.Repository
	tickets    *ticketStore
	version    string
	startTime  time.Time

	hub         *Hub
	externalHub bool

	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
}

// New creates a server. Nothing listens until Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if deps.Identities == nil {
		return nil, errors.New("identity store is required")
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		cfg:        deps.Config,
		logger:     deps.Logger,
		sessions:   deps.Sessions,
		identities: deps.Identities,
		database:   deps.Database,
		gatherer:   deps.Gatherer,
		auth:       deps.Auth,
		tokens:     deps.Tokens,
		audit:      deps.Audit,
		tickets:    newTicketStore(),
		version:    deps.Version,
		startTime:  time.Now(),
		hub:        deps.Hub,
	}
	if s.hub != nil {
		s.externalHub = true
	} else {
		s.hub = NewHub(deps.Logger)
	}
	return s, nil
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler { return s.buildRouter() }

// Start binds the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
	if err != nil {
		return fmt.Errorf("admin listen: %w", err)
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}
	go s.tickets.cleanLoop(srvCtx)

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("admin server error", "error", err)
		}
	}()

	s.logger.Info("admin server listening", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close gracefully shuts the server down, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("admin server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down admin server: %w", err)
	}
	return nil
}
