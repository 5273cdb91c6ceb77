package bridge

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TCPConfig configures the line-framed TCP transport.
type TCPConfig struct {
	// Listen is the address to bind, e.g. "0.0.0.0:8080".
	Listen string
	// MaxFrameBytes bounds one line. Longer lines end the connection.
	MaxFrameBytes int
	// WriteTimeout bounds each downlink write. Zero means no deadline.
	WriteTimeout time.Duration
}

// TCPServer accepts external devices over TCP.
//
// Frames are newline-terminated. The first non-empty line on a connection is
// the node id used to create its session; every later line is relayed to the
// platform as a device message. Downlink frames are written as single lines.
// When the connection ends its session is removed.
type TCPServer struct {
	registry *Registry
	cfg      TCPConfig
	logger   Logger

	listener net.Listener
	cancel   context.CancelFunc

	mu      sync.Mutex
	conns   map[string]net.Conn
	closing bool
	wg      sync.WaitGroup
}

// NewTCPServer creates a server feeding registry. Call Start to accept.
func NewTCPServer(registry *Registry, cfg TCPConfig, logger Logger) *TCPServer {
	if cfg.MaxFrameBytes <= 0 {
		cfg.MaxFrameBytes = 64 * 1024
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &TCPServer{
		registry: registry,
		cfg:      cfg,
		logger:   logger,
		conns:    make(map[string]net.Conn),
	}
}

// Start binds the listen address and accepts connections in the background.
// Session logins use a context derived from ctx.
func (s *TCPServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Listen, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.listener = ln
	s.cancel = cancel

	s.wg.Add(1)
	go s.acceptLoop(ctx)

	s.logger.Info("bridge transport listening", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *TCPServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close stops accepting, closes every connection and waits for their
// sessions to be removed.
func (s *TCPServer) Close() error {
	if s.listener == nil {
		return nil
	}
	s.cancel()
	err := s.listener.Close()

	s.mu.Lock()
	s.closing = true
	for _, c := range s.conns {
		c.Close() //nolint:errcheck // best-effort teardown
	}
	s.mu.Unlock()

	s.wg.Wait()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (s *TCPServer) acceptLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		nc, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}

		s.wg.Add(1)
		go s.serveConn(ctx, nc)
	}
}

func (s *TCPServer) serveConn(ctx context.Context, nc net.Conn) {
	defer s.wg.Done()

	conn := &tcpConn{id: uuid.NewString(), nc: nc, writeTimeout: s.cfg.WriteTimeout}
	s.track(conn.id, nc)
	defer func() {
		s.registry.RemoveSession(conn.id)
		s.untrack(conn.id)
		nc.Close() //nolint:errcheck // already finished with the connection
	}()

	s.logger.Debug("connection accepted", "conn_id", conn.id, "remote", nc.RemoteAddr().String())

	// The scanner limit covers the frame and its newline. The initial buffer
	// must not exceed it or the larger capacity becomes the limit.
	limit := s.cfg.MaxFrameBytes + 1
	scanner := bufio.NewScanner(nc)
	scanner.Buffer(make([]byte, 0, min(4096, limit)), limit)

	for scanner.Scan() {
		line := bytes.TrimRight(scanner.Bytes(), "\r")
		if len(line) == 0 {
			continue
		}

		if s.registry.State(conn.id) == StateActive {
			frame := append([]byte(nil), line...)
			if err := s.registry.HandleUplink(conn.id, frame); err != nil {
				s.logger.Warn("uplink dropped", "conn_id", conn.id, "error", err)
			}
			continue
		}

		nodeID := strings.TrimSpace(string(line))
		if _, err := s.registry.CreateSession(ctx, nodeID, conn); err != nil {
			// Logged by the registry. The connection may identify again.
			continue
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.logger.Debug("connection read ended", "conn_id", conn.id, "error", err)
	}
}

func (s *TCPServer) track(id string, nc net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		nc.Close() //nolint:errcheck // accepted during shutdown
		return
	}
	s.conns[id] = nc
}

func (s *TCPServer) untrack(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, id)
}

// tcpConn is the Conn for one accepted socket.
type tcpConn struct {
	id           string
	nc           net.Conn
	writeTimeout time.Duration

	mu sync.Mutex
}

func (c *tcpConn) ID() string { return c.id }

func (c *tcpConn) Write(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.nc.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	buf := make([]byte, 0, len(frame)+1)
	buf = append(buf, frame...)
	buf = append(buf, '\n')
	_, err := c.nc.Write(buf)
	return err
}

func (c *tcpConn) Close() error { return c.nc.Close() }
