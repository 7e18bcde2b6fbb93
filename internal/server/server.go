// Package server runs the authoritative peer: transport, session, tick loop
// and the metrics endpoint.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/multinet/internal/config"
	"github.com/zeusync/multinet/internal/core/clock"
	"github.com/zeusync/multinet/internal/core/events/bus"
	"github.com/zeusync/multinet/internal/core/observability/log"
	"github.com/zeusync/multinet/internal/core/observability/metrics"
	"github.com/zeusync/multinet/internal/core/protocol"
	"github.com/zeusync/multinet/internal/core/protocol/quic"
	"github.com/zeusync/multinet/internal/core/protocol/transport"
	"github.com/zeusync/multinet/internal/core/session"
)

// Config holds server configuration
type Config struct {
	Transport protocol.Kind
	Protocol  protocol.Config
	Sync      clock.Config
	TickRate  int

	// QUIC certificate; both empty means self-signed
	CertFile string
	KeyFile  string

	// Empty disables the metrics endpoint
	MetricsAddress string
}

// ConfigFrom maps the file configuration onto the server.
func ConfigFrom(c *config.Config) Config {
	cfg := Config{
		Transport: protocol.Kind(c.Server.Transport),
		Protocol:  c.ServerProtocol(),
		Sync:      c.SyncConfig(),
		TickRate:  c.Clock.TickRate,
		CertFile:  c.Server.CertFile,
		KeyFile:   c.Server.KeyFile,
	}
	if c.Metrics.Enabled {
		cfg.MetricsAddress = c.Metrics.Address
	}
	return cfg
}

// TickHook runs game logic on the tick goroutine before the session tick.
type TickHook func(s *session.Session, deltaMs float64)

// Server is the authoritative peer.
type Server struct {
	config    Config
	session   *session.Session
	transport protocol.Server
	driver    *clock.Driver
	http      *HTTPServer
	registry  *prometheus.Registry
	logger    log.Log

	hooksMu sync.Mutex
	hooks   []TickHook
	running atomic.Bool
}

// NewServer wires a server. A nil clk means the wall clock.
func NewServer(cfg Config, clk clockwork.Clock, logger log.Log) (*Server, error) {
	if logger == nil {
		logger = log.NewNop()
	}

	var tlsConfig *tls.Config
	if cfg.Transport == protocol.KindQUIC {
		var err error
		if tlsConfig, err = quic.ServerTLS(cfg.CertFile, cfg.KeyFile); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	sessionCfg := session.DefaultConfig()
	sessionCfg.Role = clock.RoleAuthoritative
	sessionCfg.Clock = cfg.Sync
	sess := session.New(sessionCfg, bus.New(), m, logger)

	srv, err := transport.NewServer(cfg.Transport, cfg.Protocol, tlsConfig, sess, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	sess.SetTransport(srv)

	s := &Server{
		config:    cfg,
		session:   sess,
		transport: srv,
		registry:  registry,
		logger:    logger.With(log.String("component", "server")),
	}
	s.driver = clock.NewDriver(clk, cfg.TickRate, s.tick)
	if cfg.MetricsAddress != "" {
		s.http = NewHTTPServer(cfg.MetricsAddress, registry, nil, logger)
	}
	return s, nil
}

// Session returns the authoritative session.
func (s *Server) Session() *session.Session {
	return s.session
}

// Registry returns the Prometheus registry holding the session metrics.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// Addr returns the transport address.
func (s *Server) Addr() string {
	return s.transport.Addr()
}

// OnTick registers game logic. Hooks run in registration order.
func (s *Server) OnTick(hook TickHook) {
	s.hooksMu.Lock()
	s.hooks = append(s.hooks, hook)
	s.hooksMu.Unlock()
}

func (s *Server) tick(deltaMs float64) {
	s.hooksMu.Lock()
	hooks := s.hooks
	s.hooksMu.Unlock()

	for _, hook := range hooks {
		hook(s.session, deltaMs)
	}
	s.session.Tick(deltaMs)
}

// Run serves until ctx is done or a component fails.
func (s *Server) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrServerAlreadyRunning
	}
	defer s.running.Store(false)

	s.logger.Info("Starting authoritative peer",
		log.String("transport", string(s.config.Transport)),
		log.String("address", s.config.Protocol.Address()),
		log.Int("tick_rate", s.config.TickRate))

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return s.transport.Serve(groupCtx)
	})
	group.Go(func() error {
		return ignoreCanceled(s.driver.Run(groupCtx))
	})
	if s.http != nil {
		group.Go(func() error {
			return s.http.Serve(groupCtx)
		})
	}

	err := group.Wait()
	_ = s.transport.Close()
	s.logger.Info("Authoritative peer stopped", log.Error(err))
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
