// Package client is the follower SDK: it dials an authoritative peer, keeps
// the session clock in sync and exposes lag-compensated variables.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/multinet/internal/config"
	"github.com/zeusync/multinet/internal/core/clock"
	"github.com/zeusync/multinet/internal/core/events/bus"
	"github.com/zeusync/multinet/internal/core/lagcomp"
	"github.com/zeusync/multinet/internal/core/observability/log"
	"github.com/zeusync/multinet/internal/core/observability/metrics"
	"github.com/zeusync/multinet/internal/core/protocol"
	"github.com/zeusync/multinet/internal/core/protocol/transport"
	"github.com/zeusync/multinet/internal/core/session"
)

// Config holds configuration for the client
type Config struct {
	// Connection settings
	Transport            protocol.Kind
	Protocol             protocol.Config
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int // 0 retries forever

	// Timeline settings
	Sync                clock.Config
	InterpolationOffset float64 // milliseconds
	TickRate            int
}

// DefaultClientConfig returns default client configuration
func DefaultClientConfig() Config {
	p := protocol.DefaultConfig()
	p.Host = "127.0.0.1"
	return Config{
		Transport:            protocol.KindWebSocket,
		Protocol:             p,
		ReconnectInterval:    2 * time.Second,
		MaxReconnectAttempts: 10,
		Sync:                 clock.DefaultConfig(),
		InterpolationOffset:  lagcomp.DefaultInterpolationOffset,
		TickRate:             clock.DefaultTickRate,
	}
}

// ConfigFrom maps the file configuration onto the client.
func ConfigFrom(c *config.Config) Config {
	cfg := DefaultClientConfig()
	cfg.Transport = protocol.Kind(c.Client.Transport)
	cfg.Protocol = c.ClientProtocol()
	cfg.Sync = c.SyncConfig()
	cfg.InterpolationOffset = c.InterpolationOffsetMs()
	cfg.TickRate = c.Clock.TickRate
	return cfg
}

// TickHook runs on the tick goroutine after the session applied the tick's
// messages. Variable reads belong here.
type TickHook func(s *session.Session, deltaMs float64)

// Client is a follower peer.
type Client struct {
	config    Config
	clock     clockwork.Clock
	session   *session.Session
	transport protocol.Client
	driver    *clock.Driver
	metrics   *metrics.Metrics
	logger    log.Log

	hooksMu sync.Mutex
	hooks   []TickHook
	running atomic.Bool
}

// NewClient creates a follower. A nil clk means the wall clock; metrics may be nil.
func NewClient(cfg Config, clk clockwork.Clock, m *metrics.Metrics, logger log.Log) (*Client, error) {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = log.NewNop()
	}
	if m == nil {
		m = metrics.New(nil)
	}

	sessionCfg := session.DefaultConfig()
	sessionCfg.Role = clock.RoleFollower
	sessionCfg.Clock = cfg.Sync
	sessionCfg.InterpolationOffset = cfg.InterpolationOffset
	sess := session.New(sessionCfg, bus.New(), m, logger)

	conn, err := transport.NewClient(cfg.Transport, cfg.Protocol, sess, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	c := &Client{
		config:    cfg,
		clock:     clk,
		session:   sess,
		transport: conn,
		metrics:   m,
		logger:    logger.With(log.String("component", "client")),
	}
	c.driver = clock.NewDriver(clk, cfg.TickRate, c.tick)
	return c, nil
}

// Session returns the follower session.
func (c *Client) Session() *session.Session {
	return c.session
}

// OnTick registers a hook. Hooks run in registration order.
func (c *Client) OnTick(hook TickHook) {
	c.hooksMu.Lock()
	c.hooks = append(c.hooks, hook)
	c.hooksMu.Unlock()
}

func (c *Client) tick(deltaMs float64) {
	c.session.Tick(deltaMs)

	c.hooksMu.Lock()
	hooks := c.hooks
	c.hooksMu.Unlock()
	for _, hook := range hooks {
		hook(c.session, deltaMs)
	}
}

// Run ticks and keeps the connection up until ctx is done. Consecutive dial
// failures beyond MaxReconnectAttempts end the run.
func (c *Client) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		err := c.driver.Run(groupCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	group.Go(func() error {
		return c.connect(groupCtx)
	})
	return group.Wait()
}

func (c *Client) connect(ctx context.Context) error {
	failures := 0
	for {
		err := c.transport.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}

		if protocol.GetErrorCode(err) == protocol.ErrorCodeDialFailed {
			failures++
		} else {
			failures = 0
		}
		if c.config.MaxReconnectAttempts > 0 && failures > c.config.MaxReconnectAttempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrReconnectFailed, failures, err)
		}

		c.logger.Warn("Connection lost, reconnecting",
			log.Int("attempt", failures), log.Duration("delay", c.config.ReconnectInterval), log.Error(err))

		select {
		case <-ctx.Done():
			return nil
		case <-c.clock.After(c.config.ReconnectInterval):
		}
	}
}

// Close drops the current connection; Run keeps reconnecting until its
// context is done.
func (c *Client) Close() error {
	return c.transport.Close()
}
