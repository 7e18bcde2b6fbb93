package websocket

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/multinet/internal/core/observability/log"
	"github.com/zeusync/multinet/internal/core/protocol"
)

// ServerPeer is the peer id a client reports for the authoritative side.
const ServerPeer protocol.PeerID = "server"

var _ protocol.Client = (*Client)(nil)

// Client is the follower side of the WebSocket transport.
type Client struct {
	url     string
	config  protocol.Config
	codec   protocol.Codec
	handler protocol.Handler
	logger  log.Log

	dialer websocket.Dialer

	mu   sync.Mutex
	conn *Connection
}

// NewClient creates a client dialing url, e.g. ws://127.0.0.1:9810/ws.
func NewClient(url string, config protocol.Config, codec protocol.Codec, handler protocol.Handler, logger log.Log) *Client {
	config = config.WithDefaults()
	return &Client{
		url:     url,
		config:  config,
		codec:   codec,
		handler: handler,
		logger:  logger.With(log.String("transport", string(protocol.KindWebSocket)), log.String("url", url)),
		dialer: websocket.Dialer{
			Proxy:             http.ProxyFromEnvironment,
			HandshakeTimeout:  config.WriteTimeout,
			EnableCompression: config.EnableCompression,
		},
	}
}

// Run dials the server and reads until ctx is done or the socket drops.
// A cancelled context is a clean exit.
func (c *Client) Run(ctx context.Context) error {
	ws, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return protocol.NewProtocolError(protocol.ErrorCodeDialFailed, "failed to dial", err).
			WithContext("url", c.url)
	}

	conn := newConnection(ServerPeer, ws, c.config, c.codec.Name() != "json", c.logger)
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.logger.Info("Connected to server")
	c.handler.OnConnect(ServerPeer)

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	go conn.writeLoop()
	readErr := conn.readLoop(c.codec, func(env protocol.Envelope) {
		c.handler.OnMessage(ServerPeer, env)
	})
	_ = conn.Close()

	c.handler.OnDisconnect(ServerPeer, readErr)
	if ctx.Err() != nil {
		return nil
	}
	if readErr == nil {
		return protocol.ErrConnectionClosed
	}
	return readErr
}

// Send queues env toward the server.
func (c *Client) Send(env protocol.Envelope) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.Wrap(protocol.ErrConnectionClosed, "not connected")
	}

	data, err := c.codec.Encode(env)
	if err != nil {
		return err
	}
	return conn.Enqueue(data, env.Channel())
}

// Close closes the socket; Run returns shortly after.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}
