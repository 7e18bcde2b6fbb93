package quic

import (
	"context"
	"crypto/tls"
	"sync"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/multinet/internal/core/observability/log"
	"github.com/zeusync/multinet/internal/core/protocol"
)

// ServerPeer is the peer id a client reports for the authoritative side.
const ServerPeer protocol.PeerID = "server"

var _ protocol.Client = (*Client)(nil)

// Client is the follower side of the QUIC transport.
type Client struct {
	addr    string
	config  protocol.Config
	tls     *tls.Config
	codec   protocol.Codec
	handler protocol.Handler
	logger  log.Log

	mu   sync.Mutex
	conn *Connection
}

// NewClient creates a client dialing addr (host:port). A nil tlsConfig skips
// certificate verification.
func NewClient(addr string, config protocol.Config, tlsConfig *tls.Config, codec protocol.Codec, handler protocol.Handler, logger log.Log) *Client {
	if tlsConfig == nil {
		tlsConfig = ClientTLS(false)
	}
	return &Client{
		addr:    addr,
		config:  config.WithDefaults(),
		tls:     tlsConfig,
		codec:   codec,
		handler: handler,
		logger:  logger.With(log.String("transport", string(protocol.KindQUIC)), log.String("address", addr)),
	}
}

// Run dials, waits for the server's stream and reads until ctx is done or the
// connection drops. A cancelled context is a clean exit.
func (c *Client) Run(ctx context.Context) error {
	conn, err := quic.DialAddr(ctx, c.addr, c.tls, quicConfig(c.config))
	if err != nil {
		return protocol.NewProtocolError(protocol.ErrorCodeDialFailed, "failed to dial", err).
			WithContext("address", c.addr)
	}

	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		_ = conn.CloseWithError(closeCodeNormal, "stream accept failed")
		if ctx.Err() != nil {
			return nil
		}
		return errors.Wrap(err, "failed to accept stream")
	}

	peer := newConnection(ServerPeer, conn, stream, c.config, c.logger)
	c.mu.Lock()
	c.conn = peer
	c.mu.Unlock()

	c.logger.Info("Connected to server")
	c.handler.OnConnect(ServerPeer)

	onMessage := func(env protocol.Envelope) {
		c.handler.OnMessage(ServerPeer, env)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return peer.readStream(c.codec, onMessage)
	})
	group.Go(func() error {
		return peer.readDatagrams(groupCtx, c.codec, onMessage)
	})
	group.Go(func() error {
		select {
		case <-groupCtx.Done():
		case <-conn.Context().Done():
		}
		return peer.Close()
	})
	readErr := group.Wait()

	c.handler.OnDisconnect(ServerPeer, readErr)
	if ctx.Err() != nil {
		return nil
	}
	if readErr == nil {
		return protocol.ErrConnectionClosed
	}
	return readErr
}

// Send writes env toward the server.
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
	return conn.Write(data, env.Channel())
}

// Close closes the connection; Run returns shortly after.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}
