package quic

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/libp2p/go-msgio"
	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/multinet/internal/core/observability/log"
	"github.com/zeusync/multinet/internal/core/protocol"
)

const closeCodeNormal quic.ApplicationErrorCode = 0

// Connection pairs one QUIC connection with its single reliable stream.
// Reliable envelopes are varint length-prefixed on the stream; unreliable
// ones travel as datagrams.
type Connection struct {
	id     protocol.PeerID
	conn   *quic.Conn
	stream *quic.Stream
	config protocol.Config

	writer  msgio.WriteCloser
	reader  msgio.ReadCloser
	writeMu sync.Mutex

	closed    atomic.Bool
	closeOnce sync.Once

	// Metrics
	messagesSent     atomic.Uint64
	messagesReceived atomic.Uint64
	datagramsDropped atomic.Uint64

	logger log.Log
}

func newConnection(id protocol.PeerID, conn *quic.Conn, stream *quic.Stream, config protocol.Config, logger log.Log) *Connection {
	return &Connection{
		id:     id,
		conn:   conn,
		stream: stream,
		config: config,
		writer: msgio.NewVarintWriter(stream),
		reader: msgio.NewVarintReaderSize(stream, int(config.MaxMessageSize)),
		logger: logger.With(log.String("peer_id", string(id))),
	}
}

// ID returns the peer id.
func (c *Connection) ID() protocol.PeerID {
	return c.id
}

// IsClosed reports whether Close was called.
func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}

// Write sends data on the channel. A datagram that cannot be sent is dropped
// and counted, except when it exceeds the path MTU, in which case it goes
// over the stream instead.
func (c *Connection) Write(data []byte, channel protocol.Channel) error {
	if c.IsClosed() {
		return protocol.ErrConnectionClosed
	}

	if channel == protocol.ChannelUnreliable {
		err := c.conn.SendDatagram(data)
		if err == nil {
			c.messagesSent.Add(1)
			return nil
		}
		var tooLarge *quic.DatagramTooLargeError
		if !errors.As(err, &tooLarge) {
			c.datagramsDropped.Add(1)
			return nil
		}
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.stream.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.writer.WriteMsg(data); err != nil {
		return errors.Wrap(err, "failed to write message")
	}
	c.messagesSent.Add(1)
	return nil
}

// announce writes an empty frame. A QUIC peer only learns about a stream once
// data arrives on it, so the opener sends this before anything else.
func (c *Connection) announce() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.stream.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return errors.Wrap(c.writer.WriteMsg(nil), "failed to announce stream")
}

// readStream decodes reliable envelopes until the stream fails.
func (c *Connection) readStream(codec protocol.Codec, onMessage func(protocol.Envelope)) error {
	for {
		data, err := c.reader.ReadMsg()
		if err != nil {
			if c.IsClosed() {
				return nil
			}
			return errors.Wrap(err, "failed to read stream")
		}

		if len(data) == 0 {
			continue
		}

		env, err := codec.Decode(data)
		c.reader.ReleaseMsg(data)
		if err != nil {
			c.logger.Warn("Dropping undecodable message", log.Error(err))
			continue
		}
		c.messagesReceived.Add(1)
		onMessage(env)
	}
}

// readDatagrams decodes unreliable envelopes until ctx is done or the
// connection fails.
func (c *Connection) readDatagrams(ctx context.Context, codec protocol.Codec, onMessage func(protocol.Envelope)) error {
	for {
		data, err := c.conn.ReceiveDatagram(ctx)
		if err != nil {
			if c.IsClosed() || ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "failed to receive datagram")
		}

		env, err := codec.Decode(data)
		if err != nil {
			c.logger.Debug("Dropping undecodable datagram", log.Error(err))
			continue
		}
		c.messagesReceived.Add(1)
		onMessage(env)
	}
}

// Close closes the stream and the connection. Safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		_ = c.stream.Close()
		err = c.conn.CloseWithError(closeCodeNormal, "closed")
	})
	return err
}

// Stats returns message counters.
func (c *Connection) Stats() (sent, received, dropped uint64) {
	return c.messagesSent.Load(), c.messagesReceived.Load(), c.datagramsDropped.Load()
}
