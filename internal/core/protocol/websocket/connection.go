package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/multinet/internal/core/observability/log"
	"github.com/zeusync/multinet/internal/core/protocol"
)

// Connection is one peer socket. All writes go through a single writer
// goroutine fed by the send queue; gorilla allows only one concurrent writer.
type Connection struct {
	id          protocol.PeerID
	conn        *websocket.Conn
	config      protocol.Config
	messageType int
	connectedAt time.Time

	send      chan []byte
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once

	// Metrics
	messagesSent     atomic.Uint64
	messagesReceived atomic.Uint64
	messagesDropped  atomic.Uint64

	logger log.Log
}

func newConnection(id protocol.PeerID, conn *websocket.Conn, config protocol.Config, binary bool, logger log.Log) *Connection {
	messageType := websocket.TextMessage
	if binary {
		messageType = websocket.BinaryMessage
	}

	conn.SetReadLimit(config.MaxMessageSize)

	return &Connection{
		id:          id,
		conn:        conn,
		config:      config,
		messageType: messageType,
		connectedAt: time.Now(),
		send:        make(chan []byte, config.SendQueueSize),
		done:        make(chan struct{}),
		logger:      logger.With(log.String("peer_id", string(id))),
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

// Enqueue schedules data for the writer goroutine. Unreliable data is dropped
// when the queue is full; reliable data waits up to the write timeout.
func (c *Connection) Enqueue(data []byte, channel protocol.Channel) error {
	if c.IsClosed() {
		return protocol.ErrConnectionClosed
	}

	if channel == protocol.ChannelUnreliable {
		select {
		case c.send <- data:
			return nil
		case <-c.done:
			return protocol.ErrConnectionClosed
		default:
			c.messagesDropped.Add(1)
			return protocol.ErrSendQueueFull
		}
	}

	timer := time.NewTimer(c.config.WriteTimeout)
	defer timer.Stop()

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return protocol.ErrConnectionClosed
	case <-timer.C:
		return protocol.ErrConnectionTimeout
	}
}

// writeLoop owns every write on the socket until the connection closes.
func (c *Connection) writeLoop() {
	ping := time.NewTicker(c.config.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			if err := c.write(c.messageType, data); err != nil {
				c.logger.Debug("Write failed, closing connection", log.Error(err))
				_ = c.Close()
				return
			}
			c.messagesSent.Add(1)
		case <-ping.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}

func (c *Connection) write(messageType int, data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.conn.WriteMessage(messageType, data); err != nil {
		return errors.Wrap(err, "failed to write message")
	}
	return nil
}

// readLoop decodes inbound frames until the socket fails. A frame that does
// not decode is logged and skipped.
func (c *Connection) readLoop(codec protocol.Codec, onMessage func(protocol.Envelope)) error {
	_ = c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.IsClosed() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return errors.Wrap(err, "failed to read message")
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}

		env, err := codec.Decode(data)
		if err != nil {
			c.logger.Warn("Dropping undecodable message", log.Int("size", len(data)), log.Error(err))
			continue
		}
		c.messagesReceived.Add(1)
		onMessage(env)
	}
}

// Close sends a close frame and releases the socket. Safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)

		deadline := time.Now().Add(time.Second)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = c.conn.Close()
	})
	return err
}

// Stats returns message counters and the connection age.
func (c *Connection) Stats() (sent, received, dropped uint64, age time.Duration) {
	return c.messagesSent.Load(), c.messagesReceived.Load(), c.messagesDropped.Load(), time.Since(c.connectedAt)
}
