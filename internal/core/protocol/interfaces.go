package protocol

import "context"

// Handler receives transport events. Transports call it from their own
// goroutines, so implementations must be safe for concurrent use and must not block.
type Handler interface {
	OnConnect(peer PeerID)
	OnMessage(peer PeerID, env Envelope)
	OnDisconnect(peer PeerID, err error)
}

// Server is the authoritative side of a transport.
type Server interface {
	// Serve accepts peers until ctx is done or Close is called.
	Serve(ctx context.Context) error
	// Broadcast sends env to every connected peer on the envelope's channel.
	// Unreliable sends to a congested peer are dropped silently.
	Broadcast(env Envelope) error
	// Send delivers env to a single peer.
	Send(peer PeerID, env Envelope) error
	// Addr returns the bound address once serving.
	Addr() string
	Close() error
}

// Client is the follower side of a transport.
type Client interface {
	// Run connects and delivers messages to the handler until ctx is done or
	// the connection drops.
	Run(ctx context.Context) error
	Close() error
}

// Kind names a transport implementation.
type Kind string

const (
	KindWebSocket Kind = "websocket"
	KindQUIC      Kind = "quic"
)

// HandlerFuncs adapts plain functions to Handler; nil fields are skipped.
type HandlerFuncs struct {
	Connect    func(PeerID)
	Message    func(PeerID, Envelope)
	Disconnect func(PeerID, error)
}

func (h HandlerFuncs) OnConnect(peer PeerID) {
	if h.Connect != nil {
		h.Connect(peer)
	}
}

func (h HandlerFuncs) OnMessage(peer PeerID, env Envelope) {
	if h.Message != nil {
		h.Message(peer, env)
	}
}

func (h HandlerFuncs) OnDisconnect(peer PeerID, err error) {
	if h.Disconnect != nil {
		h.Disconnect(peer, err)
	}
}
