package websocket

import (
	"context"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/zeusync/multinet/internal/core/observability/log"
	"github.com/zeusync/multinet/internal/core/protocol"
)

// Path is the upgrade endpoint.
const Path = "/ws"

var _ protocol.Server = (*Server)(nil)

// Server accepts follower peers over WebSocket.
type Server struct {
	config  protocol.Config
	codec   protocol.Codec
	handler protocol.Handler
	logger  log.Log

	upgrader websocket.Upgrader

	mu         sync.RWMutex
	httpServer *http.Server
	listener   net.Listener
	peers      map[protocol.PeerID]*Connection
	closed     atomic.Bool
}

// NewServer creates a WebSocket server. Nothing is bound until Serve.
func NewServer(config protocol.Config, codec protocol.Codec, handler protocol.Handler, logger log.Log) *Server {
	config = config.WithDefaults()
	return &Server{
		config:  config,
		codec:   codec,
		handler: handler,
		logger:  logger.With(log.String("transport", string(protocol.KindWebSocket))),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			EnableCompression: config.EnableCompression,
		},
		peers: make(map[protocol.PeerID]*Connection),
	}
}

// Serve binds the listener and serves upgrades until ctx is done or Close is called.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return protocol.NewProtocolError(protocol.ErrorCodeListenFailed, "failed to listen", err).
			WithContext("address", s.config.Address())
	}

	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.handleUpgrade)

	httpServer := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: s.config.ReadTimeout,
	}

	s.mu.Lock()
	s.listener = listener
	s.httpServer = httpServer
	s.mu.Unlock()

	s.logger.Info("WebSocket server listening", log.String("address", listener.Addr().String()))

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	if err = httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "websocket server failed")
	}
	return nil
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if s.closed.Load() {
		http.Error(w, "server closing", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", log.String("remote", r.RemoteAddr), log.Error(err))
		return
	}

	id := protocol.PeerID(uuid.NewString())
	peer := newConnection(id, conn, s.config, s.codec.Name() != "json", s.logger)

	s.mu.Lock()
	s.peers[id] = peer
	s.mu.Unlock()

	s.logger.Info("Peer connected", log.String("peer_id", string(id)), log.String("remote", r.RemoteAddr))
	s.handler.OnConnect(id)

	go peer.writeLoop()
	readErr := peer.readLoop(s.codec, func(env protocol.Envelope) {
		s.handler.OnMessage(id, env)
	})

	s.mu.Lock()
	delete(s.peers, id)
	s.mu.Unlock()
	_ = peer.Close()

	s.logger.Info("Peer disconnected", log.String("peer_id", string(id)), log.Error(readErr))
	s.handler.OnDisconnect(id, readErr)
}

// Broadcast encodes env once and queues it for every peer. Unreliable drops
// are counted by each connection and not reported.
func (s *Server) Broadcast(env protocol.Envelope) error {
	data, err := s.codec.Encode(env)
	if err != nil {
		return err
	}
	channel := env.Channel()

	var result error
	for _, peer := range s.snapshotPeers() {
		err := peer.Enqueue(data, channel)
		if err == nil || (channel == protocol.ChannelUnreliable && errors.Is(err, protocol.ErrSendQueueFull)) {
			continue
		}
		result = multierr.Append(result, errors.Wrapf(err, "peer %s", peer.ID()))
	}
	return result
}

// Send delivers env to one peer.
func (s *Server) Send(id protocol.PeerID, env protocol.Envelope) error {
	s.mu.RLock()
	peer, ok := s.peers[id]
	s.mu.RUnlock()
	if !ok {
		return errors.Wrapf(protocol.ErrPeerNotFound, "peer %s", id)
	}

	data, err := s.codec.Encode(env)
	if err != nil {
		return err
	}
	return peer.Enqueue(data, env.Channel())
}

// Peers returns the ids of the connected peers.
func (s *Server) Peers() []protocol.PeerID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]protocol.PeerID, 0, len(s.peers))
	for id := range s.peers {
		ids = append(ids, id)
	}
	return ids
}

// Addr returns the bound address, or the configured one before Serve.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Address()
}

// URL returns the ws:// url followers dial.
func (s *Server) URL() string {
	return "ws://" + s.Addr() + Path
}

// Close stops accepting and closes every peer.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.RLock()
	httpServer := s.httpServer
	s.mu.RUnlock()

	var result error
	for _, peer := range s.snapshotPeers() {
		result = multierr.Append(result, peer.Close())
	}

	if httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		result = multierr.Append(result, httpServer.Shutdown(ctx))
	}
	return result
}

func (s *Server) snapshotPeers() []*Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	peers := make([]*Connection, 0, len(s.peers))
	for _, peer := range s.peers {
		peers = append(peers, peer)
	}
	return peers
}
