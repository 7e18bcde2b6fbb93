package quic

import (
	"context"
	"crypto/tls"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/multinet/internal/core/observability/log"
	"github.com/zeusync/multinet/internal/core/protocol"
)

var _ protocol.Server = (*Server)(nil)

// Server accepts follower peers over QUIC. Each accepted connection gets one
// server-opened bidirectional stream for reliable traffic.
type Server struct {
	config  protocol.Config
	tls     *tls.Config
	codec   protocol.Codec
	handler protocol.Handler
	logger  log.Log

	mu       sync.RWMutex
	listener *quic.Listener
	peers    map[protocol.PeerID]*Connection
	closed   atomic.Bool
}

// NewServer creates a QUIC server. A nil tlsConfig generates a self-signed certificate on Serve.
func NewServer(config protocol.Config, tlsConfig *tls.Config, codec protocol.Codec, handler protocol.Handler, logger log.Log) *Server {
	return &Server{
		config:  config.WithDefaults(),
		tls:     tlsConfig,
		codec:   codec,
		handler: handler,
		logger:  logger.With(log.String("transport", string(protocol.KindQUIC))),
		peers:   make(map[protocol.PeerID]*Connection),
	}
}

func quicConfig(config protocol.Config) *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:  config.ReadTimeout,
		KeepAlivePeriod: config.PingInterval,
		EnableDatagrams: true,
	}
}

// Serve accepts connections until ctx is done or Close is called.
func (s *Server) Serve(ctx context.Context) error {
	tlsConfig := s.tls
	if tlsConfig == nil {
		generated, err := GenerateSelfSignedTLS()
		if err != nil {
			return errors.Wrap(err, "failed to create TLS config")
		}
		tlsConfig = generated
	}

	listener, err := quic.ListenAddr(s.config.Address(), tlsConfig, quicConfig(s.config))
	if err != nil {
		return protocol.NewProtocolError(protocol.ErrorCodeListenFailed, "failed to listen", err).
			WithContext("address", s.config.Address())
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("QUIC server listening", log.String("address", listener.Addr().String()))

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			if s.closed.Load() || ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "failed to accept connection")
		}
		go s.handleConnection(ctx, conn)
	}
}

func (s *Server) handleConnection(ctx context.Context, conn *quic.Conn) {
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		s.logger.Warn("Failed to open stream", log.String("remote", conn.RemoteAddr().String()), log.Error(err))
		_ = conn.CloseWithError(closeCodeNormal, "stream open failed")
		return
	}

	id := protocol.PeerID(uuid.NewString())
	peer := newConnection(id, conn, stream, s.config, s.logger)
	if err = peer.announce(); err != nil {
		s.logger.Warn("Failed to announce stream", log.String("remote", conn.RemoteAddr().String()), log.Error(err))
		_ = peer.Close()
		return
	}

	s.mu.Lock()
	s.peers[id] = peer
	s.mu.Unlock()

	s.logger.Info("Peer connected", log.String("peer_id", string(id)), log.String("remote", conn.RemoteAddr().String()))
	s.handler.OnConnect(id)

	onMessage := func(env protocol.Envelope) {
		s.handler.OnMessage(id, env)
	}

	group, groupCtx := errgroup.WithContext(conn.Context())
	group.Go(func() error {
		return peer.readStream(s.codec, onMessage)
	})
	group.Go(func() error {
		return peer.readDatagrams(groupCtx, s.codec, onMessage)
	})
	group.Go(func() error {
		// unblock the readers once either one exits
		<-groupCtx.Done()
		return peer.Close()
	})
	readErr := group.Wait()

	s.mu.Lock()
	delete(s.peers, id)
	s.mu.Unlock()

	s.logger.Info("Peer disconnected", log.String("peer_id", string(id)), log.Error(readErr))
	s.handler.OnDisconnect(id, readErr)
}

// Broadcast encodes env once and sends it to every peer.
func (s *Server) Broadcast(env protocol.Envelope) error {
	data, err := s.codec.Encode(env)
	if err != nil {
		return err
	}
	channel := env.Channel()

	var result error
	for _, peer := range s.snapshotPeers() {
		if err := peer.Write(data, channel); err != nil {
			result = multierr.Append(result, errors.Wrapf(err, "peer %s", peer.ID()))
		}
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
	return peer.Write(data, env.Channel())
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

// Close stops accepting and closes every peer.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	var result error
	for _, peer := range s.snapshotPeers() {
		result = multierr.Append(result, peer.Close())
	}

	s.mu.RLock()
	listener := s.listener
	s.mu.RUnlock()
	if listener != nil {
		result = multierr.Append(result, listener.Close())
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
