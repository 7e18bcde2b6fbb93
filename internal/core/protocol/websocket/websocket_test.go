package websocket

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/multinet/internal/core/observability/log"
	"github.com/zeusync/multinet/internal/core/protocol"
)

type recorder struct {
	mu           sync.Mutex
	connected    []protocol.PeerID
	disconnected []protocol.PeerID
	messages     []protocol.Envelope
}

func (r *recorder) OnConnect(peer protocol.PeerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected = append(r.connected, peer)
}

func (r *recorder) OnMessage(_ protocol.PeerID, env protocol.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, env)
}

func (r *recorder) OnDisconnect(peer protocol.PeerID, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnected = append(r.disconnected, peer)
}

func (r *recorder) snapshot() (connected, disconnected int, messages []protocol.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.connected), len(r.disconnected), append([]protocol.Envelope(nil), r.messages...)
}

func testConfig() protocol.Config {
	cfg := protocol.DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	return cfg
}

func startServer(t *testing.T, ctx context.Context, codec protocol.Codec, handler protocol.Handler) *Server {
	t.Helper()
	srv := NewServer(testConfig(), codec, handler, log.NewNop())
	go func() { _ = srv.Serve(ctx) }()
	require.Eventually(t, func() bool {
		return !strings.HasSuffix(srv.Addr(), ":0")
	}, 5*time.Second, 10*time.Millisecond)
	return srv
}

func TestServerClientExchange(t *testing.T) {
	for _, name := range []string{"json", "msgpack"} {
		t.Run(name, func(t *testing.T) {
			codec, err := protocol.CodecByName(name)
			require.NoError(t, err)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			serverSide := &recorder{}
			srv := startServer(t, ctx, codec, serverSide)

			clientSide := &recorder{}
			client := NewClient(srv.URL(), testConfig(), codec, clientSide, log.NewNop())
			clientDone := make(chan error, 1)
			go func() { clientDone <- client.Run(ctx) }()

			require.Eventually(t, func() bool {
				connected, _, _ := serverSide.snapshot()
				return connected == 1
			}, 5*time.Second, 10*time.Millisecond)

			require.NoError(t, srv.Broadcast(protocol.NewClockEnvelope(100)))
			require.NoError(t, srv.Broadcast(protocol.NewSpawnEnvelope("ship", "")))
			require.Eventually(t, func() bool {
				_, _, messages := clientSide.snapshot()
				return len(messages) == 2
			}, 5*time.Second, 10*time.Millisecond)

			_, _, messages := clientSide.snapshot()
			assert.Equal(t, protocol.TypeClock, messages[0].Type)
			assert.Equal(t, 100.0, messages[0].Clock.ServerTimeMs)
			assert.Equal(t, protocol.EntityID("ship"), messages[1].Entity.Entity)

			require.NoError(t, client.Send(protocol.NewClockEnvelope(5)))
			require.Eventually(t, func() bool {
				_, _, messages := serverSide.snapshot()
				return len(messages) == 1
			}, 5*time.Second, 10*time.Millisecond)

			require.NoError(t, client.Close())
			require.Eventually(t, func() bool {
				_, disconnected, _ := serverSide.snapshot()
				return disconnected == 1
			}, 5*time.Second, 10*time.Millisecond)
			assert.Empty(t, srv.Peers())

			select {
			case err := <-clientDone:
				assert.Error(t, err)
			case <-time.After(5 * time.Second):
				t.Fatal("client did not return")
			}
		})
	}
}

func TestSendToUnknownPeer(t *testing.T) {
	codec, err := protocol.CodecByName("json")
	require.NoError(t, err)

	srv := NewServer(testConfig(), codec, protocol.HandlerFuncs{}, log.NewNop())
	err = srv.Send("missing", protocol.NewClockEnvelope(1))
	assert.ErrorIs(t, err, protocol.ErrPeerNotFound)
}

func TestClientDialFailure(t *testing.T) {
	codec, err := protocol.CodecByName("json")
	require.NoError(t, err)

	client := NewClient("ws://127.0.0.1:1/ws", testConfig(), codec, protocol.HandlerFuncs{}, log.NewNop())
	err = client.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, protocol.ErrorCodeDialFailed, protocol.GetErrorCode(err))
}

func TestServerStopsOnContextCancel(t *testing.T) {
	codec, err := protocol.CodecByName("json")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer(testConfig(), codec, protocol.HandlerFuncs{}, log.NewNop())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	require.Eventually(t, func() bool {
		return !strings.HasSuffix(srv.Addr(), ":0")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
