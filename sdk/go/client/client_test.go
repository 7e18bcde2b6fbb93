package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/multinet/internal/config"
	"github.com/zeusync/multinet/internal/core/clock"
	"github.com/zeusync/multinet/internal/core/observability/log"
	"github.com/zeusync/multinet/internal/core/protocol"
	"github.com/zeusync/multinet/internal/core/session"
)

func unreachableConfig() Config {
	cfg := DefaultClientConfig()
	cfg.Protocol.Port = 1
	cfg.ReconnectInterval = 10 * time.Millisecond
	cfg.MaxReconnectAttempts = 2
	return cfg
}

func TestNewClientIsFollower(t *testing.T) {
	c, err := NewClient(DefaultClientConfig(), nil, nil, log.NewNop())
	require.NoError(t, err)
	assert.Equal(t, clock.RoleFollower, c.Session().Role())
}

func TestNewClientRejectsUnknownTransport(t *testing.T) {
	cfg := DefaultClientConfig()
	cfg.Transport = "smoke-signals"

	_, err := NewClient(cfg, nil, nil, log.NewNop())
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, protocol.ErrTransportNotSupported)
}

func TestRunGivesUpAfterMaxAttempts(t *testing.T) {
	c, err := NewClient(unreachableConfig(), nil, nil, log.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = c.Run(ctx)
	assert.ErrorIs(t, err, ErrReconnectFailed)
	assert.Equal(t, protocol.ErrorCodeDialFailed, protocol.GetErrorCode(err))
}

func TestRunTicksWhileDisconnected(t *testing.T) {
	cfg := unreachableConfig()
	cfg.MaxReconnectAttempts = 0
	c, err := NewClient(cfg, nil, nil, log.NewNop())
	require.NoError(t, err)

	ticks := make(chan float64, 1)
	c.OnTick(func(s *session.Session, deltaMs float64) {
		select {
		case ticks <- s.Clock().ClientTime():
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case <-ticks:
	case <-time.After(5 * time.Second):
		t.Fatal("no tick")
	}
	assert.ErrorIs(t, c.Run(ctx), ErrAlreadyRunning)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("client did not stop")
	}
}

func TestConfigFrom(t *testing.T) {
	c := config.Default()
	c.Client.Transport = "quic"

	cfg := ConfigFrom(c)
	assert.Equal(t, protocol.KindQUIC, cfg.Transport)
	assert.Equal(t, c.InterpolationOffsetMs(), cfg.InterpolationOffset)
}
