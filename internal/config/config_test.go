package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/multinet/internal/core/clock"
	"github.com/zeusync/multinet/internal/core/protocol"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "multinet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, clock.DefaultConfig(), cfg.SyncConfig())
	assert.Equal(t, 30.0, cfg.InterpolationOffsetMs())
	assert.Equal(t, "127.0.0.1:9810", cfg.ClientAddress())
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 7000
  transport: quic
  timer_update_interval: 50ms
client:
  interpolation_offset: 80ms
clock:
  tick_rate: 30
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, string(protocol.KindQUIC), cfg.Server.Transport)
	assert.Equal(t, 50*time.Millisecond, cfg.Server.TimerUpdateInterval)
	assert.Equal(t, 30, cfg.Clock.TickRate)
	assert.Equal(t, 80.0, cfg.InterpolationOffsetMs())
	assert.Equal(t, 50.0, cfg.SyncConfig().UpdateInterval)

	// untouched keys keep their defaults
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9810, cfg.Client.ServerPort)
	assert.Equal(t, 1000.0, cfg.SyncConfig().ResyncThreshold)
}

func TestLoadShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "multinet.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "server:\n  prot: 1\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidateReportsEveryField(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	cfg.Client.Transport = "carrier-pigeon"
	cfg.Server.Codec = "xml"
	cfg.Clock.TickRate = 0
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, protocol.ErrTransportNotSupported)
	assert.ErrorIs(t, err, protocol.ErrUnknownCodec)
	for _, field := range []string{"server.port", "client.transport", "server.codec", "clock.tick_rate", "log.level"} {
		assert.Contains(t, err.Error(), field)
	}
}

func TestOverridePortAndTransport(t *testing.T) {
	cfg := Default()
	cfg.OverridePort(4242)
	cfg.OverrideTransport(string(protocol.KindQUIC))

	assert.Equal(t, 4242, cfg.ServerProtocol().Port)
	assert.Equal(t, 4242, cfg.ClientProtocol().Port)
	assert.Equal(t, "127.0.0.1", cfg.ClientProtocol().Host)
	assert.Equal(t, string(protocol.KindQUIC), cfg.Client.Transport)
	assert.Contains(t, cfg.String(), "4242")
}
