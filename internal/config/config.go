// Package config loads the multinet YAML configuration.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/multinet/internal/core/clock"
	"github.com/zeusync/multinet/internal/core/protocol"
)

// Config is the root of the YAML document.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Client  ClientConfig  `yaml:"client"`
	Clock   ClockConfig   `yaml:"clock"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig configures the authoritative peer.
type ServerConfig struct {
	Host                string        `yaml:"host"`
	Port                int           `yaml:"port"`
	Transport           string        `yaml:"transport"`
	Codec               string        `yaml:"codec"`
	TimerUpdateInterval time.Duration `yaml:"timer_update_interval"`
	Compression         bool          `yaml:"compression"`
	CertFile            string        `yaml:"cert_file"`
	KeyFile             string        `yaml:"key_file"`
}

// ClientConfig configures a follower.
type ClientConfig struct {
	ServerAddress       string        `yaml:"server_address"`
	ServerPort          int           `yaml:"server_port"`
	Transport           string        `yaml:"transport"`
	Codec               string        `yaml:"codec"`
	InterpolationOffset time.Duration `yaml:"interpolation_offset"`
	Compression         bool          `yaml:"compression"`
}

// ClockConfig configures clock synchronization and the tick loop.
type ClockConfig struct {
	ResyncThreshold time.Duration `yaml:"resync_threshold"`
	TickRate        int           `yaml:"tick_rate"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                "0.0.0.0",
			Port:                9810,
			Transport:           string(protocol.KindWebSocket),
			Codec:               "json",
			TimerUpdateInterval: 100 * time.Millisecond,
		},
		Client: ClientConfig{
			ServerAddress:       "127.0.0.1",
			ServerPort:          9810,
			Transport:           string(protocol.KindWebSocket),
			Codec:               "json",
			InterpolationOffset: 30 * time.Millisecond,
		},
		Clock: ClockConfig{
			ResyncThreshold: time.Second,
			TickRate:        clock.DefaultTickRate,
		},
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Address: ":9811",
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
// Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer func() { _ = f.Close() }()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err = dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	if !validPort(c.Server.Port) {
		errs = append(errs, fmt.Errorf("server.port: %d out of range", c.Server.Port))
	}
	if !validPort(c.Client.ServerPort) {
		errs = append(errs, fmt.Errorf("client.server_port: %d out of range", c.Client.ServerPort))
	}
	if err := validTransport(c.Server.Transport); err != nil {
		errs = append(errs, fmt.Errorf("server.transport: %w", err))
	}
	if err := validTransport(c.Client.Transport); err != nil {
		errs = append(errs, fmt.Errorf("client.transport: %w", err))
	}
	if _, err := protocol.CodecByName(c.Server.Codec); err != nil {
		errs = append(errs, fmt.Errorf("server.codec: %w", err))
	}
	if _, err := protocol.CodecByName(c.Client.Codec); err != nil {
		errs = append(errs, fmt.Errorf("client.codec: %w", err))
	}
	if c.Client.ServerAddress == "" {
		errs = append(errs, errors.New("client.server_address: empty"))
	}
	if c.Server.TimerUpdateInterval <= 0 {
		errs = append(errs, fmt.Errorf("server.timer_update_interval: %s must be positive", c.Server.TimerUpdateInterval))
	}
	if c.Client.InterpolationOffset < 0 {
		errs = append(errs, fmt.Errorf("client.interpolation_offset: %s must not be negative", c.Client.InterpolationOffset))
	}
	if c.Clock.ResyncThreshold <= 0 {
		errs = append(errs, fmt.Errorf("clock.resync_threshold: %s must be positive", c.Clock.ResyncThreshold))
	}
	if c.Clock.TickRate <= 0 || c.Clock.TickRate > 1000 {
		errs = append(errs, fmt.Errorf("clock.tick_rate: %d out of range", c.Clock.TickRate))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		errs = append(errs, errors.New("metrics.address: empty while metrics are enabled"))
	}

	return errors.Join(errs...)
}

// OverridePort sets both the listening and the dialed port.
func (c *Config) OverridePort(port int) {
	c.Server.Port = port
	c.Client.ServerPort = port
}

// OverrideTransport sets the transport on both sides.
func (c *Config) OverrideTransport(kind string) {
	c.Server.Transport = kind
	c.Client.Transport = kind
}

// ServerProtocol returns the transport settings of the authoritative peer.
func (c *Config) ServerProtocol() protocol.Config {
	p := protocol.DefaultConfig()
	p.Host = c.Server.Host
	p.Port = c.Server.Port
	p.EnableCompression = c.Server.Compression
	p.Codec = c.Server.Codec
	return p
}

// ClientProtocol returns the transport settings of a follower.
func (c *Config) ClientProtocol() protocol.Config {
	p := protocol.DefaultConfig()
	p.Host = c.Client.ServerAddress
	p.Port = c.Client.ServerPort
	p.EnableCompression = c.Client.Compression
	p.Codec = c.Client.Codec
	return p
}

// ClientAddress returns host:port of the server a follower dials.
func (c *Config) ClientAddress() string {
	return net.JoinHostPort(c.Client.ServerAddress, fmt.Sprintf("%d", c.Client.ServerPort))
}

// SyncConfig returns the clock synchronizer settings in milliseconds.
func (c *Config) SyncConfig() clock.Config {
	return clock.Config{
		UpdateInterval:  milliseconds(c.Server.TimerUpdateInterval),
		ResyncThreshold: milliseconds(c.Clock.ResyncThreshold),
	}
}

// InterpolationOffsetMs returns the follower render delay in milliseconds.
func (c *Config) InterpolationOffsetMs() float64 {
	return milliseconds(c.Client.InterpolationOffset)
}

// String renders the configuration for the startup log.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("multinet configuration\n")
	fmt.Fprintf(&b, "  server:  %s:%d transport=%s codec=%s timer_update_interval=%s compression=%t\n",
		c.Server.Host, c.Server.Port, c.Server.Transport, c.Server.Codec, c.Server.TimerUpdateInterval, c.Server.Compression)
	fmt.Fprintf(&b, "  client:  %s:%d transport=%s codec=%s interpolation_offset=%s compression=%t\n",
		c.Client.ServerAddress, c.Client.ServerPort, c.Client.Transport, c.Client.Codec, c.Client.InterpolationOffset, c.Client.Compression)
	fmt.Fprintf(&b, "  clock:   resync_threshold=%s tick_rate=%d\n", c.Clock.ResyncThreshold, c.Clock.TickRate)
	fmt.Fprintf(&b, "  log:     level=%s\n", c.Log.Level)
	fmt.Fprintf(&b, "  metrics: enabled=%t address=%s", c.Metrics.Enabled, c.Metrics.Address)
	return b.String()
}

func validPort(port int) bool {
	return port > 0 && port <= 65535
}

func validTransport(kind string) error {
	switch protocol.Kind(kind) {
	case protocol.KindWebSocket, protocol.KindQUIC:
		return nil
	default:
		return fmt.Errorf("%w: %q", protocol.ErrTransportNotSupported, kind)
	}
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
