package protocol

import (
	"fmt"
	"net"
	"time"
)

// Config holds transport configuration shared by every transport kind.
type Config struct {
	// Network settings
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PingInterval time.Duration

	// Message settings
	MaxMessageSize    int64
	EnableCompression bool

	// Per-peer outbound queue length
	SendQueueSize int

	// Codec name, see CodecByName
	Codec string
}

// DefaultConfig returns transport defaults.
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           9810,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   5 * time.Second,
		PingInterval:   10 * time.Second,
		MaxMessageSize: 64 * 1024,
		SendQueueSize:  256,
		Codec:          "json",
	}
}

// Address returns host:port.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, fmt.Sprintf("%d", c.Port))
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = def.PingInterval
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = def.SendQueueSize
	}
	return c
}
