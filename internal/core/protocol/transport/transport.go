// Package transport builds a protocol.Server or protocol.Client for a
// configured transport kind.
package transport

import (
	"crypto/tls"
	"fmt"

	"github.com/zeusync/multinet/internal/core/observability/log"
	"github.com/zeusync/multinet/internal/core/protocol"
	"github.com/zeusync/multinet/internal/core/protocol/quic"
	"github.com/zeusync/multinet/internal/core/protocol/websocket"
)

// NewServer creates the authoritative side. tlsConfig is only used by QUIC;
// nil there means a generated self-signed certificate.
func NewServer(kind protocol.Kind, config protocol.Config, tlsConfig *tls.Config, handler protocol.Handler, logger log.Log) (protocol.Server, error) {
	codec, err := protocol.CodecByName(config.Codec)
	if err != nil {
		return nil, err
	}

	switch kind {
	case protocol.KindWebSocket, "":
		return websocket.NewServer(config, codec, handler, logger), nil
	case protocol.KindQUIC:
		return quic.NewServer(config, tlsConfig, codec, handler, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", protocol.ErrTransportNotSupported, kind)
	}
}

// NewClient creates the follower side dialing config.Host:config.Port.
func NewClient(kind protocol.Kind, config protocol.Config, handler protocol.Handler, logger log.Log) (protocol.Client, error) {
	codec, err := protocol.CodecByName(config.Codec)
	if err != nil {
		return nil, err
	}

	switch kind {
	case protocol.KindWebSocket, "":
		url := "ws://" + config.Address() + websocket.Path
		return websocket.NewClient(url, config, codec, handler, logger), nil
	case protocol.KindQUIC:
		return quic.NewClient(config.Address(), config, nil, codec, handler, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", protocol.ErrTransportNotSupported, kind)
	}
}
