package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-msgpack/v2/codec"
)

// Codec converts envelopes to and from bytes. Implementations are safe for
// concurrent use.
type Codec interface {
	Name() string
	Encode(Envelope) ([]byte, error)
	Decode([]byte) (Envelope, error)
}

// CodecByName returns the codec registered under name. An empty name selects JSON.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "msgpack":
		return NewMsgpackCodec(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// JSONCodec is human-readable and handy while debugging a session.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

// Encode converts an Envelope into a JSON byte slice.
func (JSONCodec) Encode(env Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, NewProtocolError(ErrorCodeSerializationFailed, "failed to encode envelope", err)
	}
	return data, nil
}

// Decode converts a JSON byte slice back into a validated Envelope.
func (JSONCodec) Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, NewProtocolError(ErrorCodeDeserializationFailed, "failed to decode envelope", err)
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// MsgpackCodec is the compact binary encoding used on datagram transports.
type MsgpackCodec struct {
	handle *codec.MsgpackHandle
}

// NewMsgpackCodec creates a msgpack codec.
func NewMsgpackCodec() *MsgpackCodec {
	return &MsgpackCodec{handle: &codec.MsgpackHandle{}}
}

func (c *MsgpackCodec) Name() string { return "msgpack" }

// Encode converts an Envelope into msgpack bytes.
func (c *MsgpackCodec) Encode(env Envelope) ([]byte, error) {
	var out []byte
	if err := codec.NewEncoderBytes(&out, c.handle).Encode(env); err != nil {
		return nil, NewProtocolError(ErrorCodeSerializationFailed, "failed to encode envelope", err)
	}
	return out, nil
}

// Decode converts msgpack bytes back into a validated Envelope.
func (c *MsgpackCodec) Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := codec.NewDecoderBytes(data, c.handle).Decode(&env); err != nil {
		return Envelope{}, NewProtocolError(ErrorCodeDeserializationFailed, "failed to decode envelope", err)
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}
