package protocol

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codecs(t *testing.T) []Codec {
	t.Helper()
	var out []Codec
	for _, name := range []string{"json", "msgpack"} {
		c, err := CodecByName(name)
		require.NoError(t, err)
		require.Equal(t, name, c.Name())
		out = append(out, c)
	}
	return out
}

func TestCodecRoundTrip(t *testing.T) {
	envelopes := []Envelope{
		NewClockEnvelope(1234.5),
		NewValueEnvelope(ValueUpdate{
			Entity:      "ship-1",
			Variable:    VariableID("position"),
			Kind:        2,
			TimestampMs: 100,
			Components:  []float64{1.5, -2.25},
		}),
		NewSpawnEnvelope("ship-1", "peer-a"),
		NewDespawnEnvelope("ship-1", ""),
	}

	for _, c := range codecs(t) {
		for _, env := range envelopes {
			t.Run(fmt.Sprintf("%s/%s", c.Name(), env.Type), func(t *testing.T) {
				data, err := c.Encode(env)
				require.NoError(t, err)

				decoded, err := c.Decode(data)
				require.NoError(t, err)
				assert.Equal(t, env, decoded)
			})
		}
	}
}

func TestCodecRejectsInvalidEnvelopes(t *testing.T) {
	for _, c := range codecs(t) {
		data, err := c.Encode(Envelope{Type: TypeValue})
		require.NoError(t, err)

		_, err = c.Decode(data)
		assert.ErrorIs(t, err, ErrInvalidMessage, c.Name())

		data, err = c.Encode(Envelope{Type: "chat"})
		require.NoError(t, err)
		_, err = c.Decode(data)
		assert.ErrorIs(t, err, ErrUnknownMessageType, c.Name())
	}
}

func TestCodecGarbage(t *testing.T) {
	for _, c := range codecs(t) {
		_, err := c.Decode([]byte{0xc1, 0xff, '{'})
		require.Error(t, err)
		assert.Equal(t, ErrorCodeDeserializationFailed, GetErrorCode(err), c.Name())
	}
}

func TestCodecByNameUnknown(t *testing.T) {
	c, err := CodecByName("")
	require.NoError(t, err)
	assert.Equal(t, "json", c.Name())

	_, err = CodecByName("protobuf")
	assert.ErrorIs(t, err, ErrUnknownCodec)
}

func TestEnvelopeChannel(t *testing.T) {
	assert.Equal(t, ChannelUnreliable, NewValueEnvelope(ValueUpdate{}).Channel())
	assert.Equal(t, ChannelReliable, NewClockEnvelope(0).Channel())
	assert.Equal(t, ChannelReliable, NewSpawnEnvelope("e", "").Channel())
	assert.Equal(t, ChannelReliable, NewDespawnEnvelope("e", "").Channel())
}

func TestEnvelopeValidate(t *testing.T) {
	tests := []struct {
		name string
		env  Envelope
		want error
	}{
		{name: "clock", env: NewClockEnvelope(0)},
		{name: "clock without payload", env: Envelope{Type: TypeClock}, want: ErrInvalidMessage},
		{name: "value without entity", env: NewValueEnvelope(ValueUpdate{Components: []float64{1}}), want: ErrInvalidMessage},
		{name: "value without components", env: NewValueEnvelope(ValueUpdate{Entity: "e"}), want: ErrInvalidMessage},
		{name: "spawn without entity", env: NewSpawnEnvelope("", ""), want: ErrInvalidMessage},
		{name: "unknown", env: Envelope{Type: "nope"}, want: ErrUnknownMessageType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.env.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestVariableIDIsStable(t *testing.T) {
	assert.Equal(t, VariableID("position"), VariableID("position"))
	assert.NotEqual(t, VariableID("position"), VariableID("health"))
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, ErrorCodeSuccess, GetErrorCode(nil))
	assert.Equal(t, ErrorCodeSendQueueFull, GetErrorCode(fmt.Errorf("peer a: %w", ErrSendQueueFull)))
	assert.Equal(t, ErrorCodeDialFailed, GetErrorCode(NewProtocolError(ErrorCodeDialFailed, "dial", errors.New("refused"))))
	assert.Equal(t, ErrorCodeUnknownError, GetErrorCode(errors.New("other")))

	wrapped := WrapError(ErrConnectionClosed, "write")
	assert.Equal(t, ErrorCodeConnectionClosed, wrapped.Code)
	assert.True(t, wrapped.IsFatal())
	assert.ErrorIs(t, wrapped, ErrConnectionClosed)
	assert.True(t, NewProtocolError(ErrorCodeSendQueueFull, "full", nil).IsTemporary())
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{Host: "127.0.0.1", Port: 7000}.WithDefaults()
	assert.Equal(t, "127.0.0.1:7000", cfg.Address())
	assert.Equal(t, DefaultConfig().SendQueueSize, cfg.SendQueueSize)
	assert.Equal(t, DefaultConfig().WriteTimeout, cfg.WriteTimeout)
}
