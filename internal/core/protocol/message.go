package protocol

import (
	"fmt"
)

// ClockSnapshot carries the authoritative elapsed time in milliseconds.
type ClockSnapshot struct {
	ServerTimeMs float64 `json:"server_time_ms" codec:"server_time_ms"`
}

// ValueUpdate carries one sample of one replicated variable. TimestampMs is
// the server time at which the authoritative peer recorded it.
type ValueUpdate struct {
	Entity      EntityID  `json:"entity" codec:"entity"`
	Variable    uint64    `json:"variable" codec:"variable"`
	Kind        uint8     `json:"kind" codec:"kind"`
	TimestampMs float64   `json:"timestamp_ms" codec:"timestamp_ms"`
	Components  []float64 `json:"components" codec:"components"`
}

// EntityNotice announces a spawn or despawn.
type EntityNotice struct {
	Entity EntityID `json:"entity" codec:"entity"`
	Owner  PeerID   `json:"owner,omitempty" codec:"owner,omitempty"`
}

// Envelope is the single wire message. Exactly one payload matches Type.
type Envelope struct {
	Type   MessageType    `json:"type" codec:"type"`
	Clock  *ClockSnapshot `json:"clock,omitempty" codec:"clock,omitempty"`
	Value  *ValueUpdate   `json:"value,omitempty" codec:"value,omitempty"`
	Entity *EntityNotice  `json:"entity,omitempty" codec:"entity,omitempty"`
}

// NewClockEnvelope wraps a clock snapshot.
func NewClockEnvelope(serverTimeMs float64) Envelope {
	return Envelope{Type: TypeClock, Clock: &ClockSnapshot{ServerTimeMs: serverTimeMs}}
}

// NewValueEnvelope wraps a value update.
func NewValueEnvelope(update ValueUpdate) Envelope {
	return Envelope{Type: TypeValue, Value: &update}
}

// NewSpawnEnvelope announces a spawned entity.
func NewSpawnEnvelope(entity EntityID, owner PeerID) Envelope {
	return Envelope{Type: TypeSpawn, Entity: &EntityNotice{Entity: entity, Owner: owner}}
}

// NewDespawnEnvelope announces a removed entity.
func NewDespawnEnvelope(entity EntityID, owner PeerID) Envelope {
	return Envelope{Type: TypeDespawn, Entity: &EntityNotice{Entity: entity, Owner: owner}}
}

// Channel returns the channel the envelope travels on.
func (e Envelope) Channel() Channel {
	if e.Type == TypeValue {
		return ChannelUnreliable
	}
	return ChannelReliable
}

// Validate checks that the payload matches the type.
func (e Envelope) Validate() error {
	switch e.Type {
	case TypeClock:
		if e.Clock == nil {
			return fmt.Errorf("%w: clock envelope without snapshot", ErrInvalidMessage)
		}
	case TypeValue:
		if e.Value == nil {
			return fmt.Errorf("%w: value envelope without update", ErrInvalidMessage)
		}
		if e.Value.Entity == "" {
			return fmt.Errorf("%w: value update without entity", ErrInvalidMessage)
		}
		if len(e.Value.Components) == 0 {
			return fmt.Errorf("%w: value update without components", ErrInvalidMessage)
		}
	case TypeSpawn, TypeDespawn:
		if e.Entity == nil || e.Entity.Entity == "" {
			return fmt.Errorf("%w: %s envelope without entity", ErrInvalidMessage, e.Type)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessageType, e.Type)
	}
	return nil
}
