package protocol

import (
	"github.com/cespare/xxhash/v2"
)

// PeerID identifies a connected peer. Transports assign it on accept.
type PeerID string

// EntityID identifies a replicated entity across peers.
type EntityID string

// Channel selects the delivery guarantee of a send.
type Channel uint8

const (
	// ChannelReliable is ordered and acknowledged: clock snapshots and entity notices.
	ChannelReliable Channel = iota
	// ChannelUnreliable may drop or reorder: value updates.
	ChannelUnreliable
)

func (c Channel) String() string {
	if c == ChannelUnreliable {
		return "unreliable"
	}
	return "reliable"
}

// MessageType routes an envelope.
type MessageType string

const (
	TypeClock   MessageType = "clock"
	TypeValue   MessageType = "value"
	TypeSpawn   MessageType = "spawn"
	TypeDespawn MessageType = "despawn"
)

// VariableID hashes a variable name into its wire id.
func VariableID(name string) uint64 {
	return xxhash.Sum64String(name)
}
