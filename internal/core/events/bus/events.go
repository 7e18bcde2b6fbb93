package bus

import "github.com/zeusync/multinet/internal/core/protocol"

// Session event types.
const (
	PeerConnected    = "peer.connected"
	PeerDisconnected = "peer.disconnected"
	EntitySpawned    = "entity.spawned"
	EntityDespawned  = "entity.despawned"
	ClockResynced    = "clock.resynced"
)

// PeerEvent is the payload of PeerConnected and PeerDisconnected.
type PeerEvent struct {
	Peer protocol.PeerID
	Err  error
}

// EntityEvent is the payload of EntitySpawned and EntityDespawned.
type EntityEvent struct {
	Entity protocol.EntityID
	Owner  protocol.PeerID
}

// ResyncEvent is the payload of ClockResynced.
type ResyncEvent struct {
	PreviousClientTime float64
	ServerTime         float64
}

// SubscribeTyped registers a handler receiving only payloads of type T. Events
// carrying another payload type are ignored.
func SubscribeTyped[T any](b EventBus, eventType string, handler func(T) error) (Subscription, error) {
	return b.Subscribe(eventType, func(event Event) error {
		payload, ok := event.Data().(T)
		if !ok {
			return nil
		}
		return handler(payload)
	})
}
