package bus

import "time"

// EventBus fans session events out to in-process subscribers. Publish runs
// every handler on the caller's goroutine in subscription order and returns
// the combined handler errors. Counters are kept only while an Observer is
// attached.
type EventBus interface {
	Publish(event Event) error
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe(nil) does nothing.
	Unsubscribe(sub Subscription) error

	AddObserver(obs Observer)
	RemoveObserver(obs Observer)
	GetMetrics() Metrics
}

// Event is what travels on the bus. Implementations must not change after
// publication.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
}

// EventHandler handles one delivered event.
type EventHandler func(event Event) error

// Subscription binds a handler to one event type until cancelled.
type Subscription interface {
	ID() string
	EventType() string
	IsActive() bool
	// Cancel is idempotent.
	Cancel() error
}

// Observer sees every publication. Callbacks run inline with Publish.
type Observer interface {
	OnPublish(eventType string, event Event)
	OnDelivered(eventType string, handlers int, err error, duration time.Duration)
}

// Metrics counts bus activity since creation.
type Metrics struct {
	Published         uint64
	DeliveredHandlers uint64
	Errors            uint64
	SubscribersActive uint64
}
