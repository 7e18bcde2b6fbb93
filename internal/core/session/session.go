// Package session ties the clock, the replicated variables and a transport
// together. All state mutation happens in Tick, on one goroutine; transports
// only enqueue.
package session

import (
	"sort"
	"sync"

	"github.com/zeusync/multinet/internal/core/clock"
	"github.com/zeusync/multinet/internal/core/events/bus"
	"github.com/zeusync/multinet/internal/core/lagcomp"
	"github.com/zeusync/multinet/internal/core/observability/log"
	"github.com/zeusync/multinet/internal/core/observability/metrics"
	"github.com/zeusync/multinet/internal/core/protocol"
	"github.com/zeusync/multinet/pkg/sequence"
)

// DefaultQueueLimit caps inbound messages waiting for the next tick.
const DefaultQueueLimit = 4096

// Transport is the outbound half a session needs. protocol.Server satisfies it.
type Transport interface {
	Broadcast(env protocol.Envelope) error
	Send(peer protocol.PeerID, env protocol.Envelope) error
}

// Config configures a Session.
type Config struct {
	Role                clock.Role
	Clock               clock.Config
	InterpolationOffset float64
	QueueLimit          int
}

// DefaultConfig returns a follower configuration with stock timings.
func DefaultConfig() Config {
	return Config{
		Role:                clock.RoleFollower,
		Clock:               clock.DefaultConfig(),
		InterpolationOffset: lagcomp.DefaultInterpolationOffset,
		QueueLimit:          DefaultQueueLimit,
	}
}

type inboundKind uint8

const (
	inboundConnect inboundKind = iota
	inboundMessage
	inboundDisconnect
)

type inbound struct {
	kind inboundKind
	peer protocol.PeerID
	env  protocol.Envelope
	err  error
}

var (
	_ protocol.Handler = (*Session)(nil)
	_ clock.Observer   = (*Session)(nil)
)

// Session is one peer's view of a replication session.
type Session struct {
	config  Config
	clock   *clock.Synchronizer
	queue   *sequence.Queue[inbound]
	bus     bus.EventBus
	metrics *metrics.Metrics
	logger  log.Log

	transport Transport

	// guards peers, spawned and the registry map shape for readers outside the tick
	mu       sync.RWMutex
	peers    map[protocol.PeerID]struct{}
	spawned  map[protocol.EntityID]protocol.PeerID
	registry *registry
}

// New creates a session. Metrics may be nil; a nil logger discards output.
func New(config Config, eventBus bus.EventBus, m *metrics.Metrics, logger log.Log) *Session {
	if config.QueueLimit <= 0 {
		config.QueueLimit = DefaultQueueLimit
	}
	if config.InterpolationOffset <= 0 {
		config.InterpolationOffset = lagcomp.DefaultInterpolationOffset
	}
	if eventBus == nil {
		eventBus = bus.New()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	if logger == nil {
		logger = log.NewNop()
	}

	s := &Session{
		config:   config,
		queue:    sequence.NewQueue[inbound](config.QueueLimit),
		bus:      eventBus,
		metrics:  m,
		logger:   logger.With(log.String("component", "session"), log.String("role", config.Role.String())),
		peers:    make(map[protocol.PeerID]struct{}),
		spawned:  make(map[protocol.EntityID]protocol.PeerID),
		registry: newRegistry(),
	}

	s.clock = clock.NewSynchronizer(config.Role, config.Clock, clock.BroadcasterFunc(s.broadcastClock), logger)
	s.clock.AddObserver(s)

	// buffers are reset by event, whoever raised it
	_, _ = bus.SubscribeTyped(s.bus, bus.EntityDespawned, func(e bus.EntityEvent) error {
		s.clearEntity(e.Entity)
		return nil
	})
	_, _ = bus.SubscribeTyped(s.bus, bus.PeerDisconnected, func(e bus.PeerEvent) error {
		s.clearDisconnected(e.Peer)
		return nil
	})

	return s
}

// SetTransport attaches the outbound transport. Call before the first Tick.
func (s *Session) SetTransport(t Transport) {
	s.transport = t
}

// Role returns the fixed session role.
func (s *Session) Role() clock.Role {
	return s.config.Role
}

// Clock returns the session clock. Variables created by NewVariable read from it.
func (s *Session) Clock() *clock.Synchronizer {
	return s.clock
}

// Bus returns the session event bus.
func (s *Session) Bus() bus.EventBus {
	return s.bus
}

// OnConnect implements protocol.Handler.
func (s *Session) OnConnect(peer protocol.PeerID) {
	s.enqueue(inbound{kind: inboundConnect, peer: peer})
}

// OnMessage implements protocol.Handler.
func (s *Session) OnMessage(peer protocol.PeerID, env protocol.Envelope) {
	s.enqueue(inbound{kind: inboundMessage, peer: peer, env: env})
}

// OnDisconnect implements protocol.Handler.
func (s *Session) OnDisconnect(peer protocol.PeerID, err error) {
	s.enqueue(inbound{kind: inboundDisconnect, peer: peer, err: err})
}

func (s *Session) enqueue(msg inbound) {
	if !s.queue.Push(msg) {
		s.metrics.DroppedMessages.WithLabelValues("queue_full").Inc()
		s.logger.Warn("Inbound queue full, dropping message", log.String("peer_id", string(msg.peer)))
	}
}

// Tick runs one fixed step: apply everything received since the previous
// tick, advance the clock, then publish authoritative samples.
func (s *Session) Tick(deltaMs float64) {
	s.queue.Drain(s.apply)
	s.clock.Tick(deltaMs)
	if s.config.Role == clock.RoleAuthoritative {
		s.flush()
	}
}

func (s *Session) apply(msg inbound) {
	switch msg.kind {
	case inboundConnect:
		s.handleConnect(msg.peer)
	case inboundDisconnect:
		s.handleDisconnect(msg.peer, msg.err)
	case inboundMessage:
		s.metrics.InboundMessages.WithLabelValues(string(msg.env.Type)).Inc()
		s.handleMessage(msg.peer, msg.env)
	}
}

func (s *Session) handleConnect(peer protocol.PeerID) {
	s.mu.Lock()
	s.peers[peer] = struct{}{}
	count := len(s.peers)
	s.mu.Unlock()

	s.metrics.ConnectedPeers.Set(float64(count))
	s.logger.Info("Peer connected", log.String("peer_id", string(peer)))
	s.publish(bus.PeerConnected, bus.PeerEvent{Peer: peer})

	if s.config.Role != clock.RoleAuthoritative || s.transport == nil {
		return
	}

	// late joiners get the timeline and the current entity set right away
	if err := s.transport.Send(peer, protocol.NewClockEnvelope(s.clock.ServerTime())); err != nil {
		s.logger.Warn("Failed to send clock to new peer", log.String("peer_id", string(peer)), log.Error(err))
	}
	for _, entity := range s.SpawnedEntities() {
		owner, _ := s.Owner(entity)
		if err := s.transport.Send(peer, protocol.NewSpawnEnvelope(entity, owner)); err != nil {
			s.logger.Warn("Failed to send spawn to new peer",
				log.String("peer_id", string(peer)), log.String("entity", string(entity)), log.Error(err))
		}
	}
}

func (s *Session) handleDisconnect(peer protocol.PeerID, cause error) {
	s.mu.Lock()
	delete(s.peers, peer)
	count := len(s.peers)
	var owned []protocol.EntityID
	for entity, owner := range s.spawned {
		if owner == peer {
			owned = append(owned, entity)
		}
	}
	s.mu.Unlock()

	s.metrics.ConnectedPeers.Set(float64(count))
	s.logger.Info("Peer disconnected", log.String("peer_id", string(peer)), log.Error(cause))

	if s.config.Role == clock.RoleAuthoritative {
		sort.Slice(owned, func(i, j int) bool { return owned[i] < owned[j] })
		for _, entity := range owned {
			_ = s.RemoveSpawned(entity)
		}
	}
	s.publish(bus.PeerDisconnected, bus.PeerEvent{Peer: peer, Err: cause})
}

func (s *Session) handleMessage(peer protocol.PeerID, env protocol.Envelope) {
	if s.config.Role == clock.RoleAuthoritative {
		// followers have nothing to tell the authority yet
		s.metrics.DroppedMessages.WithLabelValues("from_follower").Inc()
		return
	}

	switch env.Type {
	case protocol.TypeClock:
		s.clock.Receive(clock.Snapshot{ServerTimeMs: env.Clock.ServerTimeMs})
	case protocol.TypeValue:
		s.applyValue(env.Value)
	case protocol.TypeSpawn:
		s.applySpawn(env.Entity)
	case protocol.TypeDespawn:
		s.applyDespawn(env.Entity)
	default:
		s.metrics.DroppedMessages.WithLabelValues("unknown_type").Inc()
		s.logger.Debug("Unknown message type", log.String("peer_id", string(peer)), log.String("type", string(env.Type)))
	}
}

func (s *Session) applyValue(update *protocol.ValueUpdate) {
	s.mu.RLock()
	variable, ok := s.registry.lookup(update.Entity, update.Variable)
	s.mu.RUnlock()
	if !ok {
		s.metrics.DroppedMessages.WithLabelValues("unknown_variable").Inc()
		return
	}

	if err := variable.ApplyComponents(update.TimestampMs, lagcomp.Kind(update.Kind), update.Components); err != nil {
		s.metrics.DroppedMessages.WithLabelValues("bad_value").Inc()
		s.logger.Debug("Rejected value update",
			log.String("entity", string(update.Entity)), log.Uint64("variable", update.Variable), log.Error(err))
	}
}

func (s *Session) applySpawn(notice *protocol.EntityNotice) {
	s.mu.Lock()
	_, exists := s.spawned[notice.Entity]
	s.spawned[notice.Entity] = notice.Owner
	count := len(s.spawned)
	s.mu.Unlock()

	if exists {
		return
	}
	s.metrics.SpawnedEntities.Set(float64(count))
	s.publish(bus.EntitySpawned, bus.EntityEvent{Entity: notice.Entity, Owner: notice.Owner})
}

func (s *Session) applyDespawn(notice *protocol.EntityNotice) {
	s.mu.Lock()
	owner, exists := s.spawned[notice.Entity]
	delete(s.spawned, notice.Entity)
	count := len(s.spawned)
	s.mu.Unlock()

	if !exists {
		return
	}
	s.metrics.SpawnedEntities.Set(float64(count))
	s.publish(bus.EntityDespawned, bus.EntityEvent{Entity: notice.Entity, Owner: owner})
}

// AddSpawned records a spawned entity and announces it to every follower.
// Authoritative only. Spawning a known entity logs a warning and does nothing.
func (s *Session) AddSpawned(entity protocol.EntityID, owner protocol.PeerID) error {
	if s.config.Role != clock.RoleAuthoritative {
		return ErrNotAuthoritative
	}

	s.mu.Lock()
	if _, exists := s.spawned[entity]; exists {
		s.mu.Unlock()
		s.logger.Warn("Entity already spawned", log.String("entity", string(entity)))
		return nil
	}
	s.spawned[entity] = owner
	count := len(s.spawned)
	s.mu.Unlock()

	s.metrics.SpawnedEntities.Set(float64(count))
	s.publish(bus.EntitySpawned, bus.EntityEvent{Entity: entity, Owner: owner})
	return s.broadcast(protocol.NewSpawnEnvelope(entity, owner))
}

// RemoveSpawned forgets an entity, clears its buffers and announces the
// removal. Authoritative only. Unknown entities log a warning and do nothing.
func (s *Session) RemoveSpawned(entity protocol.EntityID) error {
	if s.config.Role != clock.RoleAuthoritative {
		return ErrNotAuthoritative
	}

	s.mu.Lock()
	owner, exists := s.spawned[entity]
	if !exists {
		s.mu.Unlock()
		s.logger.Warn("Entity not spawned", log.String("entity", string(entity)))
		return nil
	}
	delete(s.spawned, entity)
	count := len(s.spawned)
	s.mu.Unlock()

	s.metrics.SpawnedEntities.Set(float64(count))
	s.publish(bus.EntityDespawned, bus.EntityEvent{Entity: entity, Owner: owner})
	return s.broadcast(protocol.NewDespawnEnvelope(entity, owner))
}

// Register binds a variable to an entity under name. The name is hashed into
// the wire id, so both sides must register the same names.
func (s *Session) Register(entity protocol.EntityID, name string, v Replicated) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.add(entity, name, v)
}

// Unregister drops every variable of an entity from the registry.
func (s *Session) Unregister(entity protocol.EntityID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry.remove(entity)
}

// ConnectedPeers returns the connected peer ids in sorted order.
func (s *Session) ConnectedPeers() []protocol.PeerID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	peers := make([]protocol.PeerID, 0, len(s.peers))
	for peer := range s.peers {
		peers = append(peers, peer)
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i] < peers[j] })
	return peers
}

// SpawnedEntities returns the spawned entity ids in sorted order.
func (s *Session) SpawnedEntities() []protocol.EntityID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entities := make([]protocol.EntityID, 0, len(s.spawned))
	for entity := range s.spawned {
		entities = append(entities, entity)
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i] < entities[j] })
	return entities
}

// Owner returns the owner of a spawned entity.
func (s *Session) Owner(entity protocol.EntityID) (protocol.PeerID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owner, ok := s.spawned[entity]
	return owner, ok
}

// OnBroadcast implements clock.Observer.
func (s *Session) OnBroadcast(clock.Snapshot) {
	s.metrics.ClockBroadcasts.Inc()
}

// OnResync implements clock.Observer.
func (s *Session) OnResync(previous float64, snapshot clock.Snapshot) {
	s.metrics.ClockResyncs.Inc()
	s.publish(bus.ClockResynced, bus.ResyncEvent{PreviousClientTime: previous, ServerTime: snapshot.ServerTimeMs})
}

func (s *Session) broadcastClock(snapshot clock.Snapshot) error {
	return s.broadcast(protocol.NewClockEnvelope(snapshot.ServerTimeMs))
}

func (s *Session) broadcast(env protocol.Envelope) error {
	if s.transport == nil {
		return nil
	}
	return s.transport.Broadcast(env)
}

// flush sends the newest unsent sample of every variable.
func (s *Session) flush() {
	if s.transport == nil {
		return
	}

	var updates []protocol.ValueUpdate
	s.mu.RLock()
	s.registry.each(func(entity protocol.EntityID, id uint64, b binding) {
		timestamp, kind, components, ok := b.variable.TakePending()
		if !ok {
			return
		}
		updates = append(updates, protocol.ValueUpdate{
			Entity:      entity,
			Variable:    id,
			Kind:        uint8(kind),
			TimestampMs: timestamp,
			Components:  components,
		})
	})
	s.mu.RUnlock()

	for _, update := range updates {
		if err := s.transport.Broadcast(protocol.NewValueEnvelope(update)); err != nil {
			s.logger.Debug("Value broadcast failed", log.String("entity", string(update.Entity)), log.Error(err))
			continue
		}
		s.metrics.PublishedSamples.Inc()
	}
}

func (s *Session) clearEntity(entity protocol.EntityID) {
	s.mu.RLock()
	n := s.registry.clear(entity)
	s.mu.RUnlock()
	if n > 0 {
		s.logger.Debug("Cleared entity buffers", log.String("entity", string(entity)), log.Int("variables", n))
	}
}

// clearDisconnected resets what the departed peer fed. A follower only ever
// hears from the authority, so losing it invalidates everything.
func (s *Session) clearDisconnected(peer protocol.PeerID) {
	if s.config.Role == clock.RoleAuthoritative {
		return
	}
	s.mu.RLock()
	n := s.registry.clearAll()
	s.mu.RUnlock()
	s.logger.Debug("Cleared all buffers after disconnect", log.String("peer_id", string(peer)), log.Int("variables", n))
}

func (s *Session) publish(eventType string, payload any) {
	if err := s.bus.Publish(bus.NewEvent(eventType, "session", payload)); err != nil {
		s.logger.Warn("Event handler failed", log.String("event", eventType), log.Error(err))
	}
}

// NewVariable creates a variable on the session clock and registers it.
// Reads are counted by mode in the session metrics.
func NewVariable[V lagcomp.Value[V]](s *Session, entity protocol.EntityID, name string, defaultValue V) (*lagcomp.Variable[V], error) {
	reads := s.metrics.ValueReads
	v := lagcomp.NewVariable[V](s.clock, defaultValue,
		lagcomp.WithInterpolationOffset(s.config.InterpolationOffset),
		lagcomp.WithReadObserver(func(mode lagcomp.Mode) {
			reads.WithLabelValues(mode.String()).Inc()
		}),
	)
	if err := s.Register(entity, name, v); err != nil {
		return nil, err
	}
	return v, nil
}
