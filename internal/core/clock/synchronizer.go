package clock

import (
	"math"
	"sync/atomic"

	"github.com/zeusync/multinet/internal/core/observability/log"
)

const (
	// DefaultUpdateInterval is how often, in milliseconds, the authoritative
	// peer broadcasts its time.
	DefaultUpdateInterval = 100.0

	// DefaultResyncThreshold is the drift, in milliseconds, above which a
	// follower snaps its estimate to the received server time.
	DefaultResyncThreshold = 1000.0
)

// Role is fixed for a session.
type Role uint8

const (
	RoleFollower Role = iota
	RoleAuthoritative
)

func (r Role) String() string {
	if r == RoleAuthoritative {
		return "authoritative"
	}
	return "follower"
}

// Snapshot is the clock broadcast payload.
type Snapshot struct {
	ServerTimeMs float64
}

// Broadcaster delivers snapshots to every follower on a reliable channel.
type Broadcaster interface {
	BroadcastClock(Snapshot) error
}

// BroadcasterFunc adapts a function to Broadcaster.
type BroadcasterFunc func(Snapshot) error

func (f BroadcasterFunc) BroadcastClock(s Snapshot) error { return f(s) }

// Observer is notified about clock protocol events.
type Observer interface {
	OnBroadcast(Snapshot)
	OnResync(previousClientTime float64, snapshot Snapshot)
}

// Config holds the synchronizer settings in milliseconds.
type Config struct {
	UpdateInterval  float64
	ResyncThreshold float64
}

// DefaultConfig returns the stock intervals.
func DefaultConfig() Config {
	return Config{
		UpdateInterval:  DefaultUpdateInterval,
		ResyncThreshold: DefaultResyncThreshold,
	}
}

// Synchronizer keeps the session timeline. The authoritative peer accumulates
// serverTime and periodically broadcasts it; followers advance clientTime
// locally and hard-resync when drift exceeds the threshold. Small drift is
// left alone, the interpolation offset absorbs it.
//
// Tick and Receive must be called from the single tick goroutine.
type Synchronizer struct {
	role   Role
	config Config

	serverTime     float64
	clientTime     float64
	sinceBroadcast float64

	lastReceived atomic.Uint64 // float64 bits, readable from any goroutine
	resyncs      atomic.Uint64

	broadcaster Broadcaster
	observers   []Observer
	logger      log.Log
}

// NewSynchronizer creates a synchronizer. The broadcaster may be nil on followers.
func NewSynchronizer(role Role, config Config, broadcaster Broadcaster, logger log.Log) *Synchronizer {
	if config.UpdateInterval <= 0 {
		config.UpdateInterval = DefaultUpdateInterval
	}
	if config.ResyncThreshold <= 0 {
		config.ResyncThreshold = DefaultResyncThreshold
	}
	if logger == nil {
		logger = log.NewNop()
	}

	return &Synchronizer{
		role:        role,
		config:      config,
		broadcaster: broadcaster,
		logger:      logger.With(log.String("component", "clock"), log.String("role", role.String())),
	}
}

// AddObserver registers an observer. Not safe to call concurrently with Tick.
func (s *Synchronizer) AddObserver(o Observer) {
	s.observers = append(s.observers, o)
}

// Tick advances the local timeline by deltaMs.
func (s *Synchronizer) Tick(deltaMs float64) {
	if s.role != RoleAuthoritative {
		s.clientTime += deltaMs
		return
	}

	s.serverTime += deltaMs
	s.sinceBroadcast += deltaMs
	if s.sinceBroadcast < s.config.UpdateInterval {
		return
	}
	s.sinceBroadcast = 0

	snapshot := Snapshot{ServerTimeMs: s.serverTime}
	if s.broadcaster != nil {
		if err := s.broadcaster.BroadcastClock(snapshot); err != nil {
			// the next interval carries a fresh snapshot
			s.logger.Warn("Clock broadcast failed",
				log.Float64("server_time", snapshot.ServerTimeMs), log.Error(err))
		}
	}
	for _, o := range s.observers {
		o.OnBroadcast(snapshot)
	}
}

// Receive handles a snapshot from the authoritative peer. Returns true when it
// caused a hard resync. Ignored on the authoritative peer.
func (s *Synchronizer) Receive(snapshot Snapshot) bool {
	if s.role == RoleAuthoritative {
		return false
	}
	s.lastReceived.Store(math.Float64bits(snapshot.ServerTimeMs))

	drift := snapshot.ServerTimeMs - s.clientTime
	if math.Abs(drift) <= s.config.ResyncThreshold {
		return false
	}

	previous := s.clientTime
	s.clientTime = snapshot.ServerTimeMs
	s.resyncs.Add(1)

	s.logger.Warn("Clock resynced",
		log.Float64("previous_client_time", previous),
		log.Float64("server_time", snapshot.ServerTimeMs),
		log.Float64("drift", drift))
	for _, o := range s.observers {
		o.OnResync(previous, snapshot)
	}
	return true
}

// Role returns the session role.
func (s *Synchronizer) Role() Role {
	return s.role
}

// ServerTime is the authoritative elapsed time. On followers it is the last
// received broadcast.
func (s *Synchronizer) ServerTime() float64 {
	if s.role == RoleAuthoritative {
		return s.serverTime
	}
	return s.LastReceived()
}

// ClientTime is the follower's local estimate. On the authoritative peer the
// two timelines coincide.
func (s *Synchronizer) ClientTime() float64 {
	if s.role == RoleAuthoritative {
		return s.serverTime
	}
	return s.clientTime
}

// LastReceived returns the server time of the newest received snapshot.
func (s *Synchronizer) LastReceived() float64 {
	return math.Float64frombits(s.lastReceived.Load())
}

// Resyncs counts hard resyncs since creation.
func (s *Synchronizer) Resyncs() uint64 {
	return s.resyncs.Load()
}

// Config returns the active settings.
func (s *Synchronizer) Config() Config {
	return s.config
}
