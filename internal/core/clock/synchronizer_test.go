package clock

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	broadcasts []Snapshot
	resyncs    []float64
}

func (o *recordingObserver) OnBroadcast(s Snapshot) { o.broadcasts = append(o.broadcasts, s) }
func (o *recordingObserver) OnResync(previous float64, _ Snapshot) {
	o.resyncs = append(o.resyncs, previous)
}

func TestAuthoritativeBroadcastsEveryInterval(t *testing.T) {
	var sent []float64
	s := NewSynchronizer(RoleAuthoritative, DefaultConfig(), BroadcasterFunc(func(snapshot Snapshot) error {
		sent = append(sent, snapshot.ServerTimeMs)
		return nil
	}), nil)

	for i := 0; i < 25; i++ {
		s.Tick(10)
	}

	assert.Equal(t, []float64{100, 200}, sent)
	assert.Equal(t, 250.0, s.ServerTime())
	assert.Equal(t, s.ServerTime(), s.ClientTime())
}

func TestAuthoritativeBroadcastFailureIsNotFatal(t *testing.T) {
	calls := 0
	s := NewSynchronizer(RoleAuthoritative, DefaultConfig(), BroadcasterFunc(func(Snapshot) error {
		calls++
		return errors.New("link down")
	}), nil)
	observer := &recordingObserver{}
	s.AddObserver(observer)

	for i := 0; i < 4; i++ {
		s.Tick(60)
	}

	assert.Equal(t, 2, calls)
	assert.Len(t, observer.broadcasts, 2)
	assert.Equal(t, 240.0, s.ServerTime())
}

func TestFollowerResyncsAboveThreshold(t *testing.T) {
	s := NewSynchronizer(RoleFollower, DefaultConfig(), nil, nil)
	observer := &recordingObserver{}
	s.AddObserver(observer)
	s.Tick(16)

	require.True(t, s.Receive(Snapshot{ServerTimeMs: 5_000}))
	assert.Equal(t, 5_000.0, s.ClientTime())
	assert.Equal(t, uint64(1), s.Resyncs())
	assert.Equal(t, []float64{16}, observer.resyncs)
}

func TestFollowerIgnoresSmallDrift(t *testing.T) {
	s := NewSynchronizer(RoleFollower, DefaultConfig(), nil, nil)
	s.Tick(500)

	assert.False(t, s.Receive(Snapshot{ServerTimeMs: 1_500}))
	assert.False(t, s.Receive(Snapshot{ServerTimeMs: 0}))
	assert.Equal(t, 500.0, s.ClientTime())
	assert.Equal(t, uint64(0), s.Resyncs())
}

func TestFollowerResyncsWhenAhead(t *testing.T) {
	s := NewSynchronizer(RoleFollower, DefaultConfig(), nil, nil)
	s.Tick(3_000)

	require.True(t, s.Receive(Snapshot{ServerTimeMs: 1_000}))
	assert.Equal(t, 1_000.0, s.ClientTime())
}

func TestFollowerServerTimeIsLastReceived(t *testing.T) {
	s := NewSynchronizer(RoleFollower, DefaultConfig(), nil, nil)
	assert.Equal(t, 0.0, s.ServerTime())

	s.Receive(Snapshot{ServerTimeMs: 300})
	s.Tick(50)
	assert.Equal(t, 300.0, s.ServerTime())
	assert.Equal(t, 300.0, s.LastReceived())
}

func TestAuthoritativeIgnoresReceive(t *testing.T) {
	s := NewSynchronizer(RoleAuthoritative, DefaultConfig(), nil, nil)
	s.Tick(20)

	assert.False(t, s.Receive(Snapshot{ServerTimeMs: 90_000}))
	assert.Equal(t, 20.0, s.ServerTime())
}

func TestConfigDefaultsFillZeroes(t *testing.T) {
	s := NewSynchronizer(RoleFollower, Config{}, nil, nil)
	assert.Equal(t, DefaultConfig(), s.Config())
	assert.Equal(t, "follower", s.Role().String())
}
