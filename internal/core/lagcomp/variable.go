package lagcomp

import (
	"github.com/zeusync/multinet/internal/core/clock"
)

// DefaultInterpolationOffset is how far, in milliseconds, followers render
// behind their clock estimate.
const DefaultInterpolationOffset = 30.0

const authoritativeHistory = 2

// TimeSource is the shared session clock a variable reads from.
// *clock.Synchronizer satisfies it.
type TimeSource interface {
	Role() clock.Role
	ServerTime() float64
	ClientTime() float64
}

// Mode reports which branch produced a value.
type Mode uint8

const (
	ModeDefault     Mode = iota // buffer empty
	ModeRaw                     // authoritative newest sample
	ModeHold                    // single sample held
	ModeClamp                   // render time before the oldest sample
	ModeInterpolate             // render time inside the bracket
	ModeExtrapolate             // render time past the newest sample
)

func (m Mode) String() string {
	switch m {
	case ModeDefault:
		return "default"
	case ModeRaw:
		return "raw"
	case ModeHold:
		return "hold"
	case ModeClamp:
		return "clamp"
	case ModeInterpolate:
		return "interpolate"
	case ModeExtrapolate:
		return "extrapolate"
	default:
		return "unknown"
	}
}

// State of a variable's buffer.
type State uint8

const (
	StateUninitialized State = iota
	StateBuffered
)

// Option configures a Variable.
type Option func(*options)

type options struct {
	offset  float64
	observe func(Mode)
}

// WithInterpolationOffset overrides DefaultInterpolationOffset.
func WithInterpolationOffset(ms float64) Option {
	return func(o *options) { o.offset = ms }
}

// WithReadObserver registers a callback invoked with the mode of every read.
func WithReadObserver(fn func(Mode)) Option {
	return func(o *options) { o.observe = fn }
}

// Variable is one replicated value. On the authoritative peer it exposes the
// ground truth; on followers it reconstructs a smooth signal from the buffered
// samples at render time = client time - interpolation offset.
//
// A Variable belongs to the tick goroutine that drives its TimeSource; it does
// no locking of its own.
type Variable[V Value[V]] struct {
	defaultValue V
	role         clock.Role
	offset       float64
	time         TimeSource
	buffer       *Buffer[V]
	observe      func(Mode)

	pending    Sample[V]
	hasPending bool
}

// NewVariable creates a variable bound to the session clock. The role is
// taken from the clock and fixed for the variable's lifetime.
func NewVariable[V Value[V]](time TimeSource, defaultValue V, opts ...Option) *Variable[V] {
	o := options{offset: DefaultInterpolationOffset}
	for _, opt := range opts {
		opt(&o)
	}

	return &Variable[V]{
		defaultValue: defaultValue,
		role:         time.Role(),
		offset:       o.offset,
		time:         time,
		buffer:       NewBuffer[V](),
		observe:      o.observe,
	}
}

// Value returns the value to display now. It never fails.
func (v *Variable[V]) Value() V {
	value, mode := v.ValueWithMode()
	if v.observe != nil {
		v.observe(mode)
	}
	return value
}

// ValueWithMode is Value plus the branch that produced it.
func (v *Variable[V]) ValueWithMode() (V, Mode) {
	if v.buffer.Len() == 0 {
		return v.defaultValue, ModeDefault
	}

	if v.role == clock.RoleAuthoritative {
		newest, _ := v.buffer.Newest()
		return newest.Value, ModeRaw
	}

	renderTime := v.RenderTime()
	v.buffer.EvictBefore(renderTime)

	from, to, ok := v.buffer.Bracket()
	if !ok {
		only, _ := v.buffer.Oldest()
		return only.Value, ModeHold
	}

	switch {
	case renderTime < from.Timestamp:
		return from.Value, ModeClamp
	case renderTime <= to.Timestamp:
		return Interpolate(from, to, renderTime), ModeInterpolate
	default:
		// eviction leaves exactly two samples whenever render time is past the second
		return Extrapolate(from, to, renderTime), ModeExtrapolate
	}
}

// RenderTime is the point on the authoritative timeline a follower displays.
func (v *Variable[V]) RenderTime() float64 {
	return v.time.ClientTime() - v.offset
}

// Update records a sample stamped with the given authoritative time. Followers
// pass the server time carried by the network message, never their own clock.
func (v *Variable[V]) Update(timestamp float64, value V) {
	v.buffer.Insert(timestamp, value)
	if v.role == clock.RoleAuthoritative {
		// reads only ever see the newest sample here
		v.buffer.KeepNewest(authoritativeHistory)
		v.pending = Sample[V]{Timestamp: timestamp, Value: value}
		v.hasPending = true
	}
}

// Set records a new ground-truth value stamped with the current server time.
// Only meaningful on the authoritative peer.
func (v *Variable[V]) Set(value V) Sample[V] {
	s := Sample[V]{Timestamp: v.time.ServerTime(), Value: value}
	v.Update(s.Timestamp, s.Value)
	return s
}

// ApplyComponents decodes a wire value and records it.
func (v *Variable[V]) ApplyComponents(timestamp float64, kind Kind, components []float64) error {
	var zero V
	if kind != zero.Kind() {
		return ErrKindMismatch
	}
	value, err := zero.FromComponents(components)
	if err != nil {
		return err
	}
	v.Update(timestamp, value)
	return nil
}

// TakePending returns the newest authoritative sample not yet handed out for
// replication, in wire form.
func (v *Variable[V]) TakePending() (timestamp float64, kind Kind, components []float64, ok bool) {
	if !v.hasPending {
		return 0, 0, nil, false
	}
	v.hasPending = false
	return v.pending.Timestamp, v.pending.Value.Kind(), v.pending.Value.Components(), true
}

// ClearBuffer drops every sample and returns the variable to StateUninitialized.
func (v *Variable[V]) ClearBuffer() {
	v.buffer.Clear()
	v.hasPending = false
}

// State reports whether any sample is buffered.
func (v *Variable[V]) State() State {
	if v.buffer.Len() == 0 {
		return StateUninitialized
	}
	return StateBuffered
}

// Kind returns the value kind of the variable.
func (v *Variable[V]) Kind() Kind {
	var zero V
	return zero.Kind()
}

// Len returns the current buffer length.
func (v *Variable[V]) Len() int {
	return v.buffer.Len()
}

// Samples returns a copy of the buffered samples.
func (v *Variable[V]) Samples() []Sample[V] {
	return v.buffer.Samples()
}

// Default returns the value reported while nothing is buffered.
func (v *Variable[V]) Default() V {
	return v.defaultValue
}
