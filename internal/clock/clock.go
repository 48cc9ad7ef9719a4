// Package clock provides the Engine's injected notion of engine-local
// time, kept separate from exchange timestamps so tests can drive time
// deterministically (§4.7: "record engine-local time from an injected
// Clock").
package clock

import "time"

// Clock returns the current engine-local time as unix nanoseconds.
type Clock interface {
	NowNanos() int64
}

// Real is the production Clock backed by the system wall clock.
type Real struct{}

func (Real) NowNanos() int64 { return time.Now().UnixNano() }

// Manual is a deterministic Clock for backtests and tests: it only
// advances when told to, never on its own.
type Manual struct {
	nanos int64
}

// NewManual creates a Manual clock starting at the given unix nanos.
func NewManual(startNanos int64) *Manual {
	return &Manual{nanos: startNanos}
}

func (m *Manual) NowNanos() int64 { return m.nanos }

// Advance moves the clock forward by delta nanoseconds and returns the
// new value.
func (m *Manual) Advance(delta int64) int64 {
	m.nanos += delta
	return m.nanos
}

// Set pins the clock to an absolute value.
func (m *Manual) Set(nanos int64) {
	m.nanos = nanos
}
