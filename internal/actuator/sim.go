// Package actuator provides the servo drivers behind the command
// interpreter: a real feetech bus servo and an in-memory simulator for dev
// mode and tests.
package actuator

import (
	"sync"
	"time"

	"github.com/gimbalworks/servolink/internal/monitoring"
	"github.com/gimbalworks/servolink/internal/timeutil"
	"github.com/gimbalworks/servolink/internal/units"
)

// Sim is an in-memory actuator that tracks its position and optionally
// simulates travel time proportional to the distance moved.
type Sim struct {
	mu       sync.Mutex
	position int
	history  []int

	clock        timeutil.Clock
	travelPerDeg time.Duration
}

// SimOption configures a Sim.
type SimOption func(*Sim)

// WithClock replaces the clock used for travel delays.
func WithClock(c timeutil.Clock) SimOption {
	return func(s *Sim) { s.clock = c }
}

// WithTravelTime sets the simulated travel time per degree of movement.
func WithTravelTime(perDegree time.Duration) SimOption {
	return func(s *Sim) { s.travelPerDeg = perDegree }
}

// NewSim creates a simulator resting at the given start position.
func NewSim(start int, opts ...SimOption) *Sim {
	s := &Sim{
		position: units.ClampAngle(start),
		clock:    timeutil.RealClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MoveTo moves the simulated horn, sleeping for the configured travel time.
func (s *Sim) MoveTo(angle int) error {
	s.mu.Lock()
	from := s.position
	s.position = angle
	s.history = append(s.history, angle)
	s.mu.Unlock()

	if s.travelPerDeg > 0 {
		dist := angle - from
		if dist < 0 {
			dist = -dist
		}
		s.clock.Sleep(time.Duration(dist) * s.travelPerDeg)
	}
	monitoring.Logf("sim actuator moved %d -> %d", from, angle)
	return nil
}

// Position returns the current simulated position.
func (s *Sim) Position() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// History returns every position commanded so far, in order.
func (s *Sim) History() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.history))
	copy(out, s.history)
	return out
}
