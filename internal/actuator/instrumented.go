package actuator

import (
	"github.com/gimbalworks/servolink/internal/monitoring"
	"github.com/gimbalworks/servolink/internal/timeutil"
)

// Mover is the minimal move operation shared by all drivers. It matches the
// interpreter's actuator contract.
type Mover interface {
	MoveTo(angle int) error
}

// Instrumented wraps a Mover and records move latency in the Prometheus
// histogram.
type Instrumented struct {
	next  Mover
	clock timeutil.Clock
}

// NewInstrumented wraps next with latency instrumentation. A nil clock
// selects the real clock.
func NewInstrumented(next Mover, clock timeutil.Clock) *Instrumented {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Instrumented{next: next, clock: clock}
}

// MoveTo forwards the move and observes its duration.
func (i *Instrumented) MoveTo(angle int) error {
	start := i.clock.Now()
	err := i.next.MoveTo(angle)
	monitoring.ObserveMove(i.clock.Since(start).Seconds())
	return err
}
