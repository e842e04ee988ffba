package actuator

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/gimbalworks/servolink/internal/timeutil"
)

func TestSimTracksPositionAndHistory(t *testing.T) {
	s := NewSim(90)

	if err := s.MoveTo(45); err != nil {
		t.Fatalf("MoveTo: %v", err)
	}
	if err := s.MoveTo(120); err != nil {
		t.Fatalf("MoveTo: %v", err)
	}

	if got := s.Position(); got != 120 {
		t.Errorf("Position() = %d, want 120", got)
	}
	if diff := cmp.Diff([]int{45, 120}, s.History()); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestSimClampsStartPosition(t *testing.T) {
	s := NewSim(999)
	if got := s.Position(); got != 180 {
		t.Errorf("Position() = %d, want 180", got)
	}
}

func TestSimTravelTimeScalesWithDistance(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	s := NewSim(0, WithClock(clock), WithTravelTime(2*time.Millisecond))

	if err := s.MoveTo(90); err != nil {
		t.Fatalf("MoveTo: %v", err)
	}

	sleeps := clock.Sleeps()
	if len(sleeps) != 1 {
		t.Fatalf("recorded %d sleeps, want 1", len(sleeps))
	}
	if sleeps[0] != 180*time.Millisecond {
		t.Errorf("travel sleep = %v, want 180ms", sleeps[0])
	}
}

type failingMover struct{}

func (failingMover) MoveTo(int) error { return errors.New("stalled") }

func TestInstrumentedForwardsErrors(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	i := NewInstrumented(failingMover{}, clock)
	if err := i.MoveTo(10); err == nil {
		t.Fatal("expected error from wrapped mover")
	}
}

func TestInstrumentedForwardsMoves(t *testing.T) {
	s := NewSim(0)
	i := NewInstrumented(s, nil)
	if err := i.MoveTo(30); err != nil {
		t.Fatalf("MoveTo: %v", err)
	}
	if got := s.Position(); got != 30 {
		t.Errorf("Position() = %d, want 30", got)
	}
}
