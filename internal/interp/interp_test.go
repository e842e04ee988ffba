package interp

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gimbalworks/servolink/internal/timeutil"
)

// fakeActuator records every move and can be told to fail.
type fakeActuator struct {
	moves []int
	err   error
}

func (f *fakeActuator) MoveTo(angle int) error {
	if f.err != nil {
		return f.err
	}
	f.moves = append(f.moves, angle)
	return nil
}

func newTestInterpreter(t *testing.T) (*Interpreter, *fakeActuator, *bytes.Buffer) {
	t.Helper()
	act := &fakeActuator{}
	out := &bytes.Buffer{}
	in := New(act, out, Config{
		Clock: timeutil.NewMockClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)),
	})
	return in, act, out
}

func feed(in *Interpreter, s string) {
	for i := 0; i < len(s); i++ {
		in.ProcessByte(s[i])
	}
}

func TestStartMovesToDefaultAndAnnouncesReady(t *testing.T) {
	act := &fakeActuator{}
	out := &bytes.Buffer{}
	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	in := New(act, out, Config{Clock: clock, SettleDelay: 300 * time.Millisecond})

	require.NoError(t, in.Start())

	assert.Equal(t, []int{90}, act.moves)
	assert.Equal(t, "READY\n", out.String())
	assert.Equal(t, 90, in.Angle())
	require.Len(t, clock.Sleeps(), 1)
	assert.Equal(t, 300*time.Millisecond, clock.Sleeps()[0])
}

func TestStartFailsWhenInitialMoveFails(t *testing.T) {
	act := &fakeActuator{err: errors.New("bus offline")}
	out := &bytes.Buffer{}
	in := New(act, out, Config{Clock: timeutil.NewMockClock(time.Time{})})

	err := in.Start()
	require.Error(t, err)
	assert.Empty(t, out.String(), "no READY after a failed initial move")
}

func TestValidAnglesAccepted(t *testing.T) {
	for _, angle := range []int{0, 1, 45, 90, 179, 180} {
		t.Run(fmt.Sprintf("angle_%d", angle), func(t *testing.T) {
			in, act, out := newTestInterpreter(t)
			feed(in, fmt.Sprintf("%d\n", angle))

			assert.Equal(t, fmt.Sprintf("OK %d\n", angle), out.String())
			assert.Equal(t, []int{angle}, act.moves)
			assert.Equal(t, angle, in.Angle())
		})
	}
}

func TestOutOfRangeRejected(t *testing.T) {
	for _, angle := range []int{-1, 181, 9999, -360} {
		t.Run(fmt.Sprintf("angle_%d", angle), func(t *testing.T) {
			in, act, out := newTestInterpreter(t)
			feed(in, fmt.Sprintf("%d\n", angle))

			assert.Equal(t, "ERR range\n", out.String())
			assert.Empty(t, act.moves, "actuator must not move")
			assert.Equal(t, DefaultAngle, in.Angle(), "commanded angle unchanged")
		})
	}
}

func TestMalformedLineRejectedAsFormatError(t *testing.T) {
	for _, line := range []string{"abc", "12abc", "1.5", "9 0", "--3"} {
		t.Run(line, func(t *testing.T) {
			in, act, out := newTestInterpreter(t)
			feed(in, line+"\n")

			assert.Equal(t, "ERR format\n", out.String())
			assert.Empty(t, act.moves)
			assert.Equal(t, DefaultAngle, in.Angle())
		})
	}
}

func TestLenientIntegerFormsAccepted(t *testing.T) {
	in, act, out := newTestInterpreter(t)
	feed(in, "+90\n")
	feed(in, " 090 \n")

	assert.Equal(t, "OK 90\nOK 90\n", out.String())
	assert.Equal(t, []int{90, 90}, act.moves)
}

func TestBoundaryAngles(t *testing.T) {
	in, _, out := newTestInterpreter(t)
	feed(in, "0\n180\n181\n")
	assert.Equal(t, "OK 0\nOK 180\nERR range\n", out.String())
	assert.Equal(t, 180, in.Angle())
}

func TestWhitespaceTolerated(t *testing.T) {
	in, act, out := newTestInterpreter(t)
	feed(in, "  90  \n")
	assert.Equal(t, "OK 90\n", out.String())
	assert.Equal(t, []int{90}, act.moves)
}

func TestCRLFPairsTolerated(t *testing.T) {
	in, act, out := newTestInterpreter(t)
	feed(in, "45\r\n120\r\n")
	assert.Equal(t, "OK 45\nOK 120\n", out.String())
	assert.Equal(t, []int{45, 120}, act.moves)
}

func TestEmptyLineIgnored(t *testing.T) {
	in, act, out := newTestInterpreter(t)
	feed(in, "\n\n\n")
	assert.Empty(t, out.String())
	assert.Empty(t, act.moves)
	assert.Equal(t, DefaultAngle, in.Angle())
}

func TestOversizedLineDropped(t *testing.T) {
	for _, n := range []int{17, 18, 32, 100} {
		t.Run(fmt.Sprintf("len_%d", n), func(t *testing.T) {
			in, act, out := newTestInterpreter(t)
			feed(in, string(bytes.Repeat([]byte("9"), n))+"\n")

			assert.Empty(t, out.String(), "oversized line must produce no response")
			assert.Empty(t, act.moves)
			assert.Equal(t, DefaultAngle, in.Angle())
		})
	}
}

func TestExactlySixteenCharsStillParsed(t *testing.T) {
	// 16 characters is within the bound; leading zeros still parse as 90.
	in, _, out := newTestInterpreter(t)
	feed(in, "0000000000000090\n")
	require.Equal(t, "OK 90\n", out.String())
}

func TestRecoveryAfterOversizedLine(t *testing.T) {
	in, act, out := newTestInterpreter(t)
	feed(in, string(bytes.Repeat([]byte("1"), 40))+"\n")
	feed(in, "60\n")

	assert.Equal(t, "OK 60\n", out.String())
	assert.Equal(t, []int{60}, act.moves)
}

func TestIdempotentRepeatCommand(t *testing.T) {
	in, act, out := newTestInterpreter(t)
	feed(in, "75\n75\n")
	assert.Equal(t, "OK 75\nOK 75\n", out.String())
	assert.Equal(t, []int{75, 75}, act.moves)
}

func TestSequentialScenario(t *testing.T) {
	in, act, out := newTestInterpreter(t)
	feed(in, "45\n200\n120\n")

	assert.Equal(t, "OK 45\nERR range\nOK 120\n", out.String())
	assert.Equal(t, []int{45, 120}, act.moves)
	assert.Equal(t, 120, in.Angle())
}

func TestHandleLineMatchesByteStream(t *testing.T) {
	in, act, out := newTestInterpreter(t)
	in.HandleLine(" 135 ")
	in.HandleLine("999")
	in.HandleLine("")

	assert.Equal(t, "OK 135\nERR range\n", out.String())
	assert.Equal(t, []int{135}, act.moves)
}

func TestEventsFireForEveryResponse(t *testing.T) {
	var events []Event
	act := &fakeActuator{}
	out := &bytes.Buffer{}
	in := New(act, out, Config{
		Clock:   timeutil.NewMockClock(time.Time{}),
		OnEvent: func(ev Event) { events = append(events, ev) },
	})

	feed(in, "30\nabc\n500\n\n")

	require.Len(t, events, 3, "no event for the empty line")
	assert.True(t, events[0].Accepted)
	assert.Equal(t, 30, events[0].Angle)
	assert.Equal(t, "OK 30", events[0].Response)
	assert.Equal(t, FormatErrLine, events[1].Response)
	assert.Equal(t, RangeErrLine, events[2].Response)
}

func TestActuatorFaultStillAcknowledged(t *testing.T) {
	// Moves are fire-and-forget on the wire: a bus fault is logged, not
	// reported to the sender.
	act := &fakeActuator{err: errors.New("bus fault")}
	out := &bytes.Buffer{}
	in := New(act, out, Config{Clock: timeutil.NewMockClock(time.Time{})})

	feed(in, "90\n")
	assert.Equal(t, "OK 90\n", out.String())
	assert.Equal(t, 90, in.Angle())
}
