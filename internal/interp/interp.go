// Package interp implements the line-oriented command interpreter for a
// single servo actuator. It assembles incoming bytes into newline-delimited
// commands, validates the requested angle, drives the actuator, and writes a
// textual acknowledgement back over the same transport.
package interp

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gimbalworks/servolink/internal/monitoring"
	"github.com/gimbalworks/servolink/internal/timeutil"
	"github.com/gimbalworks/servolink/internal/units"
)

// MaxLineLength bounds the command line buffer. Anything longer is dropped
// without a response so a noisy or malicious sender cannot grow memory.
const MaxLineLength = 16

// DefaultAngle is the startup position of the actuator.
const DefaultAngle = 90

// DefaultSettleDelay is how long Start waits after the initial move before
// announcing readiness, giving the horn time to physically arrive.
const DefaultSettleDelay = 500 * time.Millisecond

// Protocol response lines.
const (
	ReadyLine     = "READY"
	RangeErrLine  = "ERR range"
	FormatErrLine = "ERR format"
)

// Actuator is the physical device the interpreter drives.
type Actuator interface {
	// MoveTo commands the actuator to the given position in degrees.
	MoveTo(angle int) error
}

// Event describes one handled command line. Events fire only when a response
// is written; dropped lines (empty, oversized) produce no event.
type Event struct {
	Line     string // trimmed command line as received
	Response string // response written to the transport
	Angle    int    // validated angle, meaningful only when Accepted
	Accepted bool
}

// Config carries the optional knobs for an Interpreter. Zero values select
// the defaults above.
type Config struct {
	DefaultAngle int
	SettleDelay  time.Duration
	Clock        timeutil.Clock

	// OnEvent, when set, is invoked synchronously for every handled command.
	// It runs on the interpreter's goroutine and must not block.
	OnEvent func(Event)
}

// Interpreter owns the line buffer and the commanded angle. It is not safe
// for concurrent use: exactly one goroutine must feed it bytes or lines.
type Interpreter struct {
	act Actuator
	out io.Writer
	cfg Config

	buf     []byte
	discard bool
	angle   int
}

// New creates an interpreter writing responses to out. The commanded angle
// starts at the configured default but the actuator is not touched until
// Start is called.
func New(act Actuator, out io.Writer, cfg Config) *Interpreter {
	if cfg.DefaultAngle == 0 {
		cfg.DefaultAngle = DefaultAngle
	}
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &Interpreter{
		act:   act,
		out:   out,
		cfg:   cfg,
		buf:   make([]byte, 0, MaxLineLength),
		angle: cfg.DefaultAngle,
	}
}

// Angle returns the last validated commanded angle.
func (in *Interpreter) Angle() int {
	return in.angle
}

// Start moves the actuator to the default angle, waits for it to settle, and
// announces readiness on the transport.
func (in *Interpreter) Start() error {
	if err := in.act.MoveTo(in.cfg.DefaultAngle); err != nil {
		return fmt.Errorf("initial move to %d: %w", in.cfg.DefaultAngle, err)
	}
	in.angle = in.cfg.DefaultAngle
	in.cfg.Clock.Sleep(in.cfg.SettleDelay)
	return in.writeLine(ReadyLine)
}

// ProcessByte consumes one byte from the transport. A newline completes the
// buffered line and hands it to line handling; any other byte is appended,
// and overflowing the buffer silently discards the whole line in progress up
// to and including the next delimiter.
func (in *Interpreter) ProcessByte(c byte) {
	if c == '\n' {
		if in.discard {
			in.discard = false
			return
		}
		in.handleLine(string(in.buf))
		in.buf = in.buf[:0]
		return
	}
	if in.discard {
		return
	}
	in.buf = append(in.buf, c)
	if len(in.buf) > MaxLineLength {
		in.buf = in.buf[:0]
		in.discard = true
	}
}

// HandleLine feeds a complete command line through the same validation path
// as bytes arriving from the transport. The caller must be the goroutine
// that owns the interpreter.
func (in *Interpreter) HandleLine(line string) {
	in.handleLine(line)
}

func (in *Interpreter) handleLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		// Stray blank lines, typically the CR half of CRLF pairs.
		return
	}

	angle, err := strconv.Atoi(line)
	if err != nil {
		in.respond(Event{Line: line, Response: FormatErrLine})
		return
	}

	if !units.InRange(angle) {
		in.respond(Event{Line: line, Response: RangeErrLine})
		return
	}

	if err := in.act.MoveTo(angle); err != nil {
		// The wire protocol treats moves as fire-and-forget; the commanded
		// angle tracks the command, not the horn. Surface the fault in the
		// diagnostics instead.
		monitoring.Logf("actuator move to %d failed: %v", angle, err)
	}
	in.angle = angle
	in.respond(Event{
		Line:     line,
		Response: fmt.Sprintf("OK %d", angle),
		Angle:    angle,
		Accepted: true,
	})
}

func (in *Interpreter) respond(ev Event) {
	if err := in.writeLine(ev.Response); err != nil {
		monitoring.Logf("failed to write response %q: %v", ev.Response, err)
	}
	if in.cfg.OnEvent != nil {
		in.cfg.OnEvent(ev)
	}
}

func (in *Interpreter) writeLine(s string) error {
	_, err := in.out.Write([]byte(s + "\n"))
	return err
}
