// Package hostlink implements the host side of the servo bridge protocol:
// sending angle commands over a serial link with rate limiting, and waiting
// for the bridge's READY announcement and command acknowledgements.
package hostlink

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gimbalworks/servolink/internal/interp"
	"github.com/gimbalworks/servolink/internal/timeutil"
	"github.com/gimbalworks/servolink/internal/units"
)

// Link is the subset of the serial mux the commander needs.
type Link interface {
	Subscribe() (string, chan string)
	Unsubscribe(string)
	SendCommand(string) error
}

// Defaults for the send rate limiter. Commands closer together than
// MinInterval, or closer to the last sent angle than MinStep, are suppressed
// to avoid hammering the servo with micro-adjustments.
const (
	DefaultMinInterval = 50 * time.Millisecond
	DefaultMinStep     = 1
)

// Options configures a Commander. Zero values select the defaults.
type Options struct {
	MinInterval time.Duration
	MinStep     int
	Clock       timeutil.Clock
}

// Commander sends clamped, rate-limited angle commands over a Link.
// It is not safe for concurrent use.
type Commander struct {
	link Link
	opts Options

	lastSent int
	haveSent bool
	lastTime time.Time
}

// NewCommander creates a Commander over the given link.
func NewCommander(link Link, opts Options) *Commander {
	if opts.MinInterval == 0 {
		opts.MinInterval = DefaultMinInterval
	}
	if opts.MinStep == 0 {
		opts.MinStep = DefaultMinStep
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	return &Commander{link: link, opts: opts}
}

// Send clamps the angle to the valid range and sends it unless suppressed by
// the rate limiter. It returns the clamped angle and whether a command was
// actually written.
func (c *Commander) Send(angle int) (int, bool, error) {
	angle = units.ClampAngle(angle)

	if c.haveSent {
		step := angle - c.lastSent
		if step < 0 {
			step = -step
		}
		if step < c.opts.MinStep {
			return angle, false, nil
		}
		if c.opts.Clock.Since(c.lastTime) < c.opts.MinInterval {
			return angle, false, nil
		}
	}

	if err := c.link.SendCommand(fmt.Sprintf("%d", angle)); err != nil {
		return angle, false, err
	}
	c.lastSent = angle
	c.haveSent = true
	c.lastTime = c.opts.Clock.Now()
	return angle, true, nil
}

// WaitReady blocks until the bridge announces READY or the context is done.
// The caller must have the link's Monitor loop running.
func (c *Commander) WaitReady(ctx context.Context) error {
	return c.await(ctx, func(line string) bool {
		return strings.TrimSpace(line) == interp.ReadyLine
	})
}

// Command sends an angle, bypassing the rate limiter, and waits for the
// bridge's acknowledgement line.
func (c *Commander) Command(ctx context.Context, angle int) (string, error) {
	angle = units.ClampAngle(angle)

	var reply string
	err := c.exchange(ctx, fmt.Sprintf("%d", angle), func(line string) bool {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "OK ") || strings.HasPrefix(line, "ERR ") {
			reply = line
			return true
		}
		return false
	})
	if err != nil {
		return "", err
	}
	c.lastSent = angle
	c.haveSent = true
	c.lastTime = c.opts.Clock.Now()
	return reply, nil
}

// Sweep drives the servo through the given angles in order, waiting for each
// acknowledgement and dwelling between steps. It returns the reply lines.
func (c *Commander) Sweep(ctx context.Context, angles []int, dwell time.Duration) ([]string, error) {
	replies := make([]string, 0, len(angles))
	for _, angle := range angles {
		reply, err := c.Command(ctx, angle)
		if err != nil {
			return replies, fmt.Errorf("sweep at %d: %w", angle, err)
		}
		replies = append(replies, reply)
		if dwell > 0 {
			c.opts.Clock.Sleep(dwell)
		}
	}
	return replies, nil
}

// await subscribes to the link and blocks until a line matches.
func (c *Commander) await(ctx context.Context, match func(string) bool) error {
	return c.exchange(ctx, "", match)
}

// exchange subscribes, optionally sends a command, and waits for a matching
// line. The subscription is drained continuously so the mux fan-out never
// drops lines while the caller is between reads.
func (c *Commander) exchange(ctx context.Context, command string, match func(string) bool) error {
	id, ch := c.link.Subscribe()
	defer c.link.Unsubscribe(id)

	buffered := make(chan string, 16)
	go func() {
		for line := range ch {
			select {
			case buffered <- line:
			default:
			}
		}
		close(buffered)
	}()

	if command != "" {
		if err := c.link.SendCommand(command); err != nil {
			return err
		}
	}

	for {
		select {
		case line, ok := <-buffered:
			if !ok {
				return fmt.Errorf("link closed while waiting for response")
			}
			if match(line) {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
