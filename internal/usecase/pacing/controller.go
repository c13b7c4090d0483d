// Package pacing turns bursty content deltas into a steady, word-by-word
// rendering.
package pacing

import (
	"strings"
	"time"
)

// DefaultCadence is the interval between two rendered tokens.
const DefaultCadence = 20 * time.Millisecond

// Controller paces a single generation. It is not safe for concurrent use;
// one loop owns it.
type Controller struct {
	gen     uint64
	cadence time.Duration

	queue    []string
	rendered strings.Builder
	state    State

	finished bool
	err      error

	draining bool
	lastStep time.Time
}

// New creates the controller for generation gen, already streaming.
// A non-positive cadence falls back to DefaultCadence.
func New(gen uint64, cadence time.Duration) *Controller {
	if cadence <= 0 {
		cadence = DefaultCadence
	}
	return &Controller{
		gen:     gen,
		cadence: cadence,
		state:   Next(Idle, SignalStart, 0),
	}
}

// Gen returns the generation this controller belongs to.
func (c *Controller) Gen() uint64 { return c.gen }

// Cadence returns the minimum interval between steps.
func (c *Controller) Cadence() time.Duration { return c.cadence }

// Push enqueues the tokens of delta. It reports true when no drain is
// active and the caller must schedule one. Deltas after Finish are ignored.
func (c *Controller) Push(delta string) bool {
	if c.finished {
		return false
	}
	tokens := Tokenize(delta)
	if len(tokens) == 0 {
		return false
	}
	c.queue = append(c.queue, tokens...)
	c.state = Next(c.state, SignalContent, len(c.queue))

	if c.draining {
		return false
	}
	c.draining = true
	return true
}

// Step renders exactly one queued token and returns the text so far. more
// reports whether another step is needed; once it is false the drain loop
// has stopped and a later Push restarts it.
func (c *Controller) Step(now time.Time) (rendered string, more bool) {
	if len(c.queue) == 0 {
		c.draining = false
		return c.rendered.String(), false
	}

	tok := c.queue[0]
	c.queue[0] = ""
	c.queue = c.queue[1:]
	c.rendered.WriteString(tok)
	c.lastStep = now

	more = len(c.queue) > 0
	if !more {
		c.draining = false
	}
	c.state = Next(c.state, SignalStep, len(c.queue))
	return c.rendered.String(), more
}

// Delay returns how long to wait before the next step is due. The first
// step of a generation is due immediately.
func (c *Controller) Delay(now time.Time) time.Duration {
	if c.lastStep.IsZero() {
		return 0
	}
	if d := c.lastStep.Add(c.cadence).Sub(now); d > 0 {
		return d
	}
	return 0
}

// Finish records the terminal event. Queued tokens are not flushed; they
// keep draining at the cadence. err is nil for Done.
func (c *Controller) Finish(err error) {
	if c.finished {
		return
	}
	c.finished = true
	c.err = err
	c.state = Next(c.state, SignalFinish, len(c.queue))
}

// State returns the lifecycle state.
func (c *Controller) State() State { return c.state }

// Idle reports whether the generation is complete from the user's view.
func (c *Controller) Idle() bool { return c.state == Idle }

// Rendered returns the text rendered so far.
func (c *Controller) Rendered() string { return c.rendered.String() }

// Pending returns the number of queued tokens.
func (c *Controller) Pending() int { return len(c.queue) }

// Draining reports whether a drain loop is active.
func (c *Controller) Draining() bool { return c.draining }

// Finished reports whether the terminal event was observed.
func (c *Controller) Finished() bool { return c.finished }

// Err returns the error passed to Finish, if any.
func (c *Controller) Err() error { return c.err }
