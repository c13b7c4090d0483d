// Package narration ties a stream of relay events to a pacing controller and
// the action gate for one viewer.
package narration

import (
	"time"

	"gitduel/internal/usecase/gate"
	"gitduel/internal/usecase/pacing"
)

// Session owns the current generation of one viewer. Every generation gets a
// fresh pacing.Controller; calls carrying an older generation id are ignored.
// It is not safe for concurrent use.
type Session struct {
	gate    *gate.Gate
	cadence time.Duration

	gen    uint64
	ctrl   *pacing.Controller
	action string
}

// NewSession creates a session gated by g.
func NewSession(g *gate.Gate, cadence time.Duration) *Session {
	return &Session{gate: g, cadence: cadence}
}

// Start begins a generation for action. ok is false, and nothing changes,
// when the gate refuses it.
func (s *Session) Start(action string) (gen uint64, ok bool) {
	if !s.gate.Begin(action) {
		return 0, false
	}
	return s.begin(action), true
}

// StartNeutral begins a generation that belongs to no gated action.
func (s *Session) StartNeutral() (gen uint64, ok bool) {
	if !s.gate.BeginNeutral() {
		return 0, false
	}
	return s.begin(""), true
}

func (s *Session) begin(action string) uint64 {
	s.gen++
	s.ctrl = pacing.New(s.gen, s.cadence)
	s.action = action
	return s.gen
}

// current returns the controller for gen, or nil when gen is stale.
func (s *Session) current(gen uint64) *pacing.Controller {
	if s.ctrl == nil || gen != s.gen {
		return nil
	}
	return s.ctrl
}

// Content enqueues a delta. It reports whether a drain step must be scheduled.
func (s *Session) Content(gen uint64, text string) bool {
	c := s.current(gen)
	if c == nil {
		return false
	}
	return c.Push(text)
}

// Finish records the terminal event of gen. err is nil for Done.
func (s *Session) Finish(gen uint64, err error) {
	c := s.current(gen)
	if c == nil {
		return
	}
	c.Finish(err)
	s.settle(c)
}

// Step renders one token of gen.
func (s *Session) Step(gen uint64, now time.Time) (rendered string, more bool) {
	c := s.current(gen)
	if c == nil {
		return "", false
	}
	rendered, more = c.Step(now)
	s.settle(c)
	return rendered, more
}

// settle releases the gate once the viewer sees the generation as complete.
func (s *Session) settle(c *pacing.Controller) {
	if c.Idle() && s.gate.Busy() {
		s.gate.Complete(c.Err() != nil)
	}
}

// Reset abandons the current generation and re-enables every action.
func (s *Session) Reset() {
	s.gen++
	s.ctrl = nil
	s.action = ""
	s.gate.Reset()
}

// Gen returns the current generation id.
func (s *Session) Gen() uint64 { return s.gen }

// Action returns the action of the current generation, "" for neutral.
func (s *Session) Action() string { return s.action }

// Done reports whether gen is complete from the viewer's side. A stale gen
// counts as done.
func (s *Session) Done(gen uint64) bool {
	c := s.current(gen)
	return c == nil || c.Idle()
}

// State returns the lifecycle state of the current generation.
func (s *Session) State() pacing.State {
	if s.ctrl == nil {
		return pacing.Idle
	}
	return s.ctrl.State()
}

// Rendered returns the text rendered for the current generation.
func (s *Session) Rendered() string {
	if s.ctrl == nil {
		return ""
	}
	return s.ctrl.Rendered()
}

// Err returns the terminal error of the current generation, if any.
func (s *Session) Err() error {
	if s.ctrl == nil {
		return nil
	}
	return s.ctrl.Err()
}

// Delay returns the wait before the next step of gen is due.
func (s *Session) Delay(gen uint64, now time.Time) time.Duration {
	c := s.current(gen)
	if c == nil {
		return 0
	}
	return c.Delay(now)
}

// Gate exposes the session's action gate.
func (s *Session) Gate() *gate.Gate { return s.gate }
