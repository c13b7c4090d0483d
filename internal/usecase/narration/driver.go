package narration

import (
	"context"
	"errors"
	"time"

	"gitduel/internal/domain"
	"gitduel/internal/usecase/consumer"
)

// RenderFunc receives the full rendered text after every step.
type RenderFunc func(rendered string)

// Driver runs a session without a UI event loop, using one timer for the
// drain cadence.
type Driver struct {
	session *Session
	render  RenderFunc
	now     func() time.Time
}

// NewDriver creates a driver for s. render may be nil.
func NewDriver(s *Session, render RenderFunc) *Driver {
	return &Driver{session: s, render: render, now: time.Now}
}

// Run feeds events into generation gen and drains it at the cadence. It
// returns nil once the generation is complete from the viewer's side (or
// stale), and ctx.Err() when abandoned. The timer never outlives Run.
func (d *Driver) Run(ctx context.Context, gen uint64, events <-chan domain.RelayEvent) error {
	var (
		timer *time.Timer
		tick  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	schedule := func() {
		delay := d.session.Delay(gen, d.now())
		if timer == nil {
			timer = time.NewTimer(delay)
		} else {
			timer.Reset(delay)
		}
		tick = timer.C
	}

	for !d.session.Done(gen) {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				events = nil
				d.session.Finish(gen, errors.New(consumer.MsgConnectionClosed))
				continue
			}
			switch ev.Kind {
			case domain.EventContent:
				if d.session.Content(gen, ev.Text) {
					schedule()
				}
			case domain.EventDone:
				d.session.Finish(gen, nil)
			case domain.EventError:
				d.session.Finish(gen, errors.New(ev.Message))
			}

		case <-tick:
			tick = nil
			rendered, more := d.session.Step(gen, d.now())
			if d.render != nil {
				d.render(rendered)
			}
			if more {
				schedule()
			}
		}
	}
	return nil
}
