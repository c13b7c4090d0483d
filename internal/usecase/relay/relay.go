// Package relay turns a raw upstream generation stream into an ordered
// channel of domain.RelayEvent values with exactly one terminal event.
package relay

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"

	"gitduel/internal/domain"
	"gitduel/internal/infra/tracer"
	"gitduel/internal/usecase"
)

const (
	// maxLineSize bounds one upstream line.
	maxLineSize = 1024 * 1024

	defaultBufferSize = 16

	doneSentinel = "[DONE]"
)

var dataField = []byte("data:")

// Options tunes a Relay.
type Options struct {
	// Model overrides the source's default model when set.
	Model string
	// IdleTimeout aborts a stream that produced no line for this long.
	// Zero disables the watchdog.
	IdleTimeout time.Duration
	// BufferSize is the capacity of each outbound channel.
	BufferSize int
}

// Stats is a snapshot of relay counters.
type Stats struct {
	Streams uint64 `json:"streams"`
	Deltas  uint64 `json:"deltas"`
	Dropped uint64 `json:"dropped"`
	Errors  uint64 `json:"errors"`
}

// Relay proxies generations from one StreamSource.
type Relay struct {
	source domain.StreamSource
	logger *slog.Logger
	opts   Options

	streams atomic.Uint64
	deltas  atomic.Uint64
	dropped atomic.Uint64
	errors  atomic.Uint64
}

// New creates a Relay over source.
func New(source domain.StreamSource, logger *slog.Logger, opts Options) *Relay {
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	return &Relay{source: source, logger: logger, opts: opts}
}

// Stats returns the current counters.
func (r *Relay) Stats() Stats {
	return Stats{
		Streams: r.streams.Load(),
		Deltas:  r.deltas.Load(),
		Dropped: r.dropped.Load(),
		Errors:  r.errors.Load(),
	}
}

// Stream starts one generation and returns its event channel. The channel
// yields zero or more Content events followed by exactly one Done or Error,
// then is closed. Cancelling ctx cancels the upstream request.
func (r *Relay) Stream(ctx context.Context, req domain.GenerationRequest) <-chan domain.RelayEvent {
	out := make(chan domain.RelayEvent, r.opts.BufferSize)
	r.streams.Add(1)

	s := &stream{
		relay: r,
		id:    ulid.Make().String(),
		mode:  req.Mode,
		out:   out,
	}
	s.logger = r.logger.With("stream_id", s.id, "mode", req.Mode.String(), "provider", r.source.Name())

	go s.run(ctx, usecase.BuildParams(req, r.opts.Model))
	return out
}

// stream is the state of one relayed generation. Only its goroutine touches it.
type stream struct {
	relay  *Relay
	id     string
	mode   domain.Mode
	out    chan domain.RelayEvent
	logger *slog.Logger

	deltas  int
	dropped int
}

func (s *stream) run(ctx context.Context, params domain.GenerationParams) {
	defer close(s.out)

	ctx, span := tracer.StartSpan(ctx, "relay.stream",
		trace.WithAttributes(
			tracer.StringAttr("relay.stream_id", s.id),
			tracer.StringAttr("relay.mode", s.mode.String()),
		),
	)
	defer span.End()

	started := time.Now()
	s.logger.Debug("relay stream started")

	body, err := s.relay.source.OpenStream(ctx, params)
	if err != nil {
		tracer.RecordError(span, err)
		s.logger.Warn("upstream open failed", "error", err, "code", domain.ErrorCodeOf(err))
		s.fail(ctx, OpenFailureMessage(err, s.mode))
		return
	}

	err = s.pump(ctx, body)

	span.SetAttributes(
		tracer.IntAttr("relay.deltas", s.deltas),
		tracer.IntAttr("relay.dropped", s.dropped),
	)
	if err != nil {
		tracer.RecordError(span, err)
		s.logger.Warn("relay stream failed",
			"error", err,
			"deltas", s.deltas,
			"dropped", s.dropped,
			"duration", time.Since(started),
		)
		s.fail(ctx, midStreamMessage(err))
		return
	}

	tracer.SetOK(span)
	s.logger.Debug("relay stream completed",
		"deltas", s.deltas,
		"dropped", s.dropped,
		"duration", time.Since(started),
	)
	s.finish(ctx, domain.DoneEvent())
}

// pump reads body until the done sentinel or a failure. It returns nil only
// when the sentinel was seen.
func (s *stream) pump(ctx context.Context, body io.ReadCloser) error {
	var closeOnce sync.Once
	closeBody := func() { closeOnce.Do(func() { body.Close() }) }
	defer closeBody()

	// Closing the body is what unblocks a pending read on cancel or idle.
	stopCancel := context.AfterFunc(ctx, closeBody)
	defer stopCancel()

	// The watchdog runs only while waiting on the upstream. Time spent
	// blocked on a slow consumer in send does not count as idle.
	var idle atomic.Bool
	timeout := s.relay.opts.IdleTimeout
	var watchdog *time.Timer
	if timeout > 0 {
		watchdog = time.AfterFunc(timeout, func() {
			idle.Store(true)
			closeBody()
		})
		watchdog.Stop()
		defer watchdog.Stop()
	}
	scan := func(sc *bufio.Scanner) bool {
		if watchdog == nil {
			return sc.Scan()
		}
		watchdog.Reset(timeout)
		ok := sc.Scan()
		watchdog.Stop()
		return ok
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scan(scanner) {
		payload, ok := dataPayload(scanner.Bytes())
		if !ok {
			continue
		}
		if string(payload) == doneSentinel {
			return nil
		}

		text, err := s.relay.source.ParseChunk(payload)
		if err != nil {
			if errors.Is(err, domain.ErrMalformedChunk) {
				s.dropped++
				s.relay.dropped.Add(1)
				s.logger.Debug("dropped malformed chunk", "error", err, "size", len(payload))
				continue
			}
			return err
		}
		if text == "" {
			continue
		}

		s.deltas++
		s.relay.deltas.Add(1)
		if !s.send(ctx, domain.ContentEvent(text)) {
			return ctx.Err()
		}
	}

	switch {
	case idle.Load():
		return fmt.Errorf("%w: no data for %s", domain.ErrTimeout, timeout)
	case ctx.Err() != nil:
		return ctx.Err()
	case scanner.Err() != nil:
		return fmt.Errorf("%w: %v", domain.ErrTransport, scanner.Err())
	}
	return domain.ErrPrematureEOF
}

// dataPayload returns the value of a "data:" line. Blank lines, comments and
// other fields report ok=false. One space after the colon is optional.
func dataPayload(line []byte) ([]byte, bool) {
	if len(line) == 0 || line[0] == ':' {
		return nil, false
	}
	rest, ok := bytes.CutPrefix(line, dataField)
	if !ok {
		return nil, false
	}
	rest, _ = bytes.CutPrefix(rest, []byte(" "))
	return rest, true
}

// send delivers a non-terminal event unless the consumer went away.
func (s *stream) send(ctx context.Context, ev domain.RelayEvent) bool {
	select {
	case s.out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *stream) fail(ctx context.Context, msg string) {
	s.relay.errors.Add(1)
	s.finish(ctx, domain.ErrorEvent(msg))
}

// finish delivers the terminal event. Once ctx is done delivery is
// best-effort: it only succeeds if the buffer has room.
func (s *stream) finish(ctx context.Context, ev domain.RelayEvent) {
	if ctx.Err() == nil {
		s.send(ctx, ev)
		return
	}
	select {
	case s.out <- ev:
	default:
		s.logger.Debug("terminal event not delivered", "kind", string(ev.Kind))
	}
}
