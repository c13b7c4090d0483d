package consumer

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitduel/internal/domain"
)

type recorder struct {
	calls []string
}

func (r *recorder) handler() Handler {
	return Handler{
		OnContent: func(text string) { r.calls = append(r.calls, "content:"+text) },
		OnError:   func(msg string) { r.calls = append(r.calls, "error:"+msg) },
		OnDone:    func() { r.calls = append(r.calls, "done") },
	}
}

func wire(t *testing.T, events ...domain.RelayEvent) string {
	t.Helper()
	var sb strings.Builder
	for _, ev := range events {
		frame, err := domain.EncodeFrame(ev)
		require.NoError(t, err)
		sb.Write(frame)
	}
	return sb.String()
}

func TestConsumeDispatchesInOrder(t *testing.T) {
	stream := wire(t,
		domain.ContentEvent("Hello"),
		domain.ContentEvent(" "),
		domain.ContentEvent("world"),
		domain.DoneEvent(),
	)

	var rec recorder
	outcome, err := Consume(context.Background(), strings.NewReader(stream), rec.handler())

	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, outcome)
	assert.Equal(t, []string{"content:Hello", "content: ", "content:world", "done"}, rec.calls)
}

func TestConsumeOneByteReads(t *testing.T) {
	stream := wire(t,
		domain.ContentEvent("split "),
		domain.ContentEvent("across \"reads\""),
		domain.DoneEvent(),
	)

	var rec recorder
	outcome, err := Consume(context.Background(), iotest.OneByteReader(strings.NewReader(stream)), rec.handler())

	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, outcome)
	assert.Equal(t, []string{`content:split `, `content:across "reads"`, "done"}, rec.calls)
}

func TestConsumeStopsAfterTerminal(t *testing.T) {
	stream := wire(t,
		domain.ContentEvent("partial"),
		domain.ErrorEvent("Stream error occurred"),
		domain.ContentEvent("ignored"),
		domain.DoneEvent(),
	)

	var rec recorder
	outcome, err := Consume(context.Background(), strings.NewReader(stream), rec.handler())

	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, []string{"content:partial", "error:Stream error occurred"}, rec.calls)
}

func TestConsumeErrorWinsOverContent(t *testing.T) {
	stream := "data: {\"content\":\"x\",\"error\":\"boom\"}\n\n"

	var rec recorder
	outcome, _ := Consume(context.Background(), strings.NewReader(stream), rec.handler())

	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, []string{"error:boom"}, rec.calls)
}

func TestConsumeSkipsUndecodableLines(t *testing.T) {
	stream := ": comment\n" +
		"data: {broken\n" +
		"data: {}\n" +
		"retry: 100\n" +
		"data:{\"content\":\"ok\"}\r\n" +
		"\n" +
		"data: {\"done\":true}\n\n"

	var rec recorder
	outcome, err := Consume(context.Background(), strings.NewReader(stream), rec.handler())

	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, outcome)
	assert.Equal(t, []string{"content:ok", "done"}, rec.calls)
}

func TestConsumeEOFWithoutTerminal(t *testing.T) {
	stream := wire(t, domain.ContentEvent("half"))

	var rec recorder
	outcome, err := Consume(context.Background(), strings.NewReader(stream), rec.handler())

	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, []string{"content:half", "error:" + MsgConnectionClosed}, rec.calls)
}

func TestConsumeFinalFrameWithoutNewline(t *testing.T) {
	var rec recorder
	outcome, err := Consume(context.Background(), strings.NewReader(`data: {"done":true}`), rec.handler())

	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, outcome)
	assert.Equal(t, []string{"done"}, rec.calls)
}

func TestConsumeReadError(t *testing.T) {
	readErr := errors.New("connection reset")
	r := io.MultiReader(strings.NewReader(wire(t, domain.ContentEvent("a"))), iotest.ErrReader(readErr))

	var rec recorder
	outcome, err := Consume(context.Background(), r, rec.handler())

	assert.ErrorIs(t, err, readErr)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, []string{"content:a", "error:" + MsgConnectionClosed}, rec.calls)
}

func TestConsumeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var rec recorder
	outcome, err := Consume(ctx, strings.NewReader(wire(t, domain.DoneEvent())), rec.handler())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, OutcomeCancelled, outcome)
	assert.Empty(t, rec.calls)
}

func TestConsumeCancelMidStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stream := wire(t, domain.ContentEvent("a"), domain.ContentEvent("b"), domain.DoneEvent())

	var calls []string
	outcome, err := Consume(ctx, strings.NewReader(stream), Handler{
		OnContent: func(text string) {
			calls = append(calls, text)
			cancel()
		},
		OnDone: func() { calls = append(calls, "done") },
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, OutcomeCancelled, outcome)
	assert.Equal(t, []string{"a"}, calls)
}

func TestConsumeNilCallbacks(t *testing.T) {
	outcome, err := Consume(context.Background(), strings.NewReader(wire(t, domain.ContentEvent("x"))), Handler{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
}

func TestForward(t *testing.T) {
	stream := wire(t, domain.ContentEvent("one"), domain.ContentEvent("two"), domain.DoneEvent())
	ch := Forward(context.Background(), iotest.HalfReader(strings.NewReader(stream)))

	var got []domain.RelayEvent
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				assert.Equal(t, []domain.RelayEvent{
					domain.ContentEvent("one"),
					domain.ContentEvent("two"),
					domain.DoneEvent(),
				}, got)
				return
			}
			got = append(got, ev)
		case <-deadline:
			t.Fatal("forward channel never closed")
		}
	}
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "done", OutcomeDone.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
	assert.Equal(t, "cancelled", OutcomeCancelled.String())
}
