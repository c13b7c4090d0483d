package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitduel/internal/domain"
)

// fakeSource parses {"t":"..."} payloads and serves a fixed body.
type fakeSource struct {
	body    io.ReadCloser
	openErr error
	params  domain.GenerationParams
	opened  int
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) OpenStream(_ context.Context, params domain.GenerationParams) (io.ReadCloser, error) {
	f.opened++
	f.params = params
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.body, nil
}

func (f *fakeSource) ParseChunk(payload []byte) (string, error) {
	var c struct {
		T   string `json:"t"`
		Err string `json:"err"`
	}
	if err := json.Unmarshal(payload, &c); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrMalformedChunk, err)
	}
	if c.Err == "quota" {
		return "", domain.ErrInsufficientQuota
	}
	if c.Err != "" {
		return "", domain.ErrProviderError
	}
	return c.T, nil
}

func bodyOf(s string) io.ReadCloser { return io.NopCloser(strings.NewReader(s)) }

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func collect(t *testing.T, ch <-chan domain.RelayEvent) []domain.RelayEvent {
	t.Helper()
	var events []domain.RelayEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("relay channel was never closed")
		}
	}
}

func assertSingleTerminal(t *testing.T, events []domain.RelayEvent) {
	t.Helper()
	require.NotEmpty(t, events)
	for i, ev := range events {
		if i < len(events)-1 {
			assert.False(t, ev.Terminal(), "event %d is terminal before the end", i)
		}
	}
	assert.True(t, events[len(events)-1].Terminal())
}

func TestStreamContentThenDone(t *testing.T) {
	src := &fakeSource{body: bodyOf(
		"data: {\"t\":\"Hello\"}\n\n" +
			"data:{\"t\":\" world\"}\n\n" +
			": keep-alive\n\n" +
			"event: ping\n" +
			"data: {\"t\":\"\"}\n\n" +
			"data: [DONE]\n\n" +
			"data: {\"t\":\"after\"}\n\n",
	)}
	r := New(src, testLogger(), Options{})

	events := collect(t, r.Stream(context.Background(), domain.GenerationRequest{}))

	require.Equal(t, []domain.RelayEvent{
		domain.ContentEvent("Hello"),
		domain.ContentEvent(" world"),
		domain.DoneEvent(),
	}, events)
	assert.Equal(t, Stats{Streams: 1, Deltas: 2}, r.Stats())
}

func TestStreamBuildsParamsFromRequest(t *testing.T) {
	src := &fakeSource{body: bodyOf("data: [DONE]\n")}
	r := New(src, testLogger(), Options{Model: "openai/gpt-4o-mini"})

	req := domain.GenerationRequest{
		Profiles: domain.ProfilePair{
			First:  domain.Profile{Username: "octocat"},
			Second: domain.Profile{Username: "torvalds"},
		},
		Mode: domain.ModeRoastBoth,
	}
	collect(t, r.Stream(context.Background(), req))

	assert.Equal(t, "openai/gpt-4o-mini", src.params.Model)
	assert.True(t, src.params.Stream)
	assert.Equal(t, domain.RoastTemperature, src.params.Temperature)
	assert.Equal(t, domain.RoastMaxTokens, src.params.MaxTokens)
	assert.Contains(t, src.params.Prompt, "octocat")
	assert.Contains(t, src.params.Prompt, "torvalds")
}

func TestStreamMalformedChunkDropped(t *testing.T) {
	src := &fakeSource{body: bodyOf(
		"data: {\"t\":\"a\"}\n" +
			"data: {not json\n" +
			"data: {\"t\":\"b\"}\n" +
			"data: [DONE]\n",
	)}
	r := New(src, testLogger(), Options{})

	events := collect(t, r.Stream(context.Background(), domain.GenerationRequest{}))

	require.Equal(t, []domain.RelayEvent{
		domain.ContentEvent("a"),
		domain.ContentEvent("b"),
		domain.DoneEvent(),
	}, events)
	assert.Equal(t, uint64(1), r.Stats().Dropped)
	assert.Equal(t, uint64(0), r.Stats().Errors)
}

func TestStreamOpenFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		mode domain.Mode
		want string
	}{
		{"quota neutral", fmt.Errorf("%w: API error 402", domain.ErrInsufficientQuota), domain.ModeNeutral, MsgInsufficientQuota},
		{"quota roast", fmt.Errorf("%w: API error 402", domain.ErrInsufficientQuota), domain.ModeRoastFirst, MsgInsufficientQuota},
		{"generic neutral", domain.ErrProviderError, domain.ModeNeutral, MsgComparisonFailed},
		{"generic roast", domain.ErrAuthInvalid, domain.ModeRoastSecond, MsgRoastFailed},
		{"circuit open", domain.ErrCircuitOpen, domain.ModeNeutral, MsgComparisonFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(&fakeSource{openErr: tt.err}, testLogger(), Options{})
			events := collect(t, r.Stream(context.Background(), domain.GenerationRequest{Mode: tt.mode}))

			require.Equal(t, []domain.RelayEvent{domain.ErrorEvent(tt.want)}, events)
			assert.Equal(t, uint64(1), r.Stats().Errors)
		})
	}
}

func TestStreamPrematureEOF(t *testing.T) {
	src := &fakeSource{body: bodyOf("data: {\"t\":\"partial\"}\n\n")}
	r := New(src, testLogger(), Options{})

	events := collect(t, r.Stream(context.Background(), domain.GenerationRequest{}))

	require.Equal(t, []domain.RelayEvent{
		domain.ContentEvent("partial"),
		domain.ErrorEvent(MsgPrematureEOF),
	}, events)
}

func TestStreamMidStreamProviderError(t *testing.T) {
	src := &fakeSource{body: bodyOf(
		"data: {\"t\":\"x\"}\n" +
			"data: {\"err\":\"overloaded\"}\n" +
			"data: {\"t\":\"never\"}\n",
	)}
	events := collect(t, New(src, testLogger(), Options{}).Stream(context.Background(), domain.GenerationRequest{}))
	require.Equal(t, []domain.RelayEvent{
		domain.ContentEvent("x"),
		domain.ErrorEvent(MsgStreamError),
	}, events)

	src = &fakeSource{body: bodyOf("data: {\"err\":\"quota\"}\n")}
	events = collect(t, New(src, testLogger(), Options{}).Stream(context.Background(), domain.GenerationRequest{}))
	require.Equal(t, []domain.RelayEvent{domain.ErrorEvent(MsgInsufficientQuota)}, events)
}

type failingBody struct {
	data string
	read bool
}

func (b *failingBody) Read(p []byte) (int, error) {
	if !b.read {
		b.read = true
		return copy(p, b.data), nil
	}
	return 0, fmt.Errorf("connection reset by peer")
}

func (b *failingBody) Close() error { return nil }

func TestStreamTransportErrorMidStream(t *testing.T) {
	src := &fakeSource{body: &failingBody{data: "data: {\"t\":\"one\"}\n"}}
	events := collect(t, New(src, testLogger(), Options{}).Stream(context.Background(), domain.GenerationRequest{}))

	require.Equal(t, []domain.RelayEvent{
		domain.ContentEvent("one"),
		domain.ErrorEvent(MsgStreamError),
	}, events)
}

func TestStreamIdleTimeout(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	go func() {
		fmt.Fprint(pw, "data: {\"t\":\"hi\"}\n")
	}()

	src := &fakeSource{body: pr}
	r := New(src, testLogger(), Options{IdleTimeout: 50 * time.Millisecond})

	events := collect(t, r.Stream(context.Background(), domain.GenerationRequest{}))

	require.Equal(t, []domain.RelayEvent{
		domain.ContentEvent("hi"),
		domain.ErrorEvent(MsgIdleTimeout),
	}, events)
}

func TestStreamSlowConsumerIsNotIdle(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	go func() {
		for _, tok := range []string{"a", "b", "c", "d", "e"} {
			fmt.Fprintf(pw, "data: {\"t\":%q}\n", tok)
		}
		fmt.Fprint(pw, "data: [DONE]\n")
	}()

	src := &fakeSource{body: pr}
	r := New(src, testLogger(), Options{IdleTimeout: 50 * time.Millisecond, BufferSize: 1})
	ch := r.Stream(context.Background(), domain.GenerationRequest{})

	var events []domain.RelayEvent
	for ev := range ch {
		events = append(events, ev)
		time.Sleep(120 * time.Millisecond)
	}

	require.Equal(t, []domain.RelayEvent{
		domain.ContentEvent("a"),
		domain.ContentEvent("b"),
		domain.ContentEvent("c"),
		domain.ContentEvent("d"),
		domain.ContentEvent("e"),
		domain.DoneEvent(),
	}, events)
	assert.Zero(t, r.Stats().Errors)
}

func TestStreamCancelClosesUpstream(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	src := &fakeSource{body: pr}
	r := New(src, testLogger(), Options{})

	ctx, cancel := context.WithCancel(context.Background())
	ch := r.Stream(ctx, domain.GenerationRequest{})

	_, err := fmt.Fprint(pw, "data: {\"t\":\"first\"}\n")
	require.NoError(t, err)
	first := <-ch
	assert.Equal(t, domain.ContentEvent("first"), first)

	cancel()

	events := collect(t, ch)
	require.LessOrEqual(t, len(events), 1)
	if len(events) == 1 {
		assert.Equal(t, domain.EventError, events[0].Kind)
	}

	// The pipe's reader side was closed by the relay.
	_, err = pw.Write([]byte("data: late\n"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestStreamLongLine(t *testing.T) {
	long := strings.Repeat("x", 200*1024)
	src := &fakeSource{body: bodyOf("data: {\"t\":\"" + long + "\"}\ndata: [DONE]\n")}

	events := collect(t, New(src, testLogger(), Options{}).Stream(context.Background(), domain.GenerationRequest{}))

	require.Len(t, events, 2)
	assert.Equal(t, long, events[0].Text)
	assertSingleTerminal(t, events)
}

func TestStreamChunkingInvariance(t *testing.T) {
	deltas := []string{"The ", "quick", " brown\n", "fox ", "", "jumps"}
	var sb strings.Builder
	for _, d := range deltas {
		payload, _ := json.Marshal(map[string]string{"t": d})
		fmt.Fprintf(&sb, "data: %s\r\n\r\n", payload)
	}
	sb.WriteString("data: [DONE]\r\n\r\n")

	events := collect(t, New(&fakeSource{body: bodyOf(sb.String())}, testLogger(), Options{}).
		Stream(context.Background(), domain.GenerationRequest{}))
	assertSingleTerminal(t, events)

	var got strings.Builder
	for _, ev := range events {
		got.WriteString(ev.Text)
	}
	assert.Equal(t, strings.Join(deltas, ""), got.String())
}

func TestDataPayload(t *testing.T) {
	tests := []struct {
		line   string
		want   string
		wantOK bool
	}{
		{"data: abc", "abc", true},
		{"data:abc", "abc", true},
		{"data:  two", " two", true},
		{"data: [DONE]", "[DONE]", true},
		{"", "", false},
		{": comment", "", false},
		{"event: message", "", false},
		{"id: 3", "", false},
	}
	for _, tt := range tests {
		got, ok := dataPayload([]byte(tt.line))
		assert.Equal(t, tt.wantOK, ok, tt.line)
		assert.Equal(t, tt.want, string(got), tt.line)
	}
}

func TestMessages(t *testing.T) {
	assert.Equal(t, MsgRoastFailed, OpenFailureMessage(domain.ErrTransport, domain.ModeRoastBoth))
	assert.Equal(t, MsgComparisonFailed, OpenFailureMessage(domain.ErrTransport, domain.ModeNeutral))
	assert.Equal(t, MsgIdleTimeout, midStreamMessage(fmt.Errorf("%w: idle", domain.ErrTimeout)))
	assert.Equal(t, MsgPrematureEOF, midStreamMessage(domain.ErrPrematureEOF))
	assert.Equal(t, MsgStreamError, midStreamMessage(context.Canceled))
}
