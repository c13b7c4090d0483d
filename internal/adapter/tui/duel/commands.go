package duel

import (
	"context"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"gitduel/internal/domain"
	"gitduel/internal/usecase/consumer"
)

// Backend is the API the duel model talks to.
type Backend interface {
	CompareProfiles(ctx context.Context, username1, username2 string) (domain.ProfilePair, error)
	StreamComparison(ctx context.Context, pair domain.ProfilePair) (io.ReadCloser, error)
	StreamRoast(ctx context.Context, pair domain.ProfilePair, roastType string) (io.ReadCloser, error)
}

func lookupCmd(ctx context.Context, b Backend, seq uint64, u1, u2 string) tea.Cmd {
	return func() tea.Msg {
		pair, err := b.CompareProfiles(ctx, u1, u2)
		return profilesMsg{seq: seq, pair: pair, err: err}
	}
}

// openStreamCmd opens the narration for action ("" is the neutral
// comparison). The body is closed when ctx ends.
func openStreamCmd(ctx context.Context, b Backend, pair domain.ProfilePair, action string, gen uint64) tea.Cmd {
	return func() tea.Msg {
		var (
			body io.ReadCloser
			err  error
		)
		if action == "" {
			body, err = b.StreamComparison(ctx, pair)
		} else {
			body, err = b.StreamRoast(ctx, pair, action)
		}
		if err != nil {
			return streamOpenedMsg{gen: gen, err: err}
		}
		context.AfterFunc(ctx, func() { body.Close() })
		return streamOpenedMsg{gen: gen, events: consumer.Forward(ctx, body)}
	}
}

func waitForEvent(gen uint64, events <-chan domain.RelayEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		return relayEventMsg{gen: gen, ev: ev, ok: ok, events: events}
	}
}

func drainTickCmd(gen uint64, delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return drainTickMsg{gen: gen}
	})
}
