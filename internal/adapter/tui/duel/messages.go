// Package duel implements the Bubble Tea front end: two profiles side by
// side, a paced AI narration, and the roast buttons.
package duel

import "gitduel/internal/domain"

// profilesMsg carries the result of a profile lookup. seq identifies the
// lookup so results of an abandoned one can be discarded.
type profilesMsg struct {
	seq  uint64
	pair domain.ProfilePair
	err  error
}

// streamOpenedMsg reports that the narration request for gen was answered.
type streamOpenedMsg struct {
	gen    uint64
	events <-chan domain.RelayEvent
	err    error
}

// relayEventMsg delivers one event of generation gen. ok is false once the
// event channel is closed.
type relayEventMsg struct {
	gen    uint64
	ev     domain.RelayEvent
	ok     bool
	events <-chan domain.RelayEvent
}

// drainTickMsg asks for the next pacing step of gen.
type drainTickMsg struct {
	gen uint64
}
