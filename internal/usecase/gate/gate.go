// Package gate decides which generation actions the user may trigger.
package gate

import "gitduel/internal/domain"

// RoastActions are the actions offered once a comparison exists.
var RoastActions = []string{domain.RoastUser1, domain.RoastUser2, domain.RoastBoth}

// Gate tracks action availability across generations. All actions are
// disabled while a generation is in flight. At most one action is disabled
// between generations: the one whose generation last succeeded. Disablement
// does not accumulate, so finishing "both" re-enables an earlier "user1".
// Reset enables everything. It is not safe for concurrent use.
type Gate struct {
	actions  []string
	known    map[string]bool
	disabled map[string]bool

	busy    bool
	current string // action of the in-flight generation, "" for neutral
}

// New creates a gate over actions, all enabled.
func New(actions ...string) *Gate {
	g := &Gate{
		actions:  append([]string(nil), actions...),
		known:    make(map[string]bool, len(actions)),
		disabled: make(map[string]bool),
	}
	for _, a := range actions {
		g.known[a] = true
	}
	return g
}

// Enabled reports whether action may be triggered now.
func (g *Gate) Enabled(action string) bool {
	return !g.busy && g.known[action] && !g.disabled[action]
}

// Busy reports whether a generation is in flight.
func (g *Gate) Busy() bool { return g.busy }

// Current returns the action of the in-flight generation.
func (g *Gate) Current() (action string, busy bool) { return g.current, g.busy }

// Begin marks a generation for action as started. It returns false and
// changes nothing when the action is not enabled.
func (g *Gate) Begin(action string) bool {
	if !g.Enabled(action) {
		return false
	}
	g.busy = true
	g.current = action
	return true
}

// BeginNeutral starts a generation that belongs to no action.
func (g *Gate) BeginNeutral() bool {
	if g.busy {
		return false
	}
	g.busy = true
	g.current = ""
	return true
}

// Complete ends the in-flight generation. A successful action generation
// disables that action and re-enables every other one; a failed or neutral
// generation leaves all actions enabled.
func (g *Gate) Complete(failed bool) {
	if !g.busy {
		return
	}
	g.busy = false
	clear(g.disabled)
	if !failed && g.current != "" {
		g.disabled[g.current] = true
	}
	g.current = ""
}

// Reset abandons any generation and enables every action.
func (g *Gate) Reset() {
	g.busy = false
	g.current = ""
	clear(g.disabled)
}

// Snapshot returns action -> enabled for every action.
func (g *Gate) Snapshot() map[string]bool {
	out := make(map[string]bool, len(g.actions))
	for _, a := range g.actions {
		out[a] = g.Enabled(a)
	}
	return out
}

// Actions returns the gated actions in declaration order.
func (g *Gate) Actions() []string {
	return append([]string(nil), g.actions...)
}
