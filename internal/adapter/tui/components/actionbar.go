package components

import (
	"strings"

	"gitduel/internal/adapter/tui/theme"
)

// Action is one button of the action bar.
type Action struct {
	ID    string // gate action id
	Key   string // shortcut, e.g. "1"
	Label string
}

// ActionBar renders the roast buttons. Enablement comes from the gate
// snapshot; the running action is highlighted.
type ActionBar struct {
	Actions []Action
}

// View renders the bar. enabled maps action ids to their gate state and
// running is the id of the in-flight action, if any.
func (a ActionBar) View(enabled map[string]bool, running string) string {
	buttons := make([]string, 0, len(a.Actions))
	for _, act := range a.Actions {
		label := "[" + act.Key + "] " + act.Label
		switch {
		case act.ID == running:
			buttons = append(buttons, theme.ButtonActive.Render(label+" "+theme.SymbolEllipsis))
		case enabled[act.ID]:
			buttons = append(buttons, theme.Button.Render(label))
		default:
			buttons = append(buttons, theme.ButtonDisabled.Render(label))
		}
	}
	return strings.Join(buttons, " ")
}

// ByKey returns the action bound to key.
func (a ActionBar) ByKey(key string) (Action, bool) {
	for _, act := range a.Actions {
		if act.Key == key {
			return act, true
		}
	}
	return Action{}, false
}
