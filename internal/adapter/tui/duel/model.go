package duel

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"gitduel/internal/adapter/tui/components"
	"gitduel/internal/adapter/tui/theme"
	"gitduel/internal/adapter/tui/uxerror"
	"gitduel/internal/domain"
	"gitduel/internal/usecase"
	"gitduel/internal/usecase/consumer"
	"gitduel/internal/usecase/gate"
	"gitduel/internal/usecase/narration"
	"gitduel/internal/usecase/pacing"
)

// Deps are dependencies injected into the duel model.
type Deps struct {
	Backend Backend
	Logger  *slog.Logger
	Cadence time.Duration
	Server  string // shown in the status bar

	// Usernames prefill the inputs. When both are set the lookup starts
	// immediately.
	Usernames [2]string
	// Roast runs once the comparison has finished, "" for none.
	Roast string
	// MarkdownStyle is a glamour standard style name; "" detects one from
	// the terminal background.
	MarkdownStyle string
}

type phase int

const (
	phaseInput phase = iota
	phaseLoading
	phaseDuel
)

// Model is the root Bubble Tea model.
type Model struct {
	deps Deps

	inputs    [2]textinput.Model
	focus     int
	spinner   spinner.Model
	viewport  viewport.Model
	statusBar components.StatusBarModel
	actions   components.ActionBar
	session   *narration.Session

	phase  phase
	seq    uint64 // current lookup
	pair   domain.ProfilePair
	banner *uxerror.FriendlyError

	// cancel ends the in-flight lookup or narration request.
	cancel       context.CancelFunc
	pendingRoast string

	md      *glamour.TermRenderer
	mdWidth int

	width    int
	height   int
	quitting bool
}

// New creates the duel model.
func New(deps Deps) Model {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(theme.ColorInfo)

	var inputs [2]textinput.Model
	for i, placeholder := range []string{"first GitHub username", "second GitHub username"} {
		ti := textinput.New()
		ti.Placeholder = placeholder
		ti.Width = 39
		ti.CharLimit = 39
		ti.PromptStyle = theme.InputPrompt
		ti.PlaceholderStyle = theme.InputPlaceholder
		ti.SetValue(deps.Usernames[i])
		inputs[i] = ti
	}
	inputs[0].Focus()

	sb := components.NewStatusBar()
	sb.Server = deps.Server

	m := Model{
		deps:      deps,
		inputs:    inputs,
		spinner:   s,
		viewport:  viewport.New(80, 10),
		statusBar: sb,
		actions: components.ActionBar{Actions: []components.Action{
			{ID: domain.RoastUser1, Key: "1", Label: "Roast " + nameOr(deps.Usernames[0], "user 1")},
			{ID: domain.RoastUser2, Key: "2", Label: "Roast " + nameOr(deps.Usernames[1], "user 2")},
			{ID: domain.RoastBoth, Key: "3", Label: "Roast both"},
		}},
		session:      narration.NewSession(gate.New(gate.RoastActions...), deps.Cadence),
		pendingRoast: deps.Roast,
	}
	m.statusBar.Hints = m.hints()
	return m
}

// Init starts the lookup when both usernames were given.
func (m Model) Init() tea.Cmd {
	if strings.TrimSpace(m.deps.Usernames[0]) != "" && strings.TrimSpace(m.deps.Usernames[1]) != "" {
		return func() tea.Msg { return submitMsg{} }
	}
	return textinput.Blink
}

// submitMsg triggers the lookup of the entered usernames.
type submitMsg struct{}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case submitMsg:
		return m.submit()

	case profilesMsg:
		if msg.seq != m.seq || m.phase != phaseLoading {
			return m, nil
		}
		m.stop()
		if msg.err != nil {
			m.deps.Logger.Debug("profile lookup failed", "error", msg.err)
			m.phase = phaseInput
			m.setBanner(msg.err)
			m.statusBar.Hints = m.hints()
			return m, m.inputs[m.focus].Focus()
		}
		m.pair = msg.pair
		m.phase = phaseDuel
		m.relabel()
		m.statusBar.Hints = m.hints()
		return m, m.startGeneration("")

	case streamOpenedMsg:
		if msg.gen != m.session.Gen() {
			return m, nil
		}
		if msg.err != nil {
			m.session.Finish(msg.gen, msg.err)
			return m, m.sync()
		}
		return m, waitForEvent(msg.gen, msg.events)

	case relayEventMsg:
		return m.handleEvent(msg)

	case drainTickMsg:
		if msg.gen != m.session.Gen() {
			return m, nil
		}
		var cmds []tea.Cmd
		if _, more := m.session.Step(msg.gen, time.Now()); more {
			cmds = append(cmds, drainTickCmd(msg.gen, m.session.Delay(msg.gen, time.Now())))
		}
		cmds = append(cmds, m.sync())
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.phase == phaseInput {
		var cmd tea.Cmd
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleEvent(msg relayEventMsg) (tea.Model, tea.Cmd) {
	if msg.gen != m.session.Gen() {
		return m, nil
	}
	if !msg.ok {
		m.session.Finish(msg.gen, errors.New(consumer.MsgConnectionClosed))
		return m, m.sync()
	}

	var cmds []tea.Cmd
	switch msg.ev.Kind {
	case domain.EventContent:
		if m.session.Content(msg.gen, msg.ev.Text) {
			cmds = append(cmds, drainTickCmd(msg.gen, m.session.Delay(msg.gen, time.Now())))
		}
		cmds = append(cmds, waitForEvent(msg.gen, msg.events))
	case domain.EventDone:
		m.session.Finish(msg.gen, nil)
	case domain.EventError:
		m.session.Finish(msg.gen, errors.New(msg.ev.Message))
	}
	cmds = append(cmds, m.sync())
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.stop()
		m.quitting = true
		return m, tea.Quit
	}

	switch m.phase {
	case phaseInput:
		switch msg.Type {
		case tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
			return m, m.setFocus(1 - m.focus)
		case tea.KeyEnter:
			if m.focus == 0 && strings.TrimSpace(m.inputs[1].Value()) == "" {
				return m, m.setFocus(1)
			}
			return m.submit()
		}
		var cmd tea.Cmd
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
		return m, cmd

	case phaseLoading:
		if msg.String() == "esc" {
			return m.reset()
		}
		return m, nil
	}

	switch key := msg.String(); key {
	case "q":
		m.stop()
		m.quitting = true
		return m, tea.Quit
	case "r", "esc":
		return m.reset()
	case "c":
		return m, m.startGeneration("")
	case "1", "2", "3":
		if act, ok := m.actions.ByKey(key); ok && m.session.Gate().Enabled(act.ID) {
			return m, m.startGeneration(act.ID)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// submit validates the inputs and starts the lookup.
func (m Model) submit() (tea.Model, tea.Cmd) {
	u1 := strings.TrimSpace(m.inputs[0].Value())
	u2 := strings.TrimSpace(m.inputs[1].Value())
	if err := usecase.ValidateUsernames(u1, u2); err != nil {
		m.setBanner(err)
		return m, nil
	}

	m.stop()
	m.session.Reset()
	m.banner = nil
	m.seq++
	m.phase = phaseLoading
	m.inputs[m.focus].Blur()
	m.statusBar.Extra = "Fetching profiles" + theme.SymbolEllipsis
	m.statusBar.Hints = m.hints()

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	return m, tea.Batch(lookupCmd(ctx, m.deps.Backend, m.seq, u1, u2), m.spinner.Tick)
}

// startGeneration begins a narration for action ("" is the neutral
// comparison). It does nothing when the gate refuses.
func (m *Model) startGeneration(action string) tea.Cmd {
	var (
		gen uint64
		ok  bool
	)
	if action == "" {
		gen, ok = m.session.StartNeutral()
	} else {
		gen, ok = m.session.Start(action)
	}
	if !ok {
		return nil
	}

	m.stop()
	m.banner = nil
	m.md = nil
	m.statusBar.Extra = "Streaming" + theme.SymbolEllipsis
	m.viewport.SetContent("")
	m.viewport.GotoTop()

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.deps.Logger.Debug("narration started", "gen", gen, "action", action)
	return tea.Batch(openStreamCmd(ctx, m.deps.Backend, m.pair, action, gen), m.spinner.Tick)
}

// sync refreshes the narration view and, once the generation is complete
// from the viewer's side, releases its request.
func (m *Model) sync() tea.Cmd {
	gen := m.session.Gen()
	done := m.session.Done(gen)
	m.refreshNarration(done)
	if !done {
		return nil
	}

	m.stop()
	m.statusBar.Extra = theme.SymbolSuccess + " Done"
	if err := m.session.Err(); err != nil {
		m.statusBar.Extra = ""
		m.setBanner(err)
		m.pendingRoast = ""
		return nil
	}
	if m.pendingRoast != "" && m.session.Action() == "" {
		roast := m.pendingRoast
		m.pendingRoast = ""
		return m.startGeneration(roast)
	}
	return nil
}

func (m *Model) refreshNarration(done bool) {
	text := m.session.Rendered()
	width := max(m.viewport.Width, 20)

	if done && m.session.Err() == nil && text != "" {
		if out, err := m.renderMarkdown(text, width); err == nil {
			m.viewport.SetContent(out)
			return
		}
	}

	if !done {
		text += theme.SymbolCursor
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(lipgloss.NewStyle().Width(width).Render(text))
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) renderMarkdown(text string, width int) (string, error) {
	if m.md == nil || m.mdWidth != width {
		opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
		if m.deps.MarkdownStyle != "" {
			opts = append(opts, glamour.WithStandardStyle(m.deps.MarkdownStyle))
		} else {
			opts = append(opts, glamour.WithAutoStyle())
		}
		r, err := glamour.NewTermRenderer(opts...)
		if err != nil {
			return "", err
		}
		m.md, m.mdWidth = r, width
	}
	return m.md.Render(text)
}

// reset abandons everything and returns to the username inputs.
func (m Model) reset() (tea.Model, tea.Cmd) {
	m.stop()
	m.session.Reset()
	m.seq++
	m.phase = phaseInput
	m.pair = domain.ProfilePair{}
	m.banner = nil
	m.pendingRoast = ""
	m.md = nil
	m.statusBar.Extra = ""
	m.viewport.SetContent("")
	for i := range m.inputs {
		m.inputs[i].SetValue("")
	}
	m.statusBar.Hints = m.hints()
	return m, m.setFocus(0)
}

// stop cancels the in-flight request, if any.
func (m *Model) stop() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *Model) setFocus(i int) tea.Cmd {
	m.inputs[m.focus].Blur()
	m.focus = i
	return m.inputs[i].Focus()
}

func (m *Model) setBanner(err error) {
	fe := uxerror.Humanize(err)
	m.banner = &fe
}

// relabel names the roast buttons after the fetched profiles.
func (m *Model) relabel() {
	m.actions.Actions[0].Label = "Roast @" + m.pair.First.Username
	m.actions.Actions[1].Label = "Roast @" + m.pair.Second.Username
}

func (m Model) busy() bool {
	return m.phase == phaseLoading || m.session.Gate().Busy()
}

func (m Model) hints() []components.KeyHint {
	switch m.phase {
	case phaseInput:
		return []components.KeyHint{{Key: "Tab", Desc: "Switch"}, {Key: "Enter", Desc: "Compare"}, {Key: "Esc", Desc: "Quit"}}
	case phaseLoading:
		return []components.KeyHint{{Key: "Esc", Desc: "Cancel"}, {Key: "Ctrl+C", Desc: "Quit"}}
	}
	return []components.KeyHint{
		{Key: "1/2/3", Desc: "Roast"},
		{Key: "c", Desc: "Compare again"},
		{Key: "r", Desc: "Reset"},
		{Key: "j/k", Desc: "Scroll"},
		{Key: "q", Desc: "Quit"},
	}
}

// layout recalculates sizes for all sub-models.
func (m *Model) layout() {
	w := min(m.width, theme.MaxContentWidth)
	m.statusBar.SetWidth(m.width)

	// title, cards, action bar, narration border, status bar
	used := 2 + 12 + 2 + 3 + 1
	if w < theme.MinSideBySideWidth {
		used += 10
	}
	m.viewport.Width = max(w-4, 20)
	m.viewport.Height = max(m.height-used, 5)
	m.refreshNarration(m.session.Done(m.session.Gen()))
}

// View renders the whole UI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	w := theme.Clamp(m.width, 40, theme.MaxContentWidth)
	parts := []string{theme.Title.Render("gitduel " + theme.SymbolVersus)}

	switch m.phase {
	case phaseInput:
		parts = append(parts,
			theme.StatLabel.Render("Challenger"), m.inputs[0].View(), "",
			theme.StatLabel.Render("Opponent"), m.inputs[1].View(), "")
	case phaseLoading:
		parts = append(parts, m.spinner.View()+" Fetching @"+strings.TrimSpace(m.inputs[0].Value())+
			" and @"+strings.TrimSpace(m.inputs[1].Value())+theme.SymbolEllipsis, "")
	case phaseDuel:
		target, _ := m.session.Gate().Current()
		left := components.ProfileCard{Profile: m.pair.First, Active: target == domain.RoastUser1 || target == domain.RoastBoth}
		right := components.ProfileCard{Profile: m.pair.Second, Active: target == domain.RoastUser2 || target == domain.RoastBoth}
		running := ""
		if m.session.Gate().Busy() {
			running = target
		}
		parts = append(parts,
			components.JoinCards(w, left, right),
			m.actions.View(m.session.Gate().Snapshot(), running),
			m.narrationHeading(),
			theme.Narration.Width(w-2).Render(m.viewport.View()),
		)
	}

	if m.banner != nil {
		parts = append(parts, theme.ErrorBanner.Width(w-2).Render(theme.SymbolError+" "+m.banner.Render()))
	}
	parts = append(parts, m.statusBar.View())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) narrationHeading() string {
	var title string
	switch m.session.Action() {
	case domain.RoastUser1:
		title = theme.SymbolFire + " Roasting @" + m.pair.First.Username
	case domain.RoastUser2:
		title = theme.SymbolFire + " Roasting @" + m.pair.Second.Username
	case domain.RoastBoth:
		title = theme.SymbolFire + " Roasting both"
	default:
		title = theme.SymbolStar + " AI Comparison"
	}
	if m.session.State() != pacing.Idle {
		title = m.spinner.View() + " " + title
	}
	return theme.Bold.Render(title)
}

func nameOr(s, fallback string) string {
	if s = strings.TrimSpace(s); s != "" {
		return "@" + s
	}
	return fallback
}
