package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"gitduel/internal/adapter/tui/theme"
	"gitduel/internal/domain"
)

// ProfileCard renders the headline numbers of one profile.
type ProfileCard struct {
	Profile domain.Profile
	Active  bool // highlighted while it is the roast target
	width   int
}

// SetWidth sets the outer width of the card.
func (c *ProfileCard) SetWidth(w int) { c.width = w }

// View renders the card.
func (c ProfileCard) View() string {
	p := c.Profile
	var b strings.Builder

	b.WriteString(theme.Bold.Render(p.Name))
	b.WriteString(" ")
	b.WriteString(theme.TextMuted.Render("@" + p.Username))
	b.WriteString("\n")
	if p.Bio != "" {
		b.WriteString(theme.Dim.Render(p.Bio))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	stats := []struct {
		label string
		value int
	}{
		{"Followers", p.Followers},
		{"Repos", p.PublicRepos},
		{"Stars", p.TotalStars},
		{"Forks", p.TotalForks},
		{"Commits", p.TotalCommits},
	}
	for _, s := range stats {
		fmt.Fprintf(&b, "%s %s\n", theme.StatLabel.Render(fmt.Sprintf("%-10s", s.label)), theme.StatValue.Render(fmt.Sprint(s.value)))
	}

	if len(p.TopLanguages) > 0 {
		var langs []string
		for _, l := range p.TopLanguages[:min(3, len(p.TopLanguages))] {
			langs = append(langs, l.Name)
		}
		b.WriteString("\n")
		b.WriteString(theme.TextAccent.Render(strings.Join(langs, " "+theme.SymbolBullet+" ")))
	}

	style := theme.Card
	if c.Active {
		style = theme.CardActive
	}
	if c.width > 0 {
		// Width excludes the border.
		style = style.Width(max(c.width-2, 10))
	}
	return style.Render(strings.TrimRight(b.String(), "\n"))
}

// JoinCards lays two cards side by side, or stacked when width is too narrow.
func JoinCards(width int, left, right ProfileCard) string {
	if width >= theme.MinSideBySideWidth {
		half := width / 2
		left.SetWidth(half)
		right.SetWidth(width - half)
		return lipgloss.JoinHorizontal(lipgloss.Top, left.View(), right.View())
	}
	left.SetWidth(width)
	right.SetWidth(width)
	return lipgloss.JoinVertical(lipgloss.Left, left.View(), right.View())
}
